package episode

import "github.com/Trolladactyl/podverse-api/internal/model"

// mergeByExternalRank はリレーショナル層から取得した行を外部ランク順に並べ替える。
// rankedIDsに含まれる行はランク順に先頭へ、含まれない行は元の相対順を保って末尾に置く。
// rankedIDsにあってepisodesにない（非公開化などで欠落した）IDは単に無視される。
func mergeByExternalRank(episodes []*model.Episode, rankedIDs []string) []*model.Episode {
	if len(rankedIDs) == 0 || len(episodes) == 0 {
		return episodes
	}

	byID := make(map[string]*model.Episode, len(episodes))
	for _, e := range episodes {
		byID[e.ID] = e
	}

	merged := make([]*model.Episode, 0, len(episodes))
	seen := make(map[string]bool, len(rankedIDs))
	for _, id := range rankedIDs {
		if e, ok := byID[id]; ok && !seen[id] {
			merged = append(merged, e)
			seen[id] = true
		}
	}

	// ランクにない行は相対順を保って末尾へ
	for _, e := range episodes {
		if !seen[e.ID] {
			merged = append(merged, e)
		}
	}

	return merged
}

package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newRateLimitTestLogger() *slog.Logger {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil))
}

// TestRateLimiter_AllowsWithinLimit は制限内のリクエストが通過することを検証する。
func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(10),
		GeneralBurst:    5,
		CleanupInterval: time.Minute,
	}, newRateLimitTestLogger())
	defer rl.Stop()

	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.1:12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("リクエスト %d が拒否されました: %d", i, rec.Code)
		}
	}
}

// TestRateLimiter_BlocksOverLimit はバーストを超えたリクエストが429になることを検証する。
func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(0.001), // 実質補充なし
		GeneralBurst:    2,
		CleanupInterval: time.Minute,
	}, newRateLimitTestLogger())
	defer rl.Stop()

	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var lastCode int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.1:12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	if lastCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", lastCode)
	}
}

// TestRateLimiter_SeparatesClients はクライアントIPごとに独立した制限が
// 適用されることを検証する。
func TestRateLimiter_SeparatesClients(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(0.001),
		GeneralBurst:    1,
		CleanupInterval: time.Minute,
	}, newRateLimitTestLogger())
	defer rl.Stop()

	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// クライアント1がバーストを使い切る
	req1 := httptest.NewRequest(http.MethodGet, "/", nil)
	req1.RemoteAddr = "192.0.2.1:12345"
	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req1)

	// クライアント2は影響を受けない
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.RemoteAddr = "192.0.2.2:12345"
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)

	if rec2.Code != http.StatusOK {
		t.Errorf("別クライアントが拒否されました: %d", rec2.Code)
	}

	if rl.LimiterCount() != 2 {
		t.Errorf("リミッター数 = %d, want 2", rl.LimiterCount())
	}
}

// TestExtractClientIP はクライアントIP抽出を検証する。
func TestExtractClientIP(t *testing.T) {
	t.Run("X-Forwarded-For優先", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:8080"
		req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
		if got := extractClientIP(req); got != "203.0.113.5" {
			t.Errorf("clientIP = %s", got)
		}
	})

	t.Run("RemoteAddrのホスト部", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.9:54321"
		if got := extractClientIP(req); got != "192.0.2.9" {
			t.Errorf("clientIP = %s", got)
		}
	})
}

// TestDefaultRateLimiterConfig はreq/minからの変換を検証する。
func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig(120)
	if cfg.GeneralRate != rate.Limit(2) {
		t.Errorf("GeneralRate = %v, want 2", cfg.GeneralRate)
	}
	if cfg.GeneralBurst != 120 {
		t.Errorf("GeneralBurst = %d, want 120", cfg.GeneralBurst)
	}

	// 0以下はデフォルトへフォールバック
	cfg = DefaultRateLimiterConfig(0)
	if cfg.GeneralBurst != 120 {
		t.Errorf("GeneralBurst = %d, want 120", cfg.GeneralBurst)
	}
}

package security

import (
	"testing"
	"time"
)

// TestSSRFGuard_ValidateURL はURLの静的検証を検証する。
func TestSSRFGuard_ValidateURL(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"通常のHTTPS URL", "https://example.com/chapters.json", false},
		{"通常のHTTP URL", "http://example.com/feed.xml", false},
		{"空URL", "", true},
		{"ftpスキーム", "ftp://example.com/file", true},
		{"fileスキーム", "file:///etc/passwd", true},
		{"javascriptスキーム", "javascript:alert(1)", true},
		{"localhost", "http://localhost/feed", true},
		{"ループバックIP", "http://127.0.0.1/feed", true},
		{"プライベートIP 10系", "http://10.0.0.5/feed", true},
		{"プライベートIP 172系", "http://172.16.0.1/feed", true},
		{"プライベートIP 192系", "http://192.168.1.1/feed", true},
		{"メタデータIP", "http://169.254.169.254/latest/meta-data/", true},
		{"IPv6ループバック", "http://[::1]/feed", true},
		{"グローバルIP", "http://93.184.216.34/feed", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.ValidateURL(tt.url)
			if tt.wantErr && err == nil {
				t.Errorf("ValidateURL(%q) = nil, want error", tt.url)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateURL(%q) = %v, want nil", tt.url, err)
			}
		})
	}
}

// TestSSRFGuard_NewSafeClient はSSRF防止クライアントの生成を検証する。
func TestSSRFGuard_NewSafeClient(t *testing.T) {
	guard := NewSSRFGuard()
	client := guard.NewSafeClient(10*time.Second, 1048576)
	if client == nil {
		t.Fatal("NewSafeClient は nil を返してはならない")
	}
	if client.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", client.Timeout)
	}
}

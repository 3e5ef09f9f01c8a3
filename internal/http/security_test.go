package http

import (
	"net/http/httptest"
	"testing"
)

func TestExtractClientIP(t *testing.T) {
	proxies := newProxyList([]string{"203.0.113.0/24"})

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{
			name:       "direct connection without headers",
			remoteAddr: "198.51.100.7:4242",
			want:       "198.51.100.7",
		},
		{
			name:       "forwarded header from trusted proxy",
			remoteAddr: "10.0.0.5:8080",
			xff:        "198.51.100.7, 10.0.0.5",
			want:       "198.51.100.7",
		},
		{
			name:       "forwarded header from untrusted peer is ignored",
			remoteAddr: "198.51.100.7:4242",
			xff:        "1.2.3.4",
			want:       "198.51.100.7",
		},
		{
			name:       "real ip header from trusted proxy",
			remoteAddr: "127.0.0.1:9000",
			xri:        "198.51.100.9",
			want:       "198.51.100.9",
		},
		{
			name:       "configured extra proxy range is trusted",
			remoteAddr: "203.0.113.10:443",
			xff:        "198.51.100.7",
			want:       "198.51.100.7",
		},
		{
			name:       "garbage forwarded value falls back to peer",
			remoteAddr: "10.0.0.5:8080",
			xff:        "not-an-ip",
			want:       "10.0.0.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := proxies.extractClientIP(req); got != tt.want {
				t.Errorf("extractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := newRateLimiter(3)
	defer rl.stop()

	for i := 0; i < 3; i++ {
		if !rl.allow("198.51.100.7") {
			t.Fatalf("request %d unexpectedly blocked", i+1)
		}
	}
	if rl.allow("198.51.100.7") {
		t.Error("request over the budget was allowed")
	}
	if !rl.allow("198.51.100.8") {
		t.Error("different client was blocked")
	}
}

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JonMunkholm/dummycsv/internal/core"
)

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "no trusted proxies ignores headers",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "1.2.3.4"},
			want:       "10.0.0.1:1234",
		},
		{
			name:       "trusted cidr uses X-Real-IP",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "1.2.3.4"},
			want:       "1.2.3.4",
		},
		{
			name:       "single address entry",
			trusted:    []string{"127.0.0.1"},
			remoteAddr: "127.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "5.6.7.8, 10.0.0.2"},
			want:       "5.6.7.8",
		},
		{
			name:       "untrusted source keeps remote addr",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "192.168.1.1:1234",
			headers:    map[string]string{"X-Real-IP": "1.2.3.4"},
			want:       "192.168.1.1:1234",
		},
		{
			name:       "malformed header ignored",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "not-an-ip"},
			want:       "10.0.0.1:1234",
		},
		{
			name:       "invalid entries skipped",
			trusted:    []string{"garbage", " ", "10.0.0.0/8"},
			remoteAddr: "10.1.2.3:1",
			headers:    map[string]string{"X-Real-IP": "::ffff:1.2.3.4"},
			want:       "1.2.3.4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequireUser(t *testing.T) {
	called := false
	h := RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	t.Run("anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schemas", nil))

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
		if called {
			t.Fatal("next handler ran without a user")
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["code"] != "AUTH001" {
			t.Errorf("code = %q, want AUTH001", body["code"])
		}
	})

	t.Run("logged in", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/schemas", nil)
		req = req.WithContext(core.ContextWithUser(req.Context(), core.User{ID: 1, Username: "ann"}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if !called {
			t.Fatal("next handler did not run")
		}
	})
}

func TestLogger_CapturesStatus(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("short"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if rec.Body.String() != "short" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

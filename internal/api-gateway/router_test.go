package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func upstream(name string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", name)
		_, _ = io.WriteString(w, r.URL.Path+"|"+r.Header.Get("X-Principal-Email"))
	}))
}

func TestRouting(t *testing.T) {
	pred, odds := upstream("predictions"), upstream("odds")
	defer pred.Close()
	defer odds.Close()

	tests := []struct {
		name         string
		trust        bool
		path         string
		wantUpstream string
		wantBody     string
	}{
		{"wagers", false, "/api/predictions/v1/wagers", "predictions", "/v1/wagers|"},
		{"quote", false, "/api/odds/v1/matches/m1/quote", "odds", "/v1/matches/m1/quote|"},
		{"trusted principal", true, "/api/predictions/v1/accounts/s1", "predictions", "/v1/accounts/s1|ana@campus.edu"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewRouter(Targets{Predictions: pred.URL, Odds: odds.URL}, Options{TrustPrincipal: tt.trust}, zap.NewNop())
			if err != nil {
				t.Fatal(err)
			}
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set("X-Principal-Email", "ana@campus.edu")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if got := rec.Header().Get("X-Upstream"); got != tt.wantUpstream {
				t.Errorf("upstream = %q, want %q", got, tt.wantUpstream)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestUpstreamDown(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	url := dead.URL
	dead.Close()

	h, err := NewRouter(Targets{Predictions: url, Odds: url}, Options{}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/odds/v1/matches/m1/quote", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestPreflightAndBadTargets(t *testing.T) {
	h, err := NewRouter(Targets{Predictions: "http://p:8083", Odds: "http://o:8080"}, Options{}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/predictions/v1/wagers", nil)
	req.Header.Set("Origin", "http://campus.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight = %d %v", rec.Code, rec.Header())
	}

	if _, err := NewRouter(Targets{Predictions: "localhost", Odds: "http://o"}, Options{}, zap.NewNop()); err == nil {
		t.Error("expected error for url without scheme")
	}
}

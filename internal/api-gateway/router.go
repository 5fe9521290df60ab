package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Targets são as URLs base dos serviços internos
type Targets struct {
	Predictions string
	Odds        string
}

// Options controla o que o gateway aceita do cliente
type Options struct {
	// TrustPrincipal=false descarta os headers X-Principal-* do cliente:
	// só o colaborador de identidade, na frente do gateway, pode preenchê-los.
	TrustPrincipal bool
	CORSOrigins    []string // vazio: "*"
}

// NewRouter monta o proxy reverso para os serviços internos
func NewRouter(t Targets, opts Options, log *zap.Logger) (http.Handler, error) {
	predictions, err := proxy(t.Predictions, log)
	if err != nil {
		return nil, fmt.Errorf("prediction target: %w", err)
	}
	odds, err := proxy(t.Odds, log)
	if err != nil {
		return nil, fmt.Errorf("odds target: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:       origins,
		AllowedMethods:       []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:       []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:               300,
		OptionsSuccessStatus: http.StatusNoContent,
	}))
	if !opts.TrustPrincipal {
		r.Use(stripPrincipal)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	// apostas, contas e admin (ex.: /api/predictions/v1/wagers -> prediction-service /v1/wagers)
	r.Mount("/api/predictions", http.StripPrefix("/api/predictions", predictions))
	// cotações e websocket (ex.: /api/odds/ws -> odds-service /ws)
	r.Mount("/api/odds", http.StripPrefix("/api/odds", odds))
	return r, nil
}

func proxy(target string, log *zap.Logger) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", target)
	}
	rp := httputil.NewSingleHostReverseProxy(u)
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("upstream unavailable", zap.String("target", target), zap.String("path", r.URL.Path), zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"bad_gateway","message":"upstream unavailable"}`))
	}
	return rp, nil
}

func stripPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k := range r.Header {
			if strings.HasPrefix(http.CanonicalHeaderKey(k), "X-Principal-") {
				r.Header.Del(k)
			}
		}
		next.ServeHTTP(w, r)
	})
}

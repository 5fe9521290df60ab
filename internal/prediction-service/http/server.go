package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/intramural-predictions/internal/domain"
	"github.com/radieske/intramural-predictions/internal/ledger"
	"github.com/radieske/intramural-predictions/internal/odds"
	"github.com/radieske/intramural-predictions/internal/prediction-service/dto"
	"github.com/radieske/intramural-predictions/internal/settlement"
)

// Headers preenchidos pelo gateway depois da autenticação
const (
	HeaderPrincipalEmail = "X-Principal-Email"
	HeaderPrincipalRoles = "X-Principal-Roles"
)

type WagerPublisher interface {
	PublishWagerPlaced(ctx context.Context, w domain.Wager) error
}

// Server expõe a API de apostas (usuário) e de liquidação (admin)
type Server struct {
	log        *zap.Logger
	ledger     *ledger.Ledger
	settlement *settlement.Engine
	quotes     *odds.Service
	publ       WagerPublisher
}

func NewServer(log *zap.Logger, l *ledger.Ledger, s *settlement.Engine, q *odds.Service, p WagerPublisher) *Server {
	return &Server{log: log, ledger: l, settlement: s, quotes: q, publ: p}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.principal)

		r.Get("/matches/{id}/quote", s.getQuote)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(domain.RoleUser))
			r.Post("/accounts", s.createAccount)
			r.Get("/accounts/{seasonId}", s.getBalance)
			r.Get("/accounts/{seasonId}/ledger", s.listEntries)
			r.Post("/wagers", s.placeWager)
			r.Get("/wagers", s.listWagers)
			r.Get("/wagers/{id}", s.getWager)
			r.Delete("/wagers/{id}", s.cancelWager)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireRole(domain.RoleAdmin))
			r.Post("/matches/{id}/settle", s.settleMatch)
			r.Post("/matches/{id}/undo", s.undoSettlement)
			r.Post("/accounts/grant", s.grantBalance)
		})
	})
	return r
}

type principalKey struct{}

// principal lê a identidade já autenticada; sem e-mail a requisição é recusada
func (s *Server) principal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := strings.TrimSpace(r.Header.Get(HeaderPrincipalEmail))
		if email == "" {
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "unauthenticated", Message: "missing principal"})
			return
		}
		p := domain.Principal{Email: email}
		for _, role := range strings.Split(r.Header.Get(HeaderPrincipalRoles), ",") {
			if role = strings.TrimSpace(role); role != "" {
				p.Roles = append(p.Roles, role)
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}

func requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !principalFrom(r).HasRole(role) {
				writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "forbidden", Message: "requires role " + role})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func principalFrom(r *http.Request) domain.Principal {
	p, _ := r.Context().Value(principalKey{}).(domain.Principal)
	return p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor mapeia as categorias de erro do core para HTTP
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrTransient):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		msg = "internal error"
	}
	writeJSON(w, status, dto.ErrorResponse{Error: domain.Code(err), Message: msg})
}

// decode lê o corpo e roda as tags de validação
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.Invalid("body", err.Error())
	}
	return dto.Validate(v)
}

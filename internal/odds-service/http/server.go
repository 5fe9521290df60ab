package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/intramural-predictions/internal/domain"
	"github.com/radieske/intramural-predictions/internal/odds"
	"github.com/radieske/intramural-predictions/internal/odds-service/ws"
)

// API expõe a leitura de cotações e o WebSocket de atualizações
type API struct {
	Quotes *odds.Service // cache Redis + cálculo sobre o store
	Hub    *ws.Hub
	Log    *zap.Logger
}

// Router retorna o roteador HTTP com os endpoints REST e o /ws
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/matches/{id}/quote", a.getQuote) // cotação atual da partida
	if a.Hub != nil {
		r.Get("/ws", a.Hub.HandleWS) // assinatura por partida
	}
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// getQuote devolve a cotação; falhas de leitura viram fallback dentro do serviço
func (a *API) getQuote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q, err := a.Quotes.Quote(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": domain.Code(err), "message": err.Error()})
			return
		}
		a.Log.Error("quote", zap.String("match_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": domain.Code(err), "message": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, q)
}

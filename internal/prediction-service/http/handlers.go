package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/intramural-predictions/internal/domain"
	"github.com/radieske/intramural-predictions/internal/ledger"
	"github.com/radieske/intramural-predictions/internal/prediction-service/dto"
	"github.com/radieske/intramural-predictions/internal/settlement"
)

func (s *Server) getQuote(w http.ResponseWriter, r *http.Request) {
	q, err := s.quotes.Quote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAccountRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	b, err := s.ledger.EnsureAccount(r.Context(), principalFrom(r).Email, req.SeasonID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.Balance(b))
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	b, err := s.ledger.Balance(r.Context(), principalFrom(r).Email, chi.URLParam(r, "seasonId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.Balance(b))
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	es, err := s.ledger.Entries(r.Context(), principalFrom(r).Email, chi.URLParam(r, "seasonId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.Entries(es))
}

func (s *Server) placeWager(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceWagerRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	in := ledger.PlaceWagerInput{
		UserID:   principalFrom(r).Email,
		SeasonID: req.SeasonID,
		Stake:    req.Stake,
	}
	for _, l := range req.Legs {
		in.Legs = append(in.Legs, ledger.LegInput{MatchID: l.MatchID, Outcome: domain.Outcome(l.Outcome)})
	}

	wager, err := s.ledger.PlaceWager(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	// evento é informativo; a aposta já está gravada
	if s.publ != nil {
		if err := s.publ.PublishWagerPlaced(r.Context(), wager); err != nil {
			s.log.Warn("publish wager_placed failed", zap.String("wager_id", wager.ID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusCreated, dto.Wager(wager))
}

func (s *Server) listWagers(w http.ResponseWriter, r *http.Request) {
	seasonID := r.URL.Query().Get("seasonId")
	if seasonID == "" {
		s.fail(w, r, domain.Invalid("seasonId", "required"))
		return
	}
	ws, err := s.ledger.WagersForUser(r.Context(), principalFrom(r).Email, seasonID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.Wagers(ws))
}

func (s *Server) getWager(w http.ResponseWriter, r *http.Request) {
	wager, err := s.ledger.Wager(r.Context(), principalFrom(r).Email, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.Wager(wager))
}

func (s *Server) cancelWager(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.CancelWager(r.Context(), principalFrom(r).Email, chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) settleMatch(w http.ResponseWriter, r *http.Request) {
	var req dto.SettleMatchRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	rec, err := s.settlement.Settle(r.Context(), settlement.SettleInput{
		MatchID:     chi.URLParam(r, "id"),
		HomeScore:   req.HomeScore,
		AwayScore:   req.AwayScore,
		IsForfeit:   req.IsForfeit,
		ForfeitedBy: req.ForfeitedBy,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("match settled via api",
		zap.String("match_id", rec.MatchID),
		zap.String("admin", principalFrom(r).Email),
	)
	writeJSON(w, http.StatusOK, dto.Settlement(rec))
}

func (s *Server) undoSettlement(w http.ResponseWriter, r *http.Request) {
	rec, reverted, err := s.settlement.Undo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("settlement undo via api",
		zap.String("match_id", rec.MatchID),
		zap.Bool("reverted", reverted),
		zap.String("admin", principalFrom(r).Email),
	)
	resp := dto.Settlement(rec)
	resp.Reverted = &reverted
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) grantBalance(w http.ResponseWriter, r *http.Request) {
	var req dto.GrantRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	b, err := s.ledger.GrantBalance(r.Context(), req.UserID, req.SeasonID, req.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.Balance(b))
}

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/intramural-predictions/internal/domain"
	"github.com/radieske/intramural-predictions/internal/ledger"
	"github.com/radieske/intramural-predictions/internal/odds"
	"github.com/radieske/intramural-predictions/internal/prediction-service/dto"
	"github.com/radieske/intramural-predictions/internal/settlement"
	"github.com/radieske/intramural-predictions/internal/store/memory"
)

const (
	season = "2026-fall"
	ana    = "ana@campus.edu"
	admin  = "ref@campus.edu"
)

type recordingPublisher struct{ placed []string }

func (p *recordingPublisher) PublishWagerPlaced(_ context.Context, w domain.Wager) error {
	p.placed = append(p.placed, w.ID)
	return nil
}

func newTestServer(t *testing.T) (http.Handler, *recordingPublisher) {
	t.Helper()
	st := memory.New()
	when := time.Date(2026, 10, 3, 14, 0, 0, 0, time.UTC)
	st.SeedMatch(domain.Match{ID: "m1", SportID: "soccer", SeasonID: season, HomeTeam: "owls", AwayTeam: "foxes", ScheduledTime: when, Tier: domain.TierRegular})
	st.SeedMatch(domain.Match{ID: "m2", SportID: "soccer", SeasonID: season, HomeTeam: "bears", AwayTeam: "wolves", ScheduledTime: when, Tier: domain.TierRegular})

	sports := domain.SportTable{"soccer": {PointsForWin: 3, PointsForDraw: 1, KMultiplier: 1, AllowsDraw: true}}
	engine := odds.NewEngine(odds.DefaultConfig())
	l := ledger.New(st, engine, sports, ledger.Config{StartingBalance: decimal.NewFromInt(1000), MaxLegs: 4, InitialRating: 1200}, zap.NewNop(), nil)
	quotes := odds.NewService(st, engine, sports, 1200, zap.NewNop())
	se := settlement.NewEngine(st, l, sports, 1200, zap.NewNop(), settlement.WithPrimer(quotes))

	pub := &recordingPublisher{}
	return NewServer(zap.NewNop(), l, se, quotes, pub).Router(), pub
}

func do(t *testing.T, h http.Handler, method, path, email, roles string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if email != "" {
		req.Header.Set(HeaderPrincipalEmail, email)
		req.Header.Set(HeaderPrincipalRoles, roles)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestWagerLifecycle(t *testing.T) {
	h, pub := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/v1/accounts", ana, "user", map[string]string{"seasonId": season})
	if rec.Code != http.StatusOK {
		t.Fatalf("create account = %d %s", rec.Code, rec.Body)
	}
	if b := decodeBody[dto.BalanceResponse](t, rec); b.Balance != "1000.00" {
		t.Fatalf("starting balance = %s", b.Balance)
	}

	rec = do(t, h, http.MethodPost, "/v1/wagers", ana, "user", map[string]any{
		"seasonId": season,
		"stake":    "100",
		"legs":     []map[string]string{{"matchId": "m1", "outcome": "home"}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("place wager = %d %s", rec.Code, rec.Body)
	}
	wager := decodeBody[dto.WagerResponse](t, rec)
	if wager.Status != "pending" || wager.Legs[0].Prob == 0 || len(pub.placed) != 1 {
		t.Fatalf("wager = %+v, published %v", wager, pub.placed)
	}

	rec = do(t, h, http.MethodPost, "/v1/admin/matches/m1/settle", admin, "admin", map[string]any{"homeScore": 2, "awayScore": 0})
	if rec.Code != http.StatusOK {
		t.Fatalf("settle = %d %s", rec.Code, rec.Body)
	}
	if s := decodeBody[dto.SettlementResponse](t, rec); s.Outcome != "home" || s.WagersSettled != 1 || s.UndoToken == "" {
		t.Errorf("settlement = %+v", s)
	}

	rec = do(t, h, http.MethodGet, "/v1/wagers/"+wager.ID, ana, "user", nil)
	got := decodeBody[dto.WagerResponse](t, rec)
	if got.Status != "won" || got.Payout == "0.00" {
		t.Errorf("settled wager = %+v", got)
	}

	rec = do(t, h, http.MethodPost, "/v1/admin/matches/m1/settle", admin, "admin", map[string]any{"homeScore": 0, "awayScore": 1})
	if rec.Code != http.StatusConflict {
		t.Errorf("second settle = %d", rec.Code)
	}
	if e := decodeBody[dto.ErrorResponse](t, rec); e.Error != "already_scored" {
		t.Errorf("second settle error = %+v", e)
	}

	rec = do(t, h, http.MethodPost, "/v1/admin/matches/m1/undo", admin, "admin", nil)
	undo := decodeBody[dto.SettlementResponse](t, rec)
	if rec.Code != http.StatusOK || undo.Reverted == nil || !*undo.Reverted || !undo.Undone {
		t.Fatalf("undo = %d %+v", rec.Code, undo)
	}
	rec = do(t, h, http.MethodPost, "/v1/admin/matches/m1/undo", admin, "admin", nil)
	if again := decodeBody[dto.SettlementResponse](t, rec); again.Reverted == nil || *again.Reverted {
		t.Errorf("second undo = %+v", again)
	}

	rec = do(t, h, http.MethodGet, "/v1/accounts/"+season, ana, "user", nil)
	if b := decodeBody[dto.BalanceResponse](t, rec); b.Balance != "900.00" {
		t.Errorf("balance after undo = %s", b.Balance)
	}

	rec = do(t, h, http.MethodGet, "/v1/accounts/"+season+"/ledger", ana, "user", nil)
	entries := decodeBody[[]dto.LedgerEntryResponse](t, rec)
	kinds := ""
	for _, e := range entries {
		kinds += e.Kind + " "
	}
	if kinds != "GRANT STAKE PAYOUT PAYOUT_REVERSAL " {
		t.Errorf("ledger kinds = %q", kinds)
	}

	rec = do(t, h, http.MethodDelete, "/v1/wagers/"+wager.ID, ana, "user", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("cancel = %d %s", rec.Code, rec.Body)
	}
	rec = do(t, h, http.MethodGet, "/v1/wagers?seasonId="+season, ana, "user", nil)
	if ws := decodeBody[[]dto.WagerResponse](t, rec); len(ws) != 0 {
		t.Errorf("wagers after cancel = %+v", ws)
	}
}

func TestErrorMapping(t *testing.T) {
	h, _ := newTestServer(t)
	do(t, h, http.MethodPost, "/v1/accounts", ana, "user", map[string]string{"seasonId": season})

	tests := []struct {
		name       string
		method     string
		path       string
		email      string
		roles      string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"no principal", http.MethodGet, "/v1/matches/m1/quote", "", "", nil, http.StatusUnauthorized, "unauthenticated"},
		{"user on admin route", http.MethodPost, "/v1/admin/matches/m1/settle", ana, "user", map[string]int{"homeScore": 1, "awayScore": 0}, http.StatusForbidden, "forbidden"},
		{"unknown match quote", http.MethodGet, "/v1/matches/nope/quote", ana, "user", nil, http.StatusNotFound, "not_found"},
		{"invalid outcome", http.MethodPost, "/v1/wagers", ana, "user", map[string]any{"seasonId": season, "stake": "5", "legs": []map[string]string{{"matchId": "m1", "outcome": "tie"}}}, http.StatusBadRequest, "validation_error"},
		{"duplicate leg", http.MethodPost, "/v1/wagers", ana, "user", map[string]any{"seasonId": season, "stake": "5", "legs": []map[string]string{{"matchId": "m1", "outcome": "home"}, {"matchId": "m1", "outcome": "away"}}}, http.StatusConflict, "duplicate_leg"},
		{"insufficient funds", http.MethodPost, "/v1/wagers", ana, "user", map[string]any{"seasonId": season, "stake": "5000", "legs": []map[string]string{{"matchId": "m2", "outcome": "away"}}}, http.StatusUnprocessableEntity, "insufficient_funds"},
		{"no account", http.MethodGet, "/v1/accounts/2025-spring", ana, "user", nil, http.StatusNotFound, "not_found"},
		{"undo unsettled", http.MethodPost, "/v1/admin/matches/m2/undo", admin, "admin", nil, http.StatusNotFound, "not_found"},
		{"unknown field", http.MethodPost, "/v1/admin/accounts/grant", admin, "admin", map[string]string{"user": ana}, http.StatusBadRequest, "validation_error"},
		{"missing season filter", http.MethodGet, "/v1/wagers", ana, "user", nil, http.StatusBadRequest, "validation_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.email, tt.roles, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body)
			}
			if e := decodeBody[dto.ErrorResponse](t, rec); e.Error != tt.wantCode {
				t.Errorf("code = %q, want %q", e.Error, tt.wantCode)
			}
		})
	}
}

func TestAdminGrant(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodPost, "/v1/admin/accounts/grant", admin, "admin,user", map[string]string{
		"userId": "bo@campus.edu", "seasonId": season, "amount": "25.50",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("grant = %d %s", rec.Code, rec.Body)
	}
	if b := decodeBody[dto.BalanceResponse](t, rec); b.Balance != "1025.50" {
		t.Errorf("balance = %s", b.Balance)
	}
}

func TestQuoteRoute(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/v1/matches/m1/quote", ana, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("quote = %d %s", rec.Code, rec.Body)
	}
	q := decodeBody[odds.OddsQuote](t, rec)
	if sum := q.Sum(); sum < 0.999 || sum > 1.001 {
		t.Errorf("quote sums to %v", sum)
	}
	if q.Home != q.Away {
		t.Errorf("equal ratings should quote equal sides: %+v", q)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.Invalid("stake", "x"), http.StatusBadRequest},
		{fmt.Errorf("wager w1: %w", domain.ErrNotFound), http.StatusNotFound},
		{domain.ErrUndoOverdraw, http.StatusConflict},
		{domain.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{domain.ErrTransient, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

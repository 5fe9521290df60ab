// Package postgres implementa o store sobre PostgreSQL (lib/pq).
//
// AtomicUpdate abre uma transação READ COMMITTED. A liquidação lê partida,
// rating, classificação, apostas, saldos e registro com FOR UPDATE. Apostas
// e cancelamentos travam a partida com FOR SHARE e cotam sem lock; o volume
// é uma tabela só de inserção, somada na leitura.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/radieske/intramural-predictions/internal/domain"
	"github.com/radieske/intramural-predictions/internal/store"
)

//go:embed schema.sql
var schema string

// Migrate cria as tabelas que ainda não existem
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", mapErr(err))
	}
	return nil
}

// querier é o que *sql.DB e *sql.Tx têm em comum
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct{ db *sql.DB }

var _ store.Store = (*Store)(nil)

func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Ping(ctx context.Context) error { return mapErr(s.db.PingContext(ctx)) }

func (s *Store) AtomicUpdate(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin: %w", mapErr(err))
	}
	defer sqlTx.Rollback()

	if err := fn(&tx{q: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", mapErr(err))
	}
	return nil
}

// UpsertMatch é usado pela carga da agenda (fixtures locais e testes de integração)
func (s *Store) UpsertMatch(ctx context.Context, m domain.Match) error {
	return putMatch(ctx, s.db, m)
}

// mapErr traduz erros do driver para as categorias do domínio
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		// 40: serialization_failure / deadlock_detected; 08: conexão; 53: recursos; 57: admin shutdown
		case "40", "08", "53", "57":
			return fmt.Errorf("%w: %s (%s)", domain.ErrTransient, pqErr.Message, pqErr.Code)
		}
		return err
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}
	return err
}

// ---- leituras fora de transação ----

func (s *Store) GetMatch(ctx context.Context, id string) (domain.Match, error) {
	return getMatch(ctx, s.db, id, "")
}

func (s *Store) GetRating(ctx context.Context, key domain.RatingKey) (domain.Rating, error) {
	return getRating(ctx, s.db, key, "")
}

func (s *Store) GetStanding(ctx context.Context, key domain.RatingKey) (domain.Standing, error) {
	return getStanding(ctx, s.db, key, "")
}

func (s *Store) GetVolume(ctx context.Context, matchID string) (domain.MarketVolume, error) {
	return getVolume(ctx, s.db, matchID)
}

func (s *Store) GetWager(ctx context.Context, id string) (domain.Wager, error) {
	ws, err := queryWagers(ctx, s.db, `WHERE w.id = $1`, "", id)
	if err != nil {
		return domain.Wager{}, err
	}
	if len(ws) == 0 {
		return domain.Wager{}, domain.ErrNotFound
	}
	return ws[0], nil
}

func (s *Store) ListWagers(ctx context.Context, userID, seasonID string) ([]domain.Wager, error) {
	if seasonID == "" {
		return queryWagers(ctx, s.db, `WHERE w.user_id = $1`, "", userID)
	}
	return queryWagers(ctx, s.db, `WHERE w.user_id = $1 AND w.season_id = $2`, "", userID, seasonID)
}

func (s *Store) GetBalance(ctx context.Context, userID, seasonID string) (domain.Balance, error) {
	return getBalance(ctx, s.db, userID, seasonID, "")
}

func (s *Store) ListEntries(ctx context.Context, userID, seasonID string) ([]domain.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, season_id, wager_id, kind, amount, balance_after, created_at
		FROM ledger_entries WHERE user_id = $1 AND season_id = $2
		ORDER BY created_at, id`, userID, seasonID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var kind string
		if err := rows.Scan(&e.ID, &e.UserID, &e.SeasonID, &e.WagerID, &kind, &e.Amount, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, mapErr(err)
		}
		e.Kind = domain.EntryKind(kind)
		out = append(out, e)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) GetSettlement(ctx context.Context, matchID string) (domain.SettlementRecord, error) {
	return getSettlement(ctx, s.db, matchID, "")
}

func (s *Store) ScheduledMatchesFor(ctx context.Context, seasonID string, teams ...string) ([]domain.Match, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+matchCols+` FROM matches
		WHERE season_id = $1 AND status = 'scheduled'
		  AND (home_team = ANY($2) OR away_team = ANY($2))
		ORDER BY scheduled_time, id`, seasonID, pq.Array(teams))
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, m)
	}
	return out, mapErr(rows.Err())
}

// ---- transação ----

type tx struct{ q querier }

const (
	forUpdate = " FOR UPDATE"
	forShare  = " FOR SHARE"
)

func (t *tx) Match(ctx context.Context, id string) (domain.Match, error) {
	return getMatch(ctx, t.q, id, forUpdate)
}

func (t *tx) SharedMatch(ctx context.Context, id string) (domain.Match, error) {
	return getMatch(ctx, t.q, id, forShare)
}

func (t *tx) Snapshot() store.Snapshot { return snapshot{q: t.q} }

// snapshot lê pela mesma transação, sem lock
type snapshot struct{ q querier }

func (s snapshot) Rating(ctx context.Context, key domain.RatingKey) (domain.Rating, error) {
	return getRating(ctx, s.q, key, "")
}

func (s snapshot) Standing(ctx context.Context, key domain.RatingKey) (domain.Standing, error) {
	return getStanding(ctx, s.q, key, "")
}

func (s snapshot) Volume(ctx context.Context, matchID string) (domain.MarketVolume, error) {
	return getVolume(ctx, s.q, matchID)
}

func (s snapshot) Wager(ctx context.Context, id string) (domain.Wager, error) {
	ws, err := queryWagers(ctx, s.q, `WHERE w.id = $1`, "", id)
	if err != nil {
		return domain.Wager{}, err
	}
	if len(ws) == 0 {
		return domain.Wager{}, domain.ErrNotFound
	}
	return ws[0], nil
}

func (t *tx) PutMatch(ctx context.Context, m domain.Match) error { return putMatch(ctx, t.q, m) }

func (t *tx) Rating(ctx context.Context, key domain.RatingKey) (domain.Rating, error) {
	return getRating(ctx, t.q, key, forUpdate)
}

func (t *tx) PutRating(ctx context.Context, r domain.Rating) error {
	history := r.History
	if history == nil {
		history = []string{}
	}
	results := r.Results
	if results == nil {
		results = []domain.RatingResult{}
	}
	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode results %s: %w", r.Key.TeamID, err)
	}
	_, err = t.q.ExecContext(ctx, `
		INSERT INTO ratings (sport_id, season_id, team_id, value, matches_played, history, results)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sport_id, season_id, team_id) DO UPDATE
		SET value = EXCLUDED.value, matches_played = EXCLUDED.matches_played,
		    history = EXCLUDED.history, results = EXCLUDED.results`,
		r.Key.SportID, r.Key.SeasonID, r.Key.TeamID, r.Value, r.MatchesPlayed, pq.Array(history), string(payload))
	return mapErr(err)
}

func (t *tx) Standing(ctx context.Context, key domain.RatingKey) (domain.Standing, error) {
	return getStanding(ctx, t.q, key, forUpdate)
}

func (t *tx) PutStanding(ctx context.Context, s domain.Standing) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO standings (sport_id, season_id, team_id, wins, losses, draws, forfeits, points, games_played)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (sport_id, season_id, team_id) DO UPDATE
		SET wins = EXCLUDED.wins, losses = EXCLUDED.losses, draws = EXCLUDED.draws,
		    forfeits = EXCLUDED.forfeits, points = EXCLUDED.points, games_played = EXCLUDED.games_played`,
		s.Key.SportID, s.Key.SeasonID, s.Key.TeamID, s.Wins, s.Losses, s.Draws, s.Forfeits, s.Points, s.GamesPlayed)
	return mapErr(err)
}

func (t *tx) Balance(ctx context.Context, userID, seasonID string) (domain.Balance, error) {
	return getBalance(ctx, t.q, userID, seasonID, forUpdate)
}

func (t *tx) PutBalance(ctx context.Context, b domain.Balance) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO balances (user_id, season_id, amount, version) VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, season_id) DO UPDATE SET amount = EXCLUDED.amount, version = EXCLUDED.version`,
		b.UserID, b.SeasonID, b.Amount, b.Version)
	return mapErr(err)
}

func (t *tx) AppendEntry(ctx context.Context, e domain.LedgerEntry) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, user_id, season_id, wager_id, kind, amount, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.UserID, e.SeasonID, e.WagerID, string(e.Kind), e.Amount, e.BalanceAfter, e.CreatedAt)
	return mapErr(err)
}

func (t *tx) Wager(ctx context.Context, id string) (domain.Wager, error) {
	ws, err := queryWagers(ctx, t.q, `WHERE w.id = $1`, forUpdate, id)
	if err != nil {
		return domain.Wager{}, err
	}
	if len(ws) == 0 {
		return domain.Wager{}, domain.ErrNotFound
	}
	return ws[0], nil
}

func (t *tx) PutWager(ctx context.Context, w domain.Wager) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO wagers (id, user_id, season_id, stake, combined_prob, combined_moneyline, status, payout, settled_by, created_at, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, payout = EXCLUDED.payout,
		    settled_by = EXCLUDED.settled_by, settled_at = EXCLUDED.settled_at`,
		w.ID, w.UserID, w.SeasonID, w.Stake, w.CombinedProb, w.CombinedMoneyline,
		string(w.Status), w.Payout, w.SettledBy, w.CreatedAt, nullTime(w.SettledAt))
	if err != nil {
		return mapErr(err)
	}
	for i, l := range w.Legs {
		_, err := t.q.ExecContext(ctx, `
			INSERT INTO wager_legs (wager_id, position, match_id, outcome, prob, moneyline, result)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (wager_id, match_id) DO UPDATE SET result = EXCLUDED.result`,
			w.ID, i, l.MatchID, string(l.Outcome), l.Prob, l.Moneyline, string(l.Result))
		if err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func (t *tx) DeleteWager(ctx context.Context, id string) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM wagers WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *tx) WagersByMatch(ctx context.Context, matchID string) ([]domain.Wager, error) {
	return queryWagers(ctx, t.q, `WHERE w.id IN (SELECT wager_id FROM wager_legs WHERE match_id = $1)`, forUpdate, matchID)
}

func (t *tx) Volume(ctx context.Context, matchID string) (domain.MarketVolume, error) {
	return getVolume(ctx, t.q, matchID)
}

func (t *tx) AddVolume(ctx context.Context, matchID string, outcome domain.Outcome, amount decimal.Decimal, count int) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO match_volume_entries (match_id, outcome, amount, count) VALUES ($1, $2, $3, $4)`,
		matchID, string(outcome), amount, count)
	return mapErr(err)
}

func (t *tx) Settlement(ctx context.Context, matchID string) (domain.SettlementRecord, error) {
	return getSettlement(ctx, t.q, matchID, forUpdate)
}

func (t *tx) PutSettlement(ctx context.Context, rec domain.SettlementRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode settlement %s: %w", rec.MatchID, err)
	}
	_, err = t.q.ExecContext(ctx, `
		INSERT INTO settlement_records (match_id, undo_token, payload, undone, settled_at, undone_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (match_id) DO UPDATE
		SET undo_token = EXCLUDED.undo_token, payload = EXCLUDED.payload, undone = EXCLUDED.undone,
		    settled_at = EXCLUDED.settled_at, undone_at = EXCLUDED.undone_at`,
		rec.MatchID, rec.UndoToken, string(payload), rec.Undone, rec.SettledAt, nullTime(rec.UndoneAt))
	return mapErr(err)
}

// ---- helpers ----

const matchCols = `id, sport_id, season_id, home_team, away_team, scheduled_time, tier, next_match_id,
	status, outcome, home_score, away_score, is_forfeit, forfeited_by, decided_at`

type scanner interface{ Scan(dest ...any) error }

func scanMatch(sc scanner) (domain.Match, error) {
	var (
		m                    domain.Match
		tier, status, outc   string
		homeScore, awayScore sql.NullInt32
		decidedAt            sql.NullTime
	)
	err := sc.Scan(&m.ID, &m.SportID, &m.SeasonID, &m.HomeTeam, &m.AwayTeam, &m.ScheduledTime, &tier, &m.NextMatchID,
		&status, &outc, &homeScore, &awayScore, &m.IsForfeit, &m.ForfeitedBy, &decidedAt)
	if err != nil {
		return m, err
	}
	m.Tier, m.Status, m.Outcome = domain.Tier(tier), domain.MatchStatus(status), domain.Outcome(outc)
	if homeScore.Valid {
		v := int(homeScore.Int32)
		m.HomeScore = &v
	}
	if awayScore.Valid {
		v := int(awayScore.Int32)
		m.AwayScore = &v
	}
	if decidedAt.Valid {
		t := decidedAt.Time.UTC()
		m.DecidedAt = &t
	}
	return m, nil
}

func getMatch(ctx context.Context, q querier, id, lock string) (domain.Match, error) {
	m, err := scanMatch(q.QueryRowContext(ctx, `SELECT `+matchCols+` FROM matches WHERE id = $1`+lock, id))
	return m, mapErr(err)
}

func putMatch(ctx context.Context, q querier, m domain.Match) error {
	status := m.Status
	if status == "" {
		status = domain.MatchScheduled
	}
	tier := m.Tier
	if tier == "" {
		tier = domain.TierRegular
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO matches (`+matchCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, outcome = EXCLUDED.outcome,
		    home_score = EXCLUDED.home_score, away_score = EXCLUDED.away_score,
		    is_forfeit = EXCLUDED.is_forfeit, forfeited_by = EXCLUDED.forfeited_by,
		    decided_at = EXCLUDED.decided_at`,
		m.ID, m.SportID, m.SeasonID, m.HomeTeam, m.AwayTeam, m.ScheduledTime, string(tier), m.NextMatchID,
		string(status), string(m.Outcome), nullInt(m.HomeScore), nullInt(m.AwayScore), m.IsForfeit, m.ForfeitedBy, nullTime(m.DecidedAt))
	return mapErr(err)
}

func getRating(ctx context.Context, q querier, key domain.RatingKey, lock string) (domain.Rating, error) {
	r := domain.Rating{Key: key}
	var (
		history pq.StringArray
		results []byte
	)
	err := q.QueryRowContext(ctx, `
		SELECT value, matches_played, history, results FROM ratings
		WHERE sport_id = $1 AND season_id = $2 AND team_id = $3`+lock,
		key.SportID, key.SeasonID, key.TeamID).Scan(&r.Value, &r.MatchesPlayed, &history, &results)
	if err != nil {
		return domain.Rating{}, mapErr(err)
	}
	r.History = []string(history)
	if err := json.Unmarshal(results, &r.Results); err != nil {
		return domain.Rating{}, fmt.Errorf("decode results %s: %w", key.TeamID, err)
	}
	return r, nil
}

func getStanding(ctx context.Context, q querier, key domain.RatingKey, lock string) (domain.Standing, error) {
	s := domain.Standing{Key: key}
	err := q.QueryRowContext(ctx, `
		SELECT wins, losses, draws, forfeits, points, games_played FROM standings
		WHERE sport_id = $1 AND season_id = $2 AND team_id = $3`+lock,
		key.SportID, key.SeasonID, key.TeamID).Scan(&s.Wins, &s.Losses, &s.Draws, &s.Forfeits, &s.Points, &s.GamesPlayed)
	if err != nil {
		return domain.Standing{}, mapErr(err)
	}
	return s, nil
}

func getBalance(ctx context.Context, q querier, userID, seasonID, lock string) (domain.Balance, error) {
	b := domain.Balance{UserID: userID, SeasonID: seasonID}
	err := q.QueryRowContext(ctx, `
		SELECT amount, version FROM balances WHERE user_id = $1 AND season_id = $2`+lock,
		userID, seasonID).Scan(&b.Amount, &b.Version)
	if err != nil {
		return domain.Balance{}, mapErr(err)
	}
	return b, nil
}

func getVolume(ctx context.Context, q querier, matchID string) (domain.MarketVolume, error) {
	v := domain.NewMarketVolume(matchID)
	rows, err := q.QueryContext(ctx, `
		SELECT outcome, SUM(amount), SUM(count) FROM match_volume_entries
		WHERE match_id = $1 GROUP BY outcome`, matchID)
	if err != nil {
		return v, mapErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			o      string
			amount decimal.Decimal
			count  int
		)
		if err := rows.Scan(&o, &amount, &count); err != nil {
			return v, mapErr(err)
		}
		v.Amounts[domain.Outcome(o)] = amount
		v.Counts[domain.Outcome(o)] = count
	}
	return v, mapErr(rows.Err())
}

func getSettlement(ctx context.Context, q querier, matchID, lock string) (domain.SettlementRecord, error) {
	var payload []byte
	err := q.QueryRowContext(ctx, `SELECT payload FROM settlement_records WHERE match_id = $1`+lock, matchID).Scan(&payload)
	if err != nil {
		return domain.SettlementRecord{}, mapErr(err)
	}
	var rec domain.SettlementRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return rec, fmt.Errorf("decode settlement %s: %w", matchID, err)
	}
	return rec, nil
}

// queryWagers carrega as apostas do filtro e depois os legs de todas elas
func queryWagers(ctx context.Context, q querier, where, lock string, args ...any) ([]domain.Wager, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT w.id, w.user_id, w.season_id, w.stake, w.combined_prob, w.combined_moneyline,
		       w.status, w.payout, w.settled_by, w.created_at, w.settled_at
		FROM wagers w `+where+`
		ORDER BY w.created_at, w.id`+lock, args...)
	if err != nil {
		return nil, mapErr(err)
	}

	var (
		out []domain.Wager
		ids []string
		idx = map[string]int{}
	)
	for rows.Next() {
		var (
			w         domain.Wager
			status    string
			settledAt sql.NullTime
		)
		if err := rows.Scan(&w.ID, &w.UserID, &w.SeasonID, &w.Stake, &w.CombinedProb, &w.CombinedMoneyline,
			&status, &w.Payout, &w.SettledBy, &w.CreatedAt, &settledAt); err != nil {
			rows.Close()
			return nil, mapErr(err)
		}
		w.Status = domain.WagerStatus(status)
		if settledAt.Valid {
			t := settledAt.Time.UTC()
			w.SettledAt = &t
		}
		idx[w.ID] = len(out)
		ids = append(ids, w.ID)
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, mapErr(err)
	}
	rows.Close()
	if len(out) == 0 {
		return nil, nil
	}

	legRows, err := q.QueryContext(ctx, `
		SELECT wager_id, match_id, outcome, prob, moneyline, result
		FROM wager_legs WHERE wager_id = ANY($1)
		ORDER BY wager_id, position`, pq.Array(ids))
	if err != nil {
		return nil, mapErr(err)
	}
	defer legRows.Close()
	for legRows.Next() {
		var (
			wagerID, outcome, result string
			l                        domain.Leg
		)
		if err := legRows.Scan(&wagerID, &l.MatchID, &outcome, &l.Prob, &l.Moneyline, &result); err != nil {
			return nil, mapErr(err)
		}
		l.Outcome, l.Result = domain.Outcome(outcome), domain.LegResult(result)
		i := idx[wagerID]
		out[i].Legs = append(out[i].Legs, l)
	}
	return out, mapErr(legRows.Err())
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt(v *int) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*v), Valid: true}
}

// Package store define o contrato de persistência do core de previsões.
//
// Leituras fora de transação (Reader) podem ver dados levemente
// desatualizados e servem só para exibição (cotações). Toda operação que
// altera estado roda dentro de AtomicUpdate: ou todas as escritas ficam
// visíveis, ou nenhuma.
package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/radieske/intramural-predictions/internal/domain"
)

// Reader expõe leituras sem lock
type Reader interface {
	GetMatch(ctx context.Context, id string) (domain.Match, error)
	GetRating(ctx context.Context, key domain.RatingKey) (domain.Rating, error)
	GetStanding(ctx context.Context, key domain.RatingKey) (domain.Standing, error)
	GetVolume(ctx context.Context, matchID string) (domain.MarketVolume, error)
	GetWager(ctx context.Context, id string) (domain.Wager, error)
	ListWagers(ctx context.Context, userID, seasonID string) ([]domain.Wager, error)
	GetBalance(ctx context.Context, userID, seasonID string) (domain.Balance, error)
	ListEntries(ctx context.Context, userID, seasonID string) ([]domain.LedgerEntry, error)
	GetSettlement(ctx context.Context, matchID string) (domain.SettlementRecord, error)
	// ScheduledMatchesFor lista partidas ainda não decididas dos times na temporada
	ScheduledMatchesFor(ctx context.Context, seasonID string, teams ...string) ([]domain.Match, error)
}

// Snapshot lê dentro da transação sem bloquear nada. Serve para cotar os
// legs de uma aposta e localizar a aposta antes de travar as partidas.
type Snapshot interface {
	Rating(ctx context.Context, key domain.RatingKey) (domain.Rating, error)
	Standing(ctx context.Context, key domain.RatingKey) (domain.Standing, error)
	Volume(ctx context.Context, matchID string) (domain.MarketVolume, error)
	Wager(ctx context.Context, id string) (domain.Wager, error)
}

// Tx é a visão transacional. Leituras de Match, Rating, Standing, Balance e
// Wager bloqueiam a linha até o fim da transação. Registros ausentes
// retornam domain.ErrNotFound.
//
// SharedMatch é o lock de apostas e cancelamentos: vários convivem na mesma
// partida, mas nenhum junto com a liquidação (Match). Ordem de locks em toda
// operação: partidas, depois apostas, depois saldos.
type Tx interface {
	Match(ctx context.Context, id string) (domain.Match, error)
	SharedMatch(ctx context.Context, id string) (domain.Match, error)
	PutMatch(ctx context.Context, m domain.Match) error
	Snapshot() Snapshot

	Rating(ctx context.Context, key domain.RatingKey) (domain.Rating, error)
	PutRating(ctx context.Context, r domain.Rating) error

	Standing(ctx context.Context, key domain.RatingKey) (domain.Standing, error)
	PutStanding(ctx context.Context, s domain.Standing) error

	Balance(ctx context.Context, userID, seasonID string) (domain.Balance, error)
	PutBalance(ctx context.Context, b domain.Balance) error
	AppendEntry(ctx context.Context, e domain.LedgerEntry) error

	Wager(ctx context.Context, id string) (domain.Wager, error)
	PutWager(ctx context.Context, w domain.Wager) error
	DeleteWager(ctx context.Context, id string) error
	WagersByMatch(ctx context.Context, matchID string) ([]domain.Wager, error)

	Volume(ctx context.Context, matchID string) (domain.MarketVolume, error)
	// AddVolume acrescenta uma marca ao volume da partida (negativa no
	// cancelamento); marcas concorrentes não se bloqueiam
	AddVolume(ctx context.Context, matchID string, outcome domain.Outcome, amount decimal.Decimal, count int) error

	Settlement(ctx context.Context, matchID string) (domain.SettlementRecord, error)
	PutSettlement(ctx context.Context, rec domain.SettlementRecord) error
}

// Store combina leituras e a unidade atômica de escrita
type Store interface {
	Reader
	// AtomicUpdate executa fn numa transação; erro de fn desfaz tudo.
	// Não há retry interno: falhas de infraestrutura voltam como domain.ErrTransient.
	AtomicUpdate(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}

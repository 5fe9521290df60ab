// Package bootstrap abre o store escolhido por STORE_DRIVER e carrega a
// agenda de FIXTURES_FILE, quando informada.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/radieske/intramural-predictions/internal/domain"
	"github.com/radieske/intramural-predictions/internal/shared/db"
	"github.com/radieske/intramural-predictions/internal/store"
	"github.com/radieske/intramural-predictions/internal/store/memory"
	"github.com/radieske/intramural-predictions/internal/store/postgres"
)

type Options struct {
	Driver       string // "postgres" | "memory"
	PostgresDSN  string
	FixturesFile string
}

// Open devolve o store e a função que libera a conexão
func Open(ctx context.Context, opts Options, log *zap.Logger) (store.Store, func(), error) {
	fixtures, err := loadFixtures(opts.FixturesFile)
	if err != nil {
		return nil, nil, err
	}

	switch opts.Driver {
	case "memory":
		st := memory.New()
		for _, m := range fixtures {
			st.SeedMatch(m)
		}
		log.Info("memory store ready", zap.Int("fixtures", len(fixtures)))
		return st, func() {}, nil

	case "postgres":
		pg, err := db.ConnectPostgres(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, pg); err != nil {
			pg.Close()
			return nil, nil, err
		}
		st := postgres.New(pg)
		for _, m := range fixtures {
			if err := st.UpsertMatch(ctx, m); err != nil {
				pg.Close()
				return nil, nil, fmt.Errorf("seed match %s: %w", m.ID, err)
			}
		}
		log.Info("postgres connected", zap.Int("fixtures", len(fixtures)))
		return st, func() { pg.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", opts.Driver)
}

func loadFixtures(path string) ([]domain.Match, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixtures: %w", err)
	}
	defer f.Close()
	return store.ParseFixtures(f)
}

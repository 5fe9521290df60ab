package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestOpenMemoryWithFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.json")
	body := `[{"id": "m1", "sportId": "soccer", "seasonId": "2026-fall", "homeTeam": "owls", "awayTeam": "foxes", "scheduledTime": "2026-10-03T14:00:00Z"}]`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	st, closeFn, err := Open(context.Background(), Options{Driver: "memory", FixturesFile: path}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()

	m, err := st.GetMatch(context.Background(), "m1")
	if err != nil || m.HomeTeam != "owls" {
		t.Errorf("GetMatch = %+v, %v", m, err)
	}
}

func TestOpenRejects(t *testing.T) {
	if _, _, err := Open(context.Background(), Options{Driver: "sqlite"}, zap.NewNop()); err == nil {
		t.Error("unknown driver accepted")
	}
	if _, _, err := Open(context.Background(), Options{Driver: "memory", FixturesFile: "/nope/fixtures.json"}, zap.NewNop()); err == nil {
		t.Error("missing fixtures file accepted")
	}
}

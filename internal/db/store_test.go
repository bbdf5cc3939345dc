package db

import (
	"context"
	"os"
	"testing"

	"ltd2-harvester/internal/flatten"
	"ltd2-harvester/internal/ltd2"
)

// Integration test, needs a reachable Postgres via DATABASE_URL.
func TestCopyDataset(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	database, err := New(ctx)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}

	opts := flatten.Options{IncludeDetails: true}
	d := flatten.NewDataset(opts)
	g := &ltd2.Game{
		ID:   "test-match-1",
		Date: "2023-05-01T10:00:00Z",
		PlayersData: []ltd2.PlayerData{
			{PlayerID: "test-p1", Fighters: "pollywog"},
		},
	}
	if err := flatten.Flatten(g, d, opts); err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}

	if err := database.CopyDataset(ctx, d); err != nil {
		t.Fatalf("CopyDataset failed: %v", err)
	}

	var count int
	err = database.Pool().QueryRow(ctx,
		`SELECT count(*) FROM matches WHERE "_id" = $1`, "test-match-1").Scan(&count)
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count < 1 {
		t.Errorf("match row not found after copy")
	}

	if _, err := database.Pool().Exec(ctx,
		`DELETE FROM matches WHERE "_id" = $1`, "test-match-1"); err != nil {
		t.Logf("cleanup failed: %v", err)
	}
}

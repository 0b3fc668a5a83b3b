//go:build integration && postgres

package httpapi

import (
	"context"
	"net/http"
	"os"
	"testing"

	"github.com/joho/godotenv"

	app "github.com/openpledge/sponsorships/internal/app"
	"github.com/openpledge/sponsorships/internal/app/storage/postgres"
	"github.com/openpledge/sponsorships/internal/platform/database"
)

// Integration test against Postgres to ensure migrations and the extension
// workflow work with real persistence.
func TestIntegrationPostgres(t *testing.T) {
	_ = godotenv.Load() // allow .env for local runs
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration")
	}

	ctx := context.Background()
	db, err := database.Open(ctx, dsn, database.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pg := postgres.New(db)
	application, err := app.New(app.Stores{
		Sponsors:   pg,
		Programs:   pg,
		Extensions: pg,
		Audit:      pg,
	}, app.Options{}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	if err := application.Start(ctx); err != nil {
		t.Fatalf("start application: %v", err)
	}
	t.Cleanup(func() { _ = application.Stop(ctx) })

	handler := NewHandler(application)

	sponsorID := createSponsor(t, handler)
	programID := createProgram(t, handler, sponsorID, "Integration Program")
	token := createExtension(t, handler, programID, 7)

	resp := do(handler, http.MethodGet, "/extension-response?action=accept&token="+token, nil)
	if resp.Code != http.StatusOK || resp.Body.String() != "Extension approved successfully!" {
		t.Fatalf("approval failed: %d %q", resp.Code, resp.Body.String())
	}

	// The approval survives a fresh read through the persisted store.
	prog, err := application.Programs.Get(ctx, programID)
	if err != nil {
		t.Fatalf("get program: %v", err)
	}
	if got := prog.EndDate.Format("2006-01-02"); got != "2024-01-17" {
		t.Fatalf("expected persisted end date 2024-01-17, got %s", got)
	}

	// Cleanup rows so reruns stay deterministic.
	if err := application.Programs.Delete(ctx, "integration", programID); err != nil {
		t.Fatalf("delete program: %v", err)
	}
	if err := application.Sponsors.Delete(ctx, "integration", sponsorID); err != nil {
		t.Fatalf("delete sponsor: %v", err)
	}
}

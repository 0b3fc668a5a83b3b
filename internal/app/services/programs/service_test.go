package programs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/openpledge/sponsorships/internal/app/domain/program"
	"github.com/openpledge/sponsorships/internal/app/domain/sponsor"
	auditsvc "github.com/openpledge/sponsorships/internal/app/services/audit"
	"github.com/openpledge/sponsorships/internal/app/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store, sponsor.Sponsor) {
	t.Helper()

	store := memory.New()
	sp, err := store.CreateSponsor(context.Background(), sponsor.Sponsor{Name: "Acme", Email: "acme@example.com"})
	if err != nil {
		t.Fatalf("create sponsor: %v", err)
	}
	recorder := auditsvc.NewRecorder(store, nil)
	return New(store, store, recorder, nil), store, sp
}

func validProgram(sponsorID string) program.Program {
	return program.Program{
		Name:        "Winter Shelter",
		SponsorID:   sponsorID,
		DailyAmount: 1500,
		StartDate:   time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateProgram(t *testing.T) {
	svc, _, sp := newTestService(t)

	created, err := svc.Create(context.Background(), "admin", validProgram(sp.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected a generated program id")
	}
}

func TestCreateProgramValidation(t *testing.T) {
	svc, _, sp := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*program.Program)
		want   string
	}{
		{"empty name", func(p *program.Program) { p.Name = " " }, "name is required"},
		{"missing sponsor", func(p *program.Program) { p.SponsorID = "" }, "sponsor is required"},
		{"unknown sponsor", func(p *program.Program) { p.SponsorID = "nope" }, "not found"},
		{"zero amount", func(p *program.Program) { p.DailyAmount = 0 }, "must be positive"},
		{"missing dates", func(p *program.Program) { p.EndDate = time.Time{} }, "dates are required"},
		{"inverted dates", func(p *program.Program) { p.StartDate, p.EndDate = p.EndDate, p.StartDate }, "precedes"},
	}

	for _, tc := range cases {
		prog := validProgram(sp.ID)
		tc.mutate(&prog)
		if _, err := svc.Create(ctx, "admin", prog); err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error containing %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestDuplicateProgramName(t *testing.T) {
	svc, _, sp := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "admin", validProgram(sp.ID)); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := svc.Create(ctx, "admin", validProgram(sp.ID)); err == nil || !strings.Contains(err.Error(), "already in use") {
		t.Fatalf("expected duplicate name rejection, got %v", err)
	}
}

func TestUpdateKeepsOwnName(t *testing.T) {
	svc, _, sp := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "admin", validProgram(sp.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	created.DailyAmount = 2000
	if _, err := svc.Update(ctx, "admin", created); err != nil {
		t.Fatalf("update with unchanged name must pass the uniqueness check: %v", err)
	}
}

func TestDeleteProgramRecordsChange(t *testing.T) {
	svc, store, sp := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "admin", validProgram(sp.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(ctx, "admin", created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	entries, err := store.ListChanges(ctx, 0)
	if err != nil {
		t.Fatalf("list changes: %v", err)
	}
	var found bool
	for _, e := range entries {
		if e.Description == "Program deleted." && e.OldValue == created.Name {
			found = true
		}
	}
	if !found {
		t.Fatal("no audit entry for program deletion")
	}
}

package programs

import (
	"context"
	"fmt"
	"strings"

	"github.com/openpledge/sponsorships/internal/app/domain/program"
	auditsvc "github.com/openpledge/sponsorships/internal/app/services/audit"
	"github.com/openpledge/sponsorships/internal/app/storage"
	"github.com/openpledge/sponsorships/pkg/logger"
)

// Service manages sponsorship programs.
type Service struct {
	store    storage.ProgramStore
	sponsors storage.SponsorStore
	recorder *auditsvc.Recorder
	log      *logger.Logger
}

// New creates a program service.
func New(store storage.ProgramStore, sponsors storage.SponsorStore, recorder *auditsvc.Recorder, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("programs")
	}
	return &Service{store: store, sponsors: sponsors, recorder: recorder, log: log}
}

// Create registers a new program. Program names are unique across the system
// because extension notifications refer to programs by name.
func (s *Service) Create(ctx context.Context, actor string, prog program.Program) (program.Program, error) {
	if err := s.validate(ctx, prog); err != nil {
		return program.Program{}, err
	}
	if existing, err := s.store.GetProgramByName(ctx, prog.Name); err == nil && existing.ID != "" {
		return program.Program{}, fmt.Errorf("program name %q is already in use", prog.Name)
	}

	created, err := s.store.CreateProgram(ctx, prog)
	if err != nil {
		return program.Program{}, fmt.Errorf("create program: %w", err)
	}

	s.log.WithField("program_id", created.ID).
		WithField("sponsor_id", created.SponsorID).
		Info("program created")
	s.recorder.Record(ctx, "Program created.", actor, "", created.Name)
	return created, nil
}

// Update replaces a program's mutable fields.
func (s *Service) Update(ctx context.Context, actor string, prog program.Program) (program.Program, error) {
	if strings.TrimSpace(prog.ID) == "" {
		return program.Program{}, fmt.Errorf("program id is required")
	}
	if err := s.validate(ctx, prog); err != nil {
		return program.Program{}, err
	}
	if existing, err := s.store.GetProgramByName(ctx, prog.Name); err == nil && existing.ID != "" && existing.ID != prog.ID {
		return program.Program{}, fmt.Errorf("program name %q is already in use", prog.Name)
	}

	previous, err := s.store.GetProgram(ctx, prog.ID)
	if err != nil {
		return program.Program{}, err
	}

	updated, err := s.store.UpdateProgram(ctx, prog)
	if err != nil {
		return program.Program{}, fmt.Errorf("update program: %w", err)
	}

	s.log.WithField("program_id", updated.ID).Info("program updated")
	s.recorder.Record(ctx, "Program updated.", actor, previous.Name, updated.Name)
	return updated, nil
}

// Get fetches a program by id.
func (s *Service) Get(ctx context.Context, id string) (program.Program, error) {
	return s.store.GetProgram(ctx, id)
}

// GetByName fetches a program by its unique name.
func (s *Service) GetByName(ctx context.Context, name string) (program.Program, error) {
	return s.store.GetProgramByName(ctx, name)
}

// List returns programs, optionally filtered by sponsor.
func (s *Service) List(ctx context.Context, sponsorID string) ([]program.Program, error) {
	return s.store.ListPrograms(ctx, sponsorID)
}

// Delete removes a program.
func (s *Service) Delete(ctx context.Context, actor, id string) error {
	previous, err := s.store.GetProgram(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteProgram(ctx, id); err != nil {
		return fmt.Errorf("delete program: %w", err)
	}

	s.log.WithField("program_id", id).Info("program deleted")
	s.recorder.Record(ctx, "Program deleted.", actor, previous.Name, "")
	return nil
}

func (s *Service) validate(ctx context.Context, prog program.Program) error {
	if strings.TrimSpace(prog.Name) == "" {
		return fmt.Errorf("program name is required")
	}
	if strings.TrimSpace(prog.SponsorID) == "" {
		return fmt.Errorf("program sponsor is required")
	}
	if _, err := s.sponsors.GetSponsor(ctx, prog.SponsorID); err != nil {
		return fmt.Errorf("sponsor %s: %w", prog.SponsorID, err)
	}
	if prog.DailyAmount <= 0 {
		return fmt.Errorf("daily amount must be positive")
	}
	if prog.StartDate.IsZero() || prog.EndDate.IsZero() {
		return fmt.Errorf("program start and end dates are required")
	}
	if prog.EndDate.Before(prog.StartDate) {
		return fmt.Errorf("program end date precedes its start date")
	}
	return nil
}

package sponsors

import (
	"context"
	"fmt"
	"strings"

	"github.com/openpledge/sponsorships/internal/app/domain/sponsor"
	auditsvc "github.com/openpledge/sponsorships/internal/app/services/audit"
	"github.com/openpledge/sponsorships/internal/app/storage"
	"github.com/openpledge/sponsorships/pkg/logger"
)

// Service manages sponsor records.
type Service struct {
	store    storage.SponsorStore
	recorder *auditsvc.Recorder
	log      *logger.Logger
}

// New creates a sponsor service.
func New(store storage.SponsorStore, recorder *auditsvc.Recorder, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("sponsors")
	}
	return &Service{store: store, recorder: recorder, log: log}
}

// Create registers a new sponsor.
func (s *Service) Create(ctx context.Context, actor string, sp sponsor.Sponsor) (sponsor.Sponsor, error) {
	if err := validate(sp); err != nil {
		return sponsor.Sponsor{}, err
	}

	created, err := s.store.CreateSponsor(ctx, sp)
	if err != nil {
		return sponsor.Sponsor{}, fmt.Errorf("create sponsor: %w", err)
	}

	s.log.WithField("sponsor_id", created.ID).Info("sponsor created")
	s.recorder.Record(ctx, "Sponsor created.", actor, "", created.Name)
	return created, nil
}

// Update replaces a sponsor's mutable fields.
func (s *Service) Update(ctx context.Context, actor string, sp sponsor.Sponsor) (sponsor.Sponsor, error) {
	if strings.TrimSpace(sp.ID) == "" {
		return sponsor.Sponsor{}, fmt.Errorf("sponsor id is required")
	}
	if err := validate(sp); err != nil {
		return sponsor.Sponsor{}, err
	}

	previous, err := s.store.GetSponsor(ctx, sp.ID)
	if err != nil {
		return sponsor.Sponsor{}, err
	}

	updated, err := s.store.UpdateSponsor(ctx, sp)
	if err != nil {
		return sponsor.Sponsor{}, fmt.Errorf("update sponsor: %w", err)
	}

	s.log.WithField("sponsor_id", updated.ID).Info("sponsor updated")
	s.recorder.Record(ctx, "Sponsor updated.", actor, previous.Name, updated.Name)
	return updated, nil
}

// Get fetches a sponsor by id.
func (s *Service) Get(ctx context.Context, id string) (sponsor.Sponsor, error) {
	return s.store.GetSponsor(ctx, id)
}

// List returns all sponsors.
func (s *Service) List(ctx context.Context) ([]sponsor.Sponsor, error) {
	return s.store.ListSponsors(ctx)
}

// Delete removes a sponsor.
func (s *Service) Delete(ctx context.Context, actor, id string) error {
	previous, err := s.store.GetSponsor(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSponsor(ctx, id); err != nil {
		return fmt.Errorf("delete sponsor: %w", err)
	}

	s.log.WithField("sponsor_id", id).Info("sponsor deleted")
	s.recorder.Record(ctx, "Sponsor deleted.", actor, previous.Name, "")
	return nil
}

func validate(sp sponsor.Sponsor) error {
	if strings.TrimSpace(sp.Name) == "" {
		return fmt.Errorf("sponsor name is required")
	}
	if strings.TrimSpace(sp.Email) == "" {
		return fmt.Errorf("sponsor email is required")
	}
	if !strings.Contains(sp.Email, "@") {
		return fmt.Errorf("sponsor email %q is not a valid address", sp.Email)
	}
	return nil
}

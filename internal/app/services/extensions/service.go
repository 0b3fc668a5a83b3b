package extensions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openpledge/sponsorships/internal/app/domain/extension"
	"github.com/openpledge/sponsorships/internal/app/domain/program"
	"github.com/openpledge/sponsorships/internal/app/metrics"
	"github.com/openpledge/sponsorships/internal/app/notify"
	auditsvc "github.com/openpledge/sponsorships/internal/app/services/audit"
	"github.com/openpledge/sponsorships/internal/app/storage"
	"github.com/openpledge/sponsorships/pkg/logger"
)

// DateLayout is the format used for end dates in audit entries.
const DateLayout = "2006-01-02"

// Service owns the extension-request workflow: it creates tokenized requests,
// notifies the sponsor, and resolves requests when the sponsor follows one of
// the emailed links.
type Service struct {
	programs storage.ProgramStore
	sponsors storage.SponsorStore
	store    storage.ExtensionStore
	recorder *auditsvc.Recorder
	log      *logger.Logger

	dispatcher notify.Dispatcher
	baseURL    string
}

// New creates a configured extension service. The notification dispatcher is
// attached separately because it is optional in tests and tooling.
func New(programs storage.ProgramStore, sponsors storage.SponsorStore, store storage.ExtensionStore, recorder *auditsvc.Recorder, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("extensions")
	}
	return &Service{
		programs: programs,
		sponsors: sponsors,
		store:    store,
		recorder: recorder,
		log:      log,
	}
}

// AttachDispatcher wires the outbound notification channel. baseURL is the
// externally reachable URL of the approval endpoint, without query parameters.
func (s *Service) AttachDispatcher(d notify.Dispatcher, baseURL string) {
	s.dispatcher = d
	s.baseURL = strings.TrimRight(baseURL, "/")
}

// CreateRequest records a PENDING extension request for the program and
// returns it, token included. The sponsor notification is dispatched after
// the request is durably recorded; a delivery failure is logged and counted
// but never undoes the request.
func (s *Service) CreateRequest(ctx context.Context, actor, programID string, daysRequested int) (extension.Request, error) {
	if daysRequested <= 0 {
		return extension.Request{}, fmt.Errorf("%w: days requested must be positive", extension.ErrInvalidInput)
	}

	prog, err := s.programs.GetProgram(ctx, programID)
	if errors.Is(err, program.ErrNotFound) {
		return extension.Request{}, fmt.Errorf("%w: %s", extension.ErrProgramNotFound, programID)
	}
	if err != nil {
		return extension.Request{}, fmt.Errorf("load program %s: %w", programID, err)
	}

	req := extension.Request{
		Token:         NewToken(),
		ProgramID:     prog.ID,
		DaysRequested: daysRequested,
	}
	req, err = s.store.CreateExtensionRequest(ctx, req)
	if err != nil {
		return extension.Request{}, err
	}

	metrics.RecordExtensionRequest()
	s.log.WithField("program_id", prog.ID).
		WithField("days_requested", daysRequested).
		Info("extension request created")

	s.recorder.Record(ctx, "Extension requested for program "+prog.Name+".", actor, "", fmt.Sprintf("%d days", daysRequested))

	s.notifySponsor(ctx, prog, req)
	return req, nil
}

// Resolve transitions a PENDING request to a terminal state. Resolving an
// already-terminal request mutates nothing and reports AlreadyResolved on the
// result rather than failing, so a sponsor clicking a link twice gets a calm
// answer. On approval the program end date advances by the requested days,
// computed from the end date at the moment of approval.
func (s *Service) Resolve(ctx context.Context, token string, decision extension.Decision, actor string) (extension.Resolution, error) {
	switch decision {
	case extension.DecisionApprove:
		return s.approve(ctx, token, actor)
	case extension.DecisionReject:
		return s.reject(ctx, token, actor)
	default:
		return extension.Resolution{}, fmt.Errorf("%w: unknown decision %q", extension.ErrInvalidInput, decision)
	}
}

func (s *Service) approve(ctx context.Context, token, actor string) (extension.Resolution, error) {
	approval, err := s.store.ApproveExtensionRequest(ctx, token)
	if errors.Is(err, extension.ErrAlreadyResolved) {
		return s.alreadyResolved(ctx, token)
	}
	if err != nil {
		if errors.Is(err, extension.ErrProgramNotFound) {
			s.log.WithField("token", token).Warn("program missing at approval; request left pending")
		}
		return extension.Resolution{}, err
	}

	actor = s.resolveActor(ctx, actor, approval.Request.ProgramID)
	s.recorder.Record(ctx, "Extension request approved.", actor,
		approval.OldEndDate.Format(DateLayout), approval.NewEndDate.Format(DateLayout))
	metrics.RecordExtensionResolution("approved")
	s.log.WithField("token", token).
		WithField("program_id", approval.Request.ProgramID).
		WithField("new_end_date", approval.NewEndDate.Format(DateLayout)).
		Info("extension request approved")

	return extension.Resolution{
		Request:    approval.Request,
		OldEndDate: approval.OldEndDate,
		NewEndDate: approval.NewEndDate,
	}, nil
}

func (s *Service) reject(ctx context.Context, token, actor string) (extension.Resolution, error) {
	req, err := s.store.RejectExtensionRequest(ctx, token)
	if errors.Is(err, extension.ErrAlreadyResolved) {
		return s.alreadyResolved(ctx, token)
	}
	if err != nil {
		return extension.Resolution{}, err
	}

	actor = s.resolveActor(ctx, actor, req.ProgramID)
	s.recorder.Record(ctx, "Extension request denied.", actor,
		string(extension.StatusPending), string(extension.StatusRejected))
	metrics.RecordExtensionResolution("rejected")
	s.log.WithField("token", token).
		WithField("program_id", req.ProgramID).
		Info("extension request denied")

	return extension.Resolution{Request: req}, nil
}

func (s *Service) alreadyResolved(ctx context.Context, token string) (extension.Resolution, error) {
	req, err := s.store.GetExtensionRequest(ctx, token)
	if err != nil {
		return extension.Resolution{}, err
	}
	metrics.RecordExtensionResolution("already_resolved")
	return extension.Resolution{Request: req, AlreadyResolved: true}, nil
}

// Get fetches a request by token.
func (s *Service) Get(ctx context.Context, token string) (extension.Request, error) {
	return s.store.GetExtensionRequest(ctx, token)
}

// List lists requests, optionally filtered by program.
func (s *Service) List(ctx context.Context, programID string) ([]extension.Request, error) {
	return s.store.ListExtensionRequests(ctx, programID)
}

// resolveActor fills in audit attribution when the caller is anonymous, as it
// is on the approval endpoint where token possession is the only identity.
// The request is attributed to the sponsor the notification went to.
func (s *Service) resolveActor(ctx context.Context, actor, programID string) string {
	if actor != "" {
		return actor
	}
	if prog, err := s.programs.GetProgram(ctx, programID); err == nil {
		if sp, err := s.sponsors.GetSponsor(ctx, prog.SponsorID); err == nil && sp.Email != "" {
			return sp.Email
		}
	}
	return "sponsor"
}

func (s *Service) notifySponsor(ctx context.Context, prog program.Program, req extension.Request) {
	if s.dispatcher == nil {
		s.log.WithField("token", req.Token).Warn("no notification dispatcher attached; sponsor not notified")
		return
	}

	sp, err := s.sponsors.GetSponsor(ctx, prog.SponsorID)
	if err != nil {
		metrics.RecordNotificationFailure()
		s.log.WithError(err).WithField("program_id", prog.ID).Warn("sponsor lookup for notification failed")
		return
	}

	body := notify.BuildExtensionEmail(sp.Name, prog.Name, s.baseURL, req.Token, req.DaysRequested)
	if err := s.dispatcher.Send(ctx, sp.Email, notify.ExtensionEmailSubject, body); err != nil {
		metrics.RecordNotificationFailure()
		s.log.WithError(err).
			WithField("program_id", prog.ID).
			WithField("sponsor_id", sp.ID).
			Warn("extension notification failed")
	}
}

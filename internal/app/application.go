package app

import (
	"context"
	"fmt"
	"time"

	"github.com/openpledge/sponsorships/internal/app/notify"
	auditsvc "github.com/openpledge/sponsorships/internal/app/services/audit"
	"github.com/openpledge/sponsorships/internal/app/services/extensions"
	"github.com/openpledge/sponsorships/internal/app/services/programs"
	"github.com/openpledge/sponsorships/internal/app/services/sponsors"
	"github.com/openpledge/sponsorships/internal/app/services/statistics"
	"github.com/openpledge/sponsorships/internal/app/storage"
	"github.com/openpledge/sponsorships/internal/app/storage/memory"
	"github.com/openpledge/sponsorships/internal/app/system"
	"github.com/openpledge/sponsorships/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Sponsors   storage.SponsorStore
	Programs   storage.ProgramStore
	Extensions storage.ExtensionStore
	Audit      storage.AuditStore
}

// Options carries optional application wiring.
type Options struct {
	// Dispatcher delivers extension-request notifications to sponsors.
	// Nil disables outbound mail; requests are still created.
	Dispatcher notify.Dispatcher
	// ApprovalBaseURL is the externally reachable URL of the approval
	// endpoint embedded in notification links.
	ApprovalBaseURL string
	// AuditSink receives a copy of every audit entry, e.g. a JSONL file.
	AuditSink auditsvc.Sink
	// PendingTTL, when positive, enables the sweeper that rejects PENDING
	// extension requests older than the TTL.
	PendingTTL time.Duration
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Sponsors   *sponsors.Service
	Programs   *programs.Service
	Extensions *extensions.Service
	Statistics *statistics.Service
	Audit      *auditsvc.Recorder
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Sponsors == nil {
		stores.Sponsors = mem
	}
	if stores.Programs == nil {
		stores.Programs = mem
	}
	if stores.Extensions == nil {
		stores.Extensions = mem
	}
	if stores.Audit == nil {
		stores.Audit = mem
	}

	manager := system.NewManager()

	recorder := auditsvc.NewRecorder(stores.Audit, log)
	if opts.AuditSink != nil {
		recorder = recorder.WithSink(opts.AuditSink)
	}

	sponsorService := sponsors.New(stores.Sponsors, recorder, log)
	programService := programs.New(stores.Programs, stores.Sponsors, recorder, log)
	extensionService := extensions.New(stores.Programs, stores.Sponsors, stores.Extensions, recorder, log)
	statisticsService := statistics.New(stores.Sponsors, stores.Programs, stores.Extensions, log)
	if opts.Dispatcher != nil {
		extensionService.AttachDispatcher(opts.Dispatcher, opts.ApprovalBaseURL)
	} else {
		log.Warn("no notification dispatcher configured; sponsors will not receive extension mails")
	}

	for _, name := range []string{"sponsors", "programs", "extensions", "statistics"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	if opts.PendingTTL > 0 {
		sweeper := extensions.NewSweeper(stores.Extensions, recorder, opts.PendingTTL, log)
		if err := manager.Register(sweeper); err != nil {
			return nil, fmt.Errorf("register %s: %w", sweeper.Name(), err)
		}
	}

	return &Application{
		manager:    manager,
		log:        log,
		Sponsors:   sponsorService,
		Programs:   programService,
		Extensions: extensionService,
		Statistics: statisticsService,
		Audit:      recorder,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	app "github.com/openpledge/sponsorships/internal/app"
	"github.com/openpledge/sponsorships/internal/app/httpapi"
	"github.com/openpledge/sponsorships/internal/app/metrics"
	"github.com/openpledge/sponsorships/internal/app/notify"
	auditsvc "github.com/openpledge/sponsorships/internal/app/services/audit"
	"github.com/openpledge/sponsorships/internal/app/storage/postgres"
	"github.com/openpledge/sponsorships/internal/app/userstore"
	"github.com/openpledge/sponsorships/internal/config"
	"github.com/openpledge/sponsorships/internal/platform/database"
	"github.com/openpledge/sponsorships/pkg/logger"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	app        *app.Application
	httpServer *http.Server
	db         *sql.DB
	auditSink  *auditsvc.FileSink
}

// NewApplication constructs the application from configuration: database,
// migrations, services, notification dispatcher and HTTP server.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	var db *sql.DB
	stores := app.Stores{}
	if cfg.Database.DSN != "" {
		db, err = database.Open(ctx, cfg.Database.DSN, database.Config{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := database.Migrate(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		pg := postgres.New(db)
		stores = app.Stores{Sponsors: pg, Programs: pg, Extensions: pg, Audit: pg}
	} else {
		log.Warn("DATABASE_URL not set; running on the in-memory store")
	}

	opts := app.Options{
		ApprovalBaseURL: cfg.Extension.BaseURL,
		PendingTTL:      cfg.Extension.PendingTTL.Std(),
	}

	if cfg.SMTP.Host != "" {
		dispatcher, err := notify.NewSMTPDispatcher(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("configure smtp dispatcher: %w", err)
		}
		opts.Dispatcher = dispatcher
	}

	var auditSink *auditsvc.FileSink
	if cfg.Audit.FilePath != "" {
		auditSink, err = auditsvc.NewFileSink(cfg.Audit.FilePath)
		if err != nil {
			return nil, fmt.Errorf("open audit file: %w", err)
		}
		opts.AuditSink = auditSink
	}

	application, err := app.New(stores, opts, log)
	if err != nil {
		return nil, fmt.Errorf("build application: %w", err)
	}

	api := httpapi.NewHandler(application)
	if cfg.Users.FilePath != "" {
		users, err := userstore.Open(cfg.Users.FilePath, log)
		if err != nil {
			return nil, fmt.Errorf("open user store: %w", err)
		}
		if users.Count() > 0 {
			api = httpapi.WithBasicAuth(api, users)
		} else {
			log.Warn("user file has no accounts; API mutations run unauthenticated")
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", api)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           metrics.InstrumentHandler(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Application{
		cfg:        cfg,
		log:        log,
		app:        application,
		httpServer: httpServer,
		db:         db,
		auditSink:  auditSink,
	}, nil
}

// Run starts the managed services and the HTTP server, blocking until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the HTTP server, the services and the database connection.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("http server shutdown")
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("stopping services")
	}
	if a.auditSink != nil {
		if err := a.auditSink.Close(); err != nil {
			a.log.WithError(err).Warn("closing audit sink")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("closing database connection")
			return err
		}
	}
	return nil
}

package storage

import (
	"context"
	"time"

	"github.com/openpledge/sponsorships/internal/app/domain/audit"
	"github.com/openpledge/sponsorships/internal/app/domain/extension"
	"github.com/openpledge/sponsorships/internal/app/domain/program"
	"github.com/openpledge/sponsorships/internal/app/domain/sponsor"
)

// SponsorStore persists sponsor records.
type SponsorStore interface {
	CreateSponsor(ctx context.Context, sp sponsor.Sponsor) (sponsor.Sponsor, error)
	UpdateSponsor(ctx context.Context, sp sponsor.Sponsor) (sponsor.Sponsor, error)
	GetSponsor(ctx context.Context, id string) (sponsor.Sponsor, error)
	ListSponsors(ctx context.Context) ([]sponsor.Sponsor, error)
	DeleteSponsor(ctx context.Context, id string) error
}

// ProgramStore persists sponsorship programs.
type ProgramStore interface {
	CreateProgram(ctx context.Context, prog program.Program) (program.Program, error)
	UpdateProgram(ctx context.Context, prog program.Program) (program.Program, error)
	GetProgram(ctx context.Context, id string) (program.Program, error)
	GetProgramByName(ctx context.Context, name string) (program.Program, error)
	ListPrograms(ctx context.Context, sponsorID string) ([]program.Program, error)
	DeleteProgram(ctx context.Context, id string) error
}

// ExtensionStore persists extension requests and owns the atomicity of their
// resolution. ApproveExtensionRequest must flip the status and advance the
// program end date as one unit: either both changes commit or neither does.
// Both resolve primitives must serialize racing callers on the same token so
// that exactly one observes PENDING; the loser gets ErrAlreadyResolved.
type ExtensionStore interface {
	CreateExtensionRequest(ctx context.Context, req extension.Request) (extension.Request, error)
	GetExtensionRequest(ctx context.Context, token string) (extension.Request, error)
	ListExtensionRequests(ctx context.Context, programID string) ([]extension.Request, error)
	ListPendingRequestsBefore(ctx context.Context, cutoff time.Time) ([]extension.Request, error)

	ApproveExtensionRequest(ctx context.Context, token string) (extension.Approval, error)
	RejectExtensionRequest(ctx context.Context, token string) (extension.Request, error)
}

// AuditStore persists the append-only change log.
type AuditStore interface {
	AppendChange(ctx context.Context, entry audit.Entry) (audit.Entry, error)
	ListChanges(ctx context.Context, limit int) ([]audit.Entry, error)
}

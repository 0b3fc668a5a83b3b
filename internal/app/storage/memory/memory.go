package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openpledge/sponsorships/internal/app/domain/audit"
	"github.com/openpledge/sponsorships/internal/app/domain/extension"
	"github.com/openpledge/sponsorships/internal/app/domain/program"
	"github.com/openpledge/sponsorships/internal/app/domain/sponsor"
	"github.com/openpledge/sponsorships/internal/app/storage"
)

// Store is a thread-safe in-memory persistence layer implementing the storage
// interfaces defined in the parent package. It is intended for tests and
// prototyping and deliberately keeps the implementation simple. The single
// mutex makes every resolve primitive atomic, mirroring the transaction
// boundary of the SQL store.
type Store struct {
	mu         sync.RWMutex
	sponsors   map[string]sponsor.Sponsor
	programs   map[string]program.Program
	extensions map[string]extension.Request
	changes    []audit.Entry
}

var _ storage.SponsorStore = (*Store)(nil)
var _ storage.ProgramStore = (*Store)(nil)
var _ storage.ExtensionStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		sponsors:   make(map[string]sponsor.Sponsor),
		programs:   make(map[string]program.Program),
		extensions: make(map[string]extension.Request),
	}
}

// SponsorStore implementation -------------------------------------------------

func (s *Store) CreateSponsor(_ context.Context, sp sponsor.Sponsor) (sponsor.Sponsor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sp.ID == "" {
		sp.ID = uuid.NewString()
	} else if _, exists := s.sponsors[sp.ID]; exists {
		return sponsor.Sponsor{}, fmt.Errorf("sponsor %s already exists", sp.ID)
	}

	now := time.Now().UTC()
	sp.CreatedAt = now
	sp.UpdatedAt = now
	s.sponsors[sp.ID] = sp
	return sp, nil
}

func (s *Store) UpdateSponsor(_ context.Context, sp sponsor.Sponsor) (sponsor.Sponsor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.sponsors[sp.ID]
	if !ok {
		return sponsor.Sponsor{}, fmt.Errorf("sponsor %s not found", sp.ID)
	}
	sp.CreatedAt = original.CreatedAt
	sp.UpdatedAt = time.Now().UTC()
	s.sponsors[sp.ID] = sp
	return sp, nil
}

func (s *Store) GetSponsor(_ context.Context, id string) (sponsor.Sponsor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sp, ok := s.sponsors[id]
	if !ok {
		return sponsor.Sponsor{}, fmt.Errorf("sponsor %s not found", id)
	}
	return sp, nil
}

func (s *Store) ListSponsors(_ context.Context) ([]sponsor.Sponsor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]sponsor.Sponsor, 0, len(s.sponsors))
	for _, sp := range s.sponsors {
		result = append(result, sp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) DeleteSponsor(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sponsors[id]; !ok {
		return fmt.Errorf("sponsor %s not found", id)
	}
	delete(s.sponsors, id)
	return nil
}

// ProgramStore implementation -------------------------------------------------

func (s *Store) CreateProgram(_ context.Context, prog program.Program) (program.Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prog.ID == "" {
		prog.ID = uuid.NewString()
	} else if _, exists := s.programs[prog.ID]; exists {
		return program.Program{}, fmt.Errorf("program %s already exists", prog.ID)
	}

	now := time.Now().UTC()
	prog.CreatedAt = now
	prog.UpdatedAt = now
	s.programs[prog.ID] = prog
	return prog, nil
}

func (s *Store) UpdateProgram(_ context.Context, prog program.Program) (program.Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.programs[prog.ID]
	if !ok {
		return program.Program{}, fmt.Errorf("program %s not found", prog.ID)
	}
	prog.CreatedAt = original.CreatedAt
	prog.UpdatedAt = time.Now().UTC()
	s.programs[prog.ID] = prog
	return prog, nil
}

func (s *Store) GetProgram(_ context.Context, id string) (program.Program, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getProgramLocked(id)
}

func (s *Store) getProgramLocked(id string) (program.Program, error) {
	prog, ok := s.programs[id]
	if !ok {
		return program.Program{}, fmt.Errorf("program %s: %w", id, program.ErrNotFound)
	}
	return prog, nil
}

func (s *Store) GetProgramByName(_ context.Context, name string) (program.Program, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, prog := range s.programs {
		if prog.Name == name {
			return prog, nil
		}
	}
	return program.Program{}, fmt.Errorf("program %q: %w", name, program.ErrNotFound)
}

func (s *Store) ListPrograms(_ context.Context, sponsorID string) ([]program.Program, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]program.Program, 0)
	for _, prog := range s.programs {
		if sponsorID == "" || prog.SponsorID == sponsorID {
			result = append(result, prog)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) DeleteProgram(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.programs[id]; !ok {
		return fmt.Errorf("program %s not found", id)
	}
	delete(s.programs, id)
	return nil
}

// ExtensionStore implementation -----------------------------------------------

func (s *Store) CreateExtensionRequest(_ context.Context, req extension.Request) (extension.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Token == "" {
		return extension.Request{}, fmt.Errorf("extension request token is required")
	}
	if _, exists := s.extensions[req.Token]; exists {
		return extension.Request{}, fmt.Errorf("extension request token %s already exists", req.Token)
	}

	now := time.Now().UTC()
	req.Status = extension.StatusPending
	req.CreatedAt = now
	req.UpdatedAt = now
	req.ResolvedAt = time.Time{}
	s.extensions[req.Token] = req
	return req, nil
}

func (s *Store) GetExtensionRequest(_ context.Context, token string) (extension.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.extensions[token]
	if !ok {
		return extension.Request{}, extension.ErrNotFound
	}
	return req, nil
}

func (s *Store) ListExtensionRequests(_ context.Context, programID string) ([]extension.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]extension.Request, 0)
	for _, req := range s.extensions {
		if programID == "" || req.ProgramID == programID {
			result = append(result, req)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) ListPendingRequestsBefore(_ context.Context, cutoff time.Time) ([]extension.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]extension.Request, 0)
	for _, req := range s.extensions {
		if req.Status == extension.StatusPending && req.CreatedAt.Before(cutoff) {
			result = append(result, req)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) ApproveExtensionRequest(_ context.Context, token string) (extension.Approval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.extensions[token]
	if !ok {
		return extension.Approval{}, extension.ErrNotFound
	}
	if req.Status.Terminal() {
		return extension.Approval{}, extension.ErrAlreadyResolved
	}

	prog, err := s.getProgramLocked(req.ProgramID)
	if err != nil {
		return extension.Approval{}, extension.ErrProgramNotFound
	}

	now := time.Now().UTC()
	oldEnd := prog.EndDate
	newEnd := oldEnd.AddDate(0, 0, req.DaysRequested)

	prog.EndDate = newEnd
	prog.UpdatedAt = now
	s.programs[prog.ID] = prog

	req.Status = extension.StatusApproved
	req.UpdatedAt = now
	req.ResolvedAt = now
	s.extensions[token] = req

	return extension.Approval{Request: req, OldEndDate: oldEnd, NewEndDate: newEnd}, nil
}

func (s *Store) RejectExtensionRequest(_ context.Context, token string) (extension.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.extensions[token]
	if !ok {
		return extension.Request{}, extension.ErrNotFound
	}
	if req.Status.Terminal() {
		return extension.Request{}, extension.ErrAlreadyResolved
	}

	now := time.Now().UTC()
	req.Status = extension.StatusRejected
	req.UpdatedAt = now
	req.ResolvedAt = now
	s.extensions[token] = req
	return req, nil
}

// AuditStore implementation ---------------------------------------------------

func (s *Store) AppendChange(_ context.Context, entry audit.Entry) (audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	s.changes = append(s.changes, entry)
	return entry, nil
}

func (s *Store) ListChanges(_ context.Context, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.changes
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]audit.Entry, len(entries))
	copy(out, entries)
	return out, nil
}

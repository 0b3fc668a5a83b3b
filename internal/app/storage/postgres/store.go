package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openpledge/sponsorships/internal/app/domain/audit"
	"github.com/openpledge/sponsorships/internal/app/domain/extension"
	"github.com/openpledge/sponsorships/internal/app/domain/program"
	"github.com/openpledge/sponsorships/internal/app/domain/sponsor"
	"github.com/openpledge/sponsorships/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.SponsorStore = (*Store)(nil)
var _ storage.ProgramStore = (*Store)(nil)
var _ storage.ExtensionStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- SponsorStore -----------------------------------------------------------

func (s *Store) CreateSponsor(ctx context.Context, sp sponsor.Sponsor) (sponsor.Sponsor, error) {
	if sp.ID == "" {
		sp.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sp.CreatedAt = now
	sp.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sponsors (id, name, email, city, street, house, contact_first_name, contact_last_name, contact_date_of_birth, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, sp.ID, sp.Name, sp.Email, sp.City, sp.Street, sp.House,
		sp.Contact.FirstName, sp.Contact.LastName, toNullTime(sp.Contact.DateOfBirth), sp.CreatedAt, sp.UpdatedAt)
	if err != nil {
		return sponsor.Sponsor{}, err
	}
	return sp, nil
}

func (s *Store) UpdateSponsor(ctx context.Context, sp sponsor.Sponsor) (sponsor.Sponsor, error) {
	existing, err := s.GetSponsor(ctx, sp.ID)
	if err != nil {
		return sponsor.Sponsor{}, err
	}
	sp.CreatedAt = existing.CreatedAt
	sp.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE sponsors
		SET name = $2, email = $3, city = $4, street = $5, house = $6,
		    contact_first_name = $7, contact_last_name = $8, contact_date_of_birth = $9, updated_at = $10
		WHERE id = $1
	`, sp.ID, sp.Name, sp.Email, sp.City, sp.Street, sp.House,
		sp.Contact.FirstName, sp.Contact.LastName, toNullTime(sp.Contact.DateOfBirth), sp.UpdatedAt)
	if err != nil {
		return sponsor.Sponsor{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sponsor.Sponsor{}, sql.ErrNoRows
	}
	return sp, nil
}

func (s *Store) GetSponsor(ctx context.Context, id string) (sponsor.Sponsor, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, city, street, house, contact_first_name, contact_last_name, contact_date_of_birth, created_at, updated_at
		FROM sponsors
		WHERE id = $1
	`, id)
	return scanSponsor(row)
}

func (s *Store) ListSponsors(ctx context.Context) ([]sponsor.Sponsor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, city, street, house, contact_first_name, contact_last_name, contact_date_of_birth, created_at, updated_at
		FROM sponsors
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []sponsor.Sponsor
	for rows.Next() {
		sp, err := scanSponsor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sp)
	}
	return result, rows.Err()
}

func (s *Store) DeleteSponsor(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sponsors WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSponsor(row rowScanner) (sponsor.Sponsor, error) {
	var (
		sp  sponsor.Sponsor
		dob sql.NullTime
	)
	if err := row.Scan(&sp.ID, &sp.Name, &sp.Email, &sp.City, &sp.Street, &sp.House,
		&sp.Contact.FirstName, &sp.Contact.LastName, &dob, &sp.CreatedAt, &sp.UpdatedAt); err != nil {
		return sponsor.Sponsor{}, err
	}
	if dob.Valid {
		sp.Contact.DateOfBirth = dob.Time.UTC()
	}
	return sp, nil
}

// --- ProgramStore -----------------------------------------------------------

func (s *Store) CreateProgram(ctx context.Context, prog program.Program) (program.Program, error) {
	if prog.SponsorID == "" {
		return program.Program{}, errors.New("sponsor_id required")
	}
	if prog.ID == "" {
		prog.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	prog.CreatedAt = now
	prog.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO programs (id, name, sponsor_id, daily_amount, description, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, prog.ID, prog.Name, prog.SponsorID, prog.DailyAmount, prog.Description, prog.StartDate, prog.EndDate, prog.CreatedAt, prog.UpdatedAt)
	if err != nil {
		return program.Program{}, err
	}
	return prog, nil
}

func (s *Store) UpdateProgram(ctx context.Context, prog program.Program) (program.Program, error) {
	existing, err := s.GetProgram(ctx, prog.ID)
	if err != nil {
		return program.Program{}, err
	}
	prog.SponsorID = existing.SponsorID
	prog.CreatedAt = existing.CreatedAt
	prog.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE programs
		SET name = $2, daily_amount = $3, description = $4, start_date = $5, end_date = $6, updated_at = $7
		WHERE id = $1
	`, prog.ID, prog.Name, prog.DailyAmount, prog.Description, prog.StartDate, prog.EndDate, prog.UpdatedAt)
	if err != nil {
		return program.Program{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return program.Program{}, sql.ErrNoRows
	}
	return prog, nil
}

func (s *Store) GetProgram(ctx context.Context, id string) (program.Program, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, sponsor_id, daily_amount, description, start_date, end_date, created_at, updated_at
		FROM programs
		WHERE id = $1
	`, id)

	prog, err := scanProgram(row)
	if errors.Is(err, sql.ErrNoRows) {
		return program.Program{}, fmt.Errorf("program %s: %w", id, program.ErrNotFound)
	}
	return prog, err
}

func (s *Store) GetProgramByName(ctx context.Context, name string) (program.Program, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, sponsor_id, daily_amount, description, start_date, end_date, created_at, updated_at
		FROM programs
		WHERE name = $1
	`, name)

	prog, err := scanProgram(row)
	if errors.Is(err, sql.ErrNoRows) {
		return program.Program{}, fmt.Errorf("program %q: %w", name, program.ErrNotFound)
	}
	return prog, err
}

func (s *Store) ListPrograms(ctx context.Context, sponsorID string) ([]program.Program, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, sponsor_id, daily_amount, description, start_date, end_date, created_at, updated_at
		FROM programs
		WHERE $1 = '' OR sponsor_id = $1
		ORDER BY created_at
	`, sponsorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []program.Program
	for rows.Next() {
		prog, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, prog)
	}
	return result, rows.Err()
}

func (s *Store) DeleteProgram(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM programs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanProgram(row rowScanner) (program.Program, error) {
	var prog program.Program
	if err := row.Scan(&prog.ID, &prog.Name, &prog.SponsorID, &prog.DailyAmount, &prog.Description,
		&prog.StartDate, &prog.EndDate, &prog.CreatedAt, &prog.UpdatedAt); err != nil {
		return program.Program{}, err
	}
	prog.StartDate = prog.StartDate.UTC()
	prog.EndDate = prog.EndDate.UTC()
	return prog, nil
}

// --- ExtensionStore ---------------------------------------------------------

func (s *Store) CreateExtensionRequest(ctx context.Context, req extension.Request) (extension.Request, error) {
	if req.Token == "" {
		return extension.Request{}, errors.New("token required")
	}
	now := time.Now().UTC()
	req.Status = extension.StatusPending
	req.CreatedAt = now
	req.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO extension_requests (token, program_id, days_requested, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, req.Token, req.ProgramID, req.DaysRequested, req.Status, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return extension.Request{}, err
	}
	return req, nil
}

func (s *Store) GetExtensionRequest(ctx context.Context, token string) (extension.Request, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token, program_id, days_requested, status, created_at, updated_at, resolved_at
		FROM extension_requests
		WHERE token = $1
	`, token)

	req, err := scanExtensionRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return extension.Request{}, extension.ErrNotFound
	}
	return req, err
}

func (s *Store) ListExtensionRequests(ctx context.Context, programID string) ([]extension.Request, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, program_id, days_requested, status, created_at, updated_at, resolved_at
		FROM extension_requests
		WHERE $1 = '' OR program_id = $1
		ORDER BY created_at
	`, programID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectExtensionRequests(rows)
}

func (s *Store) ListPendingRequestsBefore(ctx context.Context, cutoff time.Time) ([]extension.Request, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, program_id, days_requested, status, created_at, updated_at, resolved_at
		FROM extension_requests
		WHERE status = 'PENDING' AND created_at < $1
		ORDER BY created_at
	`, cutoff.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectExtensionRequests(rows)
}

// ApproveExtensionRequest flips a PENDING request to APPROVED and advances the
// program end date by the requested days in one transaction. The request and
// program rows are locked for the duration so racing resolves serialize; the
// loser sees the terminal status and gets ErrAlreadyResolved.
func (s *Store) ApproveExtensionRequest(ctx context.Context, token string) (extension.Approval, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return extension.Approval{}, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	row := tx.QueryRowContext(ctx, `
		SELECT token, program_id, days_requested, status, created_at, updated_at, resolved_at
		FROM extension_requests
		WHERE token = $1
		FOR UPDATE
	`, token)
	req, err := scanExtensionRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return extension.Approval{}, extension.ErrNotFound
	}
	if err != nil {
		return extension.Approval{}, err
	}
	if req.Status.Terminal() {
		return extension.Approval{}, extension.ErrAlreadyResolved
	}

	var oldEnd time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT end_date FROM programs WHERE id = $1 FOR UPDATE
	`, req.ProgramID).Scan(&oldEnd)
	if errors.Is(err, sql.ErrNoRows) {
		return extension.Approval{}, extension.ErrProgramNotFound
	}
	if err != nil {
		return extension.Approval{}, err
	}

	now := time.Now().UTC()
	oldEnd = oldEnd.UTC()
	newEnd := oldEnd.AddDate(0, 0, req.DaysRequested)

	if _, err := tx.ExecContext(ctx, `
		UPDATE programs SET end_date = $2, updated_at = $3 WHERE id = $1
	`, req.ProgramID, newEnd, now); err != nil {
		return extension.Approval{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE extension_requests SET status = $2, updated_at = $3, resolved_at = $3 WHERE token = $1
	`, token, extension.StatusApproved, now); err != nil {
		return extension.Approval{}, err
	}

	if err := tx.Commit(); err != nil {
		return extension.Approval{}, err
	}

	req.Status = extension.StatusApproved
	req.UpdatedAt = now
	req.ResolvedAt = now
	return extension.Approval{Request: req, OldEndDate: oldEnd, NewEndDate: newEnd}, nil
}

// RejectExtensionRequest flips a PENDING request to REJECTED. The program is
// untouched; only the status changes.
func (s *Store) RejectExtensionRequest(ctx context.Context, token string) (extension.Request, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return extension.Request{}, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	row := tx.QueryRowContext(ctx, `
		SELECT token, program_id, days_requested, status, created_at, updated_at, resolved_at
		FROM extension_requests
		WHERE token = $1
		FOR UPDATE
	`, token)
	req, err := scanExtensionRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return extension.Request{}, extension.ErrNotFound
	}
	if err != nil {
		return extension.Request{}, err
	}
	if req.Status.Terminal() {
		return extension.Request{}, extension.ErrAlreadyResolved
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE extension_requests SET status = $2, updated_at = $3, resolved_at = $3 WHERE token = $1
	`, token, extension.StatusRejected, now); err != nil {
		return extension.Request{}, err
	}

	if err := tx.Commit(); err != nil {
		return extension.Request{}, err
	}

	req.Status = extension.StatusRejected
	req.UpdatedAt = now
	req.ResolvedAt = now
	return req, nil
}

func scanExtensionRequest(row rowScanner) (extension.Request, error) {
	var (
		req        extension.Request
		resolvedAt sql.NullTime
	)
	if err := row.Scan(&req.Token, &req.ProgramID, &req.DaysRequested, &req.Status,
		&req.CreatedAt, &req.UpdatedAt, &resolvedAt); err != nil {
		return extension.Request{}, err
	}
	if resolvedAt.Valid {
		req.ResolvedAt = resolvedAt.Time.UTC()
	}
	return req, nil
}

func collectExtensionRequests(rows *sql.Rows) ([]extension.Request, error) {
	var result []extension.Request
	for rows.Next() {
		req, err := scanExtensionRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	return result, rows.Err()
}

// --- AuditStore -------------------------------------------------------------

func (s *Store) AppendChange(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_changes (id, description, actor, old_value, new_value, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.Description, entry.Actor, entry.OldValue, entry.NewValue, entry.Timestamp)
	if err != nil {
		return audit.Entry{}, err
	}
	return entry, nil
}

func (s *Store) ListChanges(ctx context.Context, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, actor, old_value, new_value, created_at
		FROM audit_changes
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []audit.Entry
	for rows.Next() {
		var entry audit.Entry
		if err := rows.Scan(&entry.ID, &entry.Description, &entry.Actor, &entry.OldValue, &entry.NewValue, &entry.Timestamp); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

package program

import (
	"errors"
	"strconv"
	"time"
)

// ErrNotFound signals that no program matches the given id or name. Stores
// return it so callers can tell a missing program from a failing backend.
var ErrNotFound = errors.New("program not found")

// Program is a sponsorship program with a fixed daily amount running from
// StartDate to EndDate inclusive. EndDate is the only field mutated by the
// extension workflow, and only through an approved extension request.
type Program struct {
	ID          string
	Name        string
	SponsorID   string
	DailyAmount int64
	Description string
	StartDate   time.Time
	EndDate     time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Days returns the program duration in days, counting both the start and the
// end day. Zero when either date is unset.
func (p Program) Days() int64 {
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return 0
	}
	return int64(p.EndDate.Sub(p.StartDate).Hours()/24) + 1
}

// FullAmount returns the sponsorship total over the whole program duration.
func (p Program) FullAmount() int64 {
	return p.DailyAmount * p.Days()
}

// CSVHeader lists the columns of a program export row.
func (Program) CSVHeader() []string {
	return []string{"id", "name", "sponsor_id", "daily_amount", "description",
		"start_date", "end_date"}
}

// CSVRow flattens the program into one export record.
func (p Program) CSVRow() []string {
	return []string{p.ID, p.Name, p.SponsorID,
		strconv.FormatInt(p.DailyAmount, 10), p.Description,
		p.StartDate.Format("2006-01-02"), p.EndDate.Format("2006-01-02")}
}

// Package statistics aggregates sponsorship activity for reporting.
package statistics

import (
	"context"

	"github.com/openpledge/sponsorships/internal/app/storage"
	"github.com/openpledge/sponsorships/pkg/logger"
)

// SponsorInvestment is the total committed by one sponsor across all of its
// programs, derived from each program's full amount.
type SponsorInvestment struct {
	SponsorID string
	Name      string
	Total     int64
}

// ProgramRequests counts the extension requests raised against one program,
// regardless of their outcome.
type ProgramRequests struct {
	ProgramID string
	Name      string
	Requests  int
}

// Report is a point-in-time aggregation over all sponsors and programs.
type Report struct {
	SponsorInvestments []SponsorInvestment
	ProgramRequests    []ProgramRequests
}

// Service computes reports from the stores. It holds no state of its own.
type Service struct {
	sponsors   storage.SponsorStore
	programs   storage.ProgramStore
	extensions storage.ExtensionStore
	log        *logger.Logger
}

// New creates a statistics service.
func New(sponsors storage.SponsorStore, programs storage.ProgramStore, extensions storage.ExtensionStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("statistics")
	}
	return &Service{sponsors: sponsors, programs: programs, extensions: extensions, log: log}
}

// Overview aggregates investment totals per sponsor and extension-request
// counts per program. Sponsors without programs and programs without requests
// appear with zero values.
func (s *Service) Overview(ctx context.Context) (Report, error) {
	sponsors, err := s.sponsors.ListSponsors(ctx)
	if err != nil {
		return Report{}, err
	}
	programs, err := s.programs.ListPrograms(ctx, "")
	if err != nil {
		return Report{}, err
	}
	requests, err := s.extensions.ListExtensionRequests(ctx, "")
	if err != nil {
		return Report{}, err
	}

	totals := make(map[string]int64, len(sponsors))
	counts := make(map[string]int, len(programs))
	for _, prog := range programs {
		totals[prog.SponsorID] += prog.FullAmount()
	}
	for _, req := range requests {
		counts[req.ProgramID]++
	}

	report := Report{
		SponsorInvestments: make([]SponsorInvestment, 0, len(sponsors)),
		ProgramRequests:    make([]ProgramRequests, 0, len(programs)),
	}
	for _, sp := range sponsors {
		report.SponsorInvestments = append(report.SponsorInvestments, SponsorInvestment{
			SponsorID: sp.ID,
			Name:      sp.Name,
			Total:     totals[sp.ID],
		})
	}
	for _, prog := range programs {
		report.ProgramRequests = append(report.ProgramRequests, ProgramRequests{
			ProgramID: prog.ID,
			Name:      prog.Name,
			Requests:  counts[prog.ID],
		})
	}
	return report, nil
}

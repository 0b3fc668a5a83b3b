package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	app "github.com/openpledge/sponsorships/internal/app"
	"github.com/openpledge/sponsorships/internal/app/domain/extension"
	"github.com/openpledge/sponsorships/internal/app/domain/program"
	"github.com/openpledge/sponsorships/internal/app/domain/sponsor"
	"github.com/openpledge/sponsorships/internal/app/export"
)

// Responses of the sponsor-facing approval endpoint. The endpoint answers
// plain text with status 200 in every case so the link target in an old email
// never turns into an error page.
const (
	msgApproved      = "Extension approved successfully!"
	msgDenied        = "Extension denied."
	msgUnknownAction = "Unknown action."
	msgUnknownToken  = "Unknown token."
	msgMissingParams = "Missing parameters."
)

const actorHeader = "X-Actor"

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a mux exposing the approval endpoint and the REST API.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}
	mux := http.NewServeMux()
	mux.HandleFunc("/extension-response", h.extensionResponse)
	mux.HandleFunc("/sponsors", h.sponsors)
	mux.HandleFunc("/sponsors/", h.sponsorResources)
	mux.HandleFunc("/programs", h.programs)
	mux.HandleFunc("/programs/", h.programResources)
	mux.HandleFunc("/extensions/", h.extensionResources)
	mux.HandleFunc("/changes", h.changes)
	mux.HandleFunc("/statistics", h.statistics)
	mux.HandleFunc("/healthz", h.healthz)
	return mux
}

// extensionResponse handles the links sent to sponsors. Token possession is
// the authorisation; no other identity is required.
func (h *handler) extensionResponse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	action := r.URL.Query().Get("action")
	token := r.URL.Query().Get("token")
	if action == "" || token == "" {
		writeText(w, msgMissingParams)
		return
	}

	var decision extension.Decision
	var success string
	switch action {
	case "accept":
		decision, success = extension.DecisionApprove, msgApproved
	case "deny":
		decision, success = extension.DecisionReject, msgDenied
	default:
		writeText(w, msgUnknownAction)
		return
	}

	res, err := h.app.Extensions.Resolve(r.Context(), token, decision, "")
	if err != nil {
		if errors.Is(err, extension.ErrNotFound) {
			writeText(w, msgUnknownToken)
			return
		}
		writeText(w, "Could not process the request.")
		return
	}

	// An already-resolved request reports the outcome it reached, not the
	// outcome of this click.
	if res.AlreadyResolved {
		switch res.Request.Status {
		case extension.StatusApproved:
			writeText(w, msgApproved)
		default:
			writeText(w, msgDenied)
		}
		return
	}
	writeText(w, success)
}

func (h *handler) sponsors(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload sponsorPayload
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := h.app.Sponsors.Create(r.Context(), actor(r), payload.toDomain(""))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	case http.MethodGet:
		list, err := h.app.Sponsors.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if wantsCSV(r) {
			writeCSV(w, "sponsors.csv", list)
			return
		}
		writeJSON(w, http.StatusOK, list)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) sponsorResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/sponsors"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	sponsorID := parts[0]

	if len(parts) == 2 && parts[1] == "programs" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		list, err := h.app.Programs.List(r.Context(), sponsorID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
		return
	}
	if len(parts) != 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		sp, err := h.app.Sponsors.Get(r.Context(), sponsorID)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, sp)

	case http.MethodPut:
		var payload sponsorPayload
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := h.app.Sponsors.Update(r.Context(), actor(r), payload.toDomain(sponsorID))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		if err := h.app.Sponsors.Delete(r.Context(), actor(r), sponsorID); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) programs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload programPayload
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		prog, err := payload.toDomain("")
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := h.app.Programs.Create(r.Context(), actor(r), prog)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	case http.MethodGet:
		if name := strings.TrimSpace(r.URL.Query().Get("name")); name != "" {
			prog, err := h.app.Programs.GetByName(r.Context(), name)
			if err != nil {
				writeError(w, http.StatusNotFound, err)
				return
			}
			writeJSON(w, http.StatusOK, prog)
			return
		}
		list, err := h.app.Programs.List(r.Context(), r.URL.Query().Get("sponsor_id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if wantsCSV(r) {
			writeCSV(w, "programs.csv", list)
			return
		}
		writeJSON(w, http.StatusOK, list)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) programResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/programs"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	programID := parts[0]

	if len(parts) == 2 && parts[1] == "extensions" {
		h.programExtensions(w, r, programID)
		return
	}
	if len(parts) != 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		prog, err := h.app.Programs.Get(r.Context(), programID)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, programView(prog))

	case http.MethodPut:
		var payload programPayload
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		prog, err := payload.toDomain(programID)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := h.app.Programs.Update(r.Context(), actor(r), prog)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		if err := h.app.Programs.Delete(r.Context(), actor(r), programID); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) programExtensions(w http.ResponseWriter, r *http.Request, programID string) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Days int `json:"days"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req, err := h.app.Extensions.CreateRequest(r.Context(), actor(r), programID, payload.Days)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, extension.ErrProgramNotFound) {
				status = http.StatusNotFound
			}
			writeError(w, status, err)
			return
		}
		writeJSON(w, http.StatusCreated, req)

	case http.MethodGet:
		list, err := h.app.Extensions.List(r.Context(), programID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) extensionResources(w http.ResponseWriter, r *http.Request) {
	token := strings.Trim(strings.TrimPrefix(r.URL.Path, "/extensions"), "/")
	if token == "" || strings.Contains(token, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := h.app.Extensions.Get(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *handler) changes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	entries, err := h.app.Audit.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handler) statistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	report, err := h.app.Statistics.Overview(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sponsorPayload struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	City    string `json:"city"`
	Street  string `json:"street"`
	House   string `json:"house"`
	Contact struct {
		FirstName   string `json:"first_name"`
		LastName    string `json:"last_name"`
		DateOfBirth string `json:"date_of_birth"`
	} `json:"contact"`
}

func (p sponsorPayload) toDomain(id string) sponsor.Sponsor {
	sp := sponsor.Sponsor{
		ID:     id,
		Name:   p.Name,
		Email:  p.Email,
		City:   p.City,
		Street: p.Street,
		House:  p.House,
		Contact: sponsor.Contact{
			FirstName: p.Contact.FirstName,
			LastName:  p.Contact.LastName,
		},
	}
	if dob, err := time.Parse("2006-01-02", strings.TrimSpace(p.Contact.DateOfBirth)); err == nil {
		sp.Contact.DateOfBirth = dob
	}
	return sp
}

type programPayload struct {
	Name        string `json:"name"`
	SponsorID   string `json:"sponsor_id"`
	DailyAmount int64  `json:"daily_amount"`
	Description string `json:"description"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

func (p programPayload) toDomain(id string) (program.Program, error) {
	start, err := time.Parse("2006-01-02", strings.TrimSpace(p.StartDate))
	if err != nil {
		return program.Program{}, fmt.Errorf("start_date must be YYYY-MM-DD")
	}
	end, err := time.Parse("2006-01-02", strings.TrimSpace(p.EndDate))
	if err != nil {
		return program.Program{}, fmt.Errorf("end_date must be YYYY-MM-DD")
	}
	return program.Program{
		ID:          id,
		Name:        p.Name,
		SponsorID:   p.SponsorID,
		DailyAmount: p.DailyAmount,
		Description: p.Description,
		StartDate:   start,
		EndDate:     end,
	}, nil
}

// programView augments a program with its derived totals on detail reads.
func programView(prog program.Program) any {
	return struct {
		program.Program
		Days       int64
		FullAmount int64
	}{Program: prog, Days: prog.Days(), FullAmount: prog.FullAmount()}
}

// actor resolves audit attribution for REST calls from the X-Actor header.
func actor(r *http.Request) string {
	if a := strings.TrimSpace(r.Header.Get(actorHeader)); a != "" {
		return a
	}
	return "anonymous"
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func wantsCSV(r *http.Request) bool {
	return r.URL.Query().Get("format") == "csv"
}

func writeCSV[T export.Exportable](w http.ResponseWriter, filename string, items []T) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_ = export.Write(w, items)
}

func writeText(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(message))
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

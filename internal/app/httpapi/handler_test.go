package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	app "github.com/openpledge/sponsorships/internal/app"
)

func newTestHandler(t *testing.T) (http.Handler, *app.Application) {
	t.Helper()

	application, err := app.New(app.Stores{}, app.Options{}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("start application: %v", err)
	}
	t.Cleanup(func() { _ = application.Stop(context.Background()) })

	return NewHandler(application), application
}

func marshal(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return bytes.NewBuffer(b)
}

func do(handler http.Handler, method, path string, body *bytes.Buffer) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("X-Actor", "tester")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func createSponsor(t *testing.T, handler http.Handler) string {
	t.Helper()

	resp := do(handler, http.MethodPost, "/sponsors", marshal(t, map[string]any{
		"name":  "Acme Foundation",
		"email": "contact@acme.example",
		"city":  "Springfield",
	}))
	if resp.Code != http.StatusCreated {
		t.Fatalf("create sponsor: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var sp map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &sp); err != nil {
		t.Fatalf("unmarshal sponsor: %v", err)
	}
	return sp["ID"].(string)
}

func createProgram(t *testing.T, handler http.Handler, sponsorID, name string) string {
	t.Helper()

	resp := do(handler, http.MethodPost, "/programs", marshal(t, map[string]any{
		"name":         name,
		"sponsor_id":   sponsorID,
		"daily_amount": 2500,
		"start_date":   "2024-01-01",
		"end_date":     "2024-01-10",
	}))
	if resp.Code != http.StatusCreated {
		t.Fatalf("create program: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var prog map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &prog); err != nil {
		t.Fatalf("unmarshal program: %v", err)
	}
	return prog["ID"].(string)
}

func createExtension(t *testing.T, handler http.Handler, programID string, days int) string {
	t.Helper()

	resp := do(handler, http.MethodPost, "/programs/"+programID+"/extensions", marshal(t, map[string]any{"days": days}))
	if resp.Code != http.StatusCreated {
		t.Fatalf("create extension: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var req map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &req); err != nil {
		t.Fatalf("unmarshal extension request: %v", err)
	}
	return req["Token"].(string)
}

func TestExtensionLifecycleOverHTTP(t *testing.T) {
	handler, _ := newTestHandler(t)

	sponsorID := createSponsor(t, handler)
	programID := createProgram(t, handler, sponsorID, "School Lunches")
	token := createExtension(t, handler, programID, 5)

	resp := do(handler, http.MethodGet, "/extension-response?action=accept&token="+token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("approval endpoint: expected 200, got %d", resp.Code)
	}
	if got := resp.Body.String(); got != "Extension approved successfully!" {
		t.Fatalf("unexpected approval body: %q", got)
	}

	resp = do(handler, http.MethodGet, "/programs/"+programID, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("get program: expected 200, got %d", resp.Code)
	}
	var prog struct {
		EndDate    string
		Days       int64
		FullAmount int64
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &prog); err != nil {
		t.Fatalf("unmarshal program: %v", err)
	}
	if prog.EndDate[:10] != "2024-01-15" {
		t.Fatalf("expected end date 2024-01-15, got %s", prog.EndDate)
	}
	if prog.Days != 15 || prog.FullAmount != 15*2500 {
		t.Fatalf("derived totals wrong: days=%d full=%d", prog.Days, prog.FullAmount)
	}
}

func TestApprovalEndpointResponses(t *testing.T) {
	handler, _ := newTestHandler(t)

	sponsorID := createSponsor(t, handler)
	programID := createProgram(t, handler, sponsorID, "School Lunches")
	denyToken := createExtension(t, handler, programID, 3)

	cases := []struct {
		name string
		path string
		want string
	}{
		{"missing both", "/extension-response", "Missing parameters."},
		{"missing token", "/extension-response?action=accept", "Missing parameters."},
		{"missing action", "/extension-response?token=abc", "Missing parameters."},
		{"unknown action", "/extension-response?action=postpone&token=" + denyToken, "Unknown action."},
		{"unknown token", "/extension-response?action=accept&token=nope", "Unknown token."},
		{"unknown token on deny", "/extension-response?action=deny&token=nope", "Unknown token."},
		{"deny", "/extension-response?action=deny&token=" + denyToken, "Extension denied."},
		{"repeat deny", "/extension-response?action=deny&token=" + denyToken, "Extension denied."},
		{"accept after deny", "/extension-response?action=accept&token=" + denyToken, "Extension denied."},
	}

	for _, tc := range cases {
		resp := do(handler, http.MethodGet, tc.path, nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tc.name, resp.Code)
		}
		if got := resp.Body.String(); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
		if ct := resp.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
			t.Fatalf("%s: unexpected content type %q", tc.name, ct)
		}
	}
}

func TestRepeatAcceptKeepsSingleExtension(t *testing.T) {
	handler, _ := newTestHandler(t)

	sponsorID := createSponsor(t, handler)
	programID := createProgram(t, handler, sponsorID, "School Lunches")
	token := createExtension(t, handler, programID, 5)

	for i := 0; i < 3; i++ {
		resp := do(handler, http.MethodGet, "/extension-response?action=accept&token="+token, nil)
		if got := resp.Body.String(); got != "Extension approved successfully!" {
			t.Fatalf("click %d: unexpected body %q", i+1, got)
		}
	}

	resp := do(handler, http.MethodGet, "/programs/"+programID, nil)
	var prog struct{ EndDate string }
	if err := json.Unmarshal(resp.Body.Bytes(), &prog); err != nil {
		t.Fatalf("unmarshal program: %v", err)
	}
	if prog.EndDate[:10] != "2024-01-15" {
		t.Fatalf("end date moved on repeat clicks: %s", prog.EndDate)
	}
}

func TestCreateExtensionValidation(t *testing.T) {
	handler, _ := newTestHandler(t)

	sponsorID := createSponsor(t, handler)
	programID := createProgram(t, handler, sponsorID, "School Lunches")

	resp := do(handler, http.MethodPost, "/programs/"+programID+"/extensions", marshal(t, map[string]any{"days": 0}))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("zero days: expected 400, got %d", resp.Code)
	}

	resp = do(handler, http.MethodPost, "/programs/no-such-program/extensions", marshal(t, map[string]any{"days": 5}))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("unknown program: expected 404, got %d", resp.Code)
	}
}

func TestSponsorCRUD(t *testing.T) {
	handler, _ := newTestHandler(t)
	sponsorID := createSponsor(t, handler)

	resp := do(handler, http.MethodGet, "/sponsors/"+sponsorID, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("get sponsor: expected 200, got %d", resp.Code)
	}

	resp = do(handler, http.MethodPut, "/sponsors/"+sponsorID, marshal(t, map[string]any{
		"name":  "Acme Foundation e.V.",
		"email": "contact@acme.example",
	}))
	if resp.Code != http.StatusOK {
		t.Fatalf("update sponsor: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = do(handler, http.MethodGet, "/sponsors", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("list sponsors: expected 200, got %d", resp.Code)
	}
	var list []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(list) != 1 || list[0]["Name"] != "Acme Foundation e.V." {
		t.Fatalf("unexpected list: %v", list)
	}

	resp = do(handler, http.MethodDelete, "/sponsors/"+sponsorID, nil)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("delete sponsor: expected 204, got %d", resp.Code)
	}
	resp = do(handler, http.MethodGet, "/sponsors/"+sponsorID, nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("get deleted sponsor: expected 404, got %d", resp.Code)
	}
}

func TestDuplicateProgramNameOverHTTP(t *testing.T) {
	handler, _ := newTestHandler(t)

	sponsorID := createSponsor(t, handler)
	createProgram(t, handler, sponsorID, "School Lunches")

	resp := do(handler, http.MethodPost, "/programs", marshal(t, map[string]any{
		"name":         "School Lunches",
		"sponsor_id":   sponsorID,
		"daily_amount": 100,
		"start_date":   "2024-02-01",
		"end_date":     "2024-02-10",
	}))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("duplicate name: expected 400, got %d", resp.Code)
	}
}

func TestChangesEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t)

	sponsorID := createSponsor(t, handler)
	programID := createProgram(t, handler, sponsorID, "School Lunches")
	token := createExtension(t, handler, programID, 5)
	do(handler, http.MethodGet, "/extension-response?action=accept&token="+token, nil)

	resp := do(handler, http.MethodGet, "/changes", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("changes: expected 200, got %d", resp.Code)
	}
	var entries []struct {
		Description string `json:"description"`
		Actor       string `json:"actor"`
		OldValue    string `json:"old_value"`
		NewValue    string `json:"new_value"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &entries); err != nil {
		t.Fatalf("unmarshal changes: %v", err)
	}

	descriptions := make(map[string]bool)
	for _, e := range entries {
		descriptions[e.Description] = true
		if e.Description == "Extension request approved." {
			if e.OldValue != "2024-01-10" || e.NewValue != "2024-01-15" {
				t.Fatalf("approval entry has wrong dates: %s -> %s", e.OldValue, e.NewValue)
			}
		}
	}
	for _, want := range []string{"Sponsor created.", "Program created.", "Extension request approved."} {
		if !descriptions[want] {
			t.Fatalf("missing change entry %q in %v", want, descriptions)
		}
	}

	resp = do(handler, http.MethodGet, "/changes?limit=bogus", nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: expected 400, got %d", resp.Code)
	}
}

func TestExtensionLookupByToken(t *testing.T) {
	handler, _ := newTestHandler(t)

	sponsorID := createSponsor(t, handler)
	programID := createProgram(t, handler, sponsorID, "School Lunches")
	token := createExtension(t, handler, programID, 5)

	resp := do(handler, http.MethodGet, "/extensions/"+token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("get extension: expected 200, got %d", resp.Code)
	}
	var req struct {
		Status        string
		DaysRequested int
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &req); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	if req.Status != "PENDING" || req.DaysRequested != 5 {
		t.Fatalf("unexpected request: %+v", req)
	}

	resp = do(handler, http.MethodGet, "/extensions/unknown-token", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("unknown token: expected 404, got %d", resp.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler, _ := newTestHandler(t)

	for _, path := range []string{"/extension-response?action=accept&token=x", "/changes"} {
		resp := do(handler, http.MethodPost, path, marshal(t, map[string]any{}))
		if resp.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: expected 405, got %d", path, resp.Code)
		}
	}
}

func TestHealthz(t *testing.T) {
	handler, _ := newTestHandler(t)

	resp := do(handler, http.MethodGet, "/healthz", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", resp.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal healthz: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected healthz body: %v", body)
	}
}

func TestStatisticsEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t)

	sponsorID := createSponsor(t, handler)
	programID := createProgram(t, handler, sponsorID, "School Lunches")
	createExtension(t, handler, programID, 5)
	createExtension(t, handler, programID, 3)

	resp := do(handler, http.MethodGet, "/statistics", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("statistics: expected 200, got %d", resp.Code)
	}
	var report struct {
		SponsorInvestments []struct {
			SponsorID string
			Name      string
			Total     int64
		}
		ProgramRequests []struct {
			ProgramID string
			Name      string
			Requests  int
		}
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &report); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if len(report.SponsorInvestments) != 1 {
		t.Fatalf("expected 1 sponsor row, got %d", len(report.SponsorInvestments))
	}
	// 10 days at 2500 per day.
	if inv := report.SponsorInvestments[0]; inv.SponsorID != sponsorID || inv.Total != 25000 {
		t.Fatalf("unexpected investment row: %+v", inv)
	}
	if len(report.ProgramRequests) != 1 || report.ProgramRequests[0].Requests != 2 {
		t.Fatalf("unexpected request rows: %+v", report.ProgramRequests)
	}

	resp = do(handler, http.MethodPost, "/statistics", marshal(t, map[string]any{}))
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("post statistics: expected 405, got %d", resp.Code)
	}
}

func TestCSVExport(t *testing.T) {
	handler, _ := newTestHandler(t)

	sponsorID := createSponsor(t, handler)
	createProgram(t, handler, sponsorID, "School Lunches")

	resp := do(handler, http.MethodGet, "/programs?format=csv", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("export programs: expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "text/csv; charset=utf-8" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := resp.Header().Get("Content-Disposition"); !strings.Contains(cd, "programs.csv") {
		t.Fatalf("unexpected disposition %q", cd)
	}
	lines := strings.Split(strings.TrimRight(resp.Body.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus 1 row, got %d lines", len(lines))
	}
	if lines[0] != "id,name,sponsor_id,daily_amount,description,start_date,end_date" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if !strings.Contains(lines[1], "School Lunches") || !strings.Contains(lines[1], "2024-01-10") {
		t.Fatalf("unexpected row: %q", lines[1])
	}

	resp = do(handler, http.MethodGet, "/sponsors?format=csv", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("export sponsors: expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "Acme Foundation") {
		t.Fatalf("sponsor export missing data: %q", resp.Body.String())
	}
}

func TestListProgramsBySponsor(t *testing.T) {
	handler, _ := newTestHandler(t)

	sponsorID := createSponsor(t, handler)
	for i := 0; i < 2; i++ {
		createProgram(t, handler, sponsorID, fmt.Sprintf("Program %d", i))
	}

	resp := do(handler, http.MethodGet, "/sponsors/"+sponsorID+"/programs", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("list by sponsor: expected 200, got %d", resp.Code)
	}
	var list []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 programs, got %d", len(list))
	}
}

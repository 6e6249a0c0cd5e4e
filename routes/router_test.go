package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ghostbadfame/CRM-Chase-local/models"
	"github.com/ghostbadfame/CRM-Chase-local/repository"
	"github.com/ghostbadfame/CRM-Chase-local/routes"
	"github.com/ghostbadfame/CRM-Chase-local/service"
	"github.com/ghostbadfame/CRM-Chase-local/utils"

	"github.com/gin-gonic/gin"
)

const cronSecret = "cron-secret"

type testServer struct {
	router *gin.Engine
	store  *repository.MemoryStore
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("test-secret")

	ctx := context.Background()
	store := repository.NewMemoryStore()
	metrics := utils.NewMetrics()

	auth := service.NewAuthService(store, nil)
	if err := auth.EnsureAdminAccount(ctx, "admin@example.com", "admin123"); err != nil {
		t.Fatalf("EnsureAdminAccount() error: %v", err)
	}
	scheduler, err := service.NewRolloverScheduler(service.NewRolloverService(store, nil, metrics), "@daily", nil)
	if err != nil {
		t.Fatal(err)
	}

	router := routes.NewRouter(routes.Deps{
		Store:      store,
		Ledger:     service.NewLedgerService(store, nil, metrics),
		Auth:       auth,
		Rollover:   scheduler,
		Metrics:    metrics,
		CronSecret: cronSecret,
	})
	srv := &testServer{router: router, store: store}

	w := srv.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "admin@example.com", "password": "admin123"}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body.String())
	}
	var login struct {
		Data models.LoginResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	srv.token = login.Data.Token
	return srv
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return body
}

func partnerBody(contact string) map[string]interface{} {
	return map[string]interface{}{
		"fullName": "Ravi Kumar",
		"contact":  contact,
		"address":  "4 Park Street",
		"city":     "Pune",
		"userType": "Architect",
		"remark":   "Met at the design expo",
	}
}

func TestHealthIsPublic(t *testing.T) {
	srv := newTestServer(t)
	w := srv.do(t, http.MethodGet, "/api/health", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("response has no X-Request-ID")
	}
}

func TestLedgerRoutesRequireAuthentication(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/api/channelPartner", "/api/leads", "/api/getAssignedChannelPartner", "/api/db-status"} {
		w := srv.do(t, http.MethodGet, path, nil, "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without token = %d, want 401", path, w.Code)
		}
	}
	w := srv.do(t, http.MethodPost, "/api/channelPartner", partnerBody("9123456780"), "garbage")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("POST with bad token = %d, want 401", w.Code)
	}
	if n, _ := srv.store.CountEntities(context.Background(), models.KindChannelPartner); n != 0 {
		t.Errorf("unauthenticated request wrote %d partners", n)
	}
}

func TestChannelPartnerFlow(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/channelPartner", partnerBody("9123456780"), srv.token)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	created := decode(t, w)
	partner := created["new"].(map[string]interface{})
	if partner["channelPartnerNo"] != "CP001" {
		t.Errorf("channelPartnerNo = %v, want CP001", partner["channelPartnerNo"])
	}
	remark := created["remark"].(map[string]interface{})
	if remark["empNo"] != "EMP001" || remark["parentNo"] != "CP001" {
		t.Errorf("remark = %v", remark)
	}

	w = srv.do(t, http.MethodPost, "/api/channelPartner", partnerBody("9123456780"), srv.token)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", w.Code)
	}
	if body := decode(t, w); body["kind"] != "DuplicateEntity" {
		t.Errorf("duplicate body = %v", body)
	}

	update := partnerBody("9123456780")
	update["followupDate"] = "2030-01-15"
	update["remark"] = "Call after site visit"

	w = srv.do(t, http.MethodPatch, "/api/setChannelPartnerData", update, srv.token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("update without number = %d, want 400", w.Code)
	}
	if body := decode(t, w); body["kind"] != "MissingIdentifier" {
		t.Errorf("update without number body = %v", body)
	}

	w = srv.do(t, http.MethodPatch, "/api/setChannelPartnerData?channelPartnerNo=CP001", update, srv.token)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", w.Code, w.Body.String())
	}
	updated := decode(t, w)["new"].(map[string]interface{})
	if !strings.HasPrefix(updated["followupDate"].(string), "2030-01-15") {
		t.Errorf("followupDate = %v", updated["followupDate"])
	}

	w = srv.do(t, http.MethodGet, "/api/channelPartner/CP001/remarks", nil, srv.token)
	if w.Code != http.StatusOK {
		t.Fatalf("remarks status = %d", w.Code)
	}
	if count := decode(t, w)["count"]; count != float64(2) {
		t.Errorf("remark count = %v, want 2", count)
	}

	w = srv.do(t, http.MethodGet, "/api/channelPartner/CP404", nil, srv.token)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown partner = %d, want 404", w.Code)
	}
}

func TestLeadValidationErrors(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/leads", map[string]string{"fullName": "Meera"}, srv.token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	body := decode(t, w)
	if body["kind"] != "ValidationError" {
		t.Errorf("kind = %v", body["kind"])
	}
	fields, _ := body["fields"].(map[string]interface{})
	if _, ok := fields["contact"]; !ok {
		t.Errorf("fields = %v, want contact", fields)
	}
}

func TestMutationsAreAudited(t *testing.T) {
	srv := newTestServer(t)

	srv.do(t, http.MethodPost, "/api/channelPartner", partnerBody("9123456780"), srv.token)
	srv.do(t, http.MethodGet, "/api/channelPartner", nil, srv.token)

	logs := srv.store.OperationLogs()
	if len(logs) != 1 {
		t.Fatalf("operation logs = %d, want 1 (login and reads are not audited)", len(logs))
	}
	entry := logs[0]
	if entry.Path != "/api/channelPartner" || entry.StatusCode != http.StatusCreated || !entry.Success {
		t.Errorf("log entry = %+v", entry)
	}
	if entry.OperatorRole != string(models.UserRoleADMIN) {
		t.Errorf("operator role = %q", entry.OperatorRole)
	}
	headers, _ := entry.RequestHeader.(map[string]interface{})
	if auth, _ := headers["Authorization"].(string); auth == "" || strings.Contains(auth, srv.token) {
		t.Errorf("authorization header = %q, want a truncated value", auth)
	}
}

func TestFailedMutationAuditRecordsError(t *testing.T) {
	srv := newTestServer(t)

	srv.do(t, http.MethodPost, "/api/channelPartner", partnerBody("9123456780"), srv.token)
	w := srv.do(t, http.MethodPost, "/api/channelPartner", partnerBody("9123456780"), srv.token)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", w.Code)
	}

	logs := srv.store.OperationLogs()
	if len(logs) != 2 {
		t.Fatalf("operation logs = %d, want 2", len(logs))
	}
	failed := logs[1]
	if failed.Success || failed.StatusCode != http.StatusConflict {
		t.Errorf("failed entry = %+v", failed)
	}
	if !strings.Contains(failed.ErrorMessage, "already exists") {
		t.Errorf("errorMessage = %q, want the duplicate error", failed.ErrorMessage)
	}
	if logs[0].ErrorMessage != "" {
		t.Errorf("successful entry errorMessage = %q", logs[0].ErrorMessage)
	}
}

func TestCronRoute(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/cron", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no secret = %d, want 401", w.Code)
	}
	w = srv.do(t, http.MethodGet, "/api/cron", nil, srv.token)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("session token instead of secret = %d, want 401", w.Code)
	}

	w = srv.do(t, http.MethodGet, "/api/cron", nil, cronSecret)
	if w.Code != http.StatusOK {
		t.Fatalf("with secret = %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["outcome"] != "succeeded" || body["success"] != true {
		t.Errorf("body = %v", body)
	}
}

func TestCreateEmployeeRoute(t *testing.T) {
	srv := newTestServer(t)

	employee := map[string]string{
		"username":         "Asha",
		"email":            "asha@example.com",
		"password":         "welcome1",
		"userType":         "sales",
		"contact":          "9876543210",
		"address":          "12 MG Road",
		"city":             "Kochi",
		"govtID":           "123412341234",
		"reportingManager": "Admin",
		"role":             "BASIC",
	}
	w := srv.do(t, http.MethodPost, "/api/users", employee, srv.token)
	if w.Code != http.StatusCreated {
		t.Fatalf("create employee = %d: %s", w.Code, w.Body.String())
	}

	w = srv.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "asha@example.com", "password": "welcome1"}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("employee login = %d", w.Code)
	}
	var login struct {
		Data models.LoginResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil {
		t.Fatal(err)
	}

	employee["email"] = "ravi@example.com"
	w = srv.do(t, http.MethodPost, "/api/users", employee, login.Data.Token)
	if w.Code != http.StatusForbidden {
		t.Errorf("basic user creating employee = %d, want 403", w.Code)
	}

	w = srv.do(t, http.MethodGet, "/api/db-status", nil, login.Data.Token)
	if w.Code != http.StatusForbidden {
		t.Errorf("basic user reading db status = %d, want 403", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, http.MethodGet, "/api/health", nil, "")

	w := srv.do(t, http.MethodGet, "/metrics", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "crm_http_requests_total") {
		t.Error("metrics output lacks crm_http_requests_total")
	}
}

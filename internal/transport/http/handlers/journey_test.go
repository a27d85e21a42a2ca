package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"hrms/internal/app/server"
	"hrms/internal/domain/auth"
	"hrms/internal/platform/config"
)

const (
	testAdminEmail    = "admin@test.local"
	testAdminPassword = "ChangeMe123!"
	testSysEmail      = "sysadmin@test.local"
	testSysPassword   = "SysAdmin123!"
	testUserPassword  = "Empl0yee123!"

	// Syntactically valid UUID that never matches a seeded row.
	missingID = "00000000-0000-0000-0000-000000000000"
)

type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiErrorBody   `json:"error"`
}

type testEnv struct {
	app *server.App
	ts  *httptest.Server
}

// newTestEnv boots the full application against TEST_DATABASE_URL with
// migrations and seed applied. Both runs are idempotent, so every test
// shares one schema and isolates itself through unique employee emails.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := config.Config{
		DatabaseURL:             dsn,
		JWTSecret:               "test-secret",
		DataEncryptionKey:       "0123456789abcdef0123456789abcdef",
		Environment:             "test",
		SeedTenantName:          "Test Tenant",
		SeedAdminEmail:          testAdminEmail,
		SeedAdminPassword:       testAdminPassword,
		SeedSystemAdminEmail:    testSysEmail,
		SeedSystemAdminPassword: testSysPassword,
		EmailFrom:               "no-reply@test.local",
		FrontendBaseURL:         "https://hr.example.com/app",
		PasswordResetTTL:        2 * time.Hour,
		RunMigrations:           true,
		RunSeed:                 true,
		MaxBodyBytes:            1 << 20,
		RateLimitPerMinute:      1000,
		LeaveConsolidatedType:   "Annual Leave",
		MetricsEnabled:          true,
	}

	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("start app: %v", err)
	}
	t.Cleanup(app.Close)

	ts := httptest.NewServer(app.Router)
	t.Cleanup(ts.Close)
	return &testEnv{app: app, ts: ts}
}

func (e *testEnv) do(t *testing.T, method, path, token string, headers map[string]string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, e.ts.URL+"/api/v1"+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read %s %s response: %v", method, path, err)
	}
	return resp, raw
}

// invoke performs a JSON API call and fails the test unless the status
// matches. The decoded envelope is returned for both success and error
// assertions.
func (e *testEnv) invoke(t *testing.T, method, path, token string, body any, wantStatus int) apiEnvelope {
	t.Helper()
	resp, raw := e.do(t, method, path, token, nil, body)
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: status %d, want %d (body %s)", method, path, resp.StatusCode, wantStatus, raw)
	}
	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode %s %s envelope: %v", method, path, err)
	}
	return env
}

func decodeInto(t *testing.T, env apiEnvelope, target any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, target); err != nil {
		t.Fatalf("decode envelope data: %v", err)
	}
}

func assertErrorCode(t *testing.T, env apiEnvelope, code string) {
	t.Helper()
	if env.Error == nil {
		t.Fatalf("expected error code %q, got success envelope", code)
	}
	if env.Error.Code != code {
		t.Fatalf("error code = %q, want %q", env.Error.Code, code)
	}
}

func equalDays(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	expected, err := decimal.NewFromString(want)
	if err != nil {
		t.Fatalf("bad expected value %q: %v", want, err)
	}
	if !got.Equal(expected) {
		t.Fatalf("%s = %s, want %s", label, got.String(), want)
	}
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	env := e.invoke(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	}, http.StatusOK)
	var out struct {
		Token string `json:"token"`
	}
	decodeInto(t, env, &out)
	if out.Token == "" {
		t.Fatalf("login %s returned an empty token", email)
	}
	return out.Token
}

func (e *testEnv) consolidatedTypeID(t *testing.T, token string) string {
	t.Helper()
	env := e.invoke(t, http.MethodGet, "/leave/types", token, nil, http.StatusOK)
	var types []struct {
		ID   string `json:"id"`
		Code string `json:"code"`
	}
	decodeInto(t, env, &types)
	for _, lt := range types {
		if lt.Code == "consolidated" {
			return lt.ID
		}
	}
	t.Fatalf("seed did not create the consolidated leave type")
	return ""
}

type testAccount struct {
	EmployeeID string
	UserID     string
	Email      string
	Token      string
}

// newEmployee provisions an employee with a login through the HR API.
// The caller logs in separately so role promotions can happen before
// the JWT is issued.
func (e *testEnv) newEmployee(t *testing.T, hrToken, label, managerEmployeeID string) testAccount {
	t.Helper()
	now := time.Now().UnixNano()
	email := fmt.Sprintf("%s-%d@example.com", label, now)
	payload := map[string]any{
		"employeeNumber":  fmt.Sprintf("E-%d", now),
		"firstName":       "Test",
		"lastName":        label,
		"email":           email,
		"startDate":       "2024-01-08T00:00:00Z",
		"initialPassword": testUserPassword,
	}
	if managerEmployeeID != "" {
		payload["managerId"] = managerEmployeeID
	}
	env := e.invoke(t, http.MethodPost, "/employees", hrToken, payload, http.StatusCreated)
	var out struct {
		ID     string `json:"id"`
		UserID string `json:"userId"`
	}
	decodeInto(t, env, &out)
	if out.ID == "" || out.UserID == "" {
		t.Fatalf("employee create returned id=%q userId=%q", out.ID, out.UserID)
	}
	return testAccount{EmployeeID: out.ID, UserID: out.UserID, Email: email}
}

func (e *testEnv) promote(t *testing.T, userID, roleName string) {
	t.Helper()
	tag, err := e.app.DB.Exec(context.Background(), `
    UPDATE users
    SET role_id = (SELECT r.id FROM roles r WHERE r.tenant_id = users.tenant_id AND r.name = $2)
    WHERE id = $1
  `, userID, roleName)
	if err != nil {
		t.Fatalf("promote user to %s: %v", roleName, err)
	}
	if tag.RowsAffected() != 1 {
		t.Fatalf("promote user to %s: %d rows affected", roleName, tag.RowsAffected())
	}
}

// newManagerAndReport provisions a manager with one direct report and
// returns both logged in.
func (e *testEnv) newManagerAndReport(t *testing.T, hrToken string) (testAccount, testAccount) {
	t.Helper()
	manager := e.newEmployee(t, hrToken, "manager", "")
	e.promote(t, manager.UserID, auth.RoleManager)
	manager.Token = e.login(t, manager.Email, testUserPassword)

	report := e.newEmployee(t, hrToken, "report", manager.EmployeeID)
	report.Token = e.login(t, report.Email, testUserPassword)
	return manager, report
}

func (e *testEnv) allocate(t *testing.T, hrToken, employeeID string, year, days int) {
	t.Helper()
	e.invoke(t, http.MethodPost, "/leave/balances/"+employeeID+"/adjust", hrToken, map[string]any{
		"year":      year,
		"direction": "add",
		"amount":    days,
		"reason":    "annual allocation",
	}, http.StatusCreated)
}

type deductionView struct {
	ActualDays   decimal.Decimal `json:"actualDays"`
	DeductedDays decimal.Decimal `json:"deductedDays"`
	IsSandwich   bool            `json:"isSandwich"`
	Reason       string          `json:"reason"`
}

type applicationView struct {
	ID              string          `json:"id"`
	EmployeeID      string          `json:"employeeId"`
	LeaveTypeID     string          `json:"leaveTypeId"`
	StartDate       time.Time       `json:"startDate"`
	EndDate         time.Time       `json:"endDate"`
	HalfDay         bool            `json:"halfDay"`
	Status          string          `json:"status"`
	DeductedDays    decimal.Decimal `json:"deductedDays"`
	IsSandwich      bool            `json:"isSandwich"`
	DeductionReason string          `json:"deductionReason"`
}

type submitView struct {
	Application applicationView `json:"application"`
	Projected   deductionView   `json:"projected"`
}

type decisionView struct {
	Application     applicationView `json:"application"`
	BalanceDelta    decimal.Decimal `json:"balanceDelta"`
	PairedSiblingID string          `json:"pairedSiblingId"`
}

type balanceView struct {
	ID            string          `json:"id"`
	EmployeeID    string          `json:"employeeId"`
	Year          int             `json:"year"`
	AllocatedDays decimal.Decimal `json:"allocatedDays"`
	UsedDays      decimal.Decimal `json:"usedDays"`
	RemainingDays decimal.Decimal `json:"remainingDays"`
}

func (e *testEnv) submitLeave(t *testing.T, token string, payload map[string]any) submitView {
	t.Helper()
	env := e.invoke(t, http.MethodPost, "/leave/applications", token, payload, http.StatusCreated)
	var out submitView
	decodeInto(t, env, &out)
	if out.Application.ID == "" {
		t.Fatalf("submit returned no application id")
	}
	return out
}

func (e *testEnv) decide(t *testing.T, token, applicationID, verb string) decisionView {
	t.Helper()
	env := e.invoke(t, http.MethodPost, "/leave/applications/"+applicationID+"/"+verb, token, nil, http.StatusOK)
	var out decisionView
	decodeInto(t, env, &out)
	return out
}

func (e *testEnv) balance(t *testing.T, token, employeeID string, year int) balanceView {
	t.Helper()
	env := e.invoke(t, http.MethodGet, "/leave/balances/"+employeeID, token, nil, http.StatusOK)
	var balances []balanceView
	decodeInto(t, env, &balances)
	for _, bal := range balances {
		if bal.Year == year {
			return bal
		}
	}
	t.Fatalf("no %d balance for employee %s", year, employeeID)
	return balanceView{}
}

func (e *testEnv) getApplication(t *testing.T, token, applicationID string) applicationView {
	t.Helper()
	env := e.invoke(t, http.MethodGet, "/leave/applications/"+applicationID, token, nil, http.StatusOK)
	var out applicationView
	decodeInto(t, env, &out)
	return out
}

// TestLeaveApplicationLifecycle walks one application through submit,
// approval, withdrawal, and re-approval, checking the ledger after each
// transition. The range Tue 2025-03-11 to Thu 2025-03-13 stays clear of
// every weekend rule, so the charge is plain working days.
func TestLeaveApplicationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	hr := env.login(t, testAdminEmail, testAdminPassword)
	typeID := env.consolidatedTypeID(t, hr)
	manager, report := env.newManagerAndReport(t, hr)
	env.allocate(t, hr, report.EmployeeID, 2025, 20)

	submitted := env.submitLeave(t, report.Token, map[string]any{
		"leaveTypeId": typeID,
		"startDate":   "2025-03-11",
		"endDate":     "2025-03-13",
		"reason":      "family visit",
	})
	if submitted.Application.Status != "pending" {
		t.Fatalf("status after submit = %q, want pending", submitted.Application.Status)
	}
	equalDays(t, "projected deduction", submitted.Projected.DeductedDays, "3")
	equalDays(t, "projected actual days", submitted.Projected.ActualDays, "3")
	if submitted.Projected.IsSandwich {
		t.Fatalf("midweek range must not project as sandwich")
	}
	if submitted.Projected.Reason != "standard_working_days" {
		t.Fatalf("projected reason = %q, want standard_working_days", submitted.Projected.Reason)
	}

	// Nothing is charged while the application is pending.
	bal := env.balance(t, report.Token, report.EmployeeID, 2025)
	equalDays(t, "used before approval", bal.UsedDays, "0")
	equalDays(t, "allocated", bal.AllocatedDays, "20")

	appID := submitted.Application.ID

	decision := env.decide(t, manager.Token, appID, "approve")
	if decision.Application.Status != "approved" {
		t.Fatalf("status after approve = %q, want approved", decision.Application.Status)
	}
	equalDays(t, "approval delta", decision.BalanceDelta, "3")
	equalDays(t, "deducted days", decision.Application.DeductedDays, "3")
	if decision.Application.IsSandwich {
		t.Fatalf("midweek approval must not be marked sandwich")
	}
	if decision.Application.DeductionReason != "standard_working_days" {
		t.Fatalf("deduction reason = %q, want standard_working_days", decision.Application.DeductionReason)
	}

	bal = env.balance(t, report.Token, report.EmployeeID, 2025)
	equalDays(t, "used after approval", bal.UsedDays, "3")
	equalDays(t, "remaining after approval", bal.RemainingDays, "17")

	// Withdrawal refunds exactly what approval charged.
	decision = env.decide(t, report.Token, appID, "withdraw")
	if decision.Application.Status != "withdrawn" {
		t.Fatalf("status after withdraw = %q, want withdrawn", decision.Application.Status)
	}
	equalDays(t, "withdraw delta", decision.BalanceDelta, "-3")

	bal = env.balance(t, report.Token, report.EmployeeID, 2025)
	equalDays(t, "used after withdraw", bal.UsedDays, "0")
	equalDays(t, "remaining after withdraw", bal.RemainingDays, "20")

	// A withdrawn application can be approved again and charges afresh.
	decision = env.decide(t, manager.Token, appID, "approve")
	equalDays(t, "re-approval delta", decision.BalanceDelta, "3")
	bal = env.balance(t, report.Token, report.EmployeeID, 2025)
	equalDays(t, "used after re-approval", bal.UsedDays, "3")

	// The employee sees the approved application in their own list.
	envlp := env.invoke(t, http.MethodGet, "/leave/applications?status=approved", report.Token, nil, http.StatusOK)
	var apps []applicationView
	decodeInto(t, envlp, &apps)
	found := false
	for _, app := range apps {
		if app.ID == appID {
			found = true
		}
		if app.EmployeeID != report.EmployeeID {
			t.Fatalf("employee list leaked application for employee %s", app.EmployeeID)
		}
	}
	if !found {
		t.Fatalf("approved application missing from employee list")
	}

	// Approval produced a notification the employee can mark as read.
	envlp = env.invoke(t, http.MethodGet, "/notifications", report.Token, nil, http.StatusOK)
	var notes []struct {
		ID     string     `json:"id"`
		Type   string     `json:"type"`
		ReadAt *time.Time `json:"readAt"`
	}
	decodeInto(t, envlp, &notes)
	noteID := ""
	for _, note := range notes {
		if note.Type == "leave_approved" {
			noteID = note.ID
			break
		}
	}
	if noteID == "" {
		t.Fatalf("no leave_approved notification delivered")
	}
	envlp = env.invoke(t, http.MethodPost, "/notifications/"+noteID+"/read", report.Token, nil, http.StatusOK)
	var readOut map[string]string
	decodeInto(t, envlp, &readOut)
	if readOut["status"] != "read" {
		t.Fatalf("mark read returned %v", readOut)
	}
}

package handlers_test

import (
	"net/http"
	"testing"

	"hrms/internal/domain/auth"
)

func TestLeaveVisibilityScoping(t *testing.T) {
	env := newTestEnv(t)
	hr := env.login(t, testAdminEmail, testAdminPassword)
	typeID := env.consolidatedTypeID(t, hr)
	manager, report := env.newManagerAndReport(t, hr)

	stranger := env.newEmployee(t, hr, "stranger", "")
	strangerToken := env.login(t, stranger.Email, testUserPassword)

	submitted := env.submitLeave(t, report.Token, map[string]any{
		"leaveTypeId": typeID,
		"startDate":   "2025-03-11",
		"endDate":     "2025-03-12",
	})

	// Managers see their reports' balances but nobody else's.
	env.invoke(t, http.MethodGet, "/leave/balances/"+report.EmployeeID, manager.Token, nil, http.StatusOK)
	envlp := env.invoke(t, http.MethodGet, "/leave/balances/"+stranger.EmployeeID, manager.Token, nil, http.StatusForbidden)
	assertErrorCode(t, envlp, "forbidden")

	// Employees see only their own balances and applications.
	envlp = env.invoke(t, http.MethodGet, "/leave/balances/"+report.EmployeeID, strangerToken, nil, http.StatusForbidden)
	assertErrorCode(t, envlp, "forbidden")
	envlp = env.invoke(t, http.MethodGet, "/leave/applications/"+submitted.Application.ID, strangerToken, nil, http.StatusForbidden)
	assertErrorCode(t, envlp, "forbidden")

	// The manager of the applicant can read the application.
	env.invoke(t, http.MethodGet, "/leave/applications/"+submitted.Application.ID, manager.Token, nil, http.StatusOK)

	// Employees cannot decide applications at all.
	envlp = env.invoke(t, http.MethodPost, "/leave/applications/"+submitted.Application.ID+"/approve", strangerToken, nil, http.StatusForbidden)
	assertErrorCode(t, envlp, "forbidden")

	// A manager with no relation to the applicant cannot decide either.
	otherManager := env.newEmployee(t, hr, "othermgr", "")
	env.promote(t, otherManager.UserID, auth.RoleManager)
	otherManagerToken := env.login(t, otherManager.Email, testUserPassword)
	envlp = env.invoke(t, http.MethodPost, "/leave/applications/"+submitted.Application.ID+"/approve", otherManagerToken, nil, http.StatusForbidden)
	assertErrorCode(t, envlp, "forbidden")
}

func TestSelfApprovalBlocked(t *testing.T) {
	env := newTestEnv(t)
	hr := env.login(t, testAdminEmail, testAdminPassword)
	typeID := env.consolidatedTypeID(t, hr)
	manager, _ := env.newManagerAndReport(t, hr)
	env.allocate(t, hr, manager.EmployeeID, 2025, 20)

	submitted := env.submitLeave(t, manager.Token, map[string]any{
		"leaveTypeId": typeID,
		"startDate":   "2025-03-11",
		"endDate":     "2025-03-12",
	})

	// Managers cannot approve their own requests, whatever their role
	// grants.
	envlp := env.invoke(t, http.MethodPost, "/leave/applications/"+submitted.Application.ID+"/approve", manager.Token, nil, http.StatusForbidden)
	assertErrorCode(t, envlp, "self_approval")

	// HR can.
	decision := env.decide(t, hr, submitted.Application.ID, "approve")
	if decision.Application.Status != "approved" {
		t.Fatalf("status after hr approval = %q", decision.Application.Status)
	}
	equalDays(t, "hr approval delta", decision.BalanceDelta, "2")
}

func TestOverlappingApplicationsRejected(t *testing.T) {
	env := newTestEnv(t)
	hr := env.login(t, testAdminEmail, testAdminPassword)
	typeID := env.consolidatedTypeID(t, hr)
	_, report := env.newManagerAndReport(t, hr)

	first := env.submitLeave(t, report.Token, map[string]any{
		"leaveTypeId": typeID,
		"startDate":   "2025-03-11",
		"endDate":     "2025-03-13",
	})

	envlp := env.invoke(t, http.MethodPost, "/leave/applications", report.Token, map[string]any{
		"leaveTypeId": typeID,
		"startDate":   "2025-03-12",
		"endDate":     "2025-03-14",
	}, http.StatusConflict)
	assertErrorCode(t, envlp, "overlapping_leave")

	// Withdrawn applications release the range.
	env.decide(t, report.Token, first.Application.ID, "withdraw")
	env.submitLeave(t, report.Token, map[string]any{
		"leaveTypeId": typeID,
		"startDate":   "2025-03-12",
		"endDate":     "2025-03-14",
	})
}

func TestCancelOnlyFromPending(t *testing.T) {
	env := newTestEnv(t)
	hr := env.login(t, testAdminEmail, testAdminPassword)
	typeID := env.consolidatedTypeID(t, hr)
	manager, report := env.newManagerAndReport(t, hr)
	env.allocate(t, hr, report.EmployeeID, 2025, 20)

	submitted := env.submitLeave(t, report.Token, map[string]any{
		"leaveTypeId": typeID,
		"startDate":   "2025-03-11",
		"endDate":     "2025-03-12",
	})

	// Only the applicant can cancel.
	envlp := env.invoke(t, http.MethodPost, "/leave/applications/"+submitted.Application.ID+"/cancel", manager.Token, nil, http.StatusForbidden)
	assertErrorCode(t, envlp, "forbidden")

	envlp = env.invoke(t, http.MethodPost, "/leave/applications/"+submitted.Application.ID+"/cancel", report.Token, nil, http.StatusOK)
	var out map[string]string
	decodeInto(t, envlp, &out)
	if out["status"] != "cancelled" {
		t.Fatalf("cancel returned status %q", out["status"])
	}

	// Cancelled is terminal for the applicant; a second cancel is an
	// invalid state.
	envlp = env.invoke(t, http.MethodPost, "/leave/applications/"+submitted.Application.ID+"/cancel", report.Token, nil, http.StatusBadRequest)
	assertErrorCode(t, envlp, "invalid_state")

	// Approving a cancelled application is not a valid transition.
	envlp = env.invoke(t, http.MethodPost, "/leave/applications/"+submitted.Application.ID+"/approve", manager.Token, nil, http.StatusBadRequest)
	assertErrorCode(t, envlp, "invalid_state")
}

func TestStatusChangeCompareAndSwap(t *testing.T) {
	env := newTestEnv(t)
	hr := env.login(t, testAdminEmail, testAdminPassword)
	typeID := env.consolidatedTypeID(t, hr)
	_, report := env.newManagerAndReport(t, hr)
	env.allocate(t, hr, report.EmployeeID, 2025, 20)

	submitted := env.submitLeave(t, report.Token, map[string]any{
		"leaveTypeId": typeID,
		"startDate":   "2025-03-11",
		"endDate":     "2025-03-13",
	})
	path := "/leave/applications/" + submitted.Application.ID + "/status"

	// A stale expected status is refused without touching the row.
	envlp := env.invoke(t, http.MethodPost, path, hr, map[string]string{
		"oldStatus": "approved",
		"newStatus": "rejected",
	}, http.StatusConflict)
	assertErrorCode(t, envlp, "status_conflict")

	envlp = env.invoke(t, http.MethodPost, path, hr, map[string]string{
		"oldStatus": "pending",
		"newStatus": "nonsense",
	}, http.StatusBadRequest)
	assertErrorCode(t, envlp, "invalid_payload")

	// The matching expected status succeeds and settles the balance.
	envlp = env.invoke(t, http.MethodPost, path, hr, map[string]string{
		"oldStatus": "pending",
		"newStatus": "approved",
	}, http.StatusOK)
	var decision decisionView
	decodeInto(t, envlp, &decision)
	if decision.Application.Status != "approved" {
		t.Fatalf("status after swap = %q", decision.Application.Status)
	}
	equalDays(t, "swap delta", decision.BalanceDelta, "3")

	// The raw transition endpoint is HR-only.
	env.invoke(t, http.MethodPost, path, report.Token, map[string]string{
		"oldStatus": "approved",
		"newStatus": "rejected",
	}, http.StatusForbidden)
}

func TestSubmissionValidation(t *testing.T) {
	env := newTestEnv(t)
	hr := env.login(t, testAdminEmail, testAdminPassword)
	typeID := env.consolidatedTypeID(t, hr)
	_, report := env.newManagerAndReport(t, hr)

	envlp := env.invoke(t, http.MethodPost, "/leave/applications", report.Token, map[string]any{
		"leaveTypeId": typeID,
		"startDate":   "2025-03-13",
		"endDate":     "2025-03-11",
	}, http.StatusBadRequest)
	assertErrorCode(t, envlp, "invalid_dates")

	envlp = env.invoke(t, http.MethodPost, "/leave/applications", report.Token, map[string]any{
		"leaveTypeId": missingID,
		"startDate":   "2025-03-11",
		"endDate":     "2025-03-11",
	}, http.StatusNotFound)
	assertErrorCode(t, envlp, "not_found")

	// Leave cannot start before the employee joined (2024-01-08 in the
	// fixture).
	envlp = env.invoke(t, http.MethodPost, "/leave/applications", report.Token, map[string]any{
		"leaveTypeId": typeID,
		"startDate":   "2024-01-02",
		"endDate":     "2024-01-03",
	}, http.StatusBadRequest)
	assertErrorCode(t, envlp, "invalid_dates")

	envlp = env.invoke(t, http.MethodPost, "/leave/applications", report.Token, map[string]any{
		"startDate": "2025-03-11",
		"endDate":   "2025-03-11",
	}, http.StatusBadRequest)
	assertErrorCode(t, envlp, "invalid_payload")

	envlp = env.invoke(t, http.MethodPost, "/leave/applications", report.Token, map[string]any{
		"leaveTypeId": typeID,
		"startDate":   "not-a-date",
		"endDate":     "2025-03-11",
	}, http.StatusBadRequest)
	assertErrorCode(t, envlp, "invalid_payload")
}

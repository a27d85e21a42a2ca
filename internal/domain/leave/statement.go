package leave

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jung-kurt/gofpdf"
)

// BalanceStatementPDF renders one employee's year as a downloadable
// statement: the consolidated bucket totals, the approved applications
// charged against it, and the adjustment log.
func (s *Service) BalanceStatementPDF(ctx context.Context, tenantID, employeeID string, year int) ([]byte, error) {
	emp, err := s.Core.GetEmployee(ctx, tenantID, employeeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEmployeeNotFound
	}
	if err != nil {
		return nil, err
	}

	bal, found, err := s.Store.GetBalance(ctx, tenantID, employeeID, year)
	if err != nil {
		return nil, err
	}
	apps, err := s.Store.ApprovedApplicationsForEmployeeYear(ctx, tenantID, employeeID, year)
	if err != nil {
		return nil, err
	}
	adjustments, _, err := s.Store.ListAdjustments(ctx, tenantID, employeeID, 200, 0)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, fmt.Sprintf("Leave Statement %d", year))
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s %s", emp.FirstName, emp.LastName))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Leave bucket: %s", s.ConsolidatedType))
	pdf.Ln(7)
	if found {
		pdf.Cell(0, 8, fmt.Sprintf("Allocated: %s   Used: %s   Remaining: %s", bal.AllocatedDays, bal.UsedDays, bal.RemainingDays()))
	} else {
		pdf.Cell(0, 8, "No balance recorded for this year")
	}
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Approved leave")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	if len(apps) == 0 {
		pdf.Cell(0, 6, "None")
		pdf.Ln(6)
	}
	for _, app := range apps {
		pdf.Cell(0, 6, fmt.Sprintf("%s to %s   %s days   %s",
			app.StartDate.Format(dateLayout), app.EndDate.Format(dateLayout),
			app.DeductedDays, app.DeductionReason))
		pdf.Ln(6)
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Adjustments")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	listed := 0
	for _, adj := range adjustments {
		if adj.Year != year {
			continue
		}
		listed++
		pdf.Cell(0, 6, fmt.Sprintf("%s   %s %s days   %s -> %s   %s",
			adj.CreatedAt.Format(dateLayout), adj.Direction, adj.Amount,
			adj.AllocatedBefore, adj.AllocatedAfter, adj.Reason))
		pdf.Ln(6)
	}
	if listed == 0 {
		pdf.Cell(0, 6, "None")
		pdf.Ln(6)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

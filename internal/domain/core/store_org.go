package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"hrms/internal/domain/auth"
)

func (s *Store) EmployeeIDByUserID(ctx context.Context, tenantID, userID string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    SELECT id
    FROM employees
    WHERE tenant_id = $1 AND user_id = $2
  `, tenantID, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// CreateEmployeeWithUser provisions the login and the employee record together
// so a half-created account never lingers.
func (s *Store) CreateEmployeeWithUser(ctx context.Context, tenantID string, emp Employee, password string) (string, string, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", "", err
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return "", "", err
	}
	defer tx.Rollback(ctx)

	var roleID string
	if err := tx.QueryRow(ctx, `
    SELECT id FROM roles WHERE tenant_id = $1 AND name = $2
  `, tenantID, auth.RoleEmployee).Scan(&roleID); err != nil {
		return "", "", err
	}

	var userID string
	if err := tx.QueryRow(ctx, `
    INSERT INTO users (tenant_id, email, password_hash, role_id, status)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id
  `, tenantID, emp.Email, hash, roleID, UserStatusActive).Scan(&userID); err != nil {
		return "", "", err
	}

	nationalEnc, bankEnc, salaryEnc := encryptEmployeeSensitive(s.Crypto, emp)
	var nationalPlain, bankPlain any = emp.NationalID, emp.BankAccount
	var salaryPlain any = emp.Salary
	if s.Crypto != nil && s.Crypto.Configured() {
		nationalPlain = nil
		bankPlain = nil
		salaryPlain = nil
	}

	var employeeID string
	if err := tx.QueryRow(ctx, `
    INSERT INTO employees (tenant_id, user_id, employee_number, first_name, last_name, email, phone, date_of_birth,
      address, national_id, national_id_enc, bank_account, bank_account_enc, salary, salary_enc, currency,
      employment_type, department_id, manager_id, start_date, end_date, status)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
    RETURNING id
  `,
		tenantID, userID, nullIfEmpty(emp.EmployeeNumber), emp.FirstName, emp.LastName, emp.Email, emp.Phone,
		emp.DateOfBirth, emp.Address, nationalPlain, nationalEnc, bankPlain, bankEnc, salaryPlain, salaryEnc,
		emp.Currency, emp.EmploymentType, nullIfEmpty(emp.DepartmentID), nullIfEmpty(emp.ManagerID),
		emp.StartDate, emp.EndDate, emp.Status,
	).Scan(&employeeID); err != nil {
		return "", "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", "", err
	}
	return employeeID, userID, nil
}

func (s *Store) InsertAccessLog(ctx context.Context, tenantID, actorID, employeeID, requestID string, fields []string) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO employee_access_logs (tenant_id, actor_user_id, employee_id, request_id, fields)
    VALUES ($1,$2,$3,$4,$5)
  `, tenantID, actorID, employeeID, requestID, fields)
	return err
}

func (s *Store) CreateManagerRelation(ctx context.Context, employeeID, managerID string) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO manager_relations (employee_id, manager_id, started_at)
    VALUES ($1,$2,now())
  `, employeeID, managerID)
	return err
}

func (s *Store) CloseManagerRelations(ctx context.Context, employeeID string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE manager_relations
    SET ended_at = now()
    WHERE employee_id = $1 AND ended_at IS NULL
  `, employeeID)
	return err
}

func (s *Store) ManagerHistory(ctx context.Context, employeeID string) ([]map[string]any, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT mr.manager_id, m.first_name, m.last_name, mr.started_at, mr.ended_at
    FROM manager_relations mr
    JOIN employees m ON mr.manager_id = m.id
    WHERE mr.employee_id = $1
    ORDER BY mr.started_at DESC
  `, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var managerID, firstName, lastName string
		var startedAt any
		var endedAt any
		if err := rows.Scan(&managerID, &firstName, &lastName, &startedAt, &endedAt); err != nil {
			return nil, err
		}
		out = append(out, map[string]any{
			"managerId":   managerID,
			"managerName": firstName + " " + lastName,
			"startedAt":   startedAt,
			"endedAt":     endedAt,
		})
	}
	return out, nil
}

func (s *Store) DepartmentCount(ctx context.Context, tenantID string) (int, error) {
	var count int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM departments WHERE tenant_id = $1", tenantID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) ListDepartments(ctx context.Context, tenantID string, limit, offset int) ([]Department, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, COALESCE(parent_id::text, ''), COALESCE(manager_id::text, ''), created_at
    FROM departments
    WHERE tenant_id = $1
    ORDER BY name
    LIMIT $2 OFFSET $3
  `, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Department
	for rows.Next() {
		var dep Department
		if err := rows.Scan(&dep.ID, &dep.Name, &dep.ParentID, &dep.ManagerID, &dep.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, dep)
	}
	return out, nil
}

func (s *Store) CreateDepartment(ctx context.Context, tenantID string, dep Department) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO departments (tenant_id, name, parent_id, manager_id)
    VALUES ($1,$2,$3,$4)
    RETURNING id
  `, tenantID, dep.Name, nullIfEmpty(dep.ParentID), nullIfEmpty(dep.ManagerID)).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) UpdateDepartment(ctx context.Context, tenantID, departmentID string, dep Department) (bool, error) {
	cmd, err := s.DB.Exec(ctx, `
    UPDATE departments
    SET name = $1, parent_id = $2, manager_id = $3
    WHERE tenant_id = $4 AND id = $5
  `, dep.Name, nullIfEmpty(dep.ParentID), nullIfEmpty(dep.ManagerID), tenantID, departmentID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (s *Store) DepartmentHasEmployees(ctx context.Context, tenantID, departmentID string) (bool, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM employees
    WHERE tenant_id = $1 AND department_id = $2
  `, tenantID, departmentID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) DeleteDepartment(ctx context.Context, tenantID, departmentID string) error {
	_, err := s.DB.Exec(ctx, "DELETE FROM departments WHERE tenant_id = $1 AND id = $2", tenantID, departmentID)
	return err
}

func (s *Store) OrgChartNodes(ctx context.Context, tenantID, employeeID string) ([]map[string]any, error) {
	query := `
    WITH RECURSIVE tree AS (
      SELECT id, first_name, last_name, COALESCE(manager_id::text, '') AS manager_id,
             COALESCE(department_id::text, '') AS department_id, 0 AS depth
      FROM employees
      WHERE tenant_id = $1 AND manager_id IS NULL
      UNION ALL
      SELECT e.id, e.first_name, e.last_name, COALESCE(e.manager_id::text, ''),
             COALESCE(e.department_id::text, ''), tree.depth + 1
      FROM employees e
      JOIN tree ON e.manager_id = tree.id
      WHERE e.tenant_id = $1
    )
    SELECT id, first_name, last_name, manager_id, department_id, depth
    FROM tree
  `
	args := []any{tenantID}
	if employeeID != "" {
		query = `
    WITH RECURSIVE tree AS (
      SELECT id, first_name, last_name, COALESCE(manager_id::text, '') AS manager_id,
             COALESCE(department_id::text, '') AS department_id, 0 AS depth
      FROM employees
      WHERE tenant_id = $1 AND id = $2
      UNION ALL
      SELECT e.id, e.first_name, e.last_name, COALESCE(e.manager_id::text, ''),
             COALESCE(e.department_id::text, ''), tree.depth + 1
      FROM employees e
      JOIN tree ON e.manager_id = tree.id
      WHERE e.tenant_id = $1
    )
    SELECT id, first_name, last_name, manager_id, department_id, depth
    FROM tree
  `
		args = append(args, employeeID)
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var id, firstName, lastName, managerID, departmentID string
		var depth int
		if err := rows.Scan(&id, &firstName, &lastName, &managerID, &departmentID, &depth); err != nil {
			return nil, err
		}
		out = append(out, map[string]any{
			"id":           id,
			"name":         firstName + " " + lastName,
			"managerId":    managerID,
			"departmentId": departmentID,
			"depth":        depth,
		})
	}
	return out, nil
}

func (s *Store) ListPermissions(ctx context.Context) ([]map[string]string, error) {
	rows, err := s.DB.Query(ctx, "SELECT id, key FROM permissions ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]string
	for rows.Next() {
		var id, key string
		if err := rows.Scan(&id, &key); err != nil {
			return nil, err
		}
		out = append(out, map[string]string{"id": id, "key": key})
	}
	return out, nil
}

func (s *Store) ListRoles(ctx context.Context, tenantID string) ([]map[string]any, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT r.id, r.name, COALESCE(array_agg(p.key) FILTER (WHERE p.key IS NOT NULL), '{}')
    FROM roles r
    LEFT JOIN role_permissions rp ON rp.role_id = r.id
    LEFT JOIN permissions p ON p.id = rp.permission_id
    WHERE r.tenant_id = $1
    GROUP BY r.id, r.name
    ORDER BY r.name
  `, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var id, name string
		var perms []string
		if err := rows.Scan(&id, &name, &perms); err != nil {
			return nil, err
		}
		out = append(out, map[string]any{"id": id, "name": name, "permissions": perms})
	}
	return out, nil
}

func (s *Store) RoleTenant(ctx context.Context, roleID string) (string, error) {
	var tenantID string
	if err := s.DB.QueryRow(ctx, "SELECT tenant_id FROM roles WHERE id = $1", roleID).Scan(&tenantID); err != nil {
		return "", err
	}
	return tenantID, nil
}

func (s *Store) UpdateRolePermissions(ctx context.Context, roleID string, permissions []string) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM role_permissions WHERE role_id = $1", roleID); err != nil {
		return err
	}
	if len(permissions) > 0 {
		if _, err := tx.Exec(ctx, `
      INSERT INTO role_permissions (role_id, permission_id)
      SELECT $1, id FROM permissions WHERE key = ANY($2)
    `, roleID, permissions); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

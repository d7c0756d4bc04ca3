package repo

import (
	"context"
	"database/sql"
	"strings"

	"cutroom/internal/domain"
)

const userColumns = `id,email,name,role,plan,completed_projects,created_at`

func scanUser(scan func(dest ...any) error) (domain.User, error) {
	var u domain.User
	var plan sql.NullString
	err := scan(&u.ID, &u.Email, &u.Name, &u.Role, &plan, &u.CompletedProjects, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	if plan.Valid {
		u.Plan = plan.String
	}
	return u, nil
}

func (r Repo) InsertUser(ctx context.Context, u domain.User) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO users(`+userColumns+`) VALUES (?,?,?,?,?,?,?)`,
		u.ID, u.Email, u.Name, u.Role, nullable(u.Plan), u.CompletedProjects, u.CreatedAt)
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id)
	return scanUser(row.Scan)
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=?`, email)
	return scanUser(row.Scan)
}

func (r Repo) ListUsers(ctx context.Context, role string) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if role != "" {
		query += ` WHERE role=?`
		args = append(args, role)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// SetUserPlan updates the purchased tier, e.g. after a checkout webhook.
func (r Repo) SetUserPlan(ctx context.Context, id, plan string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET plan=? WHERE id=?`, nullable(plan), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementCompletedProjects bumps the editor's completion counter.
func (r Repo) IncrementCompletedProjects(ctx context.Context, tx *sql.Tx, userID string) error {
	res, err := tx.ExecContext(ctx, `UPDATE users SET completed_projects = completed_projects + 1 WHERE id=?`, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AdminIDs returns the ids of every admin user.
func (r Repo) AdminIDs(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM users WHERE role='admin'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// NormalizeRole lowercases and validates a role string, returning "" when unknown.
func NormalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "admin":
		return "admin"
	case "employee", "editor":
		return "employee"
	case "qc":
		return "qc"
	case "client":
		return "client"
	}
	return ""
}

package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"cutroom/internal/domain"
)

// LatestActivity returns recent activity entries, newest first.
func (r Repo) LatestActivity(ctx context.Context, limit int, projectID, entryType string) ([]domain.Activity, error) {
	return r.LatestActivityFrom(ctx, limit, 0, projectID, entryType)
}

func (r Repo) LatestActivityFrom(ctx context.Context, limit int, cursor int64, projectID, entryType string) ([]domain.Activity, error) {
	clauses := []string{"1=1"}
	var args []any
	if projectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, projectID)
	}
	if entryType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, entryType)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,project_id,actor_id,payload_json FROM activity %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	return r.queryActivity(ctx, query, args...)
}

// ActivityAfter returns entries with IDs greater than the cursor in ascending order.
func (r Repo) ActivityAfter(ctx context.Context, limit int, cursor int64, projectID string) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"1=1"}
	var args []any
	if projectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, projectID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,project_id,actor_id,payload_json FROM activity %s ORDER BY id ASC LIMIT ?`, where)
	args = append(args, limit)
	return r.queryActivity(ctx, query, args...)
}

// LatestActivityID returns the most recent entry ID.
func (r Repo) LatestActivityID(ctx context.Context) (int64, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM activity`)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r Repo) queryActivity(ctx context.Context, query string, args ...any) ([]domain.Activity, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Activity
	for rows.Next() {
		var a domain.Activity
		var payload sql.NullString
		if err := rows.Scan(&a.ID, &a.TS, &a.Type, &a.ProjectID, &a.ActorID, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			a.Payload = payload.String
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

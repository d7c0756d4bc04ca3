package repo

import (
	"context"
	"database/sql"
	"strings"

	"cutroom/internal/domain"
)

const revisionColumns = `id,project_id,requested_by_id,description,priority,category,timestamp_seconds,status,frameio_comment_id,resolved_by_id,resolved_at,created_at`

func scanRevision(scan func(dest ...any) error) (domain.Revision, error) {
	var rev domain.Revision
	var category, frameioComment, resolvedBy, resolvedAt sql.NullString
	var seconds sql.NullFloat64
	err := scan(&rev.ID, &rev.ProjectID, &rev.RequestedByID, &rev.Description, &rev.Priority,
		&category, &seconds, &rev.Status, &frameioComment, &resolvedBy, &resolvedAt, &rev.CreatedAt)
	if err == sql.ErrNoRows {
		return rev, ErrNotFound
	}
	if err != nil {
		return rev, err
	}
	if category.Valid {
		rev.Category = category.String
	}
	if seconds.Valid {
		rev.TimestampSeconds = &seconds.Float64
	}
	if frameioComment.Valid {
		rev.FrameioCommentID = &frameioComment.String
	}
	if resolvedBy.Valid {
		rev.ResolvedByID = &resolvedBy.String
	}
	if resolvedAt.Valid {
		rev.ResolvedAt = &resolvedAt.String
	}
	return rev, nil
}

func (r Repo) InsertRevision(ctx context.Context, tx *sql.Tx, rev domain.Revision) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO revisions(`+revisionColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		rev.ID, rev.ProjectID, rev.RequestedByID, rev.Description, rev.Priority, nullable(rev.Category),
		nullableFloatPtr(rev.TimestampSeconds), rev.Status, nullableStringPtr(rev.FrameioCommentID),
		nullableStringPtr(rev.ResolvedByID), nullableStringPtr(rev.ResolvedAt), rev.CreatedAt)
	return err
}

func (r Repo) GetRevision(ctx context.Context, id string) (domain.Revision, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+revisionColumns+` FROM revisions WHERE id=?`, id)
	return scanRevision(row.Scan)
}

func (r Repo) UpdateRevision(ctx context.Context, tx *sql.Tx, rev domain.Revision) error {
	res, err := tx.ExecContext(ctx, `UPDATE revisions SET description=?, priority=?, category=?, timestamp_seconds=?, status=?, frameio_comment_id=?, resolved_by_id=?, resolved_at=? WHERE id=?`,
		rev.Description, rev.Priority, nullable(rev.Category), nullableFloatPtr(rev.TimestampSeconds), rev.Status,
		nullableStringPtr(rev.FrameioCommentID), nullableStringPtr(rev.ResolvedByID), nullableStringPtr(rev.ResolvedAt), rev.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type RevisionFilters struct {
	ProjectID       string
	Status          string
	RequestedByID   string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListRevisions(ctx context.Context, f RevisionFilters) ([]domain.Revision, error) {
	var clauses []string
	var args []any
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.RequestedByID != "" {
		clauses = append(clauses, "requested_by_id=?")
		args = append(args, f.RequestedByID)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + revisionColumns + ` FROM revisions ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Revision
	for rows.Next() {
		rev, err := scanRevision(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, rev)
	}
	return res, rows.Err()
}

// CountCompletedRevisions counts revisions that consumed the plan allowance.
func (r Repo) CountCompletedRevisions(ctx context.Context, projectID string) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM revisions WHERE project_id=? AND status='completed'`, projectID).Scan(&count)
	return count, err
}

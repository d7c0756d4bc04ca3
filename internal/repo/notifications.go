package repo

import (
	"context"
	"database/sql"
	"strings"

	"cutroom/internal/domain"
)

func (r Repo) InsertNotification(ctx context.Context, n domain.Notification) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO notifications(id,user_id,type,title,message,project_id,read,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		n.ID, n.UserID, n.Type, n.Title, nullable(n.Message), nullableStringPtr(n.ProjectID), boolToInt(n.Read), n.CreatedAt)
	return err
}

type NotificationFilters struct {
	UserID          string
	UnreadOnly      bool
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListNotifications(ctx context.Context, f NotificationFilters) ([]domain.Notification, error) {
	clauses := []string{"user_id=?"}
	args := []any{f.UserID}
	if f.UnreadOnly {
		clauses = append(clauses, "read=0")
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := `SELECT id,user_id,type,title,message,project_id,read,created_at FROM notifications ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var message, projectID sql.NullString
		var read int
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &message, &projectID, &read, &n.CreatedAt); err != nil {
			return nil, err
		}
		if message.Valid {
			n.Message = message.String
		}
		if projectID.Valid {
			n.ProjectID = &projectID.String
		}
		n.Read = read != 0
		res = append(res, n)
	}
	return res, rows.Err()
}

// MarkNotificationRead flips the read flag for a notification owned by userID.
func (r Repo) MarkNotificationRead(ctx context.Context, id, userID string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE notifications SET read=1 WHERE id=? AND user_id=?`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM notifications WHERE user_id=? AND read=0`, userID).Scan(&count)
	return count, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cutroom/internal/config"
	"cutroom/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const projectColumns = `id,title,description,client_id,assigned_editor_id,assigned_qc_id,status,priority,progress,max_revisions,notes,feedback,frameio_project_id,completed_at,created_at,updated_at`

func scanProject(scan func(dest ...any) error) (domain.Project, error) {
	var p domain.Project
	var description, editorID, qcID, notes, feedback, frameioID, completedAt sql.NullString
	err := scan(&p.ID, &p.Title, &description, &p.ClientID, &editorID, &qcID, &p.Status, &p.Priority,
		&p.Progress, &p.MaxRevisions, &notes, &feedback, &frameioID, &completedAt, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if description.Valid {
		p.Description = description.String
	}
	if editorID.Valid {
		p.AssignedEditorID = &editorID.String
	}
	if qcID.Valid {
		p.AssignedQCID = &qcID.String
	}
	if notes.Valid {
		p.Notes = notes.String
	}
	if feedback.Valid {
		p.Feedback = &feedback.String
	}
	if frameioID.Valid {
		p.FrameioProjectID = &frameioID.String
	}
	if completedAt.Valid {
		p.CompletedAt = &completedAt.String
	}
	return p, nil
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(`+projectColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Title, nullable(p.Description), p.ClientID, nullableStringPtr(p.AssignedEditorID), nullableStringPtr(p.AssignedQCID),
		p.Status, p.Priority, p.Progress, p.MaxRevisions, nullable(p.Notes), nullableStringPtr(p.Feedback),
		nullableStringPtr(p.FrameioProjectID), nullableStringPtr(p.CompletedAt), p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id)
	return scanProject(row.Scan)
}

func (r Repo) GetProjectTx(ctx context.Context, tx *sql.Tx, id string) (domain.Project, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id)
	return scanProject(row.Scan)
}

func (r Repo) UpdateProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET title=?, description=?, assigned_editor_id=?, assigned_qc_id=?, status=?, priority=?, progress=?, max_revisions=?, notes=?, feedback=?, frameio_project_id=?, completed_at=?, updated_at=? WHERE id=?`,
		p.Title, nullable(p.Description), nullableStringPtr(p.AssignedEditorID), nullableStringPtr(p.AssignedQCID),
		p.Status, p.Priority, p.Progress, p.MaxRevisions, nullable(p.Notes), nullableStringPtr(p.Feedback),
		nullableStringPtr(p.FrameioProjectID), nullableStringPtr(p.CompletedAt), p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type ProjectFilters struct {
	ClientID        string
	EditorID        string
	QCID            string
	Status          string
	Priority        string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListProjects(ctx context.Context, f ProjectFilters) ([]domain.Project, error) {
	var clauses []string
	var args []any
	if f.ClientID != "" {
		clauses = append(clauses, "client_id=?")
		args = append(args, f.ClientID)
	}
	if f.EditorID != "" {
		clauses = append(clauses, "assigned_editor_id=?")
		args = append(args, f.EditorID)
	}
	if f.QCID != "" {
		clauses = append(clauses, "assigned_qc_id=?")
		args = append(args, f.QCID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority=?")
		args = append(args, f.Priority)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + projectColumns + ` FROM projects ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) CountProjectsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM projects GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}

// Platform config is stored as a single JSON row so every process sees the
// same plan catalog regardless of which workspace file seeded it.

func (r Repo) UpsertPlatformConfig(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = r.DB.ExecContext(ctx, `INSERT INTO platform_config(id,config_json,created_at,updated_at) VALUES (1,?,?,?)
ON CONFLICT(id) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`, string(payload), now, now)
	return err
}

func (r Repo) GetPlatformConfig(ctx context.Context) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT config_json FROM platform_config WHERE id=1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, err
	}
	return &cfg, cfg.Validate()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableFloatPtr(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

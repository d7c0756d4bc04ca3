package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Writer appends audit entries inside the caller's transaction so the trail
// commits or rolls back with the state change it describes.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type Payload map[string]any

func (w Writer) Append(ctx context.Context, tx *sql.Tx, entryType, projectID, actorID string, payload Payload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal activity payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO activity(ts,type,project_id,actor_id,payload_json) VALUES (?,?,?,?,?)`,
		ts, entryType, projectID, actorID, string(data))
	return err
}

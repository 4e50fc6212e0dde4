package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prepforge/mocktest-engine/internal/db"
)

// Event types appended by the generation paths.
const (
	TypeMockGenerated   = "mock.generated"
	TypeTabGenerated    = "tab.generated"
	TypeConfigRefreshed = "config.refreshed"
)

type Event struct {
	Seq       int64
	Type      string
	Key       string
	DataJSON  string
	CreatedAt int64
}

// Log appends generation events to the event_log table. Append takes a DBTX
// so the row commits atomically with the generation transaction it records.
type Log struct{}

func NewLog() *Log { return &Log{} }

func (l *Log) Append(ctx context.Context, q db.DBTX, typ, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4)`,
		typ, key, string(data), time.Now().Unix())
	return err
}

// Package audit — append-only журнал операций над инстансами.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"fabrika/internal/apperr"
	"fabrika/internal/meta"
)

// Entry — одна строка журнала. FK на инстанс нет намеренно: журнал переживает
// физическое удаление записей.
type Entry struct {
	ID               int64           `json:"id"`
	EntityTypeID     int64           `json:"entity_type_id"`
	EntityInstanceID int64           `json:"entity_instance_id"`
	Operation        meta.Operation  `json:"operation"`
	ChangedBy        string          `json:"changed_by"`
	OldValues        json.RawMessage `json:"old_values,omitempty"`
	NewValues        json.RawMessage `json:"new_values,omitempty"`
	IPAddress        string          `json:"ip_address,omitempty"`
	UserAgent        string          `json:"user_agent,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// RequestMeta — метаданные запроса от вызывающего; для ядра это непрозрачные
// строки.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

type Recorder struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewRecorder(db *sql.DB, log zerolog.Logger) *Recorder {
	return &Recorder{db: db, log: log.With().Str("component", "audit").Logger()}
}

// Record пишет строку журнала со слепками значений до и после операции.
// Сбой записи не валит бизнес-операцию: логируем и едем дальше.
func (r *Recorder) Record(ctx context.Context, entityTypeID, instanceID int64, op meta.Operation, actor string, oldValues, newValues map[string]any, req RequestMeta) {
	_, err := r.db.ExecContext(ctx, `
		insert into audit_log (entity_type_id, entity_instance_id, operation, changed_by,
			old_values, new_values, ip_address, user_agent)
		values ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entityTypeID, instanceID, string(op), actor,
		r.snapshot(oldValues), r.snapshot(newValues), req.IPAddress, req.UserAgent)
	if err != nil {
		r.log.Error().Err(err).
			Int64("entity_type_id", entityTypeID).
			Int64("instance_id", instanceID).
			Str("operation", string(op)).
			Msg("audit write failed")
	}
}

func (r *Recorder) snapshot(values map[string]any) any {
	if len(values) == 0 {
		return nil
	}
	b, err := json.Marshal(values)
	if err != nil {
		r.log.Error().Err(err).Msg("audit snapshot not serializable, stored without payload")
		return nil
	}
	return b
}

// Recent — последние записи журнала по типу сущности.
func (r *Recorder) Recent(ctx context.Context, entityTypeID int64, limit int) ([]*Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		select id, entity_type_id, entity_instance_id, operation, changed_by,
		       old_values, new_values, ip_address, user_agent, created_at
		from audit_log
		where entity_type_id = $1
		order by id desc
		limit $2`, entityTypeID, limit)
	if err != nil {
		return nil, apperr.Store("audit.recent", err)
	}
	defer rows.Close()
	return scanEntries(rows, "audit.recent")
}

// ForInstance — история конкретного инстанса, от новых к старым.
func (r *Recorder) ForInstance(ctx context.Context, instanceID int64, limit int) ([]*Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		select id, entity_type_id, entity_instance_id, operation, changed_by,
		       old_values, new_values, ip_address, user_agent, created_at
		from audit_log
		where entity_instance_id = $1
		order by id desc
		limit $2`, instanceID, limit)
	if err != nil {
		return nil, apperr.Store("audit.for instance", err)
	}
	defer rows.Close()
	return scanEntries(rows, "audit.for instance")
}

func scanEntries(rows *sql.Rows, op string) ([]*Entry, error) {
	var out []*Entry
	for rows.Next() {
		e := &Entry{}
		var opName string
		var oldVals, newVals []byte
		if err := rows.Scan(&e.ID, &e.EntityTypeID, &e.EntityInstanceID, &opName, &e.ChangedBy,
			&oldVals, &newVals, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, apperr.Store(op, err)
		}
		e.Operation = meta.Operation(opName)
		e.OldValues = oldVals
		e.NewValues = newVals
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store(op, err)
	}
	return out, nil
}

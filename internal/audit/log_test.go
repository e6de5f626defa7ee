package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"fabrika/internal/meta"
)

func TestRecordWritesRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("insert into audit_log").
		WithArgs(int64(100), int64(5), "CREATE", "ivan",
			nil, []byte(`{"NAME":"Coal"}`), "10.0.0.1", "curl/8.5").
		WillReturnResult(sqlmock.NewResult(1, 1))

	r := NewRecorder(db, zerolog.Nop())
	r.Record(context.Background(), 100, 5, meta.OpCreate, "ivan",
		nil, map[string]any{"NAME": "Coal"},
		RequestMeta{IPAddress: "10.0.0.1", UserAgent: "curl/8.5"})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordOldAndNewSnapshots(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("insert into audit_log").
		WithArgs(int64(100), int64(5), "UPDATE", "ivan",
			[]byte(`{"QTY":1}`), []byte(`{"QTY":2}`), "", "").
		WillReturnResult(sqlmock.NewResult(1, 1))

	r := NewRecorder(db, zerolog.Nop())
	r.Record(context.Background(), 100, 5, meta.OpUpdate, "ivan",
		map[string]any{"QTY": 1}, map[string]any{"QTY": 2}, RequestMeta{})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSwallowsWriteFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("insert into audit_log").
		WillReturnError(errors.New("disk on fire"))

	// бизнес-операция не должна падать из-за журнала
	r := NewRecorder(db, zerolog.Nop())
	r.Record(context.Background(), 100, 5, meta.OpDelete, "ivan", nil, nil, RequestMeta{})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordNilChangesStoredWithoutPayload(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("insert into audit_log").
		WithArgs(int64(100), int64(5), "UPDATE", "ivan", nil, nil, "", "").
		WillReturnResult(sqlmock.NewResult(1, 1))

	r := NewRecorder(db, zerolog.Nop())
	r.Record(context.Background(), 100, 5, meta.OpUpdate, "ivan", nil, nil, RequestMeta{})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "entity_type_id", "entity_instance_id", "operation", "changed_by",
		"old_values", "new_values", "ip_address", "user_agent", "created_at"}).
		AddRow(int64(2), int64(100), int64(5), "UPDATE", "ivan",
			[]byte(`{"QTY":1}`), []byte(`{"QTY":2}`), "10.0.0.1", "curl/8.5", now).
		AddRow(int64(1), int64(100), int64(5), "CREATE", "ivan",
			nil, []byte(`{"NAME":"Coal"}`), "", "", now)

	mock.ExpectQuery("from audit_log").
		WithArgs(int64(100), 100).
		WillReturnRows(rows)

	r := NewRecorder(db, zerolog.Nop())
	entries, err := r.Recent(context.Background(), 100, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, meta.OpUpdate, entries[0].Operation)
	require.Equal(t, "10.0.0.1", entries[0].IPAddress)
	require.Equal(t, "curl/8.5", entries[0].UserAgent)
	require.JSONEq(t, `{"QTY":1}`, string(entries[0].OldValues))
	require.JSONEq(t, `{"QTY":2}`, string(entries[0].NewValues))
	require.Equal(t, meta.OpCreate, entries[1].Operation)
	require.Nil(t, entries[1].OldValues)
}

package eav

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"fabrika/internal/apperr"
	"fabrika/internal/meta"
)

func TestUpdateUnknownAttributeNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("from entity_instances").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "entity_type_id", "instance_code", "status", "is_active",
			"created_at", "updated_at", "created_by", "updated_by"}).
			AddRow(int64(5), int64(100), "01HQZX0000000000000000000", "DRAFT", true,
				now, now, "ivan", "ivan"))
	mock.ExpectRollback()

	reg := meta.NewRegistry(&meta.Snapshot{
		EntityTypes: []*meta.EntityType{
			{ID: 100, ModuleID: 10, Code: "MATERIAL", IsActive: true},
		},
		Attributes: []*meta.AttributeDefinition{
			{ID: 1, EntityTypeID: 100, Code: "NAME", DataType: meta.DataTypeVarchar, MaxLength: 100, IsActive: true},
		},
	})
	m := NewManager(db, reg, zerolog.Nop())

	// неизвестный код атрибута — not found, до единой записи в таблицы значений
	_, err = m.Update(context.Background(), 5, map[string]any{"BOGUS": "x"}, "ivan")
	var nf *apperr.NotFoundError
	require.True(t, errors.As(err, &nf))
	require.NoError(t, mock.ExpectationsWereMet())
}

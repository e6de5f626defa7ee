package perm

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"fabrika/internal/apperr"
	"fabrika/internal/meta"
)

func testRegistry() *meta.Registry {
	return meta.NewRegistry(&meta.Snapshot{
		Applications: []*meta.Application{{ID: 1, Code: "ERP", IsActive: true}},
		Modules: []*meta.Module{
			{ID: 10, ApplicationID: 1, Code: "WAREHOUSE", IsActive: true},
		},
		EntityTypes: []*meta.EntityType{
			{ID: 101, ModuleID: 10, Code: "BIN", OrderIndex: 1, IsActive: true},
			{ID: 100, ModuleID: 10, Code: "MATERIAL", OrderIndex: 2, IsActive: true},
		},
	})
}

func permRows(r, cr, u, d bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"can_read", "can_create", "can_update", "can_delete"}).
		AddRow(r, cr, u, d)
}

func TestGetPermissionsAggregates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// bool_or по ролям считает база; движок просто читает агрегат
	mock.ExpectQuery("bool_or").
		WithArgs(int64(7), int64(100)).
		WillReturnRows(permRows(true, true, false, false))

	e := NewEngine(db, testRegistry(), zerolog.Nop())
	p, err := e.GetPermissions(context.Background(), 7, 100)
	require.NoError(t, err)
	require.True(t, p.CanRead)
	require.True(t, p.CanCreate)
	require.False(t, p.CanUpdate)
	require.False(t, p.CanDelete)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckDenied(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("bool_or").
		WithArgs(int64(7), int64(100)).
		WillReturnRows(permRows(true, false, false, false))

	e := NewEngine(db, testRegistry(), zerolog.Nop())
	err = e.Check(context.Background(), 7, 100, meta.OpDelete)

	var pe *apperr.PermissionError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, "DELETE", pe.Operation)
	require.Equal(t, int64(100), pe.EntityTypeID)
}

func TestCheckAllowed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("bool_or").
		WithArgs(int64(7), int64(100)).
		WillReturnRows(permRows(false, true, false, false))

	e := NewEngine(db, testRegistry(), zerolog.Nop())
	require.NoError(t, e.Check(context.Background(), 7, 100, meta.OpCreate))
}

func TestAccessibleEntityTypesKeepsOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// BIN (order 1) спрашивается первым, MATERIAL вторым
	mock.ExpectQuery("bool_or").
		WithArgs(int64(7), int64(101)).
		WillReturnRows(permRows(true, false, false, false))
	mock.ExpectQuery("bool_or").
		WithArgs(int64(7), int64(100)).
		WillReturnRows(permRows(true, false, false, false))

	e := NewEngine(db, testRegistry(), zerolog.Nop())
	ets, err := e.AccessibleEntityTypes(context.Background(), 7, 10)
	require.NoError(t, err)
	require.Len(t, ets, 2)
	require.Equal(t, "BIN", ets[0].Code)
	require.Equal(t, "MATERIAL", ets[1].Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCanAccessModuleStopsAtFirstReadable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("bool_or").
		WithArgs(int64(7), int64(101)).
		WillReturnRows(permRows(true, false, false, false))

	e := NewEngine(db, testRegistry(), zerolog.Nop())
	ok, err := e.CanAccessModule(context.Background(), 7, 10)
	require.NoError(t, err)
	require.True(t, ok)
	// второй тип не спрашивался
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCanAccessModuleAllDenied(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("bool_or").
		WithArgs(int64(7), int64(101)).
		WillReturnRows(permRows(false, false, false, false))
	mock.ExpectQuery("bool_or").
		WithArgs(int64(7), int64(100)).
		WillReturnRows(permRows(false, false, false, false))

	e := NewEngine(db, testRegistry(), zerolog.Nop())
	ok, err := e.CanAccessModule(context.Background(), 7, 10)
	require.NoError(t, err)
	require.False(t, ok)
}

package forms

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"fabrika/internal/meta"
)

func ptr(v int64) *int64 { return &v }

func dropdownRegistry() *meta.Registry {
	return meta.NewRegistry(&meta.Snapshot{
		EntityTypes: []*meta.EntityType{
			{ID: 100, ModuleID: 10, Code: "ORDER", IsActive: true},
			{ID: 200, ModuleID: 10, Code: "MATERIAL", IsActive: true},
		},
		Attributes: []*meta.AttributeDefinition{
			{ID: 2000, EntityTypeID: 200, Code: "CODE", DataType: meta.DataTypeVarchar, MaxLength: 50, IsActive: true},
			{ID: 2001, EntityTypeID: 200, Code: "NAME", DataType: meta.DataTypeVarchar, MaxLength: 100, IsActive: true},
		},
		Forms: []*meta.FormDefinition{
			{ID: 500, EntityTypeID: 100, Code: "MAIN", FormType: meta.FormTypeCreate, IsDefault: true, IsActive: true},
		},
	})
}

func TestDropdownOptionsNoWiring(t *testing.T) {
	e := NewEngine(nil, dropdownRegistry(), zerolog.Nop())
	opts, err := e.DropdownOptions(context.Background(), &meta.FormFieldConfiguration{
		ID: 600, FieldType: meta.FieldSelect,
	})
	require.NoError(t, err)
	require.Nil(t, opts)
}

func TestDropdownOptionsBrokenWiringDegrades(t *testing.T) {
	e := NewEngine(nil, dropdownRegistry(), zerolog.Nop())

	// атрибут не существует
	opts, err := e.DropdownOptions(context.Background(), &meta.FormFieldConfiguration{
		ID: 600, FieldType: meta.FieldSelect,
		DropdownSourceEntityID:    ptr(200),
		DropdownSourceAttributeID: ptr(9999),
	})
	require.NoError(t, err)
	require.Nil(t, opts)

	// атрибут из другой сущности
	opts, err = e.DropdownOptions(context.Background(), &meta.FormFieldConfiguration{
		ID: 601, FieldType: meta.FieldSelect,
		DropdownSourceEntityID:    ptr(100),
		DropdownSourceAttributeID: ptr(2000),
	})
	require.NoError(t, err)
	require.Nil(t, opts)
}

func TestDropdownOptionsUniqueOnlyDedupes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// дубль "C-2" схлопывается, остаётся первое вхождение по id инстанса
	mock.ExpectQuery("attribute_values_text").
		WithArgs(int64(2000), int64(200)).
		WillReturnRows(sqlmock.NewRows([]string{"entity_instance_id", "value"}).
			AddRow(int64(1), "C-2").
			AddRow(int64(2), "C-1").
			AddRow(int64(3), "C-2"))

	e := NewEngine(db, dropdownRegistry(), zerolog.Nop())
	opts, err := e.DropdownOptions(context.Background(), &meta.FormFieldConfiguration{
		ID: 600, FieldType: meta.FieldSelect,
		DropdownSourceEntityID:    ptr(200),
		DropdownSourceAttributeID: ptr(2000),
		ShowUniqueValuesOnly:      true,
	})
	require.NoError(t, err)
	require.Len(t, opts, 2)
	// сортировка по label; у "C-2" остался инстанс 1, а не 3
	require.Equal(t, Option{Value: "C-1", Label: "C-1", InstanceID: 2}, opts[0])
	require.Equal(t, Option{Value: "C-2", Label: "C-2", InstanceID: 1}, opts[1])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDropdownOptionsDuplicatesKeptWithoutUniqueOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("attribute_values_text").
		WithArgs(int64(2000), int64(200)).
		WillReturnRows(sqlmock.NewRows([]string{"entity_instance_id", "value"}).
			AddRow(int64(1), "Coal").
			AddRow(int64(2), "Coal").
			AddRow(int64(3), "Iron Ore"))

	e := NewEngine(db, dropdownRegistry(), zerolog.Nop())
	opts, err := e.DropdownOptions(context.Background(), &meta.FormFieldConfiguration{
		ID: 600, FieldType: meta.FieldSelect,
		DropdownSourceEntityID:    ptr(200),
		DropdownSourceAttributeID: ptr(2000),
	})
	require.NoError(t, err)
	// без unique_only дубли остаются, каждый со своим инстансом
	require.Len(t, opts, 3)
	require.Equal(t, Option{Value: "Coal", Label: "Coal", InstanceID: 1}, opts[0])
	require.Equal(t, Option{Value: "Coal", Label: "Coal", InstanceID: 2}, opts[1])
	require.Equal(t, Option{Value: "Iron Ore", Label: "Iron Ore", InstanceID: 3}, opts[2])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDropdownOptionsDisplayAttribute(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("attribute_values_text").
		WithArgs(int64(2000), int64(200)).
		WillReturnRows(sqlmock.NewRows([]string{"entity_instance_id", "value"}).
			AddRow(int64(1), "C-1").
			AddRow(int64(2), "C-2"))
	mock.ExpectQuery("attribute_values_text").
		WithArgs(int64(2001), int64(200)).
		WillReturnRows(sqlmock.NewRows([]string{"entity_instance_id", "value"}).
			AddRow(int64(1), "Coal").
			AddRow(int64(2), "Iron Ore"))

	e := NewEngine(db, dropdownRegistry(), zerolog.Nop())
	opts, err := e.DropdownOptions(context.Background(), &meta.FormFieldConfiguration{
		ID: 600, FieldType: meta.FieldSelect,
		DropdownSourceEntityID:     ptr(200),
		DropdownSourceAttributeID:  ptr(2000),
		DropdownDisplayAttributeID: ptr(2001),
	})
	require.NoError(t, err)
	require.Len(t, opts, 2)
	require.Equal(t, Option{Value: "C-1", Label: "Coal", InstanceID: 1}, opts[0])
	require.Equal(t, Option{Value: "C-2", Label: "Iron Ore", InstanceID: 2}, opts[1])
}

func TestResolveOptionsKeyedByAttributeCode(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("attribute_values_text").
		WithArgs(int64(2000), int64(200)).
		WillReturnRows(sqlmock.NewRows([]string{"entity_instance_id", "value"}).
			AddRow(int64(1), "C-1"))

	reg := meta.NewRegistry(&meta.Snapshot{
		EntityTypes: []*meta.EntityType{
			{ID: 100, ModuleID: 10, Code: "ORDER", IsActive: true},
			{ID: 200, ModuleID: 10, Code: "MATERIAL", IsActive: true},
		},
		Attributes: []*meta.AttributeDefinition{
			{ID: 1000, EntityTypeID: 100, Code: "MATERIAL_CODE", DataType: meta.DataTypeVarchar, MaxLength: 50, IsActive: true},
			{ID: 2000, EntityTypeID: 200, Code: "CODE", DataType: meta.DataTypeVarchar, MaxLength: 50, IsActive: true},
		},
		Forms: []*meta.FormDefinition{
			{ID: 500, EntityTypeID: 100, Code: "MAIN", FormType: meta.FormTypeCreate, IsDefault: true, IsActive: true},
		},
		FormFields: []*meta.FormFieldConfiguration{
			{
				ID: 600, FormDefinitionID: 500, AttributeDefinitionID: 1000,
				FieldType: meta.FieldSelect, IsVisible: true,
				DropdownSourceEntityID:    ptr(200),
				DropdownSourceAttributeID: ptr(2000),
			},
		},
	})

	e := NewEngine(db, reg, zerolog.Nop())
	rf, err := e.Resolve(context.Background(), 100, meta.FormTypeCreate)
	require.NoError(t, err)
	require.Contains(t, rf.Options, "MATERIAL_CODE")
	require.Len(t, rf.Options["MATERIAL_CODE"], 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveUnknownForm(t *testing.T) {
	e := NewEngine(nil, dropdownRegistry(), zerolog.Nop())
	_, err := e.Resolve(context.Background(), 100, meta.FormTypeSearch)
	require.Error(t, err)
}

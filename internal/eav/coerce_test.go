package eav

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fabrika/internal/meta"
)

func attr(dt meta.DataType) *meta.AttributeDefinition {
	return &meta.AttributeDefinition{Code: "F", DataType: dt}
}

func TestCoerceNullish(t *testing.T) {
	for _, dt := range []meta.DataType{meta.DataTypeVarchar, meta.DataTypeInt, meta.DataTypeBoolean, meta.DataTypeDate} {
		v, err := Coerce(attr(dt), nil)
		require.NoError(t, err)
		require.Nil(t, v)

		v, err = Coerce(attr(dt), "   ")
		require.NoError(t, err)
		require.Nil(t, v)
	}
}

func TestCoerceStrings(t *testing.T) {
	v, err := Coerce(attr(meta.DataTypeText), "  hello  ")
	require.NoError(t, err)
	require.Equal(t, "hello", v)

	def := attr(meta.DataTypeVarchar)
	def.MaxLength = 3
	_, err = Coerce(def, "abcd")
	require.Error(t, err)

	v, err = Coerce(def, "abc")
	require.NoError(t, err)
	require.Equal(t, "abc", v)
}

func TestCoerceInt(t *testing.T) {
	v, err := Coerce(attr(meta.DataTypeInt), "42")
	require.NoError(t, err)
	require.Equal(t, int64(42), v)

	// JSON-число
	v, err = Coerce(attr(meta.DataTypeBigint), float64(7))
	require.NoError(t, err)
	require.Equal(t, int64(7), v)

	_, err = Coerce(attr(meta.DataTypeInt), "abc")
	require.Error(t, err)

	_, err = Coerce(attr(meta.DataTypeInt), 3.5)
	require.Error(t, err)
}

func TestCoerceDecimal(t *testing.T) {
	v, err := Coerce(attr(meta.DataTypeDecimal), "3.14")
	require.NoError(t, err)
	require.Equal(t, 3.14, v)

	v, err = Coerce(attr(meta.DataTypeDecimal), float64(2))
	require.NoError(t, err)
	require.Equal(t, 2.0, v)
}

func TestCoerceBoolean(t *testing.T) {
	for _, truthy := range []string{"true", "1", "yes", "on", "TRUE", "On"} {
		v, err := Coerce(attr(meta.DataTypeBoolean), truthy)
		require.NoError(t, err)
		require.Equal(t, true, v)
	}
	// всё прочее — false, не ошибка: чекбоксы шлют мусор
	for _, falsy := range []string{"false", "0", "no", "off", "whatever"} {
		v, err := Coerce(attr(meta.DataTypeBoolean), falsy)
		require.NoError(t, err)
		require.Equal(t, false, v)
	}

	v, err := Coerce(attr(meta.DataTypeBoolean), true)
	require.NoError(t, err)
	require.Equal(t, true, v)
}

func TestCoerceDate(t *testing.T) {
	v, err := Coerce(attr(meta.DataTypeDate), "2024-03-15")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), v)

	_, err = Coerce(attr(meta.DataTypeDate), "15.03.2024")
	require.Error(t, err)
}

func TestCoerceDatetime(t *testing.T) {
	v, err := Coerce(attr(meta.DataTypeDatetime), "2024-03-15T10:30")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC), v)

	v, err = Coerce(attr(meta.DataTypeTimestamp), "2024-03-15T10:30:45")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 15, 10, 30, 45, 0, time.UTC), v)

	_, err = Coerce(attr(meta.DataTypeDatetime), "not a date")
	require.Error(t, err)
}

func TestCoerceUnknownType(t *testing.T) {
	_, err := Coerce(attr(meta.DataType("GEOMETRY")), "x")
	require.Error(t, err)
}

package eav

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fabrika/internal/apperr"
	"fabrika/internal/meta"
)

// Querier — общий срез *sql.DB и *sql.Tx; операции со значениями идут внутри
// транзакции инстанса.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func tableFor(def *meta.AttributeDefinition) (string, error) {
	vt, ok := def.DataType.ValueTable()
	if !ok {
		return "", apperr.Validation(def.Code, fmt.Sprintf("unknown data type %q", def.DataType))
	}
	switch vt {
	case meta.ValueTableNumeric:
		return "attribute_values_numeric", nil
	case meta.ValueTableDatetime:
		return "attribute_values_datetime", nil
	case meta.ValueTableBoolean:
		return "attribute_values_boolean", nil
	default:
		return "attribute_values_text", nil
	}
}

// SetValue пишет значение атрибута: upsert по (инстанс, атрибут), nil — delete.
func SetValue(ctx context.Context, q Querier, instanceID int64, def *meta.AttributeDefinition, value any) error {
	table, err := tableFor(def)
	if err != nil {
		return err
	}
	if value == nil {
		_, err := q.ExecContext(ctx, fmt.Sprintf(
			`delete from %s where entity_instance_id = $1 and attribute_definition_id = $2`, table),
			instanceID, def.ID)
		if err != nil {
			return apperr.Store("eav.delete value", err)
		}
		return nil
	}
	_, err = q.ExecContext(ctx, fmt.Sprintf(`
		insert into %s (entity_instance_id, attribute_definition_id, value)
		values ($1, $2, $3)
		on conflict (entity_instance_id, attribute_definition_id)
		do update set value = excluded.value`, table),
		instanceID, def.ID, value)
	if err != nil {
		return apperr.Store("eav.set value", err)
	}
	return nil
}

// GetValue читает одно значение; ok=false если строки нет (null).
func GetValue(ctx context.Context, q Querier, instanceID int64, def *meta.AttributeDefinition) (any, bool, error) {
	table, err := tableFor(def)
	if err != nil {
		return nil, false, err
	}
	row := q.QueryRowContext(ctx, fmt.Sprintf(
		`select value from %s where entity_instance_id = $1 and attribute_definition_id = $2`, table),
		instanceID, def.ID)

	v, err := scanValue(row, def)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperr.Store("eav.get value", err)
	}
	return v, true, nil
}

func scanValue(row *sql.Row, def *meta.AttributeDefinition) (any, error) {
	vt, _ := def.DataType.ValueTable()
	switch vt {
	case meta.ValueTableNumeric:
		var f float64
		if err := row.Scan(&f); err != nil {
			return nil, err
		}
		return numericOut(def, f), nil
	case meta.ValueTableDatetime:
		var t time.Time
		if err := row.Scan(&t); err != nil {
			return nil, err
		}
		return t, nil
	case meta.ValueTableBoolean:
		var b bool
		if err := row.Scan(&b); err != nil {
			return nil, err
		}
		return b, nil
	default:
		var s string
		if err := row.Scan(&s); err != nil {
			return nil, err
		}
		return s, nil
	}
}

// numericOut возвращает целочисленным типам int64: в таблице numeric(20,6),
// но наружу INT останется INT.
func numericOut(def *meta.AttributeDefinition, f float64) any {
	if def.DataType == meta.DataTypeInt || def.DataType == meta.DataTypeBigint {
		return int64(f)
	}
	return f
}

// HasOtherWithValue — проверка is_unique: есть ли живой инстанс того же типа
// с тем же значением атрибута, кроме exclude.
func HasOtherWithValue(ctx context.Context, q Querier, def *meta.AttributeDefinition, value any, excludeInstanceID int64) (bool, error) {
	table, err := tableFor(def)
	if err != nil {
		return false, err
	}
	var exists bool
	err = q.QueryRowContext(ctx, fmt.Sprintf(`
		select exists (
			select 1 from %s v
			join entity_instances i on i.id = v.entity_instance_id
			where v.attribute_definition_id = $1
			  and v.value = $2
			  and v.entity_instance_id <> $3
			  and i.is_active
		)`, table),
		def.ID, value, excludeInstanceID).Scan(&exists)
	if err != nil {
		return false, apperr.Store("eav.unique check", err)
	}
	return exists, nil
}

// fetchValues батчем собирает значения атрибутов для набора инстансов:
// не больше одного запроса на таблицу значений, без N+1.
func fetchValues(ctx context.Context, q Querier, instanceIDs []int64, attrs []*meta.AttributeDefinition) (map[int64]map[string]any, error) {
	out := make(map[int64]map[string]any, len(instanceIDs))
	for _, id := range instanceIDs {
		out[id] = make(map[string]any)
	}
	if len(instanceIDs) == 0 || len(attrs) == 0 {
		return out, nil
	}

	byTable := make(map[string][]*meta.AttributeDefinition)
	defByID := make(map[int64]*meta.AttributeDefinition, len(attrs))
	for _, a := range attrs {
		table, err := tableFor(a)
		if err != nil {
			continue // неизвестный тип не читается
		}
		byTable[table] = append(byTable[table], a)
		defByID[a.ID] = a
	}

	for table, defs := range byTable {
		attrIDs := make([]int64, len(defs))
		for i, a := range defs {
			attrIDs[i] = a.ID
		}
		rows, err := q.QueryContext(ctx, fmt.Sprintf(`
			select entity_instance_id, attribute_definition_id, value
			from %s
			where entity_instance_id = any($1) and attribute_definition_id = any($2)`, table),
			instanceIDs, attrIDs)
		if err != nil {
			return nil, apperr.Store("eav.fetch values", err)
		}
		if err := collectRows(rows, table, defByID, out); err != nil {
			return nil, apperr.Store("eav.fetch values", err)
		}
	}
	return out, nil
}

func collectRows(rows *sql.Rows, table string, defByID map[int64]*meta.AttributeDefinition, out map[int64]map[string]any) error {
	defer rows.Close()
	for rows.Next() {
		var instID, attrID int64
		var v any
		var err error
		switch table {
		case "attribute_values_numeric":
			var f float64
			err = rows.Scan(&instID, &attrID, &f)
			v = f
		case "attribute_values_datetime":
			var t time.Time
			err = rows.Scan(&instID, &attrID, &t)
			v = t
		case "attribute_values_boolean":
			var b bool
			err = rows.Scan(&instID, &attrID, &b)
			v = b
		default:
			var s string
			err = rows.Scan(&instID, &attrID, &s)
			v = s
		}
		if err != nil {
			return err
		}
		def := defByID[attrID]
		if def == nil {
			continue
		}
		if f, isFloat := v.(float64); isFloat {
			v = numericOut(def, f)
		}
		if m := out[instID]; m != nil {
			m[def.Code] = v
		}
	}
	return rows.Err()
}

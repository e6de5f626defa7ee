// Package eav хранит значения атрибутов в четырёх типизированных таблицах:
// одна строка на пару (инстанс, атрибут), null значения не хранятся вовсе.
package eav

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fabrika/internal/meta"
)

// Форматы дат, которые принимает ввод форм.
var datetimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Coerce приводит сырое значение (строка формы либо JSON-тип) к типу атрибута.
// Пустая строка и nil означают null. Возвращаемые типы: string, int64,
// float64, bool, time.Time.
func Coerce(def *meta.AttributeDefinition, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if s, ok := raw.(string); ok && strings.TrimSpace(s) == "" {
		return nil, nil
	}

	switch def.DataType {
	case meta.DataTypeVarchar, meta.DataTypeText, meta.DataTypeJSON:
		s, err := toString(raw)
		if err != nil {
			return nil, err
		}
		s = strings.TrimSpace(s)
		if def.DataType == meta.DataTypeVarchar && def.MaxLength > 0 && len([]rune(s)) > def.MaxLength {
			return nil, fmt.Errorf("must be at most %d characters", def.MaxLength)
		}
		return s, nil

	case meta.DataTypeInt, meta.DataTypeBigint:
		return toInt(raw)

	case meta.DataTypeDecimal:
		return toFloat(raw)

	case meta.DataTypeBoolean:
		return toBool(raw), nil

	case meta.DataTypeDate:
		s, err := toString(raw)
		if err != nil {
			return nil, err
		}
		t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
		if err != nil {
			return nil, errors.New("must match YYYY-MM-DD")
		}
		return t, nil

	case meta.DataTypeDatetime, meta.DataTypeTimestamp:
		if t, ok := raw.(time.Time); ok {
			return t, nil
		}
		s, err := toString(raw)
		if err != nil {
			return nil, err
		}
		s = strings.TrimSpace(s)
		for _, layout := range datetimeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return nil, errors.New("must be a datetime like YYYY-MM-DDTHH:MM")
	}
	return nil, fmt.Errorf("unknown data type %q", def.DataType)
}

func toString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		// JSON-числа приходят как float64
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10), nil
		}
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case bool:
		return "", errors.New("must be string")
	default:
		return "", errors.New("must be string")
	}
}

func toInt(v any) (int64, error) {
	switch t := v.(type) {
	case float64:
		if t != float64(int64(t)) {
			return 0, errors.New("must be integer")
		}
		return int64(t), nil
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, errors.New("must be integer")
		}
		return n, nil
	default:
		return 0, errors.New("must be integer")
	}
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int64:
		return float64(t), nil
	case int:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, errors.New("must be decimal")
		}
		return f, nil
	default:
		return 0, errors.New("must be decimal")
	}
}

// toBool: истина — только явный true-набор, всё прочее false. Чекбоксы форм
// шлют "on" либо вообще ничего.
func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "on":
			return true
		}
	case float64:
		return t != 0
	}
	return false
}

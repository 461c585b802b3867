package backend

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/shaiso/bqflow/internal/domain"
)

// Форматы дат и времени в значениях параметров.
const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05"
)

// EncodeParameters переводит параметры задачи в именованные аргументы pgx.
//
// В SQL параметры упоминаются как @name. Значение приводится к Go-типу
// по тегу типа; параметр без тега передаётся как есть.
func EncodeParameters(params []domain.Parameter) (pgx.NamedArgs, error) {
	args := make(pgx.NamedArgs, len(params))
	for _, p := range params {
		v, err := encodeValue(p.Type, p.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidParameter, p.Name, err)
		}
		args[p.Name] = v
	}
	return args, nil
}

func encodeValue(t domain.ParamType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch {
	case t == "":
		return v, nil
	case t == domain.ParamTypeStruct:
		return encodeStruct(v)
	case t.IsArray():
		return encodeArray(t.Elem(), v)
	}

	switch t {
	case domain.ParamTypeInt64:
		return toInt64(v)
	case domain.ParamTypeFloat64, domain.ParamTypeNumeric:
		return toFloat64(v)
	case domain.ParamTypeBool:
		return toBool(v)
	case domain.ParamTypeDate:
		return toTime(v, dateLayout)
	case domain.ParamTypeDatetime:
		return toTime(v, time.RFC3339, datetimeLayout)
	case domain.ParamTypeTimestamp:
		return toTime(v, time.RFC3339Nano, time.RFC3339, datetimeLayout)
	case domain.ParamTypeBytes:
		if b, ok := v.([]byte); ok {
			return b, nil
		}
		return []byte(fmt.Sprint(v)), nil
	case domain.ParamTypeString, domain.ParamTypeTime, domain.ParamTypeGeography:
		return fmt.Sprint(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %s", t)
	}
}

// encodeArray кодирует список значений с типом элемента elem.
func encodeArray(elem domain.ParamType, v any) (any, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected list for ARRAY<%s>, got %T", elem, v)
	}

	if elem == domain.ParamTypeStruct {
		out := make([]map[string]any, len(items))
		for i, item := range items {
			s, err := encodeStruct(item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = s
		}
		return out, nil
	}

	out := make([]any, len(items))
	for i, item := range items {
		enc, err := encodeValue(elem, item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = enc
	}
	return out, nil
}

// encodeStruct кодирует STRUCT: значение — список вложенных параметров
// (объекты с полями name, type, value).
func encodeStruct(v any) (map[string]any, error) {
	fields, err := structFields(v)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(fields))
	for _, f := range fields {
		enc, err := encodeValue(f.Type, f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		out[f.Name] = enc
	}
	return out, nil
}

func structFields(v any) ([]domain.Parameter, error) {
	switch fields := v.(type) {
	case []domain.Parameter:
		return fields, nil
	case []any:
		out := make([]domain.Parameter, len(fields))
		for i, raw := range fields {
			m, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("struct field %d: expected object, got %T", i, raw)
			}
			name, _ := m["name"].(string)
			if name == "" {
				return nil, fmt.Errorf("struct field %d: missing name", i)
			}
			typ, _ := m["type"].(string)
			out[i] = domain.Parameter{Name: name, Type: domain.ParamType(typ), Value: m["value"]}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list of fields for STRUCT, got %T", v)
	}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows INT64", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("value %v is not an integer", n)
		}
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to INT64", v)
	}
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to FLOAT64", v)
	}
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(b)
	default:
		return false, fmt.Errorf("cannot convert %T to BOOL", v)
	}
}

func toTime(v any, layouts ...string) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		var lastErr error
		for _, layout := range layouts {
			parsed, err := time.Parse(layout, t)
			if err == nil {
				return parsed, nil
			}
			lastErr = err
		}
		return time.Time{}, lastErr
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to time", v)
	}
}

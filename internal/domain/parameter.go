package domain

import "strings"

// ParamType — тег типа параметра запроса.
//
// Скаляры: STRING, BYTES, NUMERIC, INT64, FLOAT64, DATE, DATETIME,
// TIMESTAMP, TIME, BOOL, GEOGRAPHY. Массивы: ARRAY<скаляр>, ARRAY<STRUCT>.
// И STRUCT — значение задаётся списком вложенных параметров.
type ParamType string

const (
	ParamTypeString    ParamType = "STRING"
	ParamTypeBytes     ParamType = "BYTES"
	ParamTypeNumeric   ParamType = "NUMERIC"
	ParamTypeInt64     ParamType = "INT64"
	ParamTypeFloat64   ParamType = "FLOAT64"
	ParamTypeDate      ParamType = "DATE"
	ParamTypeDatetime  ParamType = "DATETIME"
	ParamTypeTimestamp ParamType = "TIMESTAMP"
	ParamTypeTime      ParamType = "TIME"
	ParamTypeBool      ParamType = "BOOL"
	ParamTypeGeography ParamType = "GEOGRAPHY"
	ParamTypeStruct    ParamType = "STRUCT"
)

// IsArray возвращает true для ARRAY<...>.
func (t ParamType) IsArray() bool {
	return strings.HasPrefix(string(t), "ARRAY<") && strings.HasSuffix(string(t), ">")
}

// Elem возвращает тип элемента массива. Для не-массивов возвращает сам тип.
func (t ParamType) Elem() ParamType {
	if !t.IsArray() {
		return t
	}
	return ParamType(strings.TrimSuffix(strings.TrimPrefix(string(t), "ARRAY<"), ">"))
}

// Parameter — именованный параметр.
type Parameter struct {
	// Name — имя параметра; в SQL на него ссылаются как @name.
	Name string `json:"name"`

	// Type — необязательный тег типа.
	Type ParamType `json:"type,omitempty"`

	// Default — значение по умолчанию для объявленных inputs.
	Default *string `json:"default,omitempty"`

	// Value — значение: скаляр, список или (для STRUCT) список вложенных параметров.
	Value any `json:"value,omitempty"`
}

// ParameterNames возвращает имена параметров в исходном порядке.
func ParameterNames(params []Parameter) []string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return names
}

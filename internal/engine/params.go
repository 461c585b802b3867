package engine

import "github.com/shaiso/bqflow/internal/domain"

// MergeParameters объединяет наборы параметров по имени.
//
// При совпадении имён побеждает override, но параметр остаётся на позиции из base.
// Имена, которых нет в base, добавляются в конец в порядке override.
func MergeParameters(base, override []domain.Parameter) []domain.Parameter {
	merged := make([]domain.Parameter, 0, len(base)+len(override))
	index := make(map[string]int, len(base)+len(override))

	for _, p := range base {
		if i, ok := index[p.Name]; ok {
			merged[i] = p
			continue
		}
		index[p.Name] = len(merged)
		merged = append(merged, p)
	}

	for _, p := range override {
		if i, ok := index[p.Name]; ok {
			merged[i] = p
			continue
		}
		index[p.Name] = len(merged)
		merged = append(merged, p)
	}

	return merged
}

// ProjectParameters оставляет только объявленные inputs leaf template.
//
// Значение каждого input берётся из available; если его там нет,
// используется default из объявления. Inputs без значения и без default
// возвращаются одной ошибкой MissingParameterError со всеми именами.
// Порядок результата совпадает с порядком объявления.
func ProjectParameters(template string, declared, available []domain.Parameter) ([]domain.Parameter, error) {
	byName := make(map[string]domain.Parameter, len(available))
	for _, p := range available {
		byName[p.Name] = p
	}

	projected := make([]domain.Parameter, 0, len(declared))
	var missing []string

	for _, input := range declared {
		p, ok := byName[input.Name]
		switch {
		case ok:
			if p.Type == "" {
				p.Type = input.Type
			}
		case input.Default != nil:
			p = domain.Parameter{Name: input.Name, Type: input.Type, Value: *input.Default}
		default:
			missing = append(missing, input.Name)
			continue
		}
		projected = append(projected, p)
	}

	if len(missing) > 0 {
		return nil, &MissingParameterError{Template: template, Names: missing}
	}

	return projected, nil
}

package domain

import "strings"

// PathSeparator разделяет сегменты в ключе пути. Имена задач его не содержат.
const PathSeparator = "\x1f"

// Path — последовательность имён задач от корня. Пустой путь — корень.
//
// Path однозначно идентифицирует узел дерева выполнения.
type Path []string

// Key возвращает ключ для использования в map.
func (p Path) Key() string {
	return strings.Join(p, PathSeparator)
}

// String возвращает человекочитаемое представление: "/", "/load/users".
func (p Path) String() string {
	return "/" + strings.Join(p, "/")
}

// IsRoot возвращает true для пустого пути.
func (p Path) IsRoot() bool {
	return len(p) == 0
}

// Parent возвращает путь родителя. Для корня возвращает корень.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return Path{}
	}
	return p[:len(p)-1:len(p)-1]
}

// Last возвращает последний сегмент пути или "" для корня.
func (p Path) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Child возвращает новый путь с добавленным сегментом.
// Исходный путь не изменяется.
func (p Path) Child(name string) Path {
	child := make(Path, len(p)+1)
	copy(child, p)
	child[len(p)] = name
	return child
}

// Equal сравнивает пути посегментно.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// IsStrictPrefixOf возвращает true, если p — собственный префикс other (other — потомок p).
func (p Path) IsStrictPrefixOf(other Path) bool {
	if len(p) >= len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

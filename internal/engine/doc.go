// Package engine содержит модель определения workflow.
//
// Включает:
//   - loader.go    — загрузка YAML/JSON и проверка по встроенной JSON Schema
//   - parser.go    — структурная валидация Workflow
//   - normalize.go — приведение steps и dag к нормальной форме графа, проверка циклов
//   - dag.go       — DAG задач одного template (алгоритм Кана)
//   - params.go    — слияние и проекция параметров вдоль ветки дерева
//
// Engine отвечает за понимание структуры workflow. Состояние выполнения
// живёт в пакете tracer.
package engine

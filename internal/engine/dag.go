package engine

import (
	"fmt"
	"sort"
)

// Node — узел в DAG одного template.
type Node struct {
	// Task — нормализованная задача.
	Task *NormalTask

	// ID — имя задачи.
	ID string

	// InDegree — количество входящих рёбер (зависимостей).
	InDegree int

	// DependsOn — узлы, от которых зависит этот узел.
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла.
	Dependents []*Node
}

// DAG — направленный ациклический граф задач одного template.
type DAG struct {
	// Nodes — все узлы графа (имя задачи → Node).
	Nodes map[string]*Node

	// RootNodes — узлы без зависимостей (точки входа).
	RootNodes []*Node

	// Order — топологически отсортированный список узлов.
	Order []*Node
}

// BuildDAG строит DAG из нормализованных задач template.
//
// Возвращает ошибку при зависимости от неизвестной задачи,
// зависимости от самой себя и при цикле.
func BuildDAG(template string, tasks []NormalTask) (*DAG, error) {
	dag := &DAG{
		Nodes:     make(map[string]*Node, len(tasks)),
		RootNodes: make([]*Node, 0),
	}

	// Первый проход: создаём все узлы
	for i := range tasks {
		task := &tasks[i]
		if _, exists := dag.Nodes[task.Name]; exists {
			return nil, NewValidationError(template, "tasks",
				fmt.Sprintf("duplicate task name: %s", task.Name), ErrDuplicateTask)
		}
		dag.Nodes[task.Name] = &Node{
			Task:       task,
			ID:         task.Name,
			DependsOn:  make([]*Node, 0),
			Dependents: make([]*Node, 0),
		}
	}

	// Второй проход: связываем узлы по зависимостям
	for i := range tasks {
		task := &tasks[i]
		node := dag.Nodes[task.Name]

		for _, depID := range task.Dependencies {
			if depID == task.Name {
				return nil, NewValidationError(template, "dependencies",
					fmt.Sprintf("task %s depends on itself", task.Name), ErrSelfDependency)
			}
			depNode, exists := dag.Nodes[depID]
			if !exists {
				return nil, NewValidationError(template, "dependencies",
					fmt.Sprintf("task %s depends on unknown task: %s", task.Name, depID), ErrMissingDependency)
			}
			dag.addEdge(depNode, node)
		}
	}

	dag.findRootNodes()

	order, err := dag.topologicalSort()
	if err != nil {
		return nil, NewValidationError(template, "dependencies", err.Error(), err)
	}
	dag.Order = order

	return dag, nil
}

// addEdge добавляет ребро между узлами.
// Дополнительно проверяет на дубликаты, чтобы избежать двойного учета InDegree.
func (d *DAG) addEdge(from, to *Node) {
	for _, dep := range to.DependsOn {
		if dep.ID == from.ID {
			return // уже связаны
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
}

// findRootNodes находит узлы без входящих рёбер.
// Порядок детерминирован: по имени.
func (d *DAG) findRootNodes() {
	d.RootNodes = make([]*Node, 0)
	for _, node := range d.Nodes {
		if node.InDegree == 0 {
			d.RootNodes = append(d.RootNodes, node)
		}
	}
	sort.Slice(d.RootNodes, func(i, j int) bool {
		return d.RootNodes[i].ID < d.RootNodes[j].ID
	})
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Возвращает ошибку, если обнаружен цикл.
func (d *DAG) topologicalSort() ([]*Node, error) {
	// Копируем inDegree, чтобы не модифицировать оригинал
	inDegree := make(map[string]int, len(d.Nodes))
	for id, node := range d.Nodes {
		inDegree[id] = node.InDegree
	}

	queue := make([]*Node, len(d.RootNodes))
	copy(queue, d.RootNodes)

	order := make([]*Node, 0, len(d.Nodes))

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, dependent := range node.Dependents {
			inDegree[dependent.ID]--
			if inDegree[dependent.ID] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	// Если не все узлы обработаны — есть цикл
	if len(order) != len(d.Nodes) {
		return nil, ErrCyclicDependency
	}

	return order, nil
}

// GetNode возвращает узел по имени задачи.
func (d *DAG) GetNode(id string) *Node {
	return d.Nodes[id]
}

// Size возвращает количество узлов в DAG.
func (d *DAG) Size() int {
	return len(d.Nodes)
}

// Package tracer отслеживает выполнение workflow как дерево узлов.
//
// Узел (Status) — экземпляр template по пути от корня. Дерево растёт
// только добавлением: контейнер раскрывается в задачи, чьи зависимости
// уже завершены. Завершение leaf поднимается вверх и завершает
// контейнеры, у которых не осталось незавершённых задач.
//
// Tracer — единственный владелец дерева. Producer читает из него
// исполняемые leaf-задачи, workers сообщают о завершении через Complete.
package tracer

// Package orchestrator управляет выполнением очередей симуляций.
//
// Orchestrator отвечает за:
//   - Создание очереди с полной матрицей симуляций
//   - Обнаружение активных очередей и запуск drain loops
//   - Последовательное выполнение симуляций внутри очереди
//   - Классификацию исходов и ограниченные повторы сбоев
//   - Снятие зависших симуляций (reaper) и восстановление осиротевших
//   - Управляющие операции: start/pause/resume/stop/restart
//
// Orchestrator — это "мозг" системы, который координирует выполнение.
package orchestrator

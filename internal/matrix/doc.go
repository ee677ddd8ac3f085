// Package matrix — Run Matrix Builder: разворачивает запрос на создание
// очереди в детерминированный упорядоченный набор симуляций.
//
// Кросс-произведение: техника × тактика × личность × дистанция,
// вложенный порядок итерации именно такой, ExecutionOrder 1..N.
//
// Семантика:
//   - Селекторы ("all") разрешаются по справочникам в момент создания:
//     последующие правки справочников не затрагивают существующие очереди.
//   - Пустая резолюция личностей или дистанций даёт одно синтетическое
//     значение по умолчанию — очередь никогда не бывает нулевого размера,
//     если техники и тактики заданы.
//   - Пустые списки техник/тактик отклоняются ValidationError ещё на
//     Validate, до обращения к справочникам.
//
// Builder ничего не сохраняет: персистентность очереди и симуляций —
// ответственность вызывающего (orchestrator → repo.QueueRepo.CreateWithRuns).
package matrix

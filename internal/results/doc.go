// Package results разбирает финальный оффер завершённых переговоров.
//
// Включает:
//   - processor.go — каскадное сопоставление ключей оффера с продуктами
//   - numbers.go   — приведение локализованных значений к числам
//
// Пакет не обращается к БД: на вход подаются карта измерений оффера
// и список продуктов, на выходе — стоимость сделки, построчный расчёт
// и неценовые измерения.
package results

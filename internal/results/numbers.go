package results

import (
	"encoding/json"
	"strconv"
	"strings"
)

// CoerceNumber приводит произвольное значение измерения оффера к числу.
//
// Числовые типы возвращаются как есть. Строки разбираются с учётом
// валютных символов, единиц измерения и локальных разделителей:
//
//	"1.234,56 €"  -> 1234.56
//	"1,234.56"    -> 1234.56
//	"12,5"        -> 12.5
//	"ca. 14 Tage" -> 14
func CoerceNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		return parseNumber(n)
	default:
		return 0, false
	}
}

// parseNumber вырезает из строки первый числовой токен и разбирает его.
func parseNumber(s string) (float64, bool) {
	var b strings.Builder
	started := false

loop:
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			started = true
		case (r == '.' || r == ',') && started:
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			b.WriteRune(r)
		default:
			// токен закончился, дальше идут единицы измерения
			if started {
				break loop
			}
		}
	}

	tok := strings.TrimRight(b.String(), ".,")
	if tok == "" || tok == "-" {
		return 0, false
	}

	f, err := strconv.ParseFloat(resolveSeparators(tok), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// resolveSeparators переводит токен в форму с десятичной точкой.
//
// Если встречаются оба разделителя, десятичным считается последний.
// Одиночная запятая трактуется как десятичная, кроме случая ровно
// трёх цифр после неё ("1,234" — разряды). Несколько одинаковых
// разделителей — всегда разряды.
func resolveSeparators(tok string) string {
	lastDot := strings.LastIndexByte(tok, '.')
	lastComma := strings.LastIndexByte(tok, ',')

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			// "1.234,56" — немецкая запись
			tok = strings.ReplaceAll(tok, ".", "")
			tok = strings.ReplaceAll(tok, ",", ".")
		} else {
			// "1,234.56" — английская запись
			tok = strings.ReplaceAll(tok, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(tok, ",") == 1 && len(tok)-lastComma-1 != 3 {
			tok = strings.Replace(tok, ",", ".", 1)
		} else {
			tok = strings.ReplaceAll(tok, ",", "")
		}
	case strings.Count(tok, ".") > 1:
		tok = strings.ReplaceAll(tok, ".", "")
	}
	return tok
}

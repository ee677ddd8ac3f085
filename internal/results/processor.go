package results

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/shaiso/Negotium/internal/domain"
)

// minFuzzyLen — минимальная длина нормализованной строки для нечёткого
// сопоставления. Защищает от совпадения коротких имён с любым ключом.
const minFuzzyLen = 3

// priceKeywords — маркеры ценовых измерений в ключах оффера.
var priceKeywords = []string{"preis", "price"}

// Breakdown — результат разбора финального оффера.
//
// DealValue равен nil, если ни один продукт не удалось сопоставить
// с ключами оффера. Несопоставленные ключи сохраняются в OtherDimensions
// (сроки поставки, условия оплаты и прочие неценовые измерения).
type Breakdown struct {
	// DealValue — сумма по всем продуктам, формат "%.2f".
	DealValue *string

	// Rows — построчный расчёт по сопоставленным продуктам.
	Rows []domain.ProductRow

	// OtherDimensions — ключи оффера, не привязанные к продуктам.
	OtherDimensions map[string]string
}

// Process сопоставляет ключи финального оффера с каталогом продуктов
// и считает стоимость сделки.
//
// Для каждого продукта ключ ищется каскадом:
//  1. точное совпадение нормализованного имени;
//  2. ключ содержит ценовой маркер и имя продукта;
//  3. нечёткое вхождение имени в ключ или ключа в имя.
//
// Объём продукта фиксирован и не участвует в переговорах:
// subtotal = цена из оффера × объём. Каждый ключ расходуется
// не более одного раза.
func Process(offer map[string]any, products []domain.Product) Breakdown {
	keys := make([]string, 0, len(offer))
	for k := range offer {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	used := make(map[string]bool, len(keys))
	var rows []domain.ProductRow
	var total float64

	for _, product := range products {
		key, price, ok := matchProduct(product.Name, keys, used, offer)
		if !ok {
			continue
		}
		used[key] = true
		subtotal := price * float64(product.Volume)
		total += subtotal
		rows = append(rows, domain.ProductRow{
			ProductID:   product.ID,
			ProductName: product.Name,
			MatchedKey:  key,
			Price:       price,
			Volume:      product.Volume,
			Subtotal:    subtotal,
		})
	}

	other := make(map[string]string)
	for _, k := range keys {
		if used[k] {
			continue
		}
		other[k] = stringify(offer[k])
	}

	breakdown := Breakdown{Rows: rows, OtherDimensions: other}
	if len(rows) > 0 {
		v := fmt.Sprintf("%.2f", total)
		breakdown.DealValue = &v
	}
	return breakdown
}

// matchProduct прогоняет каскад сопоставления для одного продукта.
// Ключ засчитывается только если его значение приводится к числу.
func matchProduct(name string, keys []string, used map[string]bool, offer map[string]any) (string, float64, bool) {
	nn := normalize(name)
	if nn == "" {
		return "", 0, false
	}

	stages := []func(nk string) bool{
		func(nk string) bool { return nk == nn },
		func(nk string) bool { return hasPriceKeyword(nk) && strings.Contains(nk, nn) },
		func(nk string) bool {
			if len(nn) < minFuzzyLen {
				return false
			}
			return strings.Contains(nk, nn) || (len(nk) >= minFuzzyLen && strings.Contains(nn, nk))
		},
	}

	for _, match := range stages {
		for _, key := range keys {
			if used[key] || !match(normalize(key)) {
				continue
			}
			price, ok := CoerceNumber(offer[key])
			if !ok {
				continue
			}
			return key, price, true
		}
	}
	return "", 0, false
}

func hasPriceKeyword(nk string) bool {
	for _, kw := range priceKeywords {
		if strings.Contains(nk, kw) {
			return true
		}
	}
	return false
}

// normalize приводит строку к нижнему регистру и выбрасывает всё,
// кроме букв и цифр: "Preis_Widget A" -> "preiswidgeta".
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

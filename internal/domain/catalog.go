package domain

import (
	"time"

	"github.com/google/uuid"
)

// Technique — техника убеждения из справочника.
// Справочники read-only для движка очередей: они читаются при создании
// очереди (snapshot-семантика) и больше не влияют на существующие очереди.
type Technique struct {
	// ID — уникальный идентификатор техники.
	ID uuid.UUID `json:"id"`

	// Name — название техники ("Reciprocity", "Anchoring", ...).
	Name string `json:"name"`

	// Description — описание для каталога.
	Description string `json:"description,omitempty"`

	// CreatedAt — время добавления в справочник.
	CreatedAt time.Time `json:"created_at"`
}

// Tactic — переговорная тактика из справочника.
type Tactic struct {
	// ID — уникальный идентификатор тактики.
	ID uuid.UUID `json:"id"`

	// Name — название тактики ("Good Cop/Bad Cop", "Deadline", ...).
	Name string `json:"name"`

	// Description — описание для каталога.
	Description string `json:"description,omitempty"`

	// CreatedAt — время добавления в справочник.
	CreatedAt time.Time `json:"created_at"`
}

// Personality — личность симулируемого контрагента.
type Personality struct {
	// ID — уникальный идентификатор личности.
	ID uuid.UUID `json:"id"`

	// Name — название личности ("Aggressive", "Analytical", ...).
	Name string `json:"name"`

	// Description — описание поведения контрагента.
	Description string `json:"description,omitempty"`

	// CreatedAt — время добавления в справочник.
	CreatedAt time.Time `json:"created_at"`
}

// Product — товар переговорного кейса.
//
// Объём фиксирован и не является предметом торга: торгуется только цена.
// Result Processor сопоставляет измерения финального предложения с
// товарами кейса и считает стоимость сделки.
type Product struct {
	// ID — уникальный идентификатор товара.
	ID uuid.UUID `json:"id"`

	// NegotiationID — кейс, к которому относится товар.
	NegotiationID uuid.UUID `json:"negotiation_id"`

	// Name — имя товара; по нему работает каскад сопоставления ключей.
	Name string `json:"name"`

	// TargetPrice — целевая цена за единицу.
	TargetPrice float64 `json:"target_price"`

	// MinPrice — нижняя граница приемлемой цены.
	MinPrice float64 `json:"min_price"`

	// MaxPrice — верхняя граница приемлемой цены.
	MaxPrice float64 `json:"max_price"`

	// Volume — фиксированный объём закупки.
	Volume int `json:"volume"`

	// CreatedAt — время добавления товара.
	CreatedAt time.Time `json:"created_at"`
}

// DistanceCategory — категория дистанции до соглашения (ZOPA):
// насколько далеко приемлемый диапазон контрагента от диапазона пользователя.
type DistanceCategory string

const (
	// DistanceClose — диапазоны сторон заметно пересекаются.
	DistanceClose DistanceCategory = "CLOSE"

	// DistanceMedium — диапазоны соприкасаются, соглашение достижимо
	// при взаимных уступках. Синтетическое значение по умолчанию.
	DistanceMedium DistanceCategory = "MEDIUM"

	// DistanceFar — диапазоны расходятся, соглашение маловероятно.
	DistanceFar DistanceCategory = "FAR"
)

// AllDistances возвращает полный справочник категорий дистанции
// в каноническом порядке итерации.
func AllDistances() []DistanceCategory {
	return []DistanceCategory{DistanceClose, DistanceMedium, DistanceFar}
}

// IsValid возвращает true для известной категории дистанции.
func (d DistanceCategory) IsValid() bool {
	switch d {
	case DistanceClose, DistanceMedium, DistanceFar:
		return true
	default:
		return false
	}
}

package projection

import (
	"fmt"
	"sort"
	"time"

	"github.com/mmeshcher/cardkeeper/internal/model"
)

// TimelineItem — элемент единой хронологии. Закрытое объединение из двух
// вариантов: сохранённое событие (RecordedItem) и синтезированная будущая
// проекция (ProjectedItem). Отображение не может принять проекцию за
// сохранённый факт и попытаться её редактировать.
type TimelineItem interface {
	ItemDate() time.Time
	ItemType() string
	ItemLabel() string
	Synthetic() bool
}

// RecordedItem — реальное событие истории, один к одному с записью хранилища.
// Тип, дата и метаданные переносятся без изменений.
type RecordedItem struct {
	Event    model.Event
	CardName string
}

// ItemDate возвращает дату события.
func (i RecordedItem) ItemDate() time.Time { return DateOnly(i.Event.EventDate) }

// ItemType возвращает исходный тип события.
func (i RecordedItem) ItemType() string { return string(i.Event.EventType) }

// ItemLabel возвращает описание события либо его тип, если описания нет.
func (i RecordedItem) ItemLabel() string {
	if i.Event.Description != "" {
		return i.Event.Description
	}
	return string(i.Event.EventType)
}

// Synthetic для реального события всегда false.
func (i RecordedItem) Synthetic() bool { return false }

// ProjectedKind — разновидность синтезированного элемента хронологии.
// Границы циклов бенефитов не итемизируются: они слишком часты.
type ProjectedKind string

const (
	ProjectedFee           ProjectedKind = "fee_due"
	ProjectedBonusDeadline ProjectedKind = "bonus_deadline"
	ProjectedAnniversary   ProjectedKind = "anniversary"
)

// ProjectedItem — синтезированное будущее событие. Не подкреплён записью
// хранилища и идемпотентно перегенерируется при каждом вызове.
type ProjectedItem struct {
	Date        time.Time
	Kind        ProjectedKind
	CardID      int64
	CardName    string
	Label       string
	Description string
}

// ItemDate возвращает дату проекции.
func (i ProjectedItem) ItemDate() time.Time { return i.Date }

// ItemType возвращает разновидность проекции.
func (i ProjectedItem) ItemType() string { return string(i.Kind) }

// ItemLabel возвращает подпись проекции.
func (i ProjectedItem) ItemLabel() string { return i.Label }

// Synthetic для проекции всегда true.
func (i ProjectedItem) Synthetic() bool { return true }

// Synthesize строит полный набор синтетических элементов для карт профиля:
// следующая годовая плата, дедлайны неразрешённых бонусов и, если известна
// дата открытия, следующая годовщина по каждой активной карте. Плата и
// дедлайны проецируются по собственным датам: карта без даты открытия, но с
// явной датой платы всё равно даёт элемент платы. Закрытые карты
// отфильтровываются до проекции. Повторный вызов с теми же входами и тем же
// today даёт идентичный результат.
func Synthesize(cards []model.Card, bonuses map[int64][]model.Bonus, today time.Time, firstRenewalMonths int) []ProjectedItem {
	today = DateOnly(today)
	items := make([]ProjectedItem, 0)

	for _, card := range cards {
		if card.Status != model.CardStatusActive {
			continue
		}

		if fee := ProjectFee(card, today, firstRenewalMonths); fee != nil && !fee.NextDate.Before(today) {
			items = append(items, ProjectedItem{
				Date:     fee.NextDate,
				Kind:     ProjectedFee,
				CardID:   card.ID,
				CardName: card.CardName,
				Label:    fmt.Sprintf("Annual fee $%d due %s", *card.AnnualFee, fee.Label),
			})
		}

		for _, b := range bonuses[card.ID] {
			status := ClassifyBonus(b, today)
			if status.State != BonusPending || status.Deadline == nil || status.Overdue {
				// Просроченные pending-бонусы показываются карточной проекцией,
				// а не хронологией: здесь все синтетические элементы не раньше today.
				continue
			}
			items = append(items, ProjectedItem{
				Date:        *status.Deadline,
				Kind:        ProjectedBonusDeadline,
				CardID:      card.ID,
				CardName:    card.CardName,
				Label:       fmt.Sprintf("%s bonus spend deadline", b.BonusSource),
				Description: b.Description,
			})
		}

		if card.OpenDate != nil {
			anniversary := nextAnniversary(DateOnly(*card.OpenDate), today)
			items = append(items, ProjectedItem{
				Date:     anniversary,
				Kind:     ProjectedAnniversary,
				CardID:   card.ID,
				CardName: card.CardName,
				Label:    fmt.Sprintf("Card anniversary (%d years)", yearsBetween(DateOnly(*card.OpenDate), anniversary)),
			})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.Before(items[j].Date)
	})

	return items
}

// nextAnniversary возвращает ближайшую годовщину открытия не раньше today.
func nextAnniversary(open, today time.Time) time.Time {
	next := AddMonthsClamp(open, 12)
	for next.Before(today) {
		next = AddMonthsClamp(next, 12)
	}
	return next
}

func yearsBetween(open, anniversary time.Time) int {
	return anniversary.Year() - open.Year()
}

// Timeline — объединённая хронология. TodayIndex — индекс границы между
// реальной и синтетической частями, куда отображение вставляет маркер "сегодня".
type Timeline struct {
	Items      []TimelineItem
	TodayIndex int
}

// Merge склеивает реальные события и синтетические проекции в одну
// возрастающую по дате последовательность; при равных датах реальное событие
// идёт раньше проекции. Для обычного входа (реальные не позже today,
// синтетические не раньше) результат распадается на реальную и синтетическую
// части, и TodayIndex указывает на первую проекцию. Реальное событие с датой
// в будущем, если такое записано, встаёт по своей дате среди проекций, не
// ломая порядок.
func Merge(recorded []RecordedItem, projected []ProjectedItem) Timeline {
	sorted := make([]RecordedItem, len(recorded))
	copy(sorted, recorded)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ItemDate().Before(sorted[j].ItemDate())
	})

	future := make([]ProjectedItem, len(projected))
	copy(future, projected)
	sort.SliceStable(future, func(i, j int) bool {
		return future[i].Date.Before(future[j].Date)
	})

	items := make([]TimelineItem, 0, len(sorted)+len(future))
	i, j := 0, 0
	for i < len(sorted) && j < len(future) {
		if future[j].Date.Before(sorted[i].ItemDate()) {
			items = append(items, future[j])
			j++
		} else {
			items = append(items, sorted[i])
			i++
		}
	}
	for ; i < len(sorted); i++ {
		items = append(items, sorted[i])
	}
	for ; j < len(future); j++ {
		items = append(items, future[j])
	}

	todayIndex := len(items)
	for k, it := range items {
		if it.Synthetic() {
			todayIndex = k
			break
		}
	}

	return Timeline{Items: items, TodayIndex: todayIndex}
}

// MonthBreaks возвращает индексы элементов, перед которыми нужен разделитель
// месяца: месяц элемента отличается от месяца предыдущего.
func (t Timeline) MonthBreaks() []int {
	breaks := make([]int, 0)
	for i := 1; i < len(t.Items); i++ {
		prev, cur := t.Items[i-1].ItemDate(), t.Items[i].ItemDate()
		if prev.Year() != cur.Year() || prev.Month() != cur.Month() {
			breaks = append(breaks, i)
		}
	}
	return breaks
}

package projection

import (
	"fmt"
	"math"
	"time"

	"github.com/mmeshcher/cardkeeper/internal/model"
)

// DefaultFirstRenewalMonths — смещение первого списания годовой платы от даты
// открытия. Эмитенты, как правило, не берут плату за первый год и начинают со
// второго цикла. Значение переопределяется конфигурацией.
const DefaultFirstRenewalMonths = 13

// Proximity — грубая классификация срочности по числу дней до события.
type Proximity string

const (
	ProximityImminent Proximity = "imminent" // не более 14 дней
	ProximitySoon     Proximity = "soon"     // 15–90 дней
	ProximityFar      Proximity = "far"      // более 90 дней
)

// FeeProjection описывает следующее списание годовой платы карты.
// Все поля производные; структура не сохраняется в хранилище.
type FeeProjection struct {
	NextDate  time.Time `json:"next_date"`
	DaysUntil int       `json:"days_until"`
	Proximity Proximity `json:"proximity"`
	Label     string    `json:"label"`
}

// ProjectFee вычисляет следующее списание годовой платы карты на опорную дату today.
// Возвращает nil для закрытых карт, карт без платы и карт без даты открытия —
// отсутствие проекции является нормальным состоянием, а не ошибкой.
func ProjectFee(card model.Card, today time.Time, firstRenewalMonths int) *FeeProjection {
	if card.Status == model.CardStatusClosed {
		return nil
	}
	if card.AnnualFee == nil || *card.AnnualFee <= 0 {
		return nil
	}
	if firstRenewalMonths <= 0 {
		firstRenewalMonths = DefaultFirstRenewalMonths
	}

	today = DateOnly(today)

	var next time.Time
	switch {
	case card.AnnualFeeDate != nil:
		// Явно заданная дата платы авторитетна и используется как есть.
		next = DateOnly(*card.AnnualFeeDate)
	case card.OpenDate != nil:
		next = AddMonthsClamp(DateOnly(*card.OpenDate), firstRenewalMonths)
		for next.Before(today) {
			next = AddMonthsClamp(next, 12)
		}
	default:
		return nil
	}

	days := DaysBetween(today, next)
	prox := ClassifyProximity(days)

	return &FeeProjection{
		NextDate:  next,
		DaysUntil: days,
		Proximity: prox,
		Label:     proximityLabel(days, prox),
	}
}

// ClassifyProximity переводит число дней до события в одну из трёх корзин срочности.
func ClassifyProximity(days int) Proximity {
	switch {
	case days <= 14:
		return ProximityImminent
	case days <= 90:
		return ProximitySoon
	default:
		return ProximityFar
	}
}

// proximityLabel строит человекочитаемую подпись: дни для imminent,
// недели для soon, месяцы для far, с округлением до ближайшей единицы.
func proximityLabel(days int, prox Proximity) string {
	switch prox {
	case ProximityImminent:
		if days <= 0 {
			return "today"
		}
		return pluralize(days, "day")
	case ProximitySoon:
		weeks := int(math.Round(float64(days) / 7))
		if weeks < 1 {
			weeks = 1
		}
		return pluralize(weeks, "week")
	default:
		months := int(math.Round(float64(days) / 30))
		if months < 1 {
			months = 1
		}
		return pluralize(months, "month")
	}
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("in 1 %s", unit)
	}
	return fmt.Sprintf("in %d %ss", n, unit)
}

package projection

import (
	"math"
	"time"

	"github.com/mmeshcher/cardkeeper/internal/model"
)

// SeverityTier — дискретная ступень израсходованности бенефита, управляет
// срочностью отображения и не зависит от календарной логики.
type SeverityTier string

const (
	SeverityExceeded SeverityTier = "exceeded" // больше 100%
	SeverityComplete SeverityTier = "complete" // ровно 100%
	SeverityHigh     SeverityTier = "high"     // не менее 75%
	SeverityHalf     SeverityTier = "half"     // не менее 50%
	SeverityLow      SeverityTier = "low"      // не менее 25%
	SeverityUnused   SeverityTier = "unused"
)

// CycleProjection описывает текущий цикл бенефита: дату сброса, остаток дней
// и степень израсходованности. Значение справочное — amount_used движок не меняет.
// Для закрытой карты поля сброса отсутствуют: будущие границы циклов не проецируются.
type CycleProjection struct {
	ResetDate      *time.Time   `json:"reset_date,omitempty"`
	DaysUntilReset *int         `json:"days_until_reset,omitempty"`
	Label          string       `json:"label"`
	UsageRatio     int          `json:"usage_ratio"`
	SeverityTier   SeverityTier `json:"severity_tier"`
}

// UsageRatio возвращает нормализованный процент использования бенефита,
// округлённый до целого. Нулевой или отрицательный лимит даёт 0 без деления.
func UsageRatio(used, limit int64) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Round(float64(used) / float64(limit) * 100))
}

// ClassifySeverity переводит процент использования в ступень. Пороги
// проверяются от большего к меньшему.
func ClassifySeverity(ratio int) SeverityTier {
	switch {
	case ratio > 100:
		return SeverityExceeded
	case ratio >= 100:
		return SeverityComplete
	case ratio >= 75:
		return SeverityHigh
	case ratio >= 50:
		return SeverityHalf
	case ratio >= 25:
		return SeverityLow
	default:
		return SeverityUnused
	}
}

// ProjectCycle вычисляет проекцию текущего цикла бенефита на опорную дату today.
// Процент и стадия израсходованности не зависят от дат и считаются всегда;
// дата сброса проецируется только для незакрытой карты.
func ProjectCycle(b model.Benefit, card model.Card, today time.Time) *CycleProjection {
	ratio := UsageRatio(b.AmountUsed, b.BenefitAmount)
	proj := &CycleProjection{
		Label:        string(b.Frequency),
		UsageRatio:   ratio,
		SeverityTier: ClassifySeverity(ratio),
	}

	if card.Status == model.CardStatusClosed {
		return proj
	}

	today = DateOnly(today)
	reset := NextReset(b.Frequency, b.ResetType, card.OpenDate, today)
	days := DaysBetween(today, reset)
	proj.ResetDate = &reset
	proj.DaysUntilReset = &days

	return proj
}

// NextReset возвращает дату окончания текущего цикла — первую границу строго
// позже today. Диспетчеризация по типу сброса выполняется здесь один раз;
// бенефит без даты открытия карты всегда считается по календарю.
func NextReset(f model.Frequency, rt model.ResetType, openDate *time.Time, today time.Time) time.Time {
	today = DateOnly(today)
	if rt == model.ResetCardiversary && openDate != nil {
		return nextCardiversaryReset(f, DateOnly(*openDate), today)
	}
	return nextCalendarReset(f, today)
}

// nextCalendarReset: границы фиксированы к гражданскому календарю —
// первое число месяца, квартала (янв/апр/июл/окт), полугодия (янв/июл) или года.
func nextCalendarReset(f model.Frequency, today time.Time) time.Time {
	year := today.Year()

	switch f {
	case model.FrequencyMonthly:
		start := time.Date(year, today.Month(), 1, 0, 0, 0, 0, time.UTC)
		return AddMonthsClamp(start, 1)
	case model.FrequencyQuarterly:
		quarterMonth := time.Month((int(today.Month())-1)/3*3 + 1)
		start := time.Date(year, quarterMonth, 1, 0, 0, 0, 0, time.UTC)
		return AddMonthsClamp(start, 3)
	case model.FrequencySemiAnnual:
		halfMonth := time.January
		if today.Month() >= time.July {
			halfMonth = time.July
		}
		start := time.Date(year, halfMonth, 1, 0, 0, 0, 0, time.UTC)
		return AddMonthsClamp(start, 6)
	default:
		return time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
}

// nextCardiversaryReset: границы привязаны к дате открытия карты и шагаются
// длиной цикла. Шаг идёт от предыдущей (уже прижатой) границы, поэтому карта,
// открытая 31-го, после февраля продолжает сбрасываться 28-го.
func nextCardiversaryReset(f model.Frequency, open, today time.Time) time.Time {
	step := f.Months()
	cursor := open
	for {
		next := AddMonthsClamp(cursor, step)
		if next.After(today) {
			return next
		}
		cursor = next
	}
}

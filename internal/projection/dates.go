// Package projection реализует движок проекций жизненного цикла карт:
// следующая годовая плата, границы циклов бенефитов, окно допуска 5/24 и
// объединённая хронология. Все функции — чистые функции своих входов и явной
// опорной даты today; движок не читает системные часы и не изменяет данные.
package projection

import "time"

// DateOnly нормализует момент к календарной дате (полночь UTC).
// Движок оперирует только календарными датами без времени суток.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AddMonthsClamp прибавляет месяцы к дате, прижимая день к последнему дню
// целевого месяца: 31 января + 1 месяц = 28/29 февраля, а не 2/3 марта.
func AddMonthsClamp(d time.Time, months int) time.Time {
	idx := d.Year()*12 + int(d.Month()) - 1 + months
	year := idx / 12
	month := time.Month(idx%12 + 1)

	day := d.Day()
	if last := daysInMonth(year, month); day > last {
		day = last
	}

	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func daysInMonth(year int, month time.Month) int {
	// День 0 следующего месяца — последний день текущего.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysBetween возвращает число целых дней от from до to. Отрицательно, если to раньше from.
func DaysBetween(from, to time.Time) int {
	return int(DateOnly(to).Sub(DateOnly(from)).Hours() / 24)
}

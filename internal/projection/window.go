package projection

import (
	"sort"
	"time"

	"github.com/mmeshcher/cardkeeper/internal/model"
)

// WindowConfig задаёт параметры скользящего окна учёта открытий.
// Пороги — конфигурация, а не константы движка.
type WindowConfig struct {
	Months int // длина окна в календарных месяцах
	Limit  int // потолок одобрений
}

// DefaultWindowConfig — правило 5/24: окно 24 месяца, потолок 5 открытий.
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{Months: 24, Limit: 5}
}

// WindowColor — цветовая индикация статуса окна, потребляется только отображением.
type WindowColor string

const (
	WindowGreen  WindowColor = "green"
	WindowYellow WindowColor = "yellow"
	WindowRed    WindowColor = "red"
)

// Dropoff описывает учтённую карту и дату её выхода из окна.
type Dropoff struct {
	CardID      int64     `json:"card_id"`
	CardName    string    `json:"card_name"`
	OpenDate    time.Time `json:"open_date"`
	DropoffDate time.Time `json:"dropoff_date"`
}

// WindowStatus — результат подсчёта окна допуска для профиля.
type WindowStatus struct {
	Count       int         `json:"count"`
	Dropoffs    []Dropoff   `json:"dropoff_dates"`
	StatusColor WindowColor `json:"status_color"`
}

// ComputeWindow считает личные карты профиля, открытые в скользящем окне,
// заканчивающемся в today (граница включительно). Закрытые карты учитываются,
// пока их дата открытия внутри окна: правило считает заявки, а не активные карты.
func ComputeWindow(cards []model.Card, today time.Time, cfg WindowConfig) WindowStatus {
	if cfg.Months <= 0 || cfg.Limit <= 0 {
		cfg = DefaultWindowConfig()
	}

	today = DateOnly(today)
	cutoff := AddMonthsClamp(today, -cfg.Months)

	dropoffs := make([]Dropoff, 0)
	for _, c := range cards {
		if c.CardType != model.CardTypePersonal || c.OpenDate == nil {
			continue
		}
		open := DateOnly(*c.OpenDate)
		if open.Before(cutoff) {
			continue
		}
		dropoffs = append(dropoffs, Dropoff{
			CardID:      c.ID,
			CardName:    c.CardName,
			OpenDate:    open,
			DropoffDate: AddMonthsClamp(open, cfg.Months),
		})
	}

	sort.SliceStable(dropoffs, func(i, j int) bool {
		return dropoffs[i].OpenDate.Before(dropoffs[j].OpenDate)
	})

	count := len(dropoffs)
	var color WindowColor
	switch {
	case count >= cfg.Limit:
		color = WindowRed
	case count == cfg.Limit-1:
		color = WindowYellow
	default:
		color = WindowGreen
	}

	return WindowStatus{
		Count:       count,
		Dropoffs:    dropoffs,
		StatusColor: color,
	}
}

package projection

import (
	"time"

	"github.com/mmeshcher/cardkeeper/internal/model"
)

// BonusState — стадия жизненного цикла бонуса: pending → earned | missed.
// Оба конечных состояния терминальны; переходы выполняет вызывающая сторона,
// движок только классифицирует.
type BonusState string

const (
	BonusPending BonusState = "pending"
	BonusEarned  BonusState = "earned"
	BonusMissed  BonusState = "missed"
)

// BonusStatus — классификация бонуса относительно опорной даты.
// Pending с истёкшим дедлайном остаётся pending и помечается Overdue,
// пока вызывающая сторона явно не разрешит его.
type BonusStatus struct {
	BonusID           int64             `json:"bonus_id"`
	State             BonusState        `json:"state"`
	Deadline          *time.Time        `json:"spend_deadline,omitempty"`
	DaysUntilDeadline *int              `json:"days_until_deadline,omitempty"`
	Overdue           bool              `json:"overdue"`
	Proximity         Proximity         `json:"proximity,omitempty"`
	Source            model.BonusSource `json:"bonus_source"`
}

// ClassifyBonus определяет состояние бонуса и просроченность его дедлайна на дату today.
func ClassifyBonus(b model.Bonus, today time.Time) BonusStatus {
	status := BonusStatus{
		BonusID: b.ID,
		Source:  b.BonusSource,
	}

	switch {
	case b.BonusEarned:
		status.State = BonusEarned
	case b.BonusMissed:
		status.State = BonusMissed
	default:
		status.State = BonusPending
	}

	if status.State != BonusPending || b.SpendDeadline == nil {
		return status
	}

	deadline := DateOnly(*b.SpendDeadline)
	days := DaysBetween(DateOnly(today), deadline)

	status.Deadline = &deadline
	status.DaysUntilDeadline = &days
	status.Overdue = days < 0
	if !status.Overdue {
		status.Proximity = ClassifyProximity(days)
	}

	return status
}

package projection

import (
	"testing"
	"time"

	"github.com/mmeshcher/cardkeeper/internal/model"
)

func TestClassifyBonus_States(t *testing.T) {
	today := date(2025, time.June, 15)
	deadline := date(2025, time.July, 1)

	tests := []struct {
		name  string
		bonus model.Bonus
		want  BonusState
	}{
		{
			name:  "earned is terminal",
			bonus: model.Bonus{ID: 1, BonusEarned: true, SpendDeadline: &deadline},
			want:  BonusEarned,
		},
		{
			name:  "missed is terminal",
			bonus: model.Bonus{ID: 2, BonusMissed: true, SpendDeadline: &deadline},
			want:  BonusMissed,
		},
		{
			name:  "otherwise pending",
			bonus: model.Bonus{ID: 3, SpendDeadline: &deadline},
			want:  BonusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyBonus(tt.bonus, today)
			if got.State != tt.want {
				t.Fatalf("State = %s, want %s", got.State, tt.want)
			}
		})
	}
}

func TestClassifyBonus_TerminalHasNoDeadlineProjection(t *testing.T) {
	deadline := date(2025, time.July, 1)
	got := ClassifyBonus(model.Bonus{ID: 1, BonusEarned: true, SpendDeadline: &deadline}, date(2025, time.June, 15))

	if got.Deadline != nil || got.DaysUntilDeadline != nil || got.Overdue {
		t.Fatalf("terminal bonus must not project a deadline: %+v", got)
	}
}

func TestClassifyBonus_PendingOverdue(t *testing.T) {
	// Pending с истёкшим дедлайном остаётся pending и помечается просроченным:
	// движок не переводит состояния сам.
	deadline := date(2025, time.May, 1)
	got := ClassifyBonus(model.Bonus{ID: 1, SpendDeadline: &deadline}, date(2025, time.June, 15))

	if got.State != BonusPending {
		t.Fatalf("State = %s, want %s", got.State, BonusPending)
	}
	if !got.Overdue {
		t.Fatal("Overdue = false, want true")
	}
	if got.DaysUntilDeadline == nil || *got.DaysUntilDeadline >= 0 {
		t.Fatalf("DaysUntilDeadline = %v, want negative", got.DaysUntilDeadline)
	}
}

func TestClassifyBonus_PendingUpcoming(t *testing.T) {
	deadline := date(2025, time.June, 25)
	got := ClassifyBonus(model.Bonus{ID: 1, SpendDeadline: &deadline}, date(2025, time.June, 15))

	if got.Overdue {
		t.Fatal("Overdue = true, want false")
	}
	if got.DaysUntilDeadline == nil || *got.DaysUntilDeadline != 10 {
		t.Fatalf("DaysUntilDeadline = %v, want 10", got.DaysUntilDeadline)
	}
	if got.Proximity != ProximityImminent {
		t.Fatalf("Proximity = %s, want %s", got.Proximity, ProximityImminent)
	}
}

func TestClassifyBonus_NoDeadline(t *testing.T) {
	got := ClassifyBonus(model.Bonus{ID: 1}, date(2025, time.June, 15))
	if got.State != BonusPending || got.Deadline != nil {
		t.Fatalf("bonus without deadline: %+v, want pending with no deadline projection", got)
	}
}

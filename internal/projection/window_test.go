package projection

import (
	"testing"
	"time"

	"github.com/mmeshcher/cardkeeper/internal/model"
)

func windowCard(id int64, open time.Time) model.Card {
	return model.Card{
		ID:       id,
		CardName: "Card",
		CardType: model.CardTypePersonal,
		Status:   model.CardStatusActive,
		OpenDate: &open,
	}
}

func TestComputeWindow_MembershipBoundaries(t *testing.T) {
	today := date(2025, time.June, 15)
	cutoff := AddMonthsClamp(today, -24) // 2023-06-15

	tests := []struct {
		name   string
		open   time.Time
		counts bool
	}{
		{"24 months minus 1 day ago", cutoff.AddDate(0, 0, 1), true},
		{"exactly 24 months ago", cutoff, true},
		{"24 months plus 1 day ago", cutoff.AddDate(0, 0, -1), false},
		{"yesterday", today.AddDate(0, 0, -1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := ComputeWindow([]model.Card{windowCard(1, tt.open)}, today, DefaultWindowConfig())
			if got := status.Count == 1; got != tt.counts {
				t.Fatalf("card opened %s: counted = %v, want %v",
					tt.open.Format(time.DateOnly), got, tt.counts)
			}
		})
	}
}

func TestComputeWindow_DropoffNeverBeforeToday(t *testing.T) {
	today := date(2025, time.June, 15)
	cards := []model.Card{
		windowCard(1, date(2023, time.June, 16)),
		windowCard(2, date(2024, time.January, 31)),
		windowCard(3, date(2025, time.June, 15)),
	}

	status := ComputeWindow(cards, today, DefaultWindowConfig())
	if status.Count != 3 {
		t.Fatalf("Count = %d, want 3", status.Count)
	}
	for _, d := range status.Dropoffs {
		if d.DropoffDate.Before(today) {
			t.Fatalf("dropoff %s for card %d is before today", d.DropoffDate.Format(time.DateOnly), d.CardID)
		}
	}
}

func TestComputeWindow_DropoffsSortedByOpenDate(t *testing.T) {
	today := date(2025, time.June, 15)
	cards := []model.Card{
		windowCard(1, date(2025, time.March, 1)),
		windowCard(2, date(2024, time.January, 10)),
		windowCard(3, date(2024, time.September, 5)),
	}

	status := ComputeWindow(cards, today, DefaultWindowConfig())
	for i := 1; i < len(status.Dropoffs); i++ {
		if status.Dropoffs[i].OpenDate.Before(status.Dropoffs[i-1].OpenDate) {
			t.Fatalf("dropoffs not sorted by open date: %+v", status.Dropoffs)
		}
	}
}

func TestComputeWindow_ClosedCardsStillCount(t *testing.T) {
	// Правило считает заявки: закрытая карта внутри окна всё равно учитывается.
	today := date(2025, time.June, 15)
	card := windowCard(1, date(2024, time.June, 15))
	card.Status = model.CardStatusClosed

	status := ComputeWindow([]model.Card{card}, today, DefaultWindowConfig())
	if status.Count != 1 {
		t.Fatalf("Count = %d, want 1 (closed cards count while inside window)", status.Count)
	}
}

func TestComputeWindow_IgnoresBusinessAndUndated(t *testing.T) {
	today := date(2025, time.June, 15)

	business := windowCard(1, date(2025, time.January, 1))
	business.CardType = model.CardTypeBusiness
	undated := windowCard(2, date(2025, time.January, 1))
	undated.OpenDate = nil

	status := ComputeWindow([]model.Card{business, undated}, today, DefaultWindowConfig())
	if status.Count != 0 {
		t.Fatalf("Count = %d, want 0", status.Count)
	}
}

func TestComputeWindow_StatusColors(t *testing.T) {
	today := date(2025, time.June, 15)

	makeCards := func(n int) []model.Card {
		cards := make([]model.Card, 0, n)
		for i := 0; i < n; i++ {
			cards = append(cards, windowCard(int64(i+1), date(2024, time.June, 1).AddDate(0, 0, i)))
		}
		return cards
	}

	tests := []struct {
		count int
		want  WindowColor
	}{
		{0, WindowGreen},
		{3, WindowGreen},
		{4, WindowYellow},
		{5, WindowRed},
		{6, WindowRed},
	}

	for _, tt := range tests {
		status := ComputeWindow(makeCards(tt.count), today, DefaultWindowConfig())
		if status.StatusColor != tt.want {
			t.Fatalf("%d cards: StatusColor = %s, want %s", tt.count, status.StatusColor, tt.want)
		}
	}
}

func TestComputeWindow_ConfigurableThresholds(t *testing.T) {
	today := date(2025, time.June, 15)
	cards := []model.Card{
		windowCard(1, date(2025, time.January, 1)),
		windowCard(2, date(2025, time.February, 1)),
	}

	status := ComputeWindow(cards, today, WindowConfig{Months: 24, Limit: 2})
	if status.StatusColor != WindowRed {
		t.Fatalf("StatusColor = %s, want %s with limit 2", status.StatusColor, WindowRed)
	}

	// Окно короче: обе карты старше 3 месяцев выпадают.
	status = ComputeWindow(cards, today, WindowConfig{Months: 3, Limit: 2})
	if status.Count != 0 {
		t.Fatalf("Count = %d, want 0 with 3-month window", status.Count)
	}
}

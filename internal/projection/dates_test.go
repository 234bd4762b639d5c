package projection

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddMonthsClamp(t *testing.T) {
	tests := []struct {
		name   string
		from   time.Time
		months int
		want   time.Time
	}{
		{
			name:   "plain month step",
			from:   date(2024, time.March, 15),
			months: 1,
			want:   date(2024, time.April, 15),
		},
		{
			name:   "jan 31 clamps to feb 29 in leap year",
			from:   date(2024, time.January, 31),
			months: 1,
			want:   date(2024, time.February, 29),
		},
		{
			name:   "jan 31 plus 13 months clamps to feb 28",
			from:   date(2024, time.January, 31),
			months: 13,
			want:   date(2025, time.February, 28),
		},
		{
			name:   "year boundary",
			from:   date(2024, time.November, 30),
			months: 3,
			want:   date(2025, time.February, 28),
		},
		{
			name:   "negative step",
			from:   date(2025, time.March, 31),
			months: -1,
			want:   date(2025, time.February, 28),
		},
		{
			name:   "minus 24 months",
			from:   date(2024, time.February, 29),
			months: -24,
			want:   date(2022, time.February, 28),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AddMonthsClamp(tt.from, tt.months)
			if !got.Equal(tt.want) {
				t.Fatalf("AddMonthsClamp(%s, %d) = %s, want %s",
					tt.from.Format(time.DateOnly), tt.months,
					got.Format(time.DateOnly), tt.want.Format(time.DateOnly))
			}
		})
	}
}

func TestDaysBetween(t *testing.T) {
	if got := DaysBetween(date(2024, time.April, 1), date(2024, time.April, 15)); got != 14 {
		t.Fatalf("DaysBetween = %d, want 14", got)
	}
	if got := DaysBetween(date(2024, time.April, 15), date(2024, time.April, 1)); got != -14 {
		t.Fatalf("DaysBetween reversed = %d, want -14", got)
	}
	if got := DaysBetween(date(2024, time.April, 1), date(2024, time.April, 1)); got != 0 {
		t.Fatalf("DaysBetween same day = %d, want 0", got)
	}
}

func TestDateOnlyStripsClock(t *testing.T) {
	loc := time.FixedZone("test", 3*60*60)
	in := time.Date(2024, time.April, 1, 23, 45, 0, 0, loc)
	want := date(2024, time.April, 1)
	if got := DateOnly(in); !got.Equal(want) {
		t.Fatalf("DateOnly = %s, want %s", got, want)
	}
}

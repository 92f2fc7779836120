package tariff

import (
	"strings"
	"testing"
)

func TestMonthSpan_Contiguous(t *testing.T) {
	if got := monthSpan([]int{0, 1, 2, 3, 4, 5}); got != "Jan-Jun" {
		t.Errorf("want Jan-Jun, got %q", got)
	}
}

func TestMonthSpan_Scattered(t *testing.T) {
	if got := monthSpan([]int{0, 2, 5}); got != "Jan, Mar, Jun" {
		t.Errorf("want comma list, got %q", got)
	}
}

func TestMonthSpan_SingleMonth(t *testing.T) {
	if got := monthSpan([]int{6}); got != "Jul" {
		t.Errorf("want Jul, got %q", got)
	}
}

func TestMonthSpan_Empty(t *testing.T) {
	if got := monthSpan(nil); got != "" {
		t.Errorf("want empty string, got %q", got)
	}
}

func TestMonthSpan_FullYear(t *testing.T) {
	all := make([]int, MonthsPerYear)
	for i := range all {
		all[i] = i
	}
	if got := monthSpan(all); got != "Jan-Dec" {
		t.Errorf("want Jan-Dec, got %q", got)
	}
}

// scheduleWithPeriodInMonths builds an all-period-0 schedule where the given
// months reference the given period for one hour.
func scheduleWithPeriodInMonths(period int, months ...int) Schedule {
	s := fullSchedule(0)
	for _, m := range months {
		s[m][12] = period
	}
	return s
}

func TestSummarizePeriods_WeekendOnlyPeriod(t *testing.T) {
	structure := RateStructure{
		{{Rate: 0.05}},
		{{Rate: 0.15, Adj: 0.01}},
	}
	weekday := fullSchedule(0)
	weekend := scheduleWithPeriodInMonths(1, 5, 6, 7) // Jun-Aug

	rows := SummarizePeriods(structure, nil, weekday, weekend)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	onPeak := rows[1]
	if onPeak.Months != "Jun-Aug (Weekend)" {
		t.Errorf("want %q, got %q", "Jun-Aug (Weekend)", onPeak.Months)
	}
	if strings.Contains(onPeak.Months, "Weekday") {
		t.Errorf("unexpected weekday clause: %q", onPeak.Months)
	}
	if !approxEqual(onPeak.Total, 0.16) {
		t.Errorf("want total 0.16, got %v", onPeak.Total)
	}
}

func TestSummarizePeriods_JoinsWeekdayAndWeekendClauses(t *testing.T) {
	structure := RateStructure{{{Rate: 0.05}}, {{Rate: 0.15}}}
	weekday := scheduleWithPeriodInMonths(1, 0, 1, 2, 3, 4, 5) // Jan-Jun
	weekend := scheduleWithPeriodInMonths(1, 6, 7, 8, 9, 10, 11)

	rows := SummarizePeriods(structure, nil, weekday, weekend)
	want := "Jan-Jun (Weekday), Jul-Dec (Weekend)"
	if rows[1].Months != want {
		t.Errorf("want %q, got %q", want, rows[1].Months)
	}
}

func TestSummarizePeriods_UnreferencedPeriodNotUsed(t *testing.T) {
	structure := RateStructure{{{Rate: 0.05}}, {{Rate: 0.15}}}
	weekday := fullSchedule(0)
	weekend := fullSchedule(0)

	rows := SummarizePeriods(structure, nil, weekday, weekend)
	if rows[1].Months != "Not used" {
		t.Errorf("want Not used, got %q", rows[1].Months)
	}
}

func TestSummarizePeriods_EmptySchedules(t *testing.T) {
	structure := RateStructure{{{Rate: 0.05}}}
	rows := SummarizePeriods(structure, nil, nil, nil)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Months != "Not used" {
		t.Errorf("want Not used, got %q", rows[0].Months)
	}
}

func TestSummarizePeriods_Labels(t *testing.T) {
	structure := RateStructure{{{Rate: 0.05}}, {{Rate: 0.15}}, {{Rate: 0.25}}}
	labels := []string{"Off-Peak", "On-Peak"} // shorter than the structure

	rows := SummarizePeriods(structure, labels, nil, nil)
	if rows[0].Label != "Off-Peak" {
		t.Errorf("row 0 label: got %q", rows[0].Label)
	}
	if rows[1].Label != "On-Peak" {
		t.Errorf("row 1 label: got %q", rows[1].Label)
	}
	if rows[2].Label != "Period 2 — label not provided" {
		t.Errorf("row 2 label: got %q", rows[2].Label)
	}
}

func TestSummarizePeriods_SkipsTierlessPeriods(t *testing.T) {
	structure := RateStructure{
		{{Rate: 0.05}},
		{}, // malformed: no tiers
		{{Rate: 0.25}},
	}
	rows := SummarizePeriods(structure, nil, nil, nil)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Period != 0 || rows[1].Period != 2 {
		t.Errorf("period indices must be preserved: got %d, %d", rows[0].Period, rows[1].Period)
	}
}

func TestSummarizePeriods_ScatteredMonths(t *testing.T) {
	structure := RateStructure{{{Rate: 0.05}}, {{Rate: 0.15}}}
	weekday := scheduleWithPeriodInMonths(1, 0, 2, 5) // Jan, Mar, Jun

	rows := SummarizePeriods(structure, nil, weekday, nil)
	if rows[1].Months != "Jan, Mar, Jun (Weekday)" {
		t.Errorf("got %q", rows[1].Months)
	}
}

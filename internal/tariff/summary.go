package tariff

import (
	"fmt"
	"sort"
	"strings"
)

// monthNames in calendar order; index matches the schedule month axis.
var monthNames = [MonthsPerYear]string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// PeriodSummary is one human-readable row per period of a rate structure:
// its label, tier-0 rates, and a compact description of the months in which
// the period appears in the weekday and weekend schedules.
type PeriodSummary struct {
	Period int     `json:"period"`
	Label  string  `json:"label"`
	Rate   float64 `json:"rate"`
	Adj    float64 `json:"adj"`
	Total  float64 `json:"total"`
	Months string  `json:"months"`
}

// SummarizePeriods produces one summary row per period of the structure that
// has at least one tier. Labels are taken positionally from the label list
// when present, otherwise synthesized. The months column joins the weekday
// and weekend clauses, e.g. "Jan-Jun (Weekday), Jul-Dec (Weekend)"; a period
// referenced by neither schedule reads "Not used".
func SummarizePeriods(structure RateStructure, labels []string, weekday, weekend Schedule) []PeriodSummary {
	var out []PeriodSummary
	for i, tiers := range structure {
		if len(tiers) == 0 {
			continue
		}

		label := fmt.Sprintf("Period %d — label not provided", i)
		if i < len(labels) && labels[i] != "" {
			label = labels[i]
		}

		var clauses []string
		if span := monthSpan(activeMonths(weekday, i)); span != "" {
			clauses = append(clauses, span+" (Weekday)")
		}
		if span := monthSpan(activeMonths(weekend, i)); span != "" {
			clauses = append(clauses, span+" (Weekend)")
		}
		months := "Not used"
		if len(clauses) > 0 {
			months = strings.Join(clauses, ", ")
		}

		out = append(out, PeriodSummary{
			Period: i,
			Label:  label,
			Rate:   tiers[0].Rate,
			Adj:    tiers[0].Adj,
			Total:  tiers[0].Rate + tiers[0].Adj,
			Months: months,
		})
	}
	return out
}

// activeMonths scans a schedule Jan through Dec and returns the calendar
// indices of every month that references the period in at least one hour.
func activeMonths(schedule Schedule, period int) []int {
	var active []int
	for month := 0; month < MonthsPerYear && month < len(schedule); month++ {
		for _, p := range schedule[month] {
			if p == period {
				active = append(active, month)
				break
			}
		}
	}
	return active
}

// monthSpan renders a list of calendar month indices compactly: a single
// month by name, a contiguous run as "Jan-Jun", anything else as a comma
// list in order of appearance. This only makes sense over the fixed 12-month
// calendar; it is not a general range formatter.
func monthSpan(active []int) string {
	switch len(active) {
	case 0:
		return ""
	case 1:
		return monthNames[active[0]]
	}

	sorted := append([]int(nil), active...)
	sort.Ints(sorted)
	contiguous := true
	for k := 1; k < len(sorted); k++ {
		if sorted[k] != sorted[k-1]+1 {
			contiguous = false
			break
		}
	}
	if contiguous {
		return monthNames[sorted[0]] + "-" + monthNames[sorted[len(sorted)-1]]
	}

	names := make([]string, 0, len(active))
	for _, m := range active {
		names = append(names, monthNames[m])
	}
	return strings.Join(names, ", ")
}

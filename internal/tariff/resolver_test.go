package tariff

import (
	"math"
	"reflect"
	"testing"
)

func ptr(f float64) *float64 { return &f }

// Rates come out of float additions (rate+adj), so exact comparison is
// unreliable for sums like 0.05+0.01.
func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEffectiveRate_TierZeroPlusAdj(t *testing.T) {
	structure := RateStructure{
		{{Rate: 0.10, Adj: 0.02}, {Rate: 0.50}}, // second tier must be ignored
		{{Rate: 0.08}},
	}

	if got := EffectiveRate(structure, 0); !approxEqual(got, 0.12) {
		t.Errorf("period 0: want 0.12, got %v", got)
	}
	if got := EffectiveRate(structure, 1); got != 0.08 {
		t.Errorf("period 1: want 0.08, got %v", got)
	}
}

func TestEffectiveRate_OutOfRange(t *testing.T) {
	structure := RateStructure{{{Rate: 0.10}}}

	if got := EffectiveRate(structure, 7); got != 0 {
		t.Errorf("out-of-range period: want 0, got %v", got)
	}
	if got := EffectiveRate(structure, -1); got != 0 {
		t.Errorf("negative period: want 0, got %v", got)
	}
	if got := EffectiveRate(nil, 0); got != 0 {
		t.Errorf("nil structure: want 0, got %v", got)
	}
}

func TestEffectiveRate_EmptyTierList(t *testing.T) {
	structure := RateStructure{{}}
	if got := EffectiveRate(structure, 0); got != 0 {
		t.Errorf("tierless period: want 0, got %v", got)
	}
}

func fullSchedule(period int) Schedule {
	s := make(Schedule, MonthsPerYear)
	for m := range s {
		s[m] = make([]int, HoursPerDay)
		for h := range s[m] {
			s[m][h] = period
		}
	}
	return s
}

func TestBuildMatrix_EmptyInputsYieldZeros(t *testing.T) {
	var zero RateMatrix

	cases := []struct {
		name      string
		structure RateStructure
		schedule  Schedule
	}{
		{"both nil", nil, nil},
		{"nil structure", nil, fullSchedule(0)},
		{"nil schedule", RateStructure{{{Rate: 0.1}}}, nil},
		{"empty schedule", RateStructure{{{Rate: 0.1}}}, Schedule{}},
	}
	for _, tc := range cases {
		if got := BuildMatrix(tc.structure, tc.schedule); got != zero {
			t.Errorf("%s: expected all-zero matrix", tc.name)
		}
	}
}

func TestBuildMatrix_CellLookup(t *testing.T) {
	structure := RateStructure{
		{{Rate: 0.05, Adj: 0.01}},
		{{Rate: 0.20}},
	}
	schedule := fullSchedule(0)
	// Afternoon hours of July switch to the on-peak period.
	for h := 12; h < 18; h++ {
		schedule[6][h] = 1
	}

	m := BuildMatrix(structure, schedule)
	if !approxEqual(m[0][0], 0.06) {
		t.Errorf("Jan 00: want 0.06, got %v", m[0][0])
	}
	if m[6][14] != 0.20 {
		t.Errorf("Jul 14: want 0.20, got %v", m[6][14])
	}
	if !approxEqual(m[6][11], 0.06) {
		t.Errorf("Jul 11: want 0.06, got %v", m[6][11])
	}
}

func TestBuildMatrix_OutOfRangePeriodIndexResolvesToZero(t *testing.T) {
	structure := RateStructure{
		{{Rate: 0.10}},
		{{Rate: 0.20}},
		{{Rate: 0.30}},
	}
	schedule := fullSchedule(0)
	schedule[3][8] = 7 // malformed: only 3 periods exist

	m := BuildMatrix(structure, schedule)
	if m[3][8] != 0 {
		t.Errorf("malformed cell: want 0, got %v", m[3][8])
	}
	if m[3][7] != 0.10 {
		t.Errorf("neighbor cell: want 0.10, got %v", m[3][7])
	}
}

func TestBuildFlatDemand_AllMonthsSamePeriod(t *testing.T) {
	structure := RateStructure{{{Rate: 0.05, Adj: 0.01}}}
	months := make([]int, MonthsPerYear)

	v := BuildFlatDemand(structure, months)
	for m, rate := range v {
		if !approxEqual(rate, 0.06) {
			t.Errorf("month %d: want 0.06, got %v", m, rate)
		}
	}
}

func TestBuildFlatDemand_EmptyInputs(t *testing.T) {
	var zero FlatDemandVector
	if got := BuildFlatDemand(nil, []int{0, 0, 0}); got != zero {
		t.Errorf("nil structure: expected zero vector")
	}
	if got := BuildFlatDemand(RateStructure{{{Rate: 1}}}, nil); got != zero {
		t.Errorf("nil months: expected zero vector")
	}
}

func TestBuildFlatDemand_ShortMonthsDefaultsToPeriodZero(t *testing.T) {
	structure := RateStructure{
		{{Rate: 0.03}},
		{{Rate: 0.09}},
	}
	// Only the first six months are mapped; the rest must fall back to period 0.
	months := []int{1, 1, 1, 1, 1, 1}

	v := BuildFlatDemand(structure, months)
	if v[0] != 0.09 {
		t.Errorf("Jan: want 0.09, got %v", v[0])
	}
	if v[11] != 0.03 {
		t.Errorf("Dec: want 0.03 (period 0 fallback), got %v", v[11])
	}
}

func TestResolve_Idempotent(t *testing.T) {
	rec := &Record{
		Utility:               "Example Electric",
		Name:                  "Residential TOU",
		EnergyRateStructure:   RateStructure{{{Rate: 0.05, Adj: 0.01}}, {{Rate: 0.20}}},
		EnergyWeekdaySchedule: fullSchedule(1),
		EnergyWeekendSchedule: fullSchedule(0),
		FlatDemandStructure:   RateStructure{{{Rate: 4.5}}},
		FlatDemandMonths:      make([]int, MonthsPerYear),
	}

	first := Resolve(rec)
	second := Resolve(rec)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Resolve is not idempotent over an unchanged record")
	}
	if first == second {
		t.Fatalf("Resolve must return freshly allocated output")
	}
}

func TestDecodeDocument_UnwrapsItems(t *testing.T) {
	data := []byte(`{"items":[{"utility":"Wrapped Co","name":"Wrapped Tariff"}]}`)
	rec, err := DecodeDocument(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Utility != "Wrapped Co" {
		t.Errorf("unexpected utility: %q", rec.Utility)
	}
}

func TestDecodeDocument_BareRecord(t *testing.T) {
	data := []byte(`{"utility":"Flat Co","energyratestructure":[[{"rate":0.1,"max":400}]]}`)
	rec, err := DecodeDocument(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Utility != "Flat Co" {
		t.Errorf("unexpected utility: %q", rec.Utility)
	}
	if got := EffectiveRate(rec.EnergyRateStructure, 0); got != 0.1 {
		t.Errorf("want 0.1, got %v", got)
	}
}

func TestDecodeDocument_Malformed(t *testing.T) {
	if _, err := DecodeDocument([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed document")
	}
}

func TestRecordDisplayDefaults(t *testing.T) {
	var rec Record
	if got := rec.DisplayUtility(); got != DefaultUtility {
		t.Errorf("utility default: got %q", got)
	}
	if got := rec.DisplayName(); got != DefaultName {
		t.Errorf("name default: got %q", got)
	}
	rec.Utility = "Real Utility"
	if got := rec.DisplayUtility(); got != "Real Utility" {
		t.Errorf("utility: got %q", got)
	}
}

func TestTierMaxIsOptional(t *testing.T) {
	tier := Tier{Rate: 0.1, Max: ptr(400)}
	if tier.Max == nil || *tier.Max != 400 {
		t.Errorf("max not carried")
	}
}

package tariff

// RateMatrix is a dense 12x24 grid of effective rates ($/kWh or $/kW),
// indexed by [month][hour].
type RateMatrix [MonthsPerYear][HoursPerDay]float64

// FlatDemandVector holds one effective seasonal demand rate per month.
type FlatDemandVector [MonthsPerYear]float64

// Resolution is the full derived view of a tariff record: the four canonical
// matrices, the seasonal flat-demand vector, and the period summary tables.
// It is a pure function of the input record and carries no identity of its
// own; callers rebuild it whenever the record changes.
type Resolution struct {
	EnergyWeekday RateMatrix       `json:"energy_weekday"`
	EnergyWeekend RateMatrix       `json:"energy_weekend"`
	DemandWeekday RateMatrix       `json:"demand_weekday"`
	DemandWeekend RateMatrix       `json:"demand_weekend"`
	FlatDemand    FlatDemandVector `json:"flat_demand"`
	EnergyPeriods []PeriodSummary  `json:"energy_periods"`
	DemandPeriods []PeriodSummary  `json:"demand_periods"`
}

// EffectiveRate resolves a period index against a rate structure, returning
// tier 0's rate plus its adjustment. An out-of-range index, a missing
// structure, or a period with no tiers all resolve to 0 rather than erroring;
// real-world URDB documents are frequently incomplete and must not crash a
// resolution.
//
// Only the first tier is consulted. Block/tiered rates that depend on
// cumulative usage are not modeled.
func EffectiveRate(structure RateStructure, period int) float64 {
	if period < 0 || period >= len(structure) {
		return 0
	}
	tiers := structure[period]
	if len(tiers) == 0 {
		return 0
	}
	return tiers[0].Rate + tiers[0].Adj
}

// BuildMatrix expands a sparse schedule-indexed rate structure into a dense
// 12x24 matrix of effective rates. If either input is absent or empty the
// result is an all-zero matrix; many tariffs legitimately carry no demand
// schedule at all.
func BuildMatrix(structure RateStructure, schedule Schedule) RateMatrix {
	var m RateMatrix
	if len(structure) == 0 || len(schedule) == 0 {
		return m
	}
	for month := 0; month < MonthsPerYear && month < len(schedule); month++ {
		hours := schedule[month]
		for hour := 0; hour < HoursPerDay && hour < len(hours); hour++ {
			m[month][hour] = EffectiveRate(structure, hours[hour])
		}
	}
	return m
}

// BuildFlatDemand resolves the seasonal flat-demand vector: one effective
// rate per calendar month, keyed through the month-to-period mapping. A month
// beyond the mapping's length falls back to period 0; empty inputs yield an
// all-zero vector.
func BuildFlatDemand(structure RateStructure, months []int) FlatDemandVector {
	var v FlatDemandVector
	if len(structure) == 0 || len(months) == 0 {
		return v
	}
	for month := 0; month < MonthsPerYear; month++ {
		period := 0
		if month < len(months) {
			period = months[month]
		}
		v[month] = EffectiveRate(structure, period)
	}
	return v
}

// Resolve builds the complete derived view of a record in one pass. Every
// call returns freshly allocated output; Resolve never fails and never
// mutates the record.
func Resolve(rec *Record) *Resolution {
	return &Resolution{
		EnergyWeekday: BuildMatrix(rec.EnergyRateStructure, rec.EnergyWeekdaySchedule),
		EnergyWeekend: BuildMatrix(rec.EnergyRateStructure, rec.EnergyWeekendSchedule),
		DemandWeekday: BuildMatrix(rec.DemandRateStructure, rec.DemandWeekdaySchedule),
		DemandWeekend: BuildMatrix(rec.DemandRateStructure, rec.DemandWeekendSchedule),
		FlatDemand:    BuildFlatDemand(rec.FlatDemandStructure, rec.FlatDemandMonths),
		EnergyPeriods: SummarizePeriods(rec.EnergyRateStructure, rec.EnergyTOULabels,
			rec.EnergyWeekdaySchedule, rec.EnergyWeekendSchedule),
		DemandPeriods: SummarizePeriods(rec.DemandRateStructure, rec.DemandLabels,
			rec.DemandWeekdaySchedule, rec.DemandWeekendSchedule),
	}
}

package catalog

import (
	"encoding/json"
	"os"
	"time"

	"github.com/bher20/tariffmatrix/internal/storage"
	"github.com/bher20/tariffmatrix/internal/tariff"
)

// SampleTariff is a built-in tariff document the service can serve without
// any imports, so a fresh deployment has something to resolve.
type SampleTariff struct {
	ID     string        `json:"id"`
	Source string        `json:"source,omitempty"`
	Record tariff.Record `json:"record"`
}

const samplesEnv = "TARIFFMATRIX_SAMPLES_JSON"

// uniformSchedule builds a 12x24 schedule with every cell on one period.
func uniformSchedule(period int) tariff.Schedule {
	s := make(tariff.Schedule, tariff.MonthsPerYear)
	for m := range s {
		row := make([]int, tariff.HoursPerDay)
		for h := range row {
			row[h] = period
		}
		s[m] = row
	}
	return s
}

// touSchedule builds a schedule with an on-peak period during the given
// hours of the given months and off-peak (period 0) elsewhere.
func touSchedule(onPeak int, firstMonth, lastMonth, firstHour, lastHour int) tariff.Schedule {
	s := uniformSchedule(0)
	for m := firstMonth; m <= lastMonth; m++ {
		for h := firstHour; h <= lastHour; h++ {
			s[m][h] = onPeak
		}
	}
	return s
}

func defaultSamples() []SampleTariff {
	return []SampleTariff{
		{
			ID:     "sample-residential-tou",
			Source: "built-in sample",
			Record: tariff.Record{
				Utility:     "Example Electric Cooperative",
				Name:        "Residential Time-of-Use",
				Sector:      "Residential",
				Description: "Summer weekday afternoons are on-peak; all other hours are off-peak.",
				EnergyRateStructure: tariff.RateStructure{
					{{Rate: 0.085, Adj: 0.004}},
					{{Rate: 0.212, Adj: 0.004}},
				},
				EnergyWeekdaySchedule: touSchedule(1, 5, 8, 14, 19), // Jun-Sep, 14:00-19:00
				EnergyWeekendSchedule: uniformSchedule(0),
				EnergyTOULabels:       []string{"Off-Peak", "On-Peak"},
			},
		},
		{
			ID:     "sample-commercial-demand",
			Source: "built-in sample",
			Record: tariff.Record{
				Utility:     "Example Electric Cooperative",
				Name:        "Small Commercial with Demand",
				Sector:      "Commercial",
				Description: "Flat energy rate with a seasonal demand charge.",
				EnergyRateStructure: tariff.RateStructure{
					{{Rate: 0.102}},
				},
				EnergyWeekdaySchedule: uniformSchedule(0),
				EnergyWeekendSchedule: uniformSchedule(0),
				DemandRateStructure: tariff.RateStructure{
					{{Rate: 6.50}},
				},
				DemandWeekdaySchedule: uniformSchedule(0),
				DemandWeekendSchedule: uniformSchedule(0),
				FlatDemandStructure: tariff.RateStructure{
					{{Rate: 4.25}},
					{{Rate: 7.80}},
				},
				// Summer months (Jun-Sep) carry the higher seasonal charge.
				FlatDemandMonths: []int{0, 0, 0, 0, 0, 1, 1, 1, 1, 0, 0, 0},
				DemandLabels:     []string{"All Hours"},
			},
		},
	}
}

// Samples returns the sample tariff list, honoring the JSON env override.
func Samples() []SampleTariff {
	raw := os.Getenv(samplesEnv)
	if raw == "" {
		return defaultSamples()
	}
	var out []SampleTariff
	if err := json.Unmarshal([]byte(raw), &out); err != nil || len(out) == 0 {
		return defaultSamples()
	}
	return out
}

// GetSample returns the sample with the given id.
func GetSample(id string) (SampleTariff, bool) {
	for _, s := range Samples() {
		if s.ID == id {
			return s, true
		}
	}
	return SampleTariff{}, false
}

// Doc converts the sample into a storage document.
func (s SampleTariff) Doc() (storage.TariffDoc, error) {
	payload, err := json.Marshal(s.Record)
	if err != nil {
		return storage.TariffDoc{}, err
	}
	return storage.TariffDoc{
		ID:        s.ID,
		Utility:   s.Record.DisplayUtility(),
		Name:      s.Record.DisplayName(),
		Sector:    s.Record.DisplaySector(),
		Source:    s.Source,
		Payload:   payload,
		UpdatedAt: time.Now(),
	}, nil
}

// SampleDocs converts the sample list into storage documents, for preloading
// the in-memory backend or seeding a fresh database.
func SampleDocs() []storage.TariffDoc {
	samples := Samples()
	docs := make([]storage.TariffDoc, 0, len(samples))
	for _, s := range samples {
		doc, err := s.Doc()
		if err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

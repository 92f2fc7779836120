package tariff

import "encoding/json"

// Record matches the URDB (OpenEI Utility Rate Database) tariff JSON schema.
// Periods have no id field of their own; their position in a rate structure
// is their identity, and schedule cells index into that position.
type Record struct {
	Utility     string `json:"utility"`
	Name        string `json:"name"`
	Sector      string `json:"sector"`
	Description string `json:"description"`

	EnergyRateStructure   RateStructure `json:"energyratestructure"`
	EnergyWeekdaySchedule Schedule      `json:"energyweekdayschedule"`
	EnergyWeekendSchedule Schedule      `json:"energyweekendschedule"`

	DemandRateStructure   RateStructure `json:"demandratestructure"`
	DemandWeekdaySchedule Schedule      `json:"demandweekdayschedule"`
	DemandWeekendSchedule Schedule      `json:"demandweekendschedule"`

	FlatDemandStructure RateStructure `json:"flatdemandstructure"`
	FlatDemandMonths    []int         `json:"flatdemandmonths"`

	EnergyTOULabels []string `json:"energytoulabels"`
	DemandLabels    []string `json:"demandlabels"`
}

// Tier is one usage block within a period. Only tier 0 of a period is ever
// consulted by the resolver; Max is carried for schema completeness.
type Tier struct {
	Rate float64  `json:"rate"`
	Adj  float64  `json:"adj,omitempty"`
	Max  *float64 `json:"max,omitempty"`
}

// RateStructure is an ordered sequence of periods, each an ordered sequence
// of tiers.
type RateStructure [][]Tier

// Schedule is a 12x24 grid of period indices: schedule[month][hour].
// Months run Jan..Dec (0..11), hours 0..23.
type Schedule [][]int

const (
	MonthsPerYear = 12
	HoursPerDay   = 24
)

// Display defaults for records with missing header fields.
const (
	DefaultUtility     = "Unknown Utility"
	DefaultName        = "Unnamed Tariff"
	DefaultSector      = "Unknown"
	DefaultDescription = "No description provided"
)

// DisplayUtility returns the utility name or a fallback default.
func (r *Record) DisplayUtility() string {
	if r.Utility == "" {
		return DefaultUtility
	}
	return r.Utility
}

// DisplayName returns the tariff name or a fallback default.
func (r *Record) DisplayName() string {
	if r.Name == "" {
		return DefaultName
	}
	return r.Name
}

// DisplaySector returns the sector or a fallback default.
func (r *Record) DisplaySector() string {
	if r.Sector == "" {
		return DefaultSector
	}
	return r.Sector
}

// DisplayDescription returns the description or a fallback default.
func (r *Record) DisplayDescription() string {
	if r.Description == "" {
		return DefaultDescription
	}
	return r.Description
}

// document is the wrapper shape produced by URDB API downloads: the tariff
// sits in an "items" array.
type document struct {
	Items []Record `json:"items"`
}

// DecodeDocument parses a URDB JSON document into a Record. Documents wrapped
// in an "items" list are unwrapped to their first element; bare records are
// accepted as-is. This is the only place the core can fail: JSON that cannot
// be interpreted as a tariff at all.
func DecodeDocument(data []byte) (*Record, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err == nil && len(doc.Items) > 0 {
		rec := doc.Items[0]
		return &rec, nil
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

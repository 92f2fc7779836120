package catalog

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/bher20/tariffmatrix/internal/storage"
)

// Resolved cells are rate+adj sums, so exact float comparison is unreliable.
func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestGetResolution_SampleFallback(t *testing.T) {
	svc := NewService() // no storage -> sample-only mode
	ctx := context.Background()

	res, err := svc.GetResolution(ctx, "sample-residential-tou")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil {
		t.Fatalf("expected non-nil response")
	}

	if res.Utility != "Example Electric Cooperative" {
		t.Errorf("unexpected utility: %q", res.Utility)
	}
	if res.Resolution == nil {
		t.Fatalf("expected resolution payload")
	}

	// On-peak summer weekday afternoon vs off-peak morning.
	if got := res.Resolution.EnergyWeekday[6][15]; !approxEqual(got, 0.216) {
		t.Errorf("Jul 15:00 weekday: want 0.216, got %v", got)
	}
	if got := res.Resolution.EnergyWeekday[6][8]; !approxEqual(got, 0.089) {
		t.Errorf("Jul 08:00 weekday: want 0.089, got %v", got)
	}
	if got := res.Resolution.EnergyWeekend[6][15]; !approxEqual(got, 0.089) {
		t.Errorf("Jul 15:00 weekend: want 0.089, got %v", got)
	}
	if len(res.Resolution.EnergyPeriods) != 2 {
		t.Errorf("expected 2 energy period rows, got %d", len(res.Resolution.EnergyPeriods))
	}
}

func TestGetResolution_SeasonalFlatDemand(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	res, err := svc.GetResolution(ctx, "sample-commercial-demand")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fd := res.Resolution.FlatDemand
	if fd[0] != 4.25 {
		t.Errorf("Jan flat demand: want 4.25, got %v", fd[0])
	}
	if fd[6] != 7.80 {
		t.Errorf("Jul flat demand: want 7.80, got %v", fd[6])
	}
}

func TestGetResolution_UnknownTariff(t *testing.T) {
	svc := NewService()
	if _, err := svc.GetResolution(context.Background(), "no-such-tariff"); err == nil {
		t.Fatalf("expected error for unknown tariff")
	}
}

func TestGetResolution_CachesSnapshot(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryWithTariffs(SampleDocs())
	svc := NewServiceWithStorage(st)

	first, err := svc.GetResolution(ctx, "sample-residential-tou")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap, err := st.GetResolutionSnapshot(ctx, "sample-residential-tou")
	if err != nil || snap == nil {
		t.Fatalf("expected snapshot to be written, err=%v", err)
	}

	// Second call must be served from the snapshot byte-for-byte.
	second, err := svc.GetResolution(ctx, "sample-residential-tou")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.ResolvedAt.Equal(first.ResolvedAt) {
		t.Errorf("expected cached resolution, got a fresh one")
	}
}

func TestRefreshResolution_DropsSnapshot(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryWithTariffs(SampleDocs())
	svc := NewServiceWithStorage(st)

	if _, err := svc.GetResolution(ctx, "sample-residential-tou"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Poison the snapshot; refresh must discard it, not serve it.
	if err := st.SaveResolutionSnapshot(ctx, storage.ResolutionSnapshot{
		TariffID: "sample-residential-tou",
		Payload:  []byte(`{"utility":"stale"}`),
	}); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	res, err := svc.RefreshResolution(ctx, "sample-residential-tou")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Utility != "Example Electric Cooperative" {
		t.Errorf("expected fresh resolution, got %q", res.Utility)
	}
}

func TestImportTariff_ItemsWrapper(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	svc := NewServiceWithStorage(st)

	payload := []byte(`{"items":[{
		"utility":"Metro Power",
		"name":"Residential Flat",
		"sector":"Residential",
		"energyratestructure":[[{"rate":0.11,"adj":0.01}]],
		"energyweekdayschedule":[[0,0],[0],[0],[0],[0],[0],[0],[0],[0],[0],[0],[0]]
	}]}`)

	doc, err := svc.ImportTariff(ctx, payload, "upload")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Utility != "Metro Power" {
		t.Errorf("unexpected utility: %q", doc.Utility)
	}
	if doc.ID == "" {
		t.Errorf("expected generated id")
	}

	res, err := svc.GetResolution(ctx, doc.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := res.Resolution.EnergyWeekday[0][0]; !approxEqual(got, 0.12) {
		t.Errorf("Jan 00: want 0.12, got %v", got)
	}
}

func TestImportTariff_Malformed(t *testing.T) {
	svc := NewServiceWithStorage(storage.NewMemory())
	if _, err := svc.ImportTariff(context.Background(), []byte(`{{`), "upload"); err == nil {
		t.Fatalf("expected error for malformed document")
	}
}

func TestImportTariff_NoStorage(t *testing.T) {
	svc := NewService()
	if _, err := svc.ImportTariff(context.Background(), []byte(`{}`), "upload"); err == nil {
		t.Fatalf("expected error without storage backend")
	}
}

func TestListTariffs_SampleMode(t *testing.T) {
	svc := NewService()
	list, err := svc.ListTariffs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 sample tariffs, got %d", len(list))
	}
}

func TestGetSample(t *testing.T) {
	s, ok := GetSample("sample-residential-tou")
	if !ok {
		t.Fatal("expected sample to exist")
	}
	if s.Record.Utility != "Example Electric Cooperative" {
		t.Errorf("unexpected utility: %q", s.Record.Utility)
	}
	doc, err := s.Doc()
	if err != nil {
		t.Fatalf("Doc: %v", err)
	}
	if doc.ID != "sample-residential-tou" || len(doc.Payload) == 0 {
		t.Errorf("unexpected doc: %+v", doc)
	}
	if _, ok := GetSample("no-such-sample"); ok {
		t.Error("expected miss for unknown id")
	}
}

func TestSampleDocs_PayloadDecodes(t *testing.T) {
	for _, doc := range SampleDocs() {
		var parsed map[string]interface{}
		if err := json.Unmarshal(doc.Payload, &parsed); err != nil {
			t.Errorf("sample %s payload is not valid JSON: %v", doc.ID, err)
		}
	}
}

package storage

import (
	"context"
	"testing"
)

func TestNewMemoryWithTariffs_PreloadsTariffs(t *testing.T) {
	ctx := context.Background()
	doc := TariffDoc{
		ID:      "sample-tou",
		Utility: "Example Electric Cooperative",
		Name:    "Residential TOU",
		Sector:  "Residential",
		Payload: []byte(`{"utility":"Example Electric Cooperative"}`),
	}

	m := NewMemoryWithTariffs([]TariffDoc{doc})
	defer m.Close()

	list, err := m.ListTariffs(ctx)
	if err != nil {
		t.Fatalf("ListTariffs failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 tariff, got %d", len(list))
	}
	if list[0].ID != doc.ID || list[0].Name != doc.Name {
		t.Fatalf("tariff mismatch: want %+v got %+v", doc, list[0])
	}
	if list[0].UpdatedAt.IsZero() {
		t.Errorf("expected UpdatedAt to be stamped")
	}
}

func TestMemorySnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	if snap, err := m.GetResolutionSnapshot(ctx, "missing"); err != nil || snap != nil {
		t.Fatalf("expected nil snapshot for unknown tariff, got %+v err=%v", snap, err)
	}

	if err := m.SaveResolutionSnapshot(ctx, ResolutionSnapshot{
		TariffID: "sample-tou",
		Payload:  []byte(`{"flat_demand":[0,0,0,0,0,0,0,0,0,0,0,0]}`),
	}); err != nil {
		t.Fatalf("SaveResolutionSnapshot failed: %v", err)
	}

	snap, err := m.GetResolutionSnapshot(ctx, "sample-tou")
	if err != nil {
		t.Fatalf("GetResolutionSnapshot failed: %v", err)
	}
	if snap == nil || len(snap.Payload) == 0 {
		t.Fatalf("expected stored snapshot payload")
	}
	if snap.ResolvedAt.IsZero() {
		t.Errorf("expected ResolvedAt to be stamped")
	}

	if err := m.DeleteResolutionSnapshots(ctx, "sample-tou"); err != nil {
		t.Fatalf("DeleteResolutionSnapshots failed: %v", err)
	}
	if snap, _ := m.GetResolutionSnapshot(ctx, "sample-tou"); snap != nil {
		t.Fatalf("expected snapshot to be gone")
	}
}

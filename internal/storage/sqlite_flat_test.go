package storage

import (
	"context"
	"testing"
)

// Both SQLite backends must share the single "sqlite" database/sql driver
// the glebarez fork registers. Linking a second registration of the same
// name panics at init, so opening both in one process is the guard.
func TestSQLiteBackendsCoexist(t *testing.T) {
	ctx := context.Background()

	flat, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer flat.Close()
	if err := flat.Migrate(ctx); err != nil {
		t.Fatalf("flat migrate: %v", err)
	}

	gorm, err := NewGormStorage("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("NewGormStorage: %v", err)
	}
	defer gorm.Close()
	if err := gorm.Migrate(ctx); err != nil {
		t.Fatalf("gorm migrate: %v", err)
	}

	doc := TariffDoc{
		ID:      "coexist-check",
		Utility: "Example Electric Cooperative",
		Name:    "Residential TOU",
		Payload: []byte(`{"utility":"Example Electric Cooperative"}`),
	}
	if err := flat.UpsertTariff(ctx, doc); err != nil {
		t.Fatalf("flat UpsertTariff: %v", err)
	}
	if err := gorm.UpsertTariff(ctx, doc); err != nil {
		t.Fatalf("gorm UpsertTariff: %v", err)
	}

	got, err := flat.GetTariff(ctx, doc.ID)
	if err != nil || got == nil {
		t.Fatalf("flat GetTariff: %+v err=%v", got, err)
	}
	if got.Utility != doc.Utility {
		t.Errorf("flat utility: got %q", got.Utility)
	}
}

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bher20/tariffmatrix/internal/storage"
	"github.com/bher20/tariffmatrix/internal/tariff"
	"github.com/google/uuid"
)

// Service coordinates tariff documents and their cached resolutions.
type Service struct {
	store storage.Storage // may be nil for sample-only mode
}

// NewService returns a Service with no persistence: only the built-in
// samples are resolvable, and nothing is cached.
func NewService() *Service {
	return &Service{}
}

// NewServiceWithStorage returns a Service that reads tariff documents from
// the provided storage backend and caches resolution snapshots there.
func NewServiceWithStorage(st storage.Storage) *Service {
	return &Service{store: st}
}

// GetResolution returns the resolved matrices, flat-demand vector, and
// period summaries for a tariff. It consults persistent storage first; on
// cache miss (or a snapshot older than the document) it decodes the stored
// document, resolves it, and writes a new snapshot best-effort.
func (s *Service) GetResolution(ctx context.Context, id string) (*ResolutionResponse, error) {
	doc, err := s.lookupDoc(ctx, id)
	if err != nil {
		return nil, err
	}

	// Snapshot-first: a cached resolution newer than the document wins.
	if s.store != nil {
		snap, err := s.store.GetResolutionSnapshot(ctx, id)
		if err == nil && snap != nil && len(snap.Payload) > 0 && !snap.ResolvedAt.Before(doc.UpdatedAt) {
			var resp ResolutionResponse
			if err := json.Unmarshal(snap.Payload, &resp); err == nil {
				return &resp, nil
			}
			// If unmarshal fails, fall through to re-resolve.
		}
	}

	return s.resolveDoc(ctx, doc)
}

// RefreshResolution drops any cached snapshot for the tariff and resolves it
// fresh. Used by the batch worker and the refresh endpoint.
func (s *Service) RefreshResolution(ctx context.Context, id string) (*ResolutionResponse, error) {
	doc, err := s.lookupDoc(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.store != nil {
		if err := s.store.DeleteResolutionSnapshots(ctx, id); err != nil {
			return nil, fmt.Errorf("drop snapshots for %s: %w", id, err)
		}
	}
	return s.resolveDoc(ctx, doc)
}

// ImportTariff decodes a URDB JSON document (unwrapping an "items" list if
// present), assigns it an id, and persists it. The stored payload is the
// normalized single-record form.
func (s *Service) ImportTariff(ctx context.Context, data []byte, source string) (*storage.TariffDoc, error) {
	if s.store == nil {
		return nil, fmt.Errorf("no storage backend configured")
	}

	rec, err := tariff.DecodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("decode tariff document: %w", err)
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode tariff record: %w", err)
	}

	doc := storage.TariffDoc{
		ID:        uuid.New().String(),
		Utility:   rec.DisplayUtility(),
		Name:      rec.DisplayName(),
		Sector:    rec.DisplaySector(),
		Source:    source,
		Payload:   payload,
		UpdatedAt: time.Now(),
	}
	if err := s.store.UpsertTariff(ctx, doc); err != nil {
		return nil, fmt.Errorf("store tariff: %w", err)
	}
	return &doc, nil
}

// DeleteTariff removes a stored tariff and its snapshots.
func (s *Service) DeleteTariff(ctx context.Context, id string) error {
	if s.store == nil {
		return fmt.Errorf("no storage backend configured")
	}
	return s.store.DeleteTariff(ctx, id)
}

// ListTariffs returns the catalog listing: stored documents when a backend
// is configured, otherwise the built-in samples.
func (s *Service) ListTariffs(ctx context.Context) ([]TariffSummary, error) {
	if s.store == nil {
		var out []TariffSummary
		for _, doc := range SampleDocs() {
			out = append(out, TariffSummary{
				ID:        doc.ID,
				Utility:   doc.Utility,
				Name:      doc.Name,
				Sector:    doc.Sector,
				Source:    doc.Source,
				UpdatedAt: doc.UpdatedAt,
			})
		}
		return out, nil
	}

	docs, err := s.store.ListTariffs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TariffSummary, 0, len(docs))
	for _, doc := range docs {
		out = append(out, TariffSummary{
			ID:        doc.ID,
			Utility:   doc.Utility,
			Name:      doc.Name,
			Sector:    doc.Sector,
			Source:    doc.Source,
			UpdatedAt: doc.UpdatedAt,
		})
	}
	return out, nil
}

// GetTariffDoc returns the stored raw document for a tariff.
func (s *Service) GetTariffDoc(ctx context.Context, id string) (*storage.TariffDoc, error) {
	return s.lookupDoc(ctx, id)
}

// lookupDoc finds a stored document by id, falling back to the built-in
// samples so a fresh deployment always has something to serve.
func (s *Service) lookupDoc(ctx context.Context, id string) (*storage.TariffDoc, error) {
	if s.store != nil {
		doc, err := s.store.GetTariff(ctx, id)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			return doc, nil
		}
	}
	if sample, ok := GetSample(id); ok {
		doc, err := sample.Doc()
		if err == nil {
			return &doc, nil
		}
	}
	return nil, fmt.Errorf("unknown tariff: %s", id)
}

// resolveDoc decodes the document payload, resolves it, and writes the
// snapshot back best-effort.
func (s *Service) resolveDoc(ctx context.Context, doc *storage.TariffDoc) (*ResolutionResponse, error) {
	rec, err := tariff.DecodeDocument(doc.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode stored tariff %s: %w", doc.ID, err)
	}

	resp := &ResolutionResponse{
		ID:          doc.ID,
		Utility:     rec.DisplayUtility(),
		Name:        rec.DisplayName(),
		Sector:      rec.DisplaySector(),
		Description: rec.DisplayDescription(),
		Source:      doc.Source,
		ResolvedAt:  time.Now(),
		Resolution:  tariff.Resolve(rec),
	}

	if s.store != nil {
		if payload, err := json.Marshal(resp); err == nil {
			_ = s.store.SaveResolutionSnapshot(ctx, storage.ResolutionSnapshot{
				TariffID:   doc.ID,
				Payload:    payload,
				ResolvedAt: resp.ResolvedAt,
			})
		}
	}

	return resp, nil
}

package pipeline

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"path"
	"time"

	"tezbuild/internal"
	"tezbuild/internal/blob"
	"tezbuild/internal/pricing"
	"tezbuild/internal/refdata"
	"tezbuild/internal/storage"
)

// IngestService drives one upload invocation end to end: request
// validation, optional purge, per-row normalization and batched writes.
type IngestService struct {
	db         *storage.DB
	blobs      blob.Store
	normalizer *Normalizer
	keyPrefix  string
}

func NewIngestService(db *storage.DB, blobs blob.Store, tables *refdata.Tables, reg pricing.Registry, keyPrefix string) *IngestService {
	return &IngestService{
		db:         db,
		blobs:      blobs,
		normalizer: NewNormalizer(tables, reg),
		keyPrefix:  keyPrefix,
	}
}

// Ingest reads "{key}.csv" from the blob store and loads it. A row-level
// failure never aborts the batch; an invalid request aborts before any
// store I/O. The returned error covers infrastructure failures only.
func (s *IngestService) Ingest(req internal.IngestRequest) (internal.IngestResult, error) {
	if fatal, ok := s.validate(req); !ok {
		return fatal, nil
	}

	key := path.Join(s.keyPrefix, req.Key+".csv")
	data, err := s.blobs.Get(key)
	if err != nil {
		return internal.IngestResult{}, err
	}
	rows, err := ParseCSVRows(data)
	if err != nil {
		return internal.IngestResult{}, fmt.Errorf("parse %s: %w", key, err)
	}

	return s.ingest(req, rows, 0)
}

// IngestRows loads rows that were already extracted, e.g. from a mailed
// price list.
func (s *IngestService) IngestRows(req internal.IngestRequest, rows []internal.RawRow, priceListID int) (internal.IngestResult, error) {
	if fatal, ok := s.validate(req); !ok {
		return fatal, nil
	}
	return s.ingest(req, rows, priceListID)
}

func (s *IngestService) validate(req internal.IngestRequest) (internal.IngestResult, bool) {
	if !internal.KnownSupplier(req.SupplierID) {
		return internal.IngestResult{StatusCode: http.StatusBadRequest, Message: "Invalid supplierId"}, false
	}
	if req.Category != "" && !internal.KnownCategory(req.Category) {
		return internal.IngestResult{StatusCode: http.StatusBadRequest, Message: "Invalid global category"}, false
	}
	return internal.IngestResult{}, true
}

func (s *IngestService) ingest(req internal.IngestRequest, rows []internal.RawRow, priceListID int) (internal.IngestResult, error) {
	start := time.Now()

	// Purge is unconditional and irreversible; it runs before any write so
	// the fresh batch fully replaces the prior one.
	if req.ClearSupplier {
		deleted, err := s.db.DeleteFacilityProducts(req.SupplierID, "")
		if err != nil {
			return internal.IngestResult{}, err
		}
		fmt.Printf("purged %d items for facility %s\n", deleted, req.SupplierID)
	} else if req.ClearCategory && req.Category != "" {
		deleted, err := s.db.DeleteFacilityProducts(req.SupplierID, req.Category)
		if err != nil {
			return internal.IngestResult{}, err
		}
		fmt.Printf("purged %d %s items for facility %s\n", deleted, req.Category, req.SupplierID)
	}

	var accepted []internal.Product
	var rejected []internal.RawRow
	for _, row := range rows {
		category := req.Category
		if override, ok := row["category"]; ok {
			category = internal.Category(override)
		}

		product, err := s.normalizer.Normalize(category, row, req.SupplierID)
		if err != nil {
			rejected = append(rejected, row.Reject(err.Error()))
			continue
		}
		accepted = append(accepted, *product)
	}

	if err := s.db.PutProducts(accepted); err != nil {
		return internal.IngestResult{}, err
	}

	_ = s.db.InsertRun(traceID(), priceListID, req.SupplierID,
		map[string]int{"rows": len(rows), "accepted": len(accepted), "rejected": len(rejected)},
		map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())})
	_ = s.db.SetMetadata("ingest.last."+req.SupplierID, time.Now().UTC().Format(time.RFC3339))

	message := "Upload successful!"
	if len(rejected) > 0 {
		message = fmt.Sprintf("Upload completed with %d rejected items", len(rejected))
	}

	return internal.IngestResult{
		StatusCode: http.StatusOK,
		Message:    message,
		Accepted:   len(accepted),
		Rejected:   rejected,
	}, nil
}

func traceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

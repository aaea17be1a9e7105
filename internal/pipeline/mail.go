package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tezbuild/internal"
	"tezbuild/internal/storage"
)

// Price-list mail statuses.
const (
	MailStatusFetched  = "fetched"
	MailStatusIngested = "ingested"
	MailStatusSkipped  = "skipped"
	MailStatusFailed   = "failed"
)

// MailService turns fetched supplier emails into catalog loads: detect a
// price list, extract its rows, resolve the supplier from the sender and
// hand the rows to the ingestion orchestrator.
type MailService struct {
	db        *storage.DB
	ingest    *IngestService
	senders   map[string]string
	outputDir string
}

func NewMailService(db *storage.DB, ingest *IngestService, senders map[string]string, outputDir string) *MailService {
	return &MailService{db: db, ingest: ingest, senders: senders, outputDir: outputDir}
}

type MailProcessResult struct {
	MailID   int
	Status   string
	Accepted int
	Rejected int
}

// ProcessPending works through fetched price-list mails oldest first.
// A mail that fails keeps the batch going.
func (s *MailService) ProcessPending(limit int, provider string) ([]MailProcessResult, error) {
	pending, err := s.db.ListPriceListsByStatus(MailStatusFetched, limit)
	if err != nil {
		return nil, err
	}

	var out []MailProcessResult
	for _, mail := range pending {
		if provider != "" && mail.Provider != provider {
			continue
		}
		res, err := s.ProcessMail(mail)
		if err != nil {
			fmt.Printf("mail %d failed: %v\n", mail.ID, err)
			_ = s.db.UpdatePriceListStatus(mail.ID, MailStatusFailed)
			out = append(out, MailProcessResult{MailID: mail.ID, Status: MailStatusFailed})
			continue
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *MailService) ProcessByProviderMessageID(provider, messageID string) (MailProcessResult, error) {
	mail, err := s.db.GetPriceList(provider, messageID)
	if err != nil {
		return MailProcessResult{}, err
	}
	if mail == nil {
		return MailProcessResult{}, fmt.Errorf("price list mail not found: provider=%s messageId=%s", provider, messageID)
	}
	return s.ProcessMail(*mail)
}

func (s *MailService) ProcessMail(mail internal.PriceListMail) (MailProcessResult, error) {
	raw, err := os.ReadFile(mail.RawRef)
	if err != nil {
		return MailProcessResult{}, err
	}

	rows, subject, text, attachments, err := ExtractRowsFromEmailRaw(raw)
	if err != nil {
		return MailProcessResult{}, err
	}

	detect := DetectPriceList(firstNonEmpty(subject, mail.Subject), text, attachments)
	supplierID := firstNonEmpty(mail.SupplierID, s.resolveSupplier(mail.Sender))

	if !detect.IsPriceList || supplierID == "" || len(rows) == 0 {
		if err := s.db.UpdatePriceListStatus(mail.ID, MailStatusSkipped); err != nil {
			return MailProcessResult{}, err
		}
		return MailProcessResult{MailID: mail.ID, Status: MailStatusSkipped}, nil
	}

	// Mailed lists carry a category column per row, so no request-level
	// category or purge; a destructive reload stays an explicit CLI action.
	result, err := s.ingest.IngestRows(internal.IngestRequest{SupplierID: supplierID}, rows, mail.ID)
	if err != nil {
		return MailProcessResult{}, err
	}
	if result.StatusCode != 200 {
		_ = s.db.UpdatePriceListStatus(mail.ID, MailStatusFailed)
		return MailProcessResult{MailID: mail.ID, Status: MailStatusFailed}, nil
	}

	if len(result.Rejected) > 0 && s.outputDir != "" {
		name := fmt.Sprintf("%d_rejects_%s.xlsx", mail.ID, time.Now().UTC().Format("20060102T150405"))
		if err := ExportRejectsToXLSX(result.Rejected, filepath.Join(s.outputDir, "rejects", name)); err != nil {
			fmt.Printf("reject report for mail %d failed: %v\n", mail.ID, err)
		}
	}

	if err := s.db.UpdatePriceListStatus(mail.ID, MailStatusIngested); err != nil {
		return MailProcessResult{}, err
	}
	return MailProcessResult{
		MailID:   mail.ID,
		Status:   MailStatusIngested,
		Accepted: result.Accepted,
		Rejected: len(result.Rejected),
	}, nil
}

// resolveSupplier matches the sender address against the configured
// per-supplier sender fragments.
func (s *MailService) resolveSupplier(sender string) string {
	sender = strings.ToLower(sender)
	for supplierID, fragment := range s.senders {
		if fragment != "" && strings.Contains(sender, fragment) {
			return supplierID
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

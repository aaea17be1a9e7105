package listener

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tezbuild/internal/blob"
	"tezbuild/internal/config"
	"tezbuild/internal/connectors"
	gmailconnector "tezbuild/internal/connectors/gmail"
	imapconnector "tezbuild/internal/connectors/imap"
	"tezbuild/internal/pipeline"
	"tezbuild/internal/pricing"
	"tezbuild/internal/refdata"
	"tezbuild/internal/storage"
)

// Service polls a supplier inbox and runs each cycle end to end: fetch new
// mail, then ingest every fetched price list into the catalog.
type Service struct {
	db  *storage.DB
	cfg config.Config
}

func NewService(db *storage.DB, cfg config.Config) *Service {
	return &Service{db: db, cfg: cfg}
}

func (s *Service) Run(ctx context.Context) error {
	for {
		if err := s.runCycle(); err != nil {
			fmt.Printf("listener cycle error: %v\n", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.MailListenerIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle() error {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	mailConnector, err := s.makeConnector(provider)
	if err != nil {
		return err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, s.cfg.SupplierSenders, mailConnector)
	fetchResult, err := fetchService.FetchAndStore(s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return err
	}

	outputDir := ""
	if s.cfg.MailListenerAutoReport {
		outputDir = s.cfg.OutputDir
	}

	ingest := pipeline.NewIngestService(s.db, blob.NewLocalStore(s.cfg.UploadDir), refdata.Default(), pricing.DefaultRegistry(), s.cfg.UploadKeyPrefix)
	mailService := pipeline.NewMailService(s.db, ingest, s.cfg.SupplierSenders, outputDir)
	results, err := mailService.ProcessPending(s.cfg.MailListenerBatch, provider)
	if err != nil {
		return err
	}

	ingested := 0
	for _, r := range results {
		if r.Status == pipeline.MailStatusIngested {
			ingested++
		}
	}

	fmt.Printf("listener cycle done provider=%s fetched=%d stored=%d processed=%d ingested=%d\n",
		provider, fetchResult.Fetched, fetchResult.Stored, len(results), ingested)
	return nil
}

func (s *Service) makeConnector(provider string) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(s.cfg)
	case "imap":
		return imapconnector.NewConnector(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}

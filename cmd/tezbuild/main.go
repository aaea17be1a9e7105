package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"tezbuild/internal"
	"tezbuild/internal/blob"
	"tezbuild/internal/config"
	"tezbuild/internal/connectors"
	gmailconnector "tezbuild/internal/connectors/gmail"
	imapconnector "tezbuild/internal/connectors/imap"
	"tezbuild/internal/listener"
	"tezbuild/internal/pipeline"
	"tezbuild/internal/pricing"
	"tezbuild/internal/refdata"
	"tezbuild/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()
	db.SetWriteBatching(cfg.WriteBatchSize, cfg.WriteRetries, time.Duration(cfg.WriteBackoffMs)*time.Millisecond)

	cmd := os.Args[1]
	switch cmd {
	case "upload":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		supplier := fs.String("supplier", "", "supplier id (RRT|BX_YL|GS_PSK)")
		key := fs.String("key", "", "upload key, resolved as {prefix}/{key}.csv under the upload dir")
		category := fs.String("category", "", "global category (lumber|sheet_good), optional when rows carry one")
		clearCategory := fs.Bool("clear-category", false, "purge the supplier's items in --category before loading")
		clearSupplier := fs.Bool("clear-supplier", false, "purge all of the supplier's items before loading")
		rejectsOut := fs.String("rejects-out", "", "write rejected rows to this xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*supplier) == "" || strings.TrimSpace(*key) == "" {
			must(fmt.Errorf("--supplier and --key are required"))
		}

		svc := newIngestService(db, cfg)
		result, err := svc.Ingest(internal.IngestRequest{
			SupplierID:    *supplier,
			Category:      internal.Category(*category),
			Key:           *key,
			ClearCategory: *clearCategory,
			ClearSupplier: *clearSupplier,
		})
		must(err)

		fmt.Printf("[%d] %s (accepted=%d rejected=%d)\n", result.StatusCode, result.Message, result.Accepted, len(result.Rejected))
		if len(result.Rejected) > 0 && strings.TrimSpace(*rejectsOut) != "" {
			must(pipeline.ExportRejectsToXLSX(result.Rejected, *rejectsOut))
			fmt.Printf("rejected rows written to %s\n", *rejectsOut)
		}
		if result.StatusCode != 200 {
			os.Exit(1)
		}
	case "purge":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		supplier := fs.String("supplier", "", "supplier id")
		category := fs.String("category", "", "restrict the purge to one category")
		_ = fs.Parse(os.Args[2:])
		if !internal.KnownSupplier(*supplier) {
			must(fmt.Errorf("unknown supplier: %q", *supplier))
		}
		if *category != "" && !internal.KnownCategory(internal.Category(*category)) {
			must(fmt.Errorf("unknown category: %q", *category))
		}
		deleted, err := db.DeleteFacilityProducts(*supplier, internal.Category(*category))
		must(err)
		fmt.Printf("purged %d items\n", deleted)
	case "product:get":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		uniqueID := fs.String("uniqueId", "", "supplier-scoped unique id, e.g. RRT#1a2b3c4d5e")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*uniqueID) == "" {
			must(fmt.Errorf("--uniqueId is required"))
		}
		product, err := db.GetProduct(internal.ItemTypeProduct, *uniqueID)
		must(err)
		if product == nil {
			must(fmt.Errorf("product not found: %s", *uniqueID))
		}
		printProducts([]internal.Product{*product})
	case "product:query":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		sku := fs.String("sku", "", "content hash to look up across suppliers")
		facility := fs.String("facility", "", "supplier id to list")
		category := fs.String("category", "", "category to page through")
		filters := fs.String("filters", "", "attribute filters, e.g. \"Species=Southern Yellow Pine;Grade=No.2\"")
		limit := fs.Int("limit", 50, "page size for category queries")
		token := fs.String("token", "", "pagination token from the previous page")
		_ = fs.Parse(os.Args[2:])

		switch {
		case strings.TrimSpace(*sku) != "":
			products, err := db.QueryBySKU(*sku)
			must(err)
			printProducts(products)
		case strings.TrimSpace(*facility) != "":
			products, err := db.QueryByFacility(*facility, internal.Category(*category))
			must(err)
			printProducts(products)
		case strings.TrimSpace(*category) != "":
			page, err := db.QueryByCategory(internal.Category(*category), parseFilters(*filters), *limit, *token)
			must(err)
			printProducts(page.Items)
			if page.NextToken != "" {
				fmt.Printf("next token: %s\n", page.NextToken)
			}
		default:
			must(fmt.Errorf("one of --sku, --facility or --category is required"))
		}
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "gmail|imap")
		label := fs.String("label", cfg.MailListenerLabel, "mailbox/label")
		max := fs.Int("max", cfg.MailListenerFetchMax, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := makeConnector(cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawMailDir, cfg.SupplierSenders, conn)
		result, err := fetch.FetchAndStore(*label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d\n", *provider, result.Fetched, result.Stored)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "", "restrict to one provider")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", cfg.MailListenerBatch, "batch size")
		_ = fs.Parse(os.Args[2:])

		mailService := pipeline.NewMailService(db, newIngestService(db, cfg), cfg.SupplierSenders, cfg.OutputDir)
		if strings.TrimSpace(*messageID) != "" {
			res, err := mailService.ProcessByProviderMessageID(*provider, *messageID)
			must(err)
			fmt.Printf("mail %d %s accepted=%d rejected=%d\n", res.MailID, res.Status, res.Accepted, res.Rejected)
			return
		}
		results, err := mailService.ProcessPending(*batch, *provider)
		must(err)
		for _, res := range results {
			fmt.Printf("mail %d %s accepted=%d rejected=%d\n", res.MailID, res.Status, res.Accepted, res.Rejected)
		}
	case "mail:listen":
		s := listener.NewService(db, cfg)
		must(s.Run(context.Background()))
	default:
		usage()
		os.Exit(1)
	}
}

func newIngestService(db *storage.DB, cfg config.Config) *pipeline.IngestService {
	return pipeline.NewIngestService(db, blob.NewLocalStore(cfg.UploadDir), refdata.Default(), pricing.DefaultRegistry(), cfg.UploadKeyPrefix)
}

// printProducts renders catalog records with the internal cost schedule
// stripped, matching what buyers are allowed to see.
func printProducts(products []internal.Product) {
	for _, p := range products {
		p.Costs = nil
		out, err := json.MarshalIndent(p, "", "  ")
		must(err)
		fmt.Println(string(out))
	}
	fmt.Printf("%d products\n", len(products))
}

func parseFilters(raw string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		out[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return out
}

func makeConnector(cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func usage() {
	fmt.Println("usage: tezbuild <command>")
	fmt.Println("commands:")
	fmt.Println("  upload --supplier=RRT --key=prices-2024 [--category=lumber] [--clear-category] [--clear-supplier] [--rejects-out=./rejects.xlsx]")
	fmt.Println("  purge --supplier=RRT [--category=lumber]")
	fmt.Println("  product:get --uniqueId=RRT#1a2b3c4d5e")
	fmt.Println("  product:query --sku=... | --facility=RRT [--category=lumber] | --category=lumber [--filters=\"Grade=No.2\"] [--limit=50] [--token=...]")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=20")
	fmt.Println("  mail:process [--provider=gmail|imap] [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

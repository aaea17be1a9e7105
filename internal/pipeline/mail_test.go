package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"tezbuild/internal"
	"tezbuild/internal/blob"
	"tezbuild/internal/pricing"
	"tezbuild/internal/refdata"
	"tezbuild/internal/storage"
)

func rawPriceListMail(subject, from, csv string) []byte {
	return []byte("From: " + from + "\r\n" +
		"To: purchasing@example.com\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=\"xyz\"\r\n" +
		"\r\n" +
		"--xyz\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"Prices attached.\r\n" +
		"--xyz\r\n" +
		"Content-Type: text/csv\r\n" +
		"Content-Disposition: attachment; filename=\"prices.csv\"\r\n" +
		"\r\n" +
		csv +
		"--xyz--\r\n")
}

func newTestMailService(t *testing.T) (*MailService, *storage.DB, string) {
	t.Helper()
	dir := t.TempDir()

	db, err := storage.Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	ingest := NewIngestService(db, blob.NewLocalStore(filepath.Join(dir, "uploads")), refdata.Default(), pricing.DefaultRegistry(), "admin/productupload")
	senders := map[string]string{"RRT": "rrtimber.com"}
	svc := NewMailService(db, ingest, senders, filepath.Join(dir, "out"))
	return svc, db, dir
}

func storeTestMail(t *testing.T, db *storage.DB, dir, messageID, subject, from string, raw []byte) internal.PriceListMail {
	t.Helper()
	rawPath := filepath.Join(dir, messageID+".eml")
	if err := os.WriteFile(rawPath, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	mail, err := db.UpsertPriceList("gmail", messageID, subject, from, "", "2026-08-24T10:00:00Z", "hash", rawPath, "fetched")
	if err != nil {
		t.Fatal(err)
	}
	return mail
}

func TestProcessMailIngestsPriceList(t *testing.T) {
	svc, db, dir := newTestMailService(t)

	csv := "category,profile,length,grade,species,basePrice,inventory\r\n" +
		"lumber,2x4,96,No.2,Southern Yellow Pine,0.45,1200\r\n" +
		"lumber,2x4,96,No.2,Balsa,0.45,10\r\n"
	raw := rawPriceListMail("Weekly price list", "inventory@rrtimber.com", csv)
	storeTestMail(t, db, dir, "<m1@rrt>", "Weekly price list", "inventory@rrtimber.com", raw)

	results, err := svc.ProcessPending(10, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %+v", results)
	}
	res := results[0]
	if res.Status != MailStatusIngested || res.Accepted != 1 || res.Rejected != 1 {
		t.Fatalf("result = %+v", res)
	}

	products, err := db.QueryByFacility("RRT", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(products) != 1 {
		t.Fatalf("products = %d", len(products))
	}

	mail, err := db.GetPriceList("gmail", "<m1@rrt>")
	if err != nil {
		t.Fatal(err)
	}
	if mail.Status != MailStatusIngested {
		t.Fatalf("status = %q", mail.Status)
	}

	// One rejected row means a report lands under out/rejects.
	entries, err := os.ReadDir(filepath.Join(dir, "out", "rejects"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("reject report missing: %v %v", entries, err)
	}
}

func TestProcessMailSkipsUnknownSender(t *testing.T) {
	svc, db, dir := newTestMailService(t)

	csv := "category,profile,length,grade,species,basePrice\r\n" +
		"lumber,2x4,96,No.2,Southern Yellow Pine,0.45\r\n"
	raw := rawPriceListMail("Weekly price list", "bob@example.com", csv)
	storeTestMail(t, db, dir, "<m2@other>", "Weekly price list", "bob@example.com", raw)

	results, err := svc.ProcessPending(10, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Status != MailStatusSkipped {
		t.Fatalf("results = %+v", results)
	}

	products, err := db.QueryByFacility("RRT", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(products) != 0 {
		t.Fatalf("products = %d", len(products))
	}
}

func TestProcessMailSkipsNonPriceList(t *testing.T) {
	svc, db, dir := newTestMailService(t)

	raw := []byte("From: inventory@rrtimber.com\r\n" +
		"Subject: lunch on friday?\r\n" +
		"\r\n" +
		"see you there\r\n")
	storeTestMail(t, db, dir, "<m3@rrt>", "lunch on friday?", "inventory@rrtimber.com", raw)

	results, err := svc.ProcessPending(10, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Status != MailStatusSkipped {
		t.Fatalf("results = %+v", results)
	}
}

func TestProcessMailFailureKeepsBatchGoing(t *testing.T) {
	svc, db, dir := newTestMailService(t)

	// Raw file missing on disk: the mail fails, the next one still runs.
	if _, err := db.UpsertPriceList("gmail", "<gone@rrt>", "Weekly price list", "inventory@rrtimber.com", "",
		"2026-08-24T09:00:00Z", "hash", filepath.Join(dir, "missing.eml"), "fetched"); err != nil {
		t.Fatal(err)
	}
	csv := "category,profile,length,grade,species,basePrice,inventory\r\n" +
		"lumber,2x4,96,No.2,Southern Yellow Pine,0.45,1200\r\n"
	raw := rawPriceListMail("Weekly price list", "inventory@rrtimber.com", csv)
	storeTestMail(t, db, dir, "<m4@rrt>", "Weekly price list", "inventory@rrtimber.com", raw)

	results, err := svc.ProcessPending(10, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}

	byStatus := map[string]int{}
	for _, r := range results {
		byStatus[r.Status]++
	}
	if byStatus[MailStatusFailed] != 1 || byStatus[MailStatusIngested] != 1 {
		t.Fatalf("statuses = %v", byStatus)
	}

	gone, err := db.GetPriceList("gmail", "<gone@rrt>")
	if err != nil {
		t.Fatal(err)
	}
	if gone.Status != MailStatusFailed {
		t.Fatalf("status = %q", gone.Status)
	}
}

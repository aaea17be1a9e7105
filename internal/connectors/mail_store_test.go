package connectors

import (
	"os"
	"path/filepath"
	"testing"

	"tezbuild/internal"
	"tezbuild/internal/storage"
)

func newTestStore(t *testing.T) (*MailStoreService, string) {
	t.Helper()
	dir := t.TempDir()

	db, err := storage.Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	rawDir := filepath.Join(dir, "raw")
	return NewMailStoreService(db, rawDir, map[string]string{"RRT": "rrtimber.com"}), rawDir
}

func TestMailStoreContentAddressed(t *testing.T) {
	store, rawDir := newTestStore(t)

	msg := internal.InboundMail{
		Provider:   "gmail",
		MessageID:  "<m1@rrt>",
		Subject:    "Weekly price list",
		From:       "Inventory Desk <inventory@rrtimber.com>",
		ReceivedAt: "2026-08-24T10:00:00Z",
		Raw:        []byte("From: inventory@rrtimber.com\r\n\r\nbody\r\n"),
	}

	mail, err := store.Store(msg)
	if err != nil {
		t.Fatal(err)
	}
	if mail.SupplierID != "RRT" {
		t.Fatalf("supplier = %q", mail.SupplierID)
	}
	if mail.Status != "fetched" {
		t.Fatalf("status = %q", mail.Status)
	}
	if filepath.Dir(mail.RawRef) != rawDir || filepath.Base(mail.RawRef) != mail.Hash+".eml" {
		t.Fatalf("rawRef = %q hash = %q", mail.RawRef, mail.Hash)
	}

	data, err := os.ReadFile(mail.RawRef)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(msg.Raw) {
		t.Fatal("raw content mismatch")
	}

	// Same message fetched again: same row, same file.
	again, err := store.Store(msg)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != mail.ID || again.Hash != mail.Hash {
		t.Fatalf("again = %+v", again)
	}
	entries, err := os.ReadDir(rawDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("raw files = %d", len(entries))
	}
}

func TestMailStoreUnknownSender(t *testing.T) {
	store, _ := newTestStore(t)

	mail, err := store.Store(internal.InboundMail{
		Provider:  "imap",
		MessageID: "imap-7",
		From:      "bob@example.com",
		Raw:       []byte("hello"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if mail.SupplierID != "" {
		t.Fatalf("supplier = %q", mail.SupplierID)
	}
}

package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"tezbuild/internal"
	"tezbuild/internal/storage"
)

// MailStoreService persists fetched price-list mails: the raw message is
// written content-addressed to disk and the metadata row records which
// supplier the sender maps to, if any.
type MailStoreService struct {
	db         *storage.DB
	rawMailDir string
	senders    map[string]string
}

func NewMailStoreService(db *storage.DB, rawMailDir string, senders map[string]string) *MailStoreService {
	return &MailStoreService{db: db, rawMailDir: rawMailDir, senders: senders}
}

func (s *MailStoreService) Store(msg internal.InboundMail) (internal.PriceListMail, error) {
	digest := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(digest[:])

	if err := os.MkdirAll(s.rawMailDir, 0o755); err != nil {
		return internal.PriceListMail{}, err
	}

	rawPath := filepath.Join(s.rawMailDir, hash+".eml")
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, msg.Raw, 0o644); err != nil {
			return internal.PriceListMail{}, err
		}
	}

	supplierID := s.supplierFor(msg.From)
	return s.db.UpsertPriceList(msg.Provider, msg.MessageID, msg.Subject, msg.From, supplierID, msg.ReceivedAt, hash, rawPath, "fetched")
}

func (s *MailStoreService) supplierFor(sender string) string {
	sender = strings.ToLower(sender)
	for supplierID, fragment := range s.senders {
		if fragment != "" && strings.Contains(sender, fragment) {
			return supplierID
		}
	}
	return ""
}

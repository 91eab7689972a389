package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"quoteflow/internal"
	"quoteflow/internal/storage"
)

// MailStoreService keeps raw messages on disk, content-addressed by SHA-256,
// next to an email row in storage.
type MailStoreService struct {
	db         *storage.DB
	rawMailDir string
}

func NewMailStoreService(db *storage.DB, rawMailDir string) *MailStoreService {
	return &MailStoreService{db: db, rawMailDir: rawMailDir}
}

// Store upserts the email row and reports whether the message was new.
// Re-fetching a known message keeps its processing status.
func (s *MailStoreService) Store(msg internal.FetchedMailMessage) (internal.EmailRow, bool, error) {
	existing, err := s.db.GetEmailByProviderMessageID(msg.Provider, msg.MessageID)
	if err != nil {
		return internal.EmailRow{}, false, err
	}

	sum := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(sum[:])
	rawPath, err := s.writeRaw(hash, msg.Raw)
	if err != nil {
		return internal.EmailRow{}, false, err
	}

	row, err := s.db.UpsertEmail(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, rawPath, storage.StatusFetched)
	if err != nil {
		return internal.EmailRow{}, false, err
	}
	return row, existing == nil, nil
}

// writeRaw goes through a temp file and rename so a crash never leaves a
// truncated .eml under its final name.
func (s *MailStoreService) writeRaw(hash string, raw []byte) (string, error) {
	if err := os.MkdirAll(s.rawMailDir, 0o755); err != nil {
		return "", err
	}
	rawPath := filepath.Join(s.rawMailDir, hash+".eml")
	if _, err := os.Stat(rawPath); err == nil {
		return rawPath, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	tmp, err := os.CreateTemp(s.rawMailDir, hash+".*.tmp")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write raw email: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), rawPath); err != nil {
		return "", err
	}
	return rawPath, nil
}

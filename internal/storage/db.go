package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"quoteflow/internal"
	"quoteflow/internal/util"
)

var ErrNotFound = errors.New("not found")

const (
	StatusFetched    = "fetched"
	StatusClassified = "classified"
	StatusSkipped    = "skipped"
	StatusExported   = "exported"
	StatusFailed     = "failed"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer at a time; classification workers share this handle.
	conn.SetMaxOpenConns(1)

	for _, pragma := range []string{`PRAGMA journal_mode = WAL;`, `PRAGMA busy_timeout = 5000;`} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS products (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  code TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  brand TEXT NOT NULL DEFAULT '',
  category TEXT NOT NULL DEFAULT '',
  unitPrice REAL NOT NULL DEFAULT 0,
  taxRate REAL NOT NULL DEFAULT 0,
  lastSeenAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_products_name ON products(name);

CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS classifications (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  emailId INTEGER NOT NULL UNIQUE,
  isQuoteRequest INTEGER NOT NULL,
  tier TEXT NOT NULL,
  score REAL NOT NULL,
  categories TEXT NOT NULL,
  reasoning TEXT NOT NULL,
  resultJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(emailId) REFERENCES emails(id)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  emailId INTEGER,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(emailId) REFERENCES emails(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// UpsertProducts inserts or refreshes products keyed by code. Existing rows
// keep their position so ListProducts order stays stable across syncs.
func (d *DB) UpsertProducts(products []internal.CatalogProduct) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO products (code, name, brand, category, unitPrice, taxRate, lastSeenAt)
VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(code) DO UPDATE SET
  name=excluded.name,
  brand=excluded.brand,
  category=excluded.category,
  unitPrice=excluded.unitPrice,
  taxRate=excluded.taxRate,
  lastSeenAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range products {
		if _, err := stmt.Exec(p.Code, p.Name, p.Brand, p.Category, p.UnitPrice, p.TaxRate); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.Code, err)
		}
	}

	return tx.Commit()
}

func (d *DB) ListProducts() ([]internal.CatalogProduct, error) {
	rows, err := d.conn.Query(`SELECT code, name, brand, category, unitPrice, taxRate FROM products ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []internal.CatalogProduct{}
	for rows.Next() {
		var p internal.CatalogProduct
		if err := rows.Scan(&p.Code, &p.Name, &p.Brand, &p.Category, &p.UnitPrice, &p.TaxRate); err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	return out, rows.Err()
}

func (d *DB) DeleteProduct(code string) error {
	res, err := d.conn.Exec(`DELETE FROM products WHERE code = ?`, code)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("product %s: %w", code, ErrNotFound)
	}
	return nil
}

func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO emails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.EmailRow{}, err
	}

	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, errors.New("failed to upsert email")
	}
	return *row, nil
}

const emailColumns = `id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef`

func scanEmail(scan func(dest ...any) error) (internal.EmailRow, error) {
	var row internal.EmailRow
	err := scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef)
	return row, err
}

func (d *DB) GetEmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE provider = ? AND messageId = ?`, provider, messageID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetEmailByID(id int) (*internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE id = ?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListEmailsByStatus returns the oldest emails in status, limited to one
// provider unless provider is empty.
func (d *DB) ListEmailsByStatus(status, provider string, limit int) ([]internal.EmailRow, error) {
	rows, err := d.conn.Query(`SELECT `+emailColumns+` FROM emails
WHERE status = ? AND (? = '' OR provider = ?)
ORDER BY receivedAt ASC, id ASC LIMIT ?`, status, provider, provider, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EmailRow
	for rows.Next() {
		row, err := scanEmail(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateEmailStatus(emailID int, status string) error {
	_, err := d.conn.Exec(`UPDATE emails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, emailID)
	return err
}

func (d *DB) MustEmailByProviderMessageID(provider, messageID string) (internal.EmailRow, error) {
	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, fmt.Errorf("email provider=%s messageId=%s: %w", provider, messageID, ErrNotFound)
	}
	return *row, nil
}

// SaveClassification stores the latest result for an email, replacing any
// earlier one.
func (d *DB) SaveClassification(emailID int, result internal.ClassificationResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = d.conn.Exec(`
INSERT INTO classifications (emailId, isQuoteRequest, tier, score, categories, reasoning, resultJson)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(emailId) DO UPDATE SET
  isQuoteRequest=excluded.isQuoteRequest,
  tier=excluded.tier,
  score=excluded.score,
  categories=excluded.categories,
  reasoning=excluded.reasoning,
  resultJson=excluded.resultJson,
  createdAt=CURRENT_TIMESTAMP
`, emailID, result.IsQuoteRequest, string(result.ConfidenceTier), result.Score, joinCategories(result.Categories), result.Reasoning, string(resultJSON))
	return err
}

func (d *DB) GetClassification(emailID int) (internal.ClassificationResult, error) {
	var blob string
	err := d.conn.QueryRow(`SELECT resultJson FROM classifications WHERE emailId = ?`, emailID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return internal.ClassificationResult{}, fmt.Errorf("classification for email %d: %w", emailID, ErrNotFound)
	}
	if err != nil {
		return internal.ClassificationResult{}, err
	}
	var out internal.ClassificationResult
	if err := json.Unmarshal([]byte(blob), &out); err != nil {
		return internal.ClassificationResult{}, err
	}
	return out, nil
}

func (d *DB) InsertRun(traceID string, emailID int, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, emailId, timingsJson, countsJson) VALUES (?, ?, ?, ?)`, traceID, emailID, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) CountRuns(emailID int) (int, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM runs WHERE emailId = ?`, emailID).Scan(&n)
	return n, err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// GetExportRows returns one row per classified email in the given statuses,
// quote requests first, then by score.
func (d *DB) GetExportRows(statuses ...string) ([]internal.ClassificationExportRow, error) {
	if len(statuses) == 0 {
		statuses = []string{StatusClassified, StatusSkipped}
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := make([]any, 0, len(statuses))
	for _, s := range statuses {
		args = append(args, s)
	}

	rows, err := d.conn.Query(`
SELECT e.id, e.provider, e.messageId, e.subject, e.sender, e.receivedAt,
       c.isQuoteRequest, c.tier, c.score, c.categories, c.reasoning, c.resultJson
FROM emails e
JOIN classifications c ON c.emailId = e.id
WHERE e.status IN (`+placeholders+`)
ORDER BY c.isQuoteRequest DESC, c.score DESC, e.id ASC
`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ClassificationExportRow
	for rows.Next() {
		var row internal.ClassificationExportRow
		var subject, sender, receivedAt sql.NullString
		var resultJSON string
		if err := rows.Scan(
			&row.EmailID, &row.Provider, &row.MessageID, &subject, &sender, &receivedAt,
			&row.IsQuoteRequest, &row.ConfidenceTier, &row.Score, &row.Categories, &row.Reasoning, &resultJSON,
		); err != nil {
			return nil, err
		}
		row.Subject, row.Sender, row.ReceivedAt = subject.String, sender.String, receivedAt.String

		var result internal.ClassificationResult
		if err := json.Unmarshal([]byte(resultJSON), &result); err == nil {
			fillExportDetails(&row, result)
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

func fillExportDetails(row *internal.ClassificationExportRow, result internal.ClassificationResult) {
	if len(result.DetectedProducts) > 0 {
		top := result.DetectedProducts[0]
		row.TopProductCode = util.StringPtr(top.Product.Code)
		row.TopProductName = util.StringPtr(top.Product.Name)
		row.TopMatchScore = util.FloatPtr(top.MatchScore)
	}
	parts := make([]string, 0, len(result.ExtractedQuantities))
	for _, q := range result.ExtractedQuantities {
		parts = append(parts, fmt.Sprintf("%s=%d (%.2f)", q.ProductRef, q.Quantity, q.Confidence))
	}
	row.Quantities = strings.Join(parts, "; ")
}

func joinCategories(categories []internal.Category) string {
	parts := make([]string, 0, len(categories))
	for _, c := range categories {
		parts = append(parts, string(c))
	}
	return strings.Join(parts, ",")
}

package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"tezbuild/internal"
)

// DB is the catalog store: products keyed by (itemType, uniqueId) with
// secondary indexes on category, facility and SKU, plus the price-list
// mail intake and ingest-run audit tables.
type DB struct {
	conn      *sql.DB
	batchSize int
	retries   int
	backoff   time.Duration
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn, batchSize: 25, retries: 3, backoff: 200 * time.Millisecond}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

// SetWriteBatching tunes batch size and the bounded retry applied to each
// batch flush.
func (d *DB) SetWriteBatching(batchSize, retries int, backoff time.Duration) {
	if batchSize > 0 {
		d.batchSize = batchSize
	}
	if retries > 0 {
		d.retries = retries
	}
	if backoff > 0 {
		d.backoff = backoff
	}
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS products (
  itemType TEXT NOT NULL,
  uniqueId TEXT NOT NULL,
  category TEXT NOT NULL,
  sku TEXT NOT NULL,
  facilityId TEXT NOT NULL,
  heading TEXT NOT NULL,
  subheading TEXT,
  image TEXT,
  unit TEXT NOT NULL,
  priceType TEXT NOT NULL,
  minPackSize INTEGER NOT NULL,
  inventory INTEGER,
  costsJson TEXT NOT NULL,
  pricesJson TEXT NOT NULL,
  attrsJson TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (itemType, uniqueId)
);
CREATE INDEX IF NOT EXISTS idx_products_category ON products(itemType, category);
CREATE INDEX IF NOT EXISTS idx_products_facility ON products(itemType, facilityId);
CREATE INDEX IF NOT EXISTS idx_products_sku ON products(itemType, sku);

CREATE TABLE IF NOT EXISTS price_lists (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  supplierId TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  priceListId INTEGER,
  supplierId TEXT,
  countsJson TEXT NOT NULL,
  timingsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
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

// PutProducts upserts products in bounded batches. Writes are idempotent
// by key, so a retried batch cannot duplicate records; each batch gets a
// bounded retry with doubling backoff before the error surfaces.
func (d *DB) PutProducts(products []internal.Product) error {
	for start := 0; start < len(products); start += d.batchSize {
		end := start + d.batchSize
		if end > len(products) {
			end = len(products)
		}
		if err := d.withRetry(func() error { return d.putBatch(products[start:end]) }); err != nil {
			return fmt.Errorf("flush batch at offset %d: %w", start, err)
		}
	}
	return nil
}

func (d *DB) withRetry(fn func() error) error {
	backoff := d.backoff
	var err error
	for attempt := 0; attempt < d.retries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return err
}

func (d *DB) putBatch(products []internal.Product) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO products (
  itemType, uniqueId, category, sku, facilityId, heading, subheading, image,
  unit, priceType, minPackSize, inventory, costsJson, pricesJson, attrsJson, updatedAt
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(itemType, uniqueId) DO UPDATE SET
  category=excluded.category,
  sku=excluded.sku,
  facilityId=excluded.facilityId,
  heading=excluded.heading,
  subheading=excluded.subheading,
  image=excluded.image,
  unit=excluded.unit,
  priceType=excluded.priceType,
  minPackSize=excluded.minPackSize,
  inventory=excluded.inventory,
  costsJson=excluded.costsJson,
  pricesJson=excluded.pricesJson,
  attrsJson=excluded.attrsJson,
  updatedAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range products {
		costsJSON, _ := json.Marshal(p.Costs)
		pricesJSON, _ := json.Marshal(p.Prices)
		attrsJSON, _ := json.Marshal(p.Attrs)
		var inventory any
		if p.Inventory != nil {
			inventory = *p.Inventory
		}
		if _, err := stmt.Exec(
			p.ItemType, p.UniqueID, string(p.Category), p.SKU, p.FacilityID,
			p.Heading, p.Subheading, p.Image, p.Unit, p.PriceType, p.MinPackSize,
			inventory, string(costsJSON), string(pricesJSON), string(attrsJSON),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// DeleteFacilityProducts removes every product for a facility, optionally
// narrowed to one category, and reports how many records went away. This
// backs the purge step that precedes a fresh batch load.
func (d *DB) DeleteFacilityProducts(facilityID string, category internal.Category) (int, error) {
	query := `SELECT uniqueId FROM products WHERE itemType = ? AND facilityId = ?`
	args := []any{internal.ItemTypeProduct, facilityID}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, string(category))
	}

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for start := 0; start < len(ids); start += d.batchSize {
		end := start + d.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]
		err := d.withRetry(func() error {
			tx, err := d.conn.Begin()
			if err != nil {
				return err
			}
			defer func() { _ = tx.Rollback() }()
			for _, id := range batch {
				if _, err := tx.Exec(`DELETE FROM products WHERE itemType = ? AND uniqueId = ?`, internal.ItemTypeProduct, id); err != nil {
					return err
				}
			}
			return tx.Commit()
		})
		if err != nil {
			return 0, err
		}
	}

	return len(ids), nil
}

const productColumns = `itemType, uniqueId, category, sku, facilityId, heading, subheading, image,
       unit, priceType, minPackSize, inventory, costsJson, pricesJson, attrsJson`

// GetProduct is a point get by primary key; nil when absent.
func (d *DB) GetProduct(itemType, uniqueID string) (*internal.Product, error) {
	row := d.conn.QueryRow(`SELECT `+productColumns+` FROM products WHERE itemType = ? AND uniqueId = ?`, itemType, uniqueID)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// QueryBySKU returns every facility's record for one SKU, the
// supplier-agnostic cross-facility lookup.
func (d *DB) QueryBySKU(sku string) ([]internal.Product, error) {
	return d.queryProducts(`SELECT `+productColumns+` FROM products WHERE itemType = ? AND sku = ? ORDER BY uniqueId`,
		internal.ItemTypeProduct, sku)
}

// QueryByFacility scans one supplier's records, optionally narrowed to a
// category.
func (d *DB) QueryByFacility(facilityID string, category internal.Category) ([]internal.Product, error) {
	if category != "" {
		return d.queryProducts(`SELECT `+productColumns+` FROM products WHERE itemType = ? AND facilityId = ? AND category = ? ORDER BY uniqueId`,
			internal.ItemTypeProduct, facilityID, string(category))
	}
	return d.queryProducts(`SELECT `+productColumns+` FROM products WHERE itemType = ? AND facilityId = ? ORDER BY uniqueId`,
		internal.ItemTypeProduct, facilityID)
}

// Page is one slice of a category query; NextToken is the continuation
// token for the following page, empty when exhausted. Attribute filters
// apply after the page is read, so a page can come back short (or empty)
// while NextToken still advances.
type Page struct {
	Items     []internal.Product
	NextToken string
}

// QueryByCategory pages through a category with equality filters against
// the product attributes.
func (d *DB) QueryByCategory(category internal.Category, filters map[string]string, limit int, token string) (Page, error) {
	if limit <= 0 {
		limit = 100
	}
	products, err := d.queryProducts(
		`SELECT `+productColumns+` FROM products WHERE itemType = ? AND category = ? AND uniqueId > ? ORDER BY uniqueId LIMIT ?`,
		internal.ItemTypeProduct, string(category), token, limit)
	if err != nil {
		return Page{}, err
	}

	page := Page{}
	if len(products) == limit {
		page.NextToken = products[len(products)-1].UniqueID
	}
	for _, p := range products {
		if matchesAttrs(p, filters) {
			page.Items = append(page.Items, p)
		}
	}
	return page, nil
}

func matchesAttrs(p internal.Product, filters map[string]string) bool {
	for name, want := range filters {
		value, ok := p.Attrs[name]
		if !ok {
			return false
		}
		if attrString(value) != want {
			return false
		}
	}
	return true
}

func attrString(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	default:
		return fmt.Sprintf("%v", value)
	}
}

func (d *DB) queryProducts(query string, args ...any) ([]internal.Product, error) {
	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(scanner rowScanner) (*internal.Product, error) {
	var p internal.Product
	var category string
	var inventory sql.NullInt64
	var costsJSON, pricesJSON, attrsJSON string
	if err := scanner.Scan(
		&p.ItemType, &p.UniqueID, &category, &p.SKU, &p.FacilityID,
		&p.Heading, &p.Subheading, &p.Image, &p.Unit, &p.PriceType, &p.MinPackSize,
		&inventory, &costsJSON, &pricesJSON, &attrsJSON,
	); err != nil {
		return nil, err
	}
	p.Category = internal.Category(category)
	if inventory.Valid {
		value := int(inventory.Int64)
		p.Inventory = &value
	}
	_ = json.Unmarshal([]byte(costsJSON), &p.Costs)
	_ = json.Unmarshal([]byte(pricesJSON), &p.Prices)
	_ = json.Unmarshal([]byte(attrsJSON), &p.Attrs)
	return &p, nil
}

func (d *DB) UpsertPriceList(provider, messageID, subject, sender, supplierID, receivedAt, hash, rawRef, status string) (internal.PriceListMail, error) {
	_, err := d.conn.Exec(`
INSERT INTO price_lists (provider, messageId, subject, sender, supplierId, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  supplierId=excluded.supplierId,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, supplierID, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.PriceListMail{}, err
	}

	row, err := d.GetPriceList(provider, messageID)
	if err != nil {
		return internal.PriceListMail{}, err
	}
	if row == nil {
		return internal.PriceListMail{}, errors.New("failed to upsert price list mail")
	}
	return *row, nil
}

func (d *DB) GetPriceList(provider, messageID string) (*internal.PriceListMail, error) {
	var row internal.PriceListMail
	err := d.conn.QueryRow(`
SELECT id, provider, messageId, subject, sender, supplierId, receivedAt, hash, status, rawRef
FROM price_lists WHERE provider = ? AND messageId = ?
`, provider, messageID).Scan(
		&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.SupplierID, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListPriceListsByStatus(status string, limit int) ([]internal.PriceListMail, error) {
	rows, err := d.conn.Query(`
SELECT id, provider, messageId, subject, sender, supplierId, receivedAt, hash, status, rawRef
FROM price_lists WHERE status = ? ORDER BY receivedAt ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.PriceListMail
	for rows.Next() {
		var row internal.PriceListMail
		if err := rows.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.SupplierID, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdatePriceListStatus(id int, status string) error {
	_, err := d.conn.Exec(`UPDATE price_lists SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
	return err
}

func (d *DB) InsertRun(traceID string, priceListID int, supplierID string, counts map[string]int, timings map[string]float64) error {
	countsJSON, _ := json.Marshal(counts)
	timingsJSON, _ := json.Marshal(timings)
	var listID any
	if priceListID > 0 {
		listID = priceListID
	}
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, priceListId, supplierId, countsJson, timingsJson) VALUES (?, ?, ?, ?, ?)`,
		traceID, listID, supplierID, string(countsJSON), string(timingsJSON))
	return err
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

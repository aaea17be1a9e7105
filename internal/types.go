package internal

// Supplier (facility) ids accepted by the uploader.
const (
	SupplierRRT   = "RRT"
	SupplierBXYL  = "BX_YL"
	SupplierGSPSK = "GS_PSK"
)

func KnownSupplier(id string) bool {
	switch id {
	case SupplierRRT, SupplierBXYL, SupplierGSPSK:
		return true
	}
	return false
}

type Category string

const (
	CategoryLumber    Category = "lumber"
	CategorySheetGood Category = "sheet_good"
)

func KnownCategory(c Category) bool {
	return c == CategoryLumber || c == CategorySheetGood
}

// ItemTypeProduct is the partition discriminator for catalog records.
const ItemTypeProduct = "P"

// RawRow is one header-led row of a supplier price list, column name to
// string value. A row that fails normalization gets an "error" key and is
// returned to the caller instead of being written.
type RawRow map[string]string

const ErrorField = "error"

func (r RawRow) Reject(msg string) RawRow {
	r[ErrorField] = msg
	return r
}

// PriceTier is one entry of an adder-price schedule. Tiers are ordered
// ascending by MinQty and consumers pick the largest threshold <= quantity.
type PriceTier struct {
	Amount float64 `json:"amount"`
	MinQty int     `json:"minQty"`
}

// Product is the canonical, store-ready catalog record. UniqueId is
// "{facilityId}#{sku}" where sku is a 10-hex digest of the discriminating
// attributes, so re-uploading identical attributes upserts the same key.
type Product struct {
	ItemType    string         `json:"itemType"`
	UniqueID    string         `json:"uniqueId"`
	Category    Category       `json:"category"`
	SKU         string         `json:"sku"`
	FacilityID  string         `json:"facilityId"`
	Heading     string         `json:"heading"`
	Subheading  string         `json:"subheading"`
	Image       string         `json:"image"`
	Unit        string         `json:"unit"`
	PriceType   string         `json:"priceType"`
	MinPackSize int            `json:"minPackSize"`
	Costs       []PriceTier    `json:"costs,omitempty"`
	Prices      []PriceTier    `json:"prices"`
	Inventory   *int           `json:"inventory,omitempty"`
	Attrs       map[string]any `json:"attrs"`
}

// IngestRequest drives one upload invocation. Key names a blob in the
// upload store; ".csv" is implied. Category may be empty when every row
// carries its own category column.
type IngestRequest struct {
	SupplierID    string
	Category      Category
	Key           string
	ClearCategory bool
	ClearSupplier bool
}

type IngestResult struct {
	StatusCode int
	Message    string
	Accepted   int
	Rejected   []RawRow
}

// PriceListMail is a stored supplier email carrying a price list.
type PriceListMail struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	SupplierID string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type InboundMail struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

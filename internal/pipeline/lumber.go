package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"tezbuild/internal"
	"tezbuild/internal/pricing"
	"tezbuild/internal/refdata"
	"tezbuild/internal/util"
)

// Normalizer turns raw price-list rows into canonical catalog products.
// Reference tables and pricing rules are injected so alternate tables can
// drive it in tests.
type Normalizer struct {
	tables  *refdata.Tables
	pricing pricing.Registry
}

func NewNormalizer(tables *refdata.Tables, reg pricing.Registry) *Normalizer {
	return &Normalizer{tables: tables, pricing: reg}
}

// Normalize dispatches a row to the category-specific normalizer. The
// returned error is the row-rejection reason; it never aborts a batch.
func (n *Normalizer) Normalize(category internal.Category, row internal.RawRow, supplierID string) (*internal.Product, error) {
	switch category {
	case internal.CategoryLumber:
		return n.Lumber(row, supplierID)
	case internal.CategorySheetGood:
		return n.SheetGood(row, supplierID)
	default:
		return nil, fmt.Errorf("invalid row category: %q", category)
	}
}

// Lumber validates and transforms a dimensional-lumber row. Validation is
// fail-fast per row: the first problem rejects the row and no partial
// product is emitted.
func (n *Normalizer) Lumber(row internal.RawRow, supplierID string) (*internal.Product, error) {
	profile, err := requireField(row, "profile")
	if err != nil {
		return nil, err
	}
	profile = strings.ToLower(profile)
	length, err := requireFloat(row, "length")
	if err != nil {
		return nil, err
	}
	grade, err := requireField(row, "grade")
	if err != nil {
		return nil, err
	}
	basePrice, err := requireFloat(row, "basePrice")
	if err != nil {
		return nil, err
	}
	species, err := requireField(row, "species")
	if err != nil {
		return nil, err
	}

	if basePrice <= 0 {
		return nil, fmt.Errorf("base price must be greater than 0")
	}

	fingerJoint := flagField(row, "fingerJoint")
	precision := flagField(row, "precision")
	treatment := optionalField(row, "treatment")
	if treatment == "none" {
		treatment = ""
	}
	brand := optionalField(row, "brand")

	if !util.ValidProfile(profile) {
		return nil, fmt.Errorf("invalid profile (format: 2X4, 4x6, etc.)")
	}
	actual, ok := n.tables.ActualFor(profile)
	if !ok {
		return nil, fmt.Errorf("invalid profile (not found in nominal/actual chart)")
	}
	density, ok := n.tables.DensityOf(species)
	if !ok {
		return nil, fmt.Errorf("invalid species (not found in density chart)")
	}

	bdf, err := util.BoardFeet(length, profile)
	if err != nil {
		return nil, err
	}
	// Cubic inches to pounds via lb/ft³ density.
	weight := actual.Width * actual.Thickness * length * density / 1728

	packSize, err := n.lumberPackSize(row, species, profile)
	if err != nil {
		return nil, err
	}

	sched, err := n.pricing.Lumber(supplierID, pricing.LumberInput{
		BasePrice:   basePrice,
		BoardFeet:   bdf,
		Length:      length,
		FingerJoint: fingerJoint == "Y",
		PackSize:    packSize,
	})
	if err != nil {
		return nil, err
	}

	sku, uniqueID := ComputeKey(internal.CategoryLumber, supplierID, []string{
		util.FormatFloat(length), profile, grade, species, fingerJoint, precision, treatment, brand,
	})

	heading := fmt.Sprintf("%sx%s %s %s", profile, util.FormatDistance(length, false), grade, species)
	var parts []string
	if brand != "" {
		parts = append(parts, brand)
	}
	if precision == "Y" {
		parts = append(parts, "Precision End Trim")
	}
	if treatment != "" {
		parts = append(parts, treatment)
	}
	if fingerJoint == "Y" {
		parts = append(parts, "Finger Joint")
	}

	attrs := map[string]any{
		"Length":      length,
		"Profile":     profile,
		"Grade":       grade,
		"Species":     species,
		"FingerJoint": fingerJoint,
		"Precision":   precision,
		"Width":       actual.Width,
		"Thickness":   actual.Thickness,
		"BDFT":        bdf,
		"Weight":      weight,
	}
	if brand != "" {
		attrs["Brand"] = brand
	}
	if treatment != "" {
		attrs["Treatment"] = treatment
	}

	product := &internal.Product{
		ItemType:    internal.ItemTypeProduct,
		UniqueID:    uniqueID,
		Category:    internal.CategoryLumber,
		SKU:         sku,
		FacilityID:  supplierID,
		Heading:     heading,
		Subheading:  strings.Join(parts, " | "),
		Image:       profile,
		Unit:        "pc", // individual pieces
		PriceType:   "a",  // adder pricing
		MinPackSize: sched.Prices[0].MinQty,
		Costs:       sched.Costs,
		Prices:      sched.Prices,
		Attrs:       attrs,
	}

	// Inventory is only reported by RRT.
	if supplierID == internal.SupplierRRT {
		inv, err := inventoryField(row)
		if err != nil {
			return nil, err
		}
		product.Inventory = &inv
	}

	return product, nil
}

func (n *Normalizer) lumberPackSize(row internal.RawRow, species, profile string) (int, error) {
	if raw := strings.TrimSpace(row["packSize"]); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid packSize: %q", raw)
		}
		return size, nil
	}
	size, ok := n.tables.LumberBundle(species, profile)
	if !ok {
		return 0, nil
	}
	return size, nil
}

// inventoryField defaults a missing column to 0; a present cell must parse,
// so a blank value rejects the row.
func inventoryField(row internal.RawRow) (int, error) {
	raw, ok := row["inventory"]
	if !ok {
		return 0, nil
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse inventory: %q", raw)
	}
	return int(math.Floor(parsed)), nil
}

func requireField(row internal.RawRow, name string) (string, error) {
	value, ok := row[name]
	if !ok {
		return "", fmt.Errorf("missing required field: %s", name)
	}
	return strings.TrimSpace(value), nil
}

func requireFloat(row internal.RawRow, name string) (float64, error) {
	value, err := requireField(row, name)
	if err != nil {
		return 0, err
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("missing or improperly formatted required field: %s", name)
	}
	return parsed, nil
}

func optionalField(row internal.RawRow, name string) string {
	return strings.TrimSpace(row[name])
}

// flagField folds an optional Y/N column to "Y" or "N".
func flagField(row internal.RawRow, name string) string {
	if strings.TrimSpace(row[name]) == "Y" {
		return "Y"
	}
	return "N"
}

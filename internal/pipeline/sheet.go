package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"tezbuild/internal"
	"tezbuild/internal/pricing"
	"tezbuild/internal/util"
)

// defaultSheetDensity stands in when the species is blank or not in the
// density chart; 50 lb/ft³ is deliberately conservative for freight math.
const defaultSheetDensity = 50.0

// SheetGood validates and transforms a panel-product row (plywood/OSB).
func (n *Normalizer) SheetGood(row internal.RawRow, supplierID string) (*internal.Product, error) {
	length, err := requireFloat(row, "length")
	if err != nil {
		return nil, err
	}
	width, err := requireFloat(row, "width")
	if err != nil {
		return nil, err
	}
	thickness, err := requireFloat(row, "thickness")
	if err != nil {
		return nil, err
	}
	basePrice, err := requireFloat(row, "basePrice")
	if err != nil {
		return nil, err
	}
	panelType, err := requireField(row, "panelType")
	if err != nil {
		return nil, err
	}

	if basePrice <= 0 {
		return nil, fmt.Errorf("base price must be greater than 0")
	}

	brand := optionalField(row, "brand")
	origin := optionalField(row, "origin") // country code
	grade := optionalField(row, "grade")
	species := optionalField(row, "species")
	finish := optionalField(row, "finish")
	edge := optionalField(row, "edge")
	metric := optionalField(row, "metric")
	treatment := optionalField(row, "treatment")
	if treatment == "none" {
		treatment = ""
	}

	squareFeet := length * width / 144

	density, ok := n.tables.DensityOf(species)
	if !ok {
		density = defaultSheetDensity
	}
	weight := squareFeet * thickness / 12 * density
	if metric != "" {
		// Legacy divisor applied to the already-imperial weight figure; not
		// a true unit conversion. Preserved until product confirms a fix.
		weight /= 25.4
	}

	packSize, err := n.sheetPackSize(row, thickness)
	if err != nil {
		return nil, err
	}

	sched, err := n.pricing.Sheet(supplierID, pricing.SheetInput{
		BasePrice:  basePrice,
		SquareFeet: squareFeet,
		PackSize:   packSize,
		PiecePrice: piecePriceField(row),
	})
	if err != nil {
		return nil, err
	}

	sku, uniqueID := ComputeKey(internal.CategorySheetGood, supplierID, []string{
		util.FormatFloat(length), util.FormatFloat(width), util.FormatFloat(thickness),
		species, grade, panelType, treatment, edge, finish, brand, origin, metric,
	})

	heading := strings.TrimSpace(fmt.Sprintf("%s %s x %s x %s %s",
		brand,
		util.FormatDistance(width, false),
		util.FormatDistance(length, false),
		util.FormatDistance(thickness, metric == "Y"),
		panelType,
	))
	var parts []string
	for _, descriptor := range []string{grade, treatment, edge, finish, origin} {
		if descriptor != "" {
			parts = append(parts, descriptor)
		}
	}

	attrs := map[string]any{
		"PanelType": panelType,
		"Length":    length,
		"Width":     width,
		"Thickness": thickness,
		"SQFT":      squareFeet,
		"Weight":    weight,
	}
	for name, value := range map[string]string{
		"Brand": brand, "Origin": origin, "Grade": grade, "Species": species,
		"Edge": edge, "Finish": finish, "Metric": metric, "Treatment": treatment,
	} {
		if value != "" {
			attrs[name] = value
		}
	}

	return &internal.Product{
		ItemType:    internal.ItemTypeProduct,
		UniqueID:    uniqueID,
		Category:    internal.CategorySheetGood,
		SKU:         sku,
		FacilityID:  supplierID,
		Heading:     heading,
		Subheading:  strings.Join(parts, " | "),
		Image:       panelType,
		Unit:        "pc",
		PriceType:   "a",
		MinPackSize: sched.Prices[0].MinQty,
		Costs:       sched.Costs,
		Prices:      sched.Prices,
		Attrs:       attrs,
	}, nil
}

func (n *Normalizer) sheetPackSize(row internal.RawRow, thickness float64) (int, error) {
	if raw := strings.TrimSpace(row["packSize"]); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid packSize: %q", raw)
		}
		return size, nil
	}
	size, ok := n.tables.SheetBundle(thickness)
	if !ok {
		return 0, nil
	}
	return size, nil
}

// piecePriceField reads the per-piece price column; unparsable or
// non-positive values are treated as absent rather than rejecting the row.
// Suppliers export 0 to mean "not sold by piece", so a zero must fall back
// to pack pricing instead of publishing a free piece tier.
func piecePriceField(row internal.RawRow) *float64 {
	raw := strings.TrimSpace(row["pcPrice"])
	if raw == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed <= 0 {
		return nil
	}
	return &parsed
}

package pipeline

import (
	"strings"
	"testing"

	"tezbuild/internal"
)

func TestComputeKeyDeterministic(t *testing.T) {
	attrs := []string{"96", "2x4", "No.2", "Southern Yellow Pine", "N", "N", "", ""}

	sku1, uid1 := ComputeKey(internal.CategoryLumber, "RRT", attrs)
	sku2, uid2 := ComputeKey(internal.CategoryLumber, "RRT", attrs)
	if sku1 != sku2 || uid1 != uid2 {
		t.Fatalf("same attrs produced different keys: %s/%s vs %s/%s", sku1, uid1, sku2, uid2)
	}
	if len(sku1) != 10 {
		t.Fatalf("sku length = %d", len(sku1))
	}
	if uid1 != "RRT#"+sku1 {
		t.Fatalf("uniqueId = %q", uid1)
	}
}

func TestComputeKeySupplierScoping(t *testing.T) {
	attrs := []string{"96", "2x4", "No.2", "Southern Yellow Pine", "N", "N", "", ""}

	sku1, uid1 := ComputeKey(internal.CategoryLumber, "RRT", attrs)
	sku2, uid2 := ComputeKey(internal.CategoryLumber, "BX_YL", attrs)
	if sku1 != sku2 {
		t.Fatalf("sku should be supplier-agnostic: %s vs %s", sku1, sku2)
	}
	if uid1 == uid2 {
		t.Fatal("unique ids should differ across suppliers")
	}
}

func TestComputeKeyAttributeSensitivity(t *testing.T) {
	base := []string{"96", "2x4", "No.2", "Southern Yellow Pine", "N", "N", "", ""}

	baseSKU, _ := ComputeKey(internal.CategoryLumber, "RRT", base)

	changed := append([]string{}, base...)
	changed[2] = "No.1"
	changedSKU, _ := ComputeKey(internal.CategoryLumber, "RRT", changed)
	if baseSKU == changedSKU {
		t.Fatal("grade change should change the sku")
	}

	// An absent optional attribute still occupies its slot.
	branded := append([]string{}, base...)
	branded[7] = "WestFraser"
	brandedSKU, _ := ComputeKey(internal.CategoryLumber, "RRT", branded)
	if baseSKU == brandedSKU {
		t.Fatal("adding a brand should change the sku")
	}

	// Category participates in identity too.
	sheetSKU, _ := ComputeKey(internal.CategorySheetGood, "RRT", base)
	if baseSKU == sheetSKU {
		t.Fatal("category should change the sku")
	}
}

func TestComputeKeyHexOnly(t *testing.T) {
	sku, _ := ComputeKey(internal.CategoryLumber, "RRT", []string{"96", "2x4"})
	if strings.Trim(sku, "0123456789abcdef") != "" {
		t.Fatalf("sku not lowercase hex: %q", sku)
	}
}

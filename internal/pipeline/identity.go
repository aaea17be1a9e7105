package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"tezbuild/internal"
)

// skuLength truncates the digest to 10 hex characters. 16^10 is north of a
// trillion, so collisions are treated as negligible rather than detected;
// a collision would silently overwrite a distinct product.
const skuLength = 10

// ComputeKey derives the content-addressed identity of a product from its
// discriminating attributes. Attributes must arrive in the fixed
// category-specific order, with absent optional attributes passed as empty
// strings so that presence still participates in identity. The SKU is
// supplier-agnostic; the unique id prefixes it with the supplier.
func ComputeKey(category internal.Category, supplierID string, attrs []string) (sku, uniqueID string) {
	concatenated := string(category) + strings.Join(attrs, "#")
	digest := sha256.Sum256([]byte(concatenated))
	sku = hex.EncodeToString(digest[:])[:skuLength]
	return sku, supplierID + "#" + sku
}

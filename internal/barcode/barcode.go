// Package barcode derives the deterministic identity of a packet stock
// configuration. The barcode is the natural key of an aggregate: two
// replenishments of the same (supplier, product, composition, looseness)
// tuple must land on the same record, so the same logical configuration has
// to hash to the same string no matter how the caller ordered the
// composition entries.
package barcode

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const (
	// PrefixSealed marks barcodes of sealed multi-variant packets.
	PrefixSealed = "PKT-"
	// PrefixLoose marks barcodes of single-variant loose aggregates.
	PrefixLoose = "LSE-"

	// digestBytes of the SHA-256 digest are kept — 16 hex chars is plenty
	// for a per-tenant stock catalogue and still scans comfortably.
	digestBytes = 8
)

// Variant is one composition line: how many items of a given size/color a
// packet carries.
type Variant struct {
	Size     string `json:"size"`
	Color    string `json:"color"`
	Quantity int    `json:"quantity"`
}

// Generate returns the deterministic barcode for a stock configuration.
// The composition is canonicalized by sorting on (color, size) so entry
// order never changes the identity.
func Generate(supplierID, productID uuid.UUID, composition []Variant, loose bool) string {
	canon := make([]Variant, len(composition))
	copy(canon, composition)
	sort.Slice(canon, func(i, j int) bool {
		if canon[i].Color != canon[j].Color {
			return canon[i].Color < canon[j].Color
		}
		return canon[i].Size < canon[j].Size
	})

	parts := make([]string, 0, len(canon)+3)
	parts = append(parts, supplierID.String(), productID.String(), fmt.Sprintf("loose=%t", loose))
	for _, v := range canon {
		parts = append(parts, fmt.Sprintf("%s:%s:%d", v.Color, v.Size, v.Quantity))
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	hex := strings.ToUpper(fmt.Sprintf("%x", sum[:digestBytes]))

	if loose {
		return PrefixLoose + hex
	}
	return PrefixSealed + hex
}

// GenerateLoose is the single-variant convenience used when a break promotes
// remaining items: loose stock is tracked one item per unit, so quantity is
// pinned to 1 regardless of how many units the break yields.
func GenerateLoose(supplierID, productID uuid.UUID, size, color string) string {
	return Generate(supplierID, productID, []Variant{{Size: size, Color: color, Quantity: 1}}, true)
}

// Package idempotency derives a stable key for one logical checkout attempt.
// The same customer with the same cart contents always produces the same key,
// so the payment gateway and inventory service can deduplicate network
// retries. A changed cart is a different logical purchase and yields a
// different key.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/fjod/go_checkout/domain"
)

// DeriveKey hashes customerID together with the ordered
// (sku, quantity, unitPrice) tuples. Line order is significant: the hash
// covers lines in cart order, not sorted order.
func DeriveKey(customerID string, lines []domain.CartLine) string {
	var b strings.Builder
	b.WriteString(customerID)
	for _, l := range lines {
		// '|' and '\n' keep adjacent tuples from colliding
		fmt.Fprintf(&b, "\n%s|%d|%s", l.SKU, l.Quantity, l.UnitPrice.String())
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

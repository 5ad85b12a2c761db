// Package billing translates payment-provider events into Tally calls.
//
// The provider's product identifiers are mapped to internal tiers by a
// static lookup table, and each event funnels through the engine's
// ApplyTierChange/ApplyStatusAction entry points. No billing logic lives
// here; the provider remains the source of truth for money.
package billing

import (
	"fmt"
	"strings"

	tally "github.com/xraph/tally"
	"github.com/xraph/tally/tier"
)

// Mapper resolves a provider's product reference (price ID, variant ID,
// plan slug) to an internal tier.
type Mapper struct {
	entries map[string]tier.Tier
}

// NewMapper creates an empty product mapper.
func NewMapper() *Mapper {
	return &Mapper{entries: make(map[string]tier.Tier)}
}

// Add registers a product reference for a provider. Later registrations
// overwrite earlier ones.
func (m *Mapper) Add(provider, productRef string, t tier.Tier) *Mapper {
	m.entries[mappingKey(provider, productRef)] = t
	return m
}

// Resolve returns the tier a provider product maps to.
func (m *Mapper) Resolve(provider, productRef string) (tier.Tier, error) {
	t, ok := m.entries[mappingKey(provider, productRef)]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", tally.ErrUnmappedProduct, provider, productRef)
	}
	return t, nil
}

// Len returns the number of registered mappings.
func (m *Mapper) Len() int { return len(m.entries) }

func mappingKey(provider, productRef string) string {
	return strings.ToLower(provider) + "/" + productRef
}

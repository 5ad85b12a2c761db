package tally

import (
	"github.com/xraph/tally/entitlement"
	"github.com/xraph/tally/tier"
	"github.com/xraph/tally/types"
)

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Money constructors
var (
	USD  = types.USD
	EUR  = types.EUR
	GBP  = types.GBP
	Zero = types.Zero
	Sum  = types.Sum
)

// Re-export Entity constructor
var NewEntity = types.NewEntity

// Re-export the domain sentinels raised below the root package, so error
// matching needs a single import.
var (
	ErrUnknownTier  = tier.ErrUnknownTier
	ErrInvalidLimit = entitlement.ErrInvalidLimit
)

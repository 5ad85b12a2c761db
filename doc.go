// Package tally provides a subscription entitlement and usage-accounting
// engine for Go applications.
//
// Tally is designed as a library, not a service. Import it directly into
// your application and put it in front of every quota-bearing operation.
// It provides:
//
//   - A static tier catalog (free, premium monthly/annual, lifetime)
//   - Pure entitlement decisions with machine-readable denial reasons
//   - Race-safe quota commits via conditional counter increments
//   - A single entry point for billing-driven tier and status changes
//   - Lazy billing-period rollover plus a sweep for lapsed subscriptions
//   - Free-tier PDF retention with a purge job
//
// # Quick Start
//
// Create a tally instance with your preferred store:
//
//	import (
//	    "github.com/xraph/tally"
//	    "github.com/xraph/tally/store/memory"
//	)
//
//	// Create engine (memory store for demos; use the postgres,
//	// sqlite, or mongo store in production)
//	tl := tally.New(memory.New())
//
//	// Start it (validates the catalog, runs migrations)
//	if err := tl.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer tl.Stop()
//
// # Core Concepts
//
// Every user has exactly one subscription, provisioned at signup:
//
//	sub, err := tl.ProvisionFreeSubscription(ctx, userID)
//
// Entitlement checks are advisory reads:
//
//	d, err := tl.CanGenerateResume(ctx, userID)
//	if d.Denied() {
//	    // Surface d.Reason to the user
//	}
//
// The quota spend is committed only after the expensive work succeeded,
// and the commit re-checks the limit atomically:
//
//	if err := tl.RecordGeneration(ctx, userID); err != nil {
//	    // tally.IsQuotaError(err): lost the race, nothing was spent
//	}
//
// Billing events from the payment provider funnel through one entry
// point, keyed by the provider's event ID for replay safety:
//
//	sub, err := tl.ApplyTierChange(ctx, userID, tier.PremiumMonthly, eventID)
//
// # Money
//
// All monetary calculations use integer arithmetic to avoid
// floating-point precision issues. The Money type represents amounts in
// the smallest currency unit (cents for USD, pence for GBP, etc).
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	sub_01h2xcejqtf2nbrexx3vqjhp41  // Subscription ID
//	res_01h455vb4pex5vsknk084sn02q  // Resume ID
//	jd_01h455vb4pex5vsknk084sn02q   // Job description ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package tally

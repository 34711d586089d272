package entitlement

import (
	"time"

	"github.com/divyansh14-yadav/getqrbackend/pkg/plan"
	"github.com/divyansh14-yadav/getqrbackend/pkg/subscription"
)

// Access is the resolved feature matrix for a user at a point in time.
type Access struct {
	// Tier is the effective tier, which may differ from the stored one when
	// the expiration fallback applied.
	Tier plan.Tier

	// Active is the effective payment health.
	Active bool

	// Expired reports that the stored record's paid period has lapsed and
	// the trial fallback was applied at read time. The capacity enforcer is
	// responsible for eventually persisting that demotion.
	Expired bool

	// Definition is the plan matrix for the effective tier.
	Definition plan.Definition
}

// Resolve derives the access decision for a record. Pure and deterministic:
// no I/O, safe to call on every request.
//
// An expired record resolves to trial/inactive regardless of its stored
// tier, so access decisions are never stale even when no reconciliation has
// run since the expiration. Records with a nil ExpiresAt never expire by
// construction.
func Resolve(catalog *plan.Catalog, rec subscription.Record, now time.Time) Access {
	if rec.ExpiredAt(now) {
		return Access{
			Tier:       plan.TierTrial,
			Active:     false,
			Expired:    true,
			Definition: catalog.DefinitionFor(plan.TierTrial),
		}
	}
	return Access{
		Tier:       rec.Tier,
		Active:     rec.Active,
		Definition: catalog.DefinitionFor(rec.Tier),
	}
}

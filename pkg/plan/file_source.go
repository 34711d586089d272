package plan

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrFailedToLoadPricing = errors.New("failed to load plan pricing file")

// pricingFile is the deploy-time YAML overlay for the built-in catalog.
// It carries only what differs between environments: the payment provider's
// price identifiers and, optionally, display prices.
//
//	plans:
//	  monthly:
//	    price_id: pri_01h1234
//	    amount: 29900
//	    currency: INR
type pricingFile struct {
	Plans map[string]pricingEntry `yaml:"plans"`
}

type pricingEntry struct {
	PriceID  string `yaml:"price_id"`
	Amount   int64  `yaml:"amount"`
	Currency string `yaml:"currency"`
	Public   *bool  `yaml:"public"`
}

// FromFile builds a catalog from the built-in definitions with per-tier
// overrides read from a YAML pricing file. Tiers absent from the file keep
// their defaults; unknown tiers in the file are a configuration error.
func FromFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPricing, err)
	}

	var file pricingFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.Join(ErrFailedToLoadPricing, err)
	}

	defs := defaultDefinitions()
	for name, entry := range file.Plans {
		tier, ok := ParseTier(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown tier %q", ErrFailedToLoadPricing, name)
		}
		for i := range defs {
			if defs[i].Tier != tier {
				continue
			}
			if entry.PriceID != "" {
				defs[i].PriceID = entry.PriceID
			}
			if entry.Amount > 0 {
				defs[i].Price.Amount = entry.Amount
			}
			if entry.Currency != "" {
				defs[i].Price.Currency = entry.Currency
			}
			if entry.Public != nil {
				defs[i].Public = *entry.Public
			}
		}
	}

	return NewCatalog(defs...)
}

package split

import "context"

// FeePolicy is the fee-relevant slice of a brand configuration document.
// Pointer fields distinguish "absent" from "present but zero": a present
// zero still loses the precedence race because only positive values win.
type FeePolicy struct {
	PlatformFeeBps *float64 `json:"platformFeeBps,omitempty"`
	PartnerFeeBps  *float64 `json:"partnerFeeBps,omitempty"`
	PartnerWallet  string   `json:"partnerWallet,omitempty"`
}

// BrandConfig is the effective brand configuration: the brand document plus
// per-deployment overrides. Overrides take precedence over the brand values.
type BrandConfig struct {
	Brand     FeePolicy `json:"brand"`
	Overrides FeePolicy `json:"overrides"`
}

// PolicySource fetches the effective brand configuration for a brand key.
// Lookups are best effort: callers fall back to zero-value config on error.
type PolicySource interface {
	Fetch(ctx context.Context, brandKey string) (BrandConfig, error)
}

// Defaults carries the deployment-level fallbacks consulted after brand
// config in the fee and wallet precedence chains.
type Defaults struct {
	// PlatformRecipient receives the platform share. Writes are rejected
	// when it is not a valid hex address.
	PlatformRecipient string
	// PartnerWallet is the deployment-level partner wallet fallback.
	PartnerWallet string
	// PlatformBps and PartnerBps are the sanitized environment fee values;
	// zero means unset.
	PlatformBps int
	PartnerBps  int
	// DefaultBrandKey is assumed when no brand can be resolved from the
	// request.
	DefaultBrandKey string
	// PartnerContext marks a partner-deployment container: expected
	// recipient counts are floored at three.
	PartnerContext bool
	// HostSuffix enables brand-key derivation from the request host.
	HostSuffix string
	Aliases    AliasTable
}

// ResolvePlatformBps resolves the platform fee: overrides, then brand, then
// the environment value, then DefaultFeeBps. At each step only a positive
// value wins; zero falls through to the next source.
func ResolvePlatformBps(cfg BrandConfig, envBps int) int {
	base := 0
	if cfg.Overrides.PlatformFeeBps != nil {
		base = ClampBps(*cfg.Overrides.PlatformFeeBps)
	} else if cfg.Brand.PlatformFeeBps != nil {
		base = ClampBps(*cfg.Brand.PlatformFeeBps)
	}
	if base > 0 {
		return base
	}
	if env := ClampBps(float64(envBps)); env > 0 {
		return env
	}
	return DefaultFeeBps
}

// ResolvePartnerBps resolves the partner fee with the same
// first-positive-wins chain as ResolvePlatformBps.
func ResolvePartnerBps(cfg BrandConfig, envBps int) int {
	base := 0
	if cfg.Overrides.PartnerFeeBps != nil {
		base = ClampBps(*cfg.Overrides.PartnerFeeBps)
	} else if cfg.Brand.PartnerFeeBps != nil {
		base = ClampBps(*cfg.Brand.PartnerFeeBps)
	}
	if base > 0 {
		return base
	}
	if env := ClampBps(float64(envBps)); env > 0 {
		return env
	}
	return DefaultFeeBps
}

func (p FeePolicy) partnerBase() int {
	if p.PartnerFeeBps == nil {
		return 0
	}
	return ClampBps(*p.PartnerFeeBps)
}

// BrandPartnerBps resolves the partner fee from the brand document alone,
// ignoring overrides. Used on the write path, where the config endpoint has
// already merged overrides into the brand document.
func BrandPartnerBps(brand FeePolicy, envBps int) int {
	if base := brand.partnerBase(); base > 0 {
		return base
	}
	if env := ClampBps(float64(envBps)); env > 0 {
		return env
	}
	return DefaultFeeBps
}

// BrandPlatformBps resolves the platform fee from the brand document alone.
func BrandPlatformBps(brand FeePolicy, envBps int) int {
	return ResolvePlatformBps(BrandConfig{Brand: brand}, envBps)
}

package split

import "strings"

// PlatformBrandKey is the first-party brand. Every other brand key is a
// partner brand and may carry a partner recipient in its split.
const PlatformBrandKey = "portalpay"

const (
	// LegacyDocID is the pre-brand-scoping document id. It is consulted
	// first on reads and mirrored on every write.
	LegacyDocID = "site:config"

	docIDPrefix = "site:config:"
)

// DocID returns the site-config document id for a brand. An empty brand key
// maps to the legacy id.
func DocID(brandKey string) string {
	k := strings.ToLower(strings.TrimSpace(brandKey))
	if k == "" {
		return LegacyDocID
	}
	return docIDPrefix + k
}

// IsPartnerBrand reports whether brandKey names a partner brand. The empty
// key is not a partner brand.
func IsPartnerBrand(brandKey string) bool {
	k := strings.ToLower(strings.TrimSpace(brandKey))
	return k != "" && k != PlatformBrandKey
}

// BrandKeyFromHost derives a brand key from a request host when the host
// carries the configured suffix (e.g. "acme.azurewebsites.net" with suffix
// ".azurewebsites.net" yields "acme"). Returns "" when the host does not
// match or has no subdomain label.
func BrandKeyFromHost(host, suffix string) string {
	h := strings.ToLower(strings.TrimSpace(host))
	if suffix == "" || !strings.HasSuffix(h, suffix) {
		return ""
	}
	parts := strings.Split(h, ".")
	if len(parts) < 3 {
		return ""
	}
	return parts[0]
}

// AliasTable maps deployment subdomains to canonical brand keys
// (e.g. "icunow" -> "icunow-store").
type AliasTable map[string]string

// Apply resolves key through the table, returning key unchanged when no
// alias exists. Matching is case-insensitive.
func (t AliasTable) Apply(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	if canonical, ok := t[k]; ok && canonical != "" {
		return strings.ToLower(canonical)
	}
	return k
}

package split

import "strings"

// Recipient is one leg of a payment split.
type Recipient struct {
	Address   string `json:"address"`
	SharesBps int    `json:"sharesBps"`
}

// Split is the deployed (or previewed) split configuration. Recipients are
// ordered merchant, partner (when present), platform.
type Split struct {
	Address    string      `json:"address,omitempty"`
	Recipients []Recipient `json:"recipients"`
	BrandKey   string      `json:"brandKey,omitempty"`
}

// HasAddress reports whether the split carries a deployed contract address.
func (s *Split) HasAddress() bool {
	return s != nil && IsHexAddress(s.Address)
}

// FindRecipient returns the recipient matching address (case-insensitive),
// or nil.
func FindRecipient(recipients []Recipient, address string) *Recipient {
	want := strings.ToLower(strings.TrimSpace(address))
	for i := range recipients {
		if strings.ToLower(strings.TrimSpace(recipients[i].Address)) == want {
			return &recipients[i]
		}
	}
	return nil
}

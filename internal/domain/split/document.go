package split

import (
	"encoding/json"
)

// DocumentType is the discriminator persisted on every site-config document.
const DocumentType = "site_config"

// Document is a site-config document from the config container. Beyond the
// split-relevant fields it carries arbitrary merchant data (theme, story,
// tax config, ...) in Extra, which must survive every rewrite untouched.
type Document struct {
	ID            string
	Wallet        string
	BrandKey      string
	Type          string
	SplitAddress  string
	PartnerWallet string
	Split         *Split
	UpdatedAt     int64

	// Extra holds every JSON field not modeled above, keyed by its
	// original name. Round-trips verbatim through MarshalJSON.
	Extra map[string]json.RawMessage
}

// StoredSplit returns the document's split, falling back to a bare
// address-only split when only splitAddress is set, or nil.
func (d *Document) StoredSplit() *Split {
	if d == nil {
		return nil
	}
	if d.Split != nil {
		return d.Split
	}
	if d.SplitAddress != "" {
		return &Split{Address: d.SplitAddress}
	}
	return nil
}

// HasDeployedAddress reports whether the document binds a valid split
// contract address.
func (d *Document) HasDeployedAddress() bool {
	return d != nil && IsHexAddress(d.SplitAddress)
}

// Recipients returns the persisted recipient list, never nil.
func (d *Document) Recipients() []Recipient {
	if d == nil || d.Split == nil || d.Split.Recipients == nil {
		return []Recipient{}
	}
	return d.Split.Recipients
}

// Clone deep-copies the document, including Extra.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	if d.Split != nil {
		s := *d.Split
		s.Recipients = append([]Recipient(nil), d.Split.Recipients...)
		out.Split = &s
	}
	if d.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(d.Extra))
		for k, v := range d.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &out
}

// SetConfigMirror rewrites the nested config.* mirror consumed by readers
// that predate the top-level split fields. Existing config keys not owned
// by the mirror are preserved.
func (d *Document) SetConfigMirror() {
	mirror := map[string]json.RawMessage{}
	if d.Extra != nil {
		if raw, ok := d.Extra["config"]; ok {
			_ = json.Unmarshal(raw, &mirror)
		}
	}
	var recipients []Recipient
	var address string
	if d.Split != nil {
		recipients = d.Split.Recipients
		address = d.Split.Address
	}
	if recipients == nil {
		recipients = []Recipient{}
	}
	mirror["splitAddress"], _ = json.Marshal(d.SplitAddress)
	mirror["split"], _ = json.Marshal(Split{Address: address, Recipients: recipients})
	mirror["recipients"], _ = json.Marshal(recipients)
	raw, _ := json.Marshal(mirror)
	if d.Extra == nil {
		d.Extra = map[string]json.RawMessage{}
	}
	d.Extra["config"] = raw
}

// MarshalJSON flattens the typed fields and Extra into one object. Typed
// fields win on key collisions.
func (d *Document) MarshalJSON() ([]byte, error) {
	obj := make(map[string]json.RawMessage, len(d.Extra)+8)
	for k, v := range d.Extra {
		obj[k] = v
	}
	put := func(key string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		obj[key] = raw
		return nil
	}
	if err := put("id", d.ID); err != nil {
		return nil, err
	}
	if err := put("wallet", d.Wallet); err != nil {
		return nil, err
	}
	if err := put("updatedAt", d.UpdatedAt); err != nil {
		return nil, err
	}
	if d.BrandKey != "" {
		if err := put("brandKey", d.BrandKey); err != nil {
			return nil, err
		}
	}
	if d.Type != "" {
		if err := put("type", d.Type); err != nil {
			return nil, err
		}
	}
	if d.SplitAddress != "" {
		if err := put("splitAddress", d.SplitAddress); err != nil {
			return nil, err
		}
	}
	if d.PartnerWallet != "" {
		if err := put("partnerWallet", d.PartnerWallet); err != nil {
			return nil, err
		}
	}
	if d.Split != nil {
		if err := put("split", d.Split); err != nil {
			return nil, err
		}
	}
	return json.Marshal(obj)
}

// UnmarshalJSON splits the object into typed fields and Extra.
func (d *Document) UnmarshalJSON(data []byte) error {
	obj := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	take := func(key string, dst any) error {
		raw, ok := obj[key]
		if !ok {
			return nil
		}
		delete(obj, key)
		if string(raw) == "null" {
			return nil
		}
		return json.Unmarshal(raw, dst)
	}
	*d = Document{}
	if err := take("id", &d.ID); err != nil {
		return err
	}
	if err := take("wallet", &d.Wallet); err != nil {
		return err
	}
	if err := take("brandKey", &d.BrandKey); err != nil {
		return err
	}
	if err := take("type", &d.Type); err != nil {
		return err
	}
	if err := take("splitAddress", &d.SplitAddress); err != nil {
		return err
	}
	if err := take("partnerWallet", &d.PartnerWallet); err != nil {
		return err
	}
	if err := take("split", &d.Split); err != nil {
		return err
	}
	if err := take("updatedAt", &d.UpdatedAt); err != nil {
		return err
	}
	if len(obj) > 0 {
		d.Extra = obj
	}
	return nil
}

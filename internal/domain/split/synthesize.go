package split

// Shares computes the partner and merchant shares for the given fees. The
// platform share is authoritative: the partner gets at most what remains,
// and the merchant absorbs the rest (possibly zero, never negative).
func Shares(platformBps, partnerBps int) (merchantBps, partnerShareBps int) {
	partnerShareBps = max(0, min(TotalShareBps-platformBps, partnerBps))
	merchantBps = max(0, TotalShareBps-platformBps-partnerShareBps)
	return merchantBps, partnerShareBps
}

// SynthesisInput is everything the write path needs to build a recipient
// list. Addresses are expected normalized; PartnerWallet may be empty.
type SynthesisInput struct {
	MerchantWallet    string
	PartnerWallet     string
	PlatformRecipient string
	PlatformBps       int
	PartnerBps        int
	PartnerBrand      bool
}

// SynthesizeRecipients builds the write-path recipient list: merchant first,
// partner when it earns a positive share, platform last. The partner leg is
// only considered for partner brands with a valid wallet and positive fee.
func SynthesizeRecipients(in SynthesisInput) []Recipient {
	partnerShare := 0
	if in.PartnerBrand && IsHexAddress(in.PartnerWallet) && in.PartnerBps > 0 {
		_, partnerShare = Shares(in.PlatformBps, in.PartnerBps)
	}
	merchantShare := max(0, TotalShareBps-in.PlatformBps-partnerShare)

	recipients := []Recipient{{Address: in.MerchantWallet, SharesBps: merchantShare}}
	if partnerShare > 0 {
		recipients = append(recipients, Recipient{Address: in.PartnerWallet, SharesBps: partnerShare})
	}
	return append(recipients, Recipient{Address: in.PlatformRecipient, SharesBps: in.PlatformBps})
}

// PartnerPreview builds the fixed three-way merchant/partner/platform
// preview used on reads. Unlike SynthesizeRecipients it always includes the
// partner leg, even at zero shares.
func PartnerPreview(merchant, partner, platform string, platformBps, partnerBps int) []Recipient {
	merchantShare, partnerShare := Shares(platformBps, partnerBps)
	return []Recipient{
		{Address: merchant, SharesBps: merchantShare},
		{Address: partner, SharesBps: partnerShare},
		{Address: platform, SharesBps: platformBps},
	}
}

// PlatformPreview builds the two-way merchant/platform preview for the
// first-party brand.
func PlatformPreview(merchant, platform string, platformBps int) []Recipient {
	return []Recipient{
		{Address: merchant, SharesBps: max(0, TotalShareBps-platformBps)},
		{Address: platform, SharesBps: platformBps},
	}
}

package split

// Misconfiguration reasons surfaced to clients. Detection never mutates
// stored documents; remediation happens through a redeploy.
const (
	ReasonMissingPartnerRecipient  = "missing_partner_recipient"
	ReasonMissingPlatformRecipient = "missing_platform_recipient"
	ReasonPlatformBpsMismatch      = "platform_bps_mismatch"
)

// Misconfiguration describes a persisted split that does not match the
// currently expected shape for its brand.
type Misconfiguration struct {
	ExpectedRecipients  int    `json:"expectedRecipients"`
	ActualRecipients    int    `json:"actualRecipients"`
	Reason              string `json:"reason"`
	NeedsRedeploy       bool   `json:"needsRedeploy"`
	BrandKey            string `json:"brandKey"`
	ExpectedPlatformBps int    `json:"expectedPlatformBps,omitempty"`
	ActualPlatformBps   *int   `json:"actualPlatformBps,omitempty"`
}

// ExpectedRecipients returns the recipient count a well-formed split should
// have on the read path: three when a partner is resolvable with a positive
// fee, otherwise two. Partner-context deployments are floored at three.
func ExpectedRecipients(partnerWallet string, partnerBps int, partnerContext bool) int {
	expected := 2
	if IsHexAddress(partnerWallet) && partnerBps > 0 {
		expected = 3
	}
	if partnerContext {
		return max(expected, 3)
	}
	return expected
}

// ExpectedRecipientsForWrite returns the expected count used by the write
// path. It differs from the read path: the partner leg is expected whenever
// the brand document carries a partnerFeeBps value at all (even zero), and
// partner brands are always floored at three.
func ExpectedRecipientsForWrite(partnerWallet string, brandHasPartnerFee, partnerBrand bool) int {
	expected := 2
	if IsHexAddress(partnerWallet) && brandHasPartnerFee {
		expected = 3
	}
	if partnerBrand {
		return max(expected, 3)
	}
	return expected
}

// CheckRecipientCount flags a deployed split with fewer recipients than
// expected. Splits without an address are previews and never flagged.
func CheckRecipientCount(s *Split, expected int, brandKey string) *Misconfiguration {
	if s == nil || s.Address == "" {
		return nil
	}
	actual := len(s.Recipients)
	if actual >= expected {
		return nil
	}
	return &Misconfiguration{
		ExpectedRecipients: expected,
		ActualRecipients:   actual,
		Reason:             ReasonMissingPartnerRecipient,
		NeedsRedeploy:      true,
		BrandKey:           brandKey,
	}
}

// CheckPlatformRecipient verifies the platform leg of a deployed split: it
// must exist and carry exactly the expected platform bps.
func CheckPlatformRecipient(s *Split, platformRecipient string, expectedPlatformBps, expected int, brandKey string) *Misconfiguration {
	if s == nil || s.Address == "" {
		return nil
	}
	actual := len(s.Recipients)
	rec := FindRecipient(s.Recipients, platformRecipient)
	if rec == nil {
		return &Misconfiguration{
			ExpectedRecipients:  max(3, expected),
			ActualRecipients:    actual,
			Reason:              ReasonMissingPlatformRecipient,
			NeedsRedeploy:       true,
			BrandKey:            brandKey,
			ExpectedPlatformBps: expectedPlatformBps,
		}
	}
	actualBps := ClampBps(float64(rec.SharesBps))
	if actualBps == expectedPlatformBps {
		return nil
	}
	return &Misconfiguration{
		ExpectedRecipients:  expected,
		ActualRecipients:    actual,
		Reason:              ReasonPlatformBpsMismatch,
		NeedsRedeploy:       true,
		BrandKey:            brandKey,
		ExpectedPlatformBps: expectedPlatformBps,
		ActualPlatformBps:   &actualBps,
	}
}

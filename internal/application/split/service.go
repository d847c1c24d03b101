// Package split orchestrates payment-split resolution: it combines the
// site-config document store, the brand policy source and the deployment
// defaults into the read and write operations exposed over HTTP.
package split

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/portalpay/backend/internal/domain/shared"
	"github.com/portalpay/backend/internal/domain/split"
)

// Service resolves split status and handles deploy writes.
type Service struct {
	store    split.ConfigStore
	policies split.PolicySource
	defaults split.Defaults
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the timestamp source, used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a split service.
func NewService(store split.ConfigStore, policies split.PolicySource, defaults split.Defaults, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		policies: policies,
		defaults: defaults,
		logger:   logger.Named("split"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Defaults exposes the deployment defaults the service was built with.
func (s *Service) Defaults() split.Defaults {
	return s.defaults
}

// StatusQuery identifies the merchant and brand a status read is for.
type StatusQuery struct {
	// Wallet is the normalized merchant wallet.
	Wallet string
	// BrandKey is the requested brand key as resolved from the request;
	// may be empty.
	BrandKey string
}

// Status resolves the split state for an authenticated read. The legacy
// document is consulted first; reads never mutate storage.
func (s *Service) Status(ctx context.Context, q StatusQuery) *StatusPayload {
	legacy := s.read(ctx, split.LegacyDocID, q.Wallet)
	if legacyHasSplit(legacy) && (q.BrandKey == "" || strings.EqualFold(q.BrandKey, split.PlatformBrandKey)) {
		return s.legacyStatus(ctx, legacy, q.BrandKey, q.Wallet)
	}

	doc := s.read(ctx, split.DocID(q.BrandKey), q.Wallet)
	if doc == nil {
		return s.fallbackStatus(ctx, q.BrandKey, q.Wallet)
	}
	return s.scopedStatus(ctx, doc, q.BrandKey, q.Wallet)
}

// PreviewQuery drives an unauthenticated preview synthesis.
type PreviewQuery struct {
	BrandKey string
	// Wallet is the optional merchant wallet from the query string.
	Wallet string
}

// Preview synthesizes the expected split for partner containers without
// authentication. It never reads or writes storage.
func (s *Service) Preview(ctx context.Context, q PreviewQuery) *StatusPayload {
	bKey := strings.ToLower(strings.TrimSpace(q.BrandKey))
	cfg := s.fetchConfig(ctx, bKey)

	platformRecipient := split.NormalizeAddress(s.defaults.PlatformRecipient)
	partnerWallet := split.FirstNonEmpty(cfg.Overrides.PartnerWallet, cfg.Brand.PartnerWallet, s.defaults.PartnerWallet)
	partnerBps := split.ResolvePartnerBps(cfg, s.defaults.PartnerBps)
	platformBps := split.ResolvePlatformBps(cfg, s.defaults.PlatformBps)
	merchant := ""
	if split.IsHexAddress(q.Wallet) {
		merchant = split.NormalizeAddress(q.Wallet)
	}

	s.logger.Debug("unauthenticated split preview",
		zap.String("brand_key", bKey),
		zap.String("partner_wallet", partnerWallet),
		zap.Int("partner_bps", partnerBps),
		zap.String("wallet", merchant),
	)

	if split.IsPartnerBrand(bKey) &&
		split.IsHexAddress(platformRecipient) &&
		split.IsHexAddress(partnerWallet) &&
		partnerBps > 0 && merchant != "" {
		payload := &StatusPayload{
			Split:    &SplitView{Recipients: split.PartnerPreview(merchant, partnerWallet, platformRecipient, platformBps, partnerBps)},
			BrandKey: bKey,
		}
		payload.setRequiresDeploy(true, ReasonUnauthenticatedPreview)
		return payload
	}

	payload := &StatusPayload{
		Split:    &SplitView{Recipients: []split.Recipient{}},
		BrandKey: bKey,
	}
	payload.setRequiresDeploy(true, ReasonPartnerConfigMissing)
	return payload
}

// legacyStatus serves reads answered by the pre-brand-scoping document.
// The requested brand key wins over the stored one in the returned view.
func (s *Service) legacyStatus(ctx context.Context, doc *split.Document, requestedBrand, wallet string) *StatusPayload {
	stored := doc.StoredSplit()
	viewBrand := split.FirstNonEmpty(requestedBrand, doc.BrandKey)
	payload := &StatusPayload{
		Split:    viewOf(stored, viewBrand),
		BrandKey: coalesce(requestedBrand, doc.BrandKey),
		Legacy:   true,
	}

	bKey := split.FirstNonEmpty(doc.BrandKey, requestedBrand)
	cfg := s.fetchConfig(ctx, bKey)
	platformRecipient := split.NormalizeAddress(s.defaults.PlatformRecipient)

	if split.IsPartnerBrand(bKey) {
		partnerEffective := split.FirstNonEmpty(cfg.Overrides.PartnerWallet, cfg.Brand.PartnerWallet, s.defaults.PartnerWallet)
		partnerBps := split.ResolvePartnerBps(cfg, s.defaults.PartnerBps)
		expected := split.ExpectedRecipients(partnerEffective, partnerBps, s.defaults.PartnerContext)
		s.logger.Debug("legacy split misconfiguration check",
			zap.String("brand_key", bKey),
			zap.String("partner_wallet", partnerEffective),
			zap.Int("partner_bps", partnerBps),
			zap.Int("expected", expected),
		)
		if mis := split.CheckRecipientCount(stored, expected, bKey); mis != nil {
			payload.MisconfiguredSplit = mis
			// Non-persisted preview with the correct three legs.
			if split.IsHexAddress(platformRecipient) && split.IsHexAddress(partnerEffective) && partnerBps > 0 {
				platformBps := split.ResolvePlatformBps(cfg, s.defaults.PlatformBps)
				preview := split.PartnerPreview(wallet, partnerEffective, platformRecipient, platformBps, partnerBps)
				if payload.Split == nil {
					payload.Split = &SplitView{Address: stored.Address, Recipients: preview}
				} else {
					payload.Split.Recipients = preview
				}
			}
		}
	}

	if split.IsHexAddress(platformRecipient) {
		partnerWallet := split.FirstNonEmpty(cfg.Overrides.PartnerWallet, cfg.Brand.PartnerWallet, doc.PartnerWallet, s.defaults.PartnerWallet)
		partnerBps := split.ResolvePartnerBps(cfg, s.defaults.PartnerBps)
		platformBps := split.ResolvePlatformBps(cfg, s.defaults.PlatformBps)

		if bKey != split.PlatformBrandKey {
			if split.IsHexAddress(partnerWallet) && partnerBps > 0 {
				preview := split.PartnerPreview(wallet, partnerWallet, platformRecipient, platformBps, partnerBps)
				if payload.Split == nil {
					payload.Split = &SplitView{Recipients: preview}
				} else if len(payload.Split.Recipients) < 3 {
					payload.Split.Recipients = preview
				}
				if payload.Split.HasAddress() {
					payload.setRequiresDeploy(false, "")
				} else {
					payload.setRequiresDeploy(true, ReasonNoSplitForPartnerBrand)
				}
			} else {
				payload.setRequiresDeploy(true, ReasonPartnerConfigMissing)
				if payload.Split == nil {
					payload.Split = &SplitView{}
				}
				payload.Split.Recipients = []split.Recipient{}
			}
		} else {
			preview := split.PlatformPreview(wallet, platformRecipient, platformBps)
			if payload.Split == nil {
				payload.Split = &SplitView{Recipients: preview}
			} else if len(payload.Split.Recipients) < 3 {
				payload.Split.Recipients = preview
			}
		}
	}

	return payload
}

// scopedStatus serves reads answered by the brand-scoped document.
func (s *Service) scopedStatus(ctx context.Context, doc *split.Document, requestedBrand, wallet string) *StatusPayload {
	stored := doc.StoredSplit()
	viewBrand := split.FirstNonEmpty(requestedBrand, doc.BrandKey)
	payload := &StatusPayload{
		Split:    viewOf(stored, viewBrand),
		BrandKey: coalesce(requestedBrand, doc.BrandKey),
	}

	bKey := split.FirstNonEmpty(doc.BrandKey, requestedBrand)
	cfg := s.fetchConfig(ctx, bKey)
	platformRecipient := split.NormalizeAddress(s.defaults.PlatformRecipient)

	if split.IsPartnerBrand(bKey) {
		partnerEffective := split.FirstNonEmpty(cfg.Overrides.PartnerWallet, cfg.Brand.PartnerWallet, s.defaults.PartnerWallet)
		partnerBps := split.ResolvePartnerBps(cfg, s.defaults.PartnerBps)
		expected := split.ExpectedRecipients(partnerEffective, partnerBps, s.defaults.PartnerContext)
		if mis := split.CheckRecipientCount(stored, expected, bKey); mis != nil {
			payload.MisconfiguredSplit = mis
			if split.IsHexAddress(platformRecipient) && split.IsHexAddress(partnerEffective) && partnerBps > 0 {
				platformBps := split.ResolvePlatformBps(cfg, s.defaults.PlatformBps)
				preview := split.PartnerPreview(wallet, partnerEffective, platformRecipient, platformBps, partnerBps)
				if payload.Split == nil {
					payload.Split = &SplitView{Address: stored.Address, Recipients: preview}
				} else {
					payload.Split.Recipients = preview
				}
			}
		}

		// Platform leg checks run against the persisted recipients, not
		// the preview override above. A later finding replaces an earlier
		// one.
		expectedPlatformBps := split.ResolvePlatformBps(cfg, s.defaults.PlatformBps)
		if mis := split.CheckPlatformRecipient(stored, platformRecipient, expectedPlatformBps, expected, bKey); mis != nil {
			payload.MisconfiguredSplit = mis
		}
	}

	// When nothing is deployed yet, synthesize the expected recipients so
	// clients can render the correct preview. Overrides are not consulted
	// here; the brand document alone drives the synthesis.
	if split.IsHexAddress(platformRecipient) {
		partnerWallet := split.FirstNonEmpty(cfg.Brand.PartnerWallet, doc.PartnerWallet, s.defaults.PartnerWallet)
		partnerBps := brandPartnerBpsForPreview(cfg.Brand, s.defaults)
		platformBps := split.BrandPlatformBps(cfg.Brand, s.defaults.PlatformBps)

		if bKey != split.PlatformBrandKey {
			if split.IsHexAddress(partnerWallet) && partnerBps > 0 {
				preview := split.PartnerPreview(wallet, partnerWallet, platformRecipient, platformBps, partnerBps)
				if payload.Split.HasAddress() {
					payload.setRequiresDeploy(false, "")
				} else {
					if payload.Split == nil {
						payload.Split = &SplitView{Recipients: preview}
					} else if len(payload.Split.Recipients) == 0 {
						payload.Split.Recipients = preview
					}
					payload.setRequiresDeploy(true, ReasonNoSplitForPartnerBrand)
				}
			} else {
				payload.setRequiresDeploy(true, ReasonPartnerConfigMissing)
				if payload.Split == nil {
					payload.Split = &SplitView{}
				}
				payload.Split.Recipients = []split.Recipient{}
			}
		} else if !payload.Split.HasAddress() {
			preview := split.PlatformPreview(wallet, platformRecipient, platformBps)
			if payload.Split == nil {
				payload.Split = &SplitView{Recipients: preview}
			} else if len(payload.Split.Recipients) == 0 {
				payload.Split.Recipients = preview
			}
		}
	}

	return payload
}

// fallbackStatus serves reads with no persisted document at all.
func (s *Service) fallbackStatus(ctx context.Context, requestedBrand, wallet string) *StatusPayload {
	bKey := strings.ToLower(strings.TrimSpace(requestedBrand))
	cfg := s.fetchConfig(ctx, bKey)
	platformRecipient := split.NormalizeAddress(s.defaults.PlatformRecipient)
	platformBps := split.BrandPlatformBps(cfg.Brand, s.defaults.PlatformBps)
	partnerWallet := split.FirstNonEmpty(cfg.Brand.PartnerWallet, s.defaults.PartnerWallet)
	partnerBps := split.BrandPartnerBps(cfg.Brand, s.defaults.PartnerBps)

	s.logger.Debug("split status fallback synthesis",
		zap.String("brand_key", bKey),
		zap.String("partner_wallet", partnerWallet),
		zap.Int("partner_bps", partnerBps),
		zap.Bool("partner_brand", split.IsPartnerBrand(bKey)),
	)

	if split.IsPartnerBrand(bKey) {
		if split.IsHexAddress(platformRecipient) && split.IsHexAddress(partnerWallet) && partnerBps > 0 {
			payload := &StatusPayload{
				Split:    &SplitView{Recipients: split.PartnerPreview(wallet, partnerWallet, platformRecipient, platformBps, partnerBps)},
				BrandKey: requestedBrand,
			}
			payload.setRequiresDeploy(true, ReasonNoSplitForPartnerBrand)
			return payload
		}
		payload := &StatusPayload{
			Split:    &SplitView{Recipients: []split.Recipient{}},
			BrandKey: requestedBrand,
		}
		payload.setRequiresDeploy(true, ReasonPartnerConfigMissing)
		return payload
	}

	recipients := []split.Recipient{{Address: wallet, SharesBps: max(0, split.TotalShareBps-platformBps)}}
	if split.IsHexAddress(platformRecipient) {
		recipients = split.PlatformPreview(wallet, platformRecipient, platformBps)
	}
	return &StatusPayload{
		Split:    &SplitView{Recipients: recipients},
		BrandKey: requestedBrand,
	}
}

// DeployCommand is a write request: bind (or rebind) a split address and
// persist the synthesized recipients for the merchant and brand.
type DeployCommand struct {
	// Wallet is the normalized merchant wallet.
	Wallet string
	// BrandKey is the resolved, aliased brand key.
	BrandKey string
	// ProvidedAddress is the raw caller-supplied split address, usually
	// from a deployment pipeline. Invalid values are ignored.
	ProvidedAddress string
}

// Deploy runs the write-path state machine and persists through the
// dual-document mirror (brand-scoped doc plus legacy doc).
func (s *Service) Deploy(ctx context.Context, cmd DeployCommand) (*DeployResult, error) {
	brandKey := strings.ToLower(strings.TrimSpace(cmd.BrandKey))
	brand := s.writeBrand(ctx, brandKey)

	platformRecipient := split.NormalizeAddress(s.defaults.PlatformRecipient)
	if !split.IsHexAddress(platformRecipient) {
		return nil, shared.NewDomainError(ErrCodePlatformRecipientMissing, "platform recipient is not configured")
	}

	platformBps := split.BrandPlatformBps(brand, s.defaults.PlatformBps)
	isPartnerBrand := brandKey != split.PlatformBrandKey
	docID := split.DocID(brandKey)

	prev := s.read(ctx, docID, cmd.Wallet)
	prevPartner := ""
	if prev != nil {
		prevPartner = prev.PartnerWallet
	}
	partnerWallet := split.FirstHexAddress(brand.PartnerWallet, prevPartner)
	partnerBps := split.BrandPartnerBps(brand, s.defaults.PartnerBps)

	recipients := split.SynthesizeRecipients(split.SynthesisInput{
		MerchantWallet:    cmd.Wallet,
		PartnerWallet:     partnerWallet,
		PlatformRecipient: platformRecipient,
		PlatformBps:       platformBps,
		PartnerBps:        partnerBps,
		PartnerBrand:      isPartnerBrand,
	})

	s.logger.Info("split deploy synthesis",
		zap.String("brand_key", brandKey),
		zap.String("wallet", cmd.Wallet),
		zap.String("partner_wallet", partnerWallet),
		zap.Int("platform_bps", platformBps),
		zap.Int("partner_bps", partnerBps),
	)

	provided := ""
	if split.IsHexAddress(cmd.ProvidedAddress) {
		provided = split.NormalizeAddress(cmd.ProvidedAddress)
	}

	expected := split.ExpectedRecipientsForWrite(partnerWallet, brand.PartnerFeeBps != nil, isPartnerBrand)
	decision := split.DecideWrite(prev, provided, expected, platformRecipient, platformBps)

	switch decision.Kind {
	case split.DecisionUpdate:
		address := provided
		if address == "" {
			address = split.NormalizeAddress(prev.SplitAddress)
		}
		next := s.buildDocument(prev, docID, cmd.Wallet, brandKey, address, partnerWallet, recipients)
		if err := s.writeMirrored(ctx, next); err != nil {
			return nil, err
		}
		return &DeployResult{
			OK:      true,
			Split:   &SplitView{Address: next.Split.Address, Recipients: next.Split.Recipients},
			Updated: true,
		}, nil

	case split.DecisionRedeploy:
		idempotent := false
		return &DeployResult{
			OK:               true,
			RequiresRedeploy: true,
			Split:            &SplitView{Address: prev.SplitAddress, Recipients: prev.Recipients()},
			BrandKey:         brandKey,
			Idempotent:       &idempotent,
		}, nil

	case split.DecisionIdempotent:
		idempotent := true
		recs := prev.Recipients()
		if len(recs) == 0 {
			recs = recipients
		}
		return &DeployResult{
			OK:         true,
			Split:      &SplitView{Address: prev.SplitAddress, Recipients: recs},
			BrandKey:   prev.BrandKey,
			Idempotent: &idempotent,
		}, nil
	}

	next := s.buildDocument(prev, docID, cmd.Wallet, brandKey, provided, partnerWallet, recipients)
	if err := s.writeMirrored(ctx, next); err != nil {
		return nil, err
	}
	if provided != "" {
		return &DeployResult{
			OK:    true,
			Split: &SplitView{Address: provided, Recipients: next.Split.Recipients},
		}, nil
	}
	return &DeployResult{
		OK:       true,
		Degraded: true,
		Reason:   ReasonDeploymentNotConfigured,
		Split:    &SplitView{Recipients: next.Split.Recipients},
	}, nil
}

func (s *Service) buildDocument(prev *split.Document, docID, wallet, brandKey, address, partnerWallet string, recipients []split.Recipient) *split.Document {
	next := prev.Clone()
	if next == nil {
		next = &split.Document{}
	}
	next.ID = docID
	next.Wallet = wallet
	next.BrandKey = brandKey
	next.Type = split.DocumentType
	next.UpdatedAt = s.now().UnixMilli()
	next.SplitAddress = address
	next.PartnerWallet = partnerWallet
	next.Split = &split.Split{Address: address, Recipients: recipients, BrandKey: brandKey}
	next.SetConfigMirror()
	return next
}

// writeMirrored upserts the brand-scoped document, then its legacy mirror.
// The writes are sequential and not atomic; the mirror carries identical
// split fields and timestamp.
func (s *Service) writeMirrored(ctx context.Context, doc *split.Document) error {
	if err := s.store.Upsert(ctx, doc); err != nil {
		return err
	}
	mirror := doc.Clone()
	mirror.ID = split.LegacyDocID
	return s.store.Upsert(ctx, mirror)
}

// read performs a point read, treating store failures as absence so reads
// keep their defaults-on-absence behavior. Failures are still logged.
func (s *Service) read(ctx context.Context, docID, wallet string) *split.Document {
	res := s.store.Read(ctx, docID, wallet)
	if res.Outcome == split.ReadFailed {
		s.logger.Warn("site config read failed",
			zap.String("doc_id", docID),
			zap.String("wallet", wallet),
			zap.Error(res.Err),
		)
		return nil
	}
	return res.Doc
}

// fetchConfig fetches the effective brand config, best effort: errors and
// empty brand keys yield the zero config.
func (s *Service) fetchConfig(ctx context.Context, brandKey string) split.BrandConfig {
	if strings.TrimSpace(brandKey) == "" {
		return split.BrandConfig{}
	}
	cfg, err := s.policies.Fetch(ctx, brandKey)
	if err != nil {
		s.logger.Warn("brand config fetch failed", zap.String("brand_key", brandKey), zap.Error(err))
		return split.BrandConfig{}
	}
	return cfg
}

// writeBrand fetches the brand document for a write. Unlike reads, a fetch
// failure falls back to a neutral stub carrying the default fees, so the
// write path always has numeric fee fields to work with.
func (s *Service) writeBrand(ctx context.Context, brandKey string) split.FeePolicy {
	cfg, err := s.policies.Fetch(ctx, brandKey)
	if err != nil {
		s.logger.Warn("brand config fetch failed on write, using stub", zap.String("brand_key", brandKey), zap.Error(err))
		return stubBrand()
	}
	if cfg.Brand.PlatformFeeBps == nil && cfg.Brand.PartnerFeeBps == nil && cfg.Brand.PartnerWallet == "" {
		return stubBrand()
	}
	return cfg.Brand
}

func stubBrand() split.FeePolicy {
	platform := float64(split.DefaultFeeBps)
	partner := float64(split.DefaultFeeBps)
	return split.FeePolicy{PlatformFeeBps: &platform, PartnerFeeBps: &partner}
}

func legacyHasSplit(doc *split.Document) bool {
	if doc == nil {
		return false
	}
	return doc.SplitAddress != "" || (doc.Split != nil && doc.Split.Address != "")
}

// coalesce returns the first non-empty string without normalizing case.
func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// brandPartnerBpsForPreview is the partner-fee chain used by the
// no-recipients preview: the brand value when positive, else the
// environment value only in partner-context deployments.
func brandPartnerBpsForPreview(brand split.FeePolicy, d split.Defaults) int {
	base := 0
	if brand.PartnerFeeBps != nil {
		base = split.ClampBps(*brand.PartnerFeeBps)
	}
	if base > 0 {
		return base
	}
	if d.PartnerContext {
		return split.ClampBps(float64(d.PartnerBps))
	}
	return base
}

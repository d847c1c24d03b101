package split

import (
	"github.com/portalpay/backend/internal/domain/split"
)

// SplitView is the wire shape of a split in status and deploy responses.
type SplitView struct {
	Address    string            `json:"address,omitempty"`
	Recipients []split.Recipient `json:"recipients"`
	BrandKey   string            `json:"brandKey,omitempty"`
}

// HasAddress reports whether the view carries a valid deployed address.
func (v *SplitView) HasAddress() bool {
	return v != nil && split.IsHexAddress(v.Address)
}

// StatusPayload is the GET /api/split/deploy response body. The shape is a
// wire contract consumed by existing portal clients and is emitted raw,
// without the standard response envelope.
type StatusPayload struct {
	Split              *SplitView              `json:"split,omitempty"`
	BrandKey           string                  `json:"brandKey,omitempty"`
	Legacy             bool                    `json:"legacy,omitempty"`
	MisconfiguredSplit *split.Misconfiguration `json:"misconfiguredSplit,omitempty"`
	RequiresDeploy     *bool                   `json:"requiresDeploy,omitempty"`
	Reason             string                  `json:"reason,omitempty"`
}

func (p *StatusPayload) setRequiresDeploy(v bool, reason string) {
	p.RequiresDeploy = &v
	p.Reason = reason
}

// DeployResult is the POST /api/split/deploy response body.
type DeployResult struct {
	OK               bool       `json:"ok"`
	Split            *SplitView `json:"split,omitempty"`
	BrandKey         string     `json:"brandKey,omitempty"`
	Updated          bool       `json:"updated,omitempty"`
	RequiresRedeploy bool       `json:"requiresRedeploy,omitempty"`
	Idempotent       *bool      `json:"idempotent,omitempty"`
	Degraded         bool       `json:"degraded,omitempty"`
	Reason           string     `json:"reason,omitempty"`
}

// Status and preview reasons reported to clients.
const (
	ReasonNoSplitForPartnerBrand    = "no_split_for_partner_brand"
	ReasonPartnerConfigMissing      = "partner_config_missing"
	ReasonUnauthenticatedPreview    = "unauthenticated_preview"
	ReasonDeploymentNotConfigured   = "deployment_not_configured"
	ErrCodePlatformRecipientMissing = "platform_recipient_not_configured"
	ErrCodeBrandNotConfigured       = "brand_not_configured"
)

func viewOf(s *split.Split, brandKey string) *SplitView {
	if s == nil {
		return nil
	}
	recipients := s.Recipients
	if recipients == nil {
		recipients = []split.Recipient{}
	}
	return &SplitView{Address: s.Address, Recipients: recipients, BrandKey: brandKey}
}

package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appsplit "github.com/portalpay/backend/internal/application/split"
	"github.com/portalpay/backend/internal/domain/shared"
	"github.com/portalpay/backend/internal/domain/split"
	"github.com/portalpay/backend/internal/infrastructure/auth"
	"github.com/portalpay/backend/internal/interfaces/http/dto"
	"github.com/portalpay/backend/internal/interfaces/http/middleware"
)

// SplitConfig carries the brand resolution and CSRF settings the split
// endpoints need.
type SplitConfig struct {
	// DefaultBrandKey is the deployment's own brand, used when neither the
	// request nor the host names one.
	DefaultBrandKey string
	// HostSuffix enables brand derivation from the request host
	// (e.g. ".azurewebsites.net").
	HostSuffix string
	// Aliases maps deployment subdomains to canonical brand keys.
	Aliases split.AliasTable
	// CSRF is the same-origin guard configuration for writes.
	CSRF middleware.CSRFConfig
}

// SplitHandler serves the per-merchant split configuration API. Responses
// are raw wire-contract payloads, not the standard envelope, because
// deployed portal clients parse them directly.
type SplitHandler struct {
	BaseHandler
	service *appsplit.Service
	cfg     SplitConfig
	logger  *zap.Logger
}

// NewSplitHandler creates a new SplitHandler
func NewSplitHandler(service *appsplit.Service, cfg SplitConfig, logger *zap.Logger) *SplitHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SplitHandler{
		service: service,
		cfg:     cfg,
		logger:  logger.Named("split_handler"),
	}
}

// RegisterRoutes mounts the split endpoints on the given group.
func (h *SplitHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/split")
	g.GET("/deploy", h.GetDeploy)
	g.POST("/deploy", h.PostDeploy)
}

// deployRequest is the POST body. Unknown fields are ignored and a missing
// or malformed body is treated as empty, matching existing clients that
// post bare triggers.
type deployRequest struct {
	SplitAddress string `json:"splitAddress"`
	BrandKey     string `json:"brandKey"`
}

// GetDeploy returns the split configuration for a merchant wallet. Callers
// without credentials get a synthesized preview for partner containers
// instead of a rejection.
func (h *SplitHandler) GetDeploy(c *gin.Context) {
	brandKey := h.readBrandKey(c)
	caller, _ := middleware.GetCaller(c)

	h.logger.Debug("brand key resolved",
		zap.String("brand_key", brandKey),
		zap.String("host", requestHost(c)),
	)

	wallet := ""
	if readAuthorized(caller) {
		wallet = caller.Wallet
	} else if hw := c.GetHeader(middleware.WalletHeader); split.IsHexAddress(hw) {
		// A bearer or API-key caller without the read scope does not block
		// the wallet-header identity; the header still grants reads.
		wallet = split.NormalizeAddress(hw)
	}

	if wallet == "" {
		payload := h.service.Preview(c.Request.Context(), appsplit.PreviewQuery{
			BrandKey: brandKey,
			Wallet:   c.Query("wallet"),
		})
		c.JSON(http.StatusOK, payload)
		return
	}

	// An explicit wallet query param overrides the resolved wallet so
	// partner portals can preview a merchant's split.
	if qw := c.Query("wallet"); split.IsHexAddress(qw) {
		wallet = split.NormalizeAddress(qw)
	}

	payload := h.service.Status(c.Request.Context(), appsplit.StatusQuery{
		Wallet:   wallet,
		BrandKey: brandKey,
	})
	c.JSON(http.StatusOK, payload)
}

// PostDeploy idempotently binds a split address and persists the
// synthesized recipients for the merchant and brand.
func (h *SplitHandler) PostDeploy(c *gin.Context) {
	var req deployRequest
	_ = c.ShouldBindJSON(&req)

	// Writes are allowed on two paths: the deployment pipeline asserts the
	// merchant via X-Wallet, and authenticated callers need the write scope.
	// A read-only token must not bind split addresses.
	headerWallet := c.GetHeader(middleware.WalletHeader)
	caller, _ := middleware.GetCaller(c)

	wallet := ""
	switch {
	case split.IsHexAddress(headerWallet):
		wallet = split.NormalizeAddress(headerWallet)
	case writeAuthorized(caller):
		wallet = split.NormalizeAddress(caller.Wallet)
	}
	if wallet == "" {
		c.JSON(http.StatusForbidden, dto.NewRawError(dto.SplitErrForbidden))
		return
	}

	// Deployment pipelines bind addresses with a valid splitAddress plus
	// X-Wallet and carry no browser origin, so they bypass the same-origin
	// guard. Everything else is treated as a UI write.
	skipCSRF := split.IsHexAddress(req.SplitAddress) && split.IsHexAddress(headerWallet)
	if !skipCSRF && !middleware.RequireCSRF(c, h.cfg.CSRF) {
		return
	}

	brandKey := h.writeBrandKey(c, req.BrandKey)
	if brandKey == "" {
		c.JSON(http.StatusBadRequest, dto.NewRawError(dto.SplitErrBrandNotConfigured))
		return
	}

	result, err := h.service.Deploy(c.Request.Context(), appsplit.DeployCommand{
		Wallet:          wallet,
		BrandKey:        brandKey,
		ProvidedAddress: req.SplitAddress,
	})
	if err != nil {
		h.rawError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// readBrandKey resolves the brand for reads: explicit query param first,
// then the host subdomain (aliased), then the deployment default. Query
// values are passed through unaliased, matching historical behavior.
func (h *SplitHandler) readBrandKey(c *gin.Context) string {
	if bk := c.Query("brandKey"); bk != "" {
		return bk
	}
	if sub := split.BrandKeyFromHost(requestHost(c), h.cfg.HostSuffix); sub != "" {
		return h.cfg.Aliases.Apply(sub)
	}
	return h.cfg.DefaultBrandKey
}

// writeBrandKey resolves the brand for writes: body first, then query,
// then the deployment default, then the host subdomain. The alias table is
// applied to whatever wins.
func (h *SplitHandler) writeBrandKey(c *gin.Context, bodyBrand string) string {
	body := strings.ToLower(strings.TrimSpace(bodyBrand))
	query := c.Query("brandKey")

	brandKey := body
	if brandKey == "" {
		brandKey = query
	}
	if brandKey == "" {
		brandKey = h.cfg.DefaultBrandKey
	}
	if body == "" && query == "" && brandKey == "" {
		brandKey = split.BrandKeyFromHost(requestHost(c), h.cfg.HostSuffix)
	}
	return h.cfg.Aliases.Apply(brandKey)
}

// rawError writes a wire-contract error body. Domain error codes map to
// their contract status; anything else is a 500 with the error text.
func (h *SplitHandler) rawError(c *gin.Context, err error) {
	if domainErr, ok := shared.AsDomainError(err); ok {
		c.JSON(dto.GetHTTPStatus(domainErr.Code), dto.NewRawError(domainErr.Code))
		return
	}
	h.logger.Error("split deploy failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, dto.NewRawError(err.Error()))
}

// readAuthorized reports whether the caller may read persisted split state.
// Wallet-header callers are trusted for reads; token and API-key callers
// need the read scope.
func readAuthorized(caller *middleware.Caller) bool {
	if caller == nil || !split.IsHexAddress(caller.Wallet) {
		return false
	}
	if caller.Source == middleware.CallerSourceWalletHdr {
		return true
	}
	return caller.HasScope(auth.ScopeSplitRead)
}

// writeAuthorized reports whether the caller may persist split state on its
// own identity. Token and API-key callers need the write scope; the
// wallet-header path is handled by the caller via the header itself.
func writeAuthorized(caller *middleware.Caller) bool {
	if caller == nil || !split.IsHexAddress(caller.Wallet) {
		return false
	}
	return caller.HasScope(auth.ScopeSplitWrite)
}

// requestHost returns the externally visible host, preferring the
// forwarded host set by the gateway.
func requestHost(c *gin.Context) string {
	if fh := c.GetHeader("X-Forwarded-Host"); fh != "" {
		return fh
	}
	return c.Request.Host
}

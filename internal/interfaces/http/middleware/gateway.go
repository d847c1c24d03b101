package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/portalpay/backend/internal/domain/split"
	"github.com/portalpay/backend/internal/infrastructure/auth"
)

// Gateway context keys
const (
	// CallerKey is the gin context key for the resolved caller identity
	CallerKey = "gateway_caller"

	// WalletHeader carries the caller wallet for gateway-fronted requests
	WalletHeader = "X-Wallet"
	// APIKeyHeader carries a gateway subscription key
	APIKeyHeader = "X-Api-Key"
	// SubscriptionKeyHeader is the Azure API Management subscription key
	// header, accepted as an alias for APIKeyHeader
	SubscriptionKeyHeader = "Ocp-Apim-Subscription-Key"

	// AuthHeaderKey and BearerPrefix describe the standard bearer scheme
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// Caller sources, in decreasing order of trust.
const (
	CallerSourceJWT       = "jwt"
	CallerSourceAPIKey    = "api_key"
	CallerSourceWalletHdr = "wallet_header"
)

// Caller is the authenticated (or asserted) identity of a request. The
// split endpoints degrade gracefully, so requests without any caller are
// passed through and handlers decide how much to reveal.
type Caller struct {
	Wallet string
	Scopes []string
	Source string
}

// HasScope reports whether the caller holds the scope. The admin scope
// grants everything. Wallet-header callers carry no scopes.
func (c *Caller) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	for _, s := range c.Scopes {
		if s == scope || s == auth.ScopeAdmin {
			return true
		}
	}
	return false
}

// GatewayConfig holds configuration for the gateway auth middleware
type GatewayConfig struct {
	// JWTService validates bearer tokens. Required.
	JWTService *auth.JWTService
	// TokenBlacklist is optional for checking revoked tokens
	TokenBlacklist auth.TokenBlacklist
	// APIKeys maps gateway subscription keys to the scopes they grant.
	// API-key callers take their wallet from the X-Wallet header.
	APIKeys map[string][]string
	// Logger for middleware logging
	Logger *zap.Logger
}

// OptionalAuth resolves the caller identity without rejecting anything.
// Trust order: bearer token, then gateway API key, then bare X-Wallet
// header. Handlers inspect the caller and decide per endpoint.
func OptionalAuth(cfg GatewayConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if caller := resolveCaller(c, cfg); caller != nil {
			c.Set(CallerKey, caller)
		}
		c.Next()
	}
}

// GetCaller retrieves the resolved caller from the gin context
func GetCaller(c *gin.Context) (*Caller, bool) {
	v, ok := c.Get(CallerKey)
	if !ok {
		return nil, false
	}
	caller, ok := v.(*Caller)
	return caller, ok
}

func resolveCaller(c *gin.Context, cfg GatewayConfig) *Caller {
	if caller := bearerCaller(c, cfg); caller != nil {
		return caller
	}
	if caller := apiKeyCaller(c, cfg); caller != nil {
		return caller
	}
	if wallet := c.GetHeader(WalletHeader); split.IsHexAddress(wallet) {
		return &Caller{
			Wallet: split.NormalizeAddress(wallet),
			Source: CallerSourceWalletHdr,
		}
	}
	return nil
}

func bearerCaller(c *gin.Context, cfg GatewayConfig) *Caller {
	authHeader := c.GetHeader(AuthHeaderKey)
	if !strings.HasPrefix(authHeader, BearerPrefix) {
		return nil
	}
	tokenString := strings.TrimPrefix(authHeader, BearerPrefix)
	if tokenString == "" || cfg.JWTService == nil {
		return nil
	}

	claims, err := cfg.JWTService.ValidateToken(tokenString)
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Debug("bearer token rejected", zap.Error(err))
		}
		return nil
	}

	if cfg.TokenBlacklist != nil {
		ctx := c.Request.Context()

		if claims.ID != "" {
			blacklisted, err := cfg.TokenBlacklist.IsBlacklisted(ctx, claims.ID)
			if err != nil {
				// Fail open for availability; the token already validated.
				if cfg.Logger != nil {
					cfg.Logger.Error("failed to check token blacklist",
						zap.String("jti", claims.ID),
						zap.Error(err))
				}
			} else if blacklisted {
				return nil
			}
		}

		invalidated, err := cfg.TokenBlacklist.IsWalletTokenInvalidated(ctx, claims.Wallet, claims.GetIssuedAtTime())
		if err != nil {
			if cfg.Logger != nil {
				cfg.Logger.Error("failed to check wallet token invalidation",
					zap.String("wallet", claims.Wallet),
					zap.Error(err))
			}
		} else if invalidated {
			return nil
		}
	}

	return &Caller{
		Wallet: claims.Wallet,
		Scopes: claims.Scopes,
		Source: CallerSourceJWT,
	}
}

func apiKeyCaller(c *gin.Context, cfg GatewayConfig) *Caller {
	if len(cfg.APIKeys) == 0 {
		return nil
	}
	key := c.GetHeader(APIKeyHeader)
	if key == "" {
		key = c.GetHeader(SubscriptionKeyHeader)
	}
	if key == "" {
		return nil
	}
	scopes, ok := cfg.APIKeys[key]
	if !ok {
		return nil
	}

	caller := &Caller{Scopes: scopes, Source: CallerSourceAPIKey}
	if wallet := c.GetHeader(WalletHeader); split.IsHexAddress(wallet) {
		caller.Wallet = split.NormalizeAddress(wallet)
	}
	return caller
}

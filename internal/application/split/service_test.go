package split

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/portalpay/backend/internal/domain/shared"
	"github.com/portalpay/backend/internal/domain/split"
)

type MockConfigStore struct {
	mock.Mock
}

func (m *MockConfigStore) Read(ctx context.Context, docID, wallet string) split.ReadResult {
	args := m.Called(ctx, docID, wallet)
	return args.Get(0).(split.ReadResult)
}

func (m *MockConfigStore) Upsert(ctx context.Context, doc *split.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

type MockPolicySource struct {
	mock.Mock
}

func (m *MockPolicySource) Fetch(ctx context.Context, brandKey string) (split.BrandConfig, error) {
	args := m.Called(ctx, brandKey)
	return args.Get(0).(split.BrandConfig), args.Error(1)
}

func addr(c string) string { return "0x" + strings.Repeat(c, 40) }

func fbps(v float64) *float64 { return &v }

var (
	merchantWallet = addr("1")
	partnerWallet  = addr("2")
	platformWallet = addr("3")
	splitAddr      = addr("a")
)

func notFound() split.ReadResult { return split.ReadResult{Outcome: split.ReadNotFound} }
func found(d *split.Document) split.ReadResult {
	return split.ReadResult{Outcome: split.ReadFound, Doc: d}
}

func testDefaults() split.Defaults {
	return split.Defaults{
		PlatformRecipient: platformWallet,
		DefaultBrandKey:   "portalpay",
	}
}

func newTestService(store *MockConfigStore, policies *MockPolicySource, defaults split.Defaults) *Service {
	return NewService(store, policies, defaults, zap.NewNop(), WithClock(func() time.Time {
		return time.UnixMilli(1700000000000)
	}))
}

func TestStatusPlatformBrandDefaults(t *testing.T) {
	store := new(MockConfigStore)
	policies := new(MockPolicySource)
	store.On("Read", mock.Anything, "site:config", merchantWallet).Return(notFound())
	store.On("Read", mock.Anything, "site:config:portalpay", merchantWallet).Return(notFound())
	policies.On("Fetch", mock.Anything, "portalpay").Return(split.BrandConfig{}, nil)

	svc := newTestService(store, policies, testDefaults())
	payload := svc.Status(context.Background(), StatusQuery{Wallet: merchantWallet, BrandKey: "portalpay"})

	require.NotNil(t, payload.Split)
	require.Len(t, payload.Split.Recipients, 2)
	assert.Equal(t, merchantWallet, payload.Split.Recipients[0].Address)
	assert.Equal(t, 9950, payload.Split.Recipients[0].SharesBps)
	assert.Equal(t, platformWallet, payload.Split.Recipients[1].Address)
	assert.Equal(t, split.DefaultFeeBps, payload.Split.Recipients[1].SharesBps)
	assert.Nil(t, payload.RequiresDeploy)
	store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestStatusPartnerBrandFallbackSynthesis(t *testing.T) {
	store := new(MockConfigStore)
	policies := new(MockPolicySource)
	store.On("Read", mock.Anything, "site:config", merchantWallet).Return(notFound())
	store.On("Read", mock.Anything, "site:config:paynex", merchantWallet).Return(notFound())
	policies.On("Fetch", mock.Anything, "paynex").Return(split.BrandConfig{
		Brand: split.FeePolicy{PartnerFeeBps: fbps(100), PlatformFeeBps: fbps(50), PartnerWallet: partnerWallet},
	}, nil)

	svc := newTestService(store, policies, testDefaults())
	payload := svc.Status(context.Background(), StatusQuery{Wallet: merchantWallet, BrandKey: "paynex"})

	require.NotNil(t, payload.RequiresDeploy)
	assert.True(t, *payload.RequiresDeploy)
	assert.Equal(t, ReasonNoSplitForPartnerBrand, payload.Reason)
	require.Len(t, payload.Split.Recipients, 3)
	assert.Equal(t, 9850, payload.Split.Recipients[0].SharesBps)
	assert.Equal(t, 100, payload.Split.Recipients[1].SharesBps)
	assert.Equal(t, 50, payload.Split.Recipients[2].SharesBps)
}

func TestStatusPartnerConfigMissing(t *testing.T) {
	store := new(MockConfigStore)
	policies := new(MockPolicySource)
	store.On("Read", mock.Anything, "site:config", merchantWallet).Return(notFound())
	store.On("Read", mock.Anything, "site:config:paynex", merchantWallet).Return(notFound())
	policies.On("Fetch", mock.Anything, "paynex").Return(split.BrandConfig{}, nil)

	svc := newTestService(store, policies, testDefaults())
	payload := svc.Status(context.Background(), StatusQuery{Wallet: merchantWallet, BrandKey: "paynex"})

	require.NotNil(t, payload.RequiresDeploy)
	assert.True(t, *payload.RequiresDeploy)
	assert.Equal(t, ReasonPartnerConfigMissing, payload.Reason)
	assert.Empty(t, payload.Split.Recipients)
}

func TestStatusLegacyDocumentWins(t *testing.T) {
	legacy := &split.Document{
		ID:           "site:config",
		Wallet:       merchantWallet,
		BrandKey:     "xoinpay",
		SplitAddress: splitAddr,
		Split: &split.Split{
			Address: splitAddr,
			Recipients: []split.Recipient{
				{Address: merchantWallet, SharesBps: 9900},
				{Address: partnerWallet, SharesBps: 50},
				{Address: platformWallet, SharesBps: 50},
			},
		},
	}

	store := new(MockConfigStore)
	policies := new(MockPolicySource)
	store.On("Read", mock.Anything, "site:config", merchantWallet).Return(found(legacy))
	policies.On("Fetch", mock.Anything, "xoinpay").Return(split.BrandConfig{
		Brand: split.FeePolicy{PartnerFeeBps: fbps(50), PlatformFeeBps: fbps(50), PartnerWallet: partnerWallet},
	}, nil)

	svc := newTestService(store, policies, testDefaults())
	payload := svc.Status(context.Background(), StatusQuery{Wallet: merchantWallet})

	assert.True(t, payload.Legacy)
	assert.Equal(t, "xoinpay", payload.BrandKey)
	require.NotNil(t, payload.Split)
	assert.Equal(t, splitAddr, payload.Split.Address)
	// Deployed legacy split with full recipients: nothing to redeploy.
	require.NotNil(t, payload.RequiresDeploy)
	assert.False(t, *payload.RequiresDeploy)
	assert.Nil(t, payload.MisconfiguredSplit)
}

func TestStatusRequestedBrandOverridesStored(t *testing.T) {
	legacy := &split.Document{
		ID:           "site:config",
		Wallet:       merchantWallet,
		BrandKey:     "xoinpay",
		SplitAddress: splitAddr,
		Split:        &split.Split{Address: splitAddr, Recipients: []split.Recipient{}},
	}

	store := new(MockConfigStore)
	policies := new(MockPolicySource)
	store.On("Read", mock.Anything, "site:config", merchantWallet).Return(found(legacy))
	policies.On("Fetch", mock.Anything, "xoinpay").Return(split.BrandConfig{}, nil)

	svc := newTestService(store, policies, testDefaults())
	payload := svc.Status(context.Background(), StatusQuery{Wallet: merchantWallet, BrandKey: "Portalpay"})

	assert.Equal(t, "Portalpay", payload.BrandKey)
	require.NotNil(t, payload.Split)
	assert.Equal(t, "portalpay", payload.Split.BrandKey)
}

func TestStatusDetectsMissingPartnerRecipient(t *testing.T) {
	doc := &split.Document{
		ID:           "site:config:paynex",
		Wallet:       merchantWallet,
		BrandKey:     "paynex",
		SplitAddress: splitAddr,
		Split: &split.Split{
			Address: splitAddr,
			Recipients: []split.Recipient{
				{Address: merchantWallet, SharesBps: 9950},
				{Address: platformWallet, SharesBps: 50},
			},
		},
	}

	store := new(MockConfigStore)
	policies := new(MockPolicySource)
	store.On("Read", mock.Anything, "site:config", merchantWallet).Return(notFound())
	store.On("Read", mock.Anything, "site:config:paynex", merchantWallet).Return(found(doc))
	policies.On("Fetch", mock.Anything, "paynex").Return(split.BrandConfig{
		Brand: split.FeePolicy{PartnerFeeBps: fbps(100), PlatformFeeBps: fbps(50), PartnerWallet: partnerWallet},
	}, nil)

	svc := newTestService(store, policies, testDefaults())
	payload := svc.Status(context.Background(), StatusQuery{Wallet: merchantWallet, BrandKey: "paynex"})

	require.NotNil(t, payload.MisconfiguredSplit)
	assert.Equal(t, split.ReasonMissingPartnerRecipient, payload.MisconfiguredSplit.Reason)
	assert.Equal(t, 3, payload.MisconfiguredSplit.ExpectedRecipients)
	assert.Equal(t, 2, payload.MisconfiguredSplit.ActualRecipients)
	assert.True(t, payload.MisconfiguredSplit.NeedsRedeploy)
	// Preview override shows the corrected three legs without persisting.
	require.Len(t, payload.Split.Recipients, 3)
	store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestStatusDetectsPlatformBpsMismatch(t *testing.T) {
	doc := &split.Document{
		ID:           "site:config:paynex",
		Wallet:       merchantWallet,
		BrandKey:     "paynex",
		SplitAddress: splitAddr,
		Split: &split.Split{
			Address: splitAddr,
			Recipients: []split.Recipient{
				{Address: merchantWallet, SharesBps: 9825},
				{Address: partnerWallet, SharesBps: 100},
				{Address: platformWallet, SharesBps: 75},
			},
		},
	}

	store := new(MockConfigStore)
	policies := new(MockPolicySource)
	store.On("Read", mock.Anything, "site:config", merchantWallet).Return(notFound())
	store.On("Read", mock.Anything, "site:config:paynex", merchantWallet).Return(found(doc))
	policies.On("Fetch", mock.Anything, "paynex").Return(split.BrandConfig{
		Brand: split.FeePolicy{PartnerFeeBps: fbps(100), PlatformFeeBps: fbps(200), PartnerWallet: partnerWallet},
	}, nil)

	svc := newTestService(store, policies, testDefaults())
	payload := svc.Status(context.Background(), StatusQuery{Wallet: merchantWallet, BrandKey: "paynex"})

	require.NotNil(t, payload.MisconfiguredSplit)
	assert.Equal(t, split.ReasonPlatformBpsMismatch, payload.MisconfiguredSplit.Reason)
	assert.Equal(t, 200, payload.MisconfiguredSplit.ExpectedPlatformBps)
	require.NotNil(t, payload.MisconfiguredSplit.ActualPlatformBps)
	assert.Equal(t, 75, *payload.MisconfiguredSplit.ActualPlatformBps)
}

func TestStatusStoreFailureFallsBackToDefaults(t *testing.T) {
	store := new(MockConfigStore)
	policies := new(MockPolicySource)
	store.On("Read", mock.Anything, "site:config", merchantWallet).
		Return(split.ReadResult{Outcome: split.ReadFailed, Err: errors.New("socket closed")})
	store.On("Read", mock.Anything, "site:config:portalpay", merchantWallet).
		Return(split.ReadResult{Outcome: split.ReadFailed, Err: errors.New("socket closed")})
	policies.On("Fetch", mock.Anything, "portalpay").Return(split.BrandConfig{}, nil)

	svc := newTestService(store, policies, testDefaults())
	payload := svc.Status(context.Background(), StatusQuery{Wallet: merchantWallet, BrandKey: "portalpay"})

	require.NotNil(t, payload.Split)
	require.Len(t, payload.Split.Recipients, 2)
}

func TestPreviewUnauthenticated(t *testing.T) {
	store := new(MockConfigStore)
	policies := new(MockPolicySource)
	policies.On("Fetch", mock.Anything, "paynex").Return(split.BrandConfig{
		Brand: split.FeePolicy{PartnerFeeBps: fbps(100), PlatformFeeBps: fbps(50), PartnerWallet: partnerWallet},
	}, nil)

	svc := newTestService(store, policies, testDefaults())

	t.Run("with wallet yields three-way preview", func(t *testing.T) {
		payload := svc.Preview(context.Background(), PreviewQuery{BrandKey: "paynex", Wallet: merchantWallet})
		require.NotNil(t, payload.RequiresDeploy)
		assert.True(t, *payload.RequiresDeploy)
		assert.Equal(t, ReasonUnauthenticatedPreview, payload.Reason)
		require.Len(t, payload.Split.Recipients, 3)
	})

	t.Run("without wallet reports missing config", func(t *testing.T) {
		payload := svc.Preview(context.Background(), PreviewQuery{BrandKey: "paynex"})
		assert.Equal(t, ReasonPartnerConfigMissing, payload.Reason)
		assert.Empty(t, payload.Split.Recipients)
	})

	store.AssertNotCalled(t, "Read", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeployCreateWritesMirroredDocuments(t *testing.T) {
	store := new(MockConfigStore)
	policies := new(MockPolicySource)
	store.On("Read", mock.Anything, "site:config:paynex", merchantWallet).Return(notFound())
	policies.On("Fetch", mock.Anything, "paynex").Return(split.BrandConfig{
		Brand: split.FeePolicy{PartnerFeeBps: fbps(100), PlatformFeeBps: fbps(50), PartnerWallet: partnerWallet},
	}, nil)

	var written []*split.Document
	store.On("Upsert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		written = append(written, args.Get(1).(*split.Document))
	}).Return(nil)

	svc := newTestService(store, policies, testDefaults())
	result, err := svc.Deploy(context.Background(), DeployCommand{
		Wallet:          merchantWallet,
		BrandKey:        "paynex",
		ProvidedAddress: splitAddr,
	})

	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.False(t, result.Degraded)
	require.NotNil(t, result.Split)
	assert.Equal(t, splitAddr, result.Split.Address)
	require.Len(t, result.Split.Recipients, 3)

	require.Len(t, written, 2)
	assert.Equal(t, "site:config:paynex", written[0].ID)
	assert.Equal(t, "site:config", written[1].ID)
	assert.Equal(t, written[0].UpdatedAt, written[1].UpdatedAt)
	assert.Equal(t, int64(1700000000000), written[0].UpdatedAt)
	assert.Equal(t, written[0].SplitAddress, written[1].SplitAddress)
	assert.Equal(t, "site_config", written[0].Type)
	assert.Contains(t, written[0].Extra, "config")
}

func TestDeployWithoutAddressIsDegraded(t *testing.T) {
	store := new(MockConfigStore)
	policies := new(MockPolicySource)
	store.On("Read", mock.Anything, "site:config:portalpay", merchantWallet).Return(notFound())
	store.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	policies.On("Fetch", mock.Anything, "portalpay").Return(split.BrandConfig{
		Brand: split.FeePolicy{PlatformFeeBps: fbps(50)},
	}, nil)

	svc := newTestService(store, policies, testDefaults())
	result, err := svc.Deploy(context.Background(), DeployCommand{Wallet: merchantWallet, BrandKey: "portalpay"})

	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.True(t, result.Degraded)
	assert.Equal(t, ReasonDeploymentNotConfigured, result.Reason)
	assert.Empty(t, result.Split.Address)
	require.Len(t, result.Split.Recipients, 2)
	store.AssertNumberOfCalls(t, "Upsert", 2)
}

func TestDeployIdempotentNoWrite(t *testing.T) {
	prev := &split.Document{
		ID:           "site:config:paynex",
		Wallet:       merchantWallet,
		BrandKey:     "paynex",
		SplitAddress: splitAddr,
		PartnerWallet: partnerWallet,
		Split: &split.Split{
			Address: splitAddr,
			Recipients: []split.Recipient{
				{Address: merchantWallet, SharesBps: 9850},
				{Address: partnerWallet, SharesBps: 100},
				{Address: platformWallet, SharesBps: 50},
			},
		},
	}

	store := new(MockConfigStore)
	policies := new(MockPolicySource)
	store.On("Read", mock.Anything, "site:config:paynex", merchantWallet).Return(found(prev))
	policies.On("Fetch", mock.Anything, "paynex").Return(split.BrandConfig{
		Brand: split.FeePolicy{PartnerFeeBps: fbps(100), PlatformFeeBps: fbps(50), PartnerWallet: partnerWallet},
	}, nil)

	svc := newTestService(store, policies, testDefaults())

	t.Run("same address", func(t *testing.T) {
		result, err := svc.Deploy(context.Background(), DeployCommand{
			Wallet:          merchantWallet,
			BrandKey:        "paynex",
			ProvidedAddress: splitAddr,
		})
		require.NoError(t, err)
		require.NotNil(t, result.Idempotent)
		assert.True(t, *result.Idempotent)
		assert.Equal(t, splitAddr, result.Split.Address)
		assert.Equal(t, "paynex", result.BrandKey)
	})

	t.Run("no address provided", func(t *testing.T) {
		result, err := svc.Deploy(context.Background(), DeployCommand{
			Wallet:   merchantWallet,
			BrandKey: "paynex",
		})
		require.NoError(t, err)
		require.NotNil(t, result.Idempotent)
		assert.True(t, *result.Idempotent)
	})

	store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestDeployNewAddressUpdates(t *testing.T) {
	prev := &split.Document{
		ID:           "site:config:paynex",
		Wallet:       merchantWallet,
		BrandKey:     "paynex",
		SplitAddress: splitAddr,
		Split: &split.Split{
			Address: splitAddr,
			Recipients: []split.Recipient{
				{Address: merchantWallet, SharesBps: 9850},
				{Address: partnerWallet, SharesBps: 100},
				{Address: platformWallet, SharesBps: 50},
			},
		},
	}

	store := new(MockConfigStore)
	policies := new(MockPolicySource)
	store.On("Read", mock.Anything, "site:config:paynex", merchantWallet).Return(found(prev))
	policies.On("Fetch", mock.Anything, "paynex").Return(split.BrandConfig{
		Brand: split.FeePolicy{PartnerFeeBps: fbps(100), PlatformFeeBps: fbps(50), PartnerWallet: partnerWallet},
	}, nil)

	var written []*split.Document
	store.On("Upsert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		written = append(written, args.Get(1).(*split.Document))
	}).Return(nil)

	newAddr := addr("b")
	svc := newTestService(store, policies, testDefaults())
	result, err := svc.Deploy(context.Background(), DeployCommand{
		Wallet:          merchantWallet,
		BrandKey:        "paynex",
		ProvidedAddress: newAddr,
	})

	require.NoError(t, err)
	assert.True(t, result.Updated)
	assert.Equal(t, newAddr, result.Split.Address)
	require.Len(t, written, 2)
	assert.Equal(t, newAddr, written[0].SplitAddress)
	assert.Equal(t, newAddr, written[1].SplitAddress)
}

func TestDeployMisconfiguredSignalsRedeploy(t *testing.T) {
	prev := &split.Document{
		ID:           "site:config:paynex",
		Wallet:       merchantWallet,
		BrandKey:     "paynex",
		SplitAddress: splitAddr,
		Split: &split.Split{
			Address: splitAddr,
			Recipients: []split.Recipient{
				{Address: merchantWallet, SharesBps: 9950},
				{Address: platformWallet, SharesBps: 50},
			},
		},
	}

	store := new(MockConfigStore)
	policies := new(MockPolicySource)
	store.On("Read", mock.Anything, "site:config:paynex", merchantWallet).Return(found(prev))
	policies.On("Fetch", mock.Anything, "paynex").Return(split.BrandConfig{
		Brand: split.FeePolicy{PartnerFeeBps: fbps(100), PlatformFeeBps: fbps(50), PartnerWallet: partnerWallet},
	}, nil)

	svc := newTestService(store, policies, testDefaults())
	result, err := svc.Deploy(context.Background(), DeployCommand{
		Wallet:          merchantWallet,
		BrandKey:        "paynex",
		ProvidedAddress: splitAddr,
	})

	require.NoError(t, err)
	assert.True(t, result.RequiresRedeploy)
	require.NotNil(t, result.Idempotent)
	assert.False(t, *result.Idempotent)
	// Storage keeps the old (misconfigured) recipients untouched.
	assert.Equal(t, splitAddr, result.Split.Address)
	require.Len(t, result.Split.Recipients, 2)
	store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestDeployPreservesOpaqueMerchantFields(t *testing.T) {
	prev := &split.Document{
		ID:       "site:config:paynex",
		Wallet:   merchantWallet,
		BrandKey: "paynex",
		Extra: map[string]json.RawMessage{
			"theme":     json.RawMessage(`{"mode":"dark"}`),
			"taxConfig": json.RawMessage(`{"rate":0.19}`),
		},
	}

	store := new(MockConfigStore)
	policies := new(MockPolicySource)
	store.On("Read", mock.Anything, "site:config:paynex", merchantWallet).Return(found(prev))
	policies.On("Fetch", mock.Anything, "paynex").Return(split.BrandConfig{
		Brand: split.FeePolicy{PartnerFeeBps: fbps(100), PlatformFeeBps: fbps(50), PartnerWallet: partnerWallet},
	}, nil)

	var written []*split.Document
	store.On("Upsert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		written = append(written, args.Get(1).(*split.Document))
	}).Return(nil)

	svc := newTestService(store, policies, testDefaults())
	_, err := svc.Deploy(context.Background(), DeployCommand{
		Wallet:          merchantWallet,
		BrandKey:        "paynex",
		ProvidedAddress: splitAddr,
	})

	require.NoError(t, err)
	require.Len(t, written, 2)
	for _, doc := range written {
		assert.Equal(t, json.RawMessage(`{"mode":"dark"}`), doc.Extra["theme"])
		assert.Equal(t, json.RawMessage(`{"rate":0.19}`), doc.Extra["taxConfig"])
	}
}

func TestDeployPartnerWalletFallsBackToPersisted(t *testing.T) {
	prev := &split.Document{
		ID:            "site:config:paynex",
		Wallet:        merchantWallet,
		BrandKey:      "paynex",
		PartnerWallet: partnerWallet,
	}

	store := new(MockConfigStore)
	policies := new(MockPolicySource)
	store.On("Read", mock.Anything, "site:config:paynex", merchantWallet).Return(found(prev))
	store.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	// Brand config has fees but no partner wallet of its own.
	policies.On("Fetch", mock.Anything, "paynex").Return(split.BrandConfig{
		Brand: split.FeePolicy{PartnerFeeBps: fbps(100), PlatformFeeBps: fbps(50)},
	}, nil)

	svc := newTestService(store, policies, testDefaults())
	result, err := svc.Deploy(context.Background(), DeployCommand{
		Wallet:          merchantWallet,
		BrandKey:        "paynex",
		ProvidedAddress: splitAddr,
	})

	require.NoError(t, err)
	require.Len(t, result.Split.Recipients, 3)
	assert.Equal(t, partnerWallet, result.Split.Recipients[1].Address)
}

func TestDeployPlatformRecipientNotConfigured(t *testing.T) {
	store := new(MockConfigStore)
	policies := new(MockPolicySource)
	policies.On("Fetch", mock.Anything, "paynex").Return(split.BrandConfig{}, nil)

	defaults := testDefaults()
	defaults.PlatformRecipient = ""
	svc := newTestService(store, policies, defaults)

	_, err := svc.Deploy(context.Background(), DeployCommand{Wallet: merchantWallet, BrandKey: "paynex"})

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, ErrCodePlatformRecipientMissing, domainErr.Code)
	store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestDeployStoreErrorSurfaces(t *testing.T) {
	store := new(MockConfigStore)
	policies := new(MockPolicySource)
	store.On("Read", mock.Anything, "site:config:paynex", merchantWallet).Return(notFound())
	store.On("Upsert", mock.Anything, mock.Anything).Return(errors.New("write throttled"))
	policies.On("Fetch", mock.Anything, "paynex").Return(split.BrandConfig{
		Brand: split.FeePolicy{PartnerFeeBps: fbps(100), PlatformFeeBps: fbps(50), PartnerWallet: partnerWallet},
	}, nil)

	svc := newTestService(store, policies, testDefaults())
	_, err := svc.Deploy(context.Background(), DeployCommand{
		Wallet:          merchantWallet,
		BrandKey:        "paynex",
		ProvidedAddress: splitAddr,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "write throttled")
}

func TestDeployBrandFetchFailureUsesStubFees(t *testing.T) {
	store := new(MockConfigStore)
	policies := new(MockPolicySource)
	store.On("Read", mock.Anything, "site:config:paynex", merchantWallet).Return(notFound())
	store.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	policies.On("Fetch", mock.Anything, "paynex").Return(split.BrandConfig{}, errors.New("upstream down"))

	svc := newTestService(store, policies, testDefaults())
	result, err := svc.Deploy(context.Background(), DeployCommand{
		Wallet:          merchantWallet,
		BrandKey:        "paynex",
		ProvidedAddress: splitAddr,
	})

	require.NoError(t, err)
	// Stub brand has no partner wallet, so only merchant and platform legs.
	require.Len(t, result.Split.Recipients, 2)
	assert.Equal(t, split.DefaultFeeBps, result.Split.Recipients[1].SharesBps)
}

package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielkropka/social-flow-sub001/internal/auth"
	"github.com/danielkropka/social-flow-sub001/internal/cache"
	"github.com/danielkropka/social-flow-sub001/internal/config"
	"github.com/danielkropka/social-flow-sub001/internal/metrics"
	"github.com/danielkropka/social-flow-sub001/internal/models"
	"github.com/danielkropka/social-flow-sub001/internal/store"
	"github.com/danielkropka/social-flow-sub001/internal/util"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	cfg := &config.Config{AccountUniqueness: config.AccountUniquenessGlobal}
	s, err := store.New(context.Background(), "sqlite", ":memory:", cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestCipher(t *testing.T) *util.TokenCipher {
	t.Helper()
	c, err := util.NewTokenCipher("services-test-key")
	require.NoError(t, err)
	return c
}

func encrypt(t *testing.T, c *util.TokenCipher, plaintext string) string {
	t.Helper()
	out, err := c.Encrypt(plaintext)
	require.NoError(t, err)
	return out
}

// recordingAudit captures audit entries in memory.
type recordingAudit struct {
	mu      sync.Mutex
	entries []AuditLogEntry
}

func (a *recordingAudit) Log(_ context.Context, entry AuditLogEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *recordingAudit) events() []models.EventType {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.EventType, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.EventType)
	}
	return out
}

// fakeExchanger is a scriptable connect exchanger without optional capabilities.
type fakeExchanger struct {
	provider      models.Provider
	protocol      auth.Protocol
	initiateErr   error
	complete      func(h auth.Handshake, params auth.CallbackParams) (*auth.Credential, error)
	completeCalls atomic.Int32
}

func (f *fakeExchanger) Provider() models.Provider { return f.provider }
func (f *fakeExchanger) Protocol() auth.Protocol   { return f.protocol }

func (f *fakeExchanger) Initiate(_ context.Context, state string) (*auth.Initiation, error) {
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	if f.protocol == auth.ProtocolOAuth1 {
		return &auth.Initiation{
			AuthorizeURL:    "https://provider.example/authorize?oauth_token=REQ",
			HandshakeToken:  "REQ",
			HandshakeSecret: "REQSECRET",
		}, nil
	}
	return &auth.Initiation{
		AuthorizeURL:   "https://provider.example/authorize?state=" + state,
		HandshakeToken: state,
	}, nil
}

func (f *fakeExchanger) Complete(
	_ context.Context,
	h auth.Handshake,
	params auth.CallbackParams,
) (*auth.Credential, error) {
	f.completeCalls.Add(1)
	return f.complete(h, params)
}

// metricsExchanger adds a scripted metrics fetch, keyed by account ID.
type metricsExchanger struct {
	*fakeExchanger
	mu      sync.Mutex
	calls   []string
	metrics map[string]*auth.Metrics
	errs    map[string]error
}

func newMetricsExchanger(p models.Provider) *metricsExchanger {
	return &metricsExchanger{
		fakeExchanger: &fakeExchanger{provider: p, protocol: auth.ProtocolOAuth2},
		metrics:       map[string]*auth.Metrics{},
		errs:          map[string]error{},
	}
}

func (m *metricsExchanger) FetchMetrics(
	_ context.Context,
	creds auth.AccountCredentials,
) (*auth.Metrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, creds.AccessToken)
	if err := m.errs[creds.ProviderAccountID]; err != nil {
		return nil, err
	}
	return m.metrics[creds.ProviderAccountID], nil
}

// refreshingExchanger adds a scripted token refresh.
type refreshingExchanger struct {
	*fakeExchanger
	refresh func(creds auth.AccountCredentials) (*auth.Tokens, error)
}

func (r *refreshingExchanger) RefreshTokens(
	_ context.Context,
	creds auth.AccountCredentials,
) (*auth.Tokens, error) {
	return r.refresh(creds)
}

type connectFixture struct {
	store      *store.Store
	cipher     *util.TokenCipher
	cache      *cache.MemoryCache[models.PendingHandshake]
	handshakes *HandshakeStore
	audit      *recordingAudit
	clock      *time.Time
	svc        *ConnectService
}

func newConnectFixture(t *testing.T, exchangers ...auth.Exchanger) *connectFixture {
	t.Helper()
	now := testNow
	clock := func() time.Time { return now }

	f := &connectFixture{
		store:  setupTestStore(t),
		cipher: newTestCipher(t),
		cache:  cache.NewMemoryCache[models.PendingHandshake]().WithClock(clock),
		audit:  &recordingAudit{},
		clock:  &now,
	}
	f.handshakes = NewHandshakeStore(f.cache, 10*time.Minute).WithClock(clock)
	f.svc = NewConnectService(
		f.store,
		auth.NewRegistry(exchangers...),
		f.handshakes,
		f.cipher,
		metrics.NewNoopMetrics(),
		f.audit,
		nil,
	)
	f.svc.now = clock
	return f
}

func (f *connectFixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

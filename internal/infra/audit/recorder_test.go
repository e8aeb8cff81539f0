package audit_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"

	"github.com/spounge-ai/auditchain/internal/domain"
	"github.com/spounge-ai/auditchain/internal/infra/audit"
	"github.com/spounge-ai/auditchain/internal/infra/persistence"
)

// captureIngester records what it was asked to ingest and optionally fails.
type captureIngester struct {
	mu   sync.Mutex
	reqs []*domain.IngestRequest
	ctxs []context.Context
	err  error
}

func (c *captureIngester) Ingest(ctx context.Context, req *domain.IngestRequest) (*domain.AuditEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reqs = append(c.reqs, req)
	c.ctxs = append(c.ctxs, ctx)
	if c.err != nil {
		return nil, c.err
	}
	return &domain.AuditEntry{ID: "e"}, nil
}

func (c *captureIngester) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reqs)
}

func TestRecorderFailsOpen(t *testing.T) {
	ing := &captureIngester{err: errors.New("database is down")}
	rec := audit.NewRecorder(discard, ing)

	assert.NotPanics(t, func() {
		rec.Record(context.Background(), &domain.IngestRequest{EventType: "LOGIN_FAILED", Action: "login"})
		rec.Record(context.Background(), nil)
	})
	assert.Equal(t, 1, ing.count())
}

func TestRecorderFillsEnvironmentFromContext(t *testing.T) {
	ing := &captureIngester{}
	rec := audit.NewRecorder(discard, ing)

	ctx := audit.ContextWithActor(context.Background(), &domain.Actor{UserID: "u-9", Role: "admin"})
	ctx = metadata.NewIncomingContext(ctx, metadata.Pairs("user-agent", "auditctl/1.0", "x-forwarded-for", "203.0.113.7, 10.0.0.1"))

	rec.Record(ctx, &domain.IngestRequest{EventType: "DATA_EXPORT", Action: "export"})
	rec.Record(ctx, &domain.IngestRequest{
		EventType:   "DATA_EXPORT",
		Action:      "export",
		Actor:       &domain.Actor{UserID: "explicit"},
		Environment: domain.Environment{IPAddress: "198.51.100.1"},
	})

	require.Equal(t, 2, ing.count())
	first := ing.reqs[0]
	assert.Equal(t, "u-9", first.Actor.UserID)
	assert.Equal(t, "203.0.113.7", first.Environment.IPAddress)
	assert.Equal(t, "auditctl/1.0", first.Environment.UserAgent)

	second := ing.reqs[1]
	assert.Equal(t, "explicit", second.Actor.UserID)
	assert.Equal(t, "198.51.100.1", second.Environment.IPAddress)
}

func TestWithRequestEnvironmentUsesPeer(t *testing.T) {
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("192.0.2.44"), Port: 51000}})

	req := &domain.IngestRequest{}
	filled := audit.WithRequestEnvironment(ctx, req)
	assert.Equal(t, "192.0.2.44", filled.Environment.IPAddress)
	assert.Nil(t, filled.Actor)
	assert.Empty(t, req.Environment.IPAddress)

	bare := audit.WithRequestEnvironment(context.Background(), &domain.IngestRequest{})
	assert.Empty(t, bare.Environment.IPAddress)
	assert.Empty(t, bare.Environment.UserAgent)
}

func TestAsyncRecorderQueuesACopy(t *testing.T) {
	ing := &captureIngester{}
	rec := audit.NewAsyncRecorder(discard, ing, audit.AsyncRecorderConfig{BatchTimeout: time.Hour})
	require.NoError(t, rec.Start(context.Background()))

	ctx := audit.ContextWithActor(context.Background(), &domain.Actor{UserID: "u-7"})
	req := &domain.IngestRequest{
		EventType: "DATA_UPDATE",
		Action:    "update",
		Tags:      []string{"billing"},
		Metadata:  map[string]any{"tenant": "t-1"},
	}
	rec.Record(ctx, req)
	assert.Nil(t, req.Actor)

	req.Action = "reused"
	req.Tags[0] = "changed"
	req.Metadata["tenant"] = "t-2"

	require.NoError(t, rec.Stop(context.Background()))
	require.Equal(t, 1, ing.count())
	got := ing.reqs[0]
	assert.Equal(t, "update", got.Action)
	assert.Equal(t, []string{"billing"}, got.Tags)
	assert.Equal(t, "t-1", got.Metadata["tenant"])
	assert.Equal(t, "u-7", got.Actor.UserID)
}

func TestAsyncRecorderFlushesOnStop(t *testing.T) {
	repo := persistence.NewMemoryStore()
	ledger, _ := newLedger(t, repo, audit.LedgerConfig{})
	rec := audit.NewAsyncRecorder(discard, ledger, audit.AsyncRecorderConfig{
		ChannelBufferSize: 64,
		BatchSize:         10,
		BatchTimeout:      time.Hour,
	})
	require.NoError(t, rec.Start(context.Background()))
	assert.True(t, rec.Health(context.Background()).Ready)

	for i := 0; i < 25; i++ {
		rec.Record(context.Background(), &domain.IngestRequest{EventType: "DATA_READ", Action: "read"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, rec.Stop(ctx))
	assert.Equal(t, 25, repo.Len())
	assert.False(t, rec.Health(context.Background()).Ready)
}

func TestAsyncRecorderKeepsValuesButNotCancellation(t *testing.T) {
	ing := &captureIngester{}
	rec := audit.NewAsyncRecorder(discard, ing, audit.AsyncRecorderConfig{BatchTimeout: 5 * time.Millisecond})
	require.NoError(t, rec.Start(context.Background()))

	ctx, cancel := context.WithCancel(audit.ContextWithActor(context.Background(), &domain.Actor{UserID: "u-1"}))
	rec.Record(ctx, &domain.IngestRequest{EventType: "LOGOUT", Action: "logout"})
	cancel()

	assert.Eventually(t, func() bool { return ing.count() == 1 }, time.Second, 5*time.Millisecond)
	ing.mu.Lock()
	assert.NoError(t, ing.ctxs[0].Err())
	assert.Equal(t, "u-1", ing.reqs[0].Actor.UserID)
	ing.mu.Unlock()

	require.NoError(t, rec.Stop(context.Background()))
}

func TestAsyncRecorderDropsWhenNotRunning(t *testing.T) {
	ing := &captureIngester{}
	rec := audit.NewAsyncRecorder(discard, ing, audit.AsyncRecorderConfig{})

	rec.Record(context.Background(), &domain.IngestRequest{EventType: "LOGOUT", Action: "logout"})

	require.NoError(t, rec.Start(context.Background()))
	require.NoError(t, rec.Stop(context.Background()))
	rec.Record(context.Background(), &domain.IngestRequest{EventType: "LOGOUT", Action: "logout"})
	require.NoError(t, rec.Stop(context.Background()))

	assert.Zero(t, ing.count())
}

func TestAsyncRecorderSwallowsIngestErrors(t *testing.T) {
	ing := &captureIngester{err: errors.New("validation failed")}
	rec := audit.NewAsyncRecorder(discard, ing, audit.AsyncRecorderConfig{BatchSize: 1})
	require.NoError(t, rec.Start(context.Background()))

	rec.Record(context.Background(), &domain.IngestRequest{EventType: "NOPE", Action: "x"})
	require.NoError(t, rec.Stop(context.Background()))
	assert.Equal(t, 1, ing.count())
}

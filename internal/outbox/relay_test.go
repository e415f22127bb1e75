package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/d60-Lab/storefront/internal/model"
	"github.com/d60-Lab/storefront/internal/repository"
	"github.com/d60-Lab/storefront/internal/testutil"
)

type fakePublisher struct {
	mu      sync.Mutex
	fail    int
	got     []string
	failErr error
}

func (p *fakePublisher) Publish(_ context.Context, ev *model.OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail > 0 {
		p.fail--
		return p.failErr
	}
	p.got = append(p.got, ev.ID)
	return nil
}

func (p *fakePublisher) delivered() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.got...)
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (r *fakeRecorder) ObserveOutbox(_, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = map[string]int{}
	}
	r.outcomes[outcome]++
}

func addEvents(t *testing.T, repo repository.OutboxRepository, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		ev := &model.OutboxEvent{ID: uuid.NewString(), Topic: model.TopicOrderPaid, Key: "1", Payload: `{"order_id":1}`}
		require.NoError(t, repo.Add(context.Background(), ev))
		ids[i] = ev.ID
	}
	return ids
}

func TestRelay_ProcessOnceDelivers(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewOutboxRepository(db)
	ids := addEvents(t, repo, 3)

	pub := &fakePublisher{}
	rec := &fakeRecorder{}
	relay := NewRelay(repo, pub, Options{BatchSize: 2, Metrics: rec, Logger: zap.NewNop()})

	n, err := relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.ElementsMatch(t, ids, pub.delivered())
	done, err := repo.CountByStatus(context.Background(), model.OutboxDone)
	require.NoError(t, err)
	assert.EqualValues(t, 3, done)
	assert.Equal(t, 3, rec.outcomes["delivered"])
}

func TestRelay_RetriesThenFails(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewOutboxRepository(db)
	addEvents(t, repo, 1)

	core, logs := observer.New(zap.WarnLevel)
	pub := &fakePublisher{fail: 5, failErr: errors.New("broker down")}
	rec := &fakeRecorder{}
	relay := NewRelay(repo, pub, Options{MaxAttempts: 2, Metrics: rec, Logger: zap.New(core)})
	ctx := context.Background()

	_, err := relay.ProcessOnce(ctx)
	require.NoError(t, err)
	pending, err := repo.CountByStatus(ctx, model.OutboxPending)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending)

	_, err = relay.ProcessOnce(ctx)
	require.NoError(t, err)
	failed, err := repo.CountByStatus(ctx, model.OutboxFailed)
	require.NoError(t, err)
	assert.EqualValues(t, 1, failed)

	// failed events are not claimed again
	n, err := relay.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, 1, rec.outcomes["retry"])
	assert.Equal(t, 1, rec.outcomes["failed"])
	assert.Equal(t, 2, logs.FilterMessage("outbox publish failed").Len())
	assert.Empty(t, pub.delivered())
}

func TestRelay_StartStop(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewOutboxRepository(db)
	ids := addEvents(t, repo, 2)

	pub := &fakePublisher{}
	relay := NewRelay(repo, pub, Options{PollInterval: 5 * time.Millisecond, Logger: zap.NewNop()})
	stop := relay.Start()

	assert.Eventually(t, func() bool { return len(pub.delivered()) == len(ids) }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, stop(ctx))
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	pub := NewLogPublisher(zap.New(core))

	ev := &model.OutboxEvent{ID: "e1", Topic: model.TopicOrderStatusChanged, Key: "42", Payload: "{}"}
	require.NoError(t, pub.Publish(context.Background(), ev))

	entries := logs.FilterMessage("order event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "42", entries[0].ContextMap()["key"])
	assert.Equal(t, model.TopicOrderStatusChanged, entries[0].ContextMap()["topic"])
}

func TestRelay_ReclaimsEventsOfCrashedRelay(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewOutboxRepository(db)
	ids := addEvents(t, repo, 1)

	// 上一个进程领取后未来得及标记就退出
	claimed, err := repo.Claim(context.Background(), 10, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	pub := &fakePublisher{}
	relay := NewRelay(repo, pub, Options{ClaimTimeout: 50 * time.Millisecond, Logger: zap.NewNop()})

	n, err := relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	time.Sleep(80 * time.Millisecond)
	n, err = relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, ids, pub.delivered())

	done, err := repo.CountByStatus(context.Background(), model.OutboxDone)
	require.NoError(t, err)
	assert.EqualValues(t, 1, done)
	processing, err := repo.CountByStatus(context.Background(), model.OutboxProcessing)
	require.NoError(t, err)
	assert.Zero(t, processing)
}

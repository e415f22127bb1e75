package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedGateway_ConfirmsByDefault(t *testing.T) {
	g := NewSimulatedGateway()
	ctx := context.Background()

	h, err := g.CreateIntent(ctx, decimal.RequireFromString("25.00"), "usd", "k1")
	require.NoError(t, err)
	assert.EqualValues(t, 2500, h.Amount)
	assert.NotEmpty(t, h.ClientSecret)

	c, err := g.Confirm(ctx, h)
	require.NoError(t, err)
	assert.True(t, c.Confirmed())
	assert.EqualValues(t, 2500, c.Amount)
}

func TestSimulatedGateway_SameKeySameIntent(t *testing.T) {
	g := NewSimulatedGateway()
	ctx := context.Background()
	amount := decimal.RequireFromString("9.99")

	h1, err := g.CreateIntent(ctx, amount, "usd", "k1")
	require.NoError(t, err)
	h2, err := g.CreateIntent(ctx, amount, "usd", "k1")
	require.NoError(t, err)
	assert.Equal(t, h1.ID, h2.ID)
	assert.Equal(t, 1, g.IntentCount())

	_, err = g.CreateIntent(ctx, decimal.RequireFromString("10.00"), "usd", "k1")
	assert.ErrorIs(t, err, ErrGateway)
}

func TestSimulatedGateway_DeclineIsSticky(t *testing.T) {
	g := NewSimulatedGateway()
	ctx := context.Background()

	g.DeclineWith("insufficient funds")
	h, err := g.CreateIntent(ctx, decimal.NewFromInt(5), "usd", "k1")
	require.NoError(t, err)

	c, err := g.Confirm(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, c.Status)
	assert.Equal(t, "insufficient funds", c.Reason)

	g.DeclineWith("")
	c, err = g.Confirm(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, c.Status)
}

func TestSimulatedGateway_FailureInjection(t *testing.T) {
	g := NewSimulatedGateway()
	ctx := context.Background()

	g.FailNext(OpCreateIntent, 1)
	_, err := g.CreateIntent(ctx, decimal.NewFromInt(5), "usd", "k1")
	assert.ErrorIs(t, err, ErrGateway)
	assert.False(t, IsDecline(err))

	_, err = g.CreateIntent(ctx, decimal.NewFromInt(5), "usd", "k1")
	assert.NoError(t, err)
	assert.Equal(t, 2, g.Calls(OpCreateIntent))
}

func TestSimulatedGateway_LatencyHonorsDeadline(t *testing.T) {
	g := NewSimulatedGateway(WithLatency(200 * time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := g.CreateIntent(ctx, decimal.NewFromInt(5), "usd", "k1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGateway)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Zero(t, g.IntentCount())
}

func TestMinorUnits(t *testing.T) {
	assert.EqualValues(t, 2500, ToMinorUnits(decimal.RequireFromString("25.00")))
	assert.EqualValues(t, 1999, ToMinorUnits(decimal.RequireFromString("19.99")))
	assert.True(t, FromMinorUnits(1999).Equal(decimal.RequireFromString("19.99")))
}

type recorded struct{ op, outcome string }

type fakeRecorder struct{ calls []recorded }

func (f *fakeRecorder) ObserveGateway(op, outcome string, _ time.Duration) {
	f.calls = append(f.calls, recorded{op, outcome})
}

func TestInstrument_RecordsOutcomes(t *testing.T) {
	sim := NewSimulatedGateway()
	rec := &fakeRecorder{}
	g := Instrument(sim, rec)
	ctx := context.Background()

	h, err := g.CreateIntent(ctx, decimal.NewFromInt(5), "usd", "k1")
	require.NoError(t, err)
	sim.DeclineWith("no")
	_, err = g.Confirm(ctx, h)
	require.NoError(t, err)
	sim.FailNext(OpConfirm, 1)
	_, err = g.Confirm(ctx, h)
	require.Error(t, err)

	assert.Equal(t, []recorded{
		{"create_intent", "success"},
		{"confirm", "declined"},
		{"confirm", "error"},
	}, rec.calls)
}

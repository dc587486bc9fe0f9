package ledger

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerpulse/ledgerpulse/internal/domain"
)

func payment(id string, amount float64) domain.LedgerTransaction {
	return domain.LedgerTransaction{
		ID:          id,
		Account:     "rSenderAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		Destination: "rDestBBBBBBBBBBBBBBBBBBBBBBBBBBBBB",
		Amount:      amount,
		Type:        domain.TxPayment,
	}
}

func TestProcessorAcceptsPayment(t *testing.T) {
	p := NewProcessor(NewLabeler(nil), nil)

	ev, ok := p.Process(payment("A", 100))
	require.True(t, ok)
	assert.Equal(t, "A", ev.Transaction.ID)
	assert.Equal(t, domain.WeightNormal, ev.Weight)
	assert.NotEmpty(t, ev.Arc.Points)
	assert.Equal(t, TruncateAddress("rSenderAAAAAAAAAAAAAAAAAAAAAAAAAAA"), ev.SenderLabel)
}

func TestProcessorDropsNonPaymentsAndZeroAmounts(t *testing.T) {
	p := NewProcessor(NewLabeler(nil), nil)

	offer := payment("B", 100)
	offer.Type = domain.TxOther
	_, ok := p.Process(offer)
	assert.False(t, ok, "non-payment types are dropped")

	_, ok = p.Process(payment("C", 0))
	assert.False(t, ok, "zero amounts are dropped")

	_, ok = p.Process(payment("D", -5))
	assert.False(t, ok, "negative amounts are dropped")
}

func TestProcessorDeduplicatesRecentIDs(t *testing.T) {
	p := NewProcessor(NewLabeler(nil), nil)

	_, ok := p.Process(payment("X", 10))
	require.True(t, ok)

	_, ok = p.Process(payment("X", 10))
	assert.False(t, ok, "replayed ID inside the window is dropped")
}

func TestProcessorDedupWindowEvictsOldest(t *testing.T) {
	p := NewProcessor(NewLabeler(nil), nil)

	_, ok := p.Process(payment("first", 1))
	require.True(t, ok)

	// Push the first ID out of the bounded window.
	for i := 0; i < dedupCapacity; i++ {
		_, ok := p.Process(payment(fmt.Sprintf("fill-%d", i), 1))
		require.True(t, ok)
	}

	_, ok = p.Process(payment("first", 1))
	assert.True(t, ok, "evicted ID is accepted again")
}

func TestProcessorLargeThresholdIsInclusive(t *testing.T) {
	p := NewProcessor(NewLabeler(nil), nil)

	ev, ok := p.Process(payment("below", 249_999))
	require.True(t, ok)
	assert.Equal(t, domain.WeightNormal, ev.Weight)

	ev, ok = p.Process(payment("at", 250_000))
	require.True(t, ok)
	assert.Equal(t, domain.WeightLarge, ev.Weight)

	ev, ok = p.Process(payment("above", 1_000_000))
	require.True(t, ok)
	assert.Equal(t, domain.WeightLarge, ev.Weight)
}

func TestProcessorUsesKnownAddressTable(t *testing.T) {
	labeler := NewLabeler([]domain.KnownAddress{
		{Address: "rSenderAAAAAAAAAAAAAAAAAAAAAAAAAAA", Label: "Binance", Lat: 35.68, Lng: 139.69},
	})
	p := NewProcessor(labeler, nil)

	ev, ok := p.Process(payment("K", 42))
	require.True(t, ok)
	assert.Equal(t, "Binance", ev.SenderLabel)
	assert.Equal(t, TruncateAddress("rDestBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"), ev.DestLabel)
}

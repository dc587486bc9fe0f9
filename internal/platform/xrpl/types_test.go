package xrpl

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerpulse/ledgerpulse/internal/domain"
)

func envelope(t *testing.T, raw string) txEnvelope {
	t.Helper()
	var env txEnvelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	return env
}

func TestToDomainTransactionPayment(t *testing.T) {
	env := envelope(t, `{
		"type": "transaction",
		"engine_result": "tesSUCCESS",
		"ledger_index": 84000000,
		"validated": true,
		"transaction": {
			"hash": "ABC123",
			"Account": "rSender",
			"Destination": "rDest",
			"TransactionType": "Payment",
			"Amount": "2500000",
			"date": 760000000
		}
	}`)

	tx, ok := env.toDomainTransaction()
	require.True(t, ok)
	assert.Equal(t, "ABC123", tx.ID)
	assert.Equal(t, domain.TxPayment, tx.Type)
	assert.Equal(t, 2.5, tx.Amount, "drops convert to XRP")
	assert.Equal(t, (int64(760000000)+rippleEpochOffset)*1000, tx.TimestampMs)
	assert.Equal(t, uint64(84000000), tx.LedgerIndex)
}

func TestToDomainTransactionSkipsFailedResults(t *testing.T) {
	env := envelope(t, `{
		"type": "transaction",
		"engine_result": "tecUNFUNDED_PAYMENT",
		"transaction": {"hash": "X", "TransactionType": "Payment", "Amount": "100"}
	}`)

	_, ok := env.toDomainTransaction()
	assert.False(t, ok)
}

func TestToDomainTransactionSkipsIssuedCurrency(t *testing.T) {
	env := envelope(t, `{
		"type": "transaction",
		"engine_result": "tesSUCCESS",
		"transaction": {
			"hash": "Y",
			"TransactionType": "Payment",
			"Amount": {"currency": "USD", "issuer": "rIssuer", "value": "100"}
		}
	}`)

	_, ok := env.toDomainTransaction()
	assert.False(t, ok, "issued-currency payments are not XRP flows")
}

func TestToDomainTransactionNonPaymentHasZeroAmount(t *testing.T) {
	env := envelope(t, `{
		"type": "transaction",
		"engine_result": "tesSUCCESS",
		"transaction": {"hash": "Z", "Account": "rA", "TransactionType": "OfferCreate"}
	}`)

	tx, ok := env.toDomainTransaction()
	require.True(t, ok)
	assert.Equal(t, domain.TxOther, tx.Type)
	assert.Zero(t, tx.Amount)
}

func TestToDomainTransactionSkipsNonTransactionMessages(t *testing.T) {
	env := envelope(t, `{"type": "ledgerClosed", "ledger_index": 84000001}`)

	_, ok := env.toDomainTransaction()
	assert.False(t, ok)
}

func TestParseDrops(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{`"1000000"`, 1, true},
		{`"1"`, 0.000001, true},
		{`"250000000000"`, 250000, true},
		{`{"currency": "USD"}`, 0, false},
		{`"abc"`, 0, false},
	}
	for _, tc := range tests {
		got, ok := parseDrops(json.RawMessage(tc.raw))
		assert.Equal(t, tc.ok, ok, tc.raw)
		if tc.ok {
			assert.Equal(t, tc.want, got, tc.raw)
		}
	}
}

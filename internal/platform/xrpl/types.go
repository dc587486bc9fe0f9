package xrpl

import (
	"encoding/json"
	"strconv"

	"github.com/ledgerpulse/ledgerpulse/internal/domain"
)

// rippleEpochOffset converts ledger timestamps (seconds since 2000-01-01
// UTC) to the unix epoch.
const rippleEpochOffset = 946_684_800

// dropsPerXRP is the subunit scale: amounts on the wire are drops.
const dropsPerXRP = 1_000_000

// subscribeCommand is the stream subscription request.
type subscribeCommand struct {
	ID      int      `json:"id"`
	Command string   `json:"command"`
	Streams []string `json:"streams"`
}

// txEnvelope is one message on the transactions stream.
type txEnvelope struct {
	Type         string `json:"type"`
	EngineResult string `json:"engine_result"`
	LedgerIndex  uint64 `json:"ledger_index"`
	Validated    bool   `json:"validated"`
	Transaction  struct {
		Hash            string          `json:"hash"`
		Account         string          `json:"Account"`
		Destination     string          `json:"Destination"`
		TransactionType string          `json:"TransactionType"`
		Amount          json.RawMessage `json:"Amount"`
		Date            int64           `json:"date"`
	} `json:"transaction"`
}

// parseDrops converts a raw Amount into XRP. Native amounts arrive as a
// string of drops; issued-currency amounts arrive as an object and report
// false.
func parseDrops(raw json.RawMessage) (float64, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	drops, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return drops / dropsPerXRP, true
}

// toDomainTransaction converts a stream envelope to a domain transaction.
// Non-transaction messages, failed results, and issued-currency payments
// report false.
func (e *txEnvelope) toDomainTransaction() (domain.LedgerTransaction, bool) {
	if e.Type != "transaction" || e.EngineResult != "tesSUCCESS" {
		return domain.LedgerTransaction{}, false
	}
	tx := e.Transaction
	if tx.Hash == "" {
		return domain.LedgerTransaction{}, false
	}

	txType := domain.TxOther
	var amount float64
	if tx.TransactionType == "Payment" {
		xrp, ok := parseDrops(tx.Amount)
		if !ok {
			return domain.LedgerTransaction{}, false
		}
		txType = domain.TxPayment
		amount = xrp
	}

	return domain.LedgerTransaction{
		ID:          tx.Hash,
		Account:     tx.Account,
		Destination: tx.Destination,
		Amount:      amount,
		TimestampMs: (tx.Date + rippleEpochOffset) * 1000,
		Type:        txType,
		LedgerIndex: e.LedgerIndex,
	}, true
}

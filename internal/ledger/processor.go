package ledger

import (
	"log/slog"

	"github.com/ledgerpulse/ledgerpulse/internal/domain"
)

const (
	// LargeAmountThreshold marks the payment size, in XRP, at and above
	// which an event is weighted "large". The boundary is inclusive.
	LargeAmountThreshold = 250_000

	// dedupCapacity bounds the recent-transaction set used to drop
	// replayed events.
	dedupCapacity = 50
)

// recentSet remembers the last dedupCapacity transaction IDs. When full, the
// oldest ID is evicted.
type recentSet struct {
	ids  []string
	next int
	seen map[string]struct{}
}

func newRecentSet(capacity int) *recentSet {
	return &recentSet{
		ids:  make([]string, capacity),
		seen: make(map[string]struct{}, capacity),
	}
}

// add records id and reports whether it was new.
func (s *recentSet) add(id string) bool {
	if _, ok := s.seen[id]; ok {
		return false
	}
	if old := s.ids[s.next]; old != "" {
		delete(s.seen, old)
	}
	s.ids[s.next] = id
	s.next = (s.next + 1) % len(s.ids)
	s.seen[id] = struct{}{}
	return true
}

// Processor converts ledger transactions into renderable payment events.
// Non-payment and zero-amount transactions are dropped, as are IDs seen in
// the recent window. Processor is not safe for concurrent use; the ingest
// pipeline feeds it from a single goroutine.
type Processor struct {
	labels *Labeler
	recent *recentSet
	logger *slog.Logger
}

// NewProcessor creates a Processor using the given label table.
func NewProcessor(labels *Labeler, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		labels: labels,
		recent: newRecentSet(dedupCapacity),
		logger: logger.With(slog.String("component", "ledger_processor")),
	}
}

// Process filters and enriches one transaction. The second return is false
// when the transaction was dropped.
func (p *Processor) Process(tx domain.LedgerTransaction) (domain.ProcessedEvent, bool) {
	if tx.Type != domain.TxPayment || tx.Amount <= 0 {
		return domain.ProcessedEvent{}, false
	}
	if !p.recent.add(tx.ID) {
		p.logger.Debug("duplicate transaction dropped", slog.String("tx", tx.ID))
		return domain.ProcessedEvent{}, false
	}

	senderLabel, src := p.labels.Resolve(tx.Account)
	destLabel, dst := p.labels.Resolve(tx.Destination)

	weight := domain.WeightNormal
	if tx.Amount >= LargeAmountThreshold {
		weight = domain.WeightLarge
	}

	return domain.ProcessedEvent{
		Transaction: tx,
		Arc:         BuildArc(src, dst),
		SenderLabel: senderLabel,
		DestLabel:   destLabel,
		Weight:      weight,
	}, true
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ledgerpulse/ledgerpulse/internal/domain"
	"github.com/ledgerpulse/ledgerpulse/internal/ledger"
)

const (
	// recentCapacity bounds the in-memory replay ring served to new
	// WebSocket clients and the recent-payments endpoint.
	recentCapacity = 60

	// paymentStream is the durable signal stream used to rebuild the ring
	// after a restart.
	paymentStream = "events:payments"

	// flushBatchSize triggers an early store flush when the buffer fills.
	flushBatchSize = 32
)

// Archiver offloads aged payments to object storage. *s3blob.Archiver
// satisfies it.
type Archiver interface {
	ArchivePayments(ctx context.Context, before time.Time) (int64, error)
}

// LedgerService drives the payment event pipeline: raw transactions come in
// from the ledger stream, pass through the processor, and fan out to the
// bus, the replay ring, and (when configured) the postgres archive.
type LedgerService struct {
	processor *ledger.Processor
	labels    *ledger.Labeler
	bus       domain.SignalBus
	store     domain.PaymentStore // nil when postgres is disabled
	addrStore domain.KnownAddressStore
	archiver  Archiver // nil when s3 is disabled
	logger    *slog.Logger

	mu     sync.Mutex
	recent []domain.ProcessedEvent
	batch  []domain.ProcessedEvent
}

// LedgerServiceOptions wires a LedgerService. Store, AddrStore and Archiver
// are optional.
type LedgerServiceOptions struct {
	Processor *ledger.Processor
	Labels    *ledger.Labeler
	Bus       domain.SignalBus
	Store     domain.PaymentStore
	AddrStore domain.KnownAddressStore
	Archiver  Archiver
	Logger    *slog.Logger
}

// NewLedgerService creates a LedgerService.
func NewLedgerService(opts LedgerServiceOptions) *LedgerService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerService{
		processor: opts.Processor,
		labels:    opts.Labels,
		bus:       opts.Bus,
		store:     opts.Store,
		addrStore: opts.AddrStore,
		archiver:  opts.Archiver,
		logger:    logger.With(slog.String("component", "ledger_service")),
	}
}

// HandleTransaction runs one raw transaction through the processor and fans
// out the result. Dropped transactions are a no-op.
func (s *LedgerService) HandleTransaction(ctx context.Context, tx domain.LedgerTransaction) {
	ev, ok := s.processor.Process(tx)
	if !ok {
		return
	}

	payload, err := json.Marshal(busEnvelope{Event: "payment", Data: ev})
	if err != nil {
		return
	}

	s.mu.Lock()
	s.recent = append(s.recent, ev)
	if len(s.recent) > recentCapacity {
		s.recent = s.recent[len(s.recent)-recentCapacity:]
	}
	var toFlush []domain.ProcessedEvent
	if s.store != nil {
		s.batch = append(s.batch, ev)
		if len(s.batch) >= flushBatchSize {
			toFlush = s.batch
			s.batch = nil
		}
	}
	s.mu.Unlock()

	if err := s.bus.Publish(ctx, ChannelPayments, payload); err != nil {
		s.logger.WarnContext(ctx, "publish payment failed", slog.String("error", err.Error()))
	}
	if err := s.bus.StreamAppend(ctx, paymentStream, payload); err != nil {
		s.logger.WarnContext(ctx, "stream append failed", slog.String("error", err.Error()))
	}

	if len(toFlush) > 0 {
		s.flush(ctx, toFlush)
	}
}

// Recent returns up to limit events, newest first.
func (s *LedgerService) Recent(limit int) []domain.ProcessedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.recent) {
		limit = len(s.recent)
	}
	out := make([]domain.ProcessedEvent, 0, limit)
	for i := len(s.recent) - 1; i >= len(s.recent)-limit; i-- {
		out = append(out, s.recent[i])
	}
	return out
}

// WarmUp rebuilds the replay ring from the tail of the durable payment
// stream, so a restart picks up the newest events rather than the oldest
// entries surviving stream trimming. Missing or empty streams are not an
// error.
func (s *LedgerService) WarmUp(ctx context.Context) error {
	msgs, err := s.bus.StreamTail(ctx, paymentStream, recentCapacity)
	if err != nil {
		return fmt.Errorf("ledger_service: warm up: %w", err)
	}

	var events []domain.ProcessedEvent
	for _, msg := range msgs {
		var env struct {
			Data domain.ProcessedEvent `json:"data"`
		}
		if err := json.Unmarshal(msg.Payload, &env); err != nil {
			continue
		}
		events = append(events, env.Data)
	}

	s.mu.Lock()
	s.recent = events
	if len(s.recent) > recentCapacity {
		s.recent = s.recent[len(s.recent)-recentCapacity:]
	}
	s.mu.Unlock()

	s.logger.Info("replay ring warmed", slog.Int("events", len(events)))
	return nil
}

// RunFlushLoop periodically flushes buffered events to the payment store.
// It returns when ctx is cancelled, flushing once more on the way out.
func (s *LedgerService) RunFlushLoop(ctx context.Context, interval time.Duration) error {
	if s.store == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.flush(flushCtx, s.takeBatch())
			cancel()
			return ctx.Err()
		case <-ticker.C:
			s.flush(ctx, s.takeBatch())
		}
	}
}

// RunLabelRefresh reloads the known-address table from the store at the
// given interval, so label edits land without a restart.
func (s *LedgerService) RunLabelRefresh(ctx context.Context, interval time.Duration) error {
	if s.addrStore == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	refresh := func() {
		addrs, err := s.addrStore.ListAll(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "known address refresh failed", slog.String("error", err.Error()))
			return
		}
		if len(addrs) > 0 {
			s.labels.Replace(addrs)
		}
	}
	refresh()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			refresh()
		}
	}
}

// RunArchiveLoop periodically offloads payments older than retention to
// object storage and prunes the archived rows. It requires both the store
// and the archiver; otherwise it idles until ctx is cancelled.
func (s *LedgerService) RunArchiveLoop(ctx context.Context, interval, retention time.Duration) error {
	if s.store == nil || s.archiver == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().Add(-retention)
			count, err := s.archiver.ArchivePayments(ctx, cutoff)
			if err != nil {
				s.logger.WarnContext(ctx, "archive failed", slog.String("error", err.Error()))
				continue
			}
			if count == 0 {
				continue
			}
			deleted, err := s.store.DeleteBefore(ctx, cutoff)
			if err != nil {
				s.logger.WarnContext(ctx, "prune after archive failed", slog.String("error", err.Error()))
				continue
			}
			s.logger.Info("payments archived and pruned",
				slog.Int64("archived", count),
				slog.Int64("deleted", deleted))
		}
	}
}

// History reads recent payments from the postgres archive, falling back to
// the in-memory ring when no store is configured.
func (s *LedgerService) History(ctx context.Context, limit int) ([]domain.ProcessedEvent, error) {
	if s.store == nil {
		return s.Recent(limit), nil
	}
	events, err := s.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger_service: history: %w", err)
	}
	return events, nil
}

func (s *LedgerService) takeBatch() []domain.ProcessedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.batch
	s.batch = nil
	return batch
}

func (s *LedgerService) flush(ctx context.Context, events []domain.ProcessedEvent) {
	if s.store == nil || len(events) == 0 {
		return
	}
	if err := s.store.InsertBatch(ctx, events); err != nil {
		s.logger.WarnContext(ctx, "payment flush failed",
			slog.Int("events", len(events)),
			slog.String("error", err.Error()))
	}
}

package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
	applogger "CoinPulse/pkg/logger"
)

// BatchProc is the minimal processor interface the pipeline needs.
type BatchProc interface {
	ProcessBatch(ctx context.Context, trades []models.TradeRecord) error
}

// TradePipeline decouples the ledger from the journal backend. Submit never
// blocks; a background worker batches, retries with backoff and drops what
// the buffer cannot hold.
type TradePipeline struct {
	proc       BatchProc
	metrics    domrepo.Metrics
	logger     *applogger.Logger
	bufSize    int
	batchSize  int
	flushEvery time.Duration
	maxRetries int
	backoff    time.Duration

	bufCh   chan models.TradeRecord
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	mu      sync.Mutex
}

type PipelineOption func(*TradePipeline)

// WithBufferSize sets how many records may wait for the backend.
func WithBufferSize(n int) PipelineOption {
	return func(p *TradePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithBatch sets the flush size and the maximum time a record waits.
func WithBatch(size int, every time.Duration) PipelineOption {
	return func(p *TradePipeline) {
		if size > 0 {
			p.batchSize = size
		}
		if every > 0 {
			p.flushEvery = every
		}
	}
}

// WithRetry sets the attempts per batch and the initial backoff.
func WithRetry(attempts int, backoff time.Duration) PipelineOption {
	return func(p *TradePipeline) {
		if attempts > 0 {
			p.maxRetries = attempts
		}
		if backoff > 0 {
			p.backoff = backoff
		}
	}
}

func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *TradePipeline) { p.logger = l }
}

func NewTradePipeline(proc BatchProc, metrics domrepo.Metrics, opts ...PipelineOption) *TradePipeline {
	p := &TradePipeline{
		proc:       proc,
		metrics:    metrics,
		logger:     applogger.Nop(),
		bufSize:    1000,
		batchSize:  100,
		flushEvery: time.Second,
		maxRetries: 3,
		backoff:    50 * time.Millisecond,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan models.TradeRecord, p.bufSize)
	return p
}

// Submit enqueues records without blocking. It reports false when any record
// was dropped because the buffer is full.
func (p *TradePipeline) Submit(trades ...models.TradeRecord) bool {
	ok := true
	for _, t := range trades {
		if err := validateRecord(t); err != nil {
			p.metrics.RecordError("pipeline_validate")
			p.logger.Warn("trade record rejected", applogger.Error(err))
			continue
		}
		select {
		case p.bufCh <- t:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
			ok = false
		}
	}
	return ok
}

// Pending is the number of buffered records.
func (p *TradePipeline) Pending() int { return len(p.bufCh) }

// Start launches the flushing worker.
func (p *TradePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.run(ctx)
}

// Stop flushes what is buffered and waits for the worker to exit.
func (p *TradePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.doneCh
}

func (p *TradePipeline) run(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.flushEvery)
	defer ticker.Stop()

	batch := make([]models.TradeRecord, 0, p.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		p.flush(ctx, batch)
		batch = batch[:0]
	}

	for {
		select {
		case <-p.stopCh:
			for {
				select {
				case t := <-p.bufCh:
					batch = append(batch, t)
					if len(batch) >= p.batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		case <-ctx.Done():
			flush()
			return
		case t := <-p.bufCh:
			batch = append(batch, t)
			if len(batch) >= p.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (p *TradePipeline) flush(ctx context.Context, batch []models.TradeRecord) {
	start := time.Now()
	backoff := p.backoff
	var err error
	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		if err = p.proc.ProcessBatch(context.WithoutCancel(ctx), batch); err == nil {
			p.metrics.RecordLatency("pipeline_flush", time.Since(start).Seconds())
			return
		}
		p.metrics.RecordError("pipeline_flush")
		if attempt == p.maxRetries {
			break
		}
		time.Sleep(backoff)
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
	p.metrics.RecordError("pipeline_drop")
	p.logger.Error("trade batch dropped after retries",
		applogger.Int("count", len(batch)),
		applogger.Int("attempts", p.maxRetries),
		applogger.Error(err),
	)
}

func validateRecord(t models.TradeRecord) error {
	if t.ID == "" {
		return fmt.Errorf("trade id empty")
	}
	if t.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if t.ExecutedAt.IsZero() {
		return fmt.Errorf("timestamp invalid")
	}
	if t.Price.IsNegative() || t.Quantity.IsNegative() {
		return fmt.Errorf("negative price/amount")
	}
	return nil
}

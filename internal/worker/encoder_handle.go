package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"kosera-ai-service/internal/domain"
	"kosera-ai-service/internal/infra/logger"
	"kosera-ai-service/internal/infra/metrics"
)

const probeText = "readiness probe"

type job struct {
	ctx      context.Context
	texts    []string
	enqueued time.Time
	result   chan jobResult
}

type jobResult struct {
	vectors [][]float32
	err     error
}

// EncoderHandle owns the single process-wide encoder. Requests are queued on a
// FIFO channel and drained by a fixed set of workers; unless the encoder
// declares itself concurrent-safe there is exactly one worker, so inference
// never overlaps.
type EncoderHandle struct {
	readiness *domain.Readiness
	dimension int
	workers   int
	logger    *slog.Logger

	jobs     chan job
	stopChan chan struct{}
	wg       sync.WaitGroup

	loadOnce  sync.Once
	closeOnce sync.Once

	mu      sync.Mutex
	encoder domain.VectorEncoder
	closed  bool
	running int
}

func NewEncoderHandle(readiness *domain.Readiness, workers, queueSize int, log *slog.Logger) *EncoderHandle {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &EncoderHandle{
		readiness: readiness,
		dimension: readiness.Model().Dimension,
		workers:   workers,
		logger:    log,
		jobs:      make(chan job, queueSize),
		stopChan:  make(chan struct{}),
	}
}

// Load builds the encoder with loader and moves readiness to ready or failed.
// Only the first call does anything; later calls return ErrAlreadyInitialized.
func (h *EncoderHandle) Load(ctx context.Context, loader domain.EncoderLoader) error {
	err := domain.ErrAlreadyInitialized
	h.loadOnce.Do(func() {
		err = h.load(ctx, loader)
		if err != nil {
			h.readiness.MarkFailed(err)
			h.logger.Error("encoder_load_failed",
				slog.String("model", h.readiness.Model().Name),
				slog.String("error", err.Error()),
			)
		}
		metrics.SetModelState(int(h.readiness.State()))
	})
	return err
}

func (h *EncoderHandle) load(ctx context.Context, loader domain.EncoderLoader) error {
	start := time.Now()
	h.logger.Info("encoder_loading", slog.String("model", h.readiness.Model().Name))

	enc, err := loader(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrLoadFailed, err)
	}
	if enc == nil {
		return fmt.Errorf("%w: loader returned no encoder", domain.ErrLoadFailed)
	}

	if err := h.probe(ctx, enc); err != nil {
		_ = enc.Close()
		return fmt.Errorf("%w: %w", domain.ErrLoadFailed, err)
	}

	workers := 1
	if c, ok := enc.(domain.ConcurrentEncoder); ok && c.ConcurrentSafe() {
		workers = h.workers
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = enc.Close()
		return domain.ErrEncoderClosed
	}
	h.encoder = enc
	h.running = workers
	for i := 0; i < workers; i++ {
		h.wg.Add(1)
		go h.run(enc)
	}
	h.mu.Unlock()

	h.readiness.MarkReady()
	h.logger.Info("encoder_ready",
		slog.String("model", h.readiness.Model().Name),
		slog.String("version", enc.Version()),
		slog.Int("dimension", h.dimension),
		slog.Int("workers", workers),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (h *EncoderHandle) probe(ctx context.Context, enc domain.VectorEncoder) error {
	vecs, err := safeEncode(ctx, enc, []string{probeText})
	if err != nil {
		return fmt.Errorf("probe encode: %w", err)
	}
	if len(vecs) != 1 {
		return fmt.Errorf("probe returned %d vectors: %w", len(vecs), domain.ErrMisalignedResult)
	}
	if h.dimension > 0 && len(vecs[0]) != h.dimension {
		return fmt.Errorf("probe returned dimension %d, want %d: %w",
			len(vecs[0]), h.dimension, domain.ErrDimensionMismatch)
	}
	return nil
}

// Embed runs one inference call. It fails fast with the readiness error while
// the encoder is not ready and never blocks waiting for a load.
func (h *EncoderHandle) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := h.readiness.Err(); err != nil {
		return nil, err
	}

	j := job{
		ctx:      logger.WithStage(ctx, logger.StageQueued),
		texts:    texts,
		enqueued: time.Now(),
		result:   make(chan jobResult, 1),
	}

	select {
	case h.jobs <- j:
		h.observeQueue()
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.stopChan:
		return nil, domain.ErrEncoderClosed
	}

	select {
	case r := <-j.result:
		return r.vectors, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.stopChan:
		return nil, domain.ErrEncoderClosed
	}
}

// Workers reports how many inference workers are draining the queue.
func (h *EncoderHandle) Workers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Close stops the workers and releases the model. Queued callers receive
// ErrEncoderClosed.
func (h *EncoderHandle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		enc := h.encoder
		h.mu.Unlock()

		close(h.stopChan)
		h.wg.Wait()
		h.drain()

		if enc != nil {
			err = enc.Close()
		}
		h.logger.Info("encoder_closed")
	})
	return err
}

func (h *EncoderHandle) run(enc domain.VectorEncoder) {
	defer h.wg.Done()
	for {
		select {
		case <-h.stopChan:
			return
		case j := <-h.jobs:
			h.observeQueue()
			h.process(enc, j)
		}
	}
}

func (h *EncoderHandle) process(enc domain.VectorEncoder, j job) {
	metrics.RecordQueueWait(time.Since(j.enqueued).Seconds())

	// Caller already gave up; skip the model call.
	if err := j.ctx.Err(); err != nil {
		h.logger.DebugContext(j.ctx, "inference_skipped", slog.String("error", err.Error()))
		j.result <- jobResult{err: err}
		return
	}

	ctx := logger.WithStage(j.ctx, logger.StageInference)
	start := time.Now()
	vecs, err := safeEncode(ctx, enc, j.texts)
	status := "success"
	if err != nil {
		status = "error"
		h.logger.ErrorContext(ctx, "encoder_inference_failed",
			slog.Int("texts", len(j.texts)),
			slog.String("error", err.Error()),
		)
	}
	metrics.RecordInference(status, len(j.texts), time.Since(start).Seconds())
	j.result <- jobResult{vectors: vecs, err: err}
}

// drain fails jobs still queued after the workers stopped.
func (h *EncoderHandle) drain() {
	defer h.observeQueue()
	for {
		select {
		case j := <-h.jobs:
			j.result <- jobResult{err: domain.ErrEncoderClosed}
		default:
			return
		}
	}
}

// observeQueue publishes the number of jobs waiting for a worker.
func (h *EncoderHandle) observeQueue() {
	metrics.SetQueueDepth(len(h.jobs))
}

func safeEncode(ctx context.Context, enc domain.VectorEncoder, texts []string) (vecs [][]float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			vecs = nil
			err = fmt.Errorf("%w: panic: %v", domain.ErrEncoderFailure, r)
		}
	}()
	vecs, err = enc.Encode(ctx, texts)
	if err != nil && !errors.Is(err, domain.ErrEncoderFailure) {
		err = fmt.Errorf("%w: %w", domain.ErrEncoderFailure, err)
	}
	return vecs, err
}

var _ domain.Embedder = (*EncoderHandle)(nil)

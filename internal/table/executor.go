package table

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MarcoPoloResearchLab/mealog/internal/meals"
	"go.uber.org/zap"
)

const defaultResultBuffer = 64

var errMissingRepository = errors.New("meal repository is required")

// MealWriter is the part of the repository a table's writes are applied to.
type MealWriter interface {
	AddMeal(ctx context.Context, meal meals.Meal) error
	UpdateMeal(ctx context.Context, id string, patch meals.Patch) error
	DeleteMeal(ctx context.Context, id string) error
}

// ExecutorConfig describes an Executor.
type ExecutorConfig struct {
	Writer       MealWriter
	Logger       *zap.Logger
	ResultBuffer int
}

// Executor applies writes one at a time, in submission order, on its own
// goroutine. Submit never blocks the caller.
type Executor struct {
	writer  MealWriter
	logger  *zap.Logger
	results chan Result

	mu        sync.Mutex
	queue     []Write
	wake      chan struct{}
	stopped   bool
	closing   chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

// NewExecutor constructs an Executor. Call Run to start applying writes.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Writer == nil {
		return nil, errMissingRepository
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	buffer := cfg.ResultBuffer
	if buffer <= 0 {
		buffer = defaultResultBuffer
	}
	return &Executor{
		writer:  cfg.Writer,
		logger:  logger,
		results: make(chan Result, buffer),
		wake:    make(chan struct{}, 1),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// Submit queues writes behind every write submitted before them.
func (e *Executor) Submit(writes ...Write) {
	if len(writes) == 0 {
		return
	}
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		e.logger.Warn("writes dropped after executor stopped", zap.Int("count", len(writes)))
		return
	}
	e.queue = append(e.queue, writes...)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Results streams the outcome of every applied write. The channel closes when
// Run returns.
func (e *Executor) Results() <-chan Result {
	return e.results
}

// Pending reports how many writes wait to be applied.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Run applies queued writes until ctx is done, or until Close is called and
// the queue is empty.
func (e *Executor) Run(ctx context.Context) {
	defer func() {
		e.mu.Lock()
		e.stopped = true
		e.mu.Unlock()
		close(e.results)
		close(e.done)
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		write, ok := e.next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-e.closing:
				return
			case <-e.wake:
				continue
			}
		}

		result := Result{Write: write, Err: e.apply(ctx, write)}
		if !e.deliver(ctx, result) {
			return
		}
	}
}

// Close stops accepting writes and waits until Run has applied everything
// already queued. It gives up when ctx is done first.
func (e *Executor) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.stopped = true
		e.mu.Unlock()
		close(e.closing)
	})
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("executor close with %d writes pending: %w", e.Pending(), ctx.Err())
	}
}

// deliver hands result to the Results reader. Once closing, nobody may be
// reading, so a full buffer drops the result instead of stalling the drain.
func (e *Executor) deliver(ctx context.Context, result Result) bool {
	select {
	case e.results <- result:
		return true
	case <-ctx.Done():
		return false
	case <-e.closing:
		select {
		case e.results <- result:
		default:
			e.logger.Debug("write result dropped while closing",
				zap.String("kind", result.Write.Kind.String()),
				zap.String("meal_id", result.Write.MealID))
		}
		return true
	}
}

func (e *Executor) next() (Write, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return Write{}, false
	}
	write := e.queue[0]
	e.queue[0] = Write{}
	e.queue = e.queue[1:]
	return write, true
}

func (e *Executor) apply(ctx context.Context, write Write) error {
	var err error
	switch write.Kind {
	case WriteCreate:
		err = e.writer.AddMeal(ctx, write.Meal)
	case WriteUpdate:
		err = e.writer.UpdateMeal(ctx, write.MealID, write.Patch)
	case WriteDelete:
		err = e.writer.DeleteMeal(ctx, write.MealID)
	default:
		err = fmt.Errorf("unknown write kind %d", write.Kind)
	}
	if err != nil {
		e.logger.Error("meal write failed",
			zap.String("kind", write.Kind.String()),
			zap.String("meal_id", write.MealID),
			zap.String("date", write.Date),
			zap.Error(err))
	}
	return err
}

package apierror

import (
	"context"
	"sync"
	"sync/atomic"
)

// Dispatcher decouples request handling from record persistence: Emit is
// non-blocking (with DropIfFull) and a single goroutine drains to the
// sink. Close drains whatever is buffered before returning.
type Dispatcher struct {
	sink       Sink
	ch         chan Record
	done       chan struct{}
	wg         sync.WaitGroup
	dropped    atomic.Uint64
	closed     atomic.Bool
	closeOnce  sync.Once
	dropIfFull bool
}

// NewDispatcher starts the drain goroutine. A nil sink is replaced with
// [NoOpSink].
func NewDispatcher(sink Sink, buffer int, dropIfFull bool) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:       sink,
		ch:         make(chan Record, buffer),
		done:       make(chan struct{}),
		dropIfFull: dropIfFull,
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case record := <-d.ch:
			d.sink.Emit(context.Background(), record)
		case <-d.done:
			for {
				select {
				case record := <-d.ch:
					d.sink.Emit(context.Background(), record)
				default:
					return
				}
			}
		}
	}
}

// Emit queues a record. With dropIfFull the call never blocks; dropped
// records are counted instead.
func (d *Dispatcher) Emit(ctx context.Context, record Record) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.dropIfFull {
		select {
		case d.ch <- record:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- record:
	case <-ctx.Done():
	case <-d.done:
	}
}

// Close stops intake and drains the buffer.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped reports how many records were discarded under backpressure.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

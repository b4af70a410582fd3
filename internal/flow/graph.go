// internal/flow/graph.go
package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/womat/debug"
	"golang.org/x/sync/errgroup"
)

// DefaultBufferSize is the output capacity offered to a kernel per call.
const DefaultBufferSize = 4096

// channelDepth is the number of chunks buffered between two blocks.
const channelDepth = 16

var (
	// ErrStalled indicates a kernel neither consumed nor produced anything
	// on finished input without reporting completion.
	ErrStalled = errors.New("kernel stalled on finished input")
	// ErrInvalidBufferSize indicates the output buffer size must be positive
	ErrInvalidBufferSize = errors.New("buffer size must be positive")
)

// Graph runs connected kernels, one goroutine each. The first failing block
// cancels the others.
type Graph struct {
	ctx   context.Context
	group *errgroup.Group
}

// NewGraph creates an empty flowgraph bound to ctx.
func NewGraph(ctx context.Context) *Graph {
	group, gctx := errgroup.WithContext(ctx)
	return &Graph{ctx: gctx, group: group}
}

// Context returns the context shared by all blocks of the graph.
func (g *Graph) Context() context.Context {
	return g.ctx
}

// Go starts fn as an additional block of the graph.
func (g *Graph) Go(fn func(ctx context.Context) error) {
	g.group.Go(func() error {
		return fn(g.ctx)
	})
}

// Wait blocks until every block returned and reports the first error.
func (g *Graph) Wait() error {
	return g.group.Wait()
}

// Connect starts k reading chunks from in and returns the channel carrying
// its output. The output channel is closed once the kernel finished.
func Connect[I, O any](g *Graph, name string, k Kernel[I, O], in <-chan []I, bufSize int) <-chan []O {
	out := make(chan []O, channelDepth)
	g.group.Go(func() error {
		defer close(out)
		if bufSize <= 0 {
			return fmt.Errorf("%s: %w", name, ErrInvalidBufferSize)
		}
		return run(g.ctx, name, k, in, out, bufSize)
	})
	return out
}

func run[I, O any](ctx context.Context, name string, k Kernel[I, O], in <-chan []I, out chan<- []O, bufSize int) error {
	var pending []I
	finished := false
	buf := make([]O, bufSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var wio WorkIO
		input := NewInput(pending, finished)
		output := NewOutput(buf)
		k.Work(&wio, input, output)

		consumed := input.Consumed()
		produced := output.Produced()

		if produced > 0 {
			items := make([]O, produced)
			copy(items, buf[:produced])
			select {
			case out <- items:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		pending = pending[consumed:]
		if len(pending) == 0 {
			pending = nil
		}

		if wio.Finished {
			debug.DebugLog.Printf("%s: finished", name)
			return nil
		}
		if wio.CallAgain || (consumed > 0 && len(pending) > 0) {
			continue
		}
		if finished {
			if consumed == 0 && produced == 0 {
				return fmt.Errorf("%s: %w", name, ErrStalled)
			}
			continue
		}

		select {
		case chunk, ok := <-in:
			if !ok {
				finished = true
				continue
			}
			pending = append(pending, chunk...)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Source feeds items into the graph in chunks of at most chunk elements.
func Source[T any](g *Graph, items []T, chunk int) <-chan []T {
	if chunk <= 0 {
		chunk = DefaultBufferSize
	}
	out := make(chan []T, channelDepth)
	g.group.Go(func() error {
		defer close(out)
		for start := 0; start < len(items); start += chunk {
			end := min(start+chunk, len(items))
			select {
			case out <- items[start:end]:
			case <-g.ctx.Done():
				return g.ctx.Err()
			}
		}
		return nil
	})
	return out
}

// Sink drains in, handing every chunk to fn.
func Sink[T any](g *Graph, in <-chan []T, fn func([]T) error) {
	g.group.Go(func() error {
		for {
			select {
			case chunk, ok := <-in:
				if !ok {
					return nil
				}
				if err := fn(chunk); err != nil {
					return err
				}
			case <-g.ctx.Done():
				return g.ctx.Err()
			}
		}
	})
}

// VectorSink collects every element it receives.
type VectorSink[T any] struct {
	mu    sync.Mutex
	items []T
}

// Collect drains in into a VectorSink.
func Collect[T any](g *Graph, in <-chan []T) *VectorSink[T] {
	s := &VectorSink[T]{}
	Sink(g, in, func(chunk []T) error {
		s.mu.Lock()
		s.items = append(s.items, chunk...)
		s.mu.Unlock()
		return nil
	})
	return s
}

// Items returns a copy of the collected elements.
func (s *VectorSink[T]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]T, len(s.items))
	copy(items, s.items)
	return items
}

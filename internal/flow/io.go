// internal/flow/io.go
// Package flow is the runtime that drives streaming kernels.
//
// A kernel is a call-and-return state machine. On every call it is offered a
// read-only view of the pending input and a writable view of free output
// slots, and reports how many elements of each it used. The runtime owns the
// buffers, the backpressure and the goroutines.
package flow

// WorkIO carries the control flags a kernel reports back to the runtime.
type WorkIO struct {
	// Finished reports that the kernel will never produce more output.
	// The runtime stops calling the kernel once it is set.
	Finished bool
	// CallAgain asks the runtime to invoke the kernel again before waiting
	// for new input, because buffered state can still yield output.
	CallAgain bool
}

// Kernel is a streaming block turning elements of I into elements of O.
// A kernel instance is never invoked concurrently.
type Kernel[I, O any] interface {
	Work(io *WorkIO, in *Input[I], out *Output[O])
}

// Input is the view of pending input offered to a kernel.
type Input[T any] struct {
	buf      []T
	consumed int
	finished bool
}

// NewInput wraps buf. finished reports that no element beyond buf will ever
// arrive.
func NewInput[T any](buf []T, finished bool) *Input[T] {
	return &Input[T]{buf: buf, finished: finished}
}

// Slice returns the offered input elements.
func (i *Input[T]) Slice() []T {
	return i.buf
}

// Consume marks n elements at the head of Slice as used.
// It panics if more elements are consumed than were offered.
func (i *Input[T]) Consume(n int) {
	if n < 0 || i.consumed+n > len(i.buf) {
		panic("flow: consumed more input than offered")
	}
	i.consumed += n
}

// Consumed returns the number of elements consumed so far in this call.
func (i *Input[T]) Consumed() int {
	return i.consumed
}

// Finished reports whether the upstream will never deliver more input.
func (i *Input[T]) Finished() bool {
	return i.finished
}

// Output is the view of free output slots offered to a kernel.
type Output[T any] struct {
	buf      []T
	produced int
}

// NewOutput offers buf as free output capacity.
func NewOutput[T any](buf []T) *Output[T] {
	return &Output[T]{buf: buf}
}

// Slice returns the free output slots.
func (o *Output[T]) Slice() []T {
	return o.buf
}

// Produce marks n slots at the head of Slice as filled.
// It panics if more slots are filled than were offered.
func (o *Output[T]) Produce(n int) {
	if n < 0 || o.produced+n > len(o.buf) {
		panic("flow: produced more output than offered")
	}
	o.produced += n
}

// Produced returns the number of filled slots.
func (o *Output[T]) Produced() int {
	return o.produced
}

// Items returns the filled slots.
func (o *Output[T]) Items() []T {
	return o.buf[:o.produced]
}

package visualsink

import (
	"log/slog"
	"sync/atomic"
)

// queueCapacity bounds how many undelivered visualization frames the
// dispatcher holds. A slow or stalled sink drops frames rather than
// growing without bound. Rounded up to the next power of 2 internally.
const queueCapacity = 64

// frameQueue is a lock-free single-producer single-consumer ring buffer of
// frame values, sized for the Dispatcher's producer (the audio callback)
// and its single drain goroutine.
type frameQueue struct {
	buf      []frame
	mask     uint64
	writePos atomic.Uint64
	readPos  atomic.Uint64
}

func newFrameQueue(capacity uint64) *frameQueue {
	capacity = nextPowerOf2(capacity)
	return &frameQueue{
		buf:  make([]frame, capacity),
		mask: capacity - 1,
	}
}

func (q *frameQueue) push(f frame) bool {
	writePos := q.writePos.Load()
	readPos := q.readPos.Load()
	if writePos-readPos >= uint64(len(q.buf)) {
		return false
	}
	q.buf[writePos&q.mask] = f
	q.writePos.Store(writePos + 1)
	return true
}

func (q *frameQueue) pop() (frame, bool) {
	readPos := q.readPos.Load()
	writePos := q.writePos.Load()
	if readPos >= writePos {
		return frame{}, false
	}
	f := q.buf[readPos&q.mask]
	q.readPos.Store(readPos + 1)
	return f, true
}

func nextPowerOf2(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}

// Dispatcher decouples the audio callback from a Sink's Write latency. The
// callback's dispatchVisualization enqueues a frame (non-blocking, drop on
// full) and returns immediately; one long-lived worker goroutine drains the
// queue and calls the wrapped Sink. This replaces spawning one throwaway
// goroutine per callback tick with a single worker and a bounded backlog,
// so a sink that stalls sheds load instead of piling up goroutines.
type Dispatcher struct {
	sink  Sink
	queue *frameQueue
	wake  chan struct{}
	done  chan struct{}

	format FrameFormat
}

// NewDispatcher starts a Dispatcher wrapping sink. format describes the
// samples each payload passed to Enqueue represents.
func NewDispatcher(sink Sink, format FrameFormat) *Dispatcher {
	d := &Dispatcher{
		sink:   sink,
		queue:  newFrameQueue(queueCapacity),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		format: format,
	}
	go d.run()
	return d
}

// Enqueue frames payload and queues it for delivery. Never blocks; drops
// the frame if the queue is full.
func (d *Dispatcher) Enqueue(payload []byte) {
	f := frame{
		Format:       d.format,
		SamplesCount: uint16(len(payload)),
		Payload:      payload,
	}
	if !d.queue.push(f) {
		slog.Debug("visualsink: dispatch queue full, dropping frame")
		return
	}
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Close stops the worker goroutine. It does not flush the queue.
func (d *Dispatcher) Close() {
	close(d.done)
}

func (d *Dispatcher) run() {
	for {
		select {
		case <-d.done:
			return
		case <-d.wake:
			d.drain()
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		f, ok := d.queue.pop()
		if !ok {
			return
		}
		if err := d.sink.Write(f.marshal()); err != nil {
			slog.Debug("visualsink: dispatch write failed", "error", err)
		}
	}
}

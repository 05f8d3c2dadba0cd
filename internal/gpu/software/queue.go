package software

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"gpulife/internal/gpu"
)

type op struct {
	run  func() error
	done *gpu.Submission
}

// queue executes writes and submissions in call order on one goroutine. It
// is unbounded, so producers never block on the device.
type queue struct {
	dev *Device

	mu      sync.Mutex
	cond    *sync.Cond
	ops     []op
	closed  bool
	stopped chan struct{}
}

var _ gpu.Queue = (*queue)(nil)

func newQueue(dev *Device) *queue {
	q := &queue{dev: dev, stopped: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.loop()
	return q
}

func (q *queue) push(o op) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return gpu.ErrReleased
	}
	q.ops = append(q.ops, o)
	q.cond.Signal()
	return nil
}

func (q *queue) loop() {
	defer close(q.stopped)
	for {
		q.mu.Lock()
		for len(q.ops) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.ops) == 0 {
			q.mu.Unlock()
			return
		}
		o := q.ops[0]
		q.ops[0] = op{}
		q.ops = q.ops[1:]
		q.mu.Unlock()

		err := safeRun(o.run)
		if err != nil {
			q.dev.log.Warn("queued work failed", zap.Error(err))
		}
		if o.done != nil {
			o.done.Complete(err)
		}
	}
}

func safeRun(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("software: panic in queued work: %v", r)
		}
	}()
	return fn()
}

// close stops accepting work and waits for everything already queued.
func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	<-q.stopped
}

// WriteBuffer copies data now and applies it after all earlier queued work.
func (q *queue) WriteBuffer(b gpu.Buffer, offset uint64, data []byte) error {
	buf, ok := b.(*buffer)
	if !ok || buf.dev != q.dev {
		return gpu.ErrForeignResource
	}
	if !buf.usage.Has(gpu.BufferUsageCopyDst) {
		return fmt.Errorf("software: write %q: buffer lacks CopyDst usage", buf.label)
	}
	if offset%4 != 0 || len(data)%4 != 0 {
		return fmt.Errorf("software: write %q: offset %d and length %d must be multiples of 4", buf.label, offset, len(data))
	}
	if offset+uint64(len(data)) > buf.size {
		return fmt.Errorf("software: write %q: %d bytes at offset %d overrun size %d", buf.label, len(data), offset, buf.size)
	}
	words := gpu.DecodeWords(data)
	start := offset / 4
	return q.push(op{run: func() error {
		copy(buf.words[start:], words)
		return nil
	}})
}

// Submit enqueues the command buffers as one unit of work. Each command
// buffer may be submitted once.
func (q *queue) Submit(cmds ...gpu.CommandBuffer) (*gpu.Submission, error) {
	list := make([]*commandBuffer, 0, len(cmds))
	for _, c := range cmds {
		cb, ok := c.(*commandBuffer)
		if !ok || cb.dev != q.dev {
			return nil, gpu.ErrForeignResource
		}
		list = append(list, cb)
	}
	for _, cb := range list {
		if !cb.submitted.CompareAndSwap(false, true) {
			return nil, fmt.Errorf("software: command buffer %q already submitted", cb.label)
		}
	}
	sub := gpu.NewSubmission(nil)
	err := q.push(op{
		run: func() error {
			for _, cb := range list {
				if err := cb.execute(); err != nil {
					return err
				}
			}
			return nil
		},
		done: sub,
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

type commandBuffer struct {
	dev       *Device
	label     string
	passes    []pass
	submitted atomic.Bool
}

func (c *commandBuffer) Label() string { return c.label }

func (c *commandBuffer) execute() error {
	for _, p := range c.passes {
		if err := p.execute(); err != nil {
			return fmt.Errorf("software: %s: %w", c.label, err)
		}
	}
	return nil
}

package gpu

import (
	"context"
	"sync"
)

// Submission tracks one queue submission. It is returned by Queue.Submit and
// completes when the device has executed the submitted work. Callers are free
// to ignore it; awaiting it is only needed for determinism.
type Submission struct {
	done chan struct{}
	once sync.Once
	err  error

	mu        sync.Mutex
	completed bool
	callbacks []func(error)

	// poll drives completion on backends that only learn about finished
	// work when asked.
	poll func()
}

// NewSubmission returns a pending submission. poll may be nil.
func NewSubmission(poll func()) *Submission {
	return &Submission{done: make(chan struct{}), poll: poll}
}

// Completed returns a submission that is already done with err.
func Completed(err error) *Submission {
	s := NewSubmission(nil)
	s.Complete(err)
	return s
}

// Complete marks the submission done. Only the first call has an effect.
func (s *Submission) Complete(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.completed = true
		callbacks := s.callbacks
		s.callbacks = nil
		s.mu.Unlock()
		for _, fn := range callbacks {
			fn(err)
		}
		close(s.done)
	})
}

// OnComplete registers fn to run when the submission completes, before Done
// is closed. fn runs immediately when the submission is already complete.
func (s *Submission) OnComplete(fn func(err error)) {
	s.mu.Lock()
	if !s.completed {
		s.callbacks = append(s.callbacks, fn)
		s.mu.Unlock()
		return
	}
	err := s.err
	s.mu.Unlock()
	fn(err)
}

// Done is closed once the work has executed.
func (s *Submission) Done() <-chan struct{} { return s.done }

// Finished reports whether the work has executed, without blocking.
func (s *Submission) Finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Err returns the execution error once the submission is done, nil before.
func (s *Submission) Err() error {
	if !s.Finished() {
		return nil
	}
	return s.err
}

// Wait blocks until the submission completes or ctx is done.
func (s *Submission) Wait(ctx context.Context) error {
	if s.poll != nil && !s.Finished() {
		s.poll()
	}
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

package optimistic

import "context"

// Pending is the outcome of a background commit.
type Pending struct {
	done chan struct{}
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) finish(err error) {
	p.err = err
	close(p.done)
}

// Done is closed once the commit has been reconciled.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the commit finishes and returns its error.
func (p *Pending) Wait() error {
	<-p.done
	return p.err
}

// WaitContext is Wait bounded by ctx. Giving up does not cancel the
// commit.
func (p *Pending) WaitContext(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resolved returns a Pending that has already finished with err.
func Resolved(err error) *Pending {
	p := newPending()
	p.finish(err)
	return p
}

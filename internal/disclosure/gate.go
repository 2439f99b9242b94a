package disclosure

import (
	"context"

	"golang.org/x/time/rate"
)

// Gate bounds the aggregate load on the provider: at most maxInFlight
// requests outstanding at once, dispatched no faster than perSecond.
// Every provider call (auth, listing, download) must acquire the gate
// before issuing a request.
type Gate struct {
	sem     chan struct{}
	limiter *rate.Limiter
}

// NewGate creates a gate with the given concurrency cap and dispatch rate
func NewGate(maxInFlight int, perSecond float64) *Gate {
	return &Gate{
		sem:     make(chan struct{}, maxInFlight),
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// Acquire blocks until a slot is free and the rate limiter allows dispatch
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := g.limiter.Wait(ctx); err != nil {
		<-g.sem
		return err
	}
	return nil
}

// Release frees a slot taken by Acquire
func (g *Gate) Release() {
	<-g.sem
}

// InFlight returns the number of currently outstanding acquisitions
func (g *Gate) InFlight() int {
	return len(g.sem)
}

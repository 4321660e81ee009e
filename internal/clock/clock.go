// Package clock abstracts the time source of the connection pool so idle
// expiry could be tested without sleeping. The interface is compatible with
// the jonboulle/clockwork package, which is only a dependency of tests.
package clock

import "time"

type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	NewTicker(d time.Duration) Ticker
}

// Ticker covers the behavior of a [time.Ticker].
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

func New() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type realTicker struct{ *time.Ticker }

func (r realTicker) Chan() <-chan time.Time {
	return r.C
}

// Package clocktest adapts *[clockwork.FakeClock] to [clock.Clock]. Go
// interfaces are compared nominally for methods returning other
// interfaces, so NewTicker has to re-box the clockwork ticker.
package clocktest

import (
	"context"
	"time"

	"github.com/frankli0324/go-h1client/internal/clock"
	"github.com/jonboulle/clockwork"
)

type FakeClock interface {
	clock.Clock
	Advance(d time.Duration)
	BlockUntilContext(ctx context.Context, waiters int) error
}

func NewFakeClock() FakeClock {
	return fakeClock{clockwork.NewFakeClock()}
}

type fakeClock struct {
	*clockwork.FakeClock
}

var _ FakeClock = fakeClock{}

func (f fakeClock) NewTicker(d time.Duration) clock.Ticker {
	return f.FakeClock.NewTicker(d)
}

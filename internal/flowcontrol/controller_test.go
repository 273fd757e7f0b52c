package flowcontrol

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type fakeLoad struct {
	v atomic.Int64
}

func (f *fakeLoad) Load() int64 { return f.v.Load() }

func TestController_SetsAndClearsFlag(t *testing.T) {
	load := &fakeLoad{}
	c := NewController(load, 100)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	if c.Blocked() {
		t.Fatal("must start unblocked")
	}

	load.v.Store(120) // over 100+10 ceiling
	waitUntil(t, func() bool { return c.Blocked() })

	load.v.Store(95) // drained below ceiling
	waitUntil(t, func() bool { return !c.Blocked() })
}

func TestController_WithinSlackDoesNotBlock(t *testing.T) {
	load := &fakeLoad{}
	load.v.Store(108) // within maxConns+10
	c := NewController(load, 100)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	if c.Blocked() {
		t.Fatal("load within the +10 slack must not block")
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("condition not met in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

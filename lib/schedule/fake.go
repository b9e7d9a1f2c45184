// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schedule

import (
	"sync"
	"time"

	"github.com/bureau-foundation/timekeeper/lib/nanos"
	"github.com/bureau-foundation/timekeeper/lib/timebase"
)

// Fake returns a FakeScheduler whose notion of "now" is the given
// static time source. Time stands still until Advance is called.
// Panics if source is a realtime source.
//
// FakeScheduler is safe for concurrent use by multiple goroutines.
func Fake(source *timebase.AtomicTime) *FakeScheduler {
	if source.IsRealtime() {
		panic("schedule: Fake requires a static time source")
	}
	scheduler := &FakeScheduler{source: source}
	scheduler.waitersChanged = sync.NewCond(&scheduler.mu)
	return scheduler
}

// FakeScheduler is a deterministic Scheduler for testing. Callbacks
// run synchronously in the goroutine calling Advance, one at a time,
// in deadline order. Callbacks with equal deadlines run in the order
// they were registered.
//
// Do not call Advance from within a callback: that would re-enter the
// firing loop from the middle of a fire.
type FakeScheduler struct {
	mu             sync.Mutex
	source         *timebase.AtomicTime
	waiters        []*fakeWaiter
	sequence       uint64
	waitersChanged *sync.Cond
}

type fakeWaiter struct {
	deadline nanos.UnixNanos
	callback func()

	// sequence breaks deadline ties in registration order.
	sequence uint64

	// stopped is set by Timer.Stop. fired is set just before the
	// callback runs. Either removes the waiter from the pending set.
	stopped bool
	fired   bool
}

// Now returns the current time of the underlying source.
func (s *FakeScheduler) Now() nanos.UnixNanos {
	return s.source.TimeNs()
}

// AfterFunc schedules f to run once the scheduler has been advanced by
// at least d. If d <= 0, f runs synchronously before AfterFunc
// returns and the returned Timer's Stop always reports false.
func (s *FakeScheduler) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{stopFunc: func() bool { return false }}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequence++
	waiter := &fakeWaiter{
		deadline: s.source.TimeNs().Add(d),
		callback: f,
		sequence: s.sequence,
	}
	s.waiters = append(s.waiters, waiter)
	s.waitersChanged.Broadcast()

	return &Timer{
		stopFunc: func() bool {
			s.mu.Lock()
			defer s.mu.Unlock()
			if waiter.stopped || waiter.fired {
				return false
			}
			waiter.stopped = true
			return true
		},
	}
}

// Advance moves time forward by d, firing every callback whose
// deadline falls within the new time. See AdvanceTo.
func (s *FakeScheduler) Advance(d time.Duration) {
	s.AdvanceTo(s.source.TimeNs().Add(d))
}

// AdvanceTo moves time forward to target. Before each callback runs,
// the time source is set to that callback's deadline, so a callback
// that re-arms itself sees the time it was scheduled for. Callbacks
// registered during the advance fire in the same call if their
// deadline is not after target. Finally the source is set to target.
//
// Panics if target is before the current time.
func (s *FakeScheduler) AdvanceTo(target nanos.UnixNanos) {
	if target < s.source.TimeNs() {
		panic("schedule: AdvanceTo moves time backward")
	}
	for {
		waiter := s.popEarliest(target)
		if waiter == nil {
			break
		}
		if waiter.deadline > s.source.TimeNs() {
			s.source.SetTime(waiter.deadline)
		}
		waiter.callback()
	}
	s.source.SetTime(target)
}

// popEarliest removes and returns the earliest live waiter whose
// deadline is not after target, or nil. Stopped and fired waiters are
// dropped along the way.
func (s *FakeScheduler) popEarliest(target nanos.UnixNanos) *fakeWaiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := s.waiters[:0]
	var earliest *fakeWaiter
	for _, waiter := range s.waiters {
		if waiter.stopped || waiter.fired {
			continue
		}
		remaining = append(remaining, waiter)
		if waiter.deadline > target {
			continue
		}
		if earliest == nil || waiter.deadline < earliest.deadline ||
			(waiter.deadline == earliest.deadline && waiter.sequence < earliest.sequence) {
			earliest = waiter
		}
	}
	s.waiters = remaining
	if earliest != nil {
		earliest.fired = true
	}
	return earliest
}

// WaitForTimers blocks until at least n callbacks are pending.
func (s *FakeScheduler) WaitForTimers(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.pendingCountLocked() < n {
		s.waitersChanged.Wait()
	}
}

// PendingCount returns the number of callbacks that are registered and
// have neither fired nor been stopped.
func (s *FakeScheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingCountLocked()
}

// pendingCountLocked must be called with s.mu held.
func (s *FakeScheduler) pendingCountLocked() int {
	count := 0
	for _, waiter := range s.waiters {
		if !waiter.stopped && !waiter.fired {
			count++
		}
	}
	return count
}

package dispatch

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSameKeyRunsInOrder(t *testing.T) {
	d := New(16)
	var got []int
	var mu sync.Mutex

	for i := 0; i < 50; i++ {
		i := i
		d.Submit(1, func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	d.Close()

	if len(got) != 50 {
		t.Fatalf("ran %d jobs, want 50", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("job %d ran at position %d", v, i)
		}
	}
}

func TestDistinctKeysRunConcurrently(t *testing.T) {
	d := New(1)
	release := make(chan struct{})
	var second atomic.Bool

	d.Submit(1, func() { <-release })
	d.Submit(2, func() { second.Store(true) })

	deadline := time.After(2 * time.Second)
	for !second.Load() {
		select {
		case <-deadline:
			t.Fatal("key 2 blocked behind key 1")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	close(release)
	d.Close()
}

func TestWorkersRetireWhenIdle(t *testing.T) {
	d := New(4)
	done := make(chan struct{})
	d.Submit(7, func() { close(done) })
	<-done

	deadline := time.After(2 * time.Second)
	for d.Active() != 0 {
		select {
		case <-deadline:
			t.Fatalf("workers still active: %d", d.Active())
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestSubmitAfterCloseIsDropped(t *testing.T) {
	d := New(4)
	d.Close()
	d.Submit(1, func() { t.Fatal("job ran after close") })
	time.Sleep(10 * time.Millisecond)
}

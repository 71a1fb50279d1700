package gate

import (
	"sync"
	"testing"
	"time"
)

func TestDoSerializesSameKey(t *testing.T) {
	g := New()

	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Do("V1", func() error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("Expected at most 1 goroutine inside the gate, saw %d", maxInside)
	}
}

func TestDoIndependentKeysOverlap(t *testing.T) {
	g := New()

	release := make(chan struct{})
	holding := make(chan struct{})
	go func() {
		_ = g.Do("V1", func() error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	done := make(chan struct{})
	go func() {
		_ = g.Do("V2", func() error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Expected operation on an independent key to proceed")
	}
	close(release)
}

func TestDoCleansUpSlots(t *testing.T) {
	g := New()
	for i := 0; i < 100; i++ {
		_ = g.Do("V1", func() error { return nil })
	}

	g.mu.Lock()
	remaining := len(g.slots)
	g.mu.Unlock()
	if remaining != 0 {
		t.Errorf("Expected no retained slots, got %d", remaining)
	}
}

package monitor

import (
	"fmt"
	"sync"
	"testing"
)

func TestProcessedSet_ShouldProcessOnce(t *testing.T) {
	set := NewProcessedSet(10)

	if !set.ShouldProcess("0xabc") {
		t.Fatal("first sighting should be processed")
	}
	if set.ShouldProcess("0xabc") {
		t.Fatal("second sighting should be suppressed")
	}
}

func TestProcessedSet_BoundedEviction(t *testing.T) {
	set := NewProcessedSet(1000)

	for i := 0; i < 1001; i++ {
		set.ShouldProcess(fmt.Sprintf("0x%04d", i))
	}

	if set.Len() != 1000 {
		t.Fatalf("expected 1000 entries, got %d", set.Len())
	}

	// The oldest hash was evicted, so it reads as fresh again
	if !set.ShouldProcess("0x0000") {
		t.Fatal("evicted hash should process again")
	}
	// A recent hash is still remembered
	if set.ShouldProcess("0x1000") {
		t.Fatal("recent hash should still be suppressed")
	}
}

func TestProcessedSet_RecordSeen(t *testing.T) {
	set := NewProcessedSet(10)

	set.RecordSeen("0xdef")
	if set.ShouldProcess("0xdef") {
		t.Fatal("pre-recorded hash should be suppressed")
	}
}

func TestProcessedSet_ConcurrentSingleWinner(t *testing.T) {
	set := NewProcessedSet(100)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if set.ShouldProcess("0xsame") {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

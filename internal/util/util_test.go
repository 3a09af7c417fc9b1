package util

import (
	"sync"
	"testing"
	"time"
)

func TestRingBufferOverwritesOldest(t *testing.T) {
	rb := NewRingBuffer[int](3)
	for i := 1; i <= 5; i++ {
		rb.Push(i)
	}
	got := rb.Snapshot()
	if len(got) != 3 || got[0] != 3 || got[2] != 5 {
		t.Fatalf("snapshot = %v, want [3 4 5]", got)
	}
	if tail := rb.Tail(2); len(tail) != 2 || tail[0] != 4 || tail[1] != 5 {
		t.Fatalf("tail = %v, want [4 5]", tail)
	}
	if tail := rb.Tail(10); len(tail) != 3 {
		t.Fatalf("tail(10) len = %d, want 3", len(tail))
	}
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("appt-1")
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("max concurrent holders = %d, want 1", maxSeen)
	}
	if n := km.Len(); n != 0 {
		t.Fatalf("entries left = %d, want 0", n)
	}
}

func TestKeyedMutexDistinctKeysDoNotBlock(t *testing.T) {
	km := NewKeyedMutex()
	unlockA := km.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := km.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on distinct key blocked")
	}
}

func TestKeyedMutexUnlockIdempotent(t *testing.T) {
	km := NewKeyedMutex()
	unlock := km.Lock("x")
	unlock()
	unlock()
	if n := km.Len(); n != 0 {
		t.Fatalf("entries left = %d, want 0", n)
	}
}

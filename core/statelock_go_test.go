//go:build !tinygo

package core

import "testing"

func TestStateLockAcquireAndUnlock(t *testing.T) {
	l := NewStateLock()
	if !l.TryLock(1000) {
		t.Fatal("expected first TryLock to succeed on a fresh lock")
	}
	l.Unlock()
	if !l.TryLock(1000) {
		t.Fatal("expected TryLock to succeed again after Unlock")
	}
	l.Unlock()
}

func TestStateLockTimesOutUnderContention(t *testing.T) {
	l := NewStateLock()
	if !l.TryLock(1000) {
		t.Fatal("expected first TryLock to succeed on a fresh lock")
	}
	if l.TryLock(100) {
		t.Fatal("expected TryLock to fail while already held")
	}
	l.Unlock()
}

func TestStateLockUnlockIsIdempotent(t *testing.T) {
	l := NewStateLock()
	l.Unlock()
	l.Unlock()
	if !l.TryLock(1000) {
		t.Fatal("expected TryLock to succeed after redundant Unlock calls")
	}
}

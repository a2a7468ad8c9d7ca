package core

import "testing"

func TestElapsedUSWraparound(t *testing.T) {
	// now has wrapped past 0 while then was near the top of the range;
	// the unsigned subtraction must still report the small positive gap.
	then := uint32(0xFFFFFFF0)
	now := uint32(10)
	gotTicks := now - then
	if gotTicks != 26 {
		t.Fatalf("sanity check on wraparound subtraction failed: got %d", gotTicks)
	}
	if got := ElapsedUS(now, then); got != 26 {
		t.Errorf("ElapsedUS(%d, %d) = %d, want 26", now, then, got)
	}
}

func TestElapsedMSWraparound(t *testing.T) {
	then := uint32(0xFFFFFFFA)
	now := uint32(5)
	if got := ElapsedMS(now, then); got != 11 {
		t.Errorf("ElapsedMS(%d, %d) = %d, want 11", now, then, got)
	}
}

func TestTimerFromUSToUSRoundTrip(t *testing.T) {
	for _, us := range []uint32{0, 1, 1000, 1000000} {
		ticks := TimerFromUS(us)
		back := TimerToUS(ticks)
		if back != us {
			t.Errorf("TimerToUS(TimerFromUS(%d)) = %d, want %d", us, back, us)
		}
	}
}

func TestSetAndGetTime(t *testing.T) {
	SetTime(12345)
	if got := GetTime(); got != 12345 {
		t.Errorf("GetTime() = %d, want 12345", got)
	}

	SetTimeMS(678)
	if got := GetTimeMS(); got != 678 {
		t.Errorf("GetTimeMS() = %d, want 678", got)
	}
}

package clock

import (
	"testing"
	"time"
)

func TestRealNowAdvances(t *testing.T) {
	r := Real{}
	a := r.Now()
	time.Sleep(time.Millisecond)
	b := r.Now()
	if !b.After(a) {
		t.Fatal("expected real clock to advance")
	}
}

func TestFakeNowIsStableUntilAdvanced(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)
	if !f.Now().Equal(start) {
		t.Fatal("expected fake clock to report the fixed time")
	}
	f.Advance(24 * time.Hour)
	if !f.Now().Equal(start.Add(24 * time.Hour)) {
		t.Fatal("expected Advance to move the fake clock forward")
	}
	f.Set(start)
	if !f.Now().Equal(start) {
		t.Fatal("expected Set to move the fake clock to an arbitrary time")
	}
}

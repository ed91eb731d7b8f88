package lock

import (
	"context"
	"testing"
	"time"
)

func TestBuildLockConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  BuildLockConfig
		ok   bool
	}{
		{"valid", BuildLockConfig{Dir: "/tmp/x", Timeout: time.Minute, PollInterval: time.Second}, true},
		{"empty dir", BuildLockConfig{Dir: "", Timeout: time.Minute, PollInterval: time.Second}, false},
		{"zero timeout", BuildLockConfig{Dir: "/tmp/x", Timeout: 0, PollInterval: time.Second}, false},
		{"poll >= timeout", BuildLockConfig{Dir: "/tmp/x", Timeout: time.Second, PollInterval: time.Second}, false},
	}
	for _, c := range cases {
		err := c.cfg.Validate()
		if c.ok && err != nil {
			t.Errorf("%s: expected valid, got %v", c.name, err)
		}
		if !c.ok && err == nil {
			t.Errorf("%s: expected invalid config to be rejected", c.name)
		}
	}
}

func TestBuildLockMutualExclusion(t *testing.T) {
	dir := t.TempDir()
	l1, err := NewBuildLock(BuildLockConfig{Dir: dir, Timeout: 200 * time.Millisecond, PollInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	l2, err := NewBuildLock(BuildLockConfig{Dir: dir, Timeout: 100 * time.Millisecond, PollInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := l1.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := l2.Acquire(ctx); err == nil {
		t.Fatal("expected second acquire to time out while first holder is live")
	}
	if err := l1.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := l2.Acquire(ctx); err != nil {
		t.Fatalf("expected acquire to succeed after release: %v", err)
	}
	_ = l2.Release()
}

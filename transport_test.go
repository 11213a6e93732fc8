package dispatchz

import (
	"context"
	"errors"
	"testing"

	"github.com/zoobzio/clockz"
)

type fakeStarter struct {
	failuresBeforeSuccess int
	attempts              int
	clearedCount          int
	permanentErr          error
}

func (s *fakeStarter) Start(context.Context, string) error {
	s.attempts++
	if s.permanentErr != nil {
		return s.permanentErr
	}
	if s.attempts <= s.failuresBeforeSuccess {
		return ErrDupHost
	}
	return nil
}

func (s *fakeStarter) ClearScratch(context.Context) error {
	s.clearedCount++
	return nil
}

func TestBringupSucceedsFirstTry(t *testing.T) {
	starter := &fakeStarter{}
	b := NewBringup(starter).WithClock(clockz.NewFakeClock())

	if err := b.Run(context.Background(), "/tmp/hosts"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if starter.attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", starter.attempts)
	}
	if starter.clearedCount != 0 {
		t.Errorf("expected no scratch clears, got %d", starter.clearedCount)
	}
}

func TestBringupRetriesOnDupHost(t *testing.T) {
	starter := &fakeStarter{failuresBeforeSuccess: 2}
	b := NewBringup(starter).WithClock(clockz.NewFakeClock())

	var retries []int
	_ = b.OnRetry(func(_ context.Context, ev BringupRetryEvent) error {
		retries = append(retries, ev.Attempt)
		return nil
	})

	if err := b.Run(context.Background(), "/tmp/hosts"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if starter.attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", starter.attempts)
	}
	if starter.clearedCount != 2 {
		t.Errorf("expected 2 scratch clears, got %d", starter.clearedCount)
	}
}

func TestBringupExhaustsRetries(t *testing.T) {
	starter := &fakeStarter{failuresBeforeSuccess: maxDupHostRetries + 5}
	b := NewBringup(starter).WithClock(clockz.NewFakeClock())

	err := b.Run(context.Background(), "/tmp/hosts")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TransportError, got %T", err)
	}
	if terr.Code != ExitDupHost {
		t.Errorf("expected ExitDupHost, got %v", terr.Code)
	}
	if starter.attempts != maxDupHostRetries+1 {
		t.Errorf("expected %d attempts, got %d", maxDupHostRetries+1, starter.attempts)
	}
}

func TestBringupFailsFastOnNonDupHostError(t *testing.T) {
	wantErr := errors.New("daemon binary not found")
	starter := &fakeStarter{permanentErr: wantErr}
	b := NewBringup(starter).WithClock(clockz.NewFakeClock())

	err := b.Run(context.Background(), "/tmp/hosts")
	if err == nil {
		t.Fatal("expected error")
	}
	if starter.attempts != 1 {
		t.Errorf("expected to fail fast after 1 attempt, got %d", starter.attempts)
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped %v, got %v", wantErr, err)
	}
}

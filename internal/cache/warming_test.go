package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
	ran   chan struct{}
}

func (r *countingRefresher) Refresh(ctx context.Context) error {
	r.calls.Add(1)
	if r.ran != nil {
		select {
		case r.ran <- struct{}{}:
		default:
		}
	}
	return r.err
}

func TestWarmer_Warm_Success(t *testing.T) {
	r := &countingRefresher{}
	w := NewWarmer(r, nil, time.Second)

	if err := w.Warm(context.Background()); err != nil {
		t.Fatalf("Warm() error = %v, want nil", err)
	}
	if got := r.calls.Load(); got != 1 {
		t.Errorf("Refresh calls = %d, want 1", got)
	}
}

func TestWarmer_Warm_RefresherError(t *testing.T) {
	r := &countingRefresher{err: errors.New("api down")}
	w := NewWarmer(r, nil, time.Second)

	err := w.Warm(context.Background())
	if err == nil {
		t.Fatal("Warm() error = nil, want non-nil")
	}
	if !errors.Is(err, r.err) {
		t.Errorf("Warm() error = %v, want wrapping %v", err, r.err)
	}
}

func TestWarmer_Start_RunsImmediately(t *testing.T) {
	r := &countingRefresher{ran: make(chan struct{}, 1)}
	w := NewWarmer(r, nil, time.Second)

	if err := w.Start(time.Hour); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	select {
	case <-r.ran:
	case <-time.After(3 * time.Second):
		t.Fatal("warmer did not run after Start")
	}
}

func TestWarmer_Start_InvalidInterval(t *testing.T) {
	w := NewWarmer(&countingRefresher{}, nil, 0)
	if err := w.Start(0); err == nil {
		t.Fatal("Start(0) error = nil, want non-nil")
	}
	w.Stop()
}

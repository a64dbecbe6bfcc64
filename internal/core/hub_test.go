package core

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestHub_StartStop(t *testing.T) {
	h := New(nil)
	ctx := context.Background()

	if h.IsRunning() {
		t.Fatal("new hub reports running")
	}

	var calls []string
	var stateDuringStart State
	h.OnStart("a", func(context.Context) error {
		stateDuringStart = h.State()
		calls = append(calls, "start a")
		return nil
	})
	h.OnStart("b", func(context.Context) error { calls = append(calls, "start b"); return nil })
	h.OnStop("a", func(context.Context) error { calls = append(calls, "stop a"); return nil })
	h.OnStop("b", func(context.Context) error { calls = append(calls, "stop b"); return nil })

	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if stateDuringStart != StateStarting {
		t.Errorf("state during start listeners = %q, want %q", stateDuringStart, StateStarting)
	}
	if h.State() != StateRunning || !h.IsRunning() {
		t.Errorf("State() = %q after Start", h.State())
	}
	if err := h.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}

	if err := h.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if h.IsRunning() {
		t.Error("hub running after Stop")
	}
	if err := h.Stop(ctx); !errors.Is(err, ErrNotStarted) {
		t.Errorf("second Stop() error = %v, want ErrNotStarted", err)
	}

	want := []string{"start a", "start b", "stop b", "stop a"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("listener calls = %v, want %v", calls, want)
	}
}

func TestHub_StartFailure(t *testing.T) {
	h := New(nil)
	boom := errors.New("bind failed")
	stopped := false

	h.OnStart("server", func(context.Context) error { return boom })
	h.OnStop("server", func(context.Context) error { stopped = true; return nil })

	err := h.Start(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Start() error = %v, want %v", err, boom)
	}
	if h.State() != StateNotRunning {
		t.Errorf("State() = %q after failed start, want %q", h.State(), StateNotRunning)
	}
	if !stopped {
		t.Error("stop listeners not run after failed start")
	}
}

func TestHub_StopJoinsErrors(t *testing.T) {
	h := New(nil)
	errA := errors.New("a")
	errB := errors.New("b")
	h.OnStop("a", func(context.Context) error { return errA })
	h.OnStop("b", func(context.Context) error { return errB })

	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	err := h.Stop(context.Background())
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Stop() error = %v, want both listener errors", err)
	}
	if h.State() != StateNotRunning {
		t.Errorf("State() = %q after Stop", h.State())
	}
}

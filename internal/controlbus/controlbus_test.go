package controlbus

import (
	"testing"
	"time"
)

func TestSendLatchedDropsOldest(t *testing.T) {
	ch := make(chan int, 1)
	SendLatched(ch, 1)
	SendLatched(ch, 2)

	select {
	case v := <-ch:
		if v != 2 {
			t.Errorf("got %d, want 2 (latest value should win)", v)
		}
	default:
		t.Fatal("expected a value on the channel")
	}
}

func TestPauseGateWaitReturnsOnResume(t *testing.T) {
	g := NewPauseGate()
	g.Pause()

	done := make(chan struct{})
	go func() {
		g.WaitWhilePaused()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("WaitWhilePaused returned before Resume")
	case <-time.After(20 * time.Millisecond):
	}

	g.Resume()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitWhilePaused did not return after Resume")
	}
}

func TestPauseGateWaitReturnsImmediatelyWhenActive(t *testing.T) {
	g := NewPauseGate()
	done := make(chan struct{})
	go func() {
		g.WaitWhilePaused()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitWhilePaused blocked while gate was Active")
	}
}

func TestPauseGateIsPaused(t *testing.T) {
	g := NewPauseGate()
	if g.IsPaused() {
		t.Error("new gate should start Active")
	}
	g.Pause()
	if !g.IsPaused() {
		t.Error("IsPaused() = false after Pause()")
	}
	g.Resume()
	if g.IsPaused() {
		t.Error("IsPaused() = true after Resume()")
	}
}

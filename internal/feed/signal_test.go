package feed

import (
	"testing"
	"time"
)

func TestSignalReplayLatest(t *testing.T) {
	s := NewSignal()

	// A subscriber before any publish sees nothing yet.
	ch, cancel := s.Subscribe()
	defer cancel()
	select {
	case mark := <-ch:
		t.Fatalf("unexpected replay before first publish: %d", mark)
	default:
	}

	s.Publish()
	s.Publish()

	// A late subscriber gets the latest mark replayed immediately.
	late, cancelLate := s.Subscribe()
	defer cancelLate()
	select {
	case mark := <-late:
		if mark != 2 {
			t.Errorf("late subscriber got mark %d, want 2", mark)
		}
	case <-time.After(time.Second):
		t.Fatal("late subscriber did not receive replayed mark")
	}
}

func TestSignalCoalescesToNewest(t *testing.T) {
	s := NewSignal()
	ch, cancel := s.Subscribe()
	defer cancel()

	// Publish twice without draining: subscriber must see the newest mark.
	s.Publish()
	s.Publish()

	select {
	case mark := <-ch:
		if mark != 2 {
			t.Errorf("got mark %d, want the coalesced latest 2", mark)
		}
	case <-time.After(time.Second):
		t.Fatal("no mark delivered")
	}
}

func TestSignalCancelStopsDelivery(t *testing.T) {
	s := NewSignal()
	ch, cancel := s.Subscribe()
	cancel()

	s.Publish()

	select {
	case mark, ok := <-ch:
		if ok {
			t.Errorf("cancelled subscriber received mark %d", mark)
		}
	default:
	}
}

func TestSignalLast(t *testing.T) {
	s := NewSignal()
	if s.Last() != 0 {
		t.Error("fresh signal should be at mark 0")
	}
	s.Publish()
	s.Publish()
	s.Publish()
	if s.Last() != 3 {
		t.Errorf("Last() = %d, want 3", s.Last())
	}
}

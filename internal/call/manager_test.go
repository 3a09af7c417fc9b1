package call

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/neuropath/rtcore/internal/model"
	"github.com/neuropath/rtcore/internal/proto"
)

type notice struct {
	to      string
	event   string
	payload proto.SignalPayload
}

type fakeNotifier struct {
	mu  sync.Mutex
	got []notice
}

func (f *fakeNotifier) Send(userID, event string, data any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, _ := data.(proto.SignalPayload)
	f.got = append(f.got, notice{userID, event, p})
	return true
}

func (f *fakeNotifier) to(userID string) []notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notice
	for _, n := range f.got {
		if n.to == userID {
			out = append(out, n)
		}
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestSingleActiveSessionPerPair(t *testing.T) {
	m := NewManager(&fakeNotifier{}, nil, time.Minute)
	defer m.Close()

	if _, err := m.StartOffer("p1", "n1"); err != nil {
		t.Fatalf("first offer: %v", err)
	}
	if _, err := m.StartOffer("n1", "p1"); !errors.Is(err, model.ErrAlreadyInCall) {
		t.Fatalf("reverse offer err = %v", err)
	}
	if _, err := m.StartOffer("p1", "n2"); err != nil {
		t.Fatalf("other pair: %v", err)
	}
}

func TestConcurrentOffersOnlyOneWins(t *testing.T) {
	m := NewManager(&fakeNotifier{}, nil, time.Minute)
	defer m.Close()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "p1", "n1"
			if i%2 == 1 {
				a, b = b, a
			}
			if _, err := m.StartOffer(a, b); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("wins = %d, want 1", wins)
	}
}

func TestLifecycleAndSingleEndNotice(t *testing.T) {
	n := &fakeNotifier{}
	m := NewManager(n, nil, time.Minute)
	defer m.Close()

	s, _ := m.StartOffer("p1", "n1")
	if err := m.MarkRinging(s.ID); err != nil {
		t.Fatalf("ringing: %v", err)
	}
	if err := m.OnAnswerForwarded(s.ID); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if got, _ := m.Get(s.ID); got.State != StateConnected {
		t.Fatalf("state = %s", got.State)
	}

	if !m.OnEnd(s.ID, ReasonHangup) {
		t.Fatal("end returned false")
	}
	if m.OnEnd(s.ID, ReasonHangup) {
		t.Fatal("second end should be a no-op")
	}

	for _, u := range []string{"p1", "n1"} {
		got := n.to(u)
		if len(got) != 1 || got[0].event != proto.EventEnd || got[0].payload.Reason != string(ReasonHangup) {
			t.Fatalf("%s got %+v", u, got)
		}
	}
	if _, ok := m.Active("p1", "n1"); ok {
		t.Fatal("pair still active")
	}
	if _, err := m.StartOffer("n1", "p1"); err != nil {
		t.Fatalf("new call after end: %v", err)
	}
	if h := m.History(); len(h) != 1 || h[0].Reason != ReasonHangup {
		t.Fatalf("history = %+v", h)
	}
}

func TestRejectSendsRejectEvent(t *testing.T) {
	n := &fakeNotifier{}
	m := NewManager(n, nil, time.Minute)
	defer m.Close()

	s, _ := m.StartOffer("p1", "n1")
	_ = m.MarkRinging(s.ID)
	m.OnEnd(s.ID, ReasonRejected)

	got := n.to("p1")
	if len(got) != 1 || got[0].event != proto.EventReject || got[0].payload.From != "n1" {
		t.Fatalf("caller got %+v", got)
	}
}

func TestRingTimeout(t *testing.T) {
	n := &fakeNotifier{}
	m := NewManager(n, nil, 30*time.Millisecond)
	defer m.Close()

	s, _ := m.StartOffer("p1", "n1")
	_ = m.MarkRinging(s.ID)

	waitFor(t, func() bool { return len(n.to("p1")) == 1 && len(n.to("n1")) == 1 })
	time.Sleep(60 * time.Millisecond)

	for _, u := range []string{"p1", "n1"} {
		got := n.to(u)
		if len(got) != 1 || got[0].event != proto.EventEnd || got[0].payload.Reason != string(ReasonTimeout) {
			t.Fatalf("%s got %+v", u, got)
		}
	}
	if _, ok := m.Get(s.ID); ok {
		t.Fatal("session not removed")
	}
}

func TestAnswerStopsRingTimer(t *testing.T) {
	n := &fakeNotifier{}
	m := NewManager(n, nil, 30*time.Millisecond)
	defer m.Close()

	s, _ := m.StartOffer("p1", "n1")
	_ = m.MarkRinging(s.ID)
	_ = m.OnAnswerForwarded(s.ID)
	time.Sleep(80 * time.Millisecond)

	if got, ok := m.Get(s.ID); !ok || got.State != StateConnected {
		t.Fatalf("session = %+v, %v", got, ok)
	}
	if len(n.to("p1")) != 0 {
		t.Fatalf("unexpected notices: %+v", n.to("p1"))
	}
}

func TestAnswerBeforeRingingConnects(t *testing.T) {
	m := NewManager(&fakeNotifier{}, nil, time.Minute)
	defer m.Close()

	s, _ := m.StartOffer("p1", "n1")
	if err := m.OnAnswerForwarded(s.ID); err != nil {
		t.Fatalf("answer while offering: %v", err)
	}
	if err := m.MarkRinging(s.ID); !errors.Is(err, model.ErrStaleSignal) {
		t.Fatalf("late MarkRinging err = %v, want stale", err)
	}
	if got, _ := m.Get(s.ID); got.State != StateConnected {
		t.Fatalf("state = %s, want connected", got.State)
	}
}

func TestDisconnectEndsSessions(t *testing.T) {
	n := &fakeNotifier{}
	m := NewManager(n, nil, time.Minute)
	defer m.Close()

	s, _ := m.StartOffer("p1", "n1")
	_ = m.MarkRinging(s.ID)
	_ = m.OnAnswerForwarded(s.ID)

	m.HandlePresence("n1", true)
	if _, ok := m.Get(s.ID); !ok {
		t.Fatal("online event ended the session")
	}

	m.HandlePresence("n1", false)
	got := n.to("p1")
	if len(got) != 1 || got[0].payload.Reason != string(ReasonPeerDisconnected) {
		t.Fatalf("caller got %+v", got)
	}
	m.HandlePresence("n1", false)
	if len(n.to("p1")) != 1 {
		t.Fatal("caller notified twice")
	}
}

func TestAbortIsSilent(t *testing.T) {
	n := &fakeNotifier{}
	m := NewManager(n, nil, time.Minute)
	defer m.Close()

	s, _ := m.StartOffer("p1", "n1")
	m.Abort(s.ID)

	if _, ok := m.Active("p1", "n1"); ok {
		t.Fatal("aborted session still active")
	}
	if len(n.got) != 0 {
		t.Fatalf("abort notified: %+v", n.got)
	}
}

func TestStaleTransitions(t *testing.T) {
	m := NewManager(&fakeNotifier{}, nil, time.Minute)
	defer m.Close()

	if err := m.MarkRinging("nope"); !errors.Is(err, model.ErrStaleSignal) {
		t.Fatalf("ringing unknown err = %v", err)
	}
	if err := m.OnAnswerForwarded("nope"); !errors.Is(err, model.ErrStaleSignal) {
		t.Fatalf("answer unknown err = %v", err)
	}
	if _, err := m.StartOffer("p1", "p1"); !errors.Is(err, model.ErrBadRequest) {
		t.Fatalf("self call err = %v", err)
	}
}

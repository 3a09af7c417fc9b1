package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/neuropath/rtcore/internal/model"
	"github.com/neuropath/rtcore/internal/proto"
	"github.com/neuropath/rtcore/internal/storage"
)

type delivery struct {
	to    string
	event string
	data  any
}

type fakeNotifier struct {
	mu     sync.Mutex
	online map[string]bool
	log    []delivery
}

func newNotifier(online ...string) *fakeNotifier {
	n := &fakeNotifier{online: map[string]bool{}}
	for _, id := range online {
		n.online[id] = true
	}
	return n
}

func (f *fakeNotifier) Send(userID, event string, data any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.online[userID] {
		return false
	}
	f.log = append(f.log, delivery{userID, event, data})
	return true
}

func (f *fakeNotifier) events(userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, d := range f.log {
		if d.to == userID {
			out = append(out, d.event)
		}
	}
	return out
}

type failingStore struct {
	*storage.Memory
}

func (failingStore) SaveAppointmentStatus(context.Context, string, model.AppointmentStatus, model.AppointmentStatus, time.Time) error {
	return errors.Join(model.ErrPersistence, errors.New("disk full"))
}

var slot = model.Slot{Date: "2025-03-14", Time: "14:30", Type: "video"}

func TestBookThenRespond(t *testing.T) {
	ctx := context.Background()
	n := newNotifier("p1", "n1")
	svc := NewService(storage.NewMemory(), n, nil)

	a, err := svc.Request(ctx, "p1", "n1", slot)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if a.Status != model.StatusPending {
		t.Fatalf("status = %s", a.Status)
	}
	if got := n.events("n1"); len(got) != 1 || got[0] != proto.EventAppointmentRequest {
		t.Fatalf("neurologist got %v", got)
	}

	a, err = svc.Respond(ctx, a.ID, "n1", true)
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if a.Status != model.StatusConfirmed {
		t.Fatalf("status = %s", a.Status)
	}
	for _, u := range []string{"p1", "n1"} {
		got := n.events(u)
		if got[len(got)-1] != proto.EventAppointmentUpdated {
			t.Fatalf("%s last event = %v", u, got)
		}
	}

	_, err = svc.Respond(ctx, a.ID, "n1", false)
	if !errors.Is(err, model.ErrInvalidTransition) {
		t.Fatalf("second respond err = %v", err)
	}
}

func TestRespondByWrongUser(t *testing.T) {
	ctx := context.Background()
	n := newNotifier("p1", "n1")
	svc := NewService(storage.NewMemory(), n, nil)
	a, _ := svc.Request(ctx, "p1", "n1", slot)

	for _, who := range []string{"p1", "n2"} {
		if _, err := svc.Respond(ctx, a.ID, who, true); !errors.Is(err, model.ErrInvalidTransition) {
			t.Fatalf("respond by %s err = %v", who, err)
		}
	}
	got, _ := svc.Get(ctx, a.ID, "p1")
	if got.Status != model.StatusPending {
		t.Fatalf("status changed to %s", got.Status)
	}
	if len(n.events("p1")) != 0 {
		t.Fatalf("patient notified of a rejected transition: %v", n.events("p1"))
	}
}

func TestRespondToUnknownAppointment(t *testing.T) {
	svc := NewService(storage.NewMemory(), newNotifier(), nil)
	if _, err := svc.Respond(context.Background(), "nope", "n1", true); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestCancelAndComplete(t *testing.T) {
	ctx := context.Background()
	svc := NewService(storage.NewMemory(), newNotifier("p1", "n1"), nil)

	a, _ := svc.Request(ctx, "p1", "n1", slot)
	if _, err := svc.Cancel(ctx, a.ID, "p1"); !errors.Is(err, model.ErrInvalidTransition) {
		t.Fatalf("cancel pending err = %v", err)
	}
	_, _ = svc.Respond(ctx, a.ID, "n1", true)

	if _, err := svc.Complete(ctx, a.ID, "stranger"); !errors.Is(err, model.ErrNotParticipant) {
		t.Fatalf("stranger complete err = %v", err)
	}
	got, err := svc.Cancel(ctx, a.ID, "p1")
	if err != nil || got.Status != model.StatusCancelled {
		t.Fatalf("cancel = %v, %v", got, err)
	}
	if _, err := svc.Complete(ctx, a.ID, "n1"); !errors.Is(err, model.ErrInvalidTransition) {
		t.Fatalf("complete cancelled err = %v", err)
	}
}

func TestOfflineParticipantSeesStateLater(t *testing.T) {
	ctx := context.Background()
	n := newNotifier("n1") // patient offline
	svc := NewService(storage.NewMemory(), n, nil)

	a, _ := svc.Request(ctx, "p1", "n1", slot)
	if _, err := svc.Respond(ctx, a.ID, "n1", true); err != nil {
		t.Fatalf("respond: %v", err)
	}
	got, err := svc.Get(ctx, a.ID, "p1")
	if err != nil || got.Status != model.StatusConfirmed {
		t.Fatalf("patient fetch = %v, %v", got, err)
	}
}

func TestPersistenceFailureSkipsBroadcast(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	n := newNotifier("p1", "n1")
	a, _ := NewService(mem, n, nil).Request(ctx, "p1", "n1", slot)

	svc := NewService(failingStore{mem}, n, nil)
	_, err := svc.Respond(ctx, a.ID, "n1", true)
	if !errors.Is(err, model.ErrPersistence) || !model.Retryable(err) {
		t.Fatalf("err = %v, want retryable persistence error", err)
	}
	if got := n.events("p1"); len(got) != 0 {
		t.Fatalf("patient notified despite failure: %v", got)
	}
}

func TestConcurrentRespondsSerialize(t *testing.T) {
	ctx := context.Background()
	svc := NewService(storage.NewMemory(), newNotifier("p1", "n1"), nil)
	a, _ := svc.Request(ctx, "p1", "n1", slot)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		errs int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(accept bool) {
			defer wg.Done()
			_, err := svc.Respond(ctx, a.ID, "n1", accept)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				oks++
			} else if errors.Is(err, model.ErrInvalidTransition) {
				errs++
			}
		}(i%2 == 0)
	}
	wg.Wait()
	if oks != 1 || errs != 9 {
		t.Fatalf("ok=%d invalid=%d, want 1 and 9", oks, errs)
	}
}

func TestRequestValidation(t *testing.T) {
	svc := NewService(storage.NewMemory(), newNotifier(), nil)
	cases := []struct {
		name        string
		patient     string
		neurologist string
		slot        model.Slot
	}{
		{"missing neurologist", "p1", "", slot},
		{"same user", "p1", "p1", slot},
		{"missing date", "p1", "n1", model.Slot{Time: "10:00"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := svc.Request(context.Background(), c.patient, c.neurologist, c.slot); !errors.Is(err, model.ErrBadRequest) {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	if !CanTransition(model.StatusPending, model.StatusConfirmed) {
		t.Fatal("pending -> confirmed")
	}
	if CanTransition(model.StatusPending, model.StatusCompleted) {
		t.Fatal("pending -> completed must be rejected")
	}
	if CanTransition(model.StatusRejected, model.StatusConfirmed) {
		t.Fatal("rejected is terminal")
	}
}

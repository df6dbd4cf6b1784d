package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/example/party-rides/internal/matcher"
	"github.com/example/party-rides/internal/models"
	"github.com/example/party-rides/internal/notify"
	"github.com/example/party-rides/internal/storage"
)

const party = "party-1"

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// inbox records every envelope handed to the notifier.
type inbox struct {
	mu  sync.Mutex
	got []notify.Envelope
}

func (b *inbox) Notify(_ context.Context, env notify.Envelope) error {
	b.mu.Lock()
	b.got = append(b.got, env)
	b.mu.Unlock()
	return nil
}

func (b *inbox) reasonsFor(user string) []notify.Reason {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []notify.Reason
	for _, e := range b.got {
		if e.UserID == user {
			out = append(out, e.Reason)
		}
	}
	return out
}

func (b *inbox) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.got)
}

func (b *inbox) reset() {
	b.mu.Lock()
	b.got = nil
	b.mu.Unlock()
}

type fixture struct {
	svc   *Service
	store *storage.MemoryStore
	inbox *inbox
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemoryStore()
	in := &inbox{}
	svc := New(store, notify.NewDispatcher(in, quiet), Options{Logger: quiet})
	return &fixture{svc: svc, store: store, inbox: in}
}

func (f *fixture) offer(t *testing.T, owner string, capacity int) *models.RideEntry {
	t.Helper()
	o, _, err := f.svc.CreateOffer(context.Background(), party, owner, models.PersonalVehicle, "Driver Street 1", capacity)
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}
	return o
}

func (f *fixture) request(t *testing.T, owner, location string) *models.RideEntry {
	t.Helper()
	r, err := f.svc.CreateRequest(context.Background(), party, owner, location)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return r
}

func (f *fixture) activeRequestsOf(t *testing.T, owner string) []*models.RideEntry {
	t.Helper()
	all, err := f.store.ListActive(context.Background(), party, models.KindRequest)
	if err != nil {
		t.Fatal(err)
	}
	var out []*models.RideEntry
	for _, r := range all {
		if r.OwnerID == owner {
			out = append(out, r)
		}
	}
	return out
}

func (f *fixture) get(t *testing.T, id string) *models.RideEntry {
	t.Helper()
	e, err := f.store.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestCreateOfferValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, _, err := f.svc.CreateOffer(ctx, party, "d", models.PersonalVehicle, "x", 0); !errors.Is(err, ErrInvalidCapacity) {
		t.Fatalf("expected ErrInvalidCapacity, got %v", err)
	}
	if _, _, err := f.svc.CreateOffer(ctx, party, "d", "helicopter", "x", 2); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
	if _, _, err := f.svc.CreateOffer(ctx, party, "d", models.PersonalVehicle, "  ", 2); !errors.Is(err, ErrInvalidLocation) {
		t.Fatalf("expected ErrInvalidLocation, got %v", err)
	}
	o := f.offer(t, "d", 3)
	if o.Status != models.StatusActive || len(o.Passengers) != 0 || o.Capacity != 3 {
		t.Fatalf("unexpected offer %+v", o)
	}
}

type fakeMatcher struct{ seen []*models.RideEntry }

func (m *fakeMatcher) FindNearby(_ context.Context, offer *models.RideEntry, requests []*models.RideEntry) []matcher.Candidate {
	m.seen = requests
	out := make([]matcher.Candidate, 0, len(requests))
	for _, r := range requests {
		out = append(out, matcher.Candidate{Request: r, DistanceKm: 1})
	}
	return out
}

func TestCreateOfferRunsMatcher(t *testing.T) {
	store := storage.NewMemoryStore()
	m := &fakeMatcher{}
	svc := New(store, nil, Options{Matcher: m, Logger: quiet})
	ctx := context.Background()
	if _, err := svc.CreateRequest(ctx, party, "alice", "A"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateRequest(ctx, "other-party", "bob", "B"); err != nil {
		t.Fatal(err)
	}
	_, matches, err := svc.CreateOffer(ctx, party, "driver", models.PersonalVehicle, "D", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.seen) != 1 || len(matches) != 1 || matches[0].Request.OwnerID != "alice" {
		t.Fatalf("matcher should see this party's active requests only, got %d/%d", len(m.seen), len(matches))
	}
}

func TestCreateRequestDuplicateGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.request(t, "alice", "12 Rue X")

	again, err := f.svc.CreateRequest(ctx, party, "alice", "somewhere else")
	if !errors.Is(err, ErrDuplicateActiveRequest) {
		t.Fatalf("expected ErrDuplicateActiveRequest, got %v", err)
	}
	if again == nil || again.ID != first.ID {
		t.Fatal("duplicate guard should hand back the existing request")
	}
	if n := len(f.activeRequestsOf(t, "alice")); n != 1 {
		t.Fatalf("expected exactly one active request, got %d", n)
	}

	if _, err := f.svc.CancelRequest(ctx, party, first.ID, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.CreateRequest(ctx, party, "alice", "12 Rue X"); err != nil {
		t.Fatalf("new request after cancel should be allowed: %v", err)
	}

	// the guard is per party
	if _, err := f.svc.CreateRequest(ctx, "party-2", "alice", "12 Rue X"); err != nil {
		t.Fatalf("request in another party should be allowed: %v", err)
	}
}

func TestPickupThenCapacityExhaustion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.offer(t, "driver", 1)
	a := f.request(t, "alice", "A street")
	b := f.request(t, "bob", "B street")

	got, err := f.svc.PickUp(ctx, party, o.ID, a.ID)
	if err != nil {
		t.Fatalf("pickup A: %v", err)
	}
	if len(got.Passengers) != 1 || got.Passengers[0].PassengerID != "alice" || got.Passengers[0].PickupLocation != "A street" {
		t.Fatalf("unexpected passengers %+v", got.Passengers)
	}
	if f.get(t, a.ID).Status != models.StatusCompleted {
		t.Fatal("request A should be completed")
	}

	if _, err := f.svc.PickUp(ctx, party, o.ID, b.ID); !errors.Is(err, ErrOfferFull) {
		t.Fatalf("expected ErrOfferFull, got %v", err)
	}
	if f.get(t, b.ID).Status != models.StatusActive {
		t.Fatal("request B must stay active")
	}

	if r := f.inbox.reasonsFor("alice"); len(r) != 1 || r[0] != notify.ReasonPickupConfirmed {
		t.Fatalf("alice notifications %v", r)
	}
	if r := f.inbox.reasonsFor("driver"); len(r) != 1 || r[0] != notify.ReasonPassengerAdded {
		t.Fatalf("driver notifications %v", r)
	}
	if r := f.inbox.reasonsFor("bob"); len(r) != 0 {
		t.Fatalf("bob should not be notified, got %v", r)
	}
}

func TestPickupRequestNotActiveLeavesOfferUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.offer(t, "driver", 2)
	r := f.request(t, "alice", "A street")
	if _, err := f.svc.CancelRequest(ctx, party, r.ID, "alice"); err != nil {
		t.Fatal(err)
	}
	before := f.get(t, o.ID)
	f.inbox.reset()

	if _, err := f.svc.PickUp(ctx, party, o.ID, r.ID); !errors.Is(err, ErrRequestNotActive) {
		t.Fatalf("expected ErrRequestNotActive, got %v", err)
	}
	after := f.get(t, o.ID)
	if len(after.Passengers) != 0 || after.Version != before.Version {
		t.Fatalf("offer changed on failed pickup: %+v", after)
	}
	if f.inbox.len() != 0 {
		t.Fatal("failed pickup must not notify")
	}
}

func TestPickupRejectsInactiveOfferAndRepeatPassenger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.offer(t, "driver", 3)
	r := f.request(t, "alice", "A")
	if _, err := f.svc.PickUp(ctx, party, o.ID, r.ID); err != nil {
		t.Fatal(err)
	}
	r2 := f.request(t, "alice", "A again")
	if _, err := f.svc.PickUp(ctx, party, o.ID, r2.ID); !errors.Is(err, ErrAlreadyOnOffer) {
		t.Fatalf("expected ErrAlreadyOnOffer, got %v", err)
	}
	own := f.request(t, "driver", "D")
	if _, err := f.svc.PickUp(ctx, party, o.ID, own.ID); !errors.Is(err, ErrAlreadyOnOffer) {
		t.Fatalf("driver cannot ride their own offer, got %v", err)
	}

	if _, err := f.svc.CancelOffer(ctx, party, o.ID, "driver"); err != nil {
		t.Fatal(err)
	}
	r3 := f.request(t, "carol", "C")
	if _, err := f.svc.PickUp(ctx, party, o.ID, r3.ID); !errors.Is(err, ErrOfferNotActive) {
		t.Fatalf("expected ErrOfferNotActive, got %v", err)
	}
	if _, err := f.svc.PickUp(ctx, "party-2", o.ID, r3.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("entries are scoped to their party, got %v", err)
	}
}

func TestConcurrentPickupsRespectCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const capacity, contenders = 3, 12
	o := f.offer(t, "driver", capacity)
	reqs := make([]*models.RideEntry, contenders)
	for i := range reqs {
		reqs[i] = f.request(t, fmt.Sprintf("guest-%d", i), fmt.Sprintf("Street %d", i))
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   int
		full int
	)
	for _, r := range reqs {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.PickUp(ctx, party, o.ID, r.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrOfferFull):
				full++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != capacity || full != contenders-capacity {
		t.Fatalf("ok=%d full=%d", ok, full)
	}
	final := f.get(t, o.ID)
	if len(final.Passengers) != capacity {
		t.Fatalf("passengers=%d", len(final.Passengers))
	}
	completed := 0
	for _, r := range reqs {
		if f.get(t, r.ID).Status == models.StatusCompleted {
			completed++
		}
	}
	if completed != capacity {
		t.Fatalf("completed requests=%d", completed)
	}
}

func TestPickupAndCancelRequestRaceHasOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		owner := fmt.Sprintf("guest-%d", i)
		o := f.offer(t, fmt.Sprintf("driver-%d", i), 1)
		r := f.request(t, owner, "Somewhere")

		var (
			wg                 sync.WaitGroup
			pickErr, cancelErr error
		)
		wg.Add(2)
		go func() { defer wg.Done(); _, pickErr = f.svc.PickUp(ctx, party, o.ID, r.ID) }()
		go func() { defer wg.Done(); _, cancelErr = f.svc.CancelRequest(ctx, party, r.ID, owner) }()
		wg.Wait()

		switch {
		case pickErr == nil && errors.Is(cancelErr, ErrNotActive):
			if f.get(t, r.ID).Status != models.StatusCompleted || len(f.get(t, o.ID).Passengers) != 1 {
				t.Fatal("pickup won but state disagrees")
			}
		case cancelErr == nil && errors.Is(pickErr, ErrRequestNotActive):
			if f.get(t, r.ID).Status != models.StatusCancelled || len(f.get(t, o.ID).Passengers) != 0 {
				t.Fatal("cancel won but state disagrees")
			}
		default:
			t.Fatalf("round %d: pickup=%v cancel=%v", i, pickErr, cancelErr)
		}
	}
}

func TestKickRegeneratesRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.offer(t, "driver", 2)
	r := f.request(t, "p", "12 Rue X")
	if _, err := f.svc.PickUp(ctx, party, o.ID, r.ID); err != nil {
		t.Fatal(err)
	}
	f.inbox.reset()

	if _, err := f.svc.KickPassenger(ctx, party, o.ID, "p", "someone-else"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.svc.KickPassenger(ctx, party, o.ID, "nobody", "driver"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	got, err := f.svc.KickPassenger(ctx, party, o.ID, "p", "driver")
	if err != nil {
		t.Fatalf("kick: %v", err)
	}
	if len(got.Passengers) != 0 || len(f.get(t, o.ID).Passengers) != 0 {
		t.Fatal("passenger still on offer")
	}
	active := f.activeRequestsOf(t, "p")
	if len(active) != 1 || active[0].DepartureLocation != "12 Rue X" || active[0].ID == r.ID {
		t.Fatalf("expected one fresh request at 12 Rue X, got %+v", active)
	}
	if active[0].CreatedBy != "driver" {
		t.Fatalf("created_by=%q", active[0].CreatedBy)
	}

	if rs := f.inbox.reasonsFor("p"); len(rs) != 1 || rs[0] != notify.ReasonPassengerRemoved {
		t.Fatalf("passenger notifications %v", rs)
	}
	if rs := f.inbox.reasonsFor("driver"); len(rs) != 1 || rs[0] != notify.ReasonKickConfirmed {
		t.Fatalf("driver notifications %v", rs)
	}

	if _, err := f.svc.KickPassenger(ctx, party, o.ID, "p", "driver"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second kick should be ErrNotFound, got %v", err)
	}
}

func TestLeaveRideRespectsExistingRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.offer(t, "driver", 2)
	r := f.request(t, "p", "Home")
	if _, err := f.svc.PickUp(ctx, party, o.ID, r.ID); err != nil {
		t.Fatal(err)
	}
	// p lines up a backup ride while still seated
	backup := f.request(t, "p", "Office")
	f.inbox.reset()

	if _, err := f.svc.LeaveRide(ctx, party, o.ID, "p"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	active := f.activeRequestsOf(t, "p")
	if len(active) != 1 || active[0].ID != backup.ID {
		t.Fatalf("expected only the backup request, got %+v", active)
	}
	if rs := f.inbox.reasonsFor("driver"); len(rs) != 1 || rs[0] != notify.ReasonPassengerLeft {
		t.Fatalf("driver notifications %v", rs)
	}
	if rs := f.inbox.reasonsFor("p"); len(rs) != 0 {
		t.Fatalf("leaving passenger should not be notified, got %v", rs)
	}

	if _, err := f.svc.LeaveRide(ctx, party, o.ID, "p"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLeaveRideCreatesRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.offer(t, "driver", 2)
	r := f.request(t, "p", "Home")
	if _, err := f.svc.PickUp(ctx, party, o.ID, r.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.LeaveRide(ctx, party, o.ID, "p"); err != nil {
		t.Fatal(err)
	}
	active := f.activeRequestsOf(t, "p")
	if len(active) != 1 || active[0].DepartureLocation != "Home" || active[0].CreatedBy != "p" {
		t.Fatalf("expected one request at Home, got %+v", active)
	}
}

func TestCancelOfferWithTwoPassengersOneAlreadyRequested(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.offer(t, "driver", 3)
	r1 := f.request(t, "p1", "P1 street")
	r2 := f.request(t, "p2", "P2 street")
	for _, r := range []*models.RideEntry{r1, r2} {
		if _, err := f.svc.PickUp(ctx, party, o.ID, r.ID); err != nil {
			t.Fatal(err)
		}
	}
	unrelated := f.request(t, "p2", "P2 other place")
	f.inbox.reset()

	if _, err := f.svc.CancelOffer(ctx, party, o.ID, "p1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	got, err := f.svc.CancelOffer(ctx, party, o.ID, "driver")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != models.StatusCancelled || f.get(t, o.ID).Status != models.StatusCancelled {
		t.Fatal("offer not cancelled")
	}

	p1 := f.activeRequestsOf(t, "p1")
	if len(p1) != 1 || p1[0].DepartureLocation != "P1 street" {
		t.Fatalf("p1 should have exactly one new request, got %+v", p1)
	}
	p2 := f.activeRequestsOf(t, "p2")
	if len(p2) != 1 || p2[0].ID != unrelated.ID {
		t.Fatalf("p2 should keep exactly its existing request, got %+v", p2)
	}

	for _, u := range []string{"p1", "p2"} {
		if rs := f.inbox.reasonsFor(u); len(rs) != 1 || rs[0] != notify.ReasonOfferCancelled {
			t.Fatalf("%s notifications %v", u, rs)
		}
	}
	if rs := f.inbox.reasonsFor("driver"); len(rs) != 1 || rs[0] != notify.ReasonOfferCancelConfirmed {
		t.Fatalf("driver notifications %v", rs)
	}

	if _, err := f.svc.CancelOffer(ctx, party, o.ID, "driver"); !errors.Is(err, ErrOfferNotActive) {
		t.Fatalf("second cancel should be ErrOfferNotActive, got %v", err)
	}
	if _, err := f.svc.KickPassenger(ctx, party, o.ID, "p1", "driver"); !errors.Is(err, ErrOfferNotActive) {
		t.Fatalf("kick on cancelled offer should be ErrOfferNotActive, got %v", err)
	}
}

// flakyStore fails request inserts for one owner.
type flakyStore struct {
	*storage.MemoryStore
	failFor string
}

func (s *flakyStore) Commit(ctx context.Context, cs storage.Changeset) error {
	for _, in := range cs.Inserts {
		if in.OwnerID == s.failFor && len(cs.Updates) == 0 {
			return errors.New("disk full")
		}
	}
	return s.MemoryStore.Commit(ctx, cs)
}

func TestCancelOfferFanoutIsBestEffort(t *testing.T) {
	mem := storage.NewMemoryStore()
	store := &flakyStore{MemoryStore: mem}
	in := &inbox{}
	svc := New(store, notify.NewDispatcher(in, quiet), Options{Logger: quiet})
	f := &fixture{svc: svc, store: mem, inbox: in}
	ctx := context.Background()

	o := f.offer(t, "driver", 2)
	for _, u := range []string{"p1", "p2"} {
		r := f.request(t, u, u+" street")
		if _, err := svc.PickUp(ctx, party, o.ID, r.ID); err != nil {
			t.Fatal(err)
		}
	}
	store.failFor = "p1"
	in.reset()

	if _, err := svc.CancelOffer(ctx, party, o.ID, "driver"); err != nil {
		t.Fatalf("cancel should succeed despite fan-out failure: %v", err)
	}
	if f.get(t, o.ID).Status != models.StatusCancelled {
		t.Fatal("cancellation must not be rolled back")
	}
	if n := len(f.activeRequestsOf(t, "p1")); n != 0 {
		t.Fatalf("p1 insert was made to fail, got %d requests", n)
	}
	if n := len(f.activeRequestsOf(t, "p2")); n != 1 {
		t.Fatalf("p2 should still be re-homed, got %d requests", n)
	}
	if rs := in.reasonsFor("p1"); len(rs) != 1 {
		t.Fatalf("p1 should still be told about the cancellation, got %v", rs)
	}
}

func TestCancelRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.request(t, "alice", "A")

	if _, err := f.svc.CancelRequest(ctx, party, r.ID, "mallory"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	got, err := f.svc.CancelRequest(ctx, party, r.ID, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusCancelled {
		t.Fatalf("status=%s", got.Status)
	}
	if rs := f.inbox.reasonsFor("alice"); len(rs) != 1 || rs[0] != notify.ReasonRequestCancelledByUser {
		t.Fatalf("alice notifications %v", rs)
	}
	if _, err := f.svc.CancelRequest(ctx, party, r.ID, "alice"); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
	if _, err := f.svc.CancelRequest(ctx, party, "missing", "alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	o := f.offer(t, "driver", 1)
	done := f.request(t, "bob", "B")
	if _, err := f.svc.PickUp(ctx, party, o.ID, done.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.CancelRequest(ctx, party, done.ID, "bob"); !errors.Is(err, ErrNotActive) {
		t.Fatalf("completed request cannot be cancelled, got %v", err)
	}
}

// conflictStore never lets an update through.
type conflictStore struct{ *storage.MemoryStore }

func (s conflictStore) Commit(ctx context.Context, cs storage.Changeset) error {
	if len(cs.Updates) > 0 {
		return storage.ErrVersionConflict
	}
	return s.MemoryStore.Commit(ctx, cs)
}

func TestRetryBudgetEndsInConflict(t *testing.T) {
	store := conflictStore{storage.NewMemoryStore()}
	svc := New(store, nil, Options{Logger: quiet, MaxAttempts: 3})
	ctx := context.Background()
	r, err := svc.CreateRequest(ctx, party, "alice", "A")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CancelRequest(ctx, party, r.ID, "alice"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestListAndFindMatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.offer(t, "driver", 2)
	f.request(t, "alice", "A")

	offers, err := f.svc.ListActive(ctx, party, models.KindOffer)
	if err != nil || len(offers) != 1 || offers[0].ID != o.ID {
		t.Fatalf("offers=%v err=%v", offers, err)
	}
	if _, err := f.svc.Get(ctx, "party-2", o.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across parties, got %v", err)
	}
	if m, err := f.svc.FindMatches(ctx, party, o.ID); err != nil || m != nil {
		t.Fatalf("no matcher configured: got %v %v", m, err)
	}
	if _, err := f.svc.CancelOffer(ctx, party, o.ID, "driver"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.FindMatches(ctx, party, o.ID); !errors.Is(err, ErrOfferNotActive) {
		t.Fatalf("expected ErrOfferNotActive, got %v", err)
	}
}

func TestFindMatchesSkipsFullOffer(t *testing.T) {
	store := storage.NewMemoryStore()
	m := &fakeMatcher{}
	svc := New(store, nil, Options{Matcher: m, Logger: quiet})
	ctx := context.Background()

	o, _, err := svc.CreateOffer(ctx, party, "driver", models.PersonalVehicle, "D", 1)
	if err != nil {
		t.Fatal(err)
	}
	alice, err := svc.CreateRequest(ctx, party, "alice", "A")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateRequest(ctx, party, "bob", "B"); err != nil {
		t.Fatal(err)
	}
	if got, err := svc.FindMatches(ctx, party, o.ID); err != nil || len(got) != 2 {
		t.Fatalf("expected both requests while a seat is free, got %d %v", len(got), err)
	}

	if _, err := svc.PickUp(ctx, party, o.ID, alice.ID); err != nil {
		t.Fatal(err)
	}
	got, err := svc.FindMatches(ctx, party, o.ID)
	if err != nil || len(got) != 0 {
		t.Fatalf("full offer should have no candidates, got %d %v", len(got), err)
	}
}

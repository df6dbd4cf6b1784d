package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type recorder struct {
	got    []Envelope
	failOn string
}

func (r *recorder) Notify(_ context.Context, env Envelope) error {
	if env.UserID == r.failOn {
		return errors.New("push gateway down")
	}
	r.got = append(r.got, env)
	return nil
}

func TestDispatchContinuesPastFailures(t *testing.T) {
	rec := &recorder{failOn: "p1"}
	d := NewDispatcher(rec, slog.New(slog.NewTextHandler(io.Discard, nil)))

	failed := d.Dispatch(context.Background(),
		OfferCancelled{PartyID: "party", PassengerID: "p1", OfferID: "o1"},
		OfferCancelled{PartyID: "party", PassengerID: "p2", OfferID: "o1", RequestID: "r2"},
		OfferCancelConfirmed{PartyID: "party", DriverID: "d1", OfferID: "o1", PassengerCount: 2},
	)
	if failed != 1 {
		t.Fatalf("expected 1 failure, got %d", failed)
	}
	if len(rec.got) != 2 || rec.got[0].UserID != "p2" || rec.got[1].UserID != "d1" {
		t.Fatalf("unexpected deliveries %+v", rec.got)
	}
	for _, env := range rec.got {
		if env.CreatedAt.IsZero() {
			t.Fatal("dispatcher should stamp CreatedAt")
		}
	}
}

func TestNilDispatcherIsNoop(t *testing.T) {
	var d *Dispatcher
	if n := d.Dispatch(context.Background(), KickConfirmed{DriverID: "d"}); n != 0 {
		t.Fatalf("expected 0, got %d", n)
	}
}

func TestEnvelopesCarryOnlyTheirFields(t *testing.T) {
	cases := []struct {
		n       Notification
		user    string
		reason  Reason
		keys    []string
		missing []string
	}{
		{PickupConfirmed{PartyID: "p", PassengerID: "u", DriverID: "d", OfferID: "o", RequestID: "r", PickupLocation: "12 Rue X"},
			"u", ReasonPickupConfirmed, []string{"offer_id", "request_id", "driver_id"}, nil},
		{PassengerAdded{PartyID: "p", DriverID: "d", OfferID: "o", PassengerID: "u", SeatsLeft: 2},
			"d", ReasonPassengerAdded, []string{"passenger_id", "seats_left"}, []string{"request_id"}},
		{PassengerRemoved{PartyID: "p", PassengerID: "u", DriverID: "d", OfferID: "o", RequestID: "r"},
			"u", ReasonPassengerRemoved, []string{"request_id"}, []string{"passenger_id"}},
		{KickConfirmed{PartyID: "p", DriverID: "d", OfferID: "o", PassengerID: "u"},
			"d", ReasonKickConfirmed, []string{"passenger_id"}, nil},
		{PassengerLeft{PartyID: "p", DriverID: "d", OfferID: "o", PassengerID: "u"},
			"d", ReasonPassengerLeft, []string{"passenger_id"}, nil},
		{OfferCancelled{PartyID: "p", PassengerID: "u", OfferID: "o"},
			"u", ReasonOfferCancelled, []string{"offer_id"}, []string{"request_id"}},
		{OfferCancelConfirmed{PartyID: "p", DriverID: "d", OfferID: "o", PassengerCount: 3},
			"d", ReasonOfferCancelConfirmed, []string{"passenger_count"}, nil},
		{RequestCancelledByUser{PartyID: "p", OwnerID: "u", RequestID: "r"},
			"u", ReasonRequestCancelledByUser, []string{"request_id"}, []string{"offer_id"}},
	}
	for _, tc := range cases {
		env := tc.n.Envelope()
		if env.UserID != tc.user || tc.n.Recipient() != tc.user {
			t.Fatalf("%s: recipient %q want %q", tc.reason, env.UserID, tc.user)
		}
		if env.Reason != tc.reason {
			t.Fatalf("reason %q want %q", env.Reason, tc.reason)
		}
		if env.Title == "" || env.Body == "" || env.DeepLink != "/parties/p/rides" {
			t.Fatalf("%s: incomplete envelope %+v", tc.reason, env)
		}
		for _, k := range tc.keys {
			if env.Metadata[k] == "" {
				t.Fatalf("%s: missing metadata %q", tc.reason, k)
			}
		}
		for _, k := range tc.missing {
			if _, ok := env.Metadata[k]; ok {
				t.Fatalf("%s: unexpected metadata %q", tc.reason, k)
			}
		}
	}
}

package notify

import (
	"fmt"
	"strconv"
)

func ridesLink(partyID string) string { return "/parties/" + partyID + "/rides" }

// PickupConfirmed tells a passenger a driver picked up their request.
type PickupConfirmed struct {
	PartyID        string
	PassengerID    string
	DriverID       string
	OfferID        string
	RequestID      string
	PickupLocation string
}

func (n PickupConfirmed) Recipient() string { return n.PassengerID }
func (n PickupConfirmed) Reason() Reason    { return ReasonPickupConfirmed }
func (n PickupConfirmed) Envelope() Envelope {
	return Envelope{
		UserID: n.PassengerID,
		Reason: n.Reason(),
		Title:  "You have a ride",
		Body:   fmt.Sprintf("A driver will pick you up at %s.", n.PickupLocation),
		Metadata: map[string]string{
			"party_id":   n.PartyID,
			"offer_id":   n.OfferID,
			"request_id": n.RequestID,
			"driver_id":  n.DriverID,
		},
		DeepLink: ridesLink(n.PartyID),
	}
}

// PassengerAdded tells the driver a seat on their offer was taken.
type PassengerAdded struct {
	PartyID     string
	DriverID    string
	OfferID     string
	PassengerID string
	SeatsLeft   int
}

func (n PassengerAdded) Recipient() string { return n.DriverID }
func (n PassengerAdded) Reason() Reason    { return ReasonPassengerAdded }
func (n PassengerAdded) Envelope() Envelope {
	return Envelope{
		UserID: n.DriverID,
		Reason: n.Reason(),
		Title:  "Passenger added",
		Body:   fmt.Sprintf("A passenger joined your ride. Seats left: %d.", n.SeatsLeft),
		Metadata: map[string]string{
			"party_id":     n.PartyID,
			"offer_id":     n.OfferID,
			"passenger_id": n.PassengerID,
			"seats_left":   strconv.Itoa(n.SeatsLeft),
		},
		DeepLink: ridesLink(n.PartyID),
	}
}

// PassengerRemoved tells a passenger the driver removed them. RequestID is
// the active request that now represents their need for a ride.
type PassengerRemoved struct {
	PartyID     string
	PassengerID string
	DriverID    string
	OfferID     string
	RequestID   string
}

func (n PassengerRemoved) Recipient() string { return n.PassengerID }
func (n PassengerRemoved) Reason() Reason    { return ReasonPassengerRemoved }
func (n PassengerRemoved) Envelope() Envelope {
	return Envelope{
		UserID: n.PassengerID,
		Reason: n.Reason(),
		Title:  "Removed from a ride",
		Body:   "The driver removed you from their ride. Your ride request is open again.",
		Metadata: map[string]string{
			"party_id":   n.PartyID,
			"offer_id":   n.OfferID,
			"request_id": n.RequestID,
		},
		DeepLink: ridesLink(n.PartyID),
	}
}

// KickConfirmed confirms a removal to the driver who made it.
type KickConfirmed struct {
	PartyID     string
	DriverID    string
	OfferID     string
	PassengerID string
}

func (n KickConfirmed) Recipient() string { return n.DriverID }
func (n KickConfirmed) Reason() Reason    { return ReasonKickConfirmed }
func (n KickConfirmed) Envelope() Envelope {
	return Envelope{
		UserID: n.DriverID,
		Reason: n.Reason(),
		Title:  "Passenger removed",
		Body:   "The passenger was removed from your ride.",
		Metadata: map[string]string{
			"party_id":     n.PartyID,
			"offer_id":     n.OfferID,
			"passenger_id": n.PassengerID,
		},
		DeepLink: ridesLink(n.PartyID),
	}
}

// PassengerLeft tells the driver a passenger gave up their seat.
type PassengerLeft struct {
	PartyID     string
	DriverID    string
	OfferID     string
	PassengerID string
}

func (n PassengerLeft) Recipient() string { return n.DriverID }
func (n PassengerLeft) Reason() Reason    { return ReasonPassengerLeft }
func (n PassengerLeft) Envelope() Envelope {
	return Envelope{
		UserID: n.DriverID,
		Reason: n.Reason(),
		Title:  "Passenger left",
		Body:   "A passenger left your ride. A seat is free again.",
		Metadata: map[string]string{
			"party_id":     n.PartyID,
			"offer_id":     n.OfferID,
			"passenger_id": n.PassengerID,
		},
		DeepLink: ridesLink(n.PartyID),
	}
}

// OfferCancelled tells a former passenger their ride was cancelled.
type OfferCancelled struct {
	PartyID     string
	PassengerID string
	DriverID    string
	OfferID     string
	RequestID   string
}

func (n OfferCancelled) Recipient() string { return n.PassengerID }
func (n OfferCancelled) Reason() Reason    { return ReasonOfferCancelled }
func (n OfferCancelled) Envelope() Envelope {
	md := map[string]string{
		"party_id": n.PartyID,
		"offer_id": n.OfferID,
	}
	body := "Your ride was cancelled by the driver. Your ride request is open again."
	if n.RequestID != "" {
		md["request_id"] = n.RequestID
	} else {
		body = "Your ride was cancelled by the driver. Please post a new ride request."
	}
	return Envelope{
		UserID:   n.PassengerID,
		Reason:   n.Reason(),
		Title:    "Ride cancelled",
		Body:     body,
		Metadata: md,
		DeepLink: ridesLink(n.PartyID),
	}
}

// OfferCancelConfirmed confirms a cancellation to the driver.
type OfferCancelConfirmed struct {
	PartyID        string
	DriverID       string
	OfferID        string
	PassengerCount int
}

func (n OfferCancelConfirmed) Recipient() string { return n.DriverID }
func (n OfferCancelConfirmed) Reason() Reason    { return ReasonOfferCancelConfirmed }
func (n OfferCancelConfirmed) Envelope() Envelope {
	return Envelope{
		UserID: n.DriverID,
		Reason: n.Reason(),
		Title:  "Ride cancelled",
		Body:   fmt.Sprintf("Your ride offer was cancelled. %d passenger(s) were notified.", n.PassengerCount),
		Metadata: map[string]string{
			"party_id":        n.PartyID,
			"offer_id":        n.OfferID,
			"passenger_count": strconv.Itoa(n.PassengerCount),
		},
		DeepLink: ridesLink(n.PartyID),
	}
}

// RequestCancelledByUser confirms to the owner that their request is withdrawn.
type RequestCancelledByUser struct {
	PartyID   string
	OwnerID   string
	RequestID string
}

func (n RequestCancelledByUser) Recipient() string { return n.OwnerID }
func (n RequestCancelledByUser) Reason() Reason    { return ReasonRequestCancelledByUser }
func (n RequestCancelledByUser) Envelope() Envelope {
	return Envelope{
		UserID: n.OwnerID,
		Reason: n.Reason(),
		Title:  "Ride request cancelled",
		Body:   "Your ride request was withdrawn.",
		Metadata: map[string]string{
			"party_id":   n.PartyID,
			"request_id": n.RequestID,
		},
		DeepLink: ridesLink(n.PartyID),
	}
}

package models

import "time"

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Kind string

const (
	KindOffer   Kind = "offer"
	KindRequest Kind = "request"
)

func (k Kind) Valid() bool { return k == KindOffer || k == KindRequest }

// DriverMode tells whether an offer is the driver's own car or a commercial
// ride-hailing trip the driver books and shares.
type DriverMode string

const (
	PersonalVehicle     DriverMode = "personal_vehicle"
	CommercialRideShare DriverMode = "commercial_rideshare"
)

func (m DriverMode) Valid() bool { return m == PersonalVehicle || m == CommercialRideShare }

type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

type Passenger struct {
	PassengerID    string    `json:"passenger_id"`
	PickupLocation string    `json:"pickup_location"`
	JoinedAt       time.Time `json:"joined_at"`
}

// RideEntry is either an offer (driver with seats) or a request (someone who
// needs a pickup). DriverMode, Capacity and Passengers are only meaningful on
// offers.
type RideEntry struct {
	ID                string      `json:"id"`
	PartyID           string      `json:"party_id"`
	Kind              Kind        `json:"kind"`
	DriverMode        DriverMode  `json:"driver_mode,omitempty"`
	OwnerID           string      `json:"owner_id"`
	DepartureLocation string      `json:"departure_location"`
	Capacity          int         `json:"capacity,omitempty"`
	Passengers        []Passenger `json:"passengers,omitempty"`
	Status            Status      `json:"status"`
	Version           int64       `json:"version"`
	CreatedBy         string      `json:"created_by"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

func (e *RideEntry) IsActive() bool { return e.Status == StatusActive }

func (e *RideEntry) SeatsLeft() int { return e.Capacity - len(e.Passengers) }

// PassengerIndex returns the position of userID in the passenger list, or -1.
func (e *RideEntry) PassengerIndex(userID string) int {
	for i, p := range e.Passengers {
		if p.PassengerID == userID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (e *RideEntry) Clone() *RideEntry {
	if e == nil {
		return nil
	}
	c := *e
	if e.Passengers != nil {
		c.Passengers = make([]Passenger, len(e.Passengers))
		copy(c.Passengers, e.Passengers)
	}
	return &c
}

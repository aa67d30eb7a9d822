package domain

import (
	"time"

	"github.com/google/uuid"
)

// Listing kinds, also used as the entity prefix of image keys.
const (
	KindVehicle = "vehicle"
	KindPart    = "part"
	KindWheel   = "wheel"
)

// MaxImages is the number of image slots a listing can have.
const MaxImages = 4

type Vehicle struct {
	ID           int64     `json:"id"`
	Type         string    `json:"type"`
	Brand        string    `json:"brand"`
	Model        string    `json:"model"`
	Year         int       `json:"year"`
	Details      string    `json:"details"`
	MileageKm    int       `json:"mileage_km"`
	FuelType     string    `json:"fuel_type"`
	DriveType    string    `json:"drive_type"`
	Transmission string    `json:"transmission"`
	SeatsNumber  int       `json:"seats_number"`
	DoorsNumber  int       `json:"doors_number"`
	ImageCount   int       `json:"image_count"`
	Creator      uuid.UUID `json:"creator"`
	CreatedAt    time.Time `json:"created_at"`
}

type Part struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Number     string    `json:"number"`
	Info       string    `json:"info"`
	OwnerID    uuid.UUID `json:"owner_id"`
	VehicleID  *int64    `json:"vehicle_id,omitempty"`
	ImageCount int       `json:"image_count"`
	CreatedAt  time.Time `json:"created_at"`
}

type Wheel struct {
	ID                    int64     `json:"id"`
	RimBoltPattern        string    `json:"rim_bolt_pattern"`
	RimSize               string    `json:"rim_size"`
	TireWidth             int       `json:"tire_width"`
	TireProfile           int       `json:"tire_profile"`
	TireSize              int       `json:"tire_size"`
	AdditionalInformation string    `json:"additional_information"`
	OwnerID               uuid.UUID `json:"owner_id"`
	VehicleID             *int64    `json:"vehicle_id,omitempty"`
	ImageCount            int       `json:"image_count"`
	CreatedAt             time.Time `json:"created_at"`
}

var (
	VehicleTypes  = []string{"Car", "Motorcycle", "Van", "Truck"}
	FuelTypes     = []string{"Petrol", "Diesel", "Electric", "Hybrid", "LPG"}
	DriveTypes    = []string{"FWD", "RWD", "AWD", "4WD"}
	Transmissions = []string{"Manual", "Automatic"}
)

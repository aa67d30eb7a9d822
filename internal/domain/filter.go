package domain

import (
	"strings"

	"github.com/google/uuid"
)

// FilterAll is the sentinel a client sends for "no filter" on enum fields.
const FilterAll = "All"

// VehicleFilter holds optional listing filters. Zero values mean "no filter".
// Brand and Model match as case-insensitive substrings, MaxMileageKm as an
// upper bound and everything else by equality.
type VehicleFilter struct {
	Type         string
	Brand        string
	Model        string
	Year         *int
	MaxMileageKm *int
	FuelType     string
	DriveType    string
	Transmission string
	Seats        *int
	Doors        *int
	Creator      *uuid.UUID
}

func (f VehicleFilter) Matches(v *Vehicle) bool {
	switch {
	case enumSet(f.Type) && v.Type != f.Type:
		return false
	case f.Brand != "" && !containsFold(v.Brand, f.Brand):
		return false
	case f.Model != "" && !containsFold(v.Model, f.Model):
		return false
	case f.Year != nil && v.Year != *f.Year:
		return false
	case f.MaxMileageKm != nil && v.MileageKm > *f.MaxMileageKm:
		return false
	case enumSet(f.FuelType) && v.FuelType != f.FuelType:
		return false
	case enumSet(f.DriveType) && v.DriveType != f.DriveType:
		return false
	case enumSet(f.Transmission) && v.Transmission != f.Transmission:
		return false
	case f.Seats != nil && v.SeatsNumber != *f.Seats:
		return false
	case f.Doors != nil && v.DoorsNumber != *f.Doors:
		return false
	case f.Creator != nil && v.Creator != *f.Creator:
		return false
	}
	return true
}

// PartFilter matches Name and Number as case-insensitive substrings, or
// exactly when Exact is set. ExcludeID drops one listing from the result.
type PartFilter struct {
	Name      string
	Number    string
	Exact     bool
	OwnerID   *uuid.UUID
	VehicleID *int64
	ExcludeID *int64
}

func (f PartFilter) Matches(p *Part) bool {
	switch {
	case f.Name != "" && !f.text(p.Name, f.Name):
		return false
	case f.Number != "" && !f.text(p.Number, f.Number):
		return false
	case f.OwnerID != nil && p.OwnerID != *f.OwnerID:
		return false
	case f.VehicleID != nil && (p.VehicleID == nil || *p.VehicleID != *f.VehicleID):
		return false
	case f.ExcludeID != nil && p.ID == *f.ExcludeID:
		return false
	}
	return true
}

func (f PartFilter) text(value, want string) bool {
	if f.Exact {
		return value == want
	}
	return containsFold(value, want)
}

type WheelFilter struct {
	RimBoltPattern string
	RimSize        string
	TireWidth      *int
	TireProfile    *int
	TireSize       *int
	OwnerID        *uuid.UUID
	VehicleID      *int64
	ExcludeID      *int64
}

func (f WheelFilter) Matches(w *Wheel) bool {
	switch {
	case enumSet(f.RimBoltPattern) && w.RimBoltPattern != f.RimBoltPattern:
		return false
	case enumSet(f.RimSize) && w.RimSize != f.RimSize:
		return false
	case f.TireWidth != nil && w.TireWidth != *f.TireWidth:
		return false
	case f.TireProfile != nil && w.TireProfile != *f.TireProfile:
		return false
	case f.TireSize != nil && w.TireSize != *f.TireSize:
		return false
	case f.OwnerID != nil && w.OwnerID != *f.OwnerID:
		return false
	case f.VehicleID != nil && (w.VehicleID == nil || *w.VehicleID != *f.VehicleID):
		return false
	case f.ExcludeID != nil && w.ID == *f.ExcludeID:
		return false
	}
	return true
}

func enumSet(v string) bool {
	return v != "" && v != FilterAll
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

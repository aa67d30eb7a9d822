package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestVehicleFilterBrandSubstring(t *testing.T) {
	f := VehicleFilter{Brand: "Toy"}

	assert.True(t, f.Matches(&Vehicle{Brand: "Toyota"}))
	assert.True(t, f.Matches(&Vehicle{Brand: "TOYOTA"}))
	assert.False(t, f.Matches(&Vehicle{Brand: "Honda"}))
}

func TestVehicleFilterAllSentinel(t *testing.T) {
	f := VehicleFilter{Type: FilterAll, FuelType: FilterAll}
	assert.True(t, f.Matches(&Vehicle{Type: "Van", FuelType: "Diesel"}))

	f.FuelType = "Petrol"
	assert.False(t, f.Matches(&Vehicle{Type: "Van", FuelType: "Diesel"}))
}

func TestVehicleFilterMileageUpperBound(t *testing.T) {
	f := VehicleFilter{MaxMileageKm: intPtr(100000)}

	assert.True(t, f.Matches(&Vehicle{MileageKm: 100000}))
	assert.True(t, f.Matches(&Vehicle{MileageKm: 5}))
	assert.False(t, f.Matches(&Vehicle{MileageKm: 100001}))
}

func TestVehicleFilterCreator(t *testing.T) {
	me := uuid.New()
	f := VehicleFilter{Creator: &me}

	assert.True(t, f.Matches(&Vehicle{Creator: me}))
	assert.False(t, f.Matches(&Vehicle{Creator: uuid.New()}))
}

func TestPartFilter(t *testing.T) {
	f := PartFilter{Name: "brake", Number: "12"}

	assert.True(t, f.Matches(&Part{Name: "Front Brake Pad", Number: "A-1234"}))
	assert.False(t, f.Matches(&Part{Name: "Front Brake Pad", Number: "A-99"}))
	assert.False(t, f.Matches(&Part{Name: "Clutch", Number: "12"}))
}

func TestWheelFilter(t *testing.T) {
	f := WheelFilter{RimBoltPattern: "5x112", TireWidth: intPtr(225)}

	assert.True(t, f.Matches(&Wheel{RimBoltPattern: "5x112", TireWidth: 225}))
	assert.False(t, f.Matches(&Wheel{RimBoltPattern: "5x100", TireWidth: 225}))
	assert.False(t, f.Matches(&Wheel{RimBoltPattern: "5x112", TireWidth: 205}))
	assert.True(t, WheelFilter{RimSize: FilterAll}.Matches(&Wheel{RimSize: "17"}))
}

func TestPartFilterVehicleAndExclude(t *testing.T) {
	car, other := int64(7), int64(8)
	self := int64(1)
	f := PartFilter{VehicleID: &car, ExcludeID: &self}

	assert.True(t, f.Matches(&Part{ID: 2, VehicleID: &car}))
	assert.False(t, f.Matches(&Part{ID: 1, VehicleID: &car}))
	assert.False(t, f.Matches(&Part{ID: 3, VehicleID: &other}))
	assert.False(t, f.Matches(&Part{ID: 4}))
}

func TestPartFilterExact(t *testing.T) {
	f := PartFilter{Name: "Brake Pad", Number: "A-12", Exact: true}

	assert.True(t, f.Matches(&Part{Name: "Brake Pad", Number: "A-12"}))
	assert.False(t, f.Matches(&Part{Name: "Front Brake Pad", Number: "A-12"}))
	assert.False(t, f.Matches(&Part{Name: "Brake Pad", Number: "A-123"}))
}

func TestWheelFilterVehicleAndExclude(t *testing.T) {
	car := int64(7)
	self := int64(1)
	f := WheelFilter{VehicleID: &car, ExcludeID: &self}

	assert.True(t, f.Matches(&Wheel{ID: 2, VehicleID: &car}))
	assert.False(t, f.Matches(&Wheel{ID: 1, VehicleID: &car}))
	assert.False(t, f.Matches(&Wheel{ID: 3}))
}

package postgres

import (
	"fmt"
	"strings"

	"github.com/vedran77/partsmarket/internal/domain"
)

// where accumulates AND-ed conditions with positional arguments.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(format string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(format, len(w.args)))
}

func (w *where) eqString(column, value string) {
	if value != "" && value != domain.FilterAll {
		w.add(column+" = $%d", value)
	}
}

func (w *where) ilike(column, value string) {
	if value != "" {
		w.add(column+" ILIKE $%d", "%"+escapeLike(value)+"%")
	}
}

func (w *where) eqInt(column string, value *int) {
	if value != nil {
		w.add(column+" = $%d", *value)
	}
}

func (w *where) eqID(column string, value *int64) {
	if value != nil {
		w.add(column+" = $%d", *value)
	}
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func buildVehicleQuery(f domain.VehicleFilter) (string, []any) {
	var w where
	w.eqString("type", f.Type)
	w.ilike("brand", f.Brand)
	w.ilike("model", f.Model)
	w.eqInt("year", f.Year)
	if f.MaxMileageKm != nil {
		w.add("mileage_km <= $%d", *f.MaxMileageKm)
	}
	w.eqString("fuel_type", f.FuelType)
	w.eqString("drive_type", f.DriveType)
	w.eqString("transmission", f.Transmission)
	w.eqInt("seats_number", f.Seats)
	w.eqInt("doors_number", f.Doors)
	if f.Creator != nil {
		w.add("creator = $%d", *f.Creator)
	}
	return "SELECT " + vehicleColumns + " FROM vehicles" + w.String() + " ORDER BY created_at DESC", w.args
}

func buildPartQuery(f domain.PartFilter) (string, []any) {
	var w where
	if f.Exact {
		w.eqString("name", f.Name)
		w.eqString("number", f.Number)
	} else {
		w.ilike("name", f.Name)
		w.ilike("number", f.Number)
	}
	if f.OwnerID != nil {
		w.add("owner_id = $%d", *f.OwnerID)
	}
	w.eqID("vehicle_id", f.VehicleID)
	if f.ExcludeID != nil {
		w.add("id <> $%d", *f.ExcludeID)
	}
	return "SELECT " + partColumns + " FROM parts" + w.String() + " ORDER BY created_at DESC", w.args
}

func buildWheelQuery(f domain.WheelFilter) (string, []any) {
	var w where
	w.eqString("rim_bolt_pattern", f.RimBoltPattern)
	w.eqString("rim_size", f.RimSize)
	w.eqInt("tire_width", f.TireWidth)
	w.eqInt("tire_profile", f.TireProfile)
	w.eqInt("tire_size", f.TireSize)
	if f.OwnerID != nil {
		w.add("owner_id = $%d", *f.OwnerID)
	}
	w.eqID("vehicle_id", f.VehicleID)
	if f.ExcludeID != nil {
		w.add("id <> $%d", *f.ExcludeID)
	}
	return "SELECT " + wheelColumns + " FROM wheels" + w.String() + " ORDER BY created_at DESC", w.args
}

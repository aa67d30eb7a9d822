package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/partsmarket/internal/domain"
)

const (
	vehicleColumns = `id, type, brand, model, year, details, mileage_km, fuel_type, drive_type,
	transmission, seats_number, doors_number, image_count, creator, created_at`
	partColumns  = `id, name, number, info, owner_id, vehicle_id, image_count, created_at`
	wheelColumns = `id, rim_bolt_pattern, rim_size, tire_width, tire_profile, tire_size,
	additional_information, owner_id, vehicle_id, image_count, created_at`
)

type ListingRepo struct {
	pool *pgxpool.Pool
}

func NewListingRepo(pool *pgxpool.Pool) *ListingRepo {
	return &ListingRepo{pool: pool}
}

// --- Vehicles ---

func (r *ListingRepo) CreateVehicle(ctx context.Context, v *domain.Vehicle) error {
	query := `
		INSERT INTO vehicles (type, brand, model, year, details, mileage_km, fuel_type, drive_type,
			transmission, seats_number, doors_number, image_count, creator)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		v.Type, v.Brand, v.Model, v.Year, v.Details, v.MileageKm, v.FuelType, v.DriveType,
		v.Transmission, v.SeatsNumber, v.DoorsNumber, v.ImageCount, v.Creator,
	).Scan(&v.ID, &v.CreatedAt)
}

func (r *ListingRepo) GetVehicle(ctx context.Context, id int64) (*domain.Vehicle, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+vehicleColumns+" FROM vehicles WHERE id = $1", id)
	v, err := scanVehicle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

func (r *ListingRepo) ListVehicles(ctx context.Context, f domain.VehicleFilter) ([]domain.Vehicle, error) {
	query, args := buildVehicleQuery(f)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func (r *ListingRepo) UpdateVehicle(ctx context.Context, v *domain.Vehicle) error {
	query := `
		UPDATE vehicles
		SET type = $1, brand = $2, model = $3, year = $4, details = $5, mileage_km = $6,
			fuel_type = $7, drive_type = $8, transmission = $9, seats_number = $10,
			doors_number = $11, image_count = $12
		WHERE id = $13`
	_, err := r.pool.Exec(ctx, query,
		v.Type, v.Brand, v.Model, v.Year, v.Details, v.MileageKm,
		v.FuelType, v.DriveType, v.Transmission, v.SeatsNumber,
		v.DoorsNumber, v.ImageCount, v.ID,
	)
	return err
}

func (r *ListingRepo) DeleteVehicle(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM vehicles WHERE id = $1`, id)
	return err
}

func scanVehicle(row pgx.Row) (*domain.Vehicle, error) {
	var v domain.Vehicle
	err := row.Scan(
		&v.ID, &v.Type, &v.Brand, &v.Model, &v.Year, &v.Details, &v.MileageKm,
		&v.FuelType, &v.DriveType, &v.Transmission, &v.SeatsNumber, &v.DoorsNumber,
		&v.ImageCount, &v.Creator, &v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// --- Parts ---

func (r *ListingRepo) CreatePart(ctx context.Context, p *domain.Part) error {
	query := `
		INSERT INTO parts (name, number, info, owner_id, vehicle_id, image_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		p.Name, p.Number, p.Info, p.OwnerID, p.VehicleID, p.ImageCount,
	).Scan(&p.ID, &p.CreatedAt)
}

func (r *ListingRepo) GetPart(ctx context.Context, id int64) (*domain.Part, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+partColumns+" FROM parts WHERE id = $1", id)
	p, err := scanPart(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *ListingRepo) ListParts(ctx context.Context, f domain.PartFilter) ([]domain.Part, error) {
	query, args := buildPartQuery(f)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Part
	for rows.Next() {
		p, err := scanPart(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *ListingRepo) UpdatePart(ctx context.Context, p *domain.Part) error {
	query := `
		UPDATE parts
		SET name = $1, number = $2, info = $3, vehicle_id = $4, image_count = $5
		WHERE id = $6`
	_, err := r.pool.Exec(ctx, query, p.Name, p.Number, p.Info, p.VehicleID, p.ImageCount, p.ID)
	return err
}

func (r *ListingRepo) DeletePart(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM parts WHERE id = $1`, id)
	return err
}

func scanPart(row pgx.Row) (*domain.Part, error) {
	var p domain.Part
	err := row.Scan(
		&p.ID, &p.Name, &p.Number, &p.Info, &p.OwnerID, &p.VehicleID, &p.ImageCount, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// --- Wheels ---

func (r *ListingRepo) CreateWheel(ctx context.Context, w *domain.Wheel) error {
	query := `
		INSERT INTO wheels (rim_bolt_pattern, rim_size, tire_width, tire_profile, tire_size,
			additional_information, owner_id, vehicle_id, image_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		w.RimBoltPattern, w.RimSize, w.TireWidth, w.TireProfile, w.TireSize,
		w.AdditionalInformation, w.OwnerID, w.VehicleID, w.ImageCount,
	).Scan(&w.ID, &w.CreatedAt)
}

func (r *ListingRepo) GetWheel(ctx context.Context, id int64) (*domain.Wheel, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+wheelColumns+" FROM wheels WHERE id = $1", id)
	w, err := scanWheel(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return w, err
}

func (r *ListingRepo) ListWheels(ctx context.Context, f domain.WheelFilter) ([]domain.Wheel, error) {
	query, args := buildWheelQuery(f)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Wheel
	for rows.Next() {
		w, err := scanWheel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

func (r *ListingRepo) UpdateWheel(ctx context.Context, w *domain.Wheel) error {
	query := `
		UPDATE wheels
		SET rim_bolt_pattern = $1, rim_size = $2, tire_width = $3, tire_profile = $4,
			tire_size = $5, additional_information = $6, vehicle_id = $7, image_count = $8
		WHERE id = $9`
	_, err := r.pool.Exec(ctx, query,
		w.RimBoltPattern, w.RimSize, w.TireWidth, w.TireProfile,
		w.TireSize, w.AdditionalInformation, w.VehicleID, w.ImageCount, w.ID,
	)
	return err
}

func (r *ListingRepo) DeleteWheel(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM wheels WHERE id = $1`, id)
	return err
}

func scanWheel(row pgx.Row) (*domain.Wheel, error) {
	var w domain.Wheel
	err := row.Scan(
		&w.ID, &w.RimBoltPattern, &w.RimSize, &w.TireWidth, &w.TireProfile, &w.TireSize,
		&w.AdditionalInformation, &w.OwnerID, &w.VehicleID, &w.ImageCount, &w.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

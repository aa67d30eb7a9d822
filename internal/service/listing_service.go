package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vedran77/partsmarket/internal/domain"
	"github.com/vedran77/partsmarket/internal/repository"
	"github.com/vedran77/partsmarket/internal/storage"
)

var (
	ErrListingNotFound = errors.New("listing not found")
	ErrNotListingOwner = errors.New("you do not own this listing")
	ErrStorageDisabled = errors.New("image storage is not configured")
	ErrUnknownKind     = errors.New("unknown listing kind")
)

// DefaultImageContent is the content type upload URLs are signed for.
const DefaultImageContent = "image/jpeg"

// ImageStore hands out upload URLs for listing images.
type ImageStore interface {
	PresignUpload(ctx context.Context, key, contentType string) (string, error)
}

// ImageCleaner removes listing images in the background.
type ImageCleaner interface {
	EnqueueImageCleanup(ctx context.Context, keys []string) error
}

// UploadTarget is a presigned PUT URL for one image slot.
type UploadTarget struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type ListingService struct {
	repo    repository.ListingRepository
	images  ImageStore
	cleaner ImageCleaner
}

func NewListingService(repo repository.ListingRepository) *ListingService {
	return &ListingService{repo: repo}
}

// SetImages wires object storage (optional dependency). Without it listings
// can only be created with no images.
func (s *ListingService) SetImages(store ImageStore, cleaner ImageCleaner) {
	s.images = store
	s.cleaner = cleaner
}

// --- Vehicles ---

func (s *ListingService) CreateVehicle(ctx context.Context, userID uuid.UUID, v *domain.Vehicle) ([]UploadTarget, error) {
	v.ImageCount = min(clampImages(v.ImageCount), 1)
	if err := s.checkImages(v.ImageCount); err != nil {
		return nil, err
	}
	v.Creator = userID
	if err := s.repo.CreateVehicle(ctx, v); err != nil {
		return nil, fmt.Errorf("creating vehicle: %w", err)
	}
	targets, err := s.uploadTargets(ctx, domain.KindVehicle, v.ID, v.ImageCount)
	if err != nil {
		if derr := s.repo.DeleteVehicle(ctx, v.ID); derr != nil {
			log.Error().Err(derr).Int64("id", v.ID).Msg("rollback vehicle after presign failure")
		}
		return nil, err
	}
	return targets, nil
}

func (s *ListingService) GetVehicle(ctx context.Context, id int64) (*domain.Vehicle, error) {
	v, err := s.repo.GetVehicle(ctx, id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrListingNotFound
	}
	return v, nil
}

func (s *ListingService) ListVehicles(ctx context.Context, f domain.VehicleFilter) ([]domain.Vehicle, error) {
	out, err := s.repo.ListVehicles(ctx, f)
	if out == nil && err == nil {
		out = []domain.Vehicle{}
	}
	return out, err
}

func (s *ListingService) UpdateVehicle(ctx context.Context, userID uuid.UUID, id int64, in *domain.Vehicle) (*domain.Vehicle, error) {
	v, err := s.GetVehicle(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.Creator != userID {
		return nil, ErrNotListingOwner
	}
	in.ID, in.Creator, in.CreatedAt, in.ImageCount = v.ID, v.Creator, v.CreatedAt, v.ImageCount
	if err := s.repo.UpdateVehicle(ctx, in); err != nil {
		return nil, fmt.Errorf("updating vehicle: %w", err)
	}
	return in, nil
}

func (s *ListingService) DeleteVehicle(ctx context.Context, userID uuid.UUID, id int64) error {
	v, err := s.GetVehicle(ctx, id)
	if err != nil {
		return err
	}
	if v.Creator != userID {
		return ErrNotListingOwner
	}
	if err := s.repo.DeleteVehicle(ctx, id); err != nil {
		return fmt.Errorf("deleting vehicle: %w", err)
	}
	s.cleanup(ctx, domain.KindVehicle, id, v.ImageCount)
	return nil
}

// --- Parts ---

func (s *ListingService) CreatePart(ctx context.Context, userID uuid.UUID, p *domain.Part) ([]UploadTarget, error) {
	p.ImageCount = clampImages(p.ImageCount)
	if err := s.checkImages(p.ImageCount); err != nil {
		return nil, err
	}
	p.OwnerID = userID
	if err := s.repo.CreatePart(ctx, p); err != nil {
		return nil, fmt.Errorf("creating part: %w", err)
	}
	targets, err := s.uploadTargets(ctx, domain.KindPart, p.ID, p.ImageCount)
	if err != nil {
		if derr := s.repo.DeletePart(ctx, p.ID); derr != nil {
			log.Error().Err(derr).Int64("id", p.ID).Msg("rollback part after presign failure")
		}
		return nil, err
	}
	return targets, nil
}

func (s *ListingService) GetPart(ctx context.Context, id int64) (*domain.Part, error) {
	p, err := s.repo.GetPart(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrListingNotFound
	}
	return p, nil
}

func (s *ListingService) ListParts(ctx context.Context, f domain.PartFilter) ([]domain.Part, error) {
	out, err := s.repo.ListParts(ctx, f)
	if out == nil && err == nil {
		out = []domain.Part{}
	}
	return out, err
}

// SimilarParts returns other listings of the same part: equal name and
// number, any vehicle.
func (s *ListingService) SimilarParts(ctx context.Context, id int64) ([]domain.Part, error) {
	p, err := s.GetPart(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.ListParts(ctx, domain.PartFilter{
		Name:      p.Name,
		Number:    p.Number,
		Exact:     true,
		ExcludeID: &p.ID,
	})
}

func (s *ListingService) UpdatePart(ctx context.Context, userID uuid.UUID, id int64, in *domain.Part) (*domain.Part, error) {
	p, err := s.GetPart(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != userID {
		return nil, ErrNotListingOwner
	}
	in.ID, in.OwnerID, in.CreatedAt, in.ImageCount = p.ID, p.OwnerID, p.CreatedAt, p.ImageCount
	if err := s.repo.UpdatePart(ctx, in); err != nil {
		return nil, fmt.Errorf("updating part: %w", err)
	}
	return in, nil
}

func (s *ListingService) DeletePart(ctx context.Context, userID uuid.UUID, id int64) error {
	p, err := s.GetPart(ctx, id)
	if err != nil {
		return err
	}
	if p.OwnerID != userID {
		return ErrNotListingOwner
	}
	if err := s.repo.DeletePart(ctx, id); err != nil {
		return fmt.Errorf("deleting part: %w", err)
	}
	s.cleanup(ctx, domain.KindPart, id, p.ImageCount)
	return nil
}

// --- Wheels ---

func (s *ListingService) CreateWheel(ctx context.Context, userID uuid.UUID, w *domain.Wheel) ([]UploadTarget, error) {
	w.ImageCount = clampImages(w.ImageCount)
	if err := s.checkImages(w.ImageCount); err != nil {
		return nil, err
	}
	w.OwnerID = userID
	if err := s.repo.CreateWheel(ctx, w); err != nil {
		return nil, fmt.Errorf("creating wheel: %w", err)
	}
	targets, err := s.uploadTargets(ctx, domain.KindWheel, w.ID, w.ImageCount)
	if err != nil {
		if derr := s.repo.DeleteWheel(ctx, w.ID); derr != nil {
			log.Error().Err(derr).Int64("id", w.ID).Msg("rollback wheel after presign failure")
		}
		return nil, err
	}
	return targets, nil
}

func (s *ListingService) GetWheel(ctx context.Context, id int64) (*domain.Wheel, error) {
	w, err := s.repo.GetWheel(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrListingNotFound
	}
	return w, nil
}

func (s *ListingService) ListWheels(ctx context.Context, f domain.WheelFilter) ([]domain.Wheel, error) {
	out, err := s.repo.ListWheels(ctx, f)
	if out == nil && err == nil {
		out = []domain.Wheel{}
	}
	return out, err
}

// SimilarWheels returns other wheels with the same rim and tire spec.
func (s *ListingService) SimilarWheels(ctx context.Context, id int64) ([]domain.Wheel, error) {
	w, err := s.GetWheel(ctx, id)
	if err != nil {
		return nil, err
	}
	width, profile, size := w.TireWidth, w.TireProfile, w.TireSize
	return s.ListWheels(ctx, domain.WheelFilter{
		RimBoltPattern: w.RimBoltPattern,
		RimSize:        w.RimSize,
		TireWidth:      &width,
		TireProfile:    &profile,
		TireSize:       &size,
		ExcludeID:      &w.ID,
	})
}

func (s *ListingService) UpdateWheel(ctx context.Context, userID uuid.UUID, id int64, in *domain.Wheel) (*domain.Wheel, error) {
	w, err := s.GetWheel(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.OwnerID != userID {
		return nil, ErrNotListingOwner
	}
	in.ID, in.OwnerID, in.CreatedAt, in.ImageCount = w.ID, w.OwnerID, w.CreatedAt, w.ImageCount
	if err := s.repo.UpdateWheel(ctx, in); err != nil {
		return nil, fmt.Errorf("updating wheel: %w", err)
	}
	return in, nil
}

func (s *ListingService) DeleteWheel(ctx context.Context, userID uuid.UUID, id int64) error {
	w, err := s.GetWheel(ctx, id)
	if err != nil {
		return err
	}
	if w.OwnerID != userID {
		return ErrNotListingOwner
	}
	if err := s.repo.DeleteWheel(ctx, id); err != nil {
		return fmt.Errorf("deleting wheel: %w", err)
	}
	s.cleanup(ctx, domain.KindWheel, id, w.ImageCount)
	return nil
}

// AbandonImages undoes a listing whose image upload failed after the record
// was stored: the record is removed and any objects that did reach the bucket
// are queued for deletion.
func (s *ListingService) AbandonImages(ctx context.Context, userID uuid.UUID, kind string, id int64) error {
	var err error
	switch kind {
	case domain.KindVehicle:
		err = s.DeleteVehicle(ctx, userID, id)
	case domain.KindPart:
		err = s.DeletePart(ctx, userID, id)
	case domain.KindWheel:
		err = s.DeleteWheel(ctx, userID, id)
	default:
		return ErrUnknownKind
	}
	if err != nil {
		return err
	}
	log.Info().Str("kind", kind).Int64("id", id).Msg("listing abandoned after failed upload")
	return nil
}

func (s *ListingService) checkImages(count int) error {
	if count > 0 && s.images == nil {
		return ErrStorageDisabled
	}
	return nil
}

func (s *ListingService) uploadTargets(ctx context.Context, kind string, id int64, count int) ([]UploadTarget, error) {
	keys := storage.ListingImageKeys(kind, id, count)
	targets := make([]UploadTarget, 0, len(keys))
	for _, key := range keys {
		url, err := s.images.PresignUpload(ctx, key, DefaultImageContent)
		if err != nil {
			return nil, err
		}
		targets = append(targets, UploadTarget{Key: key, URL: url})
	}
	return targets, nil
}

// cleanup is best effort; a failure leaves orphaned objects behind but the
// listing is already gone.
func (s *ListingService) cleanup(ctx context.Context, kind string, id int64, count int) {
	keys := storage.ListingImageKeys(kind, id, count)
	if len(keys) == 0 || s.cleaner == nil {
		return
	}
	if err := s.cleaner.EnqueueImageCleanup(ctx, keys); err != nil {
		log.Error().Err(err).Strs("keys", keys).Msg("enqueue image cleanup")
	}
}

func clampImages(n int) int {
	switch {
	case n < 0:
		return 0
	case n > domain.MaxImages:
		return domain.MaxImages
	}
	return n
}

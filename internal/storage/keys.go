package storage

import (
	"fmt"

	"github.com/vedran77/partsmarket/internal/domain"
)

// ImageKey names image slot index of a multi-image entity.
func ImageKey(entity string, id int64, index int) string {
	return fmt.Sprintf("%s-%d-%d", entity, id, index)
}

// SingleImageKey names the only image of a single-image entity.
func SingleImageKey(entity string, id int64) string {
	return fmt.Sprintf("%s-%d", entity, id)
}

// ListingImageKeys returns the object keys for the first count image slots of
// a listing. Vehicles carry a single image, parts and wheels up to
// domain.MaxImages.
func ListingImageKeys(kind string, id int64, count int) []string {
	if count <= 0 {
		return nil
	}
	if kind == domain.KindVehicle {
		return []string{SingleImageKey(kind, id)}
	}
	if count > domain.MaxImages {
		count = domain.MaxImages
	}
	keys := make([]string, count)
	for i := range keys {
		keys[i] = ImageKey(kind, id, i)
	}
	return keys
}

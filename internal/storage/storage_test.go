package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vedran77/partsmarket/internal/domain"
)

func TestImageKeys(t *testing.T) {
	assert.Equal(t, "part-12-0", ImageKey(domain.KindPart, 12, 0))
	assert.Equal(t, "vehicle-7", SingleImageKey(domain.KindVehicle, 7))
}

func TestListingImageKeys(t *testing.T) {
	assert.Nil(t, ListingImageKeys(domain.KindPart, 1, 0))
	assert.Equal(t, []string{"vehicle-3"}, ListingImageKeys(domain.KindVehicle, 3, 4))
	assert.Equal(t, []string{"wheel-9-0", "wheel-9-1"}, ListingImageKeys(domain.KindWheel, 9, 2))
	assert.Len(t, ListingImageKeys(domain.KindPart, 1, 10), domain.MaxImages)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/png", ContentTypeFor("part-1-0.png"))
	assert.Equal(t, "image/jpeg", ContentTypeFor("vehicle-1.JPG"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("vehicle-1"))
}

package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vedran77/partsmarket/internal/domain"
	"github.com/vedran77/partsmarket/internal/repository"
)

// Placeholders used when a participant's record cannot be read.
const (
	SelfPlaceholder    = "You"
	UnknownPlaceholder = "Unknown User"
)

// NameCache stores resolved display labels.
type NameCache interface {
	Get(ctx context.Context, userID uuid.UUID) (string, bool)
	Set(ctx context.Context, userID uuid.UUID, name string)
}

// Namer turns user ids into human-readable labels.
type Namer struct {
	userRepo repository.UserRepository
	cache    NameCache
	timeout  time.Duration
}

func NewNamer(userRepo repository.UserRepository) *Namer {
	return &Namer{userRepo: userRepo, timeout: 5 * time.Second}
}

// SetCache sets the label cache (optional dependency).
func (n *Namer) SetCache(c NameCache) {
	n.cache = c
}

// NameFor returns the label for userID as seen by viewerID. It never fails:
// when the user cannot be loaded it falls back to SelfPlaceholder for the
// viewer and UnknownPlaceholder for anyone else.
func (n *Namer) NameFor(ctx context.Context, viewerID, userID uuid.UUID) string {
	if n.cache != nil {
		if name, ok := n.cache.Get(ctx, userID); ok {
			return name
		}
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	user, err := n.userRepo.GetByID(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("namer: loading user")
	}
	if err != nil || user == nil {
		return placeholderFor(viewerID, userID)
	}

	name := Label(user)
	if name == "" {
		return placeholderFor(viewerID, userID)
	}
	if n.cache != nil {
		n.cache.Set(ctx, userID, name)
	}
	return name
}

// Label applies the fallback chain: display name, then the local part of the
// email. It returns "" when neither is usable.
func Label(u *domain.User) string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return strings.TrimSpace(local)
}

func placeholderFor(viewerID, userID uuid.UUID) string {
	if viewerID == userID {
		return SelfPlaceholder
	}
	return UnknownPlaceholder
}

// Forget drops a cached label, if the cache supports it.
func (n *Namer) Forget(ctx context.Context, userID uuid.UUID) {
	if f, ok := n.cache.(interface {
		Forget(ctx context.Context, userID uuid.UUID)
	}); ok {
		f.Forget(ctx, userID)
	}
}

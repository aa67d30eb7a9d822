package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vedran77/partsmarket/internal/domain"
	"github.com/vedran77/partsmarket/internal/repository"
	"golang.org/x/sync/singleflight"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("you are not a participant of this conversation")
	ErrCannotMessageSelf    = errors.New("cannot start a conversation with yourself")
	ErrUserNotFound         = errors.New("user not found")
)

// resolveTimeout bounds the shared find-or-create. It runs detached from any
// single caller so one client hanging up does not fail the others.
const resolveTimeout = 10 * time.Second

type ConversationService struct {
	convRepo repository.ConversationRepository
	userRepo repository.UserRepository
	namer    *Namer

	// Collapses concurrent resolves of the same pair inside this process.
	// Across processes the unique pair key does the same job.
	resolving singleflight.Group
}

func NewConversationService(convRepo repository.ConversationRepository, userRepo repository.UserRepository, namer *Namer) *ConversationService {
	return &ConversationService{
		convRepo: convRepo,
		userRepo: userRepo,
		namer:    namer,
	}
}

// Resolve finds the conversation between userID and otherUserID, creating it
// when none exists. Argument order does not matter.
func (s *ConversationService) Resolve(ctx context.Context, userID, otherUserID uuid.UUID) (*domain.Conversation, error) {
	if userID == otherUserID {
		return nil, ErrCannotMessageSelf
	}

	other, err := s.userRepo.GetByID(ctx, otherUserID)
	if err != nil {
		return nil, err
	}
	if other == nil {
		return nil, ErrUserNotFound
	}

	one, two := domain.NormalizePair(userID, otherUserID)
	key := one.String() + ":" + two.String()

	v, err, _ := s.resolving.Do(key, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()

		conv, created, err := s.convRepo.FindOrCreate(sctx, &domain.Conversation{
			ID:        uuid.New(),
			UserOne:   one,
			UserTwo:   two,
			CreatedAt: time.Now(),
		})
		if err != nil {
			return nil, err
		}
		if created {
			log.Info().Str("conversation_id", conv.ID.String()).Msg("conversation created")
		}
		return conv, nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolving conversation: %w", err)
	}

	// The shared result may be handed to both participants at once.
	conv := *v.(*domain.Conversation)
	s.fillOther(ctx, userID, &conv)
	return &conv, nil
}

// Find returns the existing conversation between two users, or nil, nil.
func (s *ConversationService) Find(ctx context.Context, userID, otherUserID uuid.UUID) (*domain.Conversation, error) {
	if userID == otherUserID {
		return nil, ErrCannotMessageSelf
	}
	one, two := domain.NormalizePair(userID, otherUserID)
	conv, err := s.convRepo.GetByUsers(ctx, one, two)
	if err != nil || conv == nil {
		return nil, err
	}
	s.fillOther(ctx, userID, conv)
	return conv, nil
}

// Get returns a conversation the user participates in.
func (s *ConversationService) Get(ctx context.Context, userID, conversationID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return conv, nil
}

// List returns the user's conversations, newest first, each labelled with the
// other participant's name. A non-empty search keeps only conversations
// whose label contains it, ignoring case.
func (s *ConversationService) List(ctx context.Context, userID uuid.UUID, search string) ([]domain.Conversation, error) {
	convs, err := s.convRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	search = strings.ToLower(strings.TrimSpace(search))
	out := make([]domain.Conversation, 0, len(convs))
	for i := range convs {
		conv := convs[i]
		s.fillOther(ctx, userID, &conv)
		if search != "" && !strings.Contains(strings.ToLower(conv.OtherUserName), search) {
			continue
		}
		out = append(out, conv)
	}
	return out, nil
}

func (s *ConversationService) fillOther(ctx context.Context, userID uuid.UUID, conv *domain.Conversation) {
	conv.OtherUserID = conv.Other(userID)
	conv.OtherUserName = s.namer.NameFor(ctx, userID, conv.OtherUserID)
}

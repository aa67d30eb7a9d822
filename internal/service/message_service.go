package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/vedran77/partsmarket/internal/domain"
	"github.com/vedran77/partsmarket/internal/repository"
)

var ErrEmptyMessage = errors.New("message content is empty")

// Notifier broadcasts real-time events to connected clients.
type Notifier interface {
	NotifyNewMessage(msg *domain.Message)
}

type MessageService struct {
	messageRepo   repository.MessageRepository
	conversations *ConversationService
	notifier      Notifier
}

func NewMessageService(messageRepo repository.MessageRepository, conversations *ConversationService) *MessageService {
	return &MessageService{
		messageRepo:   messageRepo,
		conversations: conversations,
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *MessageService) SetNotifier(n Notifier) {
	s.notifier = n
}

// History returns every message of the conversation in display order.
func (s *MessageService) History(ctx context.Context, userID, conversationID uuid.UUID) ([]domain.Message, error) {
	if _, err := s.conversations.Get(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	messages, err := s.messageRepo.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}

// Send stores a message in an existing conversation and notifies its
// subscribers.
func (s *MessageService) Send(ctx context.Context, userID, conversationID uuid.UUID, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	if _, err := s.conversations.Get(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       userID,
		Content:        content,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyNewMessage(msg)
	}

	return msg, nil
}

// SendTo resolves (or creates) the conversation with recipientID and sends
// the message there.
func (s *MessageService) SendTo(ctx context.Context, userID, recipientID uuid.UUID, content string) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}

	conv, err := s.conversations.Resolve(ctx, userID, recipientID)
	if err != nil {
		return nil, err
	}
	return s.Send(ctx, userID, conv.ID, content)
}

package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/vedran77/partsmarket/internal/domain"
)

// ErrDuplicate is returned when an insert hits a unique constraint.
var ErrDuplicate = errors.New("duplicate key")

// Getters return nil, nil when the row does not exist.

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

type ConversationRepository interface {
	// FindOrCreate returns the conversation for the normalized pair
	// (userOne < userTwo), inserting it when absent. created is true only for
	// the call that performed the insert.
	FindOrCreate(ctx context.Context, conv *domain.Conversation) (result *domain.Conversation, created bool, err error)
	GetByUsers(ctx context.Context, userOne, userTwo uuid.UUID) (*domain.Conversation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error)
}

type MessageRepository interface {
	// Create stores msg and fills in Seq and CreatedAt from the database.
	Create(ctx context.Context, msg *domain.Message) error
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error)
}

type ListingRepository interface {
	CreateVehicle(ctx context.Context, v *domain.Vehicle) error
	GetVehicle(ctx context.Context, id int64) (*domain.Vehicle, error)
	ListVehicles(ctx context.Context, f domain.VehicleFilter) ([]domain.Vehicle, error)
	UpdateVehicle(ctx context.Context, v *domain.Vehicle) error
	DeleteVehicle(ctx context.Context, id int64) error

	CreatePart(ctx context.Context, p *domain.Part) error
	GetPart(ctx context.Context, id int64) (*domain.Part, error)
	ListParts(ctx context.Context, f domain.PartFilter) ([]domain.Part, error)
	UpdatePart(ctx context.Context, p *domain.Part) error
	DeletePart(ctx context.Context, id int64) error

	CreateWheel(ctx context.Context, w *domain.Wheel) error
	GetWheel(ctx context.Context, id int64) (*domain.Wheel, error)
	ListWheels(ctx context.Context, f domain.WheelFilter) ([]domain.Wheel, error)
	UpdateWheel(ctx context.Context, w *domain.Wheel) error
	DeleteWheel(ctx context.Context, id int64) error
}

package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/partsmarket/internal/domain"
)

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

// FindOrCreate relies on the (user_one, user_two) unique key: concurrent
// callers for the same pair all end up reading the single stored row.
func (r *ConversationRepo) FindOrCreate(ctx context.Context, conv *domain.Conversation) (*domain.Conversation, bool, error) {
	insert := `
		INSERT INTO conversations (id, user_one, user_two, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_one, user_two) DO NOTHING`
	tag, err := r.pool.Exec(ctx, insert, conv.ID, conv.UserOne, conv.UserTwo, conv.CreatedAt)
	if err != nil {
		return nil, false, err
	}

	stored, err := r.GetByUsers(ctx, conv.UserOne, conv.UserTwo)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, errors.New("conversation vanished after insert")
	}
	return stored, tag.RowsAffected() == 1, nil
}

func (r *ConversationRepo) GetByUsers(ctx context.Context, userOne, userTwo uuid.UUID) (*domain.Conversation, error) {
	query := `
		SELECT id, user_one, user_two, created_at
		FROM conversations
		WHERE user_one = $1 AND user_two = $2`
	return r.scanOne(ctx, query, userOne, userTwo)
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	query := `
		SELECT id, user_one, user_two, created_at
		FROM conversations
		WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

func (r *ConversationRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	query := `
		SELECT id, user_one, user_two, created_at,
			CASE WHEN user_one = $1 THEN user_two ELSE user_one END AS other_user_id
		FROM conversations
		WHERE user_one = $1 OR user_two = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		if err := rows.Scan(
			&conv.ID, &conv.UserOne, &conv.UserTwo, &conv.CreatedAt, &conv.OtherUserID,
		); err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

func (r *ConversationRepo) scanOne(ctx context.Context, query string, args ...any) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&conv.ID, &conv.UserOne, &conv.UserTwo, &conv.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

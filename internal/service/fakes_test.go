package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/partsmarket/internal/domain"
	"github.com/vedran77/partsmarket/internal/repository"
)

type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
	err   error
}

func newMemUsers(users ...*domain.User) *memUsers {
	m := &memUsers{users: map[uuid.UUID]*domain.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUsers) Update(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

type memConversations struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*domain.Conversation
	inserts int

	// When hold is set FindOrCreate signals started and waits for hold to
	// close or its context to end.
	hold    chan struct{}
	started chan struct{}
}

func newMemConversations() *memConversations {
	return &memConversations{byID: map[uuid.UUID]*domain.Conversation{}}
}

func (m *memConversations) FindOrCreate(ctx context.Context, conv *domain.Conversation) (*domain.Conversation, bool, error) {
	if m.hold != nil {
		select {
		case m.started <- struct{}{}:
		default:
		}
		select {
		case <-m.hold:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv.UserOne.String() >= conv.UserTwo.String() {
		return nil, false, errors.New("pair not normalized")
	}
	for _, c := range m.byID {
		if c.UserOne == conv.UserOne && c.UserTwo == conv.UserTwo {
			cp := *c
			return &cp, false, nil
		}
	}
	m.inserts++
	cp := *conv
	m.byID[conv.ID] = &cp
	out := cp
	return &out, true, nil
}

func (m *memConversations) GetByUsers(_ context.Context, one, two uuid.UUID) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byID {
		if c.UserOne == one && c.UserTwo == two {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memConversations) GetByID(_ context.Context, id uuid.UUID) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memConversations) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Conversation
	for _, c := range m.byID {
		if c.HasParticipant(userID) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type memMessages struct {
	mu   sync.Mutex
	seq  int64
	msgs []domain.Message
}

func (m *memMessages) Create(_ context.Context, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	msg.Seq = m.seq
	msg.CreatedAt = time.Now()
	m.msgs = append(m.msgs, *msg)
	return nil
}

func (m *memMessages) ListByConversation(_ context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Message
	for _, msg := range m.msgs {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	return out, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []*domain.Message
}

func (n *recordingNotifier) NotifyNewMessage(msg *domain.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

type memCache struct {
	mu      sync.Mutex
	names   map[uuid.UUID]string
	forgets int
}

func newMemCache() *memCache {
	return &memCache{names: map[uuid.UUID]string{}}
}

func (c *memCache) Get(_ context.Context, id uuid.UUID) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.names[id]
	return n, ok
}

func (c *memCache) Set(_ context.Context, id uuid.UUID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[id] = name
}

func (c *memCache) Forget(_ context.Context, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forgets++
	delete(c.names, id)
}

func newUser(name, email string) *domain.User {
	return &domain.User{ID: uuid.New(), Name: name, Email: email, AccountType: domain.AccountTypePrivate}
}

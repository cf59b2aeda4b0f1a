package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/havenapp/whisper-server/internal/middleware"
	"github.com/havenapp/whisper-server/internal/model"
	"github.com/havenapp/whisper-server/internal/sse"
)

// Mock invitation repository

type mockInvitationRepo struct {
	mock.Mock
}

func (m *mockInvitationRepo) FindByChannelID(ctx context.Context, channelID string) (*model.Invitation, error) {
	args := m.Called(ctx, channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Invitation), args.Error(1)
}

func (m *mockInvitationRepo) FindByUserID(ctx context.Context, userID string) ([]model.Invitation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Invitation), args.Error(1)
}

func (m *mockInvitationRepo) Create(ctx context.Context, params model.CreateInvitationParams) (*model.Invitation, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Invitation), args.Error(1)
}

func (m *mockInvitationRepo) UpdateStatus(ctx context.Context, channelID string, status model.InvitationStatus) (*model.Invitation, error) {
	args := m.Called(ctx, channelID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Invitation), args.Error(1)
}

// Mock message repository

type mockMessageRepo struct {
	mock.Mock
}

func (m *mockMessageRepo) FindByID(ctx context.Context, id string) (*model.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *mockMessageRepo) FindByChannelID(ctx context.Context, channelID string, limit, offset int) ([]model.Message, error) {
	args := m.Called(ctx, channelID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

func (m *mockMessageRepo) CountByChannelID(ctx context.Context, channelID string) (int, error) {
	args := m.Called(ctx, channelID)
	return args.Int(0), args.Error(1)
}

func (m *mockMessageRepo) Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *mockMessageRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Test doubles shared across handler tests

type emptyDirectory struct{}

func (emptyDirectory) Lookup(ctx context.Context, userIDs []string) map[string]model.Profile {
	return map[string]model.Profile{}
}

type noopCache struct{}

func (noopCache) GetViews(ctx context.Context, userID string) (*model.InvitationViews, bool) {
	return nil, false
}
func (noopCache) SetViews(ctx context.Context, userID string, views *model.InvitationViews) {}
func (noopCache) Invalidate(ctx context.Context, userIDs ...string)                         {}

type noopPublisher struct{}

func (noopPublisher) Publish(ctx context.Context, channelID string, event sse.Event) error {
	return nil
}

// fakeBroker hands out a single client and records teardown. Guarded,
// because the handler subscribes from its own goroutine in SSE tests.
type fakeBroker struct {
	mu           sync.Mutex
	client       *sse.Client
	unsubscribed bool
}

func (b *fakeBroker) Subscribe(channelID string) *sse.Client {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == nil {
		b.client = &sse.Client{
			ChannelID: channelID,
			Events:    make(chan sse.Event, 10),
			Done:      make(chan struct{}),
		}
	}
	return b.client
}

func (b *fakeBroker) Unsubscribe(client *sse.Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unsubscribed = true
}

func (b *fakeBroker) getClient() *sse.Client {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.client
}

func (b *fakeBroker) wasUnsubscribed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unsubscribed
}

// withSession attaches an authenticated session to the request, the way the
// auth middleware would.
func withSession(r *http.Request, userID string) *http.Request {
	session := &model.Session{
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	ctx := context.WithValue(r.Context(), middleware.SessionContextKey, session)
	return r.WithContext(ctx)
}

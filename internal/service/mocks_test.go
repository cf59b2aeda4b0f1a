package service

import (
	"context"

	"github.com/stretchr/testify/mock"

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

// Mock profile directory

type mockProfileDirectory struct {
	mock.Mock
}

func (m *mockProfileDirectory) Lookup(ctx context.Context, userIDs []string) map[string]model.Profile {
	args := m.Called(ctx, userIDs)
	if args.Get(0) == nil {
		return map[string]model.Profile{}
	}
	return args.Get(0).(map[string]model.Profile)
}

// Mock list cache

type mockListCache struct {
	mock.Mock
}

func (m *mockListCache) GetViews(ctx context.Context, userID string) (*model.InvitationViews, bool) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*model.InvitationViews), args.Bool(1)
}

func (m *mockListCache) SetViews(ctx context.Context, userID string, views *model.InvitationViews) {
	m.Called(ctx, userID, views)
}

func (m *mockListCache) Invalidate(ctx context.Context, userIDs ...string) {
	m.Called(ctx, userIDs)
}

// passthroughCache is a no-op cache for tests that do not exercise caching.
type passthroughCache struct{}

func (passthroughCache) GetViews(ctx context.Context, userID string) (*model.InvitationViews, bool) {
	return nil, false
}
func (passthroughCache) SetViews(ctx context.Context, userID string, views *model.InvitationViews) {}
func (passthroughCache) Invalidate(ctx context.Context, userIDs ...string)                         {}

// Mock fan-out publisher

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, channelID string, event sse.Event) error {
	args := m.Called(ctx, channelID, event)
	return args.Error(0)
}

// emptyDirectory resolves nothing; list enrichment falls back to snapshots.
type emptyDirectory struct{}

func (emptyDirectory) Lookup(ctx context.Context, userIDs []string) map[string]model.Profile {
	return map[string]model.Profile{}
}

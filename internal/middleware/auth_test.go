package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/havenapp/whisper-server/internal/model"
	"github.com/havenapp/whisper-server/internal/util"
)

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*model.Session, error) {
	args := m.Called(ctx, userID, tokenHash, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func okHandler(t *testing.T, gotUserID *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotUserID = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	t.Run("rejects missing token", func(t *testing.T) {
		repo := new(mockSessionRepo)
		mw := NewAuthMiddleware(repo)

		var userID string
		req := httptest.NewRequest(http.MethodGet, "/v1/invitations", nil)
		rec := httptest.NewRecorder()

		mw.Handler(okHandler(t, &userID)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		repo.AssertNotCalled(t, "FindByTokenHash", mock.Anything, mock.Anything)
	})

	t.Run("rejects unknown token", func(t *testing.T) {
		repo := new(mockSessionRepo)
		mw := NewAuthMiddleware(repo)

		repo.On("FindByTokenHash", mock.Anything, util.HashToken("bad")).Return(nil, nil)

		var userID string
		req := httptest.NewRequest(http.MethodGet, "/v1/invitations", nil)
		req.Header.Set("Authorization", "Bearer bad")
		rec := httptest.NewRecorder()

		mw.Handler(okHandler(t, &userID)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects expired session", func(t *testing.T) {
		repo := new(mockSessionRepo)
		mw := NewAuthMiddleware(repo)

		session := &model.Session{
			UserID:    "u1",
			ExpiresAt: time.Now().Add(-time.Minute),
		}
		repo.On("FindByTokenHash", mock.Anything, util.HashToken("stale")).Return(session, nil)

		var userID string
		req := httptest.NewRequest(http.MethodGet, "/v1/invitations", nil)
		req.Header.Set("Authorization", "Bearer stale")
		rec := httptest.NewRecorder()

		mw.Handler(okHandler(t, &userID)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("accepts bearer token and exposes user id", func(t *testing.T) {
		repo := new(mockSessionRepo)
		mw := NewAuthMiddleware(repo)

		session := &model.Session{
			UserID:    "u1",
			TokenHash: util.HashToken("good"),
			ExpiresAt: time.Now().Add(time.Hour),
		}
		repo.On("FindByTokenHash", mock.Anything, util.HashToken("good")).Return(session, nil)

		var userID string
		req := httptest.NewRequest(http.MethodGet, "/v1/invitations", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()

		mw.Handler(okHandler(t, &userID)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", userID)
	})

	t.Run("accepts token query parameter", func(t *testing.T) {
		repo := new(mockSessionRepo)
		mw := NewAuthMiddleware(repo)

		session := &model.Session{
			UserID:    "u1",
			TokenHash: util.HashToken("good"),
			ExpiresAt: time.Now().Add(time.Hour),
		}
		repo.On("FindByTokenHash", mock.Anything, util.HashToken("good")).Return(session, nil)

		var userID string
		req := httptest.NewRequest(http.MethodGet, "/v1/channels/u1_u2/events?token=good", nil)
		rec := httptest.NewRecorder()

		mw.Handler(okHandler(t, &userID)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", userID)
	})
}

package api

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pr-poehali-dev/rusbakery-email-system/internal/models"
	"github.com/pr-poehali-dev/rusbakery-email-system/internal/repository"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testJWTSecret = "test-secret"

// fakeUserRepo implements repository.UserRepository with per-method function
// fields. Unset fields return zero values, so each test only wires what it
// exercises.
type fakeUserRepo struct {
	listFn              func(ctx context.Context) ([]models.User, error)
	getByIDFn           func(ctx context.Context, id int64) (*models.User, error)
	getByEmailFn        func(ctx context.Context, email string) (*models.User, error)
	createFn            func(ctx context.Context, email, passwordHash, firstName, lastName string) (*models.User, error)
	updateDisplayNameFn func(ctx context.Context, id int64, displayName string) error
	deleteFn            func(ctx context.Context, id int64) error
	setOnlineFn         func(ctx context.Context, id int64) (*models.User, error)
	setOfflineFn        func(ctx context.Context, id int64) error
	listOnlineIDsFn     func(ctx context.Context) ([]int64, error)
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func (f *fakeUserRepo) List(ctx context.Context) ([]models.User, error) {
	if f.listFn == nil {
		return []models.User{}, nil
	}
	return f.listFn(ctx)
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if f.getByIDFn == nil {
		return nil, nil
	}
	return f.getByIDFn(ctx, id)
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.getByEmailFn == nil {
		return nil, nil
	}
	return f.getByEmailFn(ctx, email)
}

func (f *fakeUserRepo) Create(ctx context.Context, email, passwordHash, firstName, lastName string) (*models.User, error) {
	if f.createFn == nil {
		return nil, nil
	}
	return f.createFn(ctx, email, passwordHash, firstName, lastName)
}

func (f *fakeUserRepo) UpdateDisplayName(ctx context.Context, id int64, displayName string) error {
	if f.updateDisplayNameFn == nil {
		return nil
	}
	return f.updateDisplayNameFn(ctx, id, displayName)
}

func (f *fakeUserRepo) Delete(ctx context.Context, id int64) error {
	if f.deleteFn == nil {
		return nil
	}
	return f.deleteFn(ctx, id)
}

func (f *fakeUserRepo) SetOnline(ctx context.Context, id int64) (*models.User, error) {
	if f.setOnlineFn == nil {
		return nil, nil
	}
	return f.setOnlineFn(ctx, id)
}

func (f *fakeUserRepo) SetOffline(ctx context.Context, id int64) error {
	if f.setOfflineFn == nil {
		return nil
	}
	return f.setOfflineFn(ctx, id)
}

func (f *fakeUserRepo) ListOnlineIDs(ctx context.Context) ([]int64, error) {
	if f.listOnlineIDsFn == nil {
		return []int64{}, nil
	}
	return f.listOnlineIDsFn(ctx)
}

type fakeMessageRepo struct {
	sendFn        func(ctx context.Context, fromUserID int64, toUserIDs []int64, content string, isBroadcast bool) (*models.Message, error)
	listForUserFn func(ctx context.Context, userID int64) ([]models.ConversationRow, error)
}

var _ repository.MessageRepository = (*fakeMessageRepo)(nil)

func (f *fakeMessageRepo) Send(ctx context.Context, fromUserID int64, toUserIDs []int64, content string, isBroadcast bool) (*models.Message, error) {
	if f.sendFn == nil {
		return &models.Message{}, nil
	}
	return f.sendFn(ctx, fromUserID, toUserIDs, content, isBroadcast)
}

func (f *fakeMessageRepo) ListForUser(ctx context.Context, userID int64) ([]models.ConversationRow, error) {
	if f.listForUserFn == nil {
		return []models.ConversationRow{}, nil
	}
	return f.listForUserFn(ctx, userID)
}

// fakePresence records which ids were marked and cleared.
type fakePresence struct {
	marked  []int64
	cleared []int64
}

func (f *fakePresence) MarkActive(ctx context.Context, userID int64) error {
	f.marked = append(f.marked, userID)
	return nil
}

func (f *fakePresence) Clear(ctx context.Context, userID int64) error {
	f.cleared = append(f.cleared, userID)
	return nil
}

// newTestRouter builds the shipping router over fakes. Pass nil for repos a
// test doesn't touch.
func newTestRouter(t *testing.T, users repository.UserRepository, messages repository.MessageRepository, pres PresenceTracker) *gin.Engine {
	t.Helper()

	if users == nil {
		users = &fakeUserRepo{}
	}
	if messages == nil {
		messages = &fakeMessageRepo{}
	}

	logger := zap.NewNop()
	authHandler := NewAuthHandler(users, pres, testJWTSecret, logger)
	userHandler := NewUserHandler(users, logger)
	messageHandler := NewMessageHandler(messages, logger)

	return NewRouter(authHandler, userHandler, messageHandler, testJWTSecret, logger)
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req = httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

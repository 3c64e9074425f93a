package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordan1monts/COP3060FINAL/internal/model"
	"github.com/jordan1monts/COP3060FINAL/internal/pkg/jwtutil"
)

type memoryUserStore struct {
	nextID uint
	users  map[string]*model.User
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{users: make(map[string]*model.User)}
}

func (s *memoryUserStore) Create(user *model.User) error {
	s.nextID++
	user.ID = s.nextID
	s.users[user.Username] = user
	return nil
}

func (s *memoryUserStore) GetByUsername(username string) (*model.User, error) {
	return s.users[username], nil
}

func (s *memoryUserStore) GetByID(id uint) (*model.User, error) {
	for _, user := range s.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, nil
}

const testSecret = "test-secret"

func newTestAuthService() *AuthService {
	return NewAuthService(newMemoryUserStore(), testSecret, time.Hour)
}

func TestRegister_IssuesUsableToken(t *testing.T) {
	svc := newTestAuthService()

	result, err := svc.Register(Credentials{Username: "alice", Password: "hunter2"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)

	claims, err := jwtutil.ParseToken(testSecret, result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestRegister_RejectsShortPassword(t *testing.T) {
	svc := newTestAuthService()

	_, err := svc.Register(Credentials{Username: "alice", Password: "ab"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRegister_RejectsDuplicateUsername(t *testing.T) {
	svc := newTestAuthService()

	_, err := svc.Register(Credentials{Username: "alice", Password: "hunter2"})
	require.NoError(t, err)

	_, err = svc.Register(Credentials{Username: "alice", Password: "other-pass"})
	assert.ErrorIs(t, err, ErrUsernameExists)
}

func TestLogin_VerifiesPassword(t *testing.T) {
	svc := newTestAuthService()

	_, err := svc.Register(Credentials{Username: "alice", Password: "hunter2"})
	require.NoError(t, err)

	result, err := svc.Login(Credentials{Username: "alice", Password: "hunter2"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)

	_, err = svc.Login(Credentials{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = svc.Login(Credentials{Username: "nobody", Password: "hunter2"})
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

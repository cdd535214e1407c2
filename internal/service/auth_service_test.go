package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/docutrail/dtrs-api/internal/models"
	appErrors "github.com/docutrail/dtrs-api/pkg/errors"
)

type stubAuthRepo struct {
	users         map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	revokedAll    []string
	lastLogin     map[string]time.Time
}

func newStubAuthRepo(users ...*models.User) *stubAuthRepo {
	s := &stubAuthRepo{
		users:         map[string]*models.User{},
		refreshTokens: map[string]*models.RefreshToken{},
		lastLogin:     map[string]time.Time{},
	}
	for _, user := range users {
		s.users[user.ID] = user
	}
	return s
}

func (s *stubAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (s *stubAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	s.lastLogin[id] = ts
	return nil
}

func (s *stubAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	s.revokedAll = append(s.revokedAll, userID)
	for _, token := range s.refreshTokens {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	return nil
}

func (s *stubAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	s.refreshTokens[token.Token] = token
	return nil
}

func (s *stubAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	stored, ok := s.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (s *stubAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range s.refreshTokens {
		if token.ID == id {
			token.Revoked = true
		}
	}
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *stubAuthRepo) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := newStubAuthRepo(&models.User{
		ID:           "user-1",
		Email:        "officer@example.com",
		PasswordHash: string(hash),
		FullName:     "Records Officer",
		Role:         models.RoleRecordsOfficer,
		DepartmentID: "dept-1",
		Active:       true,
	})
	svc := NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "dtrs-api",
		Audience:           []string{"dtrs-clients"},
	})
	return svc, repo
}

func TestAuthLoginIssuesTokenPair(t *testing.T) {
	svc, repo := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "officer@example.com",
		Password: "correct-password",
	})
	require.NoError(t, err)

	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, "user-1", resp.User.ID)
	require.Equal(t, "dept-1", resp.User.DepartmentID)
	require.Contains(t, repo.refreshTokens, resp.RefreshToken)
	require.Contains(t, repo.lastLogin, "user-1")
}

func TestAuthLoginRejectsWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "officer@example.com",
		Password: "wrong-password",
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthLoginRejectsInactiveAccount(t *testing.T) {
	svc, repo := newAuthFixture(t)
	repo.users["user-1"].Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "officer@example.com",
		Password: "correct-password",
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthValidateTokenCarriesDepartment(t *testing.T) {
	svc, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "officer@example.com",
		Password: "correct-password",
	})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "dept-1", claims.DepartmentID)
	require.Equal(t, models.RoleRecordsOfficer, claims.Role)
}

func TestAuthValidateTokenRejectsForgedSignature(t *testing.T) {
	svc, _ := newAuthFixture(t)
	other := NewAuthService(newStubAuthRepo(), nil, nil, AuthConfig{
		AccessTokenSecret: "different-secret",
		AccessTokenExpiry: 15 * time.Minute,
	})

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "officer@example.com",
		Password: "correct-password",
	})
	require.NoError(t, err)

	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthRefreshRotatesToken(t *testing.T) {
	svc, repo := newAuthFixture(t)

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "officer@example.com",
		Password: "correct-password",
	})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)

	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	require.True(t, repo.refreshTokens[login.RefreshToken].Revoked)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthLogoutRevokesToken(t *testing.T) {
	svc, repo := newAuthFixture(t)

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "officer@example.com",
		Password: "correct-password",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), login.RefreshToken, "user-1"))
	require.True(t, repo.refreshTokens[login.RefreshToken].Revoked)

	err = svc.Logout(context.Background(), login.RefreshToken, "user-2")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

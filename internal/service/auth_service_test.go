package service

import (
	"context"
	"testing"
	"time"

	"farmazia/internal/domain"
	"farmazia/internal/repository"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"golang.org/x/crypto/bcrypt"
)

// Mock repositories for testing
type mockUserRepository struct {
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	for _, user := range m.users {
		if user.ID == id {
			user.PasswordHash = passwordHash
			return nil
		}
	}
	return repository.ErrUserNotFound
}

func (m *mockUserRepository) Delete(ctx context.Context, id string) error {
	for email, user := range m.users {
		if user.ID == id {
			delete(m.users, email)
			return nil
		}
	}
	return repository.ErrUserNotFound
}

type mockRefreshTokenRepository struct {
	tokens map[string]*domain.RefreshToken
}

func newMockRefreshTokenRepository() *mockRefreshTokenRepository {
	return &mockRefreshTokenRepository{
		tokens: make(map[string]*domain.RefreshToken),
	}
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.tokens[token.Token] = token
	return nil
}

func (m *mockRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if refreshToken.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return refreshToken, nil
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return repository.ErrRefreshTokenNotFound
	}
	refreshToken.Revoked = true
	return nil
}

func (m *mockRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	for _, token := range m.tokens {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	return nil
}

func TestProperty_SignUpHashesPasswords(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("passwords are hashed with bcrypt and not stored as plaintext", prop.ForAll(
		func(email string, password string) bool {
			userRepo := newMockUserRepository()
			refreshTokenRepo := newMockRefreshTokenRepository()
			service := NewAuthService(userRepo, refreshTokenRepo, "test-secret")
			ctx := context.Background()

			id, err := service.SignUp(ctx, email, password)
			if err != nil {
				// If sign-up fails, skip this test case
				return true
			}

			storedUser, err := userRepo.FindByEmail(ctx, email)
			if err != nil {
				t.Logf("FAIL: Could not find stored user: %v", err)
				return false
			}

			if storedUser.PasswordHash == password {
				t.Logf("FAIL: Password stored as plaintext for email %s", email)
				return false
			}

			if err := bcrypt.CompareHashAndPassword([]byte(storedUser.PasswordHash), []byte(password)); err != nil {
				t.Logf("FAIL: Password hash is not a valid bcrypt hash or doesn't match: %v", err)
				return false
			}

			if id.ID != storedUser.ID {
				t.Logf("FAIL: Returned identity id doesn't match stored user")
				return false
			}

			return true
		},
		// Generate valid email addresses
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		// Generate passwords with at least 8 characters
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_AccessTokensContainRequiredClaims(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("access tokens carry user id and email claims", prop.ForAll(
		func(email string, password string) bool {
			userRepo := newMockUserRepository()
			refreshTokenRepo := newMockRefreshTokenRepository()
			service := NewAuthService(userRepo, refreshTokenRepo, "test-secret-key")
			ctx := context.Background()

			id, err := service.SignUp(ctx, email, password)
			if err != nil {
				return true // Skip if sign-up fails
			}

			accessToken, _, err := service.IssueTokens(ctx, id.ID)
			if err != nil {
				t.Logf("FAIL: Token issuing failed: %v", err)
				return false
			}

			claims, err := service.ValidateToken(accessToken)
			if err != nil {
				t.Logf("FAIL: Token validation failed: %v", err)
				return false
			}

			if claims.UserID != id.ID {
				t.Logf("FAIL: User ID claim mismatch. Expected %s, got %s", id.ID, claims.UserID)
				return false
			}

			if claims.Email != email {
				t.Logf("FAIL: Email claim mismatch. Expected %s, got %s", email, claims.Email)
				return false
			}

			if claims.ExpiresAt == nil {
				t.Logf("FAIL: Token missing expiration claim")
				return false
			}

			if claims.IssuedAt == nil {
				t.Logf("FAIL: Token missing issued at claim")
				return false
			}

			return true
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_TokenRefreshRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("valid refresh token returns new valid access token", prop.ForAll(
		func(email string, password string) bool {
			userRepo := newMockUserRepository()
			refreshTokenRepo := newMockRefreshTokenRepository()
			service := NewAuthService(userRepo, refreshTokenRepo, "test-secret-key")
			ctx := context.Background()

			id, err := service.SignUp(ctx, email, password)
			if err != nil {
				return true // Skip if sign-up fails
			}

			_, refreshToken, err := service.IssueTokens(ctx, id.ID)
			if err != nil {
				t.Logf("FAIL: Token issuing failed: %v", err)
				return false
			}

			newAccessToken, err := service.RefreshAccessToken(ctx, refreshToken)
			if err != nil {
				t.Logf("FAIL: Token refresh failed: %v", err)
				return false
			}

			claims, err := service.ValidateToken(newAccessToken)
			if err != nil {
				t.Logf("FAIL: New access token validation failed: %v", err)
				return false
			}

			if claims.UserID != id.ID {
				t.Logf("FAIL: User ID mismatch in refreshed token")
				return false
			}

			if claims.ExpiresAt != nil && time.Now().After(claims.ExpiresAt.Time) {
				t.Logf("FAIL: Refreshed token is already expired")
				return false
			}

			return true
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_RevokedRefreshTokenIsRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("revoking a refresh token makes it unusable", prop.ForAll(
		func(email string, password string) bool {
			userRepo := newMockUserRepository()
			refreshTokenRepo := newMockRefreshTokenRepository()
			service := NewAuthService(userRepo, refreshTokenRepo, "test-secret-key")
			ctx := context.Background()

			id, err := service.SignUp(ctx, email, password)
			if err != nil {
				return true // Skip if sign-up fails
			}

			_, refreshToken, err := service.IssueTokens(ctx, id.ID)
			if err != nil {
				t.Logf("FAIL: Token issuing failed: %v", err)
				return false
			}

			if _, err := service.RefreshAccessToken(ctx, refreshToken); err != nil {
				t.Logf("FAIL: Refresh token should work before revocation: %v", err)
				return false
			}

			if err := service.RevokeRefreshToken(ctx, refreshToken); err != nil {
				t.Logf("FAIL: Revocation failed: %v", err)
				return false
			}

			_, err = service.RefreshAccessToken(ctx, refreshToken)
			if err != ErrInvalidToken {
				t.Logf("FAIL: Expected ErrInvalidToken after revocation, got: %v", err)
				return false
			}

			return true
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestUserChangesDeliversSessionTransitions(t *testing.T) {
	userRepo := newMockUserRepository()
	refreshTokenRepo := newMockRefreshTokenRepository()
	service := NewAuthService(userRepo, refreshTokenRepo, "test-secret")
	ctx := context.Background()

	changes, release := service.UserChanges()
	defer release()

	// Initial value is the empty session
	if current := <-changes; current != nil {
		t.Fatalf("Expected nil initial session, got %+v", current)
	}

	id, err := service.SignUp(ctx, "grower@farm.test", "hunter2hunter2")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	signedIn := <-changes
	if signedIn == nil || signedIn.ID != id.ID {
		t.Fatalf("Expected sign-in notification for %s, got %+v", id.ID, signedIn)
	}

	if err := service.SignOut(ctx); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}

	if signedOut := <-changes; signedOut != nil {
		t.Fatalf("Expected nil after sign-out, got %+v", signedOut)
	}
}

func TestDeleteAccountRemovesUserAndSession(t *testing.T) {
	userRepo := newMockUserRepository()
	refreshTokenRepo := newMockRefreshTokenRepository()
	service := NewAuthService(userRepo, refreshTokenRepo, "test-secret")
	ctx := context.Background()

	id, err := service.SignUp(ctx, "grower@farm.test", "hunter2hunter2")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	_, refreshToken, err := service.IssueTokens(ctx, id.ID)
	if err != nil {
		t.Fatalf("IssueTokens failed: %v", err)
	}

	if err := service.DeleteAccount(ctx); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}

	if _, err := userRepo.FindByID(ctx, id.ID); err != repository.ErrUserNotFound {
		t.Errorf("Expected user to be deleted, got error: %v", err)
	}

	if _, err := refreshTokenRepo.FindByToken(ctx, refreshToken); err != repository.ErrRefreshTokenRevoked {
		t.Errorf("Expected refresh token to be revoked, got error: %v", err)
	}

	if _, err := service.CurrentUser(ctx); err == nil {
		t.Error("Expected no current user after account deletion")
	}
}

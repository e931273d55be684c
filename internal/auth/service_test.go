package auth

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

func TestAuth(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Auth Module Suite")
}

type mockUserRepository struct {
	mu          sync.Mutex
	credentials map[string]*Credentials
	users       map[int64]*User
	sessions    map[string]*Session
	credErr     error
}

func newMockUserRepository() *mockUserRepository {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("correct_password"), bcrypt.MinCost)

	return &mockUserRepository{
		credentials: map[string]*Credentials{
			"employee@example.com": {UserID: 1, PasswordHash: string(hashedPassword), IsActive: true},
			"admin@example.com":    {UserID: 2, PasswordHash: string(hashedPassword), IsActive: true},
			"former@example.com":   {UserID: 3, PasswordHash: string(hashedPassword), IsActive: false},
		},
		users: map[int64]*User{
			1: {ID: 1, CompanyID: 10, Email: "employee@example.com", Role: internal.RoleEmployee, IsActive: true},
			2: {ID: 2, CompanyID: 10, Email: "admin@example.com", Role: internal.RoleAdmin, IsActive: true},
			3: {ID: 3, CompanyID: 10, Email: "former@example.com", Role: internal.RoleEmployee, IsActive: false},
		},
		sessions: map[string]*Session{},
	}
}

func (m *mockUserRepository) GetCredentials(_ context.Context, email string) (*Credentials, error) {
	if m.credErr != nil {
		return nil, m.credErr
	}
	if c, ok := m.credentials[email]; ok {
		return c, nil
	}
	return nil, internal.ErrUserNotFound
}

func (m *mockUserRepository) GetUser(_ context.Context, userID int64) (*User, error) {
	if u, ok := m.users[userID]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, internal.ErrUserNotFound
}

func (m *mockUserRepository) CreateSession(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *s
	m.sessions[s.ID] = &copied
	return nil
}

func (m *mockUserRepository) GetSession(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, internal.ErrInvalidToken
}

func (m *mockUserRepository) RevokeSession(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.RevokedAt != nil {
		return false, nil
	}
	s.RevokedAt = &at
	return true, nil
}

var _ = ginkgo.Describe("AuthService", func() {
	var (
		ctx           context.Context
		service       *Service
		mockRepo      *mockUserRepository
		tokenGen      *JWTTokenGenerator
		accessSecret  = "test-access-secret-0123456789abcdef"
		refreshSecret = "test-refresh-secret-0123456789abcdef"
		accessTTL     = 15 * time.Minute
		refreshTTL    = 24 * time.Hour
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		mockRepo = newMockUserRepository()
		tokenGen = NewJWTTokenGenerator(accessSecret, refreshSecret, accessTTL, refreshTTL)
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = NewService(mockRepo, tokenGen, bcrypt.MinCost, logger)
	})

	login := func(email string) AuthTokens {
		tokens, err := service.Authenticate(ctx, LoginDTO{Email: email, Password: "correct_password"})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		return tokens
	}

	ginkgo.Describe("Authenticate", func() {
		ginkgo.Context("when credentials are valid", func() {
			ginkgo.It("should return a distinct access and refresh token", func() {
				tokens := login("employee@example.com")

				gomega.Expect(tokens.AccessToken).ToNot(gomega.BeEmpty())
				gomega.Expect(tokens.RefreshToken).ToNot(gomega.BeEmpty())
				gomega.Expect(tokens.AccessToken).ToNot(gomega.Equal(tokens.RefreshToken))
				gomega.Expect(tokens.TokenType).To(gomega.Equal("Bearer"))
				gomega.Expect(tokens.ExpiresIn).To(gomega.Equal(int64(accessTTL.Seconds())))
				gomega.Expect(mockRepo.sessions).To(gomega.HaveLen(1))
			})

			ginkgo.It("should normalize the email before lookup", func() {
				_, err := service.Authenticate(ctx, LoginDTO{Email: "  Admin@Example.com ", Password: "correct_password"})
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
			})

			ginkgo.It("should resolve the access token to the user and role", func() {
				tokens := login("admin@example.com")

				user, err := service.ValidateAccessToken(ctx, tokens.AccessToken)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(user.ID).To(gomega.Equal(int64(2)))
				gomega.Expect(user.CompanyID).To(gomega.Equal(int64(10)))
				gomega.Expect(user.IsAdmin()).To(gomega.BeTrue())
			})
		})

		ginkgo.Context("when credentials are invalid", func() {
			ginkgo.It("should return invalid credentials for an unknown email", func() {
				_, err := service.Authenticate(ctx, LoginDTO{Email: "nobody@example.com", Password: "x"})
				gomega.Expect(errors.Is(err, internal.ErrInvalidCredentials)).To(gomega.BeTrue())
			})

			ginkgo.It("should return invalid credentials for a wrong password", func() {
				_, err := service.Authenticate(ctx, LoginDTO{Email: "employee@example.com", Password: "wrong"})
				gomega.Expect(errors.Is(err, internal.ErrInvalidCredentials)).To(gomega.BeTrue())
			})

			ginkgo.It("should hide repository failures behind invalid credentials", func() {
				mockRepo.credErr = errors.New("database error")
				_, err := service.Authenticate(ctx, LoginDTO{Email: "employee@example.com", Password: "correct_password"})
				gomega.Expect(errors.Is(err, internal.ErrInvalidCredentials)).To(gomega.BeTrue())
			})

			ginkgo.It("should refuse inactive users", func() {
				_, err := service.Authenticate(ctx, LoginDTO{Email: "former@example.com", Password: "correct_password"})
				gomega.Expect(errors.Is(err, internal.ErrUserInactive)).To(gomega.BeTrue())
			})
		})

		ginkgo.Context("when input validation fails", func() {
			ginkgo.It("should report missing fields", func() {
				_, err := service.Authenticate(ctx, LoginDTO{})
				appErr, ok := internal.IsAppError(err)
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(appErr.Type).To(gomega.Equal(internal.ErrorTypeValidation))
				gomega.Expect(appErr.GetDetailedMessage()).To(gomega.ContainSubstring("email is required"))
				gomega.Expect(appErr.GetDetailedMessage()).To(gomega.ContainSubstring("password is required"))
			})
		})
	})

	ginkgo.Describe("RefreshTokens", func() {
		ginkgo.It("should rotate the session", func() {
			tokens := login("employee@example.com")

			refreshed, err := service.RefreshTokens(ctx, tokens.RefreshToken)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(refreshed.AccessToken).ToNot(gomega.BeEmpty())

			_, err = service.ValidateAccessToken(ctx, tokens.AccessToken)
			gomega.Expect(errors.Is(err, internal.ErrSessionRevoked)).To(gomega.BeTrue())

			user, err := service.ValidateAccessToken(ctx, refreshed.AccessToken)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(user.ID).To(gomega.Equal(int64(1)))
		})

		ginkgo.It("should accept a refresh token only once", func() {
			tokens := login("employee@example.com")

			_, err := service.RefreshTokens(ctx, tokens.RefreshToken)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			_, err = service.RefreshTokens(ctx, tokens.RefreshToken)
			gomega.Expect(errors.Is(err, internal.ErrSessionRevoked)).To(gomega.BeTrue())
		})

		ginkgo.It("should reject an access token presented as a refresh token", func() {
			tokens := login("employee@example.com")

			_, err := service.RefreshTokens(ctx, tokens.AccessToken)
			gomega.Expect(errors.Is(err, internal.ErrInvalidToken)).To(gomega.BeTrue())
		})

		ginkgo.It("should reject expired tokens", func() {
			expiredGen := NewJWTTokenGenerator(accessSecret, refreshSecret, -1*time.Hour, -1*time.Hour)
			expired, err := expiredGen.Generate(mockRepo.users[1], "sess", TokenTypeRefresh)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			_, err = service.RefreshTokens(ctx, expired)
			gomega.Expect(errors.Is(err, internal.ErrTokenExpired)).To(gomega.BeTrue())
		})
	})

	ginkgo.Describe("ValidateAccessToken", func() {
		ginkgo.It("should reject malformed tokens", func() {
			user, err := service.ValidateAccessToken(ctx, "invalid.token")
			gomega.Expect(errors.Is(err, internal.ErrInvalidToken)).To(gomega.BeTrue())
			gomega.Expect(user).To(gomega.BeNil())
		})

		ginkgo.It("should reject tokens signed with another secret", func() {
			other := NewJWTTokenGenerator("another-access-secret-0123456789ab", refreshSecret, accessTTL, refreshTTL)
			forged, err := other.Generate(mockRepo.users[2], "sess", TokenTypeAccess)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			_, err = service.ValidateAccessToken(ctx, forged)
			gomega.Expect(errors.Is(err, internal.ErrInvalidToken)).To(gomega.BeTrue())
		})

		ginkgo.It("should reject users deactivated after login", func() {
			tokens := login("employee@example.com")
			mockRepo.users[1].IsActive = false

			_, err := service.ValidateAccessToken(ctx, tokens.AccessToken)
			gomega.Expect(errors.Is(err, internal.ErrUserInactive)).To(gomega.BeTrue())
		})
	})

	ginkgo.Describe("Logout", func() {
		ginkgo.It("should revoke both tokens of the session", func() {
			tokens := login("admin@example.com")

			gomega.Expect(service.Logout(ctx, tokens.AccessToken)).To(gomega.Succeed())

			_, err := service.ValidateAccessToken(ctx, tokens.AccessToken)
			gomega.Expect(errors.Is(err, internal.ErrSessionRevoked)).To(gomega.BeTrue())

			_, err = service.RefreshTokens(ctx, tokens.RefreshToken)
			gomega.Expect(errors.Is(err, internal.ErrSessionRevoked)).To(gomega.BeTrue())
		})
	})

	ginkgo.Describe("HashPassword", func() {
		ginkgo.It("should produce a verifiable bcrypt hash", func() {
			hash, err := service.HashPassword("s3cret!")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret!"))).To(gomega.Succeed())
		})
	})
})

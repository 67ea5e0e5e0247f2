package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"authsvc/internal/domain/models"
	"authsvc/internal/lib/jwt"
	"authsvc/internal/lib/sl"
	"authsvc/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Audit metadata recorded on the refresh token minted at registration,
// where no client context exists yet.
const (
	registrationIP    = "127.0.0.1"
	registrationAgent = "registration"
)

var (
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrAccountInactive        = errors.New("account is inactive")
	ErrPasswordMismatch       = errors.New("passwords do not match")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidRole            = errors.New("invalid role")
	ErrInvalidOrExpiredToken  = errors.New("invalid or expired refresh token")
	ErrStoreUnavailable       = errors.New("store unavailable")
)

type Auth struct {
	log             *slog.Logger
	users           UserStore
	roles           RoleProvider
	tokens          RefreshTokenStore
	cache           VerificationCache
	issuer          TokenIssuer
	refreshTTL      time.Duration
	verificationTTL time.Duration
	bcryptCost      int
	now             func() time.Time
}

type UserStore interface {
	SaveUser(ctx context.Context, user *models.User) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error
	MarkEmailVerified(ctx context.Context, userID uuid.UUID, at time.Time) error
}

type RoleProvider interface {
	RoleByName(ctx context.Context, name string) (*models.Role, error)
	RoleByID(ctx context.Context, roleID int) (*models.Role, error)
}

type RefreshTokenStore interface {
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	RefreshTokenByValue(ctx context.Context, value string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, value string) error
	RotateRefreshToken(ctx context.Context, oldValue string, newToken *models.RefreshToken) error
}

type VerificationCache interface {
	SetVerificationToken(ctx context.Context, userID uuid.UUID, token string, ttl time.Duration) error
	ConsumeVerificationToken(ctx context.Context, userID uuid.UUID, token string) (bool, error)
}

type TokenIssuer interface {
	IssueAccessToken(user *models.User, roleName string) (string, error)
}

// AuthResult is the response shape shared by Login, Register and Refresh.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         models.UserView
}

// New returns a new instance of the Auth service.
func New(
	log *slog.Logger,
	users UserStore,
	roles RoleProvider,
	tokens RefreshTokenStore,
	cache VerificationCache,
	issuer TokenIssuer,
	refreshTTL time.Duration,
	verificationTTL time.Duration,
	bcryptCost int,
) *Auth {
	return &Auth{
		log:             log,
		users:           users,
		roles:           roles,
		tokens:          tokens,
		cache:           cache,
		issuer:          issuer,
		refreshTTL:      refreshTTL,
		verificationTTL: verificationTTL,
		bcryptCost:      bcryptCost,
		now:             time.Now,
	}
}

// Login authenticates the user and returns fresh access and refresh
// tokens. The caller must surface ErrInvalidCredentials and
// ErrAccountInactive with one identical generic message; the kinds
// exist for internal logging only.
func (a *Auth) Login(ctx context.Context, email, password, ip, agent string) (*AuthResult, error) {
	const op = "auth.Login"
	log := a.log.With(slog.String("op", op))
	log.Info("login request")

	user, err := a.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		log.Error("failed to get user", sl.Err(err))
		return nil, a.storeErr(op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		log.Warn("invalid password")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if !user.Active {
		log.Warn("account inactive", slog.String("userID", user.ID.String()))
		return nil, fmt.Errorf("%s: %w", op, ErrAccountInactive)
	}

	// Best effort: a failed last-login update never fails the login.
	if err := a.users.UpdateLastLogin(ctx, user.ID, a.now()); err != nil {
		log.Warn("failed to update last login", sl.Err(err))
	}

	result, err := a.issueTokens(ctx, user, ip, agent)
	if err != nil {
		log.Error("failed to issue tokens", sl.Err(err))
		return nil, a.storeErr(op, err)
	}

	log.Info("user logged in", slog.String("userID", user.ID.String()))

	return result, nil
}

// Register creates a user with a freshly hashed password and logs the
// new account in. The storage-level unique index on email is the
// authoritative guard; the pre-check only shortcuts the common case.
func (a *Auth) Register(ctx context.Context, email, password, confirmPassword, roleName string) (*AuthResult, error) {
	const op = "auth.Register"
	log := a.log.With(slog.String("op", op))
	log.Info("register request")

	if password != confirmPassword {
		return nil, fmt.Errorf("%s: %w", op, ErrPasswordMismatch)
	}

	if _, err := a.users.UserByEmail(ctx, email); err == nil {
		log.Warn("email already registered")
		return nil, fmt.Errorf("%s: %w", op, ErrEmailAlreadyRegistered)
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		log.Error("failed to check email", sl.Err(err))
		return nil, a.storeErr(op, err)
	}

	role, err := a.roles.RoleByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, storage.ErrRoleNotFound) {
			log.Warn("unknown role", slog.String("role", roleName))
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidRole)
		}
		log.Error("failed to get role", sl.Err(err))
		return nil, a.storeErr(op, err)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), a.bcryptCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user := &models.User{
		ID:            uuid.New(),
		Email:         email,
		PassHash:      passHash,
		RoleID:        role.ID,
		Active:        true,
		EmailVerified: false,
		CreatedAt:     a.now(),
	}

	if err := a.users.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			log.Warn("email already registered", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, ErrEmailAlreadyRegistered)
		}
		log.Error("failed to save user", sl.Err(err))
		return nil, a.storeErr(op, err)
	}

	result, err := a.issueTokens(ctx, user, registrationIP, registrationAgent)
	if err != nil {
		log.Error("failed to issue tokens", sl.Err(err))
		return nil, a.storeErr(op, err)
	}

	log.Info("user registered", slog.String("userID", user.ID.String()))

	return result, nil
}

// Refresh exchanges a valid refresh token for a new pair (rotation).
// Not-found, revoked and expired all surface as
// ErrInvalidOrExpiredToken so callers cannot probe token state.
func (a *Auth) Refresh(ctx context.Context, presentedValue, ip, agent string) (*AuthResult, error) {
	const op = "auth.Refresh"
	log := a.log.With(slog.String("op", op))
	log.Info("refresh request")

	token, err := a.tokens.RefreshTokenByValue(ctx, presentedValue)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			log.Warn("refresh token not found")
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidOrExpiredToken)
		}
		log.Error("failed to get refresh token", sl.Err(err))
		return nil, a.storeErr(op, err)
	}

	if token.Revoked {
		log.Warn("refresh token revoked", slog.String("userID", token.UserID.String()))
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidOrExpiredToken)
	}
	if !token.ExpiresAt.After(a.now()) {
		log.Warn("refresh token expired", slog.String("userID", token.UserID.String()))
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidOrExpiredToken)
	}

	user, err := a.users.UserByID(ctx, token.UserID)
	if err != nil {
		log.Error("failed to get user", sl.Err(err))
		return nil, a.storeErr(op, err)
	}

	role, err := a.roles.RoleByID(ctx, user.RoleID)
	if err != nil {
		log.Error("failed to get role", sl.Err(err))
		return nil, a.storeErr(op, err)
	}

	accessToken, err := a.issuer.IssueAccessToken(user, role.Name)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	newValue, err := jwt.NewRefreshTokenValue()
	if err != nil {
		log.Error("failed to generate refresh token", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	newToken := &models.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     newValue,
		ExpiresAt: a.now().Add(a.refreshTTL),
		CreatedAt: a.now(),
		IP:        ip,
		UserAgent: agent,
	}

	// The store revokes the old token and inserts the new one in one
	// atomic unit. If a concurrent refresh already rotated this value,
	// our revoke matches nothing and the whole rotation fails.
	if err := a.tokens.RotateRefreshToken(ctx, presentedValue, newToken); err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			log.Warn("refresh token already rotated", slog.String("userID", user.ID.String()))
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidOrExpiredToken)
		}
		log.Error("failed to rotate refresh token", sl.Err(err))
		return nil, a.storeErr(op, err)
	}

	log.Info("tokens refreshed", slog.String("userID", user.ID.String()))

	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: newValue,
		ExpiresAt:    newToken.ExpiresAt,
		User:         userView(user, role.Name),
	}, nil
}

// Revoke marks the token revoked. Idempotent: an unknown value is
// false, not an error; a known value is true even if it was already
// revoked.
func (a *Auth) Revoke(ctx context.Context, value string) (bool, error) {
	const op = "auth.Revoke"
	log := a.log.With(slog.String("op", op))

	if err := a.tokens.RevokeRefreshToken(ctx, value); err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			log.Info("revoke of unknown token")
			return false, nil
		}
		log.Error("failed to revoke refresh token", sl.Err(err))
		return false, a.storeErr(op, err)
	}

	log.Info("refresh token revoked")

	return true, nil
}

// RequestEmailVerification mints a verification token for the user
// and stores it in the cache under the user id with the configured
// TTL. A still outstanding token is overwritten (last write wins).
func (a *Auth) RequestEmailVerification(ctx context.Context, userID uuid.UUID) (string, error) {
	const op = "auth.RequestEmailVerification"
	log := a.log.With(slog.String("op", op), slog.String("userID", userID.String()))

	if _, err := a.users.UserByID(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return "", fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		log.Error("failed to get user", sl.Err(err))
		return "", a.storeErr(op, err)
	}

	token, err := jwt.NewRefreshTokenValue()
	if err != nil {
		log.Error("failed to generate verification token", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := a.cache.SetVerificationToken(ctx, userID, token, a.verificationTTL); err != nil {
		log.Error("failed to store verification token", sl.Err(err))
		return "", a.storeErr(op, err)
	}

	log.Info("verification token issued")

	return token, nil
}

// VerifyEmail consumes the cached verification token for the user.
// False on absence (expired or never issued) or mismatch. On a match
// the token is gone and email_verified is set, never to be reset by
// this service.
func (a *Auth) VerifyEmail(ctx context.Context, userID uuid.UUID, token string) (bool, error) {
	const op = "auth.VerifyEmail"
	log := a.log.With(slog.String("op", op), slog.String("userID", userID.String()))
	log.Info("verify email request")

	user, err := a.users.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return false, nil
		}
		log.Error("failed to get user", sl.Err(err))
		return false, a.storeErr(op, err)
	}

	ok, err := a.cache.ConsumeVerificationToken(ctx, userID, token)
	if err != nil {
		log.Error("failed to consume verification token", sl.Err(err))
		return false, a.storeErr(op, err)
	}
	if !ok {
		log.Warn("verification token absent or mismatched")
		return false, nil
	}

	if err := a.users.MarkEmailVerified(ctx, user.ID, a.now()); err != nil {
		log.Error("failed to mark email verified", sl.Err(err))
		return false, a.storeErr(op, err)
	}

	log.Info("email verified")

	return true, nil
}

// issueTokens creates the access token plus a persisted refresh token
// for the user and assembles the shared result shape.
func (a *Auth) issueTokens(ctx context.Context, user *models.User, ip, agent string) (*AuthResult, error) {
	role, err := a.roles.RoleByID(ctx, user.RoleID)
	if err != nil {
		return nil, fmt.Errorf("get role: %w", err)
	}

	accessToken, err := a.issuer.IssueAccessToken(user, role.Name)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	value, err := jwt.NewRefreshTokenValue()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	token := &models.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     value,
		ExpiresAt: a.now().Add(a.refreshTTL),
		CreatedAt: a.now(),
		IP:        ip,
		UserAgent: agent,
	}

	if err := a.tokens.SaveRefreshToken(ctx, token); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: value,
		ExpiresAt:    token.ExpiresAt,
		User:         userView(user, role.Name),
	}, nil
}

// storeErr folds context timeouts from store calls into
// ErrStoreUnavailable so callers know a retry is safe.
func (a *Auth) storeErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, ErrStoreUnavailable)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func userView(user *models.User, roleName string) models.UserView {
	return models.UserView{
		ID:            user.ID,
		Email:         user.Email,
		Role:          roleName,
		EmailVerified: user.EmailVerified,
	}
}

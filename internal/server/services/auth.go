package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/laplink/internal/common"
	"github.com/dmitrijs2005/laplink/internal/cryptox"
	"github.com/dmitrijs2005/laplink/internal/dbx"
	"github.com/dmitrijs2005/laplink/internal/logging"
	"github.com/dmitrijs2005/laplink/internal/server/auth"
	"github.com/dmitrijs2005/laplink/internal/server/models"
	"github.com/dmitrijs2005/laplink/internal/server/otp"
	"github.com/dmitrijs2005/laplink/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/laplink/internal/server/repositories/users"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
)

const (
	minPasswordLen = 6
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLen = 72
)

var passwordRules = []validation.Rule{validation.Required, validation.Length(minPasswordLen, maxPasswordLen)}

var emailRules = []validation.Rule{validation.Required, is.Email}

// placeholderPassword is a test seam for the random password of accounts
// created by login OTP.
var placeholderPassword = func() (string, error) {
	return common.MakeRandHexString(16)
}

// Session is the result of a successful login.
type Session struct {
	User   *models.User
	Tokens auth.TokenPair
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
	City     string
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Email, emailRules...),
		validation.Field(&in.Password, passwordRules...),
		validation.Field(&in.Phone, validation.By(func(v any) error {
			if s, _ := v.(string); s != "" {
				if _, err := models.NormalizePhone(s); err != nil {
					return errors.New("must be a valid phone number")
				}
			}
			return nil
		})),
	)
}

// AuthService implements registration, password and OTP login, password
// reset and session refresh.
type AuthService struct {
	db       dbx.DBTX
	tx       dbx.TxRunner
	repos    repomanager.RepositoryManager
	otp      *otp.Engine
	tokens   *auth.Issuer
	hasher   cryptox.Hasher
	notifier Notifier
	logger   logging.Logger
	async    dispatcher
}

func NewAuthService(db dbx.DBTX, tx dbx.TxRunner, repos repomanager.RepositoryManager, engine *otp.Engine,
	tokens *auth.Issuer, hasher cryptox.Hasher, notifier Notifier, logger logging.Logger) *AuthService {
	return &AuthService{
		db:       db,
		tx:       tx,
		repos:    repos,
		otp:      engine,
		tokens:   tokens,
		hasher:   hasher,
		notifier: notifier,
		logger:   logger,
		async:    newDispatcher(logger),
	}
}

// Register creates an unverified user and mails a registration code. The
// user row and the code are written in one transaction, so a failed send
// leaves nothing behind and the caller can simply retry.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.City = strings.TrimSpace(in.City)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.Phone != "" {
		in.Phone, _ = models.NormalizePhone(in.Phone)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		City:         in.City,
		PasswordHash: hash,
		Role:         models.RoleUser,
	}

	err = s.tx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Users(tx)
		if _, err := repo.Create(ctx, user); err != nil {
			return err
		}
		return s.otp.Issue(ctx, repo, user, models.PurposeRegistration)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// VerifyRegistration consumes the registration code and marks the email
// verified. alreadyVerified is true when there was nothing to do.
func (s *AuthService) VerifyRegistration(ctx context.Context, email, code string) (alreadyVerified bool, err error) {
	if err := validateOTPInput(email, code); err != nil {
		return false, err
	}

	repo := s.repos.Users(s.db)
	user, err := repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return false, err
	}
	if user.IsEmailVerified {
		return true, nil
	}

	if err := s.otp.Verify(ctx, repo, user, models.PurposeRegistration, code); err != nil {
		return false, err
	}

	s.async.dispatch(ctx, "welcome", func(ctx context.Context) error {
		return s.notifier.SendWelcome(ctx, user.Email, user.Name)
	})
	return false, nil
}

// Login checks an email and password. Unknown emails and wrong passwords
// are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrValidation)
	}

	user, err := s.repos.Users(s.db).GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.hasher.Matches(user.PasswordHash, password) {
		return nil, common.ErrInvalidCredentials
	}
	if !user.IsEmailVerified {
		return nil, common.ErrEmailNotVerified
	}

	return s.session(user)
}

// SendLoginOTP mails a login code, creating a verified account with a random
// password when the email is new.
func (s *AuthService) SendLoginOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validation.Validate(email, emailRules...); err != nil {
		return fmt.Errorf("%w: email: %v", common.ErrValidation, err)
	}

	repo := s.repos.Users(s.db)
	user, err := repo.GetByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		user, err = s.provision(ctx, repo, email)
	}
	if err != nil {
		return err
	}

	return s.otp.Issue(ctx, repo, user, models.PurposeLogin)
}

// provision inserts a verified account for email with an unusable random
// password. A concurrent insert of the same email wins and is returned.
func (s *AuthService) provision(ctx context.Context, repo users.Repository, email string) (*models.User, error) {
	placeholder, err := placeholderPassword()
	if err != nil {
		return nil, fmt.Errorf("placeholder password: %w", err)
	}
	hash, err := s.hasher.Hash(placeholder)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, created, err := repo.Provision(ctx, &models.User{
		ID:              uuid.NewString(),
		Name:            email,
		Email:           email,
		PasswordHash:    hash,
		Role:            models.RoleUser,
		IsEmailVerified: true,
	})
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Info(ctx, "user provisioned by login otp", "user_id", user.ID)
	}
	return user, nil
}

// VerifyLoginOTP consumes a login code and opens a session.
func (s *AuthService) VerifyLoginOTP(ctx context.Context, email, code string) (*Session, error) {
	if err := validateOTPInput(email, code); err != nil {
		return nil, err
	}

	repo := s.repos.Users(s.db)
	user, err := repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if err := s.otp.Verify(ctx, repo, user, models.PurposeLogin, code); err != nil {
		return nil, err
	}

	user, err = repo.GetByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return s.session(user)
}

// ForgotPassword mails a password-reset code to a known email.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validation.Validate(email, emailRules...); err != nil {
		return fmt.Errorf("%w: email: %v", common.ErrValidation, err)
	}

	repo := s.repos.Users(s.db)
	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	return s.otp.Issue(ctx, repo, user, models.PurposePasswordReset)
}

// ResetPassword consumes a reset code and sets a new password atomically.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if err := validateOTPInput(email, code); err != nil {
		return err
	}
	if err := validation.Validate(newPassword, passwordRules...); err != nil {
		return fmt.Errorf("%w: newPassword: %v", common.ErrValidation, err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.tx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Users(tx)
		user, err := repo.GetByEmail(ctx, normalizeEmail(email))
		if err != nil {
			return err
		}
		if err := s.otp.Verify(ctx, repo, user, models.PurposePasswordReset, code); err != nil {
			return err
		}
		return repo.UpdatePassword(ctx, user.ID, hash)
	})
}

// ChangePassword replaces the password of an authenticated user after
// checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if current == "" {
		return fmt.Errorf("%w: currentPassword is required", common.ErrValidation)
	}
	if err := validation.Validate(next, passwordRules...); err != nil {
		return fmt.Errorf("%w: newPassword: %v", common.ErrValidation, err)
	}

	repo := s.repos.Users(s.db)
	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Matches(user.PasswordHash, current) {
		return fmt.Errorf("%w: current password is incorrect", common.ErrInvalidCredentials)
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return repo.UpdatePassword(ctx, user.ID, hash)
}

// Refresh exchanges a valid refresh token for a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	user, err := s.repos.Users(s.db).GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, err
	}
	return s.session(user)
}

// Authenticate resolves an access token to the caller's identity. The role
// is read from storage, not from the token.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (auth.Identity, error) {
	claims, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		return auth.Identity{}, err
	}
	role, err := s.repos.Users(s.db).GetRole(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return auth.Identity{}, common.ErrInvalidToken
		}
		return auth.Identity{}, err
	}
	return auth.Identity{UserID: claims.UserID, Role: role}, nil
}

// Me returns the profile of userID.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	return s.repos.Users(s.db).GetByID(ctx, userID)
}

func (s *AuthService) session(user *models.User) (*Session, error) {
	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return &Session{User: user, Tokens: pair}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateOTPInput(email, code string) error {
	if email == "" || code == "" {
		return fmt.Errorf("%w: email and otp are required", common.ErrValidation)
	}
	return nil
}

// validateInput runs v.Validate and tags failures as validation errors.
func validateInput(v validation.Validatable) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	return nil
}

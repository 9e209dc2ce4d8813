// Package auth registers users, verifies credentials and issues the bearer
// tokens the API middleware resolves into an Actor.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"meteoalert/internal/types"
)

// DefaultBcryptCost is the bcrypt cost factor for password hashing.
const DefaultBcryptCost = 12

// UserRepo is the subset of the user repository auth needs.
type UserRepo interface {
	Create(ctx context.Context, u *types.User) error
	GetByEmail(ctx context.Context, email string) (*types.User, error)
}

// PasswordHasher abstracts bcrypt so tests can run at a low cost.
type PasswordHasher interface {
	CompareHashAndPassword(hashedPassword, password string) error
	GenerateFromPassword(password string) (string, error)
}

// BcryptHasher is the production PasswordHasher.
type BcryptHasher struct {
	Cost int
}

func (b BcryptHasher) CompareHashAndPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func (b BcryptHasher) GenerateFromPassword(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// RegisterInput is the registration request. Every field is required.
type RegisterInput struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Age       int    `json:"age" validate:"required,gte=1,lte=150"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	Location  string `json:"location" validate:"required,max=200"`
}

// Session is what a successful register or login returns.
type Session struct {
	User      *types.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Service implements registration, login and token resolution.
type Service struct {
	users    UserRepo
	hasher   PasswordHasher
	tokens   *TokenIssuer
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService creates a Service. A nil hasher uses BcryptHasher at the default
// cost; a nil logger uses slog.Default.
func NewService(users UserRepo, hasher PasswordHasher, tokens *TokenIssuer, logger *slog.Logger) *Service {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		validate: newValidator(),
		logger:   logger,
	}
}

var errInvalidCreds = types.NewAppError(types.ErrCodeAuthInvalidCreds, "invalid email or password", nil)

// Register creates an account and signs the user in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Email = CanonicalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Location = strings.TrimSpace(in.Location)
	if err := s.validate.Struct(in); err != nil {
		return nil, registrationError(err)
	}

	hash, err := s.hasher.GenerateFromPassword(in.Password)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to hash password", err)
	}

	user := &types.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Age:          in.Age,
		Location:     in.Location,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return s.session(user)
}

// Login verifies credentials. Unknown email and wrong password are reported
// identically.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = CanonicalizeEmail(email)
	if email == "" || password == "" {
		return nil, types.NewValidationError(types.ErrCodeValidationMissingField, "email and password are required",
			missingCredentials(email, password))
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if types.HasCode(err, types.ErrCodeNotFoundUser) {
			return nil, errInvalidCreds
		}
		return nil, err
	}
	if err := s.hasher.CompareHashAndPassword(user.PasswordHash, password); err != nil {
		return nil, errInvalidCreds
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return s.session(user)
}

// ResolveToken turns a bearer token into the acting user.
func (s *Service) ResolveToken(_ context.Context, token string) (*types.Actor, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	return &types.Actor{ID: claims.Subject, Email: claims.Email, Type: types.ActorTypeUser}, nil
}

func (s *Service) session(user *types.User) (*Session, error) {
	token, exp, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}

// CanonicalizeEmail normalizes an email for storage and lookup.
func CanonicalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func registrationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(types.ErrCodeValidationInvalidInput, "invalid registration", err)
	}

	code := types.ErrCodeValidationInvalidInput
	fields := make([]types.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		reason := "is invalid"
		switch fe.Tag() {
		case "required":
			reason = "is required"
			code = types.ErrCodeValidationMissingField
		case "email":
			reason = "must be a valid email address"
			if code != types.ErrCodeValidationMissingField {
				code = types.ErrCodeValidationInvalidEmail
			}
		case "min", "gte":
			reason = "must be at least " + fe.Param()
		case "max", "lte":
			reason = "must be at most " + fe.Param()
		}
		fields = append(fields, types.FieldError{Field: name, Reason: reason})
	}
	return types.NewValidationError(code, "invalid registration", fields)
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return v
}

func missingCredentials(email, password string) []types.FieldError {
	var out []types.FieldError
	if email == "" {
		out = append(out, types.FieldError{Field: "email", Reason: "is required"})
	}
	if password == "" {
		out = append(out, types.FieldError{Field: "password", Reason: "is required"})
	}
	return out
}

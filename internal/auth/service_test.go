package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"meteoalert/internal/types"
)

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, u *types.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*types.User), args.Error(1)
	}
	return nil, args.Error(1)
}

const testSecret = types.SecretString("0123456789abcdef0123456789abcdef")

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestService(repo UserRepo) (*Service, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(testNow)
	tokens := NewTokenIssuer(testSecret, 0, clock)
	return NewService(repo, BcryptHasher{Cost: bcrypt.MinCost}, tokens, nil), clock
}

func validInput() RegisterInput {
	return RegisterInput{
		FirstName: "Mario",
		LastName:  "Rossi",
		Age:       42,
		Email:     "  Mario.Rossi@Example.COM ",
		Password:  "correct-horse",
		Location:  "Milano",
	}
}

func TestRegister_Success(t *testing.T) {
	repo := new(mockUserRepo)
	svc, _ := newTestService(repo)
	ctx := context.Background()

	var saved *types.User
	repo.On("Create", ctx, mock.AnythingOfType("*types.User")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*types.User) }).
		Return(nil)

	sess, err := svc.Register(ctx, validInput())
	require.NoError(t, err)

	require.NotNil(t, saved)
	assert.Equal(t, "mario.rossi@example.com", saved.Email)
	assert.Len(t, saved.ID, 36)
	assert.NotEqual(t, "correct-horse", saved.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(saved.PasswordHash), []byte("correct-horse")))

	assert.Same(t, saved, sess.User)
	assert.Equal(t, testNow.Add(DefaultTokenTTL), sess.ExpiresAt)

	actor, err := svc.ResolveToken(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, actor.ID)
	assert.Equal(t, types.ActorTypeUser, actor.Type)
	repo.AssertExpectations(t)
}

func TestRegister_MissingFields(t *testing.T) {
	repo := new(mockUserRepo)
	svc, _ := newTestService(repo)

	in := validInput()
	in.FirstName = " "
	in.Location = ""

	_, err := svc.Register(context.Background(), in)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationMissingField, appErr.Code)
	assert.ElementsMatch(t, []types.FieldError{
		{Field: "first_name", Reason: "is required"},
		{Field: "location", Reason: "is required"},
	}, appErr.Details["errors"])
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_InvalidEmail(t *testing.T) {
	svc, _ := newTestService(new(mockUserRepo))
	in := validInput()
	in.Email = "not-an-email"

	_, err := svc.Register(context.Background(), in)
	assert.True(t, types.HasCode(err, types.ErrCodeValidationInvalidEmail))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := new(mockUserRepo)
	svc, _ := newTestService(repo)
	repo.On("Create", mock.Anything, mock.Anything).
		Return(types.NewAppError(types.ErrCodeConflictEmail, "email already registered", nil))

	_, err := svc.Register(context.Background(), validInput())
	assert.True(t, types.HasCode(err, types.ErrCodeConflictEmail))
}

func registeredUser(t *testing.T) *types.User {
	t.Helper()
	hash, err := BcryptHasher{Cost: bcrypt.MinCost}.GenerateFromPassword("correct-horse")
	require.NoError(t, err)
	return &types.User{ID: "u1", Email: "mario@example.com", PasswordHash: hash}
}

func TestLogin_Success(t *testing.T) {
	repo := new(mockUserRepo)
	svc, _ := newTestService(repo)
	repo.On("GetByEmail", mock.Anything, "mario@example.com").Return(registeredUser(t), nil)

	sess, err := svc.Login(context.Background(), " MARIO@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.User.ID)
	assert.NotEmpty(t, sess.Token)
}

func TestLogin_WrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	repo := new(mockUserRepo)
	svc, _ := newTestService(repo)
	repo.On("GetByEmail", mock.Anything, "mario@example.com").Return(registeredUser(t), nil)
	repo.On("GetByEmail", mock.Anything, "ghost@example.com").
		Return(nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil))

	_, wrongPw := svc.Login(context.Background(), "mario@example.com", "nope")
	_, unknown := svc.Login(context.Background(), "ghost@example.com", "nope")

	assert.True(t, types.HasCode(wrongPw, types.ErrCodeAuthInvalidCreds))
	assert.Equal(t, wrongPw.Error(), unknown.Error())
}

func TestLogin_MissingCredentials(t *testing.T) {
	svc, _ := newTestService(new(mockUserRepo))
	_, err := svc.Login(context.Background(), "", "")

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationMissingField, appErr.Code)
	assert.Len(t, appErr.Details["errors"], 2)
}

func TestLogin_StoreErrorPassesThrough(t *testing.T) {
	repo := new(mockUserRepo)
	svc, _ := newTestService(repo)
	repo.On("GetByEmail", mock.Anything, mock.Anything).
		Return(nil, types.NewAppError(types.ErrCodeInternalDB, "db down", nil))

	_, err := svc.Login(context.Background(), "mario@example.com", "x")
	assert.True(t, types.HasCode(err, types.ErrCodeInternalDB))
}

func TestResolveToken_Expired(t *testing.T) {
	repo := new(mockUserRepo)
	svc, clock := newTestService(repo)
	repo.On("GetByEmail", mock.Anything, mock.Anything).Return(registeredUser(t), nil)

	sess, err := svc.Login(context.Background(), "mario@example.com", "correct-horse")
	require.NoError(t, err)

	clock.Advance(DefaultTokenTTL + time.Second)
	_, err = svc.ResolveToken(context.Background(), sess.Token)
	assert.True(t, types.HasCode(err, types.ErrCodeAuthTokenExpired))
}

func TestResolveToken_Tampered(t *testing.T) {
	svc, clock := newTestService(new(mockUserRepo))
	other := NewTokenIssuer("a-completely-different-secret-value!!", 0, clock)
	token, _, err := other.Issue(&types.User{ID: "u1"})
	require.NoError(t, err)

	_, err = svc.ResolveToken(context.Background(), token)
	assert.True(t, types.HasCode(err, types.ErrCodeAuthTokenInvalid))

	_, err = svc.ResolveToken(context.Background(), "garbage")
	assert.True(t, types.HasCode(err, types.ErrCodeAuthTokenInvalid))
}

func TestCanonicalizeEmail(t *testing.T) {
	assert.Equal(t, "a@b.it", CanonicalizeEmail("  A@B.it\t"))
}

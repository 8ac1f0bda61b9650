package application

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/turnlabs/authgate/internal/domain/entity"
	"github.com/turnlabs/authgate/internal/domain/repository"
	"github.com/turnlabs/authgate/internal/identity"
)

type fakeRepo struct {
	createErr error
	created   []*entity.Profile
	byEmail   map[string]*entity.Profile
}

func (f *fakeRepo) Create(_ context.Context, p *entity.Profile) error {
	if f.createErr != nil {
		return f.createErr
	}
	p.ID = "p1"
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	f.created = append(f.created, p)
	return nil
}

func (f *fakeRepo) GetByEmail(_ context.Context, email string) (*entity.Profile, error) {
	if p, ok := f.byEmail[email]; ok {
		return p, nil
	}
	return nil, repository.ErrNotFound
}

type fakeProvider struct {
	createUser *identity.User
	createErr  error

	deleteCalls  []string
	deleteErr    error
	deleteCtxErr error

	tokens     *identity.TokenSet
	loginErr   error
	loginCalls int

	userInfo      identity.UserInfo
	userInfoErr   error
	userInfoCalls int
}

func (f *fakeProvider) CreateUser(_ context.Context, _ identity.CreateUserInput) (*identity.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createUser, nil
}

func (f *fakeProvider) DeleteUser(ctx context.Context, userID string) error {
	f.deleteCalls = append(f.deleteCalls, userID)
	f.deleteCtxErr = ctx.Err()
	return f.deleteErr
}

func (f *fakeProvider) LoginWithPassword(_ context.Context, _, _ string) (*identity.TokenSet, error) {
	f.loginCalls++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.tokens, nil
}

func (f *fakeProvider) GetUserInfo(_ context.Context, _ string) (identity.UserInfo, error) {
	f.userInfoCalls++
	if f.userInfoErr != nil {
		return nil, f.userInfoErr
	}
	return f.userInfo, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestService(r *fakeRepo, p *fakeProvider) *Service {
	return NewService(r, p, quietLogger(), nil, nil, "", false)
}

func validInput() RegisterInput {
	return RegisterInput{
		Name:        "Ann",
		CompanyName: "Acme",
		Email:       "ann@x.com",
		PhoneNumber: "5551234567",
		Password:    "secretpw",
	}
}

func TestRegister_Success(t *testing.T) {
	repo := &fakeRepo{}
	prov := &fakeProvider{createUser: &identity.User{UserID: "auth0|123"}}
	svc := newTestService(repo, prov)

	res, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)
	require.Equal(t, "p1", res.Profile.ID)
	require.Equal(t, "ann@x.com", res.Profile.Email)
	require.Equal(t, "auth0|123", res.AuthProfile.UserID)
	require.Empty(t, prov.deleteCalls, "no compensation on success")
	require.Len(t, repo.created, 1)
}

func TestRegister_LocalPersistFailure_RollsBackRemote(t *testing.T) {
	repo := &fakeRepo{createErr: repository.ErrDuplicateEmail}
	prov := &fakeProvider{createUser: &identity.User{UserID: "auth0|123"}}
	svc := newTestService(repo, prov)

	_, err := svc.Register(context.Background(), validInput())
	require.ErrorIs(t, err, ErrLocalPersistence)
	require.Equal(t, []string{"auth0|123"}, prov.deleteCalls)
}

func TestRegister_LocalFailureHidesStoreError(t *testing.T) {
	storeErr := errors.New("connection reset by peer")
	repo := &fakeRepo{createErr: storeErr}
	prov := &fakeProvider{createUser: &identity.User{UserID: "auth0|9"}}
	svc := newTestService(repo, prov)

	_, err := svc.Register(context.Background(), validInput())
	require.ErrorIs(t, err, ErrLocalPersistence)
	require.NotErrorIs(t, err, storeErr, "raw store error must not leak")
}

func TestRegister_RemoteCreateFailure_NoLocalWriteNoDelete(t *testing.T) {
	repo := &fakeRepo{}
	prov := &fakeProvider{createErr: errors.New("upstream unreachable")}
	svc := newTestService(repo, prov)

	_, err := svc.Register(context.Background(), validInput())
	require.Error(t, err)
	require.Empty(t, repo.created)
	require.Empty(t, prov.deleteCalls)
}

func TestRegister_CompensationFailureSwallowed(t *testing.T) {
	repo := &fakeRepo{createErr: repository.ErrDuplicateEmail}
	prov := &fakeProvider{
		createUser: &identity.User{UserID: "auth0|123"},
		deleteErr:  errors.New("delete rejected"),
	}
	svc := newTestService(repo, prov)

	_, err := svc.Register(context.Background(), validInput())
	require.ErrorIs(t, err, ErrLocalPersistence, "originating error stays visible")
}

func TestRegister_CompensationIdempotent(t *testing.T) {
	// A retried compensation against an already-deleted identity still
	// surfaces only the persistence error.
	repo := &fakeRepo{createErr: repository.ErrDuplicateEmail}
	prov := &fakeProvider{
		createUser: &identity.User{UserID: "auth0|123"},
		deleteErr:  errors.New("user not found"),
	}
	svc := newTestService(repo, prov)

	for i := 0; i < 2; i++ {
		_, err := svc.Register(context.Background(), validInput())
		require.ErrorIs(t, err, ErrLocalPersistence)
	}
	require.Equal(t, []string{"auth0|123", "auth0|123"}, prov.deleteCalls)
}

func TestRegister_CompensationSurvivesCallerCancellation(t *testing.T) {
	repo := &fakeRepo{createErr: repository.ErrDuplicateEmail}
	prov := &fakeProvider{createUser: &identity.User{UserID: "auth0|123"}}
	svc := newTestService(repo, prov)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // caller already gone
	_, err := svc.Register(ctx, validInput())
	require.ErrorIs(t, err, ErrLocalPersistence)
	require.Equal(t, []string{"auth0|123"}, prov.deleteCalls)
	require.NoError(t, prov.deleteCtxErr, "compensation context must be detached from the caller")
}

func loginFixture() (*fakeRepo, *fakeProvider) {
	repo := &fakeRepo{byEmail: map[string]*entity.Profile{
		"ann@x.com": {ID: "p1", Name: "Ann", CompanyName: "Acme", Email: "ann@x.com", PhoneNumber: "5551234567"},
	}}
	prov := &fakeProvider{
		tokens:   &identity.TokenSet{AccessToken: "at", TokenType: "Bearer", ExpiresIn: 86400},
		userInfo: identity.UserInfo{"sub": "auth0|123", "email": "ann@x.com"},
	}
	return repo, prov
}

func TestLogin_Success_WithEnrichment(t *testing.T) {
	repo, prov := loginFixture()
	svc := newTestService(repo, prov)

	res, err := svc.Login(context.Background(), "ann@x.com", "secretpw")
	require.NoError(t, err)
	require.Equal(t, "p1", res.Profile.ID)
	require.Equal(t, "at", res.Tokens.AccessToken)
	require.Equal(t, "auth0|123", res.UserInfo["sub"])
}

func TestLogin_UnknownEmail_NoRemoteCall(t *testing.T) {
	repo := &fakeRepo{}
	prov := &fakeProvider{}
	svc := newTestService(repo, prov)

	_, err := svc.Login(context.Background(), "ghost@x.com", "whatever")
	require.ErrorIs(t, err, ErrProfileNotFound)
	require.Zero(t, prov.loginCalls, "must not authenticate for unknown local profiles")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	repo, prov := loginFixture()
	prov.loginErr = identity.ErrInvalidCredentials
	svc := newTestService(repo, prov)

	_, err := svc.Login(context.Background(), "ann@x.com", "wrong")
	require.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

func TestLogin_ProviderRejection(t *testing.T) {
	repo, prov := loginFixture()
	prov.loginErr = &identity.RequestError{Code: "unauthorized_client", Description: "grant disabled"}
	svc := newTestService(repo, prov)

	_, err := svc.Login(context.Background(), "ann@x.com", "secretpw")
	var reqErr *identity.RequestError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, "unauthorized_client", reqErr.Code)
}

func TestLogin_EnrichmentFailure_StillSucceeds(t *testing.T) {
	repo, prov := loginFixture()
	prov.userInfoErr = identity.ErrUnauthorized
	svc := newTestService(repo, prov)

	res, err := svc.Login(context.Background(), "ann@x.com", "secretpw")
	require.NoError(t, err)
	require.Equal(t, "at", res.Tokens.AccessToken)
	require.Nil(t, res.UserInfo)
}

func TestLogin_NoAccessToken_SkipsEnrichment(t *testing.T) {
	repo, prov := loginFixture()
	prov.tokens = &identity.TokenSet{TokenType: "Bearer"}
	svc := newTestService(repo, prov)

	res, err := svc.Login(context.Background(), "ann@x.com", "secretpw")
	require.NoError(t, err)
	require.Nil(t, res.UserInfo)
	require.Zero(t, prov.userInfoCalls)
}

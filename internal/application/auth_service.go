package application

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sirupsen/logrus"

	"github.com/turnlabs/authgate/internal/domain/entity"
	repo "github.com/turnlabs/authgate/internal/domain/repository"
	"github.com/turnlabs/authgate/internal/identity"
	"github.com/turnlabs/authgate/pkg/helpers"
	"github.com/turnlabs/authgate/pkg/mailer"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	// ErrLocalPersistence is the only error surfaced when the local profile
	// write fails; the store's raw error never reaches the caller.
	ErrLocalPersistence = errors.New("local profile creation failed")
)

// sagaState tracks the registration saga so each transition is observable
// in logs and the compensation path can be asserted in isolation.
type sagaState string

const (
	sagaStarted          sagaState = "started"
	sagaRemoteCreated    sagaState = "remote_created"
	sagaLocallyPersisted sagaState = "locally_persisted"
	sagaRolledBack       sagaState = "rolled_back"
)

// compensationTimeout bounds the compensating delete; it runs detached from
// the caller's context so an abandoned request still rolls back.
const compensationTimeout = 15 * time.Second

// Service orchestrates registration and login across the identity provider
// and the local profile store. Rabbit/ES collaborators are optional and
// strictly best-effort.
type Service struct {
	Repo            repo.ProfileRepository
	Provider        identity.Provider
	Logger          *logrus.Logger
	Pub             *helpers.RabbitPublisher
	ES              *elasticsearch.Client
	ESProfilesIndex string
	MailEnabled     bool
}

func NewService(repository repo.ProfileRepository, provider identity.Provider, logger *logrus.Logger, pub *helpers.RabbitPublisher, es *elasticsearch.Client, esProfilesIndex string, mailEnabled bool) *Service {
	return &Service{
		Repo:            repository,
		Provider:        provider,
		Logger:          logger,
		Pub:             pub,
		ES:              es,
		ESProfilesIndex: esProfilesIndex,
		MailEnabled:     mailEnabled,
	}
}

type RegisterInput struct {
	Name        string
	CompanyName string
	LastName    string
	Email       string
	PhoneNumber string
	Password    string
}

type RegistrationResult struct {
	Profile     *entity.Profile
	AuthProfile *identity.User
}

type LoginResult struct {
	Profile  *entity.Profile
	Tokens   *identity.TokenSet
	UserInfo identity.UserInfo
}

// Register runs the create-user saga: remote identity first, local profile
// second, compensating remote delete if the local write fails. There is no
// shared transaction between the two stores; this ordering plus the
// compensation keeps them consistent under partial failure.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*RegistrationResult, error) {
	state := sagaStarted
	s.logSaga(state, logrus.InfoLevel, "registration requested", helpers.MaskFields(logrus.Fields{
		"name":        in.Name,
		"companyName": in.CompanyName,
		"email":       in.Email,
		"phoneNumber": in.PhoneNumber,
		"password":    in.Password,
	}, "password"))

	remote, err := s.Provider.CreateUser(ctx, identity.CreateUserInput{
		Email:       in.Email,
		Password:    in.Password,
		Name:        in.Name,
		LastName:    in.LastName,
		CompanyName: in.CompanyName,
		PhoneNumber: in.PhoneNumber,
	})
	if err != nil {
		// nothing was created; fail without compensation
		return nil, err
	}
	state = sagaRemoteCreated
	s.logSaga(state, logrus.InfoLevel, "remote identity created", logrus.Fields{"user_id": remote.UserID, "email": in.Email})

	p := &entity.Profile{
		Name:        in.Name,
		CompanyName: in.CompanyName,
		LastName:    in.LastName,
		Email:       in.Email,
		PhoneNumber: in.PhoneNumber,
	}
	if err := s.Repo.Create(ctx, p); err != nil {
		state = sagaRolledBack
		s.compensate(ctx, remote.UserID)
		if s.Logger != nil {
			s.Logger.WithError(err).WithFields(logrus.Fields{"saga": string(state), "user_id": remote.UserID}).
				Error("local profile creation failed, rolled back remote identity")
		}
		return nil, ErrLocalPersistence
	}
	state = sagaLocallyPersisted
	s.logSaga(state, logrus.InfoLevel, "registration completed", logrus.Fields{"profile_id": p.ID, "user_id": remote.UserID})

	// best-effort side effects; never fail the registration
	s.indexProfile(ctx, p)
	s.enqueueWelcome(ctx, p)

	return &RegistrationResult{Profile: p, AuthProfile: remote}, nil
}

// compensate deletes the remote identity created earlier in the saga.
// It runs on a detached context: once the remote create committed, the
// rollback must complete even if the caller has gone away. Failures are
// swallowed so the originating error stays visible.
func (s *Service) compensate(ctx context.Context, userID string) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	_ = s.Provider.DeleteUser(dctx, userID)
}

// Login cross-references the local profile store and the identity provider.
// A local miss fails fast without touching the provider; a failed userinfo
// fetch after successful authentication only drops the enrichment field.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if s.Logger != nil {
		s.Logger.WithFields(helpers.MaskFields(logrus.Fields{
			"username": username,
			"password": password,
		}, "password")).Info("login requested")
	}

	p, err := s.Repo.GetByEmail(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	tokens, err := s.Provider.LoginWithPassword(ctx, username, password)
	if err != nil {
		return nil, err
	}

	res := &LoginResult{Profile: p, Tokens: tokens}
	if tokens.AccessToken != "" {
		info, err := s.Provider.GetUserInfo(ctx, tokens.AccessToken)
		if err != nil {
			if s.Logger != nil {
				s.Logger.WithError(err).WithField("email", username).Warn("userinfo enrichment failed")
			}
		} else {
			res.UserInfo = info
		}
	}
	return res, nil
}

func (s *Service) logSaga(state sagaState, level logrus.Level, msg string, fields logrus.Fields) {
	if s.Logger == nil {
		return
	}
	if fields == nil {
		fields = logrus.Fields{}
	}
	fields["saga"] = string(state)
	s.Logger.WithFields(fields).Log(level, msg)
}

func (s *Service) enqueueWelcome(ctx context.Context, p *entity.Profile) {
	if s.Pub == nil || !s.MailEnabled {
		return
	}
	job := mailer.EmailJob{
		To:       p.Email,
		Template: "welcome",
		Data: map[string]any{
			"Name":        p.Name,
			"CompanyName": p.CompanyName,
			"Email":       p.Email,
		},
	}
	if err := s.Pub.PublishJSON(ctx, job); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("email", p.Email).Warn("welcome email enqueue failed")
	}
}

func (s *Service) indexProfile(ctx context.Context, p *entity.Profile) {
	if s.ES == nil || s.ESProfilesIndex == "" {
		return
	}
	doc := map[string]any{
		"id":           p.ID,
		"email":        p.Email,
		"name":         p.Name,
		"company_name": p.CompanyName,
		"created_at":   p.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":   p.UpdatedAt.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESProfilesIndex, DocumentID: p.ID, Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("profile_id", p.ID).Warn("es index failed")
		}
		return
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("profile_id", p.ID).Warn("es index response error")
	}
}

// SearchProfiles performs a simple multi_match search on email, name and company.
func (s *Service) SearchProfiles(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESProfilesIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2", "name", "company_name"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(s.ES.Search.WithContext(c), s.ES.Search.WithIndex(s.ESProfilesIndex), s.ES.Search.WithBody(strings.NewReader(string(b))))
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

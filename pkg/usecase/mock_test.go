package usecase_test

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/proteus/pkg/domain/interfaces"
	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/domain/types"
	"github.com/secmon-lab/proteus/pkg/repository/memory"
	slacksvc "github.com/secmon-lab/proteus/pkg/service/slack"
)

// mockSlackService records calls and fails for configured tokens
type mockSlackService struct {
	mu          sync.Mutex
	photos      map[types.AccessToken][]slacksvc.PhotoCrop
	failTokens  map[types.AccessToken]bool
	published   [][]byte
	publishedBy []types.AccessToken
	publishErr  error
	oauth       *slacksvc.OAuthResult
	oauthErr    error
	delay       time.Duration
	inFlight    int
	maxInFlight int
}

func newMockSlackService() *mockSlackService {
	return &mockSlackService{
		photos:     make(map[types.AccessToken][]slacksvc.PhotoCrop),
		failTokens: make(map[types.AccessToken]bool),
	}
}

func (m *mockSlackService) SetUserPhoto(ctx context.Context, token types.AccessToken, img []byte, crop slacksvc.PhotoCrop) error {
	m.mu.Lock()
	m.inFlight++
	m.maxInFlight = max(m.maxInFlight, m.inFlight)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTokens[token] {
		return goerr.Wrap(model.ErrUpstream, "users.setPhoto failed", goerr.V("cause", "invalid_auth"))
	}
	m.photos[token] = append(m.photos[token], crop)
	return nil
}

func (m *mockSlackService) PublishHomeTab(ctx context.Context, token types.AccessToken, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, doc)
	m.publishedBy = append(m.publishedBy, token)
	return nil
}

func (m *mockSlackService) ExchangeOAuthCode(ctx context.Context, code, redirectURI string) (*slacksvc.OAuthResult, error) {
	if m.oauthErr != nil {
		return nil, m.oauthErr
	}
	return m.oauth, nil
}

func (m *mockSlackService) AuthorizeURL(redirectURI string) string {
	return "https://slack.com/oauth/v2/authorize?redirect_uri=" + redirectURI
}

func (m *mockSlackService) photoCount(token types.AccessToken) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.photos[token])
}

func (m *mockSlackService) publishCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}

// sourceFunc adapts a function to avatar.Source
type sourceFunc func(ctx context.Context) ([]byte, error)

func (f sourceFunc) Fetch(ctx context.Context) ([]byte, error) {
	return f(ctx)
}

func staticSource(data []byte) sourceFunc {
	return func(ctx context.Context) ([]byte, error) {
		return data, nil
	}
}

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	gt.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)))).Required()
	return buf.Bytes()
}

// faultyRepository wraps the memory repository and injects store failures
type faultyRepository struct {
	*memory.Memory
	users *faultyUserRepository
}

type faultyUserRepository struct {
	interfaces.UserRepository
	mu         sync.Mutex
	failList   bool
	failUpsert map[model.UserKey]bool
}

func newFaultyRepository() *faultyRepository {
	mem := memory.New()
	return &faultyRepository{
		Memory: mem,
		users: &faultyUserRepository{
			UserRepository: mem.User(),
			failUpsert:     make(map[model.UserKey]bool),
		},
	}
}

func (r *faultyRepository) User() interfaces.UserRepository {
	return r.users
}

func (r *faultyUserRepository) ListValid(ctx context.Context) ([]*model.User, error) {
	if r.failList {
		return nil, goerr.New("connection refused")
	}
	return r.UserRepository.ListValid(ctx)
}

func (r *faultyUserRepository) Upsert(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	fail := r.failUpsert[user.Key()]
	r.mu.Unlock()
	if fail {
		return goerr.New("write conflict")
	}
	return r.UserRepository.Upsert(ctx, user)
}

func putUser(t *testing.T, repo interfaces.Repository, user *model.User) {
	t.Helper()
	gt.NoError(t, repo.User().Upsert(context.Background(), user)).Required()
}

func getUser(t *testing.T, repo interfaces.Repository, team model.SlackTeamID, id model.SlackUserID) *model.User {
	t.Helper()
	u, err := repo.User().Get(context.Background(), model.UserKey{TeamID: team, UserID: id})
	gt.NoError(t, err).Required()
	return u
}

package usecase

import (
	"time"

	"github.com/secmon-lab/proteus/pkg/domain/interfaces"
	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/domain/types"
	"github.com/secmon-lab/proteus/pkg/service/avatar"
	"github.com/secmon-lab/proteus/pkg/service/metrics"
	slacksvc "github.com/secmon-lab/proteus/pkg/service/slack"
	"github.com/secmon-lab/proteus/pkg/service/view"
)

const (
	// DefaultConcurrency is the number of users rotated in parallel within a tick
	DefaultConcurrency = 8

	// DefaultStoreTimeout bounds a single store read or write
	DefaultStoreTimeout = 10 * time.Second

	// InteractionBudget bounds the store work of an interaction so Slack gets its
	// acknowledgement within 3 seconds
	InteractionBudget = 2 * time.Second
)

type UseCases struct {
	repo         interfaces.Repository
	slackService slacksvc.Service
	source       avatar.Source
	table        *model.FrequencyTable
	templates    view.Templates
	metrics      *metrics.Metrics
	botToken     types.AccessToken
	concurrency  int
	storeTimeout time.Duration
	normalize    []avatar.NormalizeOption
	clock        func() time.Time
	renderer     *view.Renderer

	Avatar      *AvatarUseCase
	HomeTab     *HomeTabUseCase
	Interaction *InteractionUseCase
	Install     *InstallUseCase
	User        *UserUseCase
}

type Option func(*UseCases)

// WithImageSource sets where new avatars come from
func WithImageSource(src avatar.Source) Option {
	return func(uc *UseCases) {
		uc.source = src
	}
}

func WithFrequencyTable(table *model.FrequencyTable) Option {
	return func(uc *UseCases) {
		uc.table = table
	}
}

func WithTemplates(tmpl view.Templates) Option {
	return func(uc *UseCases) {
		uc.templates = tmpl
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(uc *UseCases) {
		uc.metrics = m
	}
}

// WithBotToken sets the bot token used for workspaces without a stored install
func WithBotToken(token types.AccessToken) Option {
	return func(uc *UseCases) {
		uc.botToken = token
	}
}

func WithConcurrency(n int) Option {
	return func(uc *UseCases) {
		if n > 0 {
			uc.concurrency = n
		}
	}
}

func WithStoreTimeout(d time.Duration) Option {
	return func(uc *UseCases) {
		if d > 0 {
			uc.storeTimeout = d
		}
	}
}

func WithNormalizeOptions(opts ...avatar.NormalizeOption) Option {
	return func(uc *UseCases) {
		uc.normalize = opts
	}
}

// WithClock replaces time.Now, for tests
func WithClock(clock func() time.Time) Option {
	return func(uc *UseCases) {
		uc.clock = clock
	}
}

func New(repo interfaces.Repository, slackService slacksvc.Service, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:         repo,
		slackService: slackService,
		table:        model.DefaultFrequencyTable(),
		templates:    view.DefaultTemplates(),
		concurrency:  DefaultConcurrency,
		storeTimeout: DefaultStoreTimeout,
		clock:        time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	if uc.source == nil {
		uc.source = avatar.NewHTTPSource(avatar.DefaultSourceURL)
	}

	uc.Avatar = NewAvatarUseCase(repo, uc.source, slackService, AvatarSettings{
		Concurrency:  uc.concurrency,
		StoreTimeout: uc.storeTimeout,
		Metrics:      uc.metrics,
		Normalize:    uc.normalize,
		Clock:        uc.clock,
	})
	uc.renderer = view.NewRenderer(uc.table, uc.templates)
	uc.HomeTab = NewHomeTabUseCase(repo, slackService, uc.renderer, uc.botToken)
	uc.Interaction = NewInteractionUseCase(repo, uc.table, uc.HomeTab, uc.metrics, uc.clock)
	uc.Install = NewInstallUseCase(repo, slackService, uc.clock)
	uc.User = NewUserUseCase(repo, uc.clock)

	return uc
}

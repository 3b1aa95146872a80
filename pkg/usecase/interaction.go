package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/domain/interfaces"
	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/service/metrics"
	"github.com/secmon-lab/proteus/pkg/service/view"
	"github.com/secmon-lab/proteus/pkg/utils/async"
	"github.com/secmon-lab/proteus/pkg/utils/errutil"
	"github.com/secmon-lab/proteus/pkg/utils/logging"
	"github.com/slack-go/slack"
)

// InteractionOutcome is what became of an interaction payload
type InteractionOutcome string

const (
	// OutcomeRejected means the envelope could not be parsed or is not a block action
	OutcomeRejected InteractionOutcome = "rejected"
	// OutcomeIgnored means the envelope was fine but carried nothing to apply
	OutcomeIgnored InteractionOutcome = "ignored"
	// OutcomeUnchanged means the selected value is not a known cadence
	OutcomeUnchanged InteractionOutcome = "unchanged"
	// OutcomeUpdated means the user's cadence was changed
	OutcomeUpdated InteractionOutcome = "updated"
)

// Acknowledged reports whether Slack should receive a 2xx for this outcome
func (o InteractionOutcome) Acknowledged() bool {
	return o != OutcomeRejected
}

// InteractionUseCase applies cadence changes made in the Home tab
type InteractionUseCase struct {
	repo    interfaces.Repository
	table   *model.FrequencyTable
	homeTab *HomeTabUseCase
	metrics *metrics.Metrics
	clock   func() time.Time
}

func NewInteractionUseCase(repo interfaces.Repository, table *model.FrequencyTable, homeTab *HomeTabUseCase, m *metrics.Metrics, clock func() time.Time) *InteractionUseCase {
	if clock == nil {
		clock = time.Now
	}
	return &InteractionUseCase{
		repo:    repo,
		table:   table,
		homeTab: homeTab,
		metrics: m,
		clock:   clock,
	}
}

// HandleInteraction processes a form-encoded block_actions request body
func (uc *InteractionUseCase) HandleInteraction(ctx context.Context, rawBody []byte) InteractionOutcome {
	outcome := uc.handle(ctx, rawBody)
	uc.metrics.IncInteraction(string(outcome))
	return outcome
}

func (uc *InteractionUseCase) handle(ctx context.Context, rawBody []byte) InteractionOutcome {
	logger := logging.From(ctx)

	callback, actions, err := parseBlockActions(rawBody)
	if err != nil {
		logger.Warn("interaction rejected", "error", err.Error())
		return OutcomeRejected
	}

	var action *slack.BlockAction
	for _, a := range actions {
		if a != nil && a.ActionID == view.FrequencyActionID {
			action = a
			break
		}
	}
	if action == nil {
		logger.Debug("interaction has no frequency action")
		return OutcomeIgnored
	}

	userID := model.SlackUserID(callback.User.ID)
	teamID := model.SlackTeamID(callback.User.TeamID)
	if teamID == "" {
		teamID = model.SlackTeamID(callback.Team.ID)
	}
	value := action.SelectedOption.Value
	if value == "" {
		value = action.Value
	}
	if userID == "" || teamID == "" || value == "" {
		logger.Warn("interaction lacks user, team or value",
			"user_id", userID,
			"team_id", teamID,
			"value", value)
		return OutcomeIgnored
	}

	key := model.UserKey{TeamID: teamID, UserID: userID}
	logger = logger.With("key", key.String())
	ctx = logging.With(ctx, logger)

	storeCtx, cancel := context.WithTimeout(ctx, InteractionBudget)
	defer cancel()

	user, err := uc.repo.User().Get(storeCtx, key)
	if err != nil {
		if !errors.Is(err, interfaces.ErrNotFound) {
			_ = errutil.Handle(ctx, err, "failed to look up interacting user")
		}
		return OutcomeIgnored
	}

	seconds, err := strconv.Atoi(value)
	if err != nil || !uc.table.Contains(seconds) {
		logger.Warn("selected frequency is not an option", "value", value)
		return OutcomeUnchanged
	}

	user.UpdateFrequencySeconds = seconds
	user.UpdatedAt = uc.clock()
	if err := uc.repo.User().Upsert(storeCtx, user); err != nil {
		_ = errutil.Handle(ctx, goerr.Wrap(model.ErrPersistence, "failed to save frequency",
			goerr.V("key", key.String()),
			goerr.V("cause", err.Error())), "frequency change not persisted")
	} else {
		logger.Info("frequency updated", "frequency", seconds)
	}

	if uc.homeTab != nil {
		async.Dispatch(ctx, func(ctx context.Context) error {
			return uc.homeTab.Publish(ctx, teamID, userID)
		})
	}

	return OutcomeUpdated
}

// parseBlockActions extracts the interaction from the "payload" form field. Actions are decoded
// as block actions directly since slack-go only does so when every action carries a block_id.
func parseBlockActions(rawBody []byte) (*slack.InteractionCallback, []*slack.BlockAction, error) {
	if len(strings.TrimSpace(string(rawBody))) == 0 {
		return nil, nil, goerr.Wrap(model.ErrValidation, "empty body")
	}

	form, err := url.ParseQuery(string(rawBody))
	if err != nil {
		return nil, nil, goerr.Wrap(model.ErrValidation, "body is not form encoded", goerr.V("cause", err.Error()))
	}

	payload := form.Get("payload")
	if payload == "" {
		return nil, nil, goerr.Wrap(model.ErrValidation, "payload field is missing")
	}

	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(payload), &callback); err != nil {
		return nil, nil, goerr.Wrap(model.ErrValidation, "payload is not valid JSON", goerr.V("cause", err.Error()))
	}

	var envelope struct {
		Actions []*slack.BlockAction `json:"actions"`
	}
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		return nil, nil, goerr.Wrap(model.ErrValidation, "payload actions are malformed", goerr.V("cause", err.Error()))
	}

	if !strings.EqualFold(string(callback.Type), string(slack.InteractionTypeBlockActions)) {
		return nil, nil, goerr.Wrap(model.ErrValidation, "payload is not block_actions", goerr.V("type", callback.Type))
	}
	if len(envelope.Actions) == 0 {
		return nil, nil, goerr.Wrap(model.ErrValidation, "payload has no actions")
	}

	return &callback, envelope.Actions, nil
}

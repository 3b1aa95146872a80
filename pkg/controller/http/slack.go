package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/usecase"
	"github.com/secmon-lab/proteus/pkg/utils/async"
	"github.com/secmon-lab/proteus/pkg/utils/errutil"
	"github.com/secmon-lab/proteus/pkg/utils/logging"
	"github.com/secmon-lab/proteus/pkg/utils/safe"
	"github.com/slack-go/slack/slackevents"
)

// slackEventHandler handles Slack Events API webhook requests
func slackEventHandler(homeTab *usecase.HomeTabUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
		if err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
			return
		}

		eventsAPIEvent, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
		if err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to parse slack event"), http.StatusBadRequest)
			return
		}

		switch eventsAPIEvent.Type {
		case slackevents.URLVerification:
			var challenge slackevents.ChallengeResponse
			if err := json.Unmarshal(body, &challenge); err != nil {
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to unmarshal challenge"), http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusOK)
			safe.Write(ctx, w, []byte(challenge.Challenge))

		case slackevents.CallbackEvent:
			// Slack expects an answer within 3 seconds, publishing happens afterwards
			w.WriteHeader(http.StatusOK)

			ev, ok := eventsAPIEvent.InnerEvent.Data.(*slackevents.AppHomeOpenedEvent)
			if !ok {
				return
			}
			if ev.Tab != "" && ev.Tab != "home" {
				return
			}

			teamID := model.SlackTeamID(eventsAPIEvent.TeamID)
			userID := model.SlackUserID(ev.User)
			async.Dispatch(ctx, func(ctx context.Context) error {
				logging.From(ctx).Debug("app home opened", "team_id", teamID, "user_id", userID)
				if err := homeTab.Publish(ctx, teamID, userID); err != nil {
					return goerr.Wrap(err, "failed to publish home tab",
						goerr.V("team_id", teamID),
						goerr.V("user_id", userID))
				}
				return nil
			})

		default:
			logging.From(ctx).Warn("unknown slack event type", "type", eventsAPIEvent.Type)
			w.WriteHeader(http.StatusOK)
		}
	}
}

package http

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/usecase"
	"github.com/secmon-lab/proteus/pkg/utils/errutil"
	"github.com/secmon-lab/proteus/pkg/utils/logging"
)

var installedPage = template.Must(template.New("installed").Parse(`<html><head><meta http-equiv="Refresh" content="0; URL={{.}}" /><title>proteus</title></head>` +
	`<body><p style="text-align: center;">proteus is installed. <a href="{{.}}">Click here</a> to open Slack.</p></body></html>`))

// appHomeLink deep-links into the app's Home tab
func appHomeLink(teamID model.SlackTeamID, userID model.SlackUserID) template.URL {
	q := url.Values{}
	q.Set("team", string(teamID))
	q.Set("id", string(userID))
	q.Set("tab", "home")
	return template.URL("slack://app?" + q.Encode()) // #nosec G203 -- built from encoded query values
}

// installHandler redirects to Slack's OAuth v2 consent page
func installHandler(install *usecase.InstallUseCase, redirectURI string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, install.AuthorizeURL(redirectURI), http.StatusTemporaryRedirect)
	}
}

// installCallbackHandler completes the OAuth v2 flow and sends the user to the Home tab
func installCallbackHandler(install *usecase.InstallUseCase, redirectURI string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if denied := r.URL.Query().Get("error"); denied != "" {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(model.ErrValidation, "install was not approved",
				goerr.V("error", denied)), http.StatusBadRequest)
			return
		}

		code := r.URL.Query().Get("code")
		if code == "" {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(model.ErrValidation, "authorization code is missing"), http.StatusBadRequest)
			return
		}

		result, err := install.Complete(ctx, code, redirectURI)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, model.ErrUpstream) || errors.Is(err, model.ErrValidation) {
				status = http.StatusBadRequest
			}
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to complete install"), status)
			return
		}

		logging.From(ctx).Info("install completed", "team_id", result.TeamID, "user_id", result.UserID)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if err := installedPage.Execute(w, appHomeLink(result.TeamID, result.UserID)); err != nil {
			logging.From(ctx).Error("failed to write install page", "error", err)
		}
	}
}

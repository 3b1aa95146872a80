package http

import (
	"io"
	"net/http"

	"github.com/secmon-lab/proteus/pkg/usecase"
	"github.com/secmon-lab/proteus/pkg/utils/logging"
)

// slackInteractionHandler applies Home tab selections. The raw form body goes to the use case
// untouched; anything it rejects is answered with a bare 500.
func slackInteractionHandler(interaction *usecase.InteractionUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
		if err != nil {
			logging.From(ctx).Warn("failed to read interaction body", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		outcome := interaction.HandleInteraction(ctx, body)
		if !outcome.Acknowledged() {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/slack-go/slack"

	apperrors "github.com/spec-kit/helpdesk-router/pkg/util/errorutil"
)

// SlackSignature rejects requests that were not signed with the app's
// signing secret or whose timestamp is more than five minutes off.
func SlackSignature(signingSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := http.Header{}
		header.Set("X-Slack-Request-Timestamp", c.Get("X-Slack-Request-Timestamp"))
		header.Set("X-Slack-Signature", c.Get("X-Slack-Signature"))

		verifier, err := slack.NewSecretsVerifier(header, signingSecret)
		if errors.Is(err, slack.ErrExpiredTimestamp) {
			return apperrors.NewUnauthorized("stale request")
		}
		if err != nil {
			return apperrors.NewUnauthorized("invalid signature headers")
		}
		if _, err := verifier.Write(c.Body()); err != nil {
			return apperrors.NewInternalError(err)
		}
		if err := verifier.Ensure(); err != nil {
			return apperrors.NewUnauthorized("invalid signature")
		}
		return c.Next()
	}
}

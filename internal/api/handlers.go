package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/taskpilot/internal/api/auth"
	"github.com/taskpilot/internal/chat"
	"github.com/taskpilot/pkg/models"
)

// TurnRequest is the body of POST /api/v1/users/:user_id/turns.
type TurnRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// TurnResponse is returned for every accepted turn, degraded or not.
type TurnResponse struct {
	Reply          string `json:"reply"`
	ConversationID string `json:"conversation_id"`
	Degraded       bool   `json:"degraded,omitempty"`
}

// MessagesResponse lists a conversation's messages in order.
type MessagesResponse struct {
	ConversationID string           `json:"conversation_id"`
	Messages       []models.Message `json:"messages"`
}

// handleSendTurn runs one conversational turn for the authenticated user.
func (s *Server) handleSendTurn(c echo.Context) error {
	userID, err := s.verifyPathIdentity(c)
	if err != nil {
		return err
	}

	var req TurnRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	out, err := s.orchestrator.HandleTurn(c.Request().Context(), chat.TurnInput{
		UserID:         userID,
		ConversationID: req.ConversationID,
		Message:        req.Message,
	})
	if err != nil {
		return mapDomainError(err)
	}

	return c.JSON(http.StatusOK, TurnResponse{
		Reply:          out.Reply,
		ConversationID: out.ConversationID,
		Degraded:       out.Degraded,
	})
}

// handleListMessages returns the persisted timeline. Conversations owned by
// other users are indistinguishable from missing ones.
func (s *Server) handleListMessages(c echo.Context) error {
	userID, err := s.verifyPathIdentity(c)
	if err != nil {
		return err
	}

	conversationID := c.Param("id")
	if conversationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Conversation id required")
	}

	ctx := c.Request().Context()
	if _, err := s.store.LoadConversation(ctx, conversationID, userID); err != nil {
		return mapDomainError(err)
	}

	messages, err := s.store.LoadMessages(ctx, conversationID)
	if err != nil {
		return mapDomainError(err)
	}
	if messages == nil {
		messages = []models.Message{}
	}

	return c.JSON(http.StatusOK, MessagesResponse{
		ConversationID: conversationID,
		Messages:       messages,
	})
}

// verifyPathIdentity checks the :user_id path segment against the verified
// token identity. Acting on another user's behalf is forbidden.
func (s *Server) verifyPathIdentity(c echo.Context) (string, error) {
	verified := auth.VerifiedUserID(c)
	if verified == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}
	pathUserID := c.Param("user_id")
	if pathUserID != verified {
		return "", echo.NewHTTPError(http.StatusForbidden, "Cannot act on behalf of another user")
	}
	return verified, nil
}

// mapDomainError converts domain error kinds to HTTP responses. Ownership
// failures map to 404 so callers cannot probe for other users' data.
func mapDomainError(err error) error {
	switch models.KindOf(err) {
	case models.KindValidation:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case models.KindNotFound, models.KindUnauthorized:
		return echo.NewHTTPError(http.StatusNotFound, "Conversation not found")
	case models.KindUnauthenticated:
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	case models.KindForbidden:
		return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
	case models.KindServiceUnavailable:
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Service temporarily unavailable")
	case models.KindTimeout:
		return echo.NewHTTPError(http.StatusGatewayTimeout, "Upstream timed out")
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	log.Error().Err(err).Msg("unhandled error in request")
	return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
}

package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/athena/store"
)

// DigestResponse is the API shape of a weekly digest.
type DigestResponse struct {
	ID                string    `json:"id"`
	WeekStart         time.Time `json:"week_start"`
	WeekEnd           time.Time `json:"week_end"`
	ConversationCount int       `json:"conversation_count"`
	TopTopics         []string  `json:"top_topics,omitempty"`
	Content           string    `json:"content"`
	CreatedAt         time.Time `json:"created_at"`
}

func toDigestResponse(digest *store.WeeklyDigest) *DigestResponse {
	return &DigestResponse{
		ID:                digest.ID,
		WeekStart:         digest.WeekStart,
		WeekEnd:           digest.WeekEnd,
		ConversationCount: digest.ConversationCount,
		TopTopics:         digest.TopTopics,
		Content:           digest.Content,
		CreatedAt:         digest.CreatedAt,
	}
}

// AlertResponse is the API shape of an insight alert.
type AlertResponse struct {
	ID                     string    `json:"id"`
	AlertType              string    `json:"alert_type"`
	Title                  string    `json:"title"`
	Content                string    `json:"content"`
	RelatedConversationIDs []string  `json:"related_conversation_ids,omitempty"`
	Severity               string    `json:"severity"`
	CreatedAt              time.Time `json:"created_at"`
}

// GetLatestDigest returns the most recent weekly digest.
func (s *APIV1Service) GetLatestDigest(c echo.Context) error {
	if s.Insights == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "AI features are not configured")
	}

	digest, err := s.Insights.LatestDigest(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load digest")
	}
	if digest == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no digest generated yet")
	}
	return c.JSON(http.StatusOK, toDigestResponse(digest))
}

// GenerateDigest generates a new weekly digest on demand. Only one
// generation runs at a time; concurrent requests get 409.
func (s *APIV1Service) GenerateDigest(c echo.Context) error {
	if s.Insights == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "AI features are not configured")
	}
	if !s.digestSemaphore.TryAcquire(1) {
		return echo.NewHTTPError(http.StatusConflict, "digest generation already in progress")
	}
	defer s.digestSemaphore.Release(1)

	digest, err := s.Insights.GenerateWeeklyDigest(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate digest")
	}
	if digest == nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "skipped", "reason": "no conversations in the past week"})
	}
	return c.JSON(http.StatusCreated, toDigestResponse(digest))
}

// ListAlerts returns undismissed insight alerts, newest first.
func (s *APIV1Service) ListAlerts(c echo.Context) error {
	if s.Insights == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "AI features are not configured")
	}

	alerts, err := s.Insights.PendingAlerts(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list alerts")
	}

	response := make([]AlertResponse, 0, len(alerts))
	for _, alert := range alerts {
		response = append(response, AlertResponse{
			ID:                     alert.ID,
			AlertType:              alert.AlertType,
			Title:                  alert.Title,
			Content:                alert.Content,
			RelatedConversationIDs: alert.RelatedConversationIDs,
			Severity:               alert.Severity,
			CreatedAt:              alert.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, response)
}

// DismissAlert marks an alert as handled.
func (s *APIV1Service) DismissAlert(c echo.Context) error {
	if s.Insights == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "AI features are not configured")
	}

	if err := s.Insights.DismissAlert(c.Request().Context(), c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to dismiss alert")
	}
	return c.NoContent(http.StatusNoContent)
}

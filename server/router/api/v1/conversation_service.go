package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/athena/ai/memory"
	"github.com/hrygo/athena/ai/retrieval"
	"github.com/hrygo/athena/store"
)

// SaveConversationRequest is the body of POST /api/v1/conversations.
type SaveConversationRequest struct {
	ConversationID string                    `json:"conversation_id"`
	Messages       []SaveConversationMessage `json:"messages"`
}

// SaveConversationMessage is one transcript turn to persist.
type SaveConversationMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	Tokens    int       `json:"tokens,omitempty"`
}

// ConversationResponse is the API shape of a stored conversation.
type ConversationResponse struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Transcript     string    `json:"transcript"`
	ConversationID string    `json:"conversation_id"`
	TurnNumber     int       `json:"turn_number"`
	Topics         []string  `json:"topics,omitempty"`
	Embedded       bool      `json:"embedded"`
	CreatedAt      time.Time `json:"created_at"`
}

func toConversationResponse(conversation *store.Conversation) *ConversationResponse {
	return &ConversationResponse{
		ID:             conversation.ID,
		Title:          conversation.Title,
		Transcript:     conversation.Transcript,
		ConversationID: conversation.Metadata.ConversationID,
		TurnNumber:     conversation.Metadata.TurnNumber,
		Topics:         conversation.Metadata.Topics,
		Embedded:       len(conversation.Embedding) > 0,
		CreatedAt:      conversation.CreatedAt,
	}
}

// SaveConversation persists a finished session as a memory record.
func (s *APIV1Service) SaveConversation(c echo.Context) error {
	if s.Saver == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "AI features are not configured")
	}

	var req SaveConversationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if len(req.Messages) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "messages are required")
	}

	messages := make([]memory.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, memory.Message{
			Role:      msg.Role,
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
			Tokens:    msg.Tokens,
		})
	}

	conversation, err := s.Saver.Save(c.Request().Context(), messages, req.ConversationID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save conversation")
	}
	return c.JSON(http.StatusCreated, toConversationResponse(conversation))
}

// GetConversation returns one stored conversation by ID.
func (s *APIV1Service) GetConversation(c echo.Context) error {
	id := c.Param("id")
	conversation, err := s.Store.GetConversation(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load conversation")
	}
	if conversation == nil {
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}
	return c.JSON(http.StatusOK, toConversationResponse(conversation))
}

// RetrieveRequest is the body of POST /api/v1/retrieve.
type RetrieveRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id"`
	TurnNumber     int    `json:"turn_number"`
	TopK           int    `json:"top_k,omitempty"`
}

// RetrievedDocument is the API shape of one retrieval result.
type RetrievedDocument struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Score     float32   `json:"score"`
	TimeBoost float32   `json:"time_boost,omitempty"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// RetrieveMemories exposes hybrid retrieval directly, mainly for debugging
// and for clients that render memories themselves.
func (s *APIV1Service) RetrieveMemories(c echo.Context) error {
	if s.Retriever == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "AI features are not configured")
	}

	var req RetrieveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	documents := s.Retriever.Retrieve(c.Request().Context(), &retrieval.Request{
		Query:          req.Query,
		ConversationID: req.ConversationID,
		TurnNumber:     req.TurnNumber,
		TopK:           req.TopK,
	})

	response := make([]RetrievedDocument, 0, len(documents))
	for _, doc := range documents {
		response = append(response, RetrievedDocument{
			ID:        doc.ID,
			Title:     doc.Title,
			Content:   doc.Content,
			Score:     doc.Score,
			TimeBoost: doc.TimeBoost,
			Source:    string(doc.Source),
			Timestamp: doc.Timestamp,
		})
	}
	return c.JSON(http.StatusOK, response)
}

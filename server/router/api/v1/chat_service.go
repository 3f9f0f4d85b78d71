package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/athena/ai"
	"github.com/hrygo/athena/ai/retrieval"
)

// ChatMessage is one turn of the live session history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Message        string        `json:"message"`
	ConversationID string        `json:"conversation_id"`
	TurnNumber     int           `json:"turn_number"`
	History        []ChatMessage `json:"history,omitempty"`
}

// ChatEvent is one server-sent event of the chat stream.
type ChatEvent struct {
	Type    string `json:"type"` // memory, content, error, done
	Content string `json:"content,omitempty"`
	Count   int    `json:"count,omitempty"`
}

// Chat answers a user message over SSE. Memory retrieval feeds the system
// prompt; queries asking for live market data are routed to the realtime
// provider and never answered from stale knowledge.
func (s *APIV1Service) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	if req.TurnNumber < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "turn_number cannot be negative")
	}
	if s.LLMService == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "AI features are not configured")
	}

	ctx := c.Request().Context()
	start := time.Now()

	live, err := s.Realtime.Route(ctx, req.Message)
	if err != nil {
		// Enforced routing: a live-data question with no live data gets
		// no answer at all.
		s.recordChat("realtime", start, false)
		return echo.NewHTTPError(http.StatusBadGateway, "real-time data unavailable")
	}
	if live.RequiresLive {
		s.recordChat("realtime", start, true)
		return streamEvents(c, func(send func(ChatEvent) error) error {
			if err := send(ChatEvent{Type: "content", Content: live.Answer}); err != nil {
				return err
			}
			return send(ChatEvent{Type: "done"})
		})
	}

	documents := s.retrieveMemories(ctx, &req)
	messages := buildChatMessages(&req, documents, s.Profile.SessionHistoryLimit)

	contentCh, errCh := s.LLMService.ChatStream(ctx, messages)

	s.checkContradictionAsync(req.Message, req.ConversationID)

	return streamEvents(c, func(send func(ChatEvent) error) error {
		if err := send(ChatEvent{Type: "memory", Count: len(documents)}); err != nil {
			return err
		}
		for chunk := range contentCh {
			if err := send(ChatEvent{Type: "content", Content: chunk}); err != nil {
				return err
			}
		}
		if err := <-errCh; err != nil {
			s.recordChat("chat", start, false)
			slog.ErrorContext(ctx, "chat stream failed", "error", err)
			return send(ChatEvent{Type: "error", Content: "generation failed"})
		}
		s.recordChat("chat", start, true)
		return send(ChatEvent{Type: "done"})
	})
}

func (s *APIV1Service) retrieveMemories(ctx context.Context, req *ChatRequest) []retrieval.Document {
	if s.Retriever == nil {
		return nil
	}
	return s.Retriever.Retrieve(ctx, &retrieval.Request{
		Query:          req.Message,
		ConversationID: req.ConversationID,
		TurnNumber:     req.TurnNumber,
	})
}

func (s *APIV1Service) recordChat(path string, start time.Time, success bool) {
	if s.Exporter == nil {
		return
	}
	s.Exporter.RecordChat(path, time.Since(start), success)
}

// checkContradictionAsync runs contradiction detection off the request
// path; an alert surfaces later through the insights endpoints.
func (s *APIV1Service) checkContradictionAsync(message, conversationID string) {
	if s.Insights == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		s.Insights.CheckContradiction(ctx, message, conversationID)
	}()
}

// buildChatMessages assembles the prompt: memory-grounded system prompt,
// recent session history capped at twice the session limit, then the
// current message.
func buildChatMessages(req *ChatRequest, documents []retrieval.Document, sessionHistoryLimit int) []ai.Message {
	messages := []ai.Message{ai.SystemPrompt(buildSystemPrompt(documents))}

	historyLimit := sessionHistoryLimit * 2
	history := req.History
	if historyLimit > 0 && len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	for _, msg := range history {
		messages = append(messages, ai.Message{Role: msg.Role, Content: msg.Content})
	}

	return append(messages, ai.UserMessage(req.Message))
}

func buildSystemPrompt(documents []retrieval.Document) string {
	return fmt.Sprintf(`You are Athena, a helpful AI assistant with perfect memory of all past conversations.

%s

Use the above memories naturally when relevant. Don't mention the retrieval system.
Be helpful, concise, and build on our conversation history.`, formatMemories(documents))
}

func formatMemories(documents []retrieval.Document) string {
	if len(documents) == 0 {
		return "No relevant past conversations found."
	}

	var b strings.Builder
	b.WriteString("=== RELEVANT PAST CONVERSATIONS ===\n\n")
	for i, doc := range documents {
		date := "Unknown"
		if !doc.Timestamp.IsZero() {
			date = doc.Timestamp.Format("2006-01-02")
		}
		fmt.Fprintf(&b, "[Memory %d] (%s, relevance: %.2f)\n", i+1, date, doc.Score)
		fmt.Fprintf(&b, "Title: %s\n", doc.Title)
		fmt.Fprintf(&b, "%s\n\n", doc.Content)
	}
	return b.String()
}

// streamEvents runs fn with an SSE sender bound to the response.
func streamEvents(c echo.Context, fn func(send func(ChatEvent) error) error) error {
	response := c.Response()
	response.Header().Set(echo.HeaderContentType, "text/event-stream")
	response.Header().Set(echo.HeaderCacheControl, "no-cache")
	response.Header().Set(echo.HeaderConnection, "keep-alive")
	response.WriteHeader(http.StatusOK)

	send := func(event ChatEvent) error {
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(response, "data: %s\n\n", payload); err != nil {
			return err
		}
		response.Flush()
		return nil
	}

	return fn(send)
}

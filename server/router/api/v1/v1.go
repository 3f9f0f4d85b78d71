package v1

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/semaphore"

	"github.com/hrygo/athena/ai"
	"github.com/hrygo/athena/ai/insights"
	"github.com/hrygo/athena/ai/memory"
	"github.com/hrygo/athena/ai/metrics"
	"github.com/hrygo/athena/ai/realtime"
	"github.com/hrygo/athena/ai/retrieval"
	"github.com/hrygo/athena/internal/profile"
	"github.com/hrygo/athena/store"
)

// APIV1Service wires the HTTP surface to the AI and storage layers. AI
// services may be nil when the instance runs without provider credentials;
// handlers degrade to memory-less behavior in that case.
type APIV1Service struct {
	Profile *profile.Profile
	Store   *store.Store

	LLMService ai.LLMService
	Retriever  *retrieval.Retriever
	Saver      *memory.Saver
	Insights   *insights.Engine
	Realtime   *realtime.Router
	Exporter   *metrics.Exporter

	// Digest generation holds an LLM call over a week of data; one at a
	// time is plenty.
	digestSemaphore *semaphore.Weighted
}

// NewAPIV1Service builds the service, initializing the AI stack when the
// profile carries provider credentials. Initialization failures disable the
// affected feature with a warning instead of failing startup.
func NewAPIV1Service(instanceProfile *profile.Profile, storeInstance *store.Store, exporter *metrics.Exporter) *APIV1Service {
	service := &APIV1Service{
		Profile:         instanceProfile,
		Store:           storeInstance,
		Exporter:        exporter,
		digestSemaphore: semaphore.NewWeighted(1),
	}

	if !instanceProfile.IsAIEnabled() {
		slog.Info("AI features disabled: no LLM credentials configured")
		return service
	}

	aiConfig := ai.NewConfigFromProfile(instanceProfile)
	if err := aiConfig.Validate(); err != nil {
		slog.Warn("AI config validation failed, AI features disabled", "error", err)
		return service
	}

	embeddingService, err := ai.NewEmbeddingService(&aiConfig.Embedding)
	if err != nil {
		slog.Warn("Failed to initialize embedding service, AI features disabled", "error", err)
		return service
	}

	llmService, err := ai.NewLLMService(&aiConfig.LLM)
	if err != nil {
		slog.Warn("Failed to initialize LLM service, AI features disabled",
			"provider", aiConfig.LLM.Provider,
			"error", err)
		return service
	}
	slog.Info("LLM service initialized",
		"provider", aiConfig.LLM.Provider,
		"model", aiConfig.LLM.Model)

	service.LLMService = llmService
	service.Retriever = retrieval.NewRetriever(
		storeInstance,
		embeddingService,
		retrieval.NewConfigFromProfile(instanceProfile),
		retrieval.WithMetrics(exporter),
	)
	service.Saver = memory.NewSaver(storeInstance, embeddingService)
	service.Insights = insights.NewEngine(storeInstance, llmService, embeddingService)

	if aiConfig.Realtime.Enabled {
		realtimeClient, err := realtime.NewClient(&aiConfig.Realtime)
		if err != nil {
			slog.Warn("Failed to initialize realtime client, live data routing disabled", "error", err)
		} else {
			service.Realtime = realtime.NewRouter(realtimeClient)
			slog.Info("Realtime client initialized", "model", aiConfig.Realtime.Model)
		}
	}

	return service
}

// Register mounts the v1 REST routes on the echo server.
func (s *APIV1Service) Register(echoServer *echo.Echo) {
	apiGroup := echoServer.Group("/api/v1")
	apiGroup.Use(middleware.CORS())

	apiGroup.POST("/chat", s.Chat)
	apiGroup.POST("/retrieve", s.RetrieveMemories)

	apiGroup.POST("/conversations", s.SaveConversation)
	apiGroup.GET("/conversations/:id", s.GetConversation)

	apiGroup.GET("/insights/digest", s.GetLatestDigest)
	apiGroup.POST("/insights/digest", s.GenerateDigest)
	apiGroup.GET("/insights/alerts", s.ListAlerts)
	apiGroup.POST("/insights/alerts/:id/dismiss", s.DismissAlert)
}

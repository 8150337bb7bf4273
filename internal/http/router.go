package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/oakmind/oakmind-backend/internal/http/handlers"
	httpMW "github.com/oakmind/oakmind-backend/internal/http/middleware"
)

type RouterConfig struct {
	AuthMiddleware  *httpMW.AuthMiddleware
	QuizHandler     *httpH.QuizHandler
	RealtimeHandler *httpH.RealtimeHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(otelgin.Middleware("oakmind-backend"))
	r.Use(httpMW.CORS())

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		if cfg.RealtimeHandler != nil {
			protected.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
		}

		if cfg.QuizHandler != nil {
			protected.POST("/quiz/reviews", cfg.QuizHandler.TriggerReview)
			protected.POST("/quiz/generate", cfg.QuizHandler.TriggerGenerate)
			protected.GET("/quiz/latest", cfg.QuizHandler.Latest)
		}
	}

	return r
}

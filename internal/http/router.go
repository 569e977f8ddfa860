package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/asterlab/mission-gateway/internal/http/handlers"
	httpMW "github.com/asterlab/mission-gateway/internal/http/middleware"
	"github.com/asterlab/mission-gateway/internal/platform/logger"
)

type RouterConfig struct {
	Log           *logger.Logger
	ServiceName   string
	CORSOrigins   []string
	WebhookSecret string

	AuthMiddleware *httpMW.AuthMiddleware

	ProcessHandler    *httpH.ProcessHandler
	DeploymentHandler *httpH.DeploymentHandler
	BuildHandler      *httpH.BuildHandler
	JobHandler        *httpH.JobHandler
	HealthHandler     *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	if cfg.HealthHandler != nil {
		r.GET("/health", cfg.HealthHandler.HealthCheck)
	}

	// CI event sinks authenticate with the shared webhook secret, not a
	// bearer token.
	hooks := r.Group("/")
	hooks.Use(httpMW.WebhookSecret(cfg.Log, cfg.WebhookSecret))
	{
		if cfg.DeploymentHandler != nil {
			hooks.POST("/deploymentJobs", cfg.DeploymentHandler.PipelineWebhook)
			hooks.POST("/build/webhook", cfg.DeploymentHandler.PipelineWebhook)
		}
	}

	protected := r.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		if cfg.ProcessHandler != nil {
			protected.GET("/processes", cfg.ProcessHandler.ListProcesses)
			protected.POST("/processes", cfg.ProcessHandler.DeployProcess)
			protected.GET("/processes/:process_id", cfg.ProcessHandler.GetProcess)
			protected.PUT("/processes/:process_id", cfg.ProcessHandler.RedeployProcess)
			protected.DELETE("/processes/:process_id", cfg.ProcessHandler.UndeployProcess)
			protected.POST("/processes/:process_id/execution", cfg.ProcessHandler.SubmitExecution)
		}

		if cfg.DeploymentHandler != nil {
			protected.GET("/deploymentJobs", cfg.DeploymentHandler.ListDeploymentJobs)
			protected.GET("/deploymentJobs/:job_id", cfg.DeploymentHandler.GetDeploymentJob)
		}

		if cfg.BuildHandler != nil {
			protected.POST("/build", cfg.BuildHandler.CreateBuild)
			protected.GET("/build", cfg.BuildHandler.ListBuilds)
			protected.GET("/build/:build_id", cfg.BuildHandler.GetBuild)
		}

		if cfg.JobHandler != nil {
			protected.GET("/jobs", cfg.JobHandler.ListJobs)
			protected.GET("/jobs/:job_id", cfg.JobHandler.GetJob)
			protected.DELETE("/jobs/:job_id", cfg.JobHandler.CancelJob)
			protected.GET("/jobs/:job_id/results", cfg.JobHandler.GetJobResults)
			protected.GET("/jobs/:job_id/metrics", cfg.JobHandler.GetJobMetrics)
		}
	}

	return r
}

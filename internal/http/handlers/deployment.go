package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/asterlab/mission-gateway/internal/http/response"
	"github.com/asterlab/mission-gateway/internal/platform/apierr"
	"github.com/asterlab/mission-gateway/internal/platform/ctxutil"
	"github.com/asterlab/mission-gateway/internal/platform/logger"
	"github.com/asterlab/mission-gateway/internal/services"
)

type DeploymentHandler struct {
	log         *logger.Logger
	deployments services.DeploymentService
	builds      services.BuildService
}

func NewDeploymentHandler(
	log *logger.Logger,
	deployments services.DeploymentService,
	builds services.BuildService,
) *DeploymentHandler {
	return &DeploymentHandler{
		log:         log.With("handler", "DeploymentHandler"),
		deployments: deployments,
		builds:      builds,
	}
}

func (h *DeploymentHandler) ListDeploymentJobs(c *gin.Context) {
	principal := ctxutil.GetPrincipal(c.Request.Context())
	ds, err := h.deployments.List(reqContext(c), principal)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deploymentJobs": ds})
}

// GetDeploymentJob polls the CI pipeline for a non-terminal deployment. The
// call that observes the successful promotion answers 201; every other read
// answers 200 with the current record.
func (h *DeploymentHandler) GetDeploymentJob(c *gin.Context) {
	jobID, err := pathInt64(c, "job_id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	d, promoted, err := h.deployments.Poll(reqContext(c), jobID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	if promoted {
		response.RespondCreated(c, d)
		return
	}
	response.RespondOK(c, d)
}

type pipelineEvent struct {
	ObjectKind       string `json:"object_kind"`
	ObjectAttributes struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	} `json:"object_attributes"`
}

// PipelineWebhook is the CI event sink. Pipeline events are matched against
// deployments first and raw builds second; other event types are
// acknowledged without effect so the CI does not retry them. The deployment
// dialect posts bare {object_attributes} bodies with no object_kind, so an
// absent kind is treated as a pipeline event.
func (h *DeploymentHandler) PipelineWebhook(c *gin.Context) {
	var event pipelineEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		response.RespondError(c, apierr.InvalidRequestf("invalid event payload: %v", err))
		return
	}
	if event.ObjectKind != "" && event.ObjectKind != "pipeline" {
		response.RespondOK(c, gin.H{"message": "Event type not handled"})
		return
	}
	if event.ObjectAttributes.ID == 0 {
		response.RespondError(c, apierr.InvalidRequestf("event is missing the pipeline id"))
		return
	}

	dbc := reqContext(c)
	matched, err := h.deployments.HandleWebhook(dbc, event.ObjectAttributes.ID, event.ObjectAttributes.Status)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	if !matched {
		matched, err = h.builds.HandleWebhook(dbc, event.ObjectAttributes.ID, event.ObjectAttributes.Status)
		if err != nil {
			response.RespondError(c, err)
			return
		}
	}
	if !matched {
		// Unknown pipelines get a 200 no-op so the CI never retries events
		// for jobs this venue does not own.
		h.log.Info("webhook for unknown pipeline ignored", "pipeline_id", event.ObjectAttributes.ID)
		response.RespondOK(c, gin.H{"message": "Event type not handled"})
		return
	}
	response.RespondOK(c, gin.H{"message": "ok"})
}

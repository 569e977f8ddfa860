package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/asterlab/mission-gateway/internal/http/response"
	"github.com/asterlab/mission-gateway/internal/platform/apierr"
	"github.com/asterlab/mission-gateway/internal/platform/ctxutil"
	"github.com/asterlab/mission-gateway/internal/platform/logger"
	"github.com/asterlab/mission-gateway/internal/services"
)

type ProcessHandler struct {
	log         *logger.Logger
	catalog     services.CatalogService
	deployments services.DeploymentService
	jobs        services.JobService
}

func NewProcessHandler(
	log *logger.Logger,
	catalog services.CatalogService,
	deployments services.DeploymentService,
	jobs services.JobService,
) *ProcessHandler {
	return &ProcessHandler{
		log:         log.With("handler", "ProcessHandler"),
		catalog:     catalog,
		deployments: deployments,
		jobs:        jobs,
	}
}

type deployBody struct {
	ExecutionUnit struct {
		Href string `json:"href"`
		Unit string `json:"unit"`
	} `json:"executionUnit"`
}

type submitBody struct {
	Inputs map[string]interface{} `json:"inputs"`
	Queue  string                 `json:"queue"`
	Dedup  *bool                  `json:"dedup"`
	Tag    string                 `json:"tag"`
}

func (h *ProcessHandler) ListProcesses(c *gin.Context) {
	dbc := reqContext(c)
	processes, err := h.catalog.ListDeployed(dbc)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"processes": processes})
}

func (h *ProcessHandler) GetProcess(c *gin.Context) {
	processID, err := pathInt64(c, "process_id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	p, err := h.catalog.Get(reqContext(c), processID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, p)
}

func (h *ProcessHandler) DeployProcess(c *gin.Context) {
	principal := ctxutil.GetPrincipal(c.Request.Context())
	var body deployBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, apierr.InvalidRequestf("invalid request body: %v", err))
		return
	}
	d, err := h.deployments.Deploy(reqContext(c), principal, services.DeployRequest{
		Href:   body.ExecutionUnit.Href,
		Inline: body.ExecutionUnit.Unit,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	c.Header("Location", fmt.Sprintf("/deploymentJobs/%d", d.JobID))
	response.RespondAccepted(c, d)
}

func (h *ProcessHandler) RedeployProcess(c *gin.Context) {
	principal := ctxutil.GetPrincipal(c.Request.Context())
	processID, err := pathInt64(c, "process_id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	var body deployBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, apierr.InvalidRequestf("invalid request body: %v", err))
		return
	}
	d, err := h.deployments.Redeploy(reqContext(c), principal, processID, services.DeployRequest{
		Href:   body.ExecutionUnit.Href,
		Inline: body.ExecutionUnit.Unit,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	c.Header("Location", fmt.Sprintf("/deploymentJobs/%d", d.JobID))
	response.RespondAccepted(c, d)
}

func (h *ProcessHandler) UndeployProcess(c *gin.Context) {
	principal := ctxutil.GetPrincipal(c.Request.Context())
	processID, err := pathInt64(c, "process_id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	if err := h.catalog.Undeploy(reqContext(c), principal, processID); err != nil {
		response.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ProcessHandler) SubmitExecution(c *gin.Context) {
	principal := ctxutil.GetPrincipal(c.Request.Context())
	processID, err := pathInt64(c, "process_id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	var body submitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, apierr.InvalidRequestf("invalid request body: %v", err))
		return
	}
	view, err := h.jobs.Submit(reqContext(c), principal, processID, services.SubmitJobRequest{
		Inputs: body.Inputs,
		Queue:  body.Queue,
		Dedup:  body.Dedup,
		Tag:    body.Tag,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	c.Header("Location", fmt.Sprintf("/jobs/%s", view.ID))
	response.RespondAccepted(c, view)
}

func pathInt64(c *gin.Context, name string) (int64, error) {
	raw := c.Param(name)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apierr.InvalidRequestf("invalid %s %q", name, raw)
	}
	return v, nil
}

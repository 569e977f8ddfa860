package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/asterlab/mission-gateway/internal/http/response"
	"github.com/asterlab/mission-gateway/internal/platform/apierr"
	"github.com/asterlab/mission-gateway/internal/platform/ctxutil"
	"github.com/asterlab/mission-gateway/internal/platform/logger"
	"github.com/asterlab/mission-gateway/internal/services"
)

type JobHandler struct {
	log  *logger.Logger
	jobs services.JobService
}

func NewJobHandler(log *logger.Logger, jobs services.JobService) *JobHandler {
	return &JobHandler{
		log:  log.With("handler", "JobHandler"),
		jobs: jobs,
	}
}

func (h *JobHandler) GetJob(c *gin.Context) {
	view, err := h.jobs.Status(reqContext(c), c.Param("job_id"))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, view)
}

func (h *JobHandler) GetJobResults(c *gin.Context) {
	products, err := h.jobs.Results(reqContext(c), c.Param("job_id"))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"products": products})
}

func (h *JobHandler) GetJobMetrics(c *gin.Context) {
	metrics, err := h.jobs.Metrics(reqContext(c), c.Param("job_id"))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, metrics)
}

func (h *JobHandler) CancelJob(c *gin.Context) {
	wait := queryBool(c, "wait_for_completion")
	view, err := h.jobs.Cancel(reqContext(c), c.Param("job_id"), wait)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondAccepted(c, view)
}

func (h *JobHandler) ListJobs(c *gin.Context) {
	principal := ctxutil.GetPrincipal(c.Request.Context())
	params := services.JobListParams{
		JobType:  c.Query("job_type"),
		Tag:      c.Query("tag"),
		Queue:    c.Query("queue"),
		Status:   c.Query("status"),
		Username: c.Query("username"),
		Detailed: queryBool(c, "detailed"),
	}
	if raw := c.Query("process_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.RespondError(c, apierr.InvalidRequestf("invalid process_id %q", raw))
			return
		}
		params.ProcessID = &id
	}
	var err error
	if params.StartTime, err = queryTime(c, "start_time"); err != nil {
		response.RespondError(c, err)
		return
	}
	if params.EndTime, err = queryTime(c, "end_time"); err != nil {
		response.RespondError(c, err)
		return
	}
	if params.MinDuration, err = querySeconds(c, "min_duration"); err != nil {
		response.RespondError(c, err)
		return
	}
	if params.MaxDuration, err = querySeconds(c, "max_duration"); err != nil {
		response.RespondError(c, err)
		return
	}
	if params.Limit, err = queryInt(c, "limit"); err != nil {
		response.RespondError(c, err)
		return
	}
	if params.Offset, err = queryInt(c, "offset"); err != nil {
		response.RespondError(c, err)
		return
	}

	views, err := h.jobs.List(reqContext(c), principal, params)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"jobs": views})
}

func queryBool(c *gin.Context, name string) bool {
	v, _ := strconv.ParseBool(c.Query(name))
	return v
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apierr.InvalidRequestf("invalid %s %q", name, raw)
	}
	return v, nil
}

func querySeconds(c *gin.Context, name string) (time.Duration, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return 0, apierr.InvalidRequestf("invalid %s %q", name, raw)
	}
	return time.Duration(secs) * time.Second, nil
}

func queryTime(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apierr.InvalidRequestf("invalid %s %q: expected RFC 3339", name, raw)
	}
	return &t, nil
}

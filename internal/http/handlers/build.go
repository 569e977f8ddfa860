package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/asterlab/mission-gateway/internal/http/response"
	"github.com/asterlab/mission-gateway/internal/platform/apierr"
	"github.com/asterlab/mission-gateway/internal/platform/ctxutil"
	"github.com/asterlab/mission-gateway/internal/platform/logger"
	"github.com/asterlab/mission-gateway/internal/services"
)

type BuildHandler struct {
	log    *logger.Logger
	builds services.BuildService
}

func NewBuildHandler(log *logger.Logger, builds services.BuildService) *BuildHandler {
	return &BuildHandler{
		log:    log.With("handler", "BuildHandler"),
		builds: builds,
	}
}

type buildBody struct {
	RepositoryURL string `json:"repositoryURL"`
	BranchRef     string `json:"branchRef"`
}

func (h *BuildHandler) CreateBuild(c *gin.Context) {
	principal := ctxutil.GetPrincipal(c.Request.Context())
	var body buildBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, apierr.InvalidRequestf("invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(body.RepositoryURL) == "" {
		response.RespondError(c, apierr.InvalidRequestf("repositoryURL is required"))
		return
	}
	b, err := h.builds.Create(reqContext(c), principal, services.BuildRequest{
		RepositoryURL: body.RepositoryURL,
		BranchRef:     body.BranchRef,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	c.Header("Location", fmt.Sprintf("/build/%s", b.BuildID))
	response.RespondAccepted(c, b)
}

func (h *BuildHandler) ListBuilds(c *gin.Context) {
	principal := ctxutil.GetPrincipal(c.Request.Context())
	bs, err := h.builds.List(reqContext(c), principal)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"builds": bs})
}

func (h *BuildHandler) GetBuild(c *gin.Context) {
	principal := ctxutil.GetPrincipal(c.Request.Context())
	buildID := c.Param("build_id")
	b, err := h.builds.Get(reqContext(c), principal, buildID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, b)
}

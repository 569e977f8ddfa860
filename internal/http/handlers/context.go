package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/asterlab/mission-gateway/internal/pkg/dbctx"
)

func reqContext(c *gin.Context) dbctx.Context {
	return dbctx.New(c.Request.Context())
}

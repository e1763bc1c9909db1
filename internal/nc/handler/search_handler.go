package handler

import (
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/service"
	"github.com/gin-gonic/gin"
)

type SearchHandler struct {
	programs *service.ProgramService
}

func NewSearchHandler(programs *service.ProgramService) *SearchHandler {
	return &SearchHandler{programs: programs}
}

// Reindex POST /api/search/reindex
func (h *SearchHandler) Reindex(c *gin.Context) {
	count, err := h.programs.ReindexAll(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"indexed": count})
}

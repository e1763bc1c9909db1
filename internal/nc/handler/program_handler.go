package handler

import (
	"io"
	"net/http"

	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/service"
	"github.com/gin-gonic/gin"
)

type ProgramHandler struct {
	svc *service.ProgramService
}

func NewProgramHandler(svc *service.ProgramService) *ProgramHandler {
	return &ProgramHandler{svc: svc}
}

// List GET /api/programs
func (h *ProgramHandler) List(c *gin.Context) {
	var q service.ProgramQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	page, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    page.Programs,
		Meta: &Meta{
			Page:       page.Page,
			Limit:      page.Limit,
			Total:      page.Total,
			TotalPages: page.TotalPages,
		},
	})
}

// Get GET /api/programs/:id
func (h *ProgramHandler) Get(c *gin.Context) {
	program, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, program)
}

// Create POST /api/programs
func (h *ProgramHandler) Create(c *gin.Context) {
	var req service.CreateProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	program, err := h.svc.Create(c.Request.Context(), GetActor(c), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, program)
}

// Update PUT /api/programs/:id
func (h *ProgramHandler) Update(c *gin.Context) {
	var req service.UpdateProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	program, err := h.svc.Update(c.Request.Context(), GetActor(c), c.Param("id"), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, program)
}

// Delete DELETE /api/programs/:id
func (h *ProgramHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), GetActor(c), c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}
	Message(c, "Program deleted successfully")
}

// Approve POST /api/programs/:id/approve
func (h *ProgramHandler) Approve(c *gin.Context) {
	var req service.ApproveProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	program, err := h.svc.Transition(c.Request.Context(), GetActor(c), c.Param("id"), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, program)
}

// ListVersions GET /api/programs/:id/versions
func (h *ProgramHandler) ListVersions(c *gin.Context) {
	versions, err := h.svc.ListVersions(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, versions)
}

// CreateVersion POST /api/programs/:id/versions
func (h *ProgramHandler) CreateVersion(c *gin.Context) {
	var req service.CreateVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	version, err := h.svc.CreateVersion(c.Request.Context(), GetActor(c), c.Param("id"), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, version)
}

// VersionContent GET /api/programs/:id/versions/:versionId/content
func (h *ProgramHandler) VersionContent(c *gin.Context) {
	rc, _, err := h.svc.VersionContent(c.Request.Context(), c.Param("id"), c.Param("versionId"))
	if err != nil {
		HandleError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		c.Error(err)
	}
}

// UploadFile POST /api/programs/:id/files (multipart: file, type)
func (h *ProgramHandler) UploadFile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, service.MaxUploadSize+1<<20)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "No file uploaded")
		return
	}
	kind := c.PostForm("type")
	if kind == "" {
		kind = "nc"
	}

	src, err := fileHeader.Open()
	if err != nil {
		InternalError(c, err)
		return
	}
	defer src.Close()

	result, err := h.svc.UploadFile(c.Request.Context(), GetActor(c), c.Param("id"), kind,
		fileHeader.Filename, src, fileHeader.Size, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, result)
}

package handler

import (
	"fmt"
	"net/http"

	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/service"
	"github.com/gin-gonic/gin"
)

type SetupSheetHandler struct {
	svc *service.SetupSheetService
}

func NewSetupSheetHandler(svc *service.SetupSheetService) *SetupSheetHandler {
	return &SetupSheetHandler{svc: svc}
}

// List GET /api/setup-sheets?programId=
func (h *SetupSheetHandler) List(c *gin.Context) {
	programID := c.Query("programId")
	if programID == "" {
		BadRequest(c, "programId query parameter is required")
		return
	}
	sheets, err := h.svc.List(c.Request.Context(), programID)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, sheets)
}

// Get GET /api/setup-sheets/:id
func (h *SetupSheetHandler) Get(c *gin.Context) {
	sheet, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, sheet)
}

// Create POST /api/setup-sheets
func (h *SetupSheetHandler) Create(c *gin.Context) {
	var req service.CreateSetupSheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	sheet, err := h.svc.Create(c.Request.Context(), GetActor(c), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, sheet)
}

// Update PUT /api/setup-sheets/:id
func (h *SetupSheetHandler) Update(c *gin.Context) {
	var req service.UpdateSetupSheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	sheet, err := h.svc.Update(c.Request.Context(), GetActor(c), c.Param("id"), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, sheet)
}

// Delete DELETE /api/setup-sheets/:id
func (h *SetupSheetHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), GetActor(c), c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}
	Message(c, "Setup sheet deleted successfully")
}

// Approve POST /api/setup-sheets/:id/approve
func (h *SetupSheetHandler) Approve(c *gin.Context) {
	var req service.ApproveSetupSheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	sheet, err := h.svc.Approve(c.Request.Context(), GetActor(c), c.Param("id"), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	if !*req.Approved {
		Message(c, "Approval revoked")
		return
	}
	Success(c, sheet)
}

// Upload POST /api/setup-sheets/:id/upload (multipart: files)
func (h *SetupSheetHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, service.MaxMediaFiles*service.MaxUploadSize+1<<20)
	form, err := c.MultipartForm()
	if err != nil {
		BadRequest(c, "Could not parse upload: "+err.Error())
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		BadRequest(c, "No files uploaded")
		return
	}
	if len(headers) > service.MaxMediaFiles {
		BadRequest(c, fmt.Sprintf("At most %d files per upload", service.MaxMediaFiles))
		return
	}

	uploads := make([]service.MediaUpload, 0, len(headers))
	for _, fh := range headers {
		src, err := fh.Open()
		if err != nil {
			InternalError(c, err)
			return
		}
		defer src.Close()
		uploads = append(uploads, service.MediaUpload{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        src,
		})
	}

	media, err := h.svc.UploadMedia(c.Request.Context(), GetActor(c), c.Param("id"), uploads)
	if err != nil {
		HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    media,
		Message: fmt.Sprintf("Successfully uploaded %d file(s)", len(media)),
	})
}

// DeleteMedia DELETE /api/setup-sheets/:id/media/:mediaId
func (h *SetupSheetHandler) DeleteMedia(c *gin.Context) {
	if err := h.svc.DeleteMedia(c.Request.Context(), GetActor(c), c.Param("id"), c.Param("mediaId")); err != nil {
		HandleError(c, err)
		return
	}
	Message(c, "Media deleted successfully")
}

// Export GET /api/setup-sheets/:id/export
func (h *SetupSheetHandler) Export(c *gin.Context) {
	f, filename, err := h.svc.Export(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		c.Error(err)
	}
}

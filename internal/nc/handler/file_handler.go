package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Nikolaihoj1/millpoint-nc/internal/shared/storage"
	"github.com/gin-gonic/gin"
)

// FileHandler serves stored uploads.
type FileHandler struct {
	store storage.Store
}

func NewFileHandler(store storage.Store) *FileHandler {
	return &FileHandler{store: store}
}

// Serve GET /api/files/:category/:filename
func (h *FileHandler) Serve(c *gin.Context) {
	category, name := c.Param("category"), c.Param("filename")
	if !storage.ValidCategory(category) {
		NotFound(c, "File not found")
		return
	}

	rc, obj, err := h.store.Open(c.Request.Context(), category, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidName) {
			NotFound(c, "File not found")
			return
		}
		InternalError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Type", storage.ContentTypeFor(name))
	if obj.Size > 0 {
		c.Header("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		c.Error(err)
	}
}

package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/Nikolaihoj1/millpoint-nc/internal/middleware"
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/service"
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/sse"
	"github.com/Nikolaihoj1/millpoint-nc/internal/shared/storage"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

func init() {
	// Report validation failures by their wire names.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})
	}
}

// Handlers groups the HTTP handlers.
type Handlers struct {
	Machine    *MachineHandler
	Program    *ProgramHandler
	SetupSheet *SetupSheetHandler
	File       *FileHandler
	Search     *SearchHandler
	SSE        *SSEHandler
}

func NewHandlers(svc *service.Services, store storage.Store, hub *sse.Hub, logger *zap.Logger) *Handlers {
	return &Handlers{
		Machine:    NewMachineHandler(svc.Machine),
		Program:    NewProgramHandler(svc.Program),
		SetupSheet: NewSetupSheetHandler(svc.SetupSheet),
		File:       NewFileHandler(store),
		Search:     NewSearchHandler(svc.Program),
		SSE:        NewSSEHandler(hub, logger),
	}
}

// Response is the envelope of every JSON response.
type Response struct {
	Success bool                 `json:"success"`
	Data    interface{}          `json:"data,omitempty"`
	Message string               `json:"message,omitempty"`
	Error   string               `json:"error,omitempty"`
	Details []service.FieldError `json:"details,omitempty"`
	Code    string               `json:"code,omitempty"`
	Meta    *Meta                `json:"meta,omitempty"`
}

// Meta is the pagination block of list responses.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

// Message answers 200 with a message and no data.
func Message(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Response{Success: true, Message: message})
}

func Error(c *gin.Context, status int, message string) {
	c.JSON(status, Response{Success: false, Error: message})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// InternalError hides err from clients when gin runs in release mode.
func InternalError(c *gin.Context, err error) {
	c.Error(err)
	resp := Response{Success: false, Error: "Internal server error"}
	if gin.Mode() != gin.ReleaseMode {
		resp.Message = err.Error()
	}
	c.JSON(http.StatusInternalServerError, resp)
}

// HandleError translates a service error into the matching HTTP response.
func HandleError(c *gin.Context, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		InternalError(c, err)
		return
	}

	switch svcErr.Kind {
	case service.KindValidation:
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   svcErr.Message,
			Details: svcErr.Details,
			Code:    "VALIDATION_ERROR",
		})
	case service.KindNotFound:
		NotFound(c, svcErr.Message)
	case service.KindConflict:
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: svcErr.Message, Code: "CONFLICT"})
	case service.KindStorage:
		c.Error(err)
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, Response{Success: false, Error: svcErr.Message, Code: "STORAGE_ERROR"})
	case service.KindUpstream:
		c.Error(err)
		c.JSON(http.StatusBadGateway, Response{Success: false, Error: svcErr.Message, Code: "UPSTREAM_ERROR"})
	default:
		InternalError(c, err)
	}
}

// bindError answers a failed ShouldBind* with per-field details.
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "Validation failed",
			Details: []service.FieldError{{Path: "body", Message: err.Error()}},
			Code:    "VALIDATION_ERROR",
		})
		return
	}

	details := make([]service.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, service.FieldError{
			Path:    fieldPath(fe),
			Message: fieldMessage(fe),
		})
	}
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   "Validation failed",
		Details: details,
		Code:    "VALIDATION_ERROR",
	})
}

// fieldPath turns "CreateProgramRequest.machineId" into "machineId".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	if ns == "" {
		return fe.Field()
	}
	return strings.ToLower(ns[:1]) + ns[1:]
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Required"
	case "uuid":
		return "Must be a valid UUID"
	case "oneof":
		return "Must be one of: " + fe.Param()
	case "max":
		return "Must be at most " + fe.Param()
	case "min":
		return "Must be at least " + fe.Param()
	case "ip":
		return "Must be a valid IP address"
	}
	return fmt.Sprintf("Failed %s validation", fe.Tag())
}

// GetActor reads the authenticated principal set by middleware.JWTAuth.
func GetActor(c *gin.Context) service.Actor {
	return service.Actor{
		ID:    c.GetString(middleware.KeyUserID),
		Name:  c.GetString(middleware.KeyUserName),
		Email: c.GetString(middleware.KeyUserEmail),
	}
}

package handler

import (
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/repository"
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/service"
	"github.com/gin-gonic/gin"
)

type MachineHandler struct {
	svc *service.MachineService
}

func NewMachineHandler(svc *service.MachineService) *MachineHandler {
	return &MachineHandler{svc: svc}
}

// List GET /api/machines?type=&status=&search=
func (h *MachineHandler) List(c *gin.Context) {
	machines, err := h.svc.List(c.Request.Context(), repository.MachineFilter{
		Type:   c.Query("type"),
		Status: c.Query("status"),
		Search: c.Query("search"),
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, machines)
}

// Get GET /api/machines/:id
func (h *MachineHandler) Get(c *gin.Context) {
	machine, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, machine)
}

// Create POST /api/machines
func (h *MachineHandler) Create(c *gin.Context) {
	var req service.CreateMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	machine, err := h.svc.Create(c.Request.Context(), GetActor(c), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, machine)
}

// Update PUT /api/machines/:id
func (h *MachineHandler) Update(c *gin.Context) {
	var req service.UpdateMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	machine, err := h.svc.Update(c.Request.Context(), GetActor(c), c.Param("id"), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, machine)
}

// Delete DELETE /api/machines/:id
func (h *MachineHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), GetActor(c), c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}
	Message(c, "Machine deleted successfully")
}

// UpdateStatus PATCH /api/machines/:id/status
func (h *MachineHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateMachineStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	machine, err := h.svc.UpdateStatus(c.Request.Context(), GetActor(c), c.Param("id"), req.Status)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, machine)
}

// NextProgramNumber GET /api/machines/:id/next-program-number
func (h *MachineHandler) NextProgramNumber(c *gin.Context) {
	next, err := h.svc.NextProgramNumber(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, next)
}

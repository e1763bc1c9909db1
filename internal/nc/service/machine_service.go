package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/entity"
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/repository"
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/sse"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type CreateMachineRequest struct {
	Name         string                 `json:"name" binding:"required,max=128"`
	Type         string                 `json:"type" binding:"required,max=64"`
	Manufacturer string                 `json:"manufacturer" binding:"max=128"`
	Model        string                 `json:"model" binding:"max=128"`
	Status       string                 `json:"status" binding:"omitempty,oneof=Online Offline Maintenance"`
	IPAddress    string                 `json:"ipAddress" binding:"omitempty,ip"`
	SerialPort   string                 `json:"serialPort" binding:"max=64"`
	Capabilities map[string]interface{} `json:"capabilities"`
}

type UpdateMachineRequest struct {
	Name         *string                 `json:"name" binding:"omitempty,min=1,max=128"`
	Type         *string                 `json:"type" binding:"omitempty,min=1,max=64"`
	Manufacturer *string                 `json:"manufacturer" binding:"omitempty,max=128"`
	Model        *string                 `json:"model" binding:"omitempty,max=128"`
	Status       *string                 `json:"status" binding:"omitempty,oneof=Online Offline Maintenance"`
	IPAddress    *string                 `json:"ipAddress" binding:"omitempty,max=64"`
	SerialPort   *string                 `json:"serialPort" binding:"omitempty,max=64"`
	Capabilities *map[string]interface{} `json:"capabilities"`
}

type UpdateMachineStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=Online Offline Maintenance"`
}

// NextProgramNumber previews the auto-number a new program would receive.
type NextProgramNumber struct {
	Next      int    `json:"next"`
	Formatted string `json:"formatted"`
}

type MachineService struct {
	repos  *repository.Repositories
	hub    *sse.Hub
	logger *zap.Logger
}

func NewMachineService(repos *repository.Repositories, hub *sse.Hub, logger *zap.Logger) *MachineService {
	return &MachineService{repos: repos, hub: hub, logger: logger}
}

func (s *MachineService) List(ctx context.Context, filter repository.MachineFilter) ([]entity.Machine, error) {
	if filter.Status != "" && !entity.ValidMachineStatus(filter.Status) {
		return nil, ValidationError("Validation failed", FieldError{Path: "status", Message: "Invalid machine status"})
	}
	machines, err := s.repos.Machine.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	return machines, nil
}

// Get returns the machine with its program summaries.
func (s *MachineService) Get(ctx context.Context, id string) (*entity.Machine, error) {
	machine, err := s.repos.Machine.FindDetail(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFoundError("Machine not found")
		}
		return nil, fmt.Errorf("get machine: %w", err)
	}
	return machine, nil
}

func (s *MachineService) Create(ctx context.Context, actor Actor, req *CreateMachineRequest) (*entity.Machine, error) {
	status := req.Status
	if status == "" {
		status = entity.MachineStatusOffline
	}
	machine := &entity.Machine{
		Name:              strings.TrimSpace(req.Name),
		Type:              strings.TrimSpace(req.Type),
		Manufacturer:      req.Manufacturer,
		Model:             req.Model,
		Status:            status,
		IPAddress:         req.IPAddress,
		SerialPort:        req.SerialPort,
		Capabilities:      req.Capabilities,
		NextProgramNumber: entity.DefaultProgramNumber,
	}
	if err := s.repos.Machine.Create(ctx, machine); err != nil {
		return nil, fmt.Errorf("create machine: %w", err)
	}

	s.logger.Info("Machine created", zap.String("machine_id", machine.ID), zap.String("user_id", actor.ID))
	s.hub.PublishMachine(machine.ID, "created")
	return machine, nil
}

func (s *MachineService) Update(ctx context.Context, actor Actor, id string, req *UpdateMachineRequest) (*entity.Machine, error) {
	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Type != nil {
		updates["type"] = strings.TrimSpace(*req.Type)
	}
	if req.Manufacturer != nil {
		updates["manufacturer"] = *req.Manufacturer
	}
	if req.Model != nil {
		updates["model"] = *req.Model
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.IPAddress != nil {
		updates["ip_address"] = *req.IPAddress
	}
	if req.SerialPort != nil {
		updates["serial_port"] = *req.SerialPort
	}
	if req.Capabilities != nil {
		updates["capabilities"] = datatypes.JSONMap(*req.Capabilities)
	}

	if err := s.update(ctx, id, updates); err != nil {
		return nil, err
	}
	s.logger.Info("Machine updated", zap.String("machine_id", id), zap.String("user_id", actor.ID))
	s.hub.PublishMachine(id, "updated")
	return s.Get(ctx, id)
}

func (s *MachineService) UpdateStatus(ctx context.Context, actor Actor, id, status string) (*entity.Machine, error) {
	if !entity.ValidMachineStatus(status) {
		return nil, ValidationError("Validation failed", FieldError{Path: "status", Message: "Invalid machine status"})
	}
	if err := s.update(ctx, id, map[string]interface{}{"status": status}); err != nil {
		return nil, err
	}
	s.logger.Info("Machine status changed",
		zap.String("machine_id", id),
		zap.String("status", status),
		zap.String("user_id", actor.ID),
	)
	s.hub.PublishMachine(id, "status")
	return s.Get(ctx, id)
}

func (s *MachineService) update(ctx context.Context, id string, updates map[string]interface{}) error {
	var err error
	if len(updates) == 0 {
		_, err = s.repos.Machine.FindByID(ctx, id)
	} else {
		err = s.repos.Machine.Update(ctx, id, updates)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return NotFoundError("Machine not found")
	}
	if err != nil {
		return fmt.Errorf("update machine: %w", err)
	}
	return nil
}

// Delete removes a machine that no program references.
func (s *MachineService) Delete(ctx context.Context, actor Actor, id string) error {
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.Machine.FindByIDForUpdate(ctx, id); err != nil {
			return err
		}
		count, err := tx.Machine.CountPrograms(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return ConflictError("Cannot delete machine with %d associated programs", count)
		}
		return tx.Machine.Delete(ctx, id)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return NotFoundError("Machine not found")
	}
	if err != nil {
		if IsKind(err, KindConflict) {
			return err
		}
		return fmt.Errorf("delete machine: %w", err)
	}

	s.logger.Info("Machine deleted", zap.String("machine_id", id), zap.String("user_id", actor.ID))
	s.hub.PublishMachine(id, "deleted")
	return nil
}

// NextProgramNumber reads the counter without consuming it.
func (s *MachineService) NextProgramNumber(ctx context.Context, id string) (*NextProgramNumber, error) {
	machine, err := s.repos.Machine.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFoundError("Machine not found")
		}
		return nil, fmt.Errorf("get machine: %w", err)
	}
	next := machine.NextProgramNumber
	if next == 0 {
		next = entity.DefaultProgramNumber
	}
	return &NextProgramNumber{Next: next, Formatted: FormatProgramNumber(next)}, nil
}

package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/entity"
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/repository"
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/sse"
	"github.com/Nikolaihoj1/millpoint-nc/internal/shared/search"
	"github.com/Nikolaihoj1/millpoint-nc/internal/shared/storage"
	"go.uber.org/zap"
)

// Services groups the domain services.
type Services struct {
	Machine    *MachineService
	Program    *ProgramService
	SetupSheet *SetupSheetService
}

// IndexPublisher receives search index updates after a write commits.
type IndexPublisher interface {
	Publish(ctx context.Context, ev search.Event)
}

// Deps are the collaborators shared by all services.
type Deps struct {
	Repos  *repository.Repositories
	Store  storage.Store
	Index  search.Index
	Events IndexPublisher
	Hub    *sse.Hub
	Logger *zap.Logger
}

func NewServices(d Deps) *Services {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Index == nil {
		d.Index = search.Disabled{}
	}
	return &Services{
		Machine:    NewMachineService(d.Repos, d.Hub, d.Logger),
		Program:    NewProgramService(d.Repos, d.Store, d.Index, d.Events, d.Hub, d.Logger),
		SetupSheet: NewSetupSheetService(d.Repos, d.Store, d.Hub, d.Logger),
	}
}

// Actor is the authenticated principal behind a write.
type Actor struct {
	ID    string
	Name  string
	Email string
}

func (a Actor) user() *entity.User {
	name := a.Name
	if name == "" {
		name = a.ID
	}
	return &entity.User{ID: a.ID, Name: name, Email: a.Email}
}

// ensureActor records the principal so author and approver relations resolve.
func ensureActor(ctx context.Context, tx *repository.Repositories, actor Actor) error {
	if strings.TrimSpace(actor.ID) == "" {
		return ValidationError("Authenticated user required")
	}
	if err := tx.User.Ensure(ctx, actor.user()); err != nil {
		return fmt.Errorf("record user: %w", err)
	}
	return nil
}

// FormatProgramNumber renders an auto-number as at least four digits.
func FormatProgramNumber(n int) string {
	return fmt.Sprintf("%04d", n)
}

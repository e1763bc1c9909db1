package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories groups the repositories sharing one *gorm.DB, which is either
// the pool or an open transaction.
type Repositories struct {
	db         *gorm.DB
	User       *UserRepository
	Machine    *MachineRepository
	Program    *ProgramRepository
	Version    *VersionRepository
	File       *ProgramFileRepository
	SetupSheet *SetupSheetRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:         db,
		User:       NewUserRepository(db),
		Machine:    NewMachineRepository(db),
		Program:    NewProgramRepository(db),
		Version:    NewVersionRepository(db),
		File:       NewProgramFileRepository(db),
		SetupSheet: NewSetupSheetRepository(db),
	}
}

// Transaction runs fn against repositories bound to a single transaction.
// Returning an error from fn rolls everything back.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// Ping checks the underlying connection.
func (r *Repositories) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func newID() string {
	return uuid.New().String()
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// likeEscape goes after every LIKE that takes a containsPattern.
const likeEscape = ` ESCAPE '\'`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern for a case-insensitive literal
// substring match against LOWER(column).
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(s))) + "%"
}

package repository

import (
	"context"

	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const programCountColumn = "(SELECT COUNT(*) FROM nc_programs WHERE nc_programs.machine_id = machines.id) AS program_count"

// MachineFilter narrows machine listings. Empty fields are ignored.
type MachineFilter struct {
	Type   string
	Status string
	Search string
}

type MachineRepository struct {
	db *gorm.DB
}

func NewMachineRepository(db *gorm.DB) *MachineRepository {
	return &MachineRepository{db: db}
}

// List returns machines ordered by name, each with its program count.
func (r *MachineRepository) List(ctx context.Context, f MachineFilter) ([]entity.Machine, error) {
	query := r.db.WithContext(ctx).Model(&entity.Machine{}).Select("machines.*, " + programCountColumn)
	if f.Type != "" {
		query = query.Where("LOWER(machines.type) LIKE ?"+likeEscape, containsPattern(f.Type))
	}
	if f.Status != "" {
		query = query.Where("machines.status = ?", f.Status)
	}
	if f.Search != "" {
		p := containsPattern(f.Search)
		query = query.Where("LOWER(machines.name) LIKE ?"+likeEscape+" OR LOWER(machines.manufacturer) LIKE ?"+likeEscape+" OR LOWER(machines.model) LIKE ?"+likeEscape, p, p, p)
	}

	var machines []entity.Machine
	err := query.Order("machines.name ASC").Find(&machines).Error
	return machines, err
}

func (r *MachineRepository) FindByID(ctx context.Context, id string) (*entity.Machine, error) {
	var machine entity.Machine
	if err := r.db.WithContext(ctx).First(&machine, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &machine, nil
}

// FindByIDForUpdate reads the machine under a row lock held until the
// enclosing transaction ends. Program inserts and machine deletes both take
// it, so a delete never misses a concurrently inserted program.
func (r *MachineRepository) FindByIDForUpdate(ctx context.Context, id string) (*entity.Machine, error) {
	var machine entity.Machine
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&machine, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &machine, nil
}

// FindDetail loads the machine with a summary of its programs, newest first.
func (r *MachineRepository) FindDetail(ctx context.Context, id string) (*entity.Machine, error) {
	var machine entity.Machine
	err := r.db.WithContext(ctx).
		Model(&entity.Machine{}).
		Select("machines.*, "+programCountColumn).
		Preload("Programs", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "part_number", "status", "machine_id", "last_modified").
				Order("last_modified DESC")
		}).
		Where("machines.id = ?", id).
		First(&machine).Error
	if err != nil {
		return nil, translate(err)
	}
	return &machine, nil
}

func (r *MachineRepository) Create(ctx context.Context, machine *entity.Machine) error {
	if machine.ID == "" {
		machine.ID = newID()
	}
	return r.db.WithContext(ctx).Omit("Programs").Create(machine).Error
}

// Update applies column updates; ErrNotFound when the row is missing.
func (r *MachineRepository) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&entity.Machine{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MachineRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&entity.Machine{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountPrograms counts programs that reference the machine.
func (r *MachineRepository) CountPrograms(ctx context.Context, id string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.NCProgram{}).Where("machine_id = ?", id).Count(&count).Error
	return count, err
}

// ConsumeProgramNumber advances the machine counter by one and returns the
// value it held before. The UPDATE comes first so the row is write-locked for
// the rest of the enclosing transaction; run it inside one.
func (r *MachineRepository) ConsumeProgramNumber(ctx context.Context, id string) (int, error) {
	db := r.db.WithContext(ctx)
	res := db.Model(&entity.Machine{}).
		Where("id = ?", id).
		UpdateColumn("next_program_number", gorm.Expr("COALESCE(next_program_number, ?) + 1", entity.DefaultProgramNumber))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrNotFound
	}

	var machine entity.Machine
	if err := db.Select("next_program_number").First(&machine, "id = ?", id).Error; err != nil {
		return 0, translate(err)
	}
	return machine.NextProgramNumber - 1, nil
}

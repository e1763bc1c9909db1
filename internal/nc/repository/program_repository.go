package repository

import (
	"context"
	"fmt"

	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/entity"
	"gorm.io/gorm"
)

// Sortable program columns by API name.
var programSortColumns = map[string]string{
	"name":         "name",
	"partNumber":   "part_number",
	"lastModified": "last_modified",
	"customer":     "customer",
}

// ProgramFilter narrows program listings. A non-nil IDs restricts the result
// to those ids (search mode); an empty non-nil slice matches nothing.
type ProgramFilter struct {
	IDs        []string
	Status     string
	MachineID  string
	Customer   string
	PartNumber string
	SortBy     string
	SortOrder  string
	Offset     int
	Limit      int
}

type ProgramRepository struct {
	db *gorm.DB
}

func NewProgramRepository(db *gorm.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

// List returns one page of programs and the total number of matching rows.
// A zero Limit returns every match.
func (r *ProgramRepository) List(ctx context.Context, f ProgramFilter) ([]entity.NCProgram, int64, error) {
	var programs []entity.NCProgram
	if f.IDs != nil && len(f.IDs) == 0 {
		return programs, 0, nil
	}

	query := r.db.WithContext(ctx).Model(&entity.NCProgram{})
	if f.IDs != nil {
		query = query.Where("id IN ?", f.IDs)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.MachineID != "" {
		query = query.Where("machine_id = ?", f.MachineID)
	}
	if f.Customer != "" {
		query = query.Where("LOWER(customer) LIKE ?"+likeEscape, containsPattern(f.Customer))
	}
	if f.PartNumber != "" {
		query = query.Where("LOWER(part_number) LIKE ?"+likeEscape, containsPattern(f.PartNumber))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := programSortColumns[f.SortBy]
	if !ok {
		column = "last_modified"
	}
	direction := "DESC"
	if f.SortOrder == "asc" {
		direction = "ASC"
	}
	query = query.
		Preload("Machine", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "type")
		}).
		Preload("Author").
		Order(fmt.Sprintf("%s %s", column, direction))
	if f.Limit > 0 {
		query = query.Offset(f.Offset).Limit(f.Limit)
	}

	err := query.Find(&programs).Error
	return programs, total, err
}

func (r *ProgramRepository) FindByID(ctx context.Context, id string) (*entity.NCProgram, error) {
	var program entity.NCProgram
	if err := r.db.WithContext(ctx).First(&program, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &program, nil
}

// FindDetail loads a program with machine, people, setup sheets, the ten
// latest versions and uploaded files.
func (r *ProgramRepository) FindDetail(ctx context.Context, id string) (*entity.NCProgram, error) {
	var program entity.NCProgram
	err := r.db.WithContext(ctx).
		Preload("Machine").
		Preload("Author").
		Preload("Approver").
		Preload("SetupSheets", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Preload("SetupSheets.Tools", func(db *gorm.DB) *gorm.DB {
			return db.Order("tool_number ASC")
		}).
		Preload("SetupSheets.OriginOffsets", func(db *gorm.DB) *gorm.DB {
			return db.Order("name ASC")
		}).
		Preload("SetupSheets.Fixtures").
		Preload("SetupSheets.Media", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Preload("Versions", func(db *gorm.DB) *gorm.DB {
			return db.Order("version_number DESC").Limit(10)
		}).
		Preload("Versions.CreatedBy").
		Preload("Files", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		First(&program, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &program, nil
}

// FindWithMachine loads a program and its machine, for search documents.
func (r *ProgramRepository) FindWithMachine(ctx context.Context, id string) (*entity.NCProgram, error) {
	var program entity.NCProgram
	if err := r.db.WithContext(ctx).Preload("Machine").First(&program, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &program, nil
}

func (r *ProgramRepository) Create(ctx context.Context, program *entity.NCProgram) error {
	if program.ID == "" {
		program.ID = newID()
	}
	return r.db.WithContext(ctx).
		Omit("Machine", "Author", "Approver", "Versions", "SetupSheets", "Files").
		Create(program).Error
}

// Update applies column updates and bumps last_modified.
func (r *ProgramRepository) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&entity.NCProgram{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetHasSetupSheet writes the cached flag without touching last_modified.
func (r *ProgramRepository) SetHasSetupSheet(ctx context.Context, id string, has bool) error {
	return r.db.WithContext(ctx).Model(&entity.NCProgram{}).
		Where("id = ?", id).
		UpdateColumn("has_setup_sheet", has).Error
}

// Delete removes the program and everything it owns. Run inside a transaction.
func (r *ProgramRepository) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)

	var sheetIDs []string
	if err := db.Model(&entity.SetupSheet{}).Where("program_id = ?", id).Pluck("id", &sheetIDs).Error; err != nil {
		return err
	}
	if len(sheetIDs) > 0 {
		if err := deleteSheetChildren(db, sheetIDs); err != nil {
			return err
		}
		if err := db.Delete(&entity.SetupSheet{}, "id IN ?", sheetIDs).Error; err != nil {
			return err
		}
	}
	if err := db.Delete(&entity.ProgramVersion{}, "program_id = ?", id).Error; err != nil {
		return err
	}
	if err := db.Delete(&entity.ProgramFile{}, "program_id = ?", id).Error; err != nil {
		return err
	}

	res := db.Delete(&entity.NCProgram{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// EachBatch walks every program (machine preloaded) in batches of size.
func (r *ProgramRepository) EachBatch(ctx context.Context, size int, fn func([]entity.NCProgram) error) error {
	var batch []entity.NCProgram
	return r.db.WithContext(ctx).
		Preload("Machine").
		Order("id ASC").
		FindInBatches(&batch, size, func(tx *gorm.DB, _ int) error {
			return fn(batch)
		}).Error
}

type VersionRepository struct {
	db *gorm.DB
}

func NewVersionRepository(db *gorm.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// ListByProgram returns the full history, newest first.
func (r *VersionRepository) ListByProgram(ctx context.Context, programID string) ([]entity.ProgramVersion, error) {
	var versions []entity.ProgramVersion
	err := r.db.WithContext(ctx).
		Preload("CreatedBy").
		Where("program_id = ?", programID).
		Order("version_number DESC").
		Find(&versions).Error
	return versions, err
}

func (r *VersionRepository) FindByID(ctx context.Context, programID, id string) (*entity.ProgramVersion, error) {
	var version entity.ProgramVersion
	err := r.db.WithContext(ctx).First(&version, "id = ? AND program_id = ?", id, programID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &version, nil
}

// NextNumber returns max(version_number)+1 for the program, 1 when empty.
func (r *VersionRepository) NextNumber(ctx context.Context, programID string) (int, error) {
	var highest int
	err := r.db.WithContext(ctx).
		Model(&entity.ProgramVersion{}).
		Where("program_id = ?", programID).
		Select("COALESCE(MAX(version_number), 0)").
		Scan(&highest).Error
	if err != nil {
		return 0, err
	}
	return highest + 1, nil
}

func (r *VersionRepository) Create(ctx context.Context, version *entity.ProgramVersion) error {
	if version.ID == "" {
		version.ID = newID()
	}
	return r.db.WithContext(ctx).Omit("CreatedBy").Create(version).Error
}

type ProgramFileRepository struct {
	db *gorm.DB
}

func NewProgramFileRepository(db *gorm.DB) *ProgramFileRepository {
	return &ProgramFileRepository{db: db}
}

func (r *ProgramFileRepository) Create(ctx context.Context, file *entity.ProgramFile) error {
	if file.ID == "" {
		file.ID = newID()
	}
	return r.db.WithContext(ctx).Create(file).Error
}

func (r *ProgramFileRepository) ListByProgram(ctx context.Context, programID string) ([]entity.ProgramFile, error) {
	var files []entity.ProgramFile
	err := r.db.WithContext(ctx).
		Where("program_id = ?", programID).
		Order("created_at DESC").
		Find(&files).Error
	return files, err
}

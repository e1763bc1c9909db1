package repository

import (
	"context"

	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SetupSheetRepository struct {
	db *gorm.DB
}

func NewSetupSheetRepository(db *gorm.DB) *SetupSheetRepository {
	return &SetupSheetRepository{db: db}
}

func preloadSheetChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Tools", func(db *gorm.DB) *gorm.DB {
			return db.Order("tool_number ASC")
		}).
		Preload("OriginOffsets", func(db *gorm.DB) *gorm.DB {
			return db.Order("name ASC")
		}).
		Preload("Fixtures").
		Preload("Media", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		})
}

// ListByProgram returns the program's setup sheets with their children.
func (r *SetupSheetRepository) ListByProgram(ctx context.Context, programID string) ([]entity.SetupSheet, error) {
	var sheets []entity.SetupSheet
	err := preloadSheetChildren(r.db.WithContext(ctx)).
		Preload("CreatedBy").
		Preload("ApprovedBy").
		Where("program_id = ?", programID).
		Order("created_at DESC").
		Find(&sheets).Error
	return sheets, err
}

// FindByID loads a sheet with its children, program, machine and people.
func (r *SetupSheetRepository) FindByID(ctx context.Context, id string) (*entity.SetupSheet, error) {
	var sheet entity.SetupSheet
	err := preloadSheetChildren(r.db.WithContext(ctx)).
		Preload("Program", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "part_number", "revision", "status", "customer", "operation", "material")
		}).
		Preload("Machine").
		Preload("CreatedBy").
		Preload("ApprovedBy").
		First(&sheet, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &sheet, nil
}

// Create writes the parent row only; children go through the Replace* calls.
func (r *SetupSheetRepository) Create(ctx context.Context, sheet *entity.SetupSheet) error {
	if sheet.ID == "" {
		sheet.ID = newID()
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(sheet).Error
}

func (r *SetupSheetRepository) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&entity.SetupSheet{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the sheet and its four collections. Run inside a transaction.
func (r *SetupSheetRepository) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	if err := deleteSheetChildren(db, []string{id}); err != nil {
		return err
	}
	res := db.Delete(&entity.SetupSheet{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByProgram counts the sheets that reference a program.
func (r *SetupSheetRepository) CountByProgram(ctx context.Context, programID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.SetupSheet{}).Where("program_id = ?", programID).Count(&count).Error
	return count, err
}

// ReplaceTools swaps the sheet's tool list for tools.
func (r *SetupSheetRepository) ReplaceTools(ctx context.Context, sheetID string, tools []entity.Tool) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("setup_sheet_id = ?", sheetID).Delete(&entity.Tool{}).Error; err != nil {
		return err
	}
	if len(tools) == 0 {
		return nil
	}
	for i := range tools {
		tools[i].ID = newID()
		tools[i].SetupSheetID = sheetID
	}
	return db.Create(&tools).Error
}

// ReplaceOffsets swaps the sheet's origin offsets for offsets.
func (r *SetupSheetRepository) ReplaceOffsets(ctx context.Context, sheetID string, offsets []entity.OriginOffset) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("setup_sheet_id = ?", sheetID).Delete(&entity.OriginOffset{}).Error; err != nil {
		return err
	}
	if len(offsets) == 0 {
		return nil
	}
	for i := range offsets {
		offsets[i].ID = newID()
		offsets[i].SetupSheetID = sheetID
	}
	return db.Create(&offsets).Error
}

// ReplaceFixtures swaps the sheet's fixtures for fixtures.
func (r *SetupSheetRepository) ReplaceFixtures(ctx context.Context, sheetID string, fixtures []entity.Fixture) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("setup_sheet_id = ?", sheetID).Delete(&entity.Fixture{}).Error; err != nil {
		return err
	}
	if len(fixtures) == 0 {
		return nil
	}
	for i := range fixtures {
		fixtures[i].ID = newID()
		fixtures[i].SetupSheetID = sheetID
	}
	return db.Create(&fixtures).Error
}

// ReplaceMedia swaps the sheet's media list for media.
func (r *SetupSheetRepository) ReplaceMedia(ctx context.Context, sheetID string, media []entity.Media) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("setup_sheet_id = ?", sheetID).Delete(&entity.Media{}).Error; err != nil {
		return err
	}
	if len(media) == 0 {
		return nil
	}
	return r.AddMedia(ctx, sheetID, media)
}

// AddMedia appends media rows to a sheet.
func (r *SetupSheetRepository) AddMedia(ctx context.Context, sheetID string, media []entity.Media) error {
	for i := range media {
		media[i].ID = newID()
		media[i].SetupSheetID = sheetID
	}
	return r.db.WithContext(ctx).Create(&media).Error
}

// NextMediaOrder returns the display position after the last media entry.
func (r *SetupSheetRepository) NextMediaOrder(ctx context.Context, sheetID string) (int, error) {
	var next int
	err := r.db.WithContext(ctx).
		Model(&entity.Media{}).
		Where("setup_sheet_id = ?", sheetID).
		Select("COALESCE(MAX(sort_order) + 1, 0)").
		Scan(&next).Error
	return next, err
}

func (r *SetupSheetRepository) FindMedia(ctx context.Context, sheetID, mediaID string) (*entity.Media, error) {
	var media entity.Media
	err := r.db.WithContext(ctx).First(&media, "id = ? AND setup_sheet_id = ?", mediaID, sheetID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &media, nil
}

func (r *SetupSheetRepository) DeleteMedia(ctx context.Context, mediaID string) error {
	return r.db.WithContext(ctx).Delete(&entity.Media{}, "id = ?", mediaID).Error
}

func deleteSheetChildren(db *gorm.DB, sheetIDs []string) error {
	for _, model := range []interface{}{&entity.Tool{}, &entity.OriginOffset{}, &entity.Fixture{}, &entity.Media{}} {
		if err := db.Where("setup_sheet_id IN ?", sheetIDs).Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

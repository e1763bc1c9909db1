package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/entity"
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/repository"
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/sse"
	"github.com/Nikolaihoj1/millpoint-nc/internal/shared/storage"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	// MaxMediaFiles bounds one upload request and one media collection.
	MaxMediaFiles = 10

	mediaURLPrefix = "/api/files/" + entity.FileCategoryMedia + "/"
)

// Accepted upload content types and the media kind they map to.
var mediaContentTypes = map[string]string{
	"image/jpeg":      entity.MediaTypeImage,
	"image/png":       entity.MediaTypeImage,
	"image/gif":       entity.MediaTypeImage,
	"image/webp":      entity.MediaTypeImage,
	"video/mp4":       entity.MediaTypeVideo,
	"video/webm":      entity.MediaTypeVideo,
	"video/quicktime": entity.MediaTypeVideo,
}

type ToolInput struct {
	ToolNumber int     `json:"toolNumber"`
	ToolName   string  `json:"toolName"`
	Length     float64 `json:"length"`
	OffsetH    int     `json:"offsetH"`
	OffsetD    int     `json:"offsetD"`
	Comment    string  `json:"comment"`
}

type OffsetInput struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
	A    float64 `json:"a"`
	B    float64 `json:"b"`
	C    float64 `json:"c"`
}

type FixtureInput struct {
	FixtureID        string `json:"fixtureId"`
	Quantity         *int   `json:"quantity"`
	SetupDescription string `json:"setupDescription"`
}

// MediaInput is one media entry. Entries with a blank URL are dropped; Order
// defaults to the entry's position among the kept entries.
type MediaInput struct {
	Type        string   `json:"type"`
	URL         string   `json:"url"`
	Caption     string   `json:"caption"`
	Annotations []string `json:"annotations"`
	Order       *int     `json:"order"`
}

type CreateSetupSheetRequest struct {
	ProgramID       string         `json:"programId" binding:"required"`
	MachineID       string         `json:"machineId" binding:"required"`
	MachineType     string         `json:"machineType"`
	SafetyChecklist []string       `json:"safetyChecklist"`
	Tools           []ToolInput    `json:"tools"`
	OriginOffsets   []OffsetInput  `json:"originOffsets"`
	Fixtures        []FixtureInput `json:"fixtures"`
	Media           []MediaInput   `json:"media"`
}

// UpdateSetupSheetRequest replaces only the fields and collections present.
type UpdateSetupSheetRequest struct {
	MachineID       *string         `json:"machineId"`
	MachineType     *string         `json:"machineType"`
	SafetyChecklist *[]string       `json:"safetyChecklist"`
	Tools           *[]ToolInput    `json:"tools"`
	OriginOffsets   *[]OffsetInput  `json:"originOffsets"`
	Fixtures        *[]FixtureInput `json:"fixtures"`
	Media           *[]MediaInput   `json:"media"`
}

type ApproveSetupSheetRequest struct {
	Approved *bool  `json:"approved" binding:"required"`
	Comments string `json:"comments"`
}

// MediaUpload is one file of a media upload request.
type MediaUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type SetupSheetService struct {
	repos  *repository.Repositories
	store  storage.Store
	hub    *sse.Hub
	logger *zap.Logger
}

func NewSetupSheetService(repos *repository.Repositories, store storage.Store, hub *sse.Hub, logger *zap.Logger) *SetupSheetService {
	return &SetupSheetService{repos: repos, store: store, hub: hub, logger: logger}
}

// sheetChildren is a validated set of child collections ready to persist.
type sheetChildren struct {
	tools    []entity.Tool
	offsets  []entity.OriginOffset
	fixtures []entity.Fixture
	media    []entity.Media
}

func buildTools(in []ToolInput, problems *fieldErrors) []entity.Tool {
	if len(in) == 0 {
		problems.add("tools", "At least one tool is required")
		return nil
	}
	tools := make([]entity.Tool, 0, len(in))
	for i, t := range in {
		if t.ToolNumber < 1 {
			problems.add(fmt.Sprintf("tools[%d].toolNumber", i), "Tool number must be a positive integer")
		}
		if strings.TrimSpace(t.ToolName) == "" {
			problems.add(fmt.Sprintf("tools[%d].toolName", i), "Tool name is required")
		}
		tools = append(tools, entity.Tool{
			ToolNumber: t.ToolNumber,
			ToolName:   strings.TrimSpace(t.ToolName),
			Length:     t.Length,
			OffsetH:    t.OffsetH,
			OffsetD:    t.OffsetD,
			Comment:    t.Comment,
		})
	}
	return tools
}

func buildOffsets(in []OffsetInput, problems *fieldErrors) []entity.OriginOffset {
	if len(in) == 0 {
		problems.add("originOffsets", "At least one origin offset is required")
		return nil
	}
	offsets := make([]entity.OriginOffset, 0, len(in))
	for i, o := range in {
		if strings.TrimSpace(o.Name) == "" {
			problems.add(fmt.Sprintf("originOffsets[%d].name", i), "Offset name is required")
		}
		offsets = append(offsets, entity.OriginOffset{
			Name: strings.TrimSpace(o.Name),
			X:    o.X, Y: o.Y, Z: o.Z,
			A: o.A, B: o.B, C: o.C,
		})
	}
	return offsets
}

func buildFixtures(in []FixtureInput, problems *fieldErrors) []entity.Fixture {
	fixtures := make([]entity.Fixture, 0, len(in))
	for i, f := range in {
		if strings.TrimSpace(f.FixtureID) == "" {
			problems.add(fmt.Sprintf("fixtures[%d].fixtureId", i), "Fixture id is required")
		}
		var qty int
		switch {
		case f.Quantity == nil:
			problems.add(fmt.Sprintf("fixtures[%d].quantity", i), "Quantity is required")
		case *f.Quantity < 1:
			problems.add(fmt.Sprintf("fixtures[%d].quantity", i), "Quantity must be a positive integer")
		default:
			qty = *f.Quantity
		}
		fixtures = append(fixtures, entity.Fixture{
			FixtureID:        strings.TrimSpace(f.FixtureID),
			Quantity:         qty,
			SetupDescription: f.SetupDescription,
		})
	}
	return fixtures
}

// buildMedia drops entries with a blank url. The cap counts them anyway.
func buildMedia(in []MediaInput, problems *fieldErrors) []entity.Media {
	if len(in) > MaxMediaFiles {
		problems.add("media", "At most %d media entries are allowed", MaxMediaFiles)
	}
	media := make([]entity.Media, 0, len(in))
	for i, m := range in {
		url := strings.TrimSpace(m.URL)
		if url == "" {
			continue
		}
		kind := m.Type
		if kind == "" {
			kind = mediaContentTypes[strings.SplitN(storage.ContentTypeFor(url), ";", 2)[0]]
		}
		if kind != entity.MediaTypeImage && kind != entity.MediaTypeVideo {
			problems.add(fmt.Sprintf("media[%d].type", i), "Media type must be image or video")
		}
		order := len(media)
		if m.Order != nil {
			order = *m.Order
		}
		annotations := m.Annotations
		if annotations == nil {
			annotations = []string{}
		}
		media = append(media, entity.Media{
			Type:        kind,
			URL:         url,
			Caption:     m.Caption,
			Annotations: annotations,
			Order:       order,
		})
	}
	return media
}

func (s *SetupSheetService) List(ctx context.Context, programID string) ([]entity.SetupSheet, error) {
	if strings.TrimSpace(programID) == "" {
		return nil, ValidationError("Program ID is required")
	}
	sheets, err := s.repos.SetupSheet.ListByProgram(ctx, programID)
	if err != nil {
		return nil, fmt.Errorf("list setup sheets: %w", err)
	}
	return sheets, nil
}

func (s *SetupSheetService) Get(ctx context.Context, id string) (*entity.SetupSheet, error) {
	sheet, err := s.repos.SetupSheet.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFoundError("Setup sheet not found")
		}
		return nil, fmt.Errorf("get setup sheet: %w", err)
	}
	return sheet, nil
}

// Create validates the whole aggregate, then writes the sheet, its four
// collections and the program's hasSetupSheet flag in one transaction.
func (s *SetupSheetService) Create(ctx context.Context, actor Actor, req *CreateSetupSheetRequest) (*entity.SetupSheet, error) {
	var problems fieldErrors
	children := sheetChildren{
		tools:    buildTools(req.Tools, &problems),
		offsets:  buildOffsets(req.OriginOffsets, &problems),
		fixtures: buildFixtures(req.Fixtures, &problems),
		media:    buildMedia(req.Media, &problems),
	}
	if err := problems.err(); err != nil {
		return nil, err
	}

	checklist := req.SafetyChecklist
	if checklist == nil {
		checklist = []string{}
	}
	sheet := &entity.SetupSheet{
		ProgramID:       req.ProgramID,
		MachineID:       req.MachineID,
		MachineType:     strings.TrimSpace(req.MachineType),
		SafetyChecklist: checklist,
		CreatedByID:     actor.ID,
	}

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := ensureActor(ctx, tx, actor); err != nil {
			return err
		}
		if _, err := tx.Program.FindByID(ctx, req.ProgramID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return NotFoundError("Program not found")
			}
			return err
		}
		machine, err := tx.Machine.FindByID(ctx, req.MachineID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return NotFoundError("Machine not found")
			}
			return err
		}
		if sheet.MachineType == "" {
			sheet.MachineType = machine.Type
		}

		if err := tx.SetupSheet.Create(ctx, sheet); err != nil {
			return err
		}
		if err := replaceChildren(ctx, tx, sheet.ID, &children, true, true, true, true); err != nil {
			return err
		}
		return tx.Program.SetHasSetupSheet(ctx, req.ProgramID, true)
	})
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return nil, err
		}
		return nil, fmt.Errorf("create setup sheet: %w", err)
	}

	s.logger.Info("Setup sheet created",
		zap.String("setup_sheet_id", sheet.ID),
		zap.String("program_id", sheet.ProgramID),
		zap.Int("tools", len(children.tools)),
		zap.Int("offsets", len(children.offsets)),
		zap.Int("fixtures", len(children.fixtures)),
		zap.Int("media", len(children.media)),
		zap.String("user_id", actor.ID),
	)
	s.hub.PublishSetupSheet(sheet.ID, sheet.ProgramID, "created")
	s.hub.PublishProgram(sheet.ProgramID, "updated")
	return s.Get(ctx, sheet.ID)
}

func replaceChildren(ctx context.Context, tx *repository.Repositories, sheetID string, c *sheetChildren, tools, offsets, fixtures, media bool) error {
	if tools {
		if err := tx.SetupSheet.ReplaceTools(ctx, sheetID, c.tools); err != nil {
			return fmt.Errorf("replace tools: %w", err)
		}
	}
	if offsets {
		if err := tx.SetupSheet.ReplaceOffsets(ctx, sheetID, c.offsets); err != nil {
			return fmt.Errorf("replace origin offsets: %w", err)
		}
	}
	if fixtures {
		if err := tx.SetupSheet.ReplaceFixtures(ctx, sheetID, c.fixtures); err != nil {
			return fmt.Errorf("replace fixtures: %w", err)
		}
	}
	if media {
		if err := tx.SetupSheet.ReplaceMedia(ctx, sheetID, c.media); err != nil {
			return fmt.Errorf("replace media: %w", err)
		}
	}
	return nil
}

// Update rewrites the scalar fields present in req and replaces each child
// collection present in req wholesale. Absent collections are untouched.
func (s *SetupSheetService) Update(ctx context.Context, actor Actor, id string, req *UpdateSetupSheetRequest) (*entity.SetupSheet, error) {
	var problems fieldErrors
	var children sheetChildren
	if req.Tools != nil {
		children.tools = buildTools(*req.Tools, &problems)
	}
	if req.OriginOffsets != nil {
		children.offsets = buildOffsets(*req.OriginOffsets, &problems)
	}
	if req.Fixtures != nil {
		children.fixtures = buildFixtures(*req.Fixtures, &problems)
	}
	if req.Media != nil {
		children.media = buildMedia(*req.Media, &problems)
	}
	if err := problems.err(); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"updated_at": time.Now()}
	if req.MachineType != nil {
		updates["machine_type"] = strings.TrimSpace(*req.MachineType)
	}
	if req.SafetyChecklist != nil {
		checklist := *req.SafetyChecklist
		if checklist == nil {
			checklist = []string{}
		}
		updates["safety_checklist"] = datatypes.JSONSlice[string](checklist)
	}
	if req.MachineID != nil {
		updates["machine_id"] = *req.MachineID
	}

	var programID string
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		sheet, err := tx.SetupSheet.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return NotFoundError("Setup sheet not found")
			}
			return err
		}
		programID = sheet.ProgramID
		if req.MachineID != nil {
			if _, err := tx.Machine.FindByID(ctx, *req.MachineID); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return NotFoundError("Machine not found")
				}
				return err
			}
		}
		if err := tx.SetupSheet.Update(ctx, id, updates); err != nil {
			return err
		}
		return replaceChildren(ctx, tx, id, &children,
			req.Tools != nil, req.OriginOffsets != nil, req.Fixtures != nil, req.Media != nil)
	})
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return nil, err
		}
		return nil, fmt.Errorf("update setup sheet: %w", err)
	}

	s.logger.Info("Setup sheet updated", zap.String("setup_sheet_id", id), zap.String("user_id", actor.ID))
	s.hub.PublishSetupSheet(id, programID, "updated")
	return s.Get(ctx, id)
}

// Delete removes the sheet with its collections and clears the program's
// hasSetupSheet flag when no sheet remains. Uploaded media files are removed
// after commit.
func (s *SetupSheetService) Delete(ctx context.Context, actor Actor, id string) error {
	var programID string
	var media []entity.Media
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		sheet, err := tx.SetupSheet.FindByID(ctx, id)
		if err != nil {
			return err
		}
		programID = sheet.ProgramID
		media = sheet.Media

		if err := tx.SetupSheet.Delete(ctx, id); err != nil {
			return err
		}
		remaining, err := tx.SetupSheet.CountByProgram(ctx, programID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			return tx.Program.SetHasSetupSheet(ctx, programID, false)
		}
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return NotFoundError("Setup sheet not found")
	}
	if err != nil {
		return fmt.Errorf("delete setup sheet: %w", err)
	}

	for i := range media {
		s.removeMediaFile(ctx, media[i].URL)
	}
	s.logger.Info("Setup sheet deleted",
		zap.String("setup_sheet_id", id),
		zap.String("program_id", programID),
		zap.String("user_id", actor.ID),
	)
	s.hub.PublishSetupSheet(id, programID, "deleted")
	s.hub.PublishProgram(programID, "updated")
	return nil
}

// Approve stamps the sheet as approved by actor, or clears the approval when
// req.Approved is false.
func (s *SetupSheetService) Approve(ctx context.Context, actor Actor, id string, req *ApproveSetupSheetRequest) (*entity.SetupSheet, error) {
	approved := req.Approved != nil && *req.Approved
	updates := map[string]interface{}{
		"approved_by_id":    nil,
		"approved_at":       nil,
		"approval_comments": "",
	}
	if approved {
		updates["approved_by_id"] = actor.ID
		updates["approved_at"] = time.Now()
		updates["approval_comments"] = req.Comments
	}

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := ensureActor(ctx, tx, actor); err != nil {
			return err
		}
		return tx.SetupSheet.Update(ctx, id, updates)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotFoundError("Setup sheet not found")
	}
	if err != nil {
		if IsKind(err, KindValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("approve setup sheet: %w", err)
	}

	action := "approved"
	if !approved {
		action = "revoked"
	}
	s.logger.Info("Setup sheet approval changed",
		zap.String("setup_sheet_id", id),
		zap.String("action", action),
		zap.String("user_id", actor.ID),
	)
	sheet, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.hub.PublishSetupSheet(id, sheet.ProgramID, action)
	return sheet, nil
}

// UploadMedia stores images and videos and appends them to the sheet's media
// after the existing entries.
func (s *SetupSheetService) UploadMedia(ctx context.Context, actor Actor, id string, files []MediaUpload) ([]entity.Media, error) {
	if len(files) == 0 {
		return nil, ValidationError("No files uploaded")
	}
	var problems fieldErrors
	if len(files) > MaxMediaFiles {
		problems.add("files", "At most %d files per upload", MaxMediaFiles)
	}
	for i, f := range files {
		if _, ok := mediaContentTypes[mediaType(f.ContentType)]; !ok {
			problems.add(fmt.Sprintf("files[%d]", i), "Invalid file type. Only images and videos are allowed.")
		}
		if f.Size > MaxUploadSize {
			problems.add(fmt.Sprintf("files[%d]", i), "Maximum file size is 50MB")
		}
	}
	if err := problems.err(); err != nil {
		return nil, err
	}
	if _, err := s.repos.SetupSheet.FindByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFoundError("Setup sheet not found")
		}
		return nil, fmt.Errorf("get setup sheet: %w", err)
	}

	stored := make([]*storage.Object, 0, len(files))
	cleanup := func() {
		for _, obj := range stored {
			if err := s.store.Delete(context.WithoutCancel(ctx), obj.Category, obj.Name); err != nil {
				s.logger.Warn("Failed to remove orphaned media", zap.String("key", obj.Key()), zap.Error(err))
			}
		}
	}
	for _, f := range files {
		obj, err := storage.Save(ctx, s.store, entity.FileCategoryMedia, f.FileName, f.Body, f.Size, mediaType(f.ContentType))
		if err != nil {
			cleanup()
			return nil, StorageError("Failed to store media", err)
		}
		stored = append(stored, obj)
	}

	var media []entity.Media
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		next, err := tx.SetupSheet.NextMediaOrder(ctx, id)
		if err != nil {
			return err
		}
		for i, obj := range stored {
			media = append(media, entity.Media{
				Type:        mediaContentTypes[mediaType(files[i].ContentType)],
				URL:         mediaURLPrefix + obj.Name,
				Caption:     files[i].FileName,
				Annotations: []string{},
				Order:       next + i,
			})
		}
		if err := tx.SetupSheet.AddMedia(ctx, id, media); err != nil {
			return err
		}
		return tx.SetupSheet.Update(ctx, id, map[string]interface{}{"updated_at": time.Now()})
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("add media: %w", err)
	}

	s.logger.Info("Setup sheet media uploaded",
		zap.String("setup_sheet_id", id),
		zap.Int("files", len(media)),
		zap.String("user_id", actor.ID),
	)
	s.hub.PublishSetupSheet(id, "", "media")
	return media, nil
}

// DeleteMedia removes one media entry and its stored file.
func (s *SetupSheetService) DeleteMedia(ctx context.Context, actor Actor, sheetID, mediaID string) error {
	media, err := s.repos.SetupSheet.FindMedia(ctx, sheetID, mediaID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NotFoundError("Media not found")
		}
		return fmt.Errorf("get media: %w", err)
	}
	if err := s.repos.SetupSheet.DeleteMedia(ctx, mediaID); err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	s.removeMediaFile(ctx, media.URL)

	s.logger.Info("Setup sheet media deleted",
		zap.String("setup_sheet_id", sheetID),
		zap.String("media_id", mediaID),
		zap.String("user_id", actor.ID),
	)
	s.hub.PublishSetupSheet(sheetID, "", "media")
	return nil
}

// removeMediaFile deletes the stored file behind a /api/files/media/ URL.
// External URLs are left alone.
func (s *SetupSheetService) removeMediaFile(ctx context.Context, url string) {
	name, ok := strings.CutPrefix(url, mediaURLPrefix)
	if !ok {
		return
	}
	err := s.store.Delete(context.WithoutCancel(ctx), entity.FileCategoryMedia, name)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("Failed to remove media file", zap.String("file", name), zap.Error(err))
	}
}

var (
	toolHeaders    = []string{"Tool #", "Name", "Length", "H", "D", "Comment"}
	offsetHeaders  = []string{"Name", "X", "Y", "Z", "A", "B", "C"}
	fixtureHeaders = []string{"Fixture", "Qty", "Setup"}
)

// Export renders the sheet as an xlsx workbook with one worksheet per
// collection and returns it with a download file name.
func (s *SetupSheetService) Export(ctx context.Context, id string) (*excelize.File, string, error) {
	sheet, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	writeHeader := func(name string, headers []string, widths []float64) {
		for i, h := range headers {
			col, _ := excelize.ColumnNumberToName(i + 1)
			f.SetCellValue(name, col+"1", h)
			f.SetCellStyle(name, col+"1", col+"1", headerStyle)
			if i < len(widths) {
				f.SetColWidth(name, col, col, widths[i])
			}
		}
	}

	f.SetSheetName("Sheet1", "Tools")
	writeHeader("Tools", toolHeaders, []float64{8, 28, 10, 6, 6, 32})
	for i, t := range sheet.Tools {
		row := i + 2
		f.SetCellValue("Tools", fmt.Sprintf("A%d", row), t.ToolNumber)
		f.SetCellValue("Tools", fmt.Sprintf("B%d", row), t.ToolName)
		f.SetCellValue("Tools", fmt.Sprintf("C%d", row), t.Length)
		f.SetCellValue("Tools", fmt.Sprintf("D%d", row), t.OffsetH)
		f.SetCellValue("Tools", fmt.Sprintf("E%d", row), t.OffsetD)
		f.SetCellValue("Tools", fmt.Sprintf("F%d", row), t.Comment)
	}

	f.NewSheet("Offsets")
	writeHeader("Offsets", offsetHeaders, []float64{10, 12, 12, 12, 10, 10, 10})
	for i, o := range sheet.OriginOffsets {
		row := i + 2
		for j, v := range []interface{}{o.Name, o.X, o.Y, o.Z, o.A, o.B, o.C} {
			col, _ := excelize.ColumnNumberToName(j + 1)
			f.SetCellValue("Offsets", fmt.Sprintf("%s%d", col, row), v)
		}
	}

	f.NewSheet("Fixtures")
	writeHeader("Fixtures", fixtureHeaders, []float64{20, 6, 48})
	for i, fx := range sheet.Fixtures {
		row := i + 2
		f.SetCellValue("Fixtures", fmt.Sprintf("A%d", row), fx.FixtureID)
		f.SetCellValue("Fixtures", fmt.Sprintf("B%d", row), fx.Quantity)
		f.SetCellValue("Fixtures", fmt.Sprintf("C%d", row), fx.SetupDescription)
	}

	f.NewSheet("Safety")
	writeHeader("Safety", []string{"#", "Check"}, []float64{6, 64})
	for i, item := range sheet.SafetyChecklist {
		row := i + 2
		f.SetCellValue("Safety", fmt.Sprintf("A%d", row), i+1)
		f.SetCellValue("Safety", fmt.Sprintf("B%d", row), item)
	}

	partNumber := sheet.ProgramID
	revision := ""
	if sheet.Program != nil {
		partNumber = sheet.Program.PartNumber
		revision = sheet.Program.Revision
	}
	filename := storage.SanitizeName(fmt.Sprintf("SetupSheet_%s_%s.xlsx", partNumber, revision))
	return f, filename, nil
}

func mediaType(contentType string) string {
	return strings.TrimSpace(strings.ToLower(strings.SplitN(contentType, ";", 2)[0]))
}

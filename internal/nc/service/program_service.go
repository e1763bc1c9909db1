package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/entity"
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/repository"
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/sse"
	"github.com/Nikolaihoj1/millpoint-nc/internal/shared/search"
	"github.com/Nikolaihoj1/millpoint-nc/internal/shared/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPageSize = 20
	maxPageSize     = 500
	reindexBatch    = 200

	// MaxUploadSize bounds a single uploaded file.
	MaxUploadSize = 50 << 20
)

type CreateProgramRequest struct {
	Name        string `json:"name" binding:"required,max=256"`
	PartNumber  string `json:"partNumber" binding:"max=64"`
	Revision    string `json:"revision" binding:"required,max=32"`
	MachineID   string `json:"machineId" binding:"required,uuid"`
	Operation   string `json:"operation" binding:"required,max=128"`
	Material    string `json:"material" binding:"required,max=128"`
	Customer    string `json:"customer" binding:"required,max=128"`
	WorkOrder   string `json:"workOrder" binding:"max=64"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

type UpdateProgramRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=256"`
	PartNumber  *string `json:"partNumber" binding:"omitempty,max=64"`
	Revision    *string `json:"revision" binding:"omitempty,min=1,max=32"`
	MachineID   *string `json:"machineId" binding:"omitempty,uuid"`
	Operation   *string `json:"operation" binding:"omitempty,min=1,max=128"`
	Material    *string `json:"material" binding:"omitempty,min=1,max=128"`
	Customer    *string `json:"customer" binding:"omitempty,min=1,max=128"`
	WorkOrder   *string `json:"workOrder" binding:"omitempty,max=64"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	NCCode      *string `json:"ncCode"`
}

type ApproveProgramRequest struct {
	Status   string `json:"status" binding:"required"`
	Comments string `json:"comments"`
}

type CreateVersionRequest struct {
	Revision  string `json:"revision" binding:"required,max=32"`
	ChangeLog string `json:"changeLog"`
}

// ProgramQuery is the list endpoint's query string.
type ProgramQuery struct {
	Search     string `form:"search"`
	Status     string `form:"status"`
	MachineID  string `form:"machineId"`
	Customer   string `form:"customer"`
	PartNumber string `form:"partNumber"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=500"`
	SortBy     string `form:"sortBy" binding:"omitempty,oneof=name partNumber lastModified customer"`
	SortOrder  string `form:"sortOrder" binding:"omitempty,oneof=asc desc"`
}

// ProgramPage is one page of a program listing.
type ProgramPage struct {
	Programs   []entity.NCProgram
	Page       int
	Limit      int
	Total      int64
	TotalPages int
}

// UploadResult is the outcome of attaching a file to a program. Version is
// set for NC uploads, which also snapshot the code.
type UploadResult struct {
	File    *entity.ProgramFile    `json:"file"`
	Version *entity.ProgramVersion `json:"version,omitempty"`
}

type ProgramService struct {
	repos  *repository.Repositories
	store  storage.Store
	index  search.Index
	events IndexPublisher
	hub    *sse.Hub
	logger *zap.Logger
}

func NewProgramService(repos *repository.Repositories, store storage.Store, index search.Index, events IndexPublisher, hub *sse.Hub, logger *zap.Logger) *ProgramService {
	return &ProgramService{
		repos:  repos,
		store:  store,
		index:  index,
		events: events,
		hub:    hub,
		logger: logger,
	}
}

// List pages through programs. A search term is resolved by the index; when
// the index fails the result is empty rather than an error, and the total is
// the index's match count.
func (s *ProgramService) List(ctx context.Context, q ProgramQuery) (*ProgramPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultPageSize
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}
	if q.Status != "" && !entity.ValidProgramStatus(q.Status) {
		return nil, ValidationError("Validation failed", FieldError{Path: "status", Message: "Invalid program status"})
	}

	filter := repository.ProgramFilter{
		PartNumber: q.PartNumber,
		SortBy:     q.SortBy,
		SortOrder:  q.SortOrder,
		Offset:     (q.Page - 1) * q.Limit,
		Limit:      q.Limit,
	}

	if term := strings.TrimSpace(q.Search); term != "" {
		ids, err := s.index.Search(ctx, term, search.Filter{
			Status:    q.Status,
			MachineID: q.MachineID,
			Customer:  q.Customer,
		}, q.Limit*2)
		if err != nil {
			s.logger.Warn("Program search failed, returning empty result",
				zap.String("query", term),
				zap.Error(err),
			)
			ids = nil
		}
		if len(ids) == 0 {
			return newProgramPage(nil, q.Page, q.Limit, 0), nil
		}

		filter.IDs = ids
		programs, _, err := s.repos.Program.List(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("list programs: %w", err)
		}
		return newProgramPage(programs, q.Page, q.Limit, int64(len(ids))), nil
	}

	filter.Status = q.Status
	filter.MachineID = q.MachineID
	filter.Customer = q.Customer
	programs, total, err := s.repos.Program.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	return newProgramPage(programs, q.Page, q.Limit, total), nil
}

func newProgramPage(programs []entity.NCProgram, page, limit int, total int64) *ProgramPage {
	if programs == nil {
		programs = []entity.NCProgram{}
	}
	return &ProgramPage{
		Programs:   programs,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}
}

func (s *ProgramService) Get(ctx context.Context, id string) (*entity.NCProgram, error) {
	program, err := s.repos.Program.FindDetail(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFoundError("Program not found")
		}
		return nil, fmt.Errorf("get program: %w", err)
	}
	return program, nil
}

// Create inserts a program. Without a part number the machine counter is
// consumed in the same transaction, so a failed insert leaves it untouched.
func (s *ProgramService) Create(ctx context.Context, actor Actor, req *CreateProgramRequest) (*entity.NCProgram, error) {
	status := req.Status
	if status == "" {
		status = entity.ProgramStatusDraft
	}
	if !entity.ValidProgramStatus(status) {
		return nil, ValidationError("Validation failed", FieldError{Path: "status", Message: "Invalid program status"})
	}

	program := &entity.NCProgram{
		Name:        strings.TrimSpace(req.Name),
		PartNumber:  req.PartNumber,
		Revision:    strings.TrimSpace(req.Revision),
		MachineID:   req.MachineID,
		Operation:   req.Operation,
		Material:    req.Material,
		Customer:    req.Customer,
		WorkOrder:   req.WorkOrder,
		Description: req.Description,
		Status:      status,
		AuthorID:    actor.ID,
	}

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := ensureActor(ctx, tx, actor); err != nil {
			return err
		}
		if strings.TrimSpace(req.PartNumber) == "" {
			n, err := tx.Machine.ConsumeProgramNumber(ctx, req.MachineID)
			if err != nil {
				return err
			}
			program.PartNumber = FormatProgramNumber(n)
		} else if _, err := tx.Machine.FindByIDForUpdate(ctx, req.MachineID); err != nil {
			return err
		}
		return tx.Program.Create(ctx, program)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotFoundError("Machine not found")
	}
	if err != nil {
		if IsKind(err, KindValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("create program: %w", err)
	}

	s.logger.Info("Program created",
		zap.String("program_id", program.ID),
		zap.String("part_number", program.PartNumber),
		zap.String("machine_id", program.MachineID),
		zap.String("user_id", actor.ID),
	)
	s.publishUpsert(ctx, program.ID)
	s.hub.PublishProgram(program.ID, "created")
	return s.Get(ctx, program.ID)
}

func (s *ProgramService) Update(ctx context.Context, actor Actor, id string, req *UpdateProgramRequest) (*entity.NCProgram, error) {
	var problems fieldErrors
	updates := make(map[string]interface{})
	setText := func(column string, v *string) {
		if v != nil {
			updates[column] = strings.TrimSpace(*v)
		}
	}
	setText("name", req.Name)
	setText("revision", req.Revision)
	setText("operation", req.Operation)
	setText("material", req.Material)
	setText("customer", req.Customer)
	setText("work_order", req.WorkOrder)
	if req.PartNumber != nil {
		if strings.TrimSpace(*req.PartNumber) == "" {
			problems.add("partNumber", "Part number cannot be blank")
		}
		updates["part_number"] = *req.PartNumber
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.NCCode != nil {
		updates["nc_code"] = *req.NCCode
	}
	if req.Status != nil {
		if !entity.ValidProgramStatus(*req.Status) {
			problems.add("status", "Invalid program status")
		}
		updates["status"] = *req.Status
	}
	if req.MachineID != nil {
		updates["machine_id"] = *req.MachineID
	}
	if err := problems.err(); err != nil {
		return nil, err
	}

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.Program.FindByID(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return NotFoundError("Program not found")
			}
			return err
		}
		if req.MachineID != nil {
			if _, err := tx.Machine.FindByIDForUpdate(ctx, *req.MachineID); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return NotFoundError("Machine not found")
				}
				return err
			}
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Program.Update(ctx, id, updates)
	})
	if err != nil {
		if IsKind(err, KindNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update program: %w", err)
	}

	s.logger.Info("Program updated", zap.String("program_id", id), zap.String("user_id", actor.ID))
	s.publishUpsert(ctx, id)
	s.hub.PublishProgram(id, "updated")
	return s.Get(ctx, id)
}

// Delete removes the program with its versions, setup sheets and files.
// Stored files are removed after commit on a best-effort basis.
func (s *ProgramService) Delete(ctx context.Context, actor Actor, id string) error {
	var keys []string
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.Program.FindByID(ctx, id); err != nil {
			return err
		}
		versions, err := tx.Version.ListByProgram(ctx, id)
		if err != nil {
			return err
		}
		for _, v := range versions {
			keys = append(keys, v.FilePath)
		}
		files, err := tx.File.ListByProgram(ctx, id)
		if err != nil {
			return err
		}
		for _, f := range files {
			keys = append(keys, storage.Key(f.Category, f.StoredName))
		}
		return tx.Program.Delete(ctx, id)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return NotFoundError("Program not found")
	}
	if err != nil {
		return fmt.Errorf("delete program: %w", err)
	}

	s.removeFiles(ctx, keys)
	s.logger.Info("Program deleted", zap.String("program_id", id), zap.String("user_id", actor.ID))
	s.publish(ctx, search.Event{Op: search.OpDelete, ProgramID: id})
	s.hub.PublishProgram(id, "deleted")
	return nil
}

// Transition moves a program to req.Status. Any state may follow any other.
// Approved and Released stamp approvedAt; every other state clears it. The
// acting user is recorded as approver either way.
func (s *ProgramService) Transition(ctx context.Context, actor Actor, id string, req *ApproveProgramRequest) (*entity.NCProgram, error) {
	if !entity.ValidProgramStatus(req.Status) {
		return nil, ValidationError("Validation failed", FieldError{Path: "status", Message: "Invalid program status"})
	}

	updates := map[string]interface{}{
		"status":      req.Status,
		"approver_id": actor.ID,
		"approved_at": nil,
	}
	if entity.IsApprovedStatus(req.Status) {
		updates["approved_at"] = time.Now()
	}

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := ensureActor(ctx, tx, actor); err != nil {
			return err
		}
		return tx.Program.Update(ctx, id, updates)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotFoundError("Program not found")
	}
	if err != nil {
		if IsKind(err, KindValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("change program status: %w", err)
	}

	s.logger.Info("Program status changed",
		zap.String("program_id", id),
		zap.String("status", req.Status),
		zap.String("user_id", actor.ID),
		zap.String("comments", req.Comments),
	)
	s.publishUpsert(ctx, id)
	s.hub.PublishProgram(id, "status")
	return s.Get(ctx, id)
}

// ListVersions returns the full version history, newest first.
func (s *ProgramService) ListVersions(ctx context.Context, programID string) ([]entity.ProgramVersion, error) {
	if _, err := s.repos.Program.FindByID(ctx, programID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFoundError("Program not found")
		}
		return nil, fmt.Errorf("get program: %w", err)
	}
	versions, err := s.repos.Version.ListByProgram(ctx, programID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return versions, nil
}

// CreateVersion snapshots the current NC code as the next version and moves
// the program to req.Revision.
func (s *ProgramService) CreateVersion(ctx context.Context, actor Actor, programID string, req *CreateVersionRequest) (*entity.ProgramVersion, error) {
	var version *entity.ProgramVersion
	var snapshot *storage.Object

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := ensureActor(ctx, tx, actor); err != nil {
			return err
		}
		// The revision write locks the program row; version numbers are
		// computed after it so concurrent snapshots serialize.
		if err := tx.Program.Update(ctx, programID, map[string]interface{}{"revision": strings.TrimSpace(req.Revision)}); err != nil {
			return err
		}
		program, err := tx.Program.FindByID(ctx, programID)
		if err != nil {
			return err
		}
		version, snapshot, err = s.appendVersion(ctx, tx, program, actor, req.ChangeLog,
			storage.SanitizeName(program.PartNumber)+".nc", []byte(program.NCCode))
		return err
	})
	if err != nil {
		s.discard(ctx, snapshot)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFoundError("Program not found")
		}
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return nil, err
		}
		return nil, fmt.Errorf("create version: %w", err)
	}

	s.logger.Info("Program version created",
		zap.String("program_id", programID),
		zap.Int("version", version.VersionNumber),
		zap.String("user_id", actor.ID),
	)
	s.publishUpsert(ctx, programID)
	s.hub.PublishProgram(programID, "version")
	return version, nil
}

// appendVersion writes content to versions/v{n}-{programID}-{fileName} and
// records it. The caller must hold the program row lock inside tx.
func (s *ProgramService) appendVersion(ctx context.Context, tx *repository.Repositories, program *entity.NCProgram, actor Actor, changeLog, fileName string, content []byte) (*entity.ProgramVersion, *storage.Object, error) {
	n, err := tx.Version.NextNumber(ctx, program.ID)
	if err != nil {
		return nil, nil, err
	}
	name := fmt.Sprintf("v%d-%s-%s", n, program.ID, fileName)
	obj, err := s.store.Put(ctx, entity.FileCategoryVersions, name, bytes.NewReader(content), int64(len(content)), "text/plain")
	if err != nil {
		return nil, nil, StorageError("Failed to store version snapshot", err)
	}

	version := &entity.ProgramVersion{
		ProgramID:     program.ID,
		VersionNumber: n,
		Revision:      program.Revision,
		FilePath:      obj.Key(),
		ChangeLog:     changeLog,
		CreatedByID:   actor.ID,
	}
	if err := tx.Version.Create(ctx, version); err != nil {
		return nil, obj, err
	}
	return version, obj, nil
}

// VersionContent opens the raw snapshot of a version.
func (s *ProgramService) VersionContent(ctx context.Context, programID, versionID string) (io.ReadCloser, *storage.Object, error) {
	version, err := s.repos.Version.FindByID(ctx, programID, versionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, NotFoundError("Version not found")
		}
		return nil, nil, fmt.Errorf("get version: %w", err)
	}
	category, name, err := storage.SplitKey(version.FilePath)
	if err != nil {
		return nil, nil, StorageError("Version file path is invalid", err)
	}
	rc, obj, err := s.store.Open(ctx, category, name)
	if err != nil {
		return nil, nil, StorageError("Version file could not be read", err)
	}
	return rc, obj, nil
}

// UploadFile attaches a file to a program. kind is nc, cad, dxf or document.
// An NC upload replaces the program's code and snapshots it as a new version.
func (s *ProgramService) UploadFile(ctx context.Context, actor Actor, programID, kind, fileName string, r io.Reader, size int64, contentType string) (*UploadResult, error) {
	category, ok := map[string]string{
		"nc":       entity.FileCategoryNC,
		"cad":      entity.FileCategoryCAD,
		"dxf":      entity.FileCategoryDXF,
		"document": entity.FileCategoryDocument,
	}[kind]
	if !ok {
		return nil, ValidationError("Validation failed", FieldError{Path: "type", Message: "Type must be one of nc, cad, dxf, document"})
	}
	if size > MaxUploadSize {
		return nil, ValidationError("File too large", FieldError{Path: "file", Message: "Maximum file size is 50MB"})
	}
	if _, err := s.repos.Program.FindByID(ctx, programID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFoundError("Program not found")
		}
		return nil, fmt.Errorf("get program: %w", err)
	}

	var content []byte
	if category == entity.FileCategoryNC {
		data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
		if err != nil {
			return nil, StorageError("Failed to read upload", err)
		}
		if len(data) > MaxUploadSize {
			return nil, ValidationError("File too large", FieldError{Path: "file", Message: "Maximum file size is 50MB"})
		}
		content = data
		r = bytes.NewReader(data)
		size = int64(len(data))
	}

	obj, err := storage.Save(ctx, s.store, category, fileName, r, size, contentType)
	if err != nil {
		return nil, StorageError("Failed to store file", err)
	}

	result := &UploadResult{}
	var snapshot *storage.Object
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := ensureActor(ctx, tx, actor); err != nil {
			return err
		}
		result.File = &entity.ProgramFile{
			ProgramID:    programID,
			Category:     category,
			FileName:     fileName,
			StoredName:   obj.Name,
			Size:         obj.Size,
			ContentType:  obj.ContentType,
			URL:          "/api/files/" + category + "/" + obj.Name,
			UploadedByID: actor.ID,
		}
		if err := tx.File.Create(ctx, result.File); err != nil {
			return err
		}
		if category != entity.FileCategoryNC {
			return nil
		}

		if err := tx.Program.Update(ctx, programID, map[string]interface{}{"nc_code": string(content)}); err != nil {
			return err
		}
		program, err := tx.Program.FindByID(ctx, programID)
		if err != nil {
			return err
		}
		result.Version, snapshot, err = s.appendVersion(ctx, tx, program, actor,
			"Uploaded "+fileName, obj.Name, content)
		return err
	})
	if err != nil {
		s.discard(ctx, obj)
		s.discard(ctx, snapshot)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFoundError("Program not found")
		}
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return nil, err
		}
		return nil, fmt.Errorf("upload program file: %w", err)
	}

	s.logger.Info("Program file uploaded",
		zap.String("program_id", programID),
		zap.String("category", category),
		zap.String("file", obj.Name),
		zap.String("user_id", actor.ID),
	)
	s.publishUpsert(ctx, programID)
	s.hub.PublishProgram(programID, "file")
	return result, nil
}

// ReindexAll rebuilds the search index from the database and returns the
// number of documents written. Unlike per-write indexing it reports failures.
func (s *ProgramService) ReindexAll(ctx context.Context) (int, error) {
	if err := s.index.Configure(ctx); err != nil {
		return 0, UpstreamError("Search index unavailable", err)
	}
	if err := s.index.Clear(ctx); err != nil {
		return 0, UpstreamError("Search index unavailable", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	count := 0
	err := s.repos.Program.EachBatch(ctx, reindexBatch, func(batch []entity.NCProgram) error {
		docs := make([]search.Document, 0, len(batch))
		for i := range batch {
			docs = append(docs, documentFor(&batch[i]))
		}
		count += len(docs)
		g.Go(func() error {
			return s.index.Upsert(gctx, docs...)
		})
		return gctx.Err()
	})
	if werr := g.Wait(); werr != nil {
		return 0, UpstreamError("Search index unavailable", werr)
	}
	if err != nil {
		return 0, fmt.Errorf("load programs: %w", err)
	}

	s.logger.Info("Search index rebuilt", zap.Int("documents", count))
	return count, nil
}

func documentFor(p *entity.NCProgram) search.Document {
	doc := search.Document{
		ID:           p.ID,
		Name:         p.Name,
		PartNumber:   p.PartNumber,
		Revision:     p.Revision,
		Customer:     p.Customer,
		Description:  p.Description,
		Operation:    p.Operation,
		Material:     p.Material,
		Status:       p.Status,
		MachineID:    p.MachineID,
		AuthorID:     p.AuthorID,
		LastModified: p.LastModified.UnixMilli(),
	}
	if p.Machine != nil {
		doc.MachineName = p.Machine.Name
	}
	return doc
}

func (s *ProgramService) publishUpsert(ctx context.Context, id string) {
	program, err := s.repos.Program.FindWithMachine(ctx, id)
	if err != nil {
		s.logger.Warn("Failed to load program for indexing", zap.String("program_id", id), zap.Error(err))
		return
	}
	doc := documentFor(program)
	s.publish(ctx, search.Event{Op: search.OpUpsert, ProgramID: id, Document: &doc})
}

func (s *ProgramService) publish(ctx context.Context, ev search.Event) {
	if s.events != nil {
		s.events.Publish(ctx, ev)
	}
}

func (s *ProgramService) discard(ctx context.Context, obj *storage.Object) {
	if obj == nil {
		return
	}
	if err := s.store.Delete(context.WithoutCancel(ctx), obj.Category, obj.Name); err != nil {
		s.logger.Warn("Failed to remove orphaned file", zap.String("key", obj.Key()), zap.Error(err))
	}
}

func (s *ProgramService) removeFiles(ctx context.Context, keys []string) {
	for _, key := range keys {
		category, name, err := storage.SplitKey(key)
		if err == nil {
			err = s.store.Delete(context.WithoutCancel(ctx), category, name)
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("Failed to remove program file", zap.String("key", key), zap.Error(err))
		}
	}
}

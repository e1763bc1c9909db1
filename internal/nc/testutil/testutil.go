package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Nikolaihoj1/millpoint-nc/internal/config"
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/entity"
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/handler"
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/repository"
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/service"
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/sse"
	"github.com/Nikolaihoj1/millpoint-nc/internal/shared/search"
	"github.com/Nikolaihoj1/millpoint-nc/internal/shared/storage"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	JWTSecret     = "millpoint-test-secret"
	TestUserID    = "test-user-001"
	TestUserName  = "Test Machinist"
	TestUserEmail = "machinist@test.com"
)

var dbSeq atomic.Int64

// TestEnv holds test environment resources
type TestEnv struct {
	DB       *gorm.DB
	Router   *gin.Engine
	Repos    *repository.Repositories
	Services *service.Services
	Store    *storage.LocalStore
	Index    *FakeIndex
	Events   *RecordingPublisher
	Hub      *sse.Hub
	T        *testing.T
}

// SetupTestDB opens an isolated database with the schema migrated. It uses a
// private in-memory SQLite database unless TEST_POSTGRES_DSN is set, in which
// case each test gets its own postgres schema.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	if dsn := config.GetEnvOrDefault("TEST_POSTGRES_DSN", ""); dsn != "" {
		return setupPostgres(t, dsn)
	}

	dsn := fmt.Sprintf("file:millpoint_test_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get test database handle: %v", err)
	}
	// One connection serializes transactions, like row locks would.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(entity.All()...); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func setupPostgres(t *testing.T, baseDSN string) *gorm.DB {
	t.Helper()
	schema := fmt.Sprintf("test_millpoint_%d", time.Now().UnixNano()%1000000)

	setupDB, err := gorm.Open(postgres.Open(baseDSN), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("Failed to connect to database for schema setup: %v", err)
	}
	setupDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema))
	if sqlSetup, err := setupDB.DB(); err == nil {
		sqlSetup.Close()
	}

	db, err := gorm.Open(postgres.Open(fmt.Sprintf("%s search_path=%s", baseDSN, schema)), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := db.AutoMigrate(entity.All()...); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, _ := db.DB(); sqlDB != nil {
			sqlDB.Close()
		}
		cleanDB, err := gorm.Open(postgres.Open(baseDSN), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		if err != nil {
			return
		}
		cleanDB.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schema))
		if sqlClean, _ := cleanDB.DB(); sqlClean != nil {
			sqlClean.Close()
		}
	})
	return db
}

// NewEnv wires a database, a temp-dir file store, a fake search index and
// the full route table.
func NewEnv(t *testing.T) *TestEnv {
	t.Helper()
	db := SetupTestDB(t)

	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}

	logger := zap.NewNop()
	repos := repository.NewRepositories(db)
	hub := sse.NewHub(logger)
	index := &FakeIndex{}
	events := &RecordingPublisher{}
	services := service.NewServices(service.Deps{
		Repos:  repos,
		Store:  store,
		Index:  index,
		Events: events,
		Hub:    hub,
		Logger: logger,
	})

	router := SetupRouter()
	handler.RegisterRoutes(router, handler.NewHandlers(services, store, hub, logger), JWTSecret)

	return &TestEnv{
		DB:       db,
		Router:   router,
		Repos:    repos,
		Services: services,
		Store:    store,
		Index:    index,
		Events:   events,
		Hub:      hub,
		T:        t,
	}
}

// SetupRouter creates a bare gin engine in test mode
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name, email string, roles []string) string {
	if roles == nil {
		roles = []string{}
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"email": email,
		"roles": roles,
		"iss":   "millpoint",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DefaultTestToken returns a token for the default test user, who is an admin.
func DefaultTestToken() string {
	return GenerateTestToken(TestUserID, TestUserName, TestUserEmail, []string{"admin"})
}

// TestActor is the principal behind DefaultTestToken.
func TestActor() service.Actor {
	return service.Actor{ID: TestUserID, Name: TestUserName, Email: TestUserEmail}
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// UploadFile is one part of a multipart request.
type UploadFile struct {
	Field       string
	FileName    string
	ContentType string
	Content     []byte
}

// DoMultipart posts files and form fields as multipart/form-data.
func DoMultipart(r *gin.Engine, path string, files []UploadFile, fields map[string]string, token string) *httptest.ResponseRecorder {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, f.Field, f.FileName))
		h.Set("Content-Type", f.ContentType)
		part, _ := mw.CreatePart(h)
		part.Write(f.Content)
	}
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse decodes the JSON envelope into a map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedMachine creates a machine with the given counter value.
func SeedMachine(t *testing.T, db *gorm.DB, name string, next int) *entity.Machine {
	t.Helper()
	machine := &entity.Machine{
		ID:                fmt.Sprintf("00000000-0000-4000-8000-%012d", dbSeq.Add(1)),
		Name:              name,
		Type:              "VMC",
		Manufacturer:      "Haas",
		Model:             "VF-2",
		Status:            entity.MachineStatusOnline,
		NextProgramNumber: next,
	}
	if err := db.Create(machine).Error; err != nil {
		t.Fatalf("Failed to seed machine: %v", err)
	}
	return machine
}

// SeedProgram creates a program on machineID with an explicit part number.
func SeedProgram(t *testing.T, db *gorm.DB, machineID, partNumber string) *entity.NCProgram {
	t.Helper()
	SeedUser(t, db, TestUserID, TestUserName)
	program := &entity.NCProgram{
		ID:         fmt.Sprintf("00000000-0000-4000-9000-%012d", dbSeq.Add(1)),
		Name:       "Bracket " + partNumber,
		PartNumber: partNumber,
		Revision:   "A",
		MachineID:  machineID,
		Operation:  "OP10",
		Material:   "6061-T6",
		Customer:   "Acme",
		Status:     entity.ProgramStatusDraft,
		AuthorID:   TestUserID,
		NCCode:     "%\nO1000\nG21 G90\nM30\n%",
	}
	if err := db.Create(program).Error; err != nil {
		t.Fatalf("Failed to seed program: %v", err)
	}
	return program
}

// SeedUser inserts a user unless it already exists.
func SeedUser(t *testing.T, db *gorm.DB, id, name string) {
	t.Helper()
	if err := repository.NewUserRepository(db).Ensure(context.Background(), &entity.User{ID: id, Name: name}); err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
}

// FakeIndex is an in-memory search.Index. Search returns IDs, or Err when set.
type FakeIndex struct {
	mu       sync.Mutex
	Err      error
	IDs      []string
	Upserted []search.Document
	Deleted  []string
	Queries  []string
	Cleared  int
}

func (f *FakeIndex) Configure(context.Context) error { return nil }

func (f *FakeIndex) Upsert(_ context.Context, docs ...search.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Upserted = append(f.Upserted, docs...)
	return nil
}

func (f *FakeIndex) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Deleted = append(f.Deleted, id)
	return nil
}

func (f *FakeIndex) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Cleared++
	f.Upserted = nil
	return nil
}

func (f *FakeIndex) Search(_ context.Context, query string, _ search.Filter, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Queries = append(f.Queries, query)
	if f.Err != nil {
		return nil, f.Err
	}
	ids := f.IDs
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// RecordingPublisher collects index events instead of queueing them.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []search.Event
}

func (p *RecordingPublisher) Publish(_ context.Context, ev search.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

// Events returns a copy of the recorded events.
func (p *RecordingPublisher) Events() []search.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]search.Event(nil), p.events...)
}

package handler_test

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/testutil"
)

func TestCreateProgramValidationDetails(t *testing.T) {
	env := testutil.NewEnv(t)

	w := testutil.DoRequest(env.Router, "POST", "/api/programs", map[string]interface{}{
		"name":      "Bracket",
		"machineId": "not-a-uuid",
	}, testutil.DefaultTestToken())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["code"] != "VALIDATION_ERROR" {
		t.Errorf("Expected VALIDATION_ERROR, got %v", resp["code"])
	}
	paths := map[string]string{}
	for _, d := range resp["details"].([]interface{}) {
		detail := d.(map[string]interface{})
		paths[detail["path"].(string)] = detail["message"].(string)
	}
	for _, field := range []string{"revision", "operation", "material", "customer", "machineId"} {
		if _, ok := paths[field]; !ok {
			t.Errorf("Expected detail for %s, got %v", field, paths)
		}
	}
	if paths["machineId"] != "Must be a valid UUID" {
		t.Errorf("Unexpected machineId message %q", paths["machineId"])
	}
}

func TestCreateProgramUnknownMachine(t *testing.T) {
	env := testutil.NewEnv(t)

	w := testutil.DoRequest(env.Router, "POST", "/api/programs", map[string]interface{}{
		"name":      "Bracket",
		"revision":  "A",
		"machineId": "00000000-0000-4000-8000-999999999999",
		"operation": "OP10",
		"material":  "Steel",
		"customer":  "Acme",
	}, testutil.DefaultTestToken())
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestListProgramsPagination(t *testing.T) {
	env := testutil.NewEnv(t)
	machine := testutil.SeedMachine(t, env.DB, "Haas", 100)
	for _, pn := range []string{"0100", "0101", "0102"} {
		testutil.SeedProgram(t, env.DB, machine.ID, pn)
	}

	w := testutil.DoRequest(env.Router, "GET", "/api/programs?limit=2&page=2&sortBy=partNumber&sortOrder=asc", nil, testutil.DefaultTestToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].([]interface{})
	if len(data) != 1 || data[0].(map[string]interface{})["partNumber"] != "0102" {
		t.Errorf("Expected only 0102 on page 2, got %v", data)
	}
	meta := resp["meta"].(map[string]interface{})
	if meta["total"].(float64) != 3 || meta["totalPages"].(float64) != 2 || meta["page"].(float64) != 2 {
		t.Errorf("Unexpected meta %v", meta)
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/programs?sortBy=size", nil, testutil.DefaultTestToken())
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad sortBy, got %d", w.Code)
	}
}

func TestListProgramsSearchDegradesToEmpty(t *testing.T) {
	env := testutil.NewEnv(t)
	machine := testutil.SeedMachine(t, env.DB, "Haas", 100)
	testutil.SeedProgram(t, env.DB, machine.ID, "0100")
	env.Index.Err = errors.New("search engine unavailable")

	w := testutil.DoRequest(env.Router, "GET", "/api/programs?search=bracket", nil, testutil.DefaultTestToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["success"] != true {
		t.Errorf("Expected success, got %v", resp)
	}
	if data := resp["data"].([]interface{}); len(data) != 0 {
		t.Errorf("Expected empty data, got %v", data)
	}
	if total := resp["meta"].(map[string]interface{})["total"].(float64); total != 0 {
		t.Errorf("Expected total 0, got %v", total)
	}
}

func TestApproveProgram(t *testing.T) {
	env := testutil.NewEnv(t)
	machine := testutil.SeedMachine(t, env.DB, "Haas", 100)
	program := testutil.SeedProgram(t, env.DB, machine.ID, "0100")
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(env.Router, "POST", "/api/programs/"+program.ID+"/approve", map[string]string{"status": "Approved"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != "Approved" || data["approvedAt"] == nil || data["approverId"] != testutil.TestUserID {
		t.Errorf("Unexpected approval %v", data)
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/programs/"+program.ID+"/approve", map[string]string{"status": "Shipped"}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown status, got %d", w.Code)
	}
}

func TestProgramVersionsAndContent(t *testing.T) {
	env := testutil.NewEnv(t)
	machine := testutil.SeedMachine(t, env.DB, "Haas", 100)
	program := testutil.SeedProgram(t, env.DB, machine.ID, "0100")
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(env.Router, "POST", "/api/programs/"+program.ID+"/versions",
		map[string]string{"revision": "B", "changeLog": "Finish pass"}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	version := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if version["versionNumber"].(float64) != 1 {
		t.Errorf("Expected version 1, got %v", version["versionNumber"])
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/programs/"+program.ID+"/versions/"+version["id"].(string)+"/content", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Expected text/plain, got %q", ct)
	}
	if !strings.Contains(w.Body.String(), "O1000") {
		t.Errorf("Expected NC code in body, got %q", w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/programs/"+program.ID+"/versions", nil, token)
	if versions := testutil.ParseResponse(w)["data"].([]interface{}); len(versions) != 1 {
		t.Errorf("Expected 1 version, got %d", len(versions))
	}
}

func TestUploadProgramFileAndServe(t *testing.T) {
	env := testutil.NewEnv(t)
	machine := testutil.SeedMachine(t, env.DB, "Haas", 100)
	program := testutil.SeedProgram(t, env.DB, machine.ID, "0100")
	token := testutil.DefaultTestToken()

	w := testutil.DoMultipart(env.Router, "/api/programs/"+program.ID+"/files", []testutil.UploadFile{{
		Field:       "file",
		FileName:    "op20.nc",
		ContentType: "text/plain",
		Content:     []byte("%\nO2000\nM30\n%"),
	}}, nil, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	result := testutil.ParseResponse(w)["data"].(map[string]interface{})
	file := result["file"].(map[string]interface{})
	if result["version"] == nil {
		t.Error("Expected an NC upload to create a version")
	}

	w = testutil.DoRequest(env.Router, "GET", file["url"].(string), nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 serving NC upload without token, got %d", w.Code)
	}

	w = testutil.DoRequest(env.Router, "GET", file["url"].(string), nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 serving upload, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "%\nO2000\nM30\n%" {
		t.Errorf("Unexpected served content %q", w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/programs/"+program.ID, nil, token)
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if !strings.Contains(data["ncCode"].(string), "O2000") {
		t.Errorf("Expected ncCode replaced, got %v", data["ncCode"])
	}

	w = testutil.DoMultipart(env.Router, "/api/programs/"+program.ID+"/files", []testutil.UploadFile{{
		Field: "file", FileName: "part.step", ContentType: "application/octet-stream", Content: []byte("x"),
	}}, map[string]string{"type": "sketch"}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown file type, got %d", w.Code)
	}
}

func TestServeMissingFile(t *testing.T) {
	env := testutil.NewEnv(t)
	token := testutil.DefaultTestToken()

	for _, path := range []string{"/api/files/nc/nope.nc", "/api/files/secrets/x.txt", "/api/files/media/nope.png"} {
		w := testutil.DoRequest(env.Router, "GET", path, nil, token)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, w.Code)
		}
	}
}

func TestServeProgramFilesRequireToken(t *testing.T) {
	env := testutil.NewEnv(t)
	machine := testutil.SeedMachine(t, env.DB, "Haas", 100)
	program := testutil.SeedProgram(t, env.DB, machine.ID, "0100")
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(env.Router, "POST", "/api/programs/"+program.ID+"/versions",
		map[string]interface{}{"revision": "B"}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	version := testutil.ParseResponse(w)["data"].(map[string]interface{})
	url := "/api/files/" + version["filePath"].(string)

	for _, path := range []string{url, "/api/files/nc/x.nc", "/api/files/cad/x.step", "/api/files/documents/x.pdf"} {
		w = testutil.DoRequest(env.Router, "GET", path, nil, "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401 without token, got %d", path, w.Code)
		}
	}

	w = testutil.DoRequest(env.Router, "GET", url, nil, token)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 with token, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/files/media/nope.png", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected media to stay public (404 for missing file), got %d", w.Code)
	}
}

func TestReindexRequiresAdmin(t *testing.T) {
	env := testutil.NewEnv(t)
	machine := testutil.SeedMachine(t, env.DB, "Haas", 100)
	testutil.SeedProgram(t, env.DB, machine.ID, "0100")

	operator := testutil.GenerateTestToken("op-1", "Operator", "op@example.com", []string{"operator"})
	w := testutil.DoRequest(env.Router, "POST", "/api/search/reindex", nil, operator)
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", w.Code)
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/search/reindex", nil, testutil.DefaultTestToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["indexed"].(float64) != 1 {
		t.Errorf("Expected 1 indexed, got %v", data["indexed"])
	}
}

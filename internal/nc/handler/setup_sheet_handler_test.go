package handler_test

import (
	"net/http"
	"testing"

	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/testutil"
)

func sheetBody(programID, machineID string) map[string]interface{} {
	return map[string]interface{}{
		"programId":       programID,
		"machineId":       machineID,
		"safetyChecklist": []string{"Doors closed"},
		"tools": []map[string]interface{}{
			{"toolNumber": 1, "toolName": "Face Mill 50mm", "length": 60.0, "offsetH": 1, "offsetD": 1},
		},
		"originOffsets": []map[string]interface{}{
			{"name": "G54", "x": -250.0, "y": -180.0, "z": -400.0},
		},
		"fixtures": []map[string]interface{}{
			{"fixtureId": "VISE-6", "quantity": 1},
		},
		"media": []map[string]interface{}{
			{"type": "image", "url": ""},
		},
	}
}

func createSheet(t *testing.T, env *testutil.TestEnv, programID, machineID string) map[string]interface{} {
	t.Helper()
	w := testutil.DoRequest(env.Router, "POST", "/api/setup-sheets", sheetBody(programID, machineID), testutil.DefaultTestToken())
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	return testutil.ParseResponse(w)["data"].(map[string]interface{})
}

func TestCreateSetupSheetEndpoint(t *testing.T) {
	env := testutil.NewEnv(t)
	machine := testutil.SeedMachine(t, env.DB, "Haas", 100)
	program := testutil.SeedProgram(t, env.DB, machine.ID, "0100")

	sheet := createSheet(t, env, program.ID, machine.ID)
	if media := sheet["media"].([]interface{}); len(media) != 0 {
		t.Errorf("Expected blank media dropped, got %v", media)
	}
	fixture := sheet["fixtures"].([]interface{})[0].(map[string]interface{})
	if fixture["quantity"].(float64) != 1 {
		t.Errorf("Expected quantity 1, got %v", fixture["quantity"])
	}

	w := testutil.DoRequest(env.Router, "GET", "/api/programs/"+program.ID, nil, testutil.DefaultTestToken())
	if testutil.ParseResponse(w)["data"].(map[string]interface{})["hasSetupSheet"] != true {
		t.Error("Expected hasSetupSheet true")
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/setup-sheets?programId="+program.ID, nil, testutil.DefaultTestToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if list := testutil.ParseResponse(w)["data"].([]interface{}); len(list) != 1 {
		t.Errorf("Expected 1 sheet, got %d", len(list))
	}
}

func TestCreateSetupSheetRejectsEmptyTools(t *testing.T) {
	env := testutil.NewEnv(t)
	machine := testutil.SeedMachine(t, env.DB, "Haas", 100)
	program := testutil.SeedProgram(t, env.DB, machine.ID, "0100")

	body := sheetBody(program.ID, machine.ID)
	body["tools"] = []map[string]interface{}{}
	w := testutil.DoRequest(env.Router, "POST", "/api/setup-sheets", body, testutil.DefaultTestToken())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	details := resp["details"].([]interface{})
	if len(details) != 1 || details[0].(map[string]interface{})["path"] != "tools" {
		t.Errorf("Unexpected details %v", details)
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/setup-sheets?programId="+program.ID, nil, testutil.DefaultTestToken())
	if list := testutil.ParseResponse(w)["data"].([]interface{}); len(list) != 0 {
		t.Errorf("Expected no sheets written, got %d", len(list))
	}
}

func TestListSetupSheetsRequiresProgramID(t *testing.T) {
	env := testutil.NewEnv(t)

	w := testutil.DoRequest(env.Router, "GET", "/api/setup-sheets", nil, testutil.DefaultTestToken())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	if testutil.ParseResponse(w)["error"] != "programId query parameter is required" {
		t.Errorf("Unexpected body %s", w.Body.String())
	}
}

func TestApproveSetupSheetEndpoint(t *testing.T) {
	env := testutil.NewEnv(t)
	machine := testutil.SeedMachine(t, env.DB, "Haas", 100)
	program := testutil.SeedProgram(t, env.DB, machine.ID, "0100")
	sheet := createSheet(t, env, program.ID, machine.ID)
	path := "/api/setup-sheets/" + sheet["id"].(string) + "/approve"

	w := testutil.DoRequest(env.Router, "POST", path, map[string]interface{}{"approved": true, "comments": "OK"}, testutil.DefaultTestToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if data := testutil.ParseResponse(w)["data"].(map[string]interface{}); data["approvedAt"] == nil {
		t.Error("Expected approvedAt set")
	}

	w = testutil.DoRequest(env.Router, "POST", path, map[string]interface{}{"approved": false}, testutil.DefaultTestToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if msg := testutil.ParseResponse(w)["message"]; msg != "Approval revoked" {
		t.Errorf("Expected revoke message, got %v", msg)
	}

	w = testutil.DoRequest(env.Router, "POST", path, map[string]interface{}{}, testutil.DefaultTestToken())
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without approved, got %d", w.Code)
	}
}

func TestSetupSheetMediaUploadServeDelete(t *testing.T) {
	env := testutil.NewEnv(t)
	machine := testutil.SeedMachine(t, env.DB, "Haas", 100)
	program := testutil.SeedProgram(t, env.DB, machine.ID, "0100")
	sheet := createSheet(t, env, program.ID, machine.ID)
	sheetID := sheet["id"].(string)
	token := testutil.DefaultTestToken()

	w := testutil.DoMultipart(env.Router, "/api/setup-sheets/"+sheetID+"/upload", []testutil.UploadFile{
		{Field: "files", FileName: "vise.png", ContentType: "image/png", Content: []byte("\x89PNG....")},
	}, nil, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["message"] != "Successfully uploaded 1 file(s)" {
		t.Errorf("Unexpected message %v", resp["message"])
	}
	media := resp["data"].([]interface{})[0].(map[string]interface{})
	url := media["url"].(string)

	w = testutil.DoRequest(env.Router, "GET", url, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 serving media, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png, got %q", ct)
	}

	w = testutil.DoRequest(env.Router, "DELETE", "/api/setup-sheets/"+sheetID+"/media/"+media["id"].(string), nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = testutil.DoRequest(env.Router, "GET", url, nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}

	w = testutil.DoMultipart(env.Router, "/api/setup-sheets/"+sheetID+"/upload", []testutil.UploadFile{
		{Field: "files", FileName: "notes.txt", ContentType: "text/plain", Content: []byte("hi")},
	}, nil, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for text upload, got %d", w.Code)
	}
}

func TestExportSetupSheetEndpoint(t *testing.T) {
	env := testutil.NewEnv(t)
	machine := testutil.SeedMachine(t, env.DB, "Haas", 100)
	program := testutil.SeedProgram(t, env.DB, machine.ID, "0100")
	sheet := createSheet(t, env, program.ID, machine.ID)

	w := testutil.DoRequest(env.Router, "GET", "/api/setup-sheets/"+sheet["id"].(string)+"/export", nil, testutil.DefaultTestToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("Unexpected content type %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="SetupSheet_0100_A.xlsx"` {
		t.Errorf("Unexpected disposition %q", cd)
	}
	if w.Body.Len() == 0 || w.Body.Bytes()[0] != 'P' {
		t.Error("Expected a zip container body")
	}
}

func TestDeleteSetupSheetEndpoint(t *testing.T) {
	env := testutil.NewEnv(t)
	machine := testutil.SeedMachine(t, env.DB, "Haas", 100)
	program := testutil.SeedProgram(t, env.DB, machine.ID, "0100")
	sheet := createSheet(t, env, program.ID, machine.ID)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(env.Router, "DELETE", "/api/setup-sheets/"+sheet["id"].(string), nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if msg := testutil.ParseResponse(w)["message"]; msg != "Setup sheet deleted successfully" {
		t.Errorf("Unexpected message %v", msg)
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/programs/"+program.ID, nil, token)
	if testutil.ParseResponse(w)["data"].(map[string]interface{})["hasSetupSheet"] != false {
		t.Error("Expected hasSetupSheet false after delete")
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/setup-sheets/"+sheet["id"].(string), nil, token)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

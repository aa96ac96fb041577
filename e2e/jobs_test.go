package e2e

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "song.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("failed to write audio: %v", err)
	}
	return path
}

// startJob posts a start request and returns the job id. Jobs complete
// synchronously in tests, so the record is terminal once this returns.
func startJob(t *testing.T, ta *testApp, path, body string) string {
	t.Helper()
	resp, err := doRequest(ta.app, "POST", path, body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)

	parsed := parseJSON(t, resp)
	jobID, _ := parsed["jobId"].(string)
	if jobID == "" {
		t.Fatalf("expected jobId in response, got %v", parsed)
	}
	if parsed["status"] != "queued" {
		t.Errorf("expected queued status at start, got %v", parsed["status"])
	}
	return jobID
}

func TestSeparateJobLifecycle(t *testing.T) {
	ta := setupApp(t)
	audio := writeTestAudio(t)

	jobID := startJob(t, ta, "/api/separate/start", fmt.Sprintf(`{"audioPath":%q}`, audio))

	resp, err := doRequest(ta.app, "GET", "/api/separate/status/"+jobID, "")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	status := parseJSON(t, resp)
	if status["status"] != "succeeded" {
		t.Fatalf("expected succeeded, got %v", status["status"])
	}
	if status["remoteId"] != "sep-1" {
		t.Errorf("expected remote id, got %v", status["remoteId"])
	}

	resp, err = doRequest(ta.app, "GET", "/api/separate/result/"+jobID, "")
	if err != nil {
		t.Fatalf("result request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	result := parseJSON(t, resp)
	files, _ := result["files"].(map[string]interface{})
	if len(files) != 2 {
		t.Fatalf("expected 2 stems, got %v", result)
	}
	for stem, p := range files {
		data, err := os.ReadFile(p.(string))
		if err != nil {
			t.Fatalf("stem %s unreadable: %v", stem, err)
		}
		if string(data) != "stem" {
			t.Errorf("stem %s has unexpected content %q", stem, data)
		}
	}
}

func TestSeparateStart_MissingAudioPath(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, "POST", "/api/separate/start", `{}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestJobStatus_NotFound(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, "GET", "/api/separate/status/no-such-job", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)

	body := parseJSON(t, resp)
	errObj, _ := body["error"].(map[string]interface{})
	if errObj == nil || errObj["code"] != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %v", body)
	}
}

func TestJobCancel_AfterCompletion(t *testing.T) {
	ta := setupApp(t)
	audio := writeTestAudio(t)

	jobID := startJob(t, ta, "/api/separate/start", fmt.Sprintf(`{"audioPath":%q}`, audio))

	// The job already ran to completion, so cancel is rejected.
	resp, err := doRequest(ta.app, "POST", "/api/separate/cancel/"+jobID, "")
	if err != nil {
		t.Fatalf("cancel request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestConvertJobLifecycle(t *testing.T) {
	ta := setupApp(t)
	audio := writeTestAudio(t)

	jobID := startJob(t, ta, "/api/convert/start",
		fmt.Sprintf(`{"audioPath":%q,"modelName":"singer-a","pitchShift":2}`, audio))

	resp, err := doRequest(ta.app, "GET", "/api/convert/result/"+jobID, "")
	if err != nil {
		t.Fatalf("result request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	result := parseJSON(t, resp)
	files, _ := result["files"].(map[string]interface{})
	p, _ := files["result"].(string)
	if p == "" {
		t.Fatalf("expected converted file, got %v", result)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("artifact unreadable: %v", err)
	}
	if string(data) != "converted" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestConvertStart_MissingModelName(t *testing.T) {
	ta := setupApp(t)
	audio := writeTestAudio(t)

	resp, err := doRequest(ta.app, "POST", "/api/convert/start",
		fmt.Sprintf(`{"audioPath":%q}`, audio))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)

	body := readBody(t, resp)
	if !strings.Contains(body, "ModelName") {
		t.Errorf("expected ModelName named in details, got %s", body)
	}
}

func TestConvertModels(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, "GET", "/api/convert/models", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := readBody(t, resp)
	if !strings.Contains(body, "singer-a") {
		t.Errorf("expected voice model list, got %s", body)
	}
}

func TestSeparateModels(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, "GET", "/api/separate/models", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := readBody(t, resp)
	if !strings.Contains(body, "UVR-MDX-NET-Inst_HQ_3") {
		t.Errorf("expected separation model list, got %s", body)
	}
}

func TestWorkflowJobLifecycle(t *testing.T) {
	ta := setupApp(t)

	jobID := startJob(t, ta, "/api/workflow/start",
		`{"workflow":{"9":{"class_type":"SaveAudio"}}}`)

	resp, err := doRequest(ta.app, "GET", "/api/workflow/status/"+jobID, "")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	status := parseJSON(t, resp)
	if status["status"] != "succeeded" {
		t.Fatalf("expected succeeded, got %v", status["status"])
	}

	resp, err = doRequest(ta.app, "GET", "/api/workflow/result/"+jobID, "")
	if err != nil {
		t.Fatalf("result request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	result := parseJSON(t, resp)
	files, _ := result["files"].(map[string]interface{})
	if _, ok := files["gen.flac"]; !ok {
		t.Fatalf("expected gen.flac in results, got %v", result)
	}
}

func TestWorkflowStart_MissingWorkflow(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, "POST", "/api/workflow/start", `{}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestWorkflowQueue(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, "GET", "/api/workflow/queue", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	if _, ok := body["running"]; !ok {
		t.Errorf("expected queue depths, got %v", body)
	}
}

func TestHealth(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, "GET", "/health", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	services, _ := body["services"].(map[string]interface{})
	for _, name := range []string{"localai", "uvr5", "rvc", "comfyui"} {
		if up, _ := services[name].(bool); !up {
			t.Errorf("expected %s healthy, got %v", name, services[name])
		}
	}
}

package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/audiobridge/api/internal/client"
	"github.com/audiobridge/api/internal/config"
	"github.com/audiobridge/api/internal/handler"
	"github.com/audiobridge/api/internal/middleware"
	"github.com/audiobridge/api/internal/orchestrator"
	"github.com/audiobridge/api/internal/service"
	"github.com/audiobridge/api/internal/worker"
	ws "github.com/audiobridge/api/internal/websocket"
)

// testApp holds the components needed for testing.
type testApp struct {
	app    *fiber.App
	jobs   *service.JobService
	outDir string
}

// syncEnqueuer runs each task inline instead of queuing it, so a started job
// is already terminal by the time the start endpoint returns.
type syncEnqueuer struct {
	handlers map[string]func(context.Context, *asynq.Task) error
}

func (s *syncEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if h, ok := s.handlers[task.Type()]; ok {
		// Terminal failures surface through the job record, not the queue.
		_ = h(context.Background(), task)
	}
	return &asynq.TaskInfo{}, nil
}

// mockBackends serves happy-path versions of all four audio backends.
func mockBackends(t *testing.T) (localai, uvr5, rvc, comfyui *config.BackendConfig) {
	t.Helper()

	localaiMux := http.NewServeMux()
	localaiMux.HandleFunc("/readyz", okHandler)
	localaiMux.HandleFunc("/v1/audio/speech", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3bytes"))
	})
	localaiMux.HandleFunc("/v1/audio/generations", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		w.Write([]byte("generated"))
	})
	localaiMux.HandleFunc("/v1/audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, _, err := r.FormFile("file"); err != nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "transcribed text"})
	})
	localaiMux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"data": []map[string]string{{"id": "tts-1"}}})
	})

	uvr5Mux := http.NewServeMux()
	uvr5Mux.HandleFunc("/health", okHandler)
	uvr5Mux.HandleFunc("/api/separate", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"job_id": "sep-1", "status": "queued"})
	})
	uvr5Mux.HandleFunc("/api/result/sep-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "completed",
			"stems":  map[string]string{"vocals": "ready", "instrumental": "ready"},
		})
	})
	uvr5Mux.HandleFunc("/api/download/sep-1/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("stem"))
	})
	uvr5Mux.HandleFunc("/api/models", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"models": []string{"UVR-MDX-NET-Inst_HQ_3"}})
	})

	rvcMux := http.NewServeMux()
	rvcMux.HandleFunc("/health", okHandler)
	rvcMux.HandleFunc("/api/convert", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"job_id": "conv-1", "status": "pending"})
	})
	rvcMux.HandleFunc("/api/jobs/conv-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "done"})
	})
	rvcMux.HandleFunc("/api/download/conv-1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("converted"))
	})
	rvcMux.HandleFunc("/api/models", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"models": []map[string]string{{"name": "singer-a"}}})
	})

	comfyuiMux := http.NewServeMux()
	comfyuiMux.HandleFunc("/system_stats", okHandler)
	comfyuiMux.HandleFunc("/prompt", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"prompt_id": "prompt-1"})
	})
	comfyuiMux.HandleFunc("/history/prompt-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"prompt-1": map[string]interface{}{
				"outputs": map[string]interface{}{
					"9": map[string]interface{}{
						"audio": []map[string]string{{"filename": "gen.flac", "type": "output"}},
					},
				},
				"status": map[string]interface{}{"status_str": "success", "completed": true},
			},
		})
	})
	comfyuiMux.HandleFunc("/view", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("generated"))
	})
	comfyuiMux.HandleFunc("/queue", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"queue_running": []interface{}{},
			"queue_pending": []interface{}{},
		})
	})

	return serveMock(t, localaiMux), serveMock(t, uvr5Mux), serveMock(t, rvcMux), serveMock(t, comfyuiMux)
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(`{"status":"ok"}`))
}

func serveMock(t *testing.T, mux *http.ServeMux) *config.BackendConfig {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &config.BackendConfig{BaseURL: srv.URL, Timeout: 5, PollInterval: 0, JobDeadline: 5}
}

// setupApp creates a Fiber app mirroring main.go, backed by miniredis and
// mock audio backends. Jobs are processed synchronously on enqueue.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	validate := validator.New()

	hub := ws.NewHub()
	go hub.Run()

	localaiCfg, uvr5Cfg, rvcCfg, comfyuiCfg := mockBackends(t)
	outDir := t.TempDir()

	speechOrch := orchestrator.NewSpeechOrchestrator(client.NewLocalAIClient(localaiCfg), outDir)
	separationOrch := orchestrator.NewSeparationOrchestrator(client.NewUVR5Client(uvr5Cfg), uvr5Cfg, outDir)
	conversionOrch := orchestrator.NewConversionOrchestrator(client.NewRVCClient(rvcCfg), rvcCfg, outDir)
	workflowOrch := orchestrator.NewWorkflowOrchestrator(client.NewComfyUIClient(comfyuiCfg), comfyuiCfg, outDir)

	enq := &syncEnqueuer{handlers: map[string]func(context.Context, *asynq.Task) error{}}
	jobService := service.NewJobService(redisClient, enq)

	separateWorker := worker.NewSeparateWorker(jobService, separationOrch, nil, hub)
	convertWorker := worker.NewConvertWorker(jobService, conversionOrch, nil, hub)
	workflowWorker := worker.NewWorkflowWorker(jobService, workflowOrch, nil, hub)
	enq.handlers[service.TaskTypeSeparate] = separateWorker.ProcessTask
	enq.handlers[service.TaskTypeConvert] = convertWorker.ProcessTask
	enq.handlers[service.TaskTypeWorkflow] = workflowWorker.ProcessTask

	speechHandler := handler.NewSpeechHandler(speechOrch, validate)
	separateHandler := handler.NewSeparateHandler(jobService, separationOrch, validate)
	convertHandler := handler.NewConvertHandler(jobService, conversionOrch, validate)
	workflowHandler := handler.NewWorkflowHandler(jobService, workflowOrch, validate)

	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New(fiber.Config{
		BodyLimit: 100 * 1024 * 1024,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"localai": speechOrch.Health(c.Context()) == nil,
				"uvr5":    separationOrch.Health(c.Context()) == nil,
				"rvc":     conversionOrch.Health(c.Context()) == nil,
				"comfyui": workflowOrch.Health(c.Context()) == nil,
			},
		})
	})

	api := app.Group("/api")

	// Use very high rate limits so tests don't get blocked
	speech := api.Group("/speech", rateLimiter.SpeechLimit(10000))
	speech.Post("/tts", speechHandler.TTS)
	speech.Post("/generate", speechHandler.Generate)
	speech.Post("/transcribe", speechHandler.Transcribe)
	speech.Get("/models", speechHandler.Models)

	separate := api.Group("/separate")
	separate.Post("/start", rateLimiter.JobsLimit(10000), separateHandler.Start)
	separate.Get("/status/:jobId", separateHandler.Status)
	separate.Get("/result/:jobId", separateHandler.Result)
	separate.Post("/cancel/:jobId", separateHandler.Cancel)
	separate.Get("/models", separateHandler.Models)

	convert := api.Group("/convert")
	convert.Post("/start", rateLimiter.JobsLimit(10000), convertHandler.Start)
	convert.Get("/status/:jobId", convertHandler.Status)
	convert.Get("/result/:jobId", convertHandler.Result)
	convert.Post("/cancel/:jobId", convertHandler.Cancel)
	convert.Get("/models", convertHandler.Models)
	convert.Get("/models/:name", convertHandler.ModelInfo)

	workflow := api.Group("/workflow")
	workflow.Post("/start", rateLimiter.JobsLimit(10000), workflowHandler.Start)
	workflow.Get("/status/:jobId", workflowHandler.Status)
	workflow.Get("/result/:jobId", workflowHandler.Result)
	workflow.Post("/cancel/:jobId", workflowHandler.Cancel)
	workflow.Get("/queue", workflowHandler.Queue)

	return &testApp{app: app, jobs: jobService, outDir: outDir}
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus fails the test if the response status differs from want.
func assertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d", want, resp.StatusCode)
	}
}

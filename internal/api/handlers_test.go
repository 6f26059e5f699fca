package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Corphon/GameStoryMCP/internal/errors"
	"github.com/Corphon/GameStoryMCP/internal/models"
	"github.com/Corphon/GameStoryMCP/internal/services"
	"github.com/Corphon/GameStoryMCP/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testMeta() models.GameMeta {
	return models.GameMeta{
		GameID:       77,
		Sport:        "basketball",
		HomeTeamName: "Riverton Hawks",
		AwayTeamName: "Bayview Comets",
	}
}

// testPlays 一场最小但完整合法的比赛：四节、有暂停、关键时刻收尾
func testPlays() []models.Play {
	type entry struct {
		period int
		clock  string
		home   int
		away   int
		player string
		desc   string
	}
	entries := []entry{
		{1, "10:00", 2, 0, "A One", "layup"},
		{1, "08:00", 2, 3, "B Two", "three"},
		{1, "05:00", 4, 3, "A One", "jumper"},
		{1, "02:00", 4, 5, "B Two", "layup"},
		{2, "09:00", 7, 5, "A One", "three"},
		{2, "06:00", 7, 5, "", "Hawks full timeout"},
		{2, "04:00", 9, 5, "C Three", "dunk"},
		{2, "01:00", 9, 8, "B Two", "three"},
		{3, "08:00", 11, 8, "A One", "drive"},
		{3, "04:00", 11, 11, "B Two", "three"},
		{3, "01:00", 13, 11, "C Three", "putback"},
		{4, "09:00", 13, 14, "B Two", "three"},
		{4, "04:30", 15, 14, "A One", "jumper"},
		{4, "01:30", 15, 16, "B Two", "layup"},
		{4, "00:05", 18, 16, "A One", "game-winning three"},
	}
	plays := make([]models.Play, 0, len(entries))
	for i, e := range entries {
		plays = append(plays, models.Play{
			Index:       i + 1,
			EventType:   models.EventTypePlayByPlay,
			Period:      e.period,
			GameClock:   e.clock,
			Description: e.desc,
			Team:        "",
			HomeScore:   e.home,
			AwayScore:   e.away,
			PlayerName:  e.player,
		})
	}
	return plays
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	detectorCfg := services.DefaultDetectorConfig()
	windows := services.NewWindowService(detectorCfg)
	stats := services.NewStatsService()
	story := services.NewStoryService(
		services.NewChapterService(services.DefaultChapterConfig()),
		windows,
		stats,
		services.NewBeatService(detectorCfg),
		services.NewSectionService(windows),
		services.NewCoverageService(),
		services.NewQualityService(),
		services.NewContextService(stats),
		services.NewQAService(services.DefaultQAConfig()),
		nil,
		services.NewProgressService(),
		nil,
	)
	files, err := storage.NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStorage() = %v", err)
	}
	return NewHandler(story, services.NewEmptyLLMService(), services.NewProgressService(), nil, files)
}

func newTestRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.POST("/api/games", h.CreateGameStory)
	r.GET("/api/games/:game_id", h.GetGameStory)
	r.GET("/api/games/:game_id/sections", h.GetSections)
	r.GET("/api/games/:game_id/quality", h.GetQuality)
	r.GET("/api/games/:game_id/plays", h.GetRawPlays)
	r.GET("/api/tasks/:taskID", h.GetTaskStatus)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, *APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return w, &resp
}

func TestCreateGameStory(t *testing.T) {
	h := newTestHandler(t)
	r := newTestRouter(h)

	w, resp := doJSON(t, r, http.MethodPost, "/api/games", CreateGameStoryRequest{
		Meta:  testMeta(),
		Plays: testPlays(),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", w.Code, w.Body.String())
	}
	if !resp.Success {
		t.Fatalf("success = false: %+v", resp.Error)
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data = %T", resp.Data)
	}
	if fp, _ := data["fingerprint"].(string); len(fp) != 64 {
		t.Errorf("fingerprint = %v, want 64 hex chars", data["fingerprint"])
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
	if !h.Files.FileExists(storage.GameDir(77), rawPlaysFile) {
		t.Error("raw plays not persisted after create")
	}
}

func TestGetRawPlays(t *testing.T) {
	h := newTestHandler(t)
	r := newTestRouter(h)

	t.Run("before create", func(t *testing.T) {
		w, resp := doJSON(t, r, http.MethodGet, "/api/games/77/plays", nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", w.Code)
		}
		if resp.Error == nil || resp.Error.Code != ErrorGameNotFound {
			t.Errorf("error = %+v, want %s", resp.Error, ErrorGameNotFound)
		}
	})

	t.Run("after create", func(t *testing.T) {
		if w, _ := doJSON(t, r, http.MethodPost, "/api/games", CreateGameStoryRequest{
			Meta:  testMeta(),
			Plays: testPlays(),
		}); w.Code != http.StatusCreated {
			t.Fatalf("create status = %d", w.Code)
		}

		w, resp := doJSON(t, r, http.MethodGet, "/api/games/77/plays", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
		}
		data, ok := resp.Data.(map[string]interface{})
		if !ok {
			t.Fatalf("data = %T", resp.Data)
		}
		plays, ok := data["plays"].([]interface{})
		if !ok || len(plays) != len(testPlays()) {
			t.Errorf("plays round-trip = %d entries, want %d", len(plays), len(testPlays()))
		}
	})
}

func TestGetTaskStatus(t *testing.T) {
	h := newTestHandler(t)
	r := newTestRouter(h)

	t.Run("unknown task", func(t *testing.T) {
		w, resp := doJSON(t, r, http.MethodGet, "/api/tasks/nope", nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", w.Code)
		}
		if resp.Error == nil || resp.Error.Code != ErrorTaskNotFound {
			t.Errorf("error = %+v, want %s", resp.Error, ErrorTaskNotFound)
		}
	})

	t.Run("running task", func(t *testing.T) {
		h.ProgressService.CreateTracker("task-api-1", 77, 4)

		w, resp := doJSON(t, r, http.MethodGet, "/api/tasks/task-api-1", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		data, ok := resp.Data.(map[string]interface{})
		if !ok {
			t.Fatalf("data = %T", resp.Data)
		}
		if data["task_id"] != "task-api-1" || data["status"] != "running" {
			t.Errorf("task snapshot = %+v, want running task-api-1", data)
		}
	})
}

func TestCreateGameStory_EmptyTimeline(t *testing.T) {
	h := newTestHandler(t)
	r := newTestRouter(h)

	w, resp := doJSON(t, r, http.MethodPost, "/api/games", CreateGameStoryRequest{
		Meta:  testMeta(),
		Plays: nil,
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	if resp.Error == nil || resp.Error.Code != ErrorStructural {
		t.Errorf("error = %+v, want %s", resp.Error, ErrorStructural)
	}
}

func TestGetGameStory(t *testing.T) {
	h := newTestHandler(t)
	r := newTestRouter(h)

	t.Run("unknown game", func(t *testing.T) {
		w, resp := doJSON(t, r, http.MethodGet, "/api/games/77", nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", w.Code)
		}
		if resp.Error == nil || resp.Error.Code != ErrorGameNotFound {
			t.Errorf("error = %+v, want %s", resp.Error, ErrorGameNotFound)
		}
	})

	t.Run("bad game id", func(t *testing.T) {
		w, _ := doJSON(t, r, http.MethodGet, "/api/games/abc", nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})

	t.Run("after create", func(t *testing.T) {
		if w, _ := doJSON(t, r, http.MethodPost, "/api/games", CreateGameStoryRequest{
			Meta:  testMeta(),
			Plays: testPlays(),
		}); w.Code != http.StatusCreated {
			t.Fatalf("create status = %d", w.Code)
		}

		w, resp := doJSON(t, r, http.MethodGet, "/api/games/77", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if !resp.Success {
			t.Errorf("success = false: %+v", resp.Error)
		}

		if w, _ := doJSON(t, r, http.MethodGet, "/api/games/77/sections", nil); w.Code != http.StatusOK {
			t.Errorf("sections status = %d, want 200", w.Code)
		}
		if w, resp := doJSON(t, r, http.MethodGet, "/api/games/77/quality", nil); w.Code != http.StatusOK {
			t.Errorf("quality status = %d, want 200", w.Code)
		} else if data, ok := resp.Data.(map[string]interface{}); !ok || data["quality"] == "" {
			t.Errorf("quality payload = %+v", resp.Data)
		}
	})
}

func TestPipelineError_StatusMapping(t *testing.T) {
	rh := NewResponseHelper()

	tests := []struct {
		err      error
		wantCode int
		wantAPI  string
	}{
		{apperrors.NewStructuralError("x", nil), http.StatusUnprocessableEntity, ErrorStructural},
		{apperrors.NewCoverageError("x", nil), http.StatusUnprocessableEntity, ErrorCoverage},
		{apperrors.NewSectionConstraintError("x", nil), http.StatusUnprocessableEntity, ErrorSectionConstraint},
		{apperrors.NewPolicyViolationError("x", nil), http.StatusInternalServerError, ErrorPolicyViolation},
		{apperrors.NewQAValidationError("x", nil), http.StatusInternalServerError, ErrorQAValidation},
		{apperrors.NewValidationError("x", nil), http.StatusBadRequest, ErrorBadRequest},
		{apperrors.NewNotFoundError("x", nil), http.StatusNotFound, ErrorNotFound},
		{fmt.Errorf("plain failure"), http.StatusInternalServerError, ErrorInternalError},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		rh.PipelineError(c, tt.err)

		if w.Code != tt.wantCode {
			t.Errorf("PipelineError(%v) status = %d, want %d", tt.err, w.Code, tt.wantCode)
			continue
		}
		var resp APIResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Error == nil || resp.Error.Code != tt.wantAPI {
			t.Errorf("PipelineError(%v) code = %+v, want %s", tt.err, resp.Error, tt.wantAPI)
		}
	}
}

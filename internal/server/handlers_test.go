package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/reel/internal/auth"
	"github.com/MarcoPoloResearchLab/reel/internal/catalog"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func newTestContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, target, http.NoBody)
	} else {
		request = httptest.NewRequest(method, target, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
	}
	ctx.Request = request
	return ctx, recorder
}

func TestHandleListHomeVideosRejectsOutOfRangeLimit(testContext *testing.T) {
	context, recorder := newTestContext(http.MethodGet, "/videos?limit=0", "")
	handler := &httpHandler{catalog: &catalog.Service{}, logger: zap.NewNop()}

	handler.handleListHomeVideos(context)

	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected bad request status, got %d", recorder.Code)
	}
	expected := `{"error":"invalid_limit"}`
	if recorder.Body.String() != expected {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestHandleListHomeVideosRejectsMalformedCursor(testContext *testing.T) {
	context, recorder := newTestContext(http.MethodGet, "/videos?cursor=not-a-cursor!", "")
	handler := &httpHandler{catalog: &catalog.Service{}, logger: zap.NewNop()}

	handler.handleListHomeVideos(context)

	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected bad request status, got %d", recorder.Code)
	}
	expected := `{"error":"invalid_cursor"}`
	if recorder.Body.String() != expected {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestHandleCreatePlaylistIncludesServiceErrorCode(testContext *testing.T) {
	context, recorder := newTestContext(http.MethodPost, "/playlists", `{"name":"Later"}`)
	context.Set(userIDContextKey, "user-1")
	handler := &httpHandler{catalog: &catalog.Service{}, logger: zap.NewNop()}

	handler.handleCreatePlaylist(context)

	if recorder.Code != http.StatusInternalServerError {
		testContext.Fatalf("expected internal server error status, got %d", recorder.Code)
	}
	expected := `{"code":"catalog.create_playlist.missing_database","error":"missing_database"}`
	if recorder.Body.String() != expected {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestHandleVideoReactionRejectsUnknownReaction(testContext *testing.T) {
	context, recorder := newTestContext(http.MethodPost, "/videos/video-1/reactions", `{"type":"love"}`)
	context.Set(userIDContextKey, "user-1")
	context.Params = gin.Params{{Key: "id", Value: "video-1"}}
	handler := &httpHandler{catalog: &catalog.Service{}, logger: zap.NewNop()}

	handler.handleVideoReaction(context)

	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected bad request status, got %d", recorder.Code)
	}
	expected := `{"error":"invalid_reaction"}`
	if recorder.Body.String() != expected {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestHandleTriggerWorkflowRejectsUnknownJob(testContext *testing.T) {
	context, recorder := newTestContext(http.MethodPost, "/videos/video-1/workflows/captions", "")
	context.Set(userIDContextKey, "user-1")
	context.Params = gin.Params{{Key: "id", Value: "video-1"}, {Key: "job", Value: "captions"}}
	handler := &httpHandler{catalog: &catalog.Service{}, logger: zap.NewNop()}

	handler.handleTriggerWorkflow(context)

	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected bad request status, got %d", recorder.Code)
	}
	expected := `{"error":"invalid_job_type"}`
	if recorder.Body.String() != expected {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestHandleRecordViewRequiresUser(testContext *testing.T) {
	context, recorder := newTestContext(http.MethodPost, "/videos/video-1/views", "")
	context.Params = gin.Params{{Key: "id", Value: "video-1"}}
	handler := &httpHandler{catalog: &catalog.Service{}, logger: zap.NewNop()}

	handler.handleRecordView(context)

	if recorder.Code != http.StatusUnauthorized {
		testContext.Fatalf("expected unauthorized status, got %d", recorder.Code)
	}
}

func TestStatusForErrorMapsClientFaults(testContext *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{err: fmt.Errorf("wrapped: %w", catalog.ErrInvalidInput), status: http.StatusBadRequest},
		{err: fmt.Errorf("wrapped: %w", catalog.ErrNotFound), status: http.StatusNotFound},
		{err: fmt.Errorf("wrapped: %w", catalog.ErrForbidden), status: http.StatusForbidden},
		{err: fmt.Errorf("wrapped: %w", catalog.ErrConflict), status: http.StatusConflict},
		{err: errors.New("disk on fire"), status: http.StatusInternalServerError},
	}
	for _, testCase := range cases {
		if got := statusForError(testCase.err); got != testCase.status {
			testContext.Fatalf("statusForError(%v) = %d, want %d", testCase.err, got, testCase.status)
		}
	}
}

func TestMutationLimiterIsPerUser(testContext *testing.T) {
	now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	limiter := newMutationLimiter(2, func() time.Time { return now })

	if !limiter.allow("user-1") || !limiter.allow("user-1") {
		testContext.Fatalf("expected burst of two mutations to be allowed")
	}
	if limiter.allow("user-1") {
		testContext.Fatalf("expected third mutation within the window to be limited")
	}
	if !limiter.allow("user-2") {
		testContext.Fatalf("expected a different user to have their own budget")
	}

	now = now.Add(30 * time.Second)
	if !limiter.allow("user-1") {
		testContext.Fatalf("expected budget to refill over time")
	}
}

func TestNewHTTPHandlerValidatesDependencies(testContext *testing.T) {
	if _, err := NewHTTPHandler(Dependencies{}); !errors.Is(err, errMissingSessionValidator) {
		testContext.Fatalf("expected missing session validator error, got %v", err)
	}
	if _, err := NewHTTPHandler(Dependencies{SessionValidator: stubSessionValidator{}}); !errors.Is(err, errMissingIdentityResolver) {
		testContext.Fatalf("expected missing identity resolver error, got %v", err)
	}
	if _, err := NewHTTPHandler(Dependencies{
		SessionValidator: stubSessionValidator{},
		Identities:       stubIdentityResolver{},
	}); !errors.Is(err, errMissingCatalogService) {
		testContext.Fatalf("expected missing catalog error, got %v", err)
	}
}

func TestRouterRateLimitsMutationsPerUser(testContext *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	router, err := NewHTTPHandler(Dependencies{
		SessionValidator:   stubSessionValidator{claims: auth.SessionClaims{UserID: "user-1"}},
		Identities:         stubIdentityResolver{},
		Catalog:            &catalog.Service{},
		Logger:             zap.NewNop(),
		MutationsPerMinute: 1,
		Clock:              func() time.Time { return now },
	})
	if err != nil {
		testContext.Fatalf("failed to build router: %v", err)
	}

	send := func() *httptest.ResponseRecorder {
		request := httptest.NewRequest(http.MethodPost, "/playlists", strings.NewReader(`{"name":"Later"}`))
		request.Header.Set("Content-Type", "application/json")
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, request)
		return recorder
	}

	if first := send(); first.Code != http.StatusInternalServerError {
		testContext.Fatalf("expected first mutation to reach the catalog, got %d", first.Code)
	}
	second := send()
	if second.Code != http.StatusTooManyRequests {
		testContext.Fatalf("expected second mutation to be rate limited, got %d", second.Code)
	}
	if second.Body.String() != `{"error":"rate_limited"}` {
		testContext.Fatalf("unexpected response body: %s", second.Body.String())
	}
}

func TestRouterRejectsAnonymousMutations(testContext *testing.T) {
	gin.SetMode(gin.TestMode)
	router, err := NewHTTPHandler(Dependencies{
		SessionValidator: stubSessionValidator{validateErr: auth.ErrMissingSessionToken},
		Identities:       stubIdentityResolver{},
		Catalog:          &catalog.Service{},
	})
	if err != nil {
		testContext.Fatalf("failed to build router: %v", err)
	}

	request := httptest.NewRequest(http.MethodPost, "/videos/video-1/reactions", strings.NewReader(`{"type":"like"}`))
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		testContext.Fatalf("expected unauthorized status, got %d", recorder.Code)
	}

	healthRecorder := httptest.NewRecorder()
	router.ServeHTTP(healthRecorder, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	if healthRecorder.Code != http.StatusOK {
		testContext.Fatalf("expected health check to succeed, got %d", healthRecorder.Code)
	}
}

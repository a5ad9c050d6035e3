package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/reel/internal/auth"
	"github.com/MarcoPoloResearchLab/reel/internal/catalog"
	"github.com/MarcoPoloResearchLab/reel/internal/database"
	"github.com/MarcoPoloResearchLab/reel/internal/server"
	"github.com/MarcoPoloResearchLab/reel/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	sessionSigningSecret = "integration-secret"
	sessionCookieName    = "app_session"
	jsonContentType      = "application/json"
)

type apiClient struct {
	t       *testing.T
	baseURL string
	cookie  *http.Cookie
}

func TestCatalogFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite("file:catalog_flow?mode=memory&cache=shared", zap.NewNop())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	identities, err := users.NewService(users.ServiceConfig{Database: db, Logger: zap.NewNop()})
	require.NoError(t, err)
	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Database:   db,
		IDProvider: catalog.NewUUIDProvider(),
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)
	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(sessionSigningSecret),
		CookieName:    sessionCookieName,
	})
	require.NoError(t, err)

	handler, err := server.NewHTTPHandler(server.Dependencies{
		SessionValidator: validator,
		Identities:       identities,
		Catalog:          catalogService,
		Logger:           zap.NewNop(),
	})
	require.NoError(t, err)

	testServer := httptest.NewServer(handler)
	t.Cleanup(testServer.Close)

	issuer, err := auth.NewSessionIssuer(auth.SessionIssuerConfig{
		SigningSecret: []byte(sessionSigningSecret),
		TokenTTL:      time.Hour,
	})
	require.NoError(t, err)

	creator := newClient(t, testServer.URL, issuer, auth.SessionIdentity{UserID: "creator-1", DisplayName: "Creator"})
	fan := newClient(t, testServer.URL, issuer, auth.SessionIdentity{UserID: "fan-1", DisplayName: "Fan"})
	anonymous := &apiClient{t: t, baseURL: testServer.URL}

	status, created := creator.do(http.MethodPost, "/videos", map[string]any{"title": "Launch day"})
	require.Equal(t, http.StatusCreated, status)
	video := created["video"].(map[string]any)
	videoID := video["id"].(string)
	require.Equal(t, "private", video["visibility"])
	require.Nil(t, created["upload"])

	status, _ = anonymous.do(http.MethodGet, "/videos/"+videoID, nil)
	require.Equal(t, http.StatusNotFound, status)

	status, body := fan.do(http.MethodPatch, "/videos/"+videoID, map[string]any{"title": "Mine now"})
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "video_not_found", body["error"])

	status, _ = creator.do(http.MethodPatch, "/videos/"+videoID, map[string]any{"visibility": "public"})
	require.Equal(t, http.StatusOK, status)

	status, body = fan.do(http.MethodPatch, "/videos/"+videoID, map[string]any{"title": "Mine now"})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "catalog.update_video.not_owner", body["code"])

	status, body = fan.do(http.MethodPost, "/videos/"+videoID+"/reactions", map[string]any{"type": "like"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, false, body["removed"])
	require.Equal(t, "like", body["reaction"])

	status, _ = fan.do(http.MethodPost, "/videos/"+videoID+"/views", nil)
	require.Equal(t, http.StatusNoContent, status)

	status, body = fan.do(http.MethodGet, "/videos?limit=10", nil)
	require.Equal(t, http.StatusOK, status)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	card := items[0].(map[string]any)
	require.Equal(t, videoID, card["id"])
	require.Equal(t, "Creator", card["owner_name"])
	require.EqualValues(t, 1, card["like_count"])
	require.EqualValues(t, 1, card["view_count"])
	require.Equal(t, "like", card["viewer_reaction"])
	require.Nil(t, body["next_cursor"])

	status, body = anonymous.do(http.MethodGet, "/aggregates?kind=video&ids="+videoID+",missing", nil)
	require.Equal(t, http.StatusOK, status)
	aggregates := body["items"].(map[string]any)
	require.Len(t, aggregates, 1)
	require.Equal(t, "none", aggregates[videoID].(map[string]any)["viewer_reaction"])

	status, body = fan.do(http.MethodPost, "/videos/"+videoID+"/reactions", map[string]any{"type": "like"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["removed"])
	require.Nil(t, body["reaction"])

	status, comment := fan.do(http.MethodPost, "/videos/"+videoID+"/comments", map[string]any{"value": "First!"})
	require.Equal(t, http.StatusCreated, status)
	commentID := comment["id"].(string)
	status, _ = creator.do(http.MethodPost, "/videos/"+videoID+"/comments", map[string]any{"value": "Thanks", "parent_id": commentID})
	require.Equal(t, http.StatusCreated, status)

	status, body = anonymous.do(http.MethodGet, "/videos/"+videoID+"/comments", nil)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 1, body["total_count"])
	thread := body["items"].([]any)[0].(map[string]any)
	require.Equal(t, "Fan", thread["owner_name"])
	require.EqualValues(t, 1, thread["reply_count"])

	status, body = fan.do(http.MethodPost, "/channels/creator-1/subscription", nil)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "creator-1", body["creator_id"])
	status, body = fan.do(http.MethodGet, "/videos/"+videoID, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["viewer_subscribed"])
	require.EqualValues(t, 1, body["owner_subscriber_count"])

	status, playlist := fan.do(http.MethodPost, "/playlists", map[string]any{"name": "Later"})
	require.Equal(t, http.StatusCreated, status)
	playlistID := playlist["id"].(string)
	status, _ = fan.do(http.MethodPost, fmt.Sprintf("/playlists/%s/videos/%s", playlistID, videoID), nil)
	require.Equal(t, http.StatusCreated, status)
	status, body = fan.do(http.MethodPost, fmt.Sprintf("/playlists/%s/videos/%s", playlistID, videoID), nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "duplicate_video", body["error"])

	status, body = fan.do(http.MethodGet, "/videos/"+videoID+"/playlists", nil)
	require.Equal(t, http.StatusOK, status)
	memberships := body["items"].([]any)
	require.Len(t, memberships, 1)
	require.Equal(t, true, memberships[0].(map[string]any)["contains_video"])

	status, _ = creator.do(http.MethodGet, "/playlists/"+playlistID, nil)
	require.Equal(t, http.StatusNotFound, status)

	status, _ = creator.do(http.MethodDelete, "/videos/"+videoID, nil)
	require.Equal(t, http.StatusNoContent, status)
	status, body = fan.do(http.MethodGet, "/playlists/"+playlistID+"/videos", nil)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, body["items"])
}

func newClient(t *testing.T, baseURL string, issuer *auth.SessionIssuer, identity auth.SessionIdentity) *apiClient {
	t.Helper()
	token, _, err := issuer.Issue(identity)
	require.NoError(t, err)
	return &apiClient{
		t:       t,
		baseURL: baseURL,
		cookie:  &http.Cookie{Name: sessionCookieName, Value: token},
	}
}

func (c *apiClient) do(method, path string, payload any) (int, map[string]any) {
	c.t.Helper()
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(c.t, err)
		reader = bytes.NewReader(encoded)
	}
	request, err := http.NewRequest(method, c.baseURL+path, reader)
	require.NoError(c.t, err)
	if payload != nil {
		request.Header.Set("Content-Type", jsonContentType)
	}
	if c.cookie != nil {
		request.AddCookie(c.cookie)
	}

	response, err := http.DefaultClient.Do(request)
	require.NoError(c.t, err)
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	require.NoError(c.t, err)
	if len(bytes.TrimSpace(raw)) == 0 {
		return response.StatusCode, nil
	}
	var decoded map[string]any
	require.NoError(c.t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	return response.StatusCode, decoded
}

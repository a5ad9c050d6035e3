package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/reel/internal/auth"
	"github.com/MarcoPoloResearchLab/reel/internal/catalog"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userIDContextKey = "reel_user_id"

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingIdentityResolver = errors.New("identity resolver dependency required")
	errMissingCatalogService   = errors.New("catalog service dependency required")
)

// SessionValidator authenticates a request from its session cookie or bearer token.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// IdentityResolver maps validated session claims to a canonical user id.
type IdentityResolver interface {
	ResolveCanonicalUserID(ctx context.Context, claims auth.SessionClaims) (string, error)
}

type Dependencies struct {
	SessionValidator   SessionValidator
	Identities         IdentityResolver
	Catalog            *catalog.Service
	Logger             *zap.Logger
	AllowedOrigins     []string
	MutationsPerMinute int
	Clock              func() time.Time
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.SessionValidator == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Identities == nil {
		return nil, errMissingIdentityResolver
	}
	if deps.Catalog == nil {
		return nil, errMissingCatalogService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins...))

	handler := &httpHandler{
		sessions:   deps.SessionValidator,
		identities: deps.Identities,
		catalog:    deps.Catalog,
		limiter:    newMutationLimiter(deps.MutationsPerMinute, clock),
		logger:     logger,
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	public := router.Group("/")
	public.Use(handler.optionalSession)
	public.GET("/videos", handler.handleListHomeVideos)
	public.GET("/videos/search", handler.handleSearchVideos)
	public.GET("/videos/:id", handler.handleGetVideo)
	public.GET("/videos/:id/comments", handler.handleListComments)
	public.GET("/comments/:id/replies", handler.handleListReplies)
	public.GET("/channels/:id", handler.handleGetChannel)
	public.GET("/channels/:id/videos", handler.handleListChannelVideos)
	public.GET("/categories", handler.handleListCategories)
	public.GET("/aggregates", handler.handleGetAggregates)

	protected := router.Group("/")
	protected.Use(handler.requireSession)
	protected.GET("/me/history", handler.handleListHistory)
	protected.GET("/me/liked", handler.handleListLikedVideos)
	protected.GET("/me/subscriptions", handler.handleListSubscriptions)
	protected.GET("/me/subscriptions/videos", handler.handleListSubscribedVideos)
	protected.GET("/playlists", handler.handleListPlaylists)
	protected.GET("/playlists/:id", handler.handleGetPlaylist)
	protected.GET("/playlists/:id/videos", handler.handleListPlaylistVideos)
	protected.GET("/videos/:id/playlists", handler.handleListPlaylistsForVideo)

	mutating := protected.Group("/")
	mutating.Use(handler.limitMutations)
	mutating.POST("/videos", handler.handleCreateVideo)
	mutating.PATCH("/videos/:id", handler.handleUpdateVideo)
	mutating.DELETE("/videos/:id", handler.handleRemoveVideo)
	mutating.POST("/videos/:id/views", handler.handleRecordView)
	mutating.POST("/videos/:id/reactions", handler.handleVideoReaction)
	mutating.POST("/videos/:id/workflows/:job", handler.handleTriggerWorkflow)
	mutating.POST("/videos/:id/comments", handler.handleCreateComment)
	mutating.DELETE("/comments/:id", handler.handleRemoveComment)
	mutating.POST("/comments/:id/reactions", handler.handleCommentReaction)
	mutating.POST("/channels/:id/subscription", handler.handleSubscribe)
	mutating.DELETE("/channels/:id/subscription", handler.handleUnsubscribe)
	mutating.POST("/playlists", handler.handleCreatePlaylist)
	mutating.DELETE("/playlists/:id", handler.handleRemovePlaylist)
	mutating.POST("/playlists/:id/videos/:videoId", handler.handleAddPlaylistVideo)
	mutating.DELETE("/playlists/:id/videos/:videoId", handler.handleRemovePlaylistVideo)

	return router, nil
}

type httpHandler struct {
	sessions   SessionValidator
	identities IdentityResolver
	catalog    *catalog.Service
	limiter    *mutationLimiter
	logger     *zap.Logger
}

func corsMiddleware(allowedOrigins ...string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-TAuth-Tenant"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	origins := make([]string, 0, len(allowedOrigins))
	wildcard := len(allowedOrigins) == 0
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "*" {
			wildcard = true
			break
		}
		if trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if wildcard || len(origins) == 0 {
		// Credentialed requests need the caller's origin echoed back rather than "*".
		config.AllowOriginFunc = func(string) bool { return true }
	} else {
		config.AllowOrigins = origins
	}
	return cors.New(config)
}

// optionalSession attaches the caller's user id when a valid session is present.
// Anonymous or stale sessions fall through as anonymous reads.
func (h *httpHandler) optionalSession(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		if !errors.Is(err, auth.ErrMissingSessionToken) {
			h.logSessionFailure(err)
		}
		c.Next()
		return
	}
	userID, err := h.identities.ResolveCanonicalUserID(c.Request.Context(), claims)
	if err != nil {
		h.logger.Warn("identity resolution failed", zap.Error(err))
		c.Next()
		return
	}
	c.Set(userIDContextKey, userID)
	c.Next()
}

func (h *httpHandler) requireSession(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		if !errors.Is(err, auth.ErrMissingSessionToken) {
			h.logSessionFailure(err)
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	userID, err := h.identities.ResolveCanonicalUserID(c.Request.Context(), claims)
	if err != nil {
		h.logger.Error("identity resolution failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, userID)
	c.Next()
}

func (h *httpHandler) logSessionFailure(err error) {
	if errors.Is(err, auth.ErrExpiredSessionToken) {
		h.logger.Info("token validation failed", zap.Error(err))
		return
	}
	h.logger.Warn("token validation failed", zap.Error(err))
}

func (h *httpHandler) limitMutations(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	if !h.limiter.allow(userID) {
		h.logger.Info("mutation rate limited", zap.String("user_id", userID), zap.String("path", c.FullPath()))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
		return
	}
	c.Next()
}

func viewerID(c *gin.Context) string {
	return c.GetString(userIDContextKey)
}

func (h *httpHandler) requireUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(userIDContextKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return userID, true
}

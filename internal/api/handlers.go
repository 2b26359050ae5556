package api

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chatarchive/internal/importer"
	"chatarchive/internal/models"
	"chatarchive/internal/runlog"
	"chatarchive/internal/service/archive"
)

// Store is the read side of the archive.
type Store interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (*archive.Stats, error)
	ProjectSummaries(ctx context.Context) ([]archive.ProjectSummary, error)
	ListConversations(ctx context.Context, f archive.ConversationFilter) ([]models.Conversation, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
}

// RunLog reports finished imports.
type RunLog interface {
	Last(ctx context.Context) (*importer.Result, error)
	Recent(ctx context.Context, n int) ([]importer.Result, error)
}

// Handler wires HTTP routes to the archive store.
type Handler struct {
	store Store
	runs  RunLog
}

// NewHandler constructs a Handler instance. runs may be nil when redis is not
// configured.
func NewHandler(store Store, runs RunLog) *Handler {
	return &Handler{store: store, runs: runs}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.Use(allowAnyOrigin())
	api.GET("/health", h.health)
	api.GET("/stats", h.stats)
	api.GET("/projects", h.listProjects)
	api.GET("/conversations", h.listConversations)
	api.GET("/conversations/:id", h.getConversation)
	api.GET("/conversations/:id/messages", h.getConversationMessages)
	api.GET("/import/last-run", h.lastRun)
	api.GET("/import/runs", h.recentRuns)
}

// the archive browser is served from another origin
func allowAnyOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Next()
	}
}

func (h *Handler) health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "database": "unreachable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "connected"})
}

func (h *Handler) stats(c *gin.Context) {
	st, err := h.store.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if st.TopProjects == nil {
		st.TopProjects = make([]archive.ProjectCount, 0)
	}
	c.JSON(http.StatusOK, gin.H{
		"projects":               st.Projects,
		"conversations":          st.Conversations,
		"messages":               st.Messages,
		"projects_with_gpt_id":   st.ProjectsWithGPTID,
		"assigned_conversations": st.AssignedConversations,
		"gizmo_conversations":    st.GizmoConversations,
		"gpt_id_percentage":      percentage(st.ProjectsWithGPTID, st.Projects),
		"assigned_percentage":    percentage(st.AssignedConversations, st.Conversations),
		"top_projects":           st.TopProjects,
	})
}

func (h *Handler) listProjects(c *gin.Context) {
	projects, err := h.store.ProjectSummaries(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if projects == nil {
		projects = make([]archive.ProjectSummary, 0)
	}
	c.JSON(http.StatusOK, gin.H{
		"total_projects": len(projects),
		"projects":       projects,
	})
}

func (h *Handler) listConversations(c *gin.Context) {
	var filter archive.ConversationFilter
	if raw := c.Query("project_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
			return
		}
		filter.ProjectID = &id
	}
	var ok bool
	if filter.Limit, ok = intQuery(c, "limit", 50); !ok {
		return
	}
	if filter.Offset, ok = intQuery(c, "offset", 0); !ok {
		return
	}
	filter.Query = c.Query("q")

	convs, err := h.store.ListConversations(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if convs == nil {
		convs = make([]models.Conversation, 0)
	}
	c.JSON(http.StatusOK, gin.H{
		"conversations": convs,
		"count":         len(convs),
	})
}

func (h *Handler) getConversation(c *gin.Context) {
	conv, ok := h.loadConversation(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

func (h *Handler) getConversationMessages(c *gin.Context) {
	conv, ok := h.loadConversation(c)
	if !ok {
		return
	}
	messages, err := h.store.ListMessages(c.Request.Context(), conv.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if messages == nil {
		messages = make([]models.Message, 0)
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation": conv,
		"messages":     messages,
	})
}

func (h *Handler) loadConversation(c *gin.Context) (*models.Conversation, bool) {
	conv, err := h.store.GetConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return conv, true
}

func (h *Handler) lastRun(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run log not configured"})
		return
	}
	res, err := h.runs.Last(c.Request.Context())
	if err != nil {
		if errors.Is(err, runlog.ErrNoRun) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) recentRuns(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run log not configured"})
		return
	}
	limit, ok := intQuery(c, "limit", 10)
	if !ok {
		return
	}
	runs, err := h.runs.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = make([]importer.Result, 0)
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func intQuery(c *gin.Context, key string, fallback int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return 0, false
	}
	return v, true
}

// percentage rounds to one decimal and is 0 when whole is 0.
func percentage(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)*1000/float64(whole)) / 10
}

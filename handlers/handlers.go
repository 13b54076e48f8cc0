package handlers

import (
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/folajindayo/zoracle-telegram-sub001/middleware"
	"github.com/folajindayo/zoracle-telegram-sub001/mirror"
	"github.com/folajindayo/zoracle-telegram-sub001/models"
	"github.com/folajindayo/zoracle-telegram-sub001/monitor"
	"github.com/folajindayo/zoracle-telegram-sub001/storage"
	"github.com/folajindayo/zoracle-telegram-sub001/utils"
)

// Handler handles HTTP requests
type Handler struct {
	engine  *mirror.Engine
	monitor *monitor.ChainMonitor
	store   storage.ConfigStore
}

// NewHandler creates a new handler
func NewHandler(engine *mirror.Engine, mon *monitor.ChainMonitor, store storage.ConfigStore) *Handler {
	return &Handler{
		engine:  engine,
		monitor: mon,
		store:   store,
	}
}

// RegisterRoutes attaches the ops surface to a gin router.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api", middleware.BasicAuth(), middleware.ValidateQueryParams())
	api.GET("/stats", h.GetStats)
	api.GET("/configs/:user", h.GetUserConfigs)
	api.POST("/configs", h.CreateConfig)
	api.PATCH("/configs/:id", h.UpdateConfigActive)
	api.DELETE("/configs/:id", h.DeleteConfig)
	api.GET("/outcomes/:user", h.GetUserOutcomes)
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetStats returns monitor and mirror counters.
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"monitor": h.monitor.Stats(),
		"mirror":  h.engine.Stats(),
	})
}

// GetUserConfigs lists a user's copy-trade subscriptions.
func (h *Handler) GetUserConfigs(c *gin.Context) {
	userID := c.Param("user")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user required"})
		return
	}

	configs, err := h.store.ListConfigsByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load configs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"configs": configs,
		"count":   len(configs),
	})
}

type createConfigRequest struct {
	UserID         string  `json:"user_id" binding:"required"`
	TargetWallet   string  `json:"target_wallet" binding:"required"`
	MaxWeiPerTrade string  `json:"max_wei_per_trade"`
	SlippagePct    float64 `json:"slippage_pct"`
	SandboxMode    bool    `json:"sandbox_mode"`
	SellPolicy     string  `json:"sell_policy"`
}

// CreateConfig registers a follower and starts monitoring the target.
func (h *Handler) CreateConfig(c *gin.Context) {
	var req createConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	target := utils.NormalizeAddress(req.TargetWallet)
	if !middleware.IsValidEthAddress(target) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target wallet"})
		return
	}

	maxWei := big.NewInt(0)
	if req.MaxWeiPerTrade != "" {
		v, ok := new(big.Int).SetString(req.MaxWeiPerTrade, 10)
		if !ok || v.Sign() < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid max_wei_per_trade"})
			return
		}
		maxWei = v
	}

	cfg := &models.CopyTradeConfig{
		UserID:         req.UserID,
		TargetWallet:   target,
		MaxWeiPerTrade: maxWei,
		SlippagePct:    req.SlippagePct,
		Active:         true,
		SandboxMode:    req.SandboxMode,
		SellPolicy:     models.SellPolicy(req.SellPolicy),
	}

	saved, err := h.engine.AddFollower(c.Request.Context(), cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save config"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"config": saved})
}

type updateConfigRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// UpdateConfigActive pauses or resumes a follower. Pausing the last
// active follower of a target also stops monitoring that target.
func (h *Handler) UpdateConfigActive(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid config id"})
		return
	}

	var req updateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "active required"})
		return
	}

	if err := h.engine.SetFollowerActive(c.Request.Context(), id, *req.Active); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "config not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update config"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "active": *req.Active})
}

// DeleteConfig removes a follower and stops monitoring the target if
// it was the last one.
func (h *Handler) DeleteConfig(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid config id"})
		return
	}

	if err := h.engine.RemoveFollower(c.Request.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "config not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete config"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// GetUserOutcomes lists a user's recent mirror attempts.
func (h *Handler) GetUserOutcomes(c *gin.Context) {
	userID := c.Param("user")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user required"})
		return
	}

	limit := 50
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= 500 {
		limit = l
	}

	outcomes, err := h.store.ListOutcomesByUser(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load outcomes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"outcomes": outcomes,
		"count":    len(outcomes),
	})
}

package main

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"teenpatti-lite/apps/server/internal/auth"
	"teenpatti-lite/apps/server/internal/config"
	"teenpatti-lite/apps/server/internal/gateway"
	"teenpatti-lite/apps/server/internal/registry"
	"teenpatti-lite/apps/server/internal/room"
	"teenpatti-lite/apps/server/internal/store"
	"teenpatti-lite/teenpatti/bot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Server] Failed to load config: %v", err)
	}

	authService, err := auth.NewServiceFromEnv(cfg.AuthMode)
	if err != nil {
		log.Fatalf("[Server] Failed to init auth service: %v", err)
	}
	defer authService.Close()

	storeService, storeMode, err := store.NewServiceFromEnv(cfg.StorageMode)
	if err != nil {
		log.Fatalf("[Server] Failed to init store service: %v", err)
	}
	defer storeService.Close()

	bots := bot.NewManager(nil)
	gw := gateway.New(authService, cfg.DefaultChips, cfg.BotChips)
	reg := registry.New(cfg.TableConfig(), cfg.MaxGames, room.Deps{
		Broadcast: gw.PlayerBroadcast,
		Store:     storeService,
		Bots:      bots,
		BotFill:   cfg.BotFill,
		BotChips:  cfg.BotChips,
	})
	gw.BindRegistry(reg)
	reg.StartSweeper(time.Minute)
	defer reg.Close()

	router := gin.Default()
	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/ws", gw.HandleWebSocket)

	auth.NewHTTPHandler(authService).RegisterRoutes(router)

	api := &apiHandler{
		cfg:      cfg,
		auth:     authService,
		registry: reg,
		store:    storeService,
	}
	api.registerRoutes(router)

	log.Printf("[Server] Auth mode: %s", cfg.AuthMode)
	log.Printf("[Server] Store mode: %s", storeMode)
	log.Printf("[Server] Listening on %s", cfg.ListenAddr)
	if err := router.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("[Server] Failed to start: %v", err)
	}
}

// apiHandler serves the REST surface around games: creation, listings,
// per-viewer state and round history.
type apiHandler struct {
	cfg      config.Config
	auth     auth.Service
	registry *registry.Registry
	store    store.Service
}

type createGameRequest struct {
	MaxPlayers int `json:"maxPlayers"`
}

func (h *apiHandler) registerRoutes(router gin.IRouter) {
	games := router.Group("/api/games")
	games.POST("", h.handleCreate)
	games.GET("", h.handleList)
	games.GET("/:id", h.handleState)
	games.GET("/:id/rounds", h.handleRounds)
	games.GET("/:id/rounds/:round/actions", h.handleRoundActions)
	games.GET("/:id/rounds/:round/hands", h.handleRoundHands)

	admin := router.Group("/api/admin", h.requireAdmin)
	admin.DELETE("/games/:id", h.handleRemove)
	admin.POST("/games/:id/capacity", h.handleCapacity)
}

func (h *apiHandler) handleCreate(c *gin.Context) {
	if _, _, ok := h.viewer(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
		return
	}

	var req createGameRequest
	_ = c.ShouldBindJSON(&req)

	rm, err := h.registry.Create(req.MaxPlayers)
	if err != nil {
		if err == registry.ErrCapacity {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server at capacity"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"gameId": rm.ID})
}

func (h *apiHandler) handleList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"games": h.registry.List()})
}

// handleState returns the game state redacted for the caller, so a polling
// client sees exactly what its websocket would.
func (h *apiHandler) handleState(c *gin.Context) {
	playerID, _, ok := h.viewer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
		return
	}

	rm, err := h.registry.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
		return
	}

	c.JSON(http.StatusOK, rm.SnapshotFor(playerID))
}

func (h *apiHandler) handleRounds(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}

	rounds, err := h.store.ListRecentRounds(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rounds": rounds})
}

func (h *apiHandler) handleRoundActions(c *gin.Context) {
	round, err := strconv.Atoi(c.Param("round"))
	if err != nil || round <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid round"})
		return
	}

	actions, err := h.store.GetRoundActions(c.Request.Context(), c.Param("id"), round)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": actions})
}

// handleRoundHands returns the archived showdown hands of a finished round.
func (h *apiHandler) handleRoundHands(c *gin.Context) {
	round, err := strconv.Atoi(c.Param("round"))
	if err != nil || round <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid round"})
		return
	}

	hands, err := h.store.GetRoundHands(c.Request.Context(), c.Param("id"), round)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"hands": hands})
}

func (h *apiHandler) handleRemove(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.registry.Get(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
		return
	}
	h.registry.Remove(id)
	c.Status(http.StatusNoContent)
}

type capacityRequest struct {
	MaxPlayers int `json:"maxPlayers"`
}

// handleCapacity shrinks or grows a live table. The engine compacts seats
// humans-first and evicts excess bots; shrinking below the human count fails.
func (h *apiHandler) handleCapacity(c *gin.Context) {
	var req capacityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.MaxPlayers <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "maxPlayers must be > 0"})
		return
	}

	rm, err := h.registry.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
		return
	}

	if err := rm.SubmitEvent(room.Event{Type: room.EventResize, MaxPlayers: req.MaxPlayers}); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rm.SnapshotFor(""))
}

func (h *apiHandler) requireAdmin(c *gin.Context) {
	if h.cfg.AdminToken == "" {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin endpoints disabled"})
		return
	}
	if auth.BearerToken(c.GetHeader("Authorization")) != h.cfg.AdminToken {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin token"})
		return
	}
	c.Next()
}

// viewer resolves the caller's session into the player id used at tables.
func (h *apiHandler) viewer(c *gin.Context) (playerID, name string, ok bool) {
	token := auth.BearerToken(c.GetHeader("Authorization"))
	if token == "" {
		token = c.Query("token")
	}
	accountID, name, ok := h.auth.ResolveSession(token)
	if !ok {
		return "", "", false
	}
	return fmt.Sprintf("u_%d", accountID), name, true
}

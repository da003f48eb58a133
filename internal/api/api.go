package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/chasegame/chase/internal/config"
	"github.com/chasegame/chase/internal/game"
	"github.com/chasegame/chase/internal/geo"
	"github.com/chasegame/chase/internal/sched"
	"github.com/chasegame/chase/internal/shop"
	"github.com/chasegame/chase/internal/store"
	"github.com/chasegame/chase/internal/track"
)

// Server exposes the Gamemaster setup surface plus HTTP variants of the two
// client commands (report-location, buy) for clients without a socket.
type Server struct {
	cfg     config.Config
	store   store.Store
	tracker *track.Tracker
	shop    *shop.Service
	sched   *sched.Scheduler
}

func New(cfg config.Config, st store.Store, tracker *track.Tracker, sh *shop.Service, sc *sched.Scheduler) *Server {
	return &Server{cfg: cfg, store: st, tracker: tracker, shop: sh, sched: sc}
}

func (s *Server) Register(r *gin.Engine) {
	api := r.Group("/api")

	api.POST("/games", s.createGame)
	api.GET("/games/:id", s.getGame)
	api.GET("/games/:id/wallets", s.gameWallets)
	api.POST("/games/:id/start", s.startGame)
	api.PUT("/games/:id/field", s.setField)
	api.PUT("/games/:id/goal", s.setGoal)
	api.PUT("/games/:id/timing", s.setTiming)
	api.PUT("/games/:id/shop", s.setShop)

	api.POST("/players", s.createPlayer)
	api.GET("/players/:id", s.getPlayer)
	api.POST("/players/:id/join", s.joinGame)
	api.POST("/players/:id/role", s.assignRole)
	api.POST("/players/:id/leave", s.leaveGame)
	api.POST("/players/:id/location", s.reportLocation)
	api.POST("/players/:id/buy", s.buy)
}

func (s *Server) createGame(c *gin.Context) {
	var req struct {
		Name         string `json:"name" binding:"required"`
		GamemasterID string `json:"gamemasterId" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	gm, err := s.store.Player(req.GamemasterID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "gamemaster_not_found"})
		return
	}
	g := s.cfg.NewGame()
	g.ID = uuid.NewString()
	g.Name = req.Name
	g.GamemasterID = gm.ID
	g.CreatedAt = time.Now().UTC()
	if err := s.store.CreateGame(&g); err != nil {
		s.fail(c, err)
		return
	}
	gm.Role = game.RoleGamemaster
	gm.GameID = g.ID
	if err := s.store.SavePlayer(gm); err != nil {
		s.fail(c, err)
		return
	}
	log.Info().Str("game", g.ID).Str("gamemaster", gm.ID).Msg("game created")
	c.JSON(http.StatusOK, g)
}

func (s *Server) getGame(c *gin.Context) {
	g, err := s.store.Game(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (s *Server) gameWallets(c *gin.Context) {
	wallets, err := s.store.WalletsForGame(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallets": wallets})
}

func (s *Server) startGame(c *gin.Context) {
	if err := s.sched.StartGame(c.Param("id")); err != nil {
		if errors.Is(err, sched.ErrNotStartable) {
			c.JSON(http.StatusConflict, gin.H{"error": "not_startable", "message": err.Error()})
			return
		}
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) setField(c *gin.Context) {
	var req struct {
		Corners [4]geo.Point `json:"corners" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	s.updateCreatedGame(c, func(g *game.Game) { g.Field = req.Corners })
}

func (s *Server) setGoal(c *gin.Context) {
	var req struct {
		Points [2]geo.Point `json:"points" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	s.updateCreatedGame(c, func(g *game.Game) { g.Goal = req.Points })
}

func (s *Server) setTiming(c *gin.Context) {
	var req struct {
		DurationMin  int `json:"durationMin" binding:"required"`
		HeadstartMin int `json:"headstartMin" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil || req.DurationMin <= 0 || req.HeadstartMin < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	s.updateCreatedGame(c, func(g *game.Game) {
		g.Duration = time.Duration(req.DurationMin) * time.Minute
		g.Headstart = time.Duration(req.HeadstartMin) * time.Minute
	})
}

func (s *Server) setShop(c *gin.Context) {
	var req struct {
		Shop         *game.ShopTable `json:"shop"`
		CooldownMin  *int            `json:"cooldownMin"`
		RunnerBudget *int            `json:"runnerBudget"`
		HunterBudget *int            `json:"hunterBudget"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	s.updateCreatedGame(c, func(g *game.Game) {
		if req.Shop != nil {
			g.Shop = *req.Shop
		}
		if req.CooldownMin != nil {
			g.ShopCooldown = time.Duration(*req.CooldownMin) * time.Minute
		}
		if req.RunnerBudget != nil {
			g.RunnerBudget = *req.RunnerBudget
		}
		if req.HunterBudget != nil {
			g.HunterBudget = *req.HunterBudget
		}
	})
}

// updateCreatedGame applies a setup mutation; setup is only allowed before
// the game started.
func (s *Server) updateCreatedGame(c *gin.Context, mutate func(*game.Game)) {
	g, err := s.store.Game(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if g.Status != game.StatusCreated {
		c.JSON(http.StatusConflict, gin.H{"error": "game_already_started"})
		return
	}
	mutate(g)
	if err := s.store.UpdateGame(g); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (s *Server) createPlayer(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	p := &game.Player{ID: uuid.NewString(), Name: req.Name, Role: game.RoleNone}
	if err := s.store.SavePlayer(p); err != nil {
		s.fail(c, err)
		return
	}
	log.Info().Str("player", p.ID).Str("name", p.Name).Msg("player registered")
	c.JSON(http.StatusOK, p)
}

func (s *Server) getPlayer(c *gin.Context) {
	p, err := s.store.Player(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) joinGame(c *gin.Context) {
	var req struct {
		GameID string `json:"gameId" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	p, err := s.store.Player(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	g, err := s.store.Game(req.GameID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if g.Status == game.StatusEnded {
		c.JSON(http.StatusConflict, gin.H{"error": "game_ended"})
		return
	}
	p.GameID = g.ID
	if err := s.store.SavePlayer(p); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) assignRole(c *gin.Context) {
	var req struct {
		Role game.Role `json:"role" binding:"required"`
		Team game.Team `json:"team"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	switch req.Role {
	case game.RoleRunner, game.RoleSpectator:
		if req.Team != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "team_only_for_hunters"})
			return
		}
	case game.RoleHunter:
		if !validTeam(req.Team) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_team"})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_role"})
		return
	}
	p, err := s.store.Player(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if p.GameID == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "not_in_a_game"})
		return
	}
	p.Role = req.Role
	p.Team = req.Team
	if err := s.store.SavePlayer(p); err != nil {
		s.fail(c, err)
		return
	}
	log.Info().Str("player", p.ID).Str("role", string(p.Role)).Str("team", string(p.Team)).Msg("role assigned")
	c.JSON(http.StatusOK, p)
}

func (s *Server) leaveGame(c *gin.Context) {
	p, err := s.store.Player(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	p.GameID = ""
	p.Role = game.RoleNone
	p.Team = ""
	if err := s.store.SavePlayer(p); err != nil {
		s.fail(c, err)
		return
	}
	s.tracker.Forget(p.ID)
	c.JSON(http.StatusOK, p)
}

func (s *Server) reportLocation(c *gin.Context) {
	var req struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	triggered, err := s.tracker.Report(c.Param("id"), geo.Point{Lat: req.Lat, Lon: req.Lon})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "triggered": triggered})
}

func (s *Server) buy(c *gin.Context) {
	var req struct {
		Slot int `json:"slot" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	receipt, err := s.shop.AttemptPurchase(c.Param("id"), req.Slot)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		// validation failures are user-visible, not server errors
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "purchase_rejected", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (s *Server) fail(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
}

func validTeam(t game.Team) bool {
	for _, known := range game.Teams {
		if t == known {
			return true
		}
	}
	return false
}

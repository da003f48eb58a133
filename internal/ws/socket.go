package ws

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog/log"

	"github.com/chasegame/chase/internal/geo"
	"github.com/chasegame/chase/internal/shop"
	"github.com/chasegame/chase/internal/store"
	"github.com/chasegame/chase/internal/track"
)

// ConnCtx binds a socket to a player after player:hello.
type ConnCtx struct {
	PlayerID string
}

// Server is the realtime player transport: it takes location reports and
// purchase commands, and doubles as the Notifier the core fans out through.
type Server struct {
	store   store.Store
	tracker *track.Tracker
	shop    *shop.Service

	mu    sync.RWMutex
	conns map[string]socketio.Conn // playerID -> conn
}

func New(st store.Store) *Server {
	return &Server{
		store: st,
		conns: make(map[string]socketio.Conn),
	}
}

// SetHandlers wires the command handlers. The tracker and shop take the
// server as their Notifier, so they are attached after construction.
func (srv *Server) SetHandlers(tracker *track.Tracker, sh *shop.Service) {
	srv.tracker = tracker
	srv.shop = sh
}

// Mount attaches the Socket.IO server with handlers to the given Gin engine.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)

	io.OnConnect("/", func(s socketio.Conn) error {
		s.SetContext(&ConnCtx{})
		log.Info().Str("sid", s.ID()).Msg("socket connected")
		return nil
	})

	// player:hello
	io.OnEvent("/", "player:hello", func(s socketio.Conn, payload struct {
		PlayerID string `json:"playerId"`
	}) map[string]any {
		p, err := srv.store.Player(payload.PlayerID)
		if err != nil {
			return srv.err(s, "player_not_found", "Player not found, register first")
		}
		s.SetContext(&ConnCtx{PlayerID: p.ID})
		srv.bind(p.ID, s)
		log.Info().Str("sid", s.ID()).Str("player", p.ID).Msg("player:hello")
		return map[string]any{"ok": true, "playerId": p.ID, "role": string(p.Role)}
	})

	// player:location
	io.OnEvent("/", "player:location", func(s socketio.Conn, payload struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	}) map[string]any {
		ctx := s.Context().(*ConnCtx)
		if ctx.PlayerID == "" {
			return srv.err(s, "not_authenticated", "Send player:hello first")
		}
		triggered, err := srv.tracker.Report(ctx.PlayerID, geo.Point{Lat: payload.Lat, Lon: payload.Lon})
		if err != nil {
			log.Error().Err(err).Str("player", ctx.PlayerID).Msg("location report failed")
			return srv.err(s, "report_failed", "Could not process the location report")
		}
		log.Debug().Str("player", ctx.PlayerID).Bool("triggered", triggered).Msg("player:location")
		return map[string]any{"ok": true, "triggered": triggered}
	})

	// shop:buy
	io.OnEvent("/", "shop:buy", func(s socketio.Conn, payload struct {
		Slot int `json:"slot"`
	}) map[string]any {
		ctx := s.Context().(*ConnCtx)
		if ctx.PlayerID == "" {
			return srv.err(s, "not_authenticated", "Send player:hello first")
		}
		receipt, err := srv.shop.AttemptPurchase(ctx.PlayerID, payload.Slot)
		if err != nil {
			return srv.err(s, "purchase_rejected", err.Error())
		}
		log.Info().Str("player", ctx.PlayerID).Int("slot", payload.Slot).Msg("shop:buy")
		return map[string]any{
			"ok":             true,
			"gadget":         receipt.Gadget,
			"price":          receipt.Price,
			"newBudget":      receipt.NewBudget,
			"remainingStock": receipt.RemainingStock,
			"cooldownSec":    int(receipt.Cooldown.Seconds()),
		}
	})

	io.OnError("/", func(s socketio.Conn, e error) {
		log.Error().Str("sid", s.ID()).Err(e).Msg("socket error")
	})
	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		if ctx, ok := s.Context().(*ConnCtx); ok && ctx.PlayerID != "" {
			srv.unbind(ctx.PlayerID, s)
			srv.tracker.Forget(ctx.PlayerID)
		}
		log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
	})

	go io.Serve()

	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))
	r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Status(http.StatusNoContent)
	})

	return io
}

// SendText implements notify.Notifier. A player without a live socket counts
// as a failed delivery; the caller logs and moves on.
func (srv *Server) SendText(recipient, text string) error {
	c, err := srv.conn(recipient)
	if err != nil {
		return err
	}
	c.Emit("message", map[string]any{"text": text})
	return nil
}

func (srv *Server) SendImage(recipient string, image []byte, caption string) error {
	c, err := srv.conn(recipient)
	if err != nil {
		return err
	}
	c.Emit("image", map[string]any{
		"data":    base64.StdEncoding.EncodeToString(image),
		"caption": caption,
	})
	return nil
}

func (srv *Server) SendDocument(recipient string, doc []byte, filename, caption string) error {
	c, err := srv.conn(recipient)
	if err != nil {
		return err
	}
	c.Emit("document", map[string]any{
		"data":     base64.StdEncoding.EncodeToString(doc),
		"filename": filename,
		"caption":  caption,
	})
	return nil
}

var errNotConnected = errors.New("player has no live connection")

func (srv *Server) conn(playerID string) (socketio.Conn, error) {
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	c, ok := srv.conns[playerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNotConnected, playerID)
	}
	return c, nil
}

func (srv *Server) bind(playerID string, c socketio.Conn) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.conns[playerID] = c
}

func (srv *Server) unbind(playerID string, c socketio.Conn) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if cur, ok := srv.conns[playerID]; ok && cur.ID() == c.ID() {
		delete(srv.conns, playerID)
	}
}

func (srv *Server) err(s socketio.Conn, code, msg string) map[string]any {
	log.Info().Str("sid", s.ID()).Str("code", code).Str("msg", msg).Msg("socket request rejected")
	return map[string]any{"ok": false, "error": code, "message": msg}
}

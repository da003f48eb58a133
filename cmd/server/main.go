package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"

	"github.com/chasegame/chase/internal/api"
	"github.com/chasegame/chase/internal/config"
	"github.com/chasegame/chase/internal/sched"
	"github.com/chasegame/chase/internal/shop"
	"github.com/chasegame/chase/internal/store"
	"github.com/chasegame/chase/internal/track"
	"github.com/chasegame/chase/internal/ws"
)

const version = "v1.0.0-dev"

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
		storeFlag   = flag.String("store", "sqlite", "Record store: sqlite or memory")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`Chase - GPS pursuit game server

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 8080 or PORT env var)
  --store STORE   Record store: sqlite (default) or memory

Environment Variables:
  PORT                      Port to listen on (default: 8080)
  DB_PATH                   SQLite database file (default: ./chase.db)
  TICK_INTERVAL_SEC         Scheduler tick interval (default: 5)
  STALE_CHECK_INTERVAL_SEC  Staleness check cadence (default: 60)
  LOCATION_MAX_AGE_MIN      Max age of a live location (default: 5)
  GAME_DURATION_MIN         Default game duration (default: 120)
  RUNNER_HEADSTART_MIN      Default runner headstart (default: 30)
  SHOP_COOLDOWN_MIN         Default purchase cooldown (default: 15)
  RUNNER_START_BUDGET       Default runner wallet budget (default: 500)
  HUNTER_START_BUDGET       Default hunter team wallet budget (default: 1000)
  RUNNER_SHOP_PRICES        Four comma-separated slot prices
  RUNNER_SHOP_AMOUNTS       Four comma-separated slot stocks
  HUNTER_SHOP_PRICES        Four comma-separated slot prices
  HUNTER_SHOP_AMOUNTS       Four comma-separated slot stocks
  TRAP_RANGE_M              Trap geofence radius (default: 50)
  WATCHTOWER_RANGE_M        Watchtower geofence radius (default: 300)
`, os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("Chase %s\n", version)
		return
	}

	cfg := config.FromEnv()
	port := *portFlag
	if port == "" {
		port = cfg.Port
	}

	// zerolog setup (human-friendly console)
	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	zerologlog.Logger = zerologlog.Output(cw)

	var st store.Store
	switch *storeFlag {
	case "memory":
		st = store.NewMemory()
		zerologlog.Warn().Msg("using in-memory store, records will not survive a restart")
	case "sqlite":
		db, err := store.OpenSQLite(cfg.DBPath)
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()
		st = db
	default:
		log.Fatalf("unknown store %q", *storeFlag)
	}

	// Gin setup with custom logger (skip /socket.io noise)
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		status := c.Writer.Status()
		dur := time.Since(start)
		zerologlog.Info().Str("path", path).Int("status", status).Dur("dur", dur).Msg("http")
	})

	// Healthcheck
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	// Core wiring: the socket hub is both the command intake and the Notifier.
	sock := ws.New(st)
	tracker := track.New(st, sock)
	shopSvc := shop.NewService(st, sock)
	sock.SetHandlers(tracker, shopSvc)
	io := sock.Mount(r)
	defer io.Close()

	scheduler := sched.New(st, sock, shopSvc, cfg.TickInterval, cfg.StaleCheckInterval, cfg.MaxLocationAge)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go scheduler.Run(ctx)

	api.New(cfg, st, tracker, shopSvc, scheduler).Register(r)

	log.Printf("listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}

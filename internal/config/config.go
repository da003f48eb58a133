package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chasegame/chase/internal/game"
)

// Config carries the process settings and the defaults new games start with.
// Gamemasters can override the game-level values per game.
type Config struct {
	Port   string
	DBPath string

	TickInterval       time.Duration
	StaleCheckInterval time.Duration
	MaxLocationAge     time.Duration

	GameDuration  time.Duration
	Headstart     time.Duration
	ShopCooldown  time.Duration
	RunnerBudget  int
	HunterBudget  int
	RunnerPrices  [game.SlotCount]int
	RunnerAmounts [game.SlotCount]int
	HunterPrices  [game.SlotCount]int
	HunterAmounts [game.SlotCount]int

	TrapRadius       float64
	WatchtowerRadius float64
}

func FromEnv() Config {
	c := Config{}
	c.Port = getenv("PORT", "8080")
	c.DBPath = getenv("DB_PATH", "./chase.db")

	c.TickInterval = time.Duration(getint("TICK_INTERVAL_SEC", 5)) * time.Second
	c.StaleCheckInterval = time.Duration(getint("STALE_CHECK_INTERVAL_SEC", 60)) * time.Second
	c.MaxLocationAge = time.Duration(getint("LOCATION_MAX_AGE_MIN", 5)) * time.Minute

	c.GameDuration = time.Duration(getint("GAME_DURATION_MIN", 120)) * time.Minute
	c.Headstart = time.Duration(getint("RUNNER_HEADSTART_MIN", 30)) * time.Minute
	c.ShopCooldown = time.Duration(getint("SHOP_COOLDOWN_MIN", 15)) * time.Minute
	c.RunnerBudget = getint("RUNNER_START_BUDGET", 500)
	c.HunterBudget = getint("HUNTER_START_BUDGET", 1000)
	c.RunnerPrices = getslots("RUNNER_SHOP_PRICES", [game.SlotCount]int{100, 150, 200, 300})
	c.RunnerAmounts = getslots("RUNNER_SHOP_AMOUNTS", [game.SlotCount]int{3, 3, 1, 1})
	c.HunterPrices = getslots("HUNTER_SHOP_PRICES", [game.SlotCount]int{150, 250, 200, 300})
	c.HunterAmounts = getslots("HUNTER_SHOP_AMOUNTS", [game.SlotCount]int{5, 3, 3, 1})

	c.TrapRadius = getfloat("TRAP_RANGE_M", 50)
	c.WatchtowerRadius = getfloat("WATCHTOWER_RANGE_M", 300)
	return c
}

// NewGame returns a game seeded with the configured defaults.
func (c Config) NewGame() game.Game {
	g := game.Game{
		Status:           game.StatusCreated,
		Duration:         c.GameDuration,
		Headstart:        c.Headstart,
		ShopCooldown:     c.ShopCooldown,
		RunnerBudget:     c.RunnerBudget,
		HunterBudget:     c.HunterBudget,
		TrapRadius:       c.TrapRadius,
		WatchtowerRadius: c.WatchtowerRadius,
	}
	for i := 0; i < game.SlotCount; i++ {
		g.Shop.Runner[i] = game.SlotConfig{Price: c.RunnerPrices[i], Stock: c.RunnerAmounts[i]}
		g.Shop.Hunter[i] = game.SlotConfig{Price: c.HunterPrices[i], Stock: c.HunterAmounts[i]}
	}
	return g
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// getslots parses a comma-separated list of four integers, e.g. "100,150,200,300".
func getslots(k string, def [game.SlotCount]int) [game.SlotCount]int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	if len(parts) != game.SlotCount {
		return def
	}
	out := [game.SlotCount]int{}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return def
		}
		out[i] = n
	}
	return out
}

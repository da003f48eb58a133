package game

import (
	"time"

	"github.com/chasegame/chase/internal/geo"
)

// Role is a player's role within a game.
type Role string

const (
	RoleNone       Role = "none"
	RoleRunner     Role = "runner"
	RoleHunter     Role = "hunter"
	RoleGamemaster Role = "gamemaster"
	RoleSpectator  Role = "spectator"
)

// Status is a game's lifecycle phase. Transitions are forward-only:
// Created -> Headstart -> Running -> Ended.
type Status string

const (
	StatusCreated   Status = "created"
	StatusHeadstart Status = "headstart"
	StatusRunning   Status = "running"
	StatusEnded     Status = "ended"
)

// Active reports whether the game is in a phase where play happens.
func (s Status) Active() bool {
	return s == StatusHeadstart || s == StatusRunning
}

// POIType classifies a point of interest. Trap and Watchtower are placed
// gadgets with a geofence radius; RunnerTrap, RunnerWatchtower and RadarPing
// are derived audit records and carry no geofence.
type POIType string

const (
	POITrap             POIType = "trap"
	POIWatchtower       POIType = "watchtower"
	POIRunnerTrap       POIType = "runnertrap"
	POIRunnerWatchtower POIType = "runnerwatchtower"
	POIRadarPing        POIType = "radarping"
)

// Team is a hunter team color.
type Team string

const (
	TeamRed    Team = "red"
	TeamBlue   Team = "blue"
	TeamGreen  Team = "green"
	TeamYellow Team = "yellow"
)

// Teams is the fixed palette hunters can be assigned to.
var Teams = []Team{TeamRed, TeamBlue, TeamGreen, TeamYellow}

// WalletScope is the unit that owns a budget: an individual runner or a
// hunter team.
type WalletScope string

const (
	ScopeRunner WalletScope = "runner"
	ScopeHunter WalletScope = "hunter"
)

// SlotCount is the number of shop slots per role.
const SlotCount = 4

// SlotConfig is the price and initial stock of one shop slot.
type SlotConfig struct {
	Price int `json:"price"`
	Stock int `json:"stock"`
}

// ShopTable is the per-role price/stock table of a game.
type ShopTable struct {
	Runner [SlotCount]SlotConfig `json:"runner"`
	Hunter [SlotCount]SlotConfig `json:"hunter"`
}

// Slots returns the slot table for the given role, or false for roles
// without a shop.
func (t ShopTable) Slots(role Role) ([SlotCount]SlotConfig, bool) {
	switch role {
	case RoleRunner:
		return t.Runner, true
	case RoleHunter:
		return t.Hunter, true
	default:
		return [SlotCount]SlotConfig{}, false
	}
}

type Game struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	GamemasterID string        `json:"gamemasterId"`
	Status       Status        `json:"status"`
	StartTime    *time.Time    `json:"startTime,omitempty"`
	Duration     time.Duration `json:"duration"`
	Headstart    time.Duration `json:"headstart"`

	// Field is the playing field polygon (four corners), Goal the goal line.
	Field [4]geo.Point `json:"field"`
	Goal  [2]geo.Point `json:"goal"`

	Shop         ShopTable     `json:"shop"`
	ShopCooldown time.Duration `json:"shopCooldown"`
	RunnerBudget int           `json:"runnerBudget"`
	HunterBudget int           `json:"hunterBudget"`

	TrapRadius       float64 `json:"trapRadius"`       // meters
	WatchtowerRadius float64 `json:"watchtowerRadius"` // meters

	CreatedAt time.Time `json:"createdAt"`
}

type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	Team   Team   `json:"team,omitempty"`   // hunters only
	GameID string `json:"gameId,omitempty"` // empty when not in a game

	Position   *geo.Point `json:"position,omitempty"`
	PositionAt *time.Time `json:"positionAt,omitempty"`
}

// HasPosition reports whether the player shared a live location.
func (p *Player) HasPosition() bool {
	return p.Position != nil && p.PositionAt != nil
}

// POI is an append-only positioned record: a placed gadget or a derived
// trail marker. Radius is the geofence for Trap/Watchtower; for RadarPing it
// stores the computed distance to the pinged player instead.
type POI struct {
	ID        string    `json:"id"`
	GameID    string    `json:"gameId"`
	Type      POIType   `json:"type"`
	Position  geo.Point `json:"position"`
	Radius    float64   `json:"radius"`
	Team      Team      `json:"team,omitempty"` // empty for runner radar pings
	CreatorID string    `json:"creatorId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Wallet is the budget of one economic scope in one game. Stock holds the
// remaining purchases per shop slot.
type Wallet struct {
	GameID       string         `json:"gameId"`
	Scope        WalletScope    `json:"scope"`
	ScopeID      string         `json:"scopeId"` // player id or team name
	Budget       int            `json:"budget"`
	LastPurchase *time.Time     `json:"lastPurchase,omitempty"`
	Stock        [SlotCount]int `json:"stock"`
}

package track

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/chasegame/chase/internal/game"
	"github.com/chasegame/chase/internal/geo"
	"github.com/chasegame/chase/internal/notify"
	"github.com/chasegame/chase/internal/store"
)

// Tracker converts location reports into edge-triggered geofence events.
// Positions are recorded for every participant; only Runners are evaluated
// against Trap and Watchtower geofences.
type Tracker struct {
	store    store.Store
	notifier notify.Notifier
	state    *interactionState
	now      func() time.Time
}

func New(st store.Store, n notify.Notifier) *Tracker {
	return &Tracker{
		store:    st,
		notifier: n,
		state:    newInteractionState(),
		now:      time.Now,
	}
}

// Report records the player's position and evaluates it against the
// geofences of their game. It returns whether at least one new interaction
// fired (telemetry only).
func (t *Tracker) Report(playerID string, pos geo.Point) (bool, error) {
	p, err := t.store.Player(playerID)
	if err != nil {
		return false, fmt.Errorf("load player %s: %w", playerID, err)
	}
	at := t.now()
	p.Position = &pos
	p.PositionAt = &at
	if err := t.store.SavePlayer(p); err != nil {
		return false, fmt.Errorf("save position for %s: %w", playerID, err)
	}
	return t.evaluate(p, pos)
}

// Forget drops transient interaction state for a player, e.g. on leave.
func (t *Tracker) Forget(playerID string) {
	t.state.forget(playerID)
}

func (t *Tracker) evaluate(p *game.Player, pos geo.Point) (bool, error) {
	if p.GameID == "" {
		return false, nil
	}
	if p.Role != game.RoleRunner {
		// hunters, gamemasters and spectators are never caught by gadgets
		return false, nil
	}
	g, err := t.store.Game(p.GameID)
	if err != nil {
		return false, fmt.Errorf("load game %s: %w", p.GameID, err)
	}
	if !g.Status.Active() {
		return false, nil
	}

	fired := false
	inRange := make(map[string]struct{})
	for _, typ := range []game.POIType{game.POITrap, game.POIWatchtower} {
		pois, err := t.store.POIsByType(g.ID, typ)
		if err != nil {
			return fired, fmt.Errorf("load %s pois: %w", typ, err)
		}
		for _, poi := range pois {
			d := geo.Distance(pos, poi.Position)
			if d > poi.Radius {
				continue
			}
			inRange[poi.ID] = struct{}{}
			// mark active before firing so interleaved reports cannot
			// duplicate the enter event
			if !t.state.activate(p.ID, poi.ID) {
				continue
			}
			fired = true
			switch typ {
			case game.POITrap:
				t.trapEntered(p, g, poi, pos, d)
			case game.POIWatchtower:
				t.watchtowerEntered(p, g, poi, pos, d)
			}
		}
	}
	t.state.prune(p.ID, inRange)
	return fired, nil
}

// trapEntered fires on each distinct entry into a trap's radius: the owning
// team and the Gamemaster are notified, the runner is told their position
// leaked, and a RunnerTrap trail marker is appended.
func (t *Tracker) trapEntered(p *game.Player, g *game.Game, poi *game.POI, pos geo.Point, distance float64) {
	log.Info().Str("game", g.ID).Str("runner", p.ID).Str("poi", poi.ID).
		Float64("distance", distance).Msg("trap triggered")

	t.notifyTeam(g, poi.Team, fmt.Sprintf(
		"A runner triggered your trap!\nPosition: %.6f, %.6f\nDistance: %.1fm",
		pos.Lat, pos.Lon, distance))

	t.notifyOne(g.GamemasterID, fmt.Sprintf(
		"Trap triggered!\nRunner: %s (%s)\nTeam: %s\nPosition: %.6f, %.6f\nDistance: %.1fm",
		p.Name, p.ID, poi.Team, pos.Lat, pos.Lon, distance))

	t.notifyOne(p.ID, fmt.Sprintf(
		"You triggered a trap!\nTeam: %s\nDistance: %.1fm\nYour position was revealed to the team.",
		poi.Team, distance))

	t.appendTrail(g.ID, game.POIRunnerTrap, pos, poi.Team, p.ID)
}

// watchtowerEntered mirrors the trap interaction: notifications fire on
// every distinct entry, and a RunnerWatchtower trail marker is appended.
func (t *Tracker) watchtowerEntered(p *game.Player, g *game.Game, poi *game.POI, pos geo.Point, distance float64) {
	log.Info().Str("game", g.ID).Str("runner", p.ID).Str("poi", poi.ID).
		Float64("distance", distance).Msg("watchtower spotted runner")

	t.notifyTeam(g, poi.Team, fmt.Sprintf(
		"A runner is in range of your watchtower!\nPosition: %.6f, %.6f\nDistance: %.1fm",
		pos.Lat, pos.Lon, distance))

	t.notifyOne(g.GamemasterID, fmt.Sprintf(
		"Watchtower spotted a runner!\nRunner: %s (%s)\nTeam: %s\nPosition: %.6f, %.6f\nDistance: %.1fm",
		p.Name, p.ID, poi.Team, pos.Lat, pos.Lon, distance))

	t.notifyOne(p.ID, fmt.Sprintf(
		"A watchtower spotted you!\nTeam: %s\nDistance: %.1fm\nThe team was notified.",
		poi.Team, distance))

	t.appendTrail(g.ID, game.POIRunnerWatchtower, pos, poi.Team, p.ID)
}

func (t *Tracker) appendTrail(gameID string, typ game.POIType, pos geo.Point, team game.Team, creatorID string) {
	poi := &game.POI{
		ID:        uuid.NewString(),
		GameID:    gameID,
		Type:      typ,
		Position:  pos,
		Team:      team,
		CreatorID: creatorID,
		CreatedAt: t.now(),
	}
	if err := t.store.AddPOI(poi); err != nil {
		log.Error().Err(err).Str("game", gameID).Str("type", string(typ)).
			Str("creator", creatorID).Msg("failed to append trail poi")
	}
}

func (t *Tracker) notifyTeam(g *game.Game, team game.Team, text string) {
	members, err := t.store.PlayersByRole(g.ID, game.RoleHunter, team)
	if err != nil {
		log.Error().Err(err).Str("game", g.ID).Str("team", string(team)).
			Msg("failed to load team members")
		return
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	notify.Fanout(t.notifier, ids, text)
}

func (t *Tracker) notifyOne(recipient, text string) {
	if err := t.notifier.SendText(recipient, text); err != nil {
		log.Error().Err(err).Str("recipient", recipient).Msg("notification delivery failed")
	}
}

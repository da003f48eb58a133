package shop

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/chasegame/chase/internal/game"
	"github.com/chasegame/chase/internal/geo"
	"github.com/chasegame/chase/internal/notify"
	"github.com/chasegame/chase/internal/store"
)

// Context carries everything an effect may touch. Effects read positions,
// append POIs and request notifications; they never touch the wallet.
type Context struct {
	Store    store.Store
	Notifier notify.Notifier
	Game     *game.Game
	Actor    *game.Player
	Now      time.Time
}

// Effect is one purchasable gadget behavior. Apply returns nil only when the
// gadget took effect; any error aborts the purchase before settlement.
type Effect interface {
	Name() string
	Apply(ctx *Context) error
}

type effectKey struct {
	Role game.Role
	Slot int
}

// defaultCatalog maps (role, slot) to the gadget behind it. Unimplemented
// slots are explicit entries so a missing gadget is a variant, not a string
// fallthrough.
func defaultCatalog() map[effectKey]Effect {
	return map[effectKey]Effect{
		{game.RoleRunner, 1}: radarPing{name: "Radar Ping", target: game.RoleHunter, discloseDistance: true},
		{game.RoleRunner, 2}: radarPing{name: "Radar Stealth Ping", target: game.RoleHunter, discloseDistance: false},
		{game.RoleRunner, 3}: notImplemented{},
		{game.RoleRunner, 4}: notImplemented{},
		{game.RoleHunter, 1}: placeGadget{name: "Trap", typ: game.POITrap},
		{game.RoleHunter, 2}: placeGadget{name: "Watchtower", typ: game.POIWatchtower},
		{game.RoleHunter, 3}: radarPing{name: "Radar Ping", target: game.RoleRunner, discloseDistance: true},
		{game.RoleHunter, 4}: notImplemented{},
	}
}

// radarPing measures the distance from the actor to every player of the
// target role with a live position, appends one RadarPing POI per target and
// reports the sorted distances. discloseDistance controls whether the pinged
// players learn how far away the sender is.
type radarPing struct {
	name             string
	target           game.Role
	discloseDistance bool
}

func (e radarPing) Name() string { return e.name }

func (e radarPing) Apply(ctx *Context) error {
	if !ctx.Actor.HasPosition() {
		return ErrNoPosition
	}
	origin := *ctx.Actor.Position

	targets, err := ctx.Store.PlayersWithPosition(ctx.Game.ID, e.target)
	if err != nil {
		return fmt.Errorf("load %s positions: %w", e.target, err)
	}

	type hit struct {
		player   *game.Player
		distance float64
	}
	hits := make([]hit, 0, len(targets))
	for _, tgt := range targets {
		d := geo.Distance(origin, *tgt.Position)
		poi := &game.POI{
			ID:        uuid.NewString(),
			GameID:    ctx.Game.ID,
			Type:      game.POIRadarPing,
			Position:  origin,
			Radius:    d, // repurposed: the measured distance, not a geofence
			Team:      ctx.Actor.Team,
			CreatorID: ctx.Actor.ID,
			CreatedAt: ctx.Now,
		}
		if err := ctx.Store.AddPOI(poi); err != nil {
			return fmt.Errorf("record radar ping: %w", err)
		}
		hits = append(hits, hit{player: tgt, distance: d})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].distance < hits[j].distance })

	var b strings.Builder
	fmt.Fprintf(&b, "Radar ping sent!\nSender position: %.6f, %.6f\n", origin.Lat, origin.Lon)
	if len(hits) == 0 {
		fmt.Fprintf(&b, "No %ss with a live position found.", e.target)
	} else {
		fmt.Fprintf(&b, "Distances:\n")
		for i, h := range hits {
			fmt.Fprintf(&b, "%d. %s: %.1fm\n", i+1, e.target, h.distance)
		}
	}
	report := b.String()

	sendOne(ctx.Notifier, ctx.Actor.ID, report)
	sendOne(ctx.Notifier, ctx.Game.GamemasterID, fmt.Sprintf("Radar ping by %s (%s)\n%s", ctx.Actor.Name, ctx.Actor.ID, report))
	if ctx.Actor.Role == game.RoleHunter {
		notifyTeamExcept(ctx, ctx.Actor.Team, ctx.Actor.ID, report)
	}

	for _, h := range hits {
		msg := "You were caught by a radar ping!\n"
		if e.discloseDistance {
			msg += fmt.Sprintf("Distance to the sender: %.1fm\n", h.distance)
		}
		msg += "Someone now knows your approximate position."
		sendOne(ctx.Notifier, h.player.ID, msg)
	}
	return nil
}

// placeGadget drops a Trap or Watchtower POI at the actor's live position,
// owned by the actor's team, with the game-configured radius.
type placeGadget struct {
	name string
	typ  game.POIType
}

func (e placeGadget) Name() string { return e.name }

func (e placeGadget) Apply(ctx *Context) error {
	if !ctx.Actor.HasPosition() {
		return ErrNoPosition
	}
	pos := *ctx.Actor.Position

	radius := ctx.Game.TrapRadius
	if e.typ == game.POIWatchtower {
		radius = ctx.Game.WatchtowerRadius
	}
	poi := &game.POI{
		ID:        uuid.NewString(),
		GameID:    ctx.Game.ID,
		Type:      e.typ,
		Position:  pos,
		Radius:    radius,
		Team:      ctx.Actor.Team,
		CreatorID: ctx.Actor.ID,
		CreatedAt: ctx.Now,
	}
	if err := ctx.Store.AddPOI(poi); err != nil {
		return fmt.Errorf("place %s: %w", e.name, err)
	}

	sendOne(ctx.Notifier, ctx.Actor.ID, fmt.Sprintf(
		"%s placed!\nPosition: %.6f, %.6f\nTeam: %s\nRadius: %.0fm",
		e.name, pos.Lat, pos.Lon, ctx.Actor.Team, radius))
	notifyTeamExcept(ctx, ctx.Actor.Team, ctx.Actor.ID, fmt.Sprintf(
		"%s placed a %s at %.6f, %.6f", ctx.Actor.Name, strings.ToLower(e.name), pos.Lat, pos.Lon))
	return nil
}

// notImplemented is the explicit variant for empty catalog slots. It fails
// before touching position, wallet or POI state.
type notImplemented struct{}

func (notImplemented) Name() string { return "Not implemented" }

func (notImplemented) Apply(ctx *Context) error {
	return ErrNotImplemented
}

func notifyTeamExcept(ctx *Context, team game.Team, exceptID, text string) {
	members, err := ctx.Store.PlayersByRole(ctx.Game.ID, game.RoleHunter, team)
	if err != nil {
		log.Error().Err(err).Str("game", ctx.Game.ID).Str("team", string(team)).
			Msg("failed to load team members")
		return
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		if m.ID == exceptID {
			continue
		}
		ids = append(ids, m.ID)
	}
	notify.Fanout(ctx.Notifier, ids, text)
}

func sendOne(n notify.Notifier, recipient, text string) {
	if err := n.SendText(recipient, text); err != nil {
		log.Error().Err(err).Str("recipient", recipient).Msg("notification delivery failed")
	}
}

package sched

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chasegame/chase/internal/game"
	"github.com/chasegame/chase/internal/notify"
	"github.com/chasegame/chase/internal/store"
)

// WalletProvisioner creates the wallets of a game entering Headstart.
type WalletProvisioner interface {
	ProvisionWallets(g *game.Game) error
}

// Scheduler is the single periodic driver of the process. Every tick it
// records location trails, runs the slower staleness check, and advances
// expired games through the state machine. Per-game and per-notification
// failures are logged and never abort the rest of the tick.
type Scheduler struct {
	store    store.Store
	notifier notify.Notifier
	wallets  WalletProvisioner

	tickInterval   time.Duration
	staleInterval  time.Duration
	maxLocationAge time.Duration

	now            func() time.Time
	lastStaleCheck time.Time
}

func New(st store.Store, n notify.Notifier, wallets WalletProvisioner, tick, staleEvery, maxLocationAge time.Duration) *Scheduler {
	return &Scheduler{
		store:          st,
		notifier:       n,
		wallets:        wallets,
		tickInterval:   tick,
		staleInterval:  staleEvery,
		maxLocationAge: maxLocationAge,
		now:            time.Now,
	}
}

// Run ticks until the context is cancelled. The loop itself never fails;
// cancellation only takes effect between ticks.
func (s *Scheduler) Run(ctx context.Context) {
	log.Info().Dur("interval", s.tickInterval).Msg("scheduler started")
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	now := s.now()
	s.recordLocations(now)

	// staleness runs on its own slower cadence
	staleDue := now.Sub(s.lastStaleCheck) >= s.staleInterval
	if staleDue {
		s.lastStaleCheck = now
	}

	headstart, err := s.store.GamesWithStatus(game.StatusHeadstart)
	if err != nil {
		log.Error().Err(err).Msg("failed to load headstart games")
	}
	for _, g := range headstart {
		if staleDue {
			s.checkStaleLocations(g, now)
		}
		if err := s.expireHeadstart(g, now); err != nil {
			log.Error().Err(err).Str("game", g.ID).Msg("headstart check failed")
		}
	}

	running, err := s.store.GamesWithStatus(game.StatusRunning)
	if err != nil {
		log.Error().Err(err).Msg("failed to load running games")
	}
	for _, g := range running {
		if staleDue {
			s.checkStaleLocations(g, now)
		}
		if err := s.expireRunning(g, now); err != nil {
			log.Error().Err(err).Str("game", g.ID).Msg("duration check failed")
		}
	}
}

// recordLocations appends each positioned participant's latest report to the
// movement trail, for games in Headstart or Running only.
func (s *Scheduler) recordLocations(now time.Time) {
	for _, status := range []game.Status{game.StatusHeadstart, game.StatusRunning} {
		games, err := s.store.GamesWithStatus(status)
		if err != nil {
			log.Error().Err(err).Str("status", string(status)).Msg("failed to load games for trail recording")
			continue
		}
		for _, g := range games {
			players, err := s.store.PlayersInGame(g.ID)
			if err != nil {
				log.Error().Err(err).Str("game", g.ID).Msg("failed to load players for trail recording")
				continue
			}
			for _, p := range players {
				if !p.HasPosition() {
					continue
				}
				if err := s.store.AppendLocation(p.ID, g.ID, *p.Position, now); err != nil {
					log.Error().Err(err).Str("game", g.ID).Str("player", p.ID).Msg("failed to append location")
				}
			}
		}
	}
}

// checkStaleLocations prompts participants whose last report is too old to
// refresh their live location and reports the roster to the Gamemaster.
func (s *Scheduler) checkStaleLocations(g *game.Game, now time.Time) {
	var participants []*game.Player
	for _, role := range []game.Role{game.RoleRunner, game.RoleHunter} {
		players, err := s.store.PlayersByRole(g.ID, role, "")
		if err != nil {
			log.Error().Err(err).Str("game", g.ID).Str("role", string(role)).Msg("failed to load participants")
			continue
		}
		participants = append(participants, players...)
	}

	var stale []string
	maxAgeMin := int(s.maxLocationAge.Minutes())
	for _, p := range participants {
		if p.HasPosition() && now.Sub(*p.PositionAt) <= s.maxLocationAge {
			continue
		}
		stale = append(stale, p.Name)
		s.send(p.ID, fmt.Sprintf(
			"Your location is older than %d minutes. Please enable or refresh your live location!", maxAgeMin))
	}
	if len(stale) > 0 {
		s.send(g.GamemasterID, fmt.Sprintf(
			"The following players have no current location (<%d minutes):\n%s",
			maxAgeMin, strings.Join(stale, "\n")))
	}
}

func (s *Scheduler) expireHeadstart(g *game.Game, now time.Time) error {
	if g.StartTime == nil || now.Sub(*g.StartTime) < g.Headstart {
		return nil
	}
	if err := s.store.SetGameStatus(g.ID, game.StatusRunning); err != nil {
		return fmt.Errorf("set status running: %w", err)
	}
	log.Info().Str("game", g.ID).Msg("headstart over, game running")
	s.broadcastToRole(g, game.RoleHunter, "The headstart is over. The hunt is on!")
	s.broadcastToRole(g, game.RoleRunner, "The hunters are released! The hunt is on!")
	return nil
}

func (s *Scheduler) expireRunning(g *game.Game, now time.Time) error {
	if g.StartTime == nil || now.Sub(*g.StartTime) < g.Duration {
		return nil
	}
	if err := s.store.SetGameStatus(g.ID, game.StatusEnded); err != nil {
		return fmt.Errorf("set status ended: %w", err)
	}
	log.Info().Str("game", g.ID).Msg("game duration elapsed, ended")
	endMsg := "The game is over! Time is up."
	s.broadcastToRole(g, game.RoleRunner, endMsg)
	s.broadcastToRole(g, game.RoleHunter, endMsg)
	s.send(g.GamemasterID, endMsg+"\nPlease run the scoring and the award ceremony now.")
	return nil
}

// ErrNotStartable is returned when a game is asked to start from any phase
// but Created.
var ErrNotStartable = errors.New("game can only be started once, from the created phase")

// StartGame moves a game from Created to Headstart: the start time is set
// once, wallets are provisioned for every runner and hunter team known at
// this moment, and all participants are told the headstart began.
func (s *Scheduler) StartGame(gameID string) error {
	g, err := s.store.Game(gameID)
	if err != nil {
		return fmt.Errorf("load game %s: %w", gameID, err)
	}
	if g.Status != game.StatusCreated {
		return ErrNotStartable
	}
	now := s.now()
	if err := s.store.SetGameStart(gameID, now); err != nil {
		return fmt.Errorf("set start time: %w", err)
	}
	if err := s.store.SetGameStatus(gameID, game.StatusHeadstart); err != nil {
		return fmt.Errorf("set status headstart: %w", err)
	}
	g.Status = game.StatusHeadstart
	g.StartTime = &now
	if err := s.wallets.ProvisionWallets(g); err != nil {
		return fmt.Errorf("provision wallets: %w", err)
	}
	log.Info().Str("game", g.ID).Dur("headstart", g.Headstart).Msg("game started")

	headstartMin := int(g.Headstart.Minutes())
	s.broadcastToRole(g, game.RoleRunner, fmt.Sprintf(
		"The game has started! You have a %d minute headstart. Run!", headstartMin))
	s.broadcastToRole(g, game.RoleHunter, fmt.Sprintf(
		"The game has started. The runners have a %d minute headstart; wait for the release signal.", headstartMin))
	s.send(g.GamemasterID, "Game started. Wallets are provisioned and the headstart is running.")
	return nil
}

func (s *Scheduler) broadcastToRole(g *game.Game, role game.Role, text string) {
	players, err := s.store.PlayersByRole(g.ID, role, "")
	if err != nil {
		log.Error().Err(err).Str("game", g.ID).Str("role", string(role)).Msg("failed to load recipients")
		return
	}
	ids := make([]string, 0, len(players))
	for _, p := range players {
		ids = append(ids, p.ID)
	}
	notify.Fanout(s.notifier, ids, text)
}

func (s *Scheduler) send(recipient, text string) {
	if err := s.notifier.SendText(recipient, text); err != nil {
		log.Error().Err(err).Str("recipient", recipient).Msg("notification delivery failed")
	}
}

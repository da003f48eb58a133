package shop

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chasegame/chase/internal/game"
	"github.com/chasegame/chase/internal/notify"
	"github.com/chasegame/chase/internal/store"
)

// Validation failures are user-visible and non-fatal; the transport layer
// turns them into a reply to the actor.
var (
	ErrNotInGame      = errors.New("you are not in a game")
	ErrGameNotActive  = errors.New("the shop is only available while the game is active")
	ErrNoWalletScope  = errors.New("only runners and hunters with a team can use the shop")
	ErrNoWallet       = errors.New("no wallet exists for you; wallets are created at game start")
	ErrUnknownSlot    = errors.New("slot must be between 1 and 4")
	ErrOutOfStock     = errors.New("this item is sold out")
	ErrNoPosition     = errors.New("a live position is required for this item")
	ErrNotImplemented = errors.New("this item is not implemented yet; nothing was charged")
)

// CooldownError reports how long the actor still has to wait.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("purchase cooldown active, %s remaining", e.Remaining.Round(time.Second))
}

// BudgetError reports an insufficient budget.
type BudgetError struct {
	Price  int
	Budget int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("not enough coins: need %d, have %d", e.Price, e.Budget)
}

// Receipt is returned to the actor after a settled purchase.
type Receipt struct {
	Slot           int           `json:"slot"`
	Gadget         string        `json:"gadget"`
	Price          int           `json:"price"`
	NewBudget      int           `json:"newBudget"`
	RemainingStock int           `json:"remainingStock"`
	Cooldown       time.Duration `json:"cooldown"`
}

// Service is the wallet ledger. Purchases follow a two-phase protocol: the
// gadget effect runs first, and only a successful effect is settled against
// the wallet. A broken or partial effect can therefore never consume budget,
// stock or the cooldown.
type Service struct {
	store    store.Store
	notifier notify.Notifier
	effects  map[effectKey]Effect
	now      func() time.Time
}

func NewService(st store.Store, n notify.Notifier) *Service {
	return &Service{
		store:    st,
		notifier: n,
		effects:  defaultCatalog(),
		now:      time.Now,
	}
}

// AttemptPurchase validates the actor's wallet, runs the slot's gadget
// effect, and settles on success. Validation order: wallet exists, cooldown,
// budget, stock; the first failure wins.
func (s *Service) AttemptPurchase(actorID string, slot int) (*Receipt, error) {
	if slot < 1 || slot > game.SlotCount {
		return nil, ErrUnknownSlot
	}
	actor, err := s.store.Player(actorID)
	if err != nil {
		return nil, fmt.Errorf("load actor %s: %w", actorID, err)
	}
	if actor.GameID == "" {
		return nil, ErrNotInGame
	}
	g, err := s.store.Game(actor.GameID)
	if err != nil {
		return nil, fmt.Errorf("load game %s: %w", actor.GameID, err)
	}
	if !g.Status.Active() {
		return nil, ErrGameNotActive
	}

	scope, scopeID, err := walletScope(actor)
	if err != nil {
		return nil, err
	}
	w, err := s.store.Wallet(g.ID, scope, scopeID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoWallet
	}
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}

	now := s.now()
	if w.LastPurchase != nil {
		if waited := now.Sub(*w.LastPurchase); waited < g.ShopCooldown {
			return nil, &CooldownError{Remaining: g.ShopCooldown - waited}
		}
	}

	slots, _ := g.Shop.Slots(actor.Role)
	price := slots[slot-1].Price
	if w.Budget < price {
		return nil, &BudgetError{Price: price, Budget: w.Budget}
	}
	if w.Stock[slot-1] <= 0 {
		return nil, ErrOutOfStock
	}

	effect := s.effects[effectKey{Role: actor.Role, Slot: slot}]
	if effect == nil {
		effect = notImplemented{}
	}
	ectx := &Context{Store: s.store, Notifier: s.notifier, Game: g, Actor: actor, Now: now}
	if err := effect.Apply(ectx); err != nil {
		log.Info().Str("game", g.ID).Str("actor", actorID).Int("slot", slot).
			Err(err).Msg("gadget effect failed, purchase aborted")
		return nil, err
	}

	if err := s.settle(w, price, slot, now); err != nil {
		return nil, err
	}
	log.Info().Str("game", g.ID).Str("actor", actorID).Int("slot", slot).
		Str("gadget", effect.Name()).Int("price", price).Msg("purchase settled")
	return &Receipt{
		Slot:           slot,
		Gadget:         effect.Name(),
		Price:          price,
		NewBudget:      w.Budget,
		RemainingStock: w.Stock[slot-1],
		Cooldown:       g.ShopCooldown,
	}, nil
}

// settle commits a successful purchase: debit the budget, stamp the
// cooldown, decrement the slot's stock. Invariants (budget >= 0, stock >= 0)
// are rechecked before the write, never clamped.
func (s *Service) settle(w *game.Wallet, price, slot int, now time.Time) error {
	if w.Budget-price < 0 {
		return &BudgetError{Price: price, Budget: w.Budget}
	}
	if w.Stock[slot-1] <= 0 {
		return ErrOutOfStock
	}
	w.Budget -= price
	t := now
	w.LastPurchase = &t
	w.Stock[slot-1]--
	if err := s.store.UpdateWallet(w); err != nil {
		return fmt.Errorf("persist wallet: %w", err)
	}
	return nil
}

// ProvisionWallets creates one wallet per runner and per hunter team for a
// game entering Headstart. Existing wallets are left untouched; wallets are
// never recreated, so participants joining later cannot purchase.
func (s *Service) ProvisionWallets(g *game.Game) error {
	runners, err := s.store.PlayersByRole(g.ID, game.RoleRunner, "")
	if err != nil {
		return fmt.Errorf("load runners: %w", err)
	}
	for _, r := range runners {
		if err := s.createWalletOnce(g, game.ScopeRunner, r.ID, g.RunnerBudget, g.Shop.Runner); err != nil {
			return err
		}
	}
	hunters, err := s.store.PlayersByRole(g.ID, game.RoleHunter, "")
	if err != nil {
		return fmt.Errorf("load hunters: %w", err)
	}
	teams := make(map[game.Team]struct{})
	for _, h := range hunters {
		if h.Team != "" {
			teams[h.Team] = struct{}{}
		}
	}
	for team := range teams {
		if err := s.createWalletOnce(g, game.ScopeHunter, string(team), g.HunterBudget, g.Shop.Hunter); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) createWalletOnce(g *game.Game, scope game.WalletScope, scopeID string, budget int, slots [game.SlotCount]game.SlotConfig) error {
	if _, err := s.store.Wallet(g.ID, scope, scopeID); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("check wallet %s/%s: %w", scope, scopeID, err)
	}
	w := &game.Wallet{GameID: g.ID, Scope: scope, ScopeID: scopeID, Budget: budget}
	for i := range slots {
		w.Stock[i] = slots[i].Stock
	}
	if err := s.store.CreateWallet(w); err != nil {
		return fmt.Errorf("create wallet %s/%s: %w", scope, scopeID, err)
	}
	log.Info().Str("game", g.ID).Str("scope", string(scope)).Str("scopeId", scopeID).
		Int("budget", budget).Msg("wallet provisioned")
	return nil
}

func walletScope(p *game.Player) (game.WalletScope, string, error) {
	switch {
	case p.Role == game.RoleRunner:
		return game.ScopeRunner, p.ID, nil
	case p.Role == game.RoleHunter && p.Team != "":
		return game.ScopeHunter, string(p.Team), nil
	default:
		return "", "", ErrNoWalletScope
	}
}

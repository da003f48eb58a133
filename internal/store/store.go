package store

import (
	"errors"
	"time"

	"github.com/chasegame/chase/internal/game"
	"github.com/chasegame/chase/internal/geo"
)

var ErrNotFound = errors.New("record not found")

// Store is the durable record store for games, players, POIs and wallets.
// Implementations are internally synchronized; callers treat multi-row
// changes as best-effort (no transactions are assumed).
type Store interface {
	CreateGame(g *game.Game) error
	Game(id string) (*game.Game, error)
	Games() ([]*game.Game, error)
	GamesWithStatus(status game.Status) ([]*game.Game, error)
	UpdateGame(g *game.Game) error
	SetGameStatus(id string, status game.Status) error
	SetGameStart(id string, start time.Time) error

	SavePlayer(p *game.Player) error
	Player(id string) (*game.Player, error)
	PlayersInGame(gameID string) ([]*game.Player, error)
	// PlayersByRole returns all players of the given role in the game. When
	// team is non-empty, only members of that team are returned.
	PlayersByRole(gameID string, role game.Role, team game.Team) ([]*game.Player, error)
	// PlayersWithPosition is PlayersByRole narrowed to players with a live
	// position.
	PlayersWithPosition(gameID string, role game.Role) ([]*game.Player, error)

	AddPOI(p *game.POI) error
	POIsByType(gameID string, t game.POIType) ([]*game.POI, error)

	CreateWallet(w *game.Wallet) error
	Wallet(gameID string, scope game.WalletScope, scopeID string) (*game.Wallet, error)
	UpdateWallet(w *game.Wallet) error
	WalletsForGame(gameID string) ([]*game.Wallet, error)

	// AppendLocation adds one entry to the append-only movement trail.
	AppendLocation(playerID, gameID string, pos geo.Point, at time.Time) error
}

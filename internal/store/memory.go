package store

import (
	"sync"
	"time"

	"github.com/chasegame/chase/internal/game"
	"github.com/chasegame/chase/internal/geo"
)

type locationEntry struct {
	PlayerID string
	GameID   string
	Position geo.Point
	At       time.Time
}

type walletKey struct {
	GameID  string
	Scope   game.WalletScope
	ScopeID string
}

// Memory is an in-memory Store. It backs the package tests and the
// -store memory development mode; records do not survive a restart.
type Memory struct {
	mu        sync.RWMutex
	games     map[string]*game.Game
	players   map[string]*game.Player
	pois      []*game.POI
	wallets   map[walletKey]*game.Wallet
	locations []locationEntry
}

func NewMemory() *Memory {
	return &Memory{
		games:   make(map[string]*game.Game),
		players: make(map[string]*game.Player),
		wallets: make(map[walletKey]*game.Wallet),
	}
}

func (m *Memory) CreateGame(g *game.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *g
	m.games[g.ID] = &cp
	return nil
}

func (m *Memory) Game(id string) (*game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *Memory) Games() ([]*game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*game.Game, 0, len(m.games))
	for _, g := range m.games {
		cp := *g
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Memory) GamesWithStatus(status game.Status) ([]*game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*game.Game
	for _, g := range m.games {
		if g.Status == status {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Memory) UpdateGame(g *game.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[g.ID]; !ok {
		return ErrNotFound
	}
	cp := *g
	m.games[g.ID] = &cp
	return nil
}

func (m *Memory) SetGameStatus(id string, status game.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok {
		return ErrNotFound
	}
	g.Status = status
	return nil
}

func (m *Memory) SetGameStart(id string, start time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok {
		return ErrNotFound
	}
	t := start
	g.StartTime = &t
	return nil
}

func (m *Memory) SavePlayer(p *game.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.players[p.ID] = &cp
	return nil
}

func (m *Memory) Player(id string) (*game.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) PlayersInGame(gameID string) ([]*game.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*game.Player
	for _, p := range m.players {
		if p.GameID == gameID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Memory) PlayersByRole(gameID string, role game.Role, team game.Team) ([]*game.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*game.Player
	for _, p := range m.players {
		if p.GameID != gameID || p.Role != role {
			continue
		}
		if team != "" && p.Team != team {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Memory) PlayersWithPosition(gameID string, role game.Role) ([]*game.Player, error) {
	players, err := m.PlayersByRole(gameID, role, "")
	if err != nil {
		return nil, err
	}
	out := players[:0]
	for _, p := range players {
		if p.HasPosition() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) AddPOI(p *game.POI) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.pois = append(m.pois, &cp)
	return nil
}

func (m *Memory) POIsByType(gameID string, t game.POIType) ([]*game.POI, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*game.POI
	for _, p := range m.pois {
		if p.GameID == gameID && p.Type == t {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Memory) CreateWallet(w *game.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *w
	m.wallets[walletKey{w.GameID, w.Scope, w.ScopeID}] = &cp
	return nil
}

func (m *Memory) Wallet(gameID string, scope game.WalletScope, scopeID string) (*game.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.wallets[walletKey{gameID, scope, scopeID}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *Memory) UpdateWallet(w *game.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := walletKey{w.GameID, w.Scope, w.ScopeID}
	if _, ok := m.wallets[k]; !ok {
		return ErrNotFound
	}
	cp := *w
	m.wallets[k] = &cp
	return nil
}

func (m *Memory) WalletsForGame(gameID string) ([]*game.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*game.Wallet
	for _, w := range m.wallets {
		if w.GameID == gameID {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Memory) AppendLocation(playerID, gameID string, pos geo.Point, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations = append(m.locations, locationEntry{PlayerID: playerID, GameID: gameID, Position: pos, At: at})
	return nil
}

// LocationCount reports the trail length for one player in one game.
func (m *Memory) LocationCount(playerID, gameID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.locations {
		if e.PlayerID == playerID && e.GameID == gameID {
			n++
		}
	}
	return n
}

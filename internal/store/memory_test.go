package store

import (
	"errors"
	"testing"
	"time"

	"github.com/chasegame/chase/internal/game"
	"github.com/chasegame/chase/internal/geo"
)

func TestGameRoundTrip(t *testing.T) {
	m := NewMemory()
	if _, err := m.Game("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	g := &game.Game{ID: "g1", Name: "test", Status: game.StatusCreated}
	if err := m.CreateGame(g); err != nil {
		t.Fatalf("create: %v", err)
	}

	// a returned record is a copy, mutating it must not write through
	got, err := m.Game("g1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got.Name = "mutated"
	again, _ := m.Game("g1")
	if again.Name != "test" {
		t.Fatal("store handed out a shared reference")
	}

	if err := m.SetGameStatus("g1", game.StatusHeadstart); err != nil {
		t.Fatalf("set status: %v", err)
	}
	start := time.Now()
	if err := m.SetGameStart("g1", start); err != nil {
		t.Fatalf("set start: %v", err)
	}
	again, _ = m.Game("g1")
	if again.Status != game.StatusHeadstart || again.StartTime == nil || !again.StartTime.Equal(start) {
		t.Fatalf("game = %+v, want headstart with start time", again)
	}

	if err := m.UpdateGame(&game.Game{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing: err = %v, want ErrNotFound", err)
	}
}

func TestGamesWithStatus(t *testing.T) {
	m := NewMemory()
	for i, s := range []game.Status{game.StatusCreated, game.StatusRunning, game.StatusRunning, game.StatusEnded} {
		g := &game.Game{ID: string(rune('a' + i)), Status: s}
		if err := m.CreateGame(g); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	running, err := m.GamesWithStatus(game.StatusRunning)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(running) != 2 {
		t.Fatalf("running games = %d, want 2", len(running))
	}
}

func TestPlayerQueries(t *testing.T) {
	m := NewMemory()
	now := time.Now()
	pt := geo.Point{Lat: 52, Lon: 13}
	players := []*game.Player{
		{ID: "r1", Role: game.RoleRunner, GameID: "g1", Position: &pt, PositionAt: &now},
		{ID: "r2", Role: game.RoleRunner, GameID: "g1"},
		{ID: "h1", Role: game.RoleHunter, Team: game.TeamRed, GameID: "g1", Position: &pt, PositionAt: &now},
		{ID: "h2", Role: game.RoleHunter, Team: game.TeamBlue, GameID: "g1"},
		{ID: "x1", Role: game.RoleRunner, GameID: "other"},
	}
	for _, p := range players {
		if err := m.SavePlayer(p); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	all, _ := m.PlayersInGame("g1")
	if len(all) != 4 {
		t.Fatalf("players in game = %d, want 4", len(all))
	}

	runners, _ := m.PlayersByRole("g1", game.RoleRunner, "")
	if len(runners) != 2 {
		t.Fatalf("runners = %d, want 2", len(runners))
	}

	red, _ := m.PlayersByRole("g1", game.RoleHunter, game.TeamRed)
	if len(red) != 1 || red[0].ID != "h1" {
		t.Fatalf("red hunters = %+v, want h1 only", red)
	}

	positioned, _ := m.PlayersWithPosition("g1", game.RoleRunner)
	if len(positioned) != 1 || positioned[0].ID != "r1" {
		t.Fatalf("positioned runners = %+v, want r1 only", positioned)
	}
}

func TestPOIsByType(t *testing.T) {
	m := NewMemory()
	pois := []*game.POI{
		{ID: "p1", GameID: "g1", Type: game.POITrap},
		{ID: "p2", GameID: "g1", Type: game.POIWatchtower},
		{ID: "p3", GameID: "g1", Type: game.POITrap},
		{ID: "p4", GameID: "other", Type: game.POITrap},
	}
	for _, p := range pois {
		if err := m.AddPOI(p); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	traps, err := m.POIsByType("g1", game.POITrap)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(traps) != 2 {
		t.Fatalf("traps = %d, want 2", len(traps))
	}
	for _, p := range traps {
		if p.GameID != "g1" || p.Type != game.POITrap {
			t.Fatalf("unexpected poi %+v", p)
		}
	}
}

func TestWalletRoundTrip(t *testing.T) {
	m := NewMemory()
	if _, err := m.Wallet("g1", game.ScopeRunner, "r1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	w := &game.Wallet{GameID: "g1", Scope: game.ScopeRunner, ScopeID: "r1", Budget: 500}
	if err := m.CreateWallet(w); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := m.Wallet("g1", game.ScopeRunner, "r1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Budget != 500 {
		t.Fatalf("budget = %d, want 500", got.Budget)
	}

	got.Budget = 400
	got.Stock[0] = 2
	if err := m.UpdateWallet(got); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, _ := m.Wallet("g1", game.ScopeRunner, "r1")
	if again.Budget != 400 || again.Stock[0] != 2 {
		t.Fatalf("wallet = %+v, want budget 400 and slot 1 stock 2", again)
	}

	if err := m.UpdateWallet(&game.Wallet{GameID: "g1", Scope: game.ScopeHunter, ScopeID: "red"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing: err = %v, want ErrNotFound", err)
	}

	hw := &game.Wallet{GameID: "g1", Scope: game.ScopeHunter, ScopeID: "red", Budget: 1000}
	if err := m.CreateWallet(hw); err != nil {
		t.Fatalf("create: %v", err)
	}
	wallets, _ := m.WalletsForGame("g1")
	if len(wallets) != 2 {
		t.Fatalf("wallets for game = %d, want 2", len(wallets))
	}
}

func TestLocationTrail(t *testing.T) {
	m := NewMemory()
	at := time.Now()
	for i := 0; i < 3; i++ {
		err := m.AppendLocation("r1", "g1", geo.Point{Lat: 52, Lon: 13}, at.Add(time.Duration(i)*5*time.Second))
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := m.AppendLocation("h1", "g1", geo.Point{Lat: 52, Lon: 13}, at); err != nil {
		t.Fatalf("append: %v", err)
	}
	if n := m.LocationCount("r1", "g1"); n != 3 {
		t.Fatalf("trail = %d, want 3", n)
	}
	if n := m.LocationCount("r1", "other"); n != 0 {
		t.Fatalf("trail leaked across games, count = %d", n)
	}
}

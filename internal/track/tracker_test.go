package track

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chasegame/chase/internal/game"
	"github.com/chasegame/chase/internal/geo"
	"github.com/chasegame/chase/internal/store"
)

type recorder struct {
	mu    sync.Mutex
	texts map[string][]string
}

func newRecorder() *recorder {
	return &recorder{texts: make(map[string][]string)}
}

func (r *recorder) SendText(recipient, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts[recipient] = append(r.texts[recipient], text)
	return nil
}

func (r *recorder) SendImage(recipient string, image []byte, caption string) error { return nil }

func (r *recorder) SendDocument(recipient string, doc []byte, filename, caption string) error {
	return nil
}

func (r *recorder) count(recipient string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.texts[recipient])
}

var (
	insideTrap  = geo.Point{Lat: 52.0, Lon: 13.0}
	outsideTrap = geo.Point{Lat: 52.1, Lon: 13.0} // ~11 km north
)

func setupGame(t *testing.T, status game.Status) (*store.Memory, *recorder, *Tracker) {
	t.Helper()
	st := store.NewMemory()
	rec := newRecorder()
	tracker := New(st, rec)

	g := &game.Game{
		ID:           "g1",
		Name:         "test",
		GamemasterID: "gm",
		Status:       status,
	}
	if err := st.CreateGame(g); err != nil {
		t.Fatalf("create game: %v", err)
	}
	players := []*game.Player{
		{ID: "gm", Name: "GM", Role: game.RoleGamemaster, GameID: "g1"},
		{ID: "r1", Name: "Alice", Role: game.RoleRunner, GameID: "g1"},
		{ID: "h1", Name: "Bob", Role: game.RoleHunter, Team: game.TeamRed, GameID: "g1"},
		{ID: "h2", Name: "Carol", Role: game.RoleHunter, Team: game.TeamRed, GameID: "g1"},
		{ID: "h3", Name: "Dave", Role: game.RoleHunter, Team: game.TeamBlue, GameID: "g1"},
	}
	for _, p := range players {
		if err := st.SavePlayer(p); err != nil {
			t.Fatalf("save player: %v", err)
		}
	}
	return st, rec, tracker
}

func addTrap(t *testing.T, st *store.Memory, id string, pos geo.Point, radius float64) {
	t.Helper()
	err := st.AddPOI(&game.POI{
		ID: id, GameID: "g1", Type: game.POITrap,
		Position: pos, Radius: radius, Team: game.TeamRed,
		CreatorID: "h1", CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("add trap: %v", err)
	}
}

func TestTrapFiresOncePerEntry(t *testing.T) {
	st, _, tracker := setupGame(t, game.StatusRunning)
	addTrap(t, st, "trap1", insideTrap, 100)

	// enter
	triggered, err := tracker.Report("r1", insideTrap)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !triggered {
		t.Fatal("expected trigger on first entry")
	}

	// still inside, must not fire again
	triggered, err = tracker.Report("r1", insideTrap)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if triggered {
		t.Fatal("should not re-trigger while inside the radius")
	}

	// leave, re-enter: fires a second time
	if _, err := tracker.Report("r1", outsideTrap); err != nil {
		t.Fatalf("report: %v", err)
	}
	triggered, err = tracker.Report("r1", insideTrap)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !triggered {
		t.Fatal("expected trigger after leaving and re-entering")
	}

	trail, err := st.POIsByType("g1", game.POIRunnerTrap)
	if err != nil {
		t.Fatalf("load trail: %v", err)
	}
	if len(trail) != 2 {
		t.Fatalf("expected exactly 2 trail markers for 2 entries, got %d", len(trail))
	}
	for _, p := range trail {
		if p.Team != game.TeamRed {
			t.Fatalf("trail marker should carry the owning team, got %q", p.Team)
		}
		if p.CreatorID != "r1" {
			t.Fatalf("trail marker should name the runner as creator, got %q", p.CreatorID)
		}
	}
}

func TestTrapNotifications(t *testing.T) {
	st, rec, tracker := setupGame(t, game.StatusRunning)
	addTrap(t, st, "trap1", insideTrap, 100)

	if _, err := tracker.Report("r1", insideTrap); err != nil {
		t.Fatalf("report: %v", err)
	}

	// owning team (red) gets notified, the other team does not
	if rec.count("h1") != 1 || rec.count("h2") != 1 {
		t.Fatalf("expected both red hunters notified once, got h1=%d h2=%d", rec.count("h1"), rec.count("h2"))
	}
	if rec.count("h3") != 0 {
		t.Fatalf("blue hunter must not be notified, got %d", rec.count("h3"))
	}
	if rec.count("gm") != 1 {
		t.Fatalf("expected gamemaster notified once, got %d", rec.count("gm"))
	}
	if rec.count("r1") != 1 {
		t.Fatalf("expected runner notified once, got %d", rec.count("r1"))
	}

	// team message carries no player identity, gamemaster message does
	teamMsg := rec.texts["h1"][0]
	if strings.Contains(teamMsg, "Alice") {
		t.Fatalf("team message must not reveal the runner's identity: %q", teamMsg)
	}
	gmMsg := rec.texts["gm"][0]
	if !strings.Contains(gmMsg, "Alice") {
		t.Fatalf("gamemaster message should name the runner: %q", gmMsg)
	}
}

func TestWatchtowerFiresPerEntry(t *testing.T) {
	st, rec, tracker := setupGame(t, game.StatusRunning)
	err := st.AddPOI(&game.POI{
		ID: "tower1", GameID: "g1", Type: game.POIWatchtower,
		Position: insideTrap, Radius: 300, Team: game.TeamRed,
		CreatorID: "h1", CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("add watchtower: %v", err)
	}

	for _, pos := range []geo.Point{insideTrap, outsideTrap, insideTrap} {
		if _, err := tracker.Report("r1", pos); err != nil {
			t.Fatalf("report: %v", err)
		}
	}

	if rec.count("h1") != 2 {
		t.Fatalf("watchtower notifications fire per distinct entry, expected 2, got %d", rec.count("h1"))
	}
	trail, _ := st.POIsByType("g1", game.POIRunnerWatchtower)
	if len(trail) != 2 {
		t.Fatalf("expected 2 watchtower trail markers, got %d", len(trail))
	}
}

func TestHuntersAreNotEvaluated(t *testing.T) {
	st, rec, tracker := setupGame(t, game.StatusRunning)
	addTrap(t, st, "trap1", insideTrap, 100)

	triggered, err := tracker.Report("h1", insideTrap)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if triggered {
		t.Fatal("hunters must never trigger traps")
	}
	if rec.count("gm") != 0 {
		t.Fatal("no notifications expected for a hunter inside a trap")
	}

	// position is still recorded
	p, err := st.Player("h1")
	if err != nil {
		t.Fatalf("load player: %v", err)
	}
	if !p.HasPosition() {
		t.Fatal("hunter position should be recorded")
	}
}

func TestInactiveGameIsNoOp(t *testing.T) {
	st, rec, tracker := setupGame(t, game.StatusCreated)
	addTrap(t, st, "trap1", insideTrap, 100)

	triggered, err := tracker.Report("r1", insideTrap)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if triggered {
		t.Fatal("no triggers while the game is not active")
	}
	if rec.count("r1") != 0 {
		t.Fatal("no notifications while the game is not active")
	}
}

func TestOutOfRangeDoesNotFire(t *testing.T) {
	st, _, tracker := setupGame(t, game.StatusRunning)
	addTrap(t, st, "trap1", insideTrap, 100)

	triggered, err := tracker.Report("r1", outsideTrap)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if triggered {
		t.Fatal("a report outside the radius must not trigger")
	}
	if tracker.state.isActive("r1", "trap1") {
		t.Fatal("no interaction should be marked active")
	}
}

func TestForgetClearsState(t *testing.T) {
	st, _, tracker := setupGame(t, game.StatusRunning)
	addTrap(t, st, "trap1", insideTrap, 100)

	if _, err := tracker.Report("r1", insideTrap); err != nil {
		t.Fatalf("report: %v", err)
	}
	if !tracker.state.isActive("r1", "trap1") {
		t.Fatal("interaction should be active after entry")
	}
	tracker.Forget("r1")
	if tracker.state.isActive("r1", "trap1") {
		t.Fatal("Forget should clear all interaction state")
	}
}

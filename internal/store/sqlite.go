package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/chasegame/chase/internal/game"
	"github.com/chasegame/chase/internal/geo"
)

const schema = `
CREATE TABLE IF NOT EXISTS games (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	gamemaster_id TEXT NOT NULL,
	status TEXT NOT NULL,
	start_time TIMESTAMP,
	duration_sec INTEGER NOT NULL,
	headstart_sec INTEGER NOT NULL,
	field TEXT NOT NULL,
	goal TEXT NOT NULL,
	shop TEXT NOT NULL,
	shop_cooldown_sec INTEGER NOT NULL,
	runner_budget INTEGER NOT NULL,
	hunter_budget INTEGER NOT NULL,
	trap_radius REAL NOT NULL,
	watchtower_radius REAL NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS players (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	role TEXT NOT NULL,
	team TEXT NOT NULL DEFAULT '',
	game_id TEXT NOT NULL DEFAULT '',
	lat REAL,
	lon REAL,
	position_at TIMESTAMP
);
CREATE TABLE IF NOT EXISTS pois (
	id TEXT PRIMARY KEY,
	game_id TEXT NOT NULL,
	type TEXT NOT NULL,
	lat REAL NOT NULL,
	lon REAL NOT NULL,
	radius REAL NOT NULL,
	team TEXT NOT NULL DEFAULT '',
	creator_id TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pois_game_type ON pois(game_id, type);
CREATE TABLE IF NOT EXISTS wallets (
	game_id TEXT NOT NULL,
	scope TEXT NOT NULL,
	scope_id TEXT NOT NULL,
	budget INTEGER NOT NULL,
	last_purchase TIMESTAMP,
	stock1 INTEGER NOT NULL,
	stock2 INTEGER NOT NULL,
	stock3 INTEGER NOT NULL,
	stock4 INTEGER NOT NULL,
	PRIMARY KEY (game_id, scope, scope_id)
);
CREATE TABLE IF NOT EXISTS locations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	player_id TEXT NOT NULL,
	game_id TEXT NOT NULL,
	lat REAL NOT NULL,
	lon REAL NOT NULL,
	recorded_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_locations_game ON locations(game_id, player_id);
`

// SQLite is the durable Store implementation backed by a single database
// file.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) CreateGame(g *game.Game) error {
	field, goal, shop, err := encodeGameBlobs(g)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO games
		(id, name, gamemaster_id, status, start_time, duration_sec, headstart_sec,
		 field, goal, shop, shop_cooldown_sec, runner_budget, hunter_budget,
		 trap_radius, watchtower_radius, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.GamemasterID, string(g.Status), g.StartTime,
		int(g.Duration.Seconds()), int(g.Headstart.Seconds()),
		field, goal, shop, int(g.ShopCooldown.Seconds()),
		g.RunnerBudget, g.HunterBudget, g.TrapRadius, g.WatchtowerRadius, g.CreatedAt)
	return err
}

func (s *SQLite) UpdateGame(g *game.Game) error {
	field, goal, shop, err := encodeGameBlobs(g)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE games SET
		name = ?, gamemaster_id = ?, status = ?, start_time = ?, duration_sec = ?,
		headstart_sec = ?, field = ?, goal = ?, shop = ?, shop_cooldown_sec = ?,
		runner_budget = ?, hunter_budget = ?, trap_radius = ?, watchtower_radius = ?
		WHERE id = ?`,
		g.Name, g.GamemasterID, string(g.Status), g.StartTime,
		int(g.Duration.Seconds()), int(g.Headstart.Seconds()),
		field, goal, shop, int(g.ShopCooldown.Seconds()),
		g.RunnerBudget, g.HunterBudget, g.TrapRadius, g.WatchtowerRadius, g.ID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *SQLite) Game(id string) (*game.Game, error) {
	row := s.db.QueryRow(`SELECT id, name, gamemaster_id, status, start_time,
		duration_sec, headstart_sec, field, goal, shop, shop_cooldown_sec,
		runner_budget, hunter_budget, trap_radius, watchtower_radius, created_at
		FROM games WHERE id = ?`, id)
	return scanGame(row)
}

func (s *SQLite) Games() ([]*game.Game, error) {
	rows, err := s.db.Query(`SELECT id, name, gamemaster_id, status, start_time,
		duration_sec, headstart_sec, field, goal, shop, shop_cooldown_sec,
		runner_budget, hunter_budget, trap_radius, watchtower_radius, created_at
		FROM games`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanGames(rows)
}

func (s *SQLite) GamesWithStatus(status game.Status) ([]*game.Game, error) {
	rows, err := s.db.Query(`SELECT id, name, gamemaster_id, status, start_time,
		duration_sec, headstart_sec, field, goal, shop, shop_cooldown_sec,
		runner_budget, hunter_budget, trap_radius, watchtower_radius, created_at
		FROM games WHERE status = ?`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanGames(rows)
}

func (s *SQLite) SetGameStatus(id string, status game.Status) error {
	res, err := s.db.Exec(`UPDATE games SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *SQLite) SetGameStart(id string, start time.Time) error {
	res, err := s.db.Exec(`UPDATE games SET start_time = ? WHERE id = ?`, start, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *SQLite) SavePlayer(p *game.Player) error {
	var lat, lon *float64
	if p.Position != nil {
		lat, lon = &p.Position.Lat, &p.Position.Lon
	}
	_, err := s.db.Exec(`INSERT INTO players (id, name, role, team, game_id, lat, lon, position_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, role = excluded.role, team = excluded.team,
			game_id = excluded.game_id, lat = excluded.lat, lon = excluded.lon,
			position_at = excluded.position_at`,
		p.ID, p.Name, string(p.Role), string(p.Team), p.GameID, lat, lon, p.PositionAt)
	return err
}

func (s *SQLite) Player(id string) (*game.Player, error) {
	row := s.db.QueryRow(`SELECT id, name, role, team, game_id, lat, lon, position_at
		FROM players WHERE id = ?`, id)
	p, err := scanPlayer(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return p, err
}

func (s *SQLite) PlayersInGame(gameID string) ([]*game.Player, error) {
	rows, err := s.db.Query(`SELECT id, name, role, team, game_id, lat, lon, position_at
		FROM players WHERE game_id = ?`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPlayers(rows)
}

func (s *SQLite) PlayersByRole(gameID string, role game.Role, team game.Team) ([]*game.Player, error) {
	q := `SELECT id, name, role, team, game_id, lat, lon, position_at
		FROM players WHERE game_id = ? AND role = ?`
	args := []any{gameID, string(role)}
	if team != "" {
		q += ` AND team = ?`
		args = append(args, string(team))
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPlayers(rows)
}

func (s *SQLite) PlayersWithPosition(gameID string, role game.Role) ([]*game.Player, error) {
	rows, err := s.db.Query(`SELECT id, name, role, team, game_id, lat, lon, position_at
		FROM players WHERE game_id = ? AND role = ? AND lat IS NOT NULL AND lon IS NOT NULL`,
		gameID, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPlayers(rows)
}

func (s *SQLite) AddPOI(p *game.POI) error {
	_, err := s.db.Exec(`INSERT INTO pois (id, game_id, type, lat, lon, radius, team, creator_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.GameID, string(p.Type), p.Position.Lat, p.Position.Lon,
		p.Radius, string(p.Team), p.CreatorID, p.CreatedAt)
	return err
}

func (s *SQLite) POIsByType(gameID string, t game.POIType) ([]*game.POI, error) {
	rows, err := s.db.Query(`SELECT id, game_id, type, lat, lon, radius, team, creator_id, created_at
		FROM pois WHERE game_id = ? AND type = ?`, gameID, string(t))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*game.POI
	for rows.Next() {
		p := &game.POI{}
		var typ, team string
		if err := rows.Scan(&p.ID, &p.GameID, &typ, &p.Position.Lat, &p.Position.Lon,
			&p.Radius, &team, &p.CreatorID, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Type = game.POIType(typ)
		p.Team = game.Team(team)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLite) CreateWallet(w *game.Wallet) error {
	_, err := s.db.Exec(`INSERT INTO wallets (game_id, scope, scope_id, budget, last_purchase, stock1, stock2, stock3, stock4)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.GameID, string(w.Scope), w.ScopeID, w.Budget, w.LastPurchase,
		w.Stock[0], w.Stock[1], w.Stock[2], w.Stock[3])
	return err
}

func (s *SQLite) Wallet(gameID string, scope game.WalletScope, scopeID string) (*game.Wallet, error) {
	row := s.db.QueryRow(`SELECT game_id, scope, scope_id, budget, last_purchase, stock1, stock2, stock3, stock4
		FROM wallets WHERE game_id = ? AND scope = ? AND scope_id = ?`,
		gameID, string(scope), scopeID)
	w := &game.Wallet{}
	var sc string
	var last sql.NullTime
	err := row.Scan(&w.GameID, &sc, &w.ScopeID, &w.Budget, &last,
		&w.Stock[0], &w.Stock[1], &w.Stock[2], &w.Stock[3])
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	w.Scope = game.WalletScope(sc)
	if last.Valid {
		t := last.Time
		w.LastPurchase = &t
	}
	return w, nil
}

func (s *SQLite) UpdateWallet(w *game.Wallet) error {
	res, err := s.db.Exec(`UPDATE wallets SET budget = ?, last_purchase = ?,
		stock1 = ?, stock2 = ?, stock3 = ?, stock4 = ?
		WHERE game_id = ? AND scope = ? AND scope_id = ?`,
		w.Budget, w.LastPurchase, w.Stock[0], w.Stock[1], w.Stock[2], w.Stock[3],
		w.GameID, string(w.Scope), w.ScopeID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *SQLite) WalletsForGame(gameID string) ([]*game.Wallet, error) {
	rows, err := s.db.Query(`SELECT game_id, scope, scope_id, budget, last_purchase, stock1, stock2, stock3, stock4
		FROM wallets WHERE game_id = ?`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*game.Wallet
	for rows.Next() {
		w := &game.Wallet{}
		var sc string
		var last sql.NullTime
		if err := rows.Scan(&w.GameID, &sc, &w.ScopeID, &w.Budget, &last,
			&w.Stock[0], &w.Stock[1], &w.Stock[2], &w.Stock[3]); err != nil {
			return nil, err
		}
		w.Scope = game.WalletScope(sc)
		if last.Valid {
			t := last.Time
			w.LastPurchase = &t
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *SQLite) AppendLocation(playerID, gameID string, pos geo.Point, at time.Time) error {
	_, err := s.db.Exec(`INSERT INTO locations (player_id, game_id, lat, lon, recorded_at)
		VALUES (?, ?, ?, ?, ?)`, playerID, gameID, pos.Lat, pos.Lon, at)
	return err
}

func encodeGameBlobs(g *game.Game) (field, goal, shop []byte, err error) {
	if field, err = json.Marshal(g.Field); err != nil {
		return nil, nil, nil, err
	}
	if goal, err = json.Marshal(g.Goal); err != nil {
		return nil, nil, nil, err
	}
	if shop, err = json.Marshal(g.Shop); err != nil {
		return nil, nil, nil, err
	}
	return field, goal, shop, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*game.Game, error) {
	g := &game.Game{}
	var status string
	var start sql.NullTime
	var durationSec, headstartSec, cooldownSec int
	var field, goal, shop []byte
	err := row.Scan(&g.ID, &g.Name, &g.GamemasterID, &status, &start,
		&durationSec, &headstartSec, &field, &goal, &shop, &cooldownSec,
		&g.RunnerBudget, &g.HunterBudget, &g.TrapRadius, &g.WatchtowerRadius, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	g.Status = game.Status(status)
	if start.Valid {
		t := start.Time
		g.StartTime = &t
	}
	g.Duration = time.Duration(durationSec) * time.Second
	g.Headstart = time.Duration(headstartSec) * time.Second
	g.ShopCooldown = time.Duration(cooldownSec) * time.Second
	if err := json.Unmarshal(field, &g.Field); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(goal, &g.Goal); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(shop, &g.Shop); err != nil {
		return nil, err
	}
	return g, nil
}

func scanGames(rows *sql.Rows) ([]*game.Game, error) {
	var out []*game.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func scanPlayer(row rowScanner) (*game.Player, error) {
	p := &game.Player{}
	var role, team string
	var lat, lon sql.NullFloat64
	var at sql.NullTime
	err := row.Scan(&p.ID, &p.Name, &role, &team, &p.GameID, &lat, &lon, &at)
	if err != nil {
		return nil, err
	}
	p.Role = game.Role(role)
	p.Team = game.Team(team)
	if lat.Valid && lon.Valid {
		p.Position = &geo.Point{Lat: lat.Float64, Lon: lon.Float64}
	}
	if at.Valid {
		t := at.Time
		p.PositionAt = &t
	}
	return p, nil
}

func scanPlayers(rows *sql.Rows) ([]*game.Player, error) {
	var out []*game.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

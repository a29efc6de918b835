package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/hub-weaver/internal/graph"
	"github.com/alvmarrod/hub-weaver/internal/hits"
	"github.com/alvmarrod/hub-weaver/internal/matrix"
)

// Storage handles all database operations
type Storage struct {
	db *sql.DB
}

// NewStorage creates a new Storage instance, opening/creating the DB and initializing schema
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &Storage{db: db}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// initSchema creates tables and indices if they don't exist
func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		user_id INTEGER PRIMARY KEY,
		position INTEGER NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		screen_name TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS adjacency (
		user_id INTEGER NOT NULL,
		relation TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		neighbor_id INTEGER NOT NULL,
		PRIMARY KEY (user_id, relation, ordinal),
		FOREIGN KEY (user_id) REFERENCES users(user_id)
	);

	CREATE TABLE IF NOT EXISTS scores (
		user_id INTEGER PRIMARY KEY,
		hub REAL NOT NULL,
		authority REAL NOT NULL,
		hub_rank INTEGER NOT NULL,
		authority_rank INTEGER NOT NULL,
		scored_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_position ON users(position);
	CREATE INDEX IF NOT EXISTS idx_users_screen_name ON users(screen_name);
	CREATE INDEX IF NOT EXISTS idx_adjacency_neighbor ON adjacency(neighbor_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveGraph replaces the stored graph with g in a single transaction.
// Discovery order and list order are kept in the position and ordinal columns.
func (s *Storage) SaveGraph(g *graph.Graph) (err error) {
	startTime := time.Now()
	logrus.Info("Starting flush to database...")

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, table := range []string{"adjacency", "users"} {
		if _, err = tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	userStmt, err := tx.Prepare("INSERT INTO users (user_id, position, name, screen_name) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare user insert: %w", err)
	}
	defer userStmt.Close()

	edgeStmt, err := tx.Prepare("INSERT INTO adjacency (user_id, relation, ordinal, neighbor_id) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare adjacency insert: %w", err)
	}
	defer edgeStmt.Close()

	edgesWritten := 0
	for pos, id := range g.Users.IDs() {
		rec, _ := g.Users.Get(id)
		if _, err = userStmt.Exec(int64(id), pos, rec.Name, rec.ScreenName); err != nil {
			return fmt.Errorf("failed to flush user %d: %w", id, err)
		}

		adj, _ := g.Adjacency.Get(id)
		for _, list := range []struct {
			relation  string
			neighbors []graph.UserID
		}{
			{relationOutbound, adj.Outbound},
			{relationInbound, adj.Inbound},
		} {
			for ordinal, neighbor := range list.neighbors {
				if _, err = edgeStmt.Exec(int64(id), list.relation, ordinal, int64(neighbor)); err != nil {
					return fmt.Errorf("failed to flush %s edge %d-%d: %w", list.relation, id, neighbor, err)
				}
				edgesWritten++
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit graph: %w", err)
	}

	logrus.Infof("Flush complete: %d users, %d edges written in %v", g.Len(), edgesWritten, time.Since(startTime))
	return nil
}

// LoadGraph rebuilds the stored graph in its original discovery order
func (s *Storage) LoadGraph() (*graph.Graph, error) {
	g := graph.New()

	rows, err := s.db.Query("SELECT user_id, name, screen_name FROM users ORDER BY position ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	for rows.Next() {
		var id int64
		var rec graph.UserRecord
		if err := rows.Scan(&id, &rec.Name, &rec.ScreenName); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		g.AddUser(graph.UserID(id), rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	rows.Close()

	rows, err = s.db.Query("SELECT user_id, relation, neighbor_id FROM adjacency ORDER BY user_id, relation, ordinal ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to load adjacency: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, neighbor int64
		var relation string
		if err := rows.Scan(&id, &relation, &neighbor); err != nil {
			return nil, fmt.Errorf("failed to scan adjacency: %w", err)
		}

		switch relation {
		case relationOutbound:
			err = g.Adjacency.AppendOutbound(graph.UserID(id), graph.UserID(neighbor))
		case relationInbound:
			err = g.Adjacency.AppendInbound(graph.UserID(id), graph.UserID(neighbor))
		default:
			err = fmt.Errorf("unknown relation %q", relation)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load adjacency of %d: %w", id, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating adjacency: %w", err)
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}

	logrus.Infof("Loaded %d users from database", g.Len())
	return g, nil
}

// SaveScores replaces the stored scores with res, labelled by the index map
func (s *Storage) SaveScores(index *matrix.IndexMap, res *hits.Result) (err error) {
	if index.Len() != len(res.Hubs) || index.Len() != len(res.Authorities) {
		return fmt.Errorf("index map has %d users but result has %d hubs and %d authorities",
			index.Len(), len(res.Hubs), len(res.Authorities))
	}

	hubRank := rankPositions(res.Hubs)
	authRank := rankPositions(res.Authorities)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec("DELETE FROM scores"); err != nil {
		return fmt.Errorf("failed to clear scores: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO scores (user_id, hub, authority, hub_rank, authority_rank) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare score insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < index.Len(); i++ {
		if _, err = stmt.Exec(int64(index.ID(i)), res.Hubs[i], res.Authorities[i], hubRank[i], authRank[i]); err != nil {
			return fmt.Errorf("failed to save score of %d: %w", index.ID(i), err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scores: %w", err)
	}
	return nil
}

// LoadScores returns the stored scores, best authority first
func (s *Storage) LoadScores() ([]Score, error) {
	rows, err := s.db.Query(`
		SELECT s.user_id, COALESCE(u.screen_name, ''), s.hub, s.authority, s.hub_rank, s.authority_rank
		FROM scores s
		LEFT JOIN users u ON u.user_id = s.user_id
		ORDER BY s.authority_rank ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load scores: %w", err)
	}
	defer rows.Close()

	var scores []Score
	for rows.Next() {
		var sc Score
		var id int64
		if err := rows.Scan(&id, &sc.ScreenName, &sc.Hub, &sc.Authority, &sc.HubRank, &sc.AuthorityRank); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		sc.UserID = graph.UserID(id)
		scores = append(scores, sc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scores: %w", err)
	}

	return scores, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// rankPositions maps every index to its 1-based rank
func rankPositions(scores []float64) []int {
	ranks := make([]int, len(scores))
	for pos, i := range hits.Rank(scores, -1) {
		ranks[i] = pos + 1
	}
	return ranks
}

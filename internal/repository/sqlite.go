package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/wrongjunior/eventfeed/internal/domain"
)

// EventRepository is the append-only feed store.
type EventRepository interface {
	Init() error
	Save(event domain.RawEvent) error
	Recent(limit int) ([]domain.RawEvent, error)
	Prune(keep int) (int64, error)
}

// SQLiteRepository stores feed records in SQLite. The autoincrement seq
// column defines feed order.
type SQLiteRepository struct {
	DB *sql.DB
}

// Open opens the database at path with the sqlite3 driver.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// Every connection to ":memory:" is its own database.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewSQLiteRepository wraps an open database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{DB: db}
}

// Init creates the events table if it does not exist yet.
func (repo *SQLiteRepository) Init() error {
	query := `
        CREATE TABLE IF NOT EXISTS events (
            seq INTEGER PRIMARY KEY AUTOINCREMENT,
            id TEXT NOT NULL UNIQUE,
            author TEXT,
            target TEXT,
            action TEXT,
            action_url TEXT,
            avatar TEXT,
            message TEXT,
            event TEXT,
            time TEXT,
            body TEXT,
            labels_json TEXT
        );
    `
	_, err := repo.DB.Exec(query)
	return err
}

// Save appends the event. A record whose id is already stored is ignored.
func (repo *SQLiteRepository) Save(event domain.RawEvent) error {
	var labels sql.NullString
	if len(event.Labels) > 0 {
		b, err := json.Marshal(event.Labels)
		if err != nil {
			return fmt.Errorf("encode labels: %w", err)
		}
		labels = sql.NullString{String: string(b), Valid: true}
	}
	var body sql.NullString
	if event.Body != nil {
		body = sql.NullString{String: *event.Body, Valid: true}
	}

	query := `INSERT OR IGNORE INTO events
        (id, author, target, action, action_url, avatar, message, event, time, body, labels_json)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`
	_, err := repo.DB.Exec(query,
		event.ID, event.Author, event.Target, event.Action, event.ActionURL,
		event.Avatar, event.Message, event.Event, event.Time, body, labels)
	return err
}

// Recent returns the newest limit records in feed order, oldest first.
// limit <= 0 returns every record.
func (repo *SQLiteRepository) Recent(limit int) ([]domain.RawEvent, error) {
	query := `SELECT id, author, target, action, action_url, avatar, message, event, time, body, labels_json
        FROM (SELECT * FROM events ORDER BY seq DESC LIMIT ?) ORDER BY seq ASC;`
	if limit <= 0 {
		limit = -1
	}
	rows, err := repo.DB.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.RawEvent
	for rows.Next() {
		var e domain.RawEvent
		var author, target, action, actionURL, avatar sql.NullString
		var message, tag, ts, body, labels sql.NullString
		if err := rows.Scan(&e.ID, &author, &target, &action, &actionURL, &avatar, &message, &tag, &ts, &body, &labels); err != nil {
			return nil, err
		}
		e.Author, e.Target, e.Action = author.String, target.String, action.String
		e.ActionURL, e.Avatar, e.Message = actionURL.String, avatar.String, message.String
		e.Event, e.Time = tag.String, ts.String
		if body.Valid {
			b := body.String
			e.Body = &b
		}
		if labels.Valid && labels.String != "" {
			if err := json.Unmarshal([]byte(labels.String), &e.Labels); err != nil {
				return nil, fmt.Errorf("decode labels of %s: %w", e.ID, err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Prune deletes all but the newest keep records and returns how many went.
func (repo *SQLiteRepository) Prune(keep int) (int64, error) {
	res, err := repo.DB.Exec(`DELETE FROM events WHERE seq NOT IN
        (SELECT seq FROM events ORDER BY seq DESC LIMIT ?);`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

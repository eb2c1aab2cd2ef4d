package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"ShareDesk/internal/model"
)

// SQLiteRecorder persists leads and listing reloads to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the operator bot read leads while the gateway writes them.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS leads (
			id           TEXT PRIMARY KEY,
			timestamp    INTEGER NOT NULL,
			kind         TEXT NOT NULL,
			name         TEXT,
			email        TEXT,
			phone        TEXT,
			subject      TEXT,
			organization TEXT,
			interest     TEXT,
			message      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_leads_ts ON leads(timestamp)`,

		`CREATE TABLE IF NOT EXISTS listing_loads (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			companies INTEGER,
			entries   INTEGER,
			error     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_listing_loads_ts ON listing_loads(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordLead stores a lead, assigning an id and timestamp when missing.
func (r *SQLiteRecorder) RecordLead(lead *model.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(`INSERT INTO leads
		(id, timestamp, kind, name, email, phone, subject, organization, interest, message)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		lead.ID, lead.CreatedAt.UnixMilli(), string(lead.Kind),
		lead.Name, lead.Email, lead.Phone, lead.Subject,
		lead.Organization, lead.Interest, lead.Message,
	)
	return err
}

// RecentLeads returns up to limit leads, newest first.
func (r *SQLiteRecorder) RecentLeads(limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = 10
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT id, timestamp, kind, name, email, phone, subject, organization, interest, message
		FROM leads ORDER BY timestamp DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var (
			l    model.Lead
			ts   int64
			kind string
		)
		if err := rows.Scan(&l.ID, &ts, &kind, &l.Name, &l.Email, &l.Phone,
			&l.Subject, &l.Organization, &l.Interest, &l.Message); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		l.Kind = model.LeadKind(kind)
		l.CreatedAt = time.UnixMilli(ts)
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

func (r *SQLiteRecorder) RecordListingLoad(evt *ListingLoad) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := evt.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.Exec(`INSERT INTO listing_loads
		(timestamp, companies, entries, error)
		VALUES (?,?,?,?)`,
		at.Unix(), evt.Companies, evt.Entries, evt.Err,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}

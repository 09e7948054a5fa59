package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/matrix-ai/backend/internal/storage/models"
	"github.com/matrix-ai/backend/pkg/apperr"
	"github.com/matrix-ai/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		first_name TEXT,
		last_name TEXT,
		role TEXT NOT NULL DEFAULT 'user',
		is_active INTEGER NOT NULL DEFAULT 1,
		last_login INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);

	CREATE TABLE IF NOT EXISTS sources (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		url TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		sync_frequency INTEGER NOT NULL DEFAULT 60,
		last_sync_date INTEGER,
		created_by TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (created_by) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT,
		type TEXT NOT NULL DEFAULT 'text',
		category TEXT,
		severity TEXT NOT NULL DEFAULT 'medium',
		confidence REAL NOT NULL DEFAULT 0,
		source_url TEXT,
		metadata TEXT,
		status TEXT NOT NULL DEFAULT 'new',
		processed_at INTEGER,
		resolved_at INTEGER,
		resolved_by TEXT,
		source_id TEXT NOT NULL,
		created_by TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (source_id) REFERENCES sources(id),
		FOREIGN KEY (resolved_by) REFERENCES users(id)
	);
	CREATE INDEX IF NOT EXISTS idx_events_severity ON events(severity);
	CREATE INDEX IF NOT EXISTS idx_events_status ON events(status);
	CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at);
	CREATE INDEX IF NOT EXISTS idx_events_source ON events(source_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) CreateUser(user *models.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, first_name, last_name, role, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Role,
		boolToInt(user.IsActive),
		user.CreatedAt.Unix(),
		user.UpdatedAt.Unix(),
	)

	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperr.New(apperr.KindValidation, "username or email already taken")
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	logger.Info("User created", zap.String("user_id", user.ID), zap.String("username", user.Username))
	return nil
}

func (c *Client) GetUserByUsername(username string) (*models.User, error) {
	return c.getUser("username = ?", username)
}

func (c *Client) GetUserByID(id string) (*models.User, error) {
	return c.getUser("id = ?", id)
}

func (c *Client) getUser(where string, arg interface{}) (*models.User, error) {
	query := `
		SELECT id, username, email, password_hash, first_name, last_name, role, is_active, last_login, created_at, updated_at
		FROM users WHERE ` + where

	var user models.User
	var isActive int
	var lastLogin sql.NullInt64
	var createdAt, updatedAt int64

	err := c.db.QueryRow(query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&isActive,
		&lastLogin,
		&createdAt,
		&updatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.IsActive = isActive != 0
	if lastLogin.Valid {
		t := time.Unix(lastLogin.Int64, 0)
		user.LastLogin = &t
	}
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

func (c *Client) UpdateLastLogin(userID string, at time.Time) error {
	_, err := c.db.Exec(
		`UPDATE users SET last_login = ?, updated_at = ? WHERE id = ?`,
		at.Unix(), at.Unix(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

func (c *Client) CreateSource(source *models.Source) error {
	query := `
		INSERT INTO sources (id, name, type, url, is_active, sync_frequency, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		source.ID,
		source.Name,
		source.Type,
		source.URL,
		boolToInt(source.IsActive),
		source.SyncFrequency,
		nullString(source.CreatedBy),
		source.CreatedAt.Unix(),
		source.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert source: %w", err)
	}

	logger.Info("Source created", zap.String("source_id", source.ID), zap.String("name", source.Name))
	return nil
}

func (c *Client) GetSource(id string) (*models.Source, error) {
	query := `
		SELECT id, name, type, url, is_active, sync_frequency, last_sync_date, created_by, created_at, updated_at
		FROM sources WHERE id = ?
	`

	var source models.Source
	var url, createdBy sql.NullString
	var isActive int
	var lastSync sql.NullInt64
	var createdAt, updatedAt int64

	err := c.db.QueryRow(query, id).Scan(
		&source.ID,
		&source.Name,
		&source.Type,
		&url,
		&isActive,
		&source.SyncFrequency,
		&lastSync,
		&createdBy,
		&createdAt,
		&updatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "source not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	source.URL = url.String
	source.CreatedBy = createdBy.String
	source.IsActive = isActive != 0
	if lastSync.Valid {
		t := time.Unix(lastSync.Int64, 0)
		source.LastSyncDate = &t
	}
	source.CreatedAt = time.Unix(createdAt, 0)
	source.UpdatedAt = time.Unix(updatedAt, 0)

	return &source, nil
}

func (c *Client) ListSources() ([]models.Source, error) {
	query := `
		SELECT id, name, type, url, is_active, sync_frequency, last_sync_date, created_by, created_at, updated_at
		FROM sources ORDER BY created_at DESC
	`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []models.Source
	for rows.Next() {
		var source models.Source
		var url, createdBy sql.NullString
		var isActive int
		var lastSync sql.NullInt64
		var createdAt, updatedAt int64

		err := rows.Scan(
			&source.ID,
			&source.Name,
			&source.Type,
			&url,
			&isActive,
			&source.SyncFrequency,
			&lastSync,
			&createdBy,
			&createdAt,
			&updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		source.URL = url.String
		source.CreatedBy = createdBy.String
		source.IsActive = isActive != 0
		if lastSync.Valid {
			t := time.Unix(lastSync.Int64, 0)
			source.LastSyncDate = &t
		}
		source.CreatedAt = time.Unix(createdAt, 0)
		source.UpdatedAt = time.Unix(updatedAt, 0)
		sources = append(sources, source)
	}

	return sources, rows.Err()
}

func (c *Client) TouchSourceSync(id string, at time.Time) error {
	_, err := c.db.Exec(
		`UPDATE sources SET last_sync_date = ?, updated_at = ? WHERE id = ?`,
		at.Unix(), at.Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update source sync date: %w", err)
	}
	return nil
}

func (c *Client) CreateEvent(event *models.Event) error {
	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO events (id, title, content, type, category, severity, confidence, source_url,
			metadata, status, source_id, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = c.db.Exec(
		query,
		event.ID,
		event.Title,
		event.Content,
		event.Type,
		event.Category,
		event.Severity,
		event.Confidence,
		event.SourceURL,
		string(metadataJSON),
		event.Status,
		event.SourceID,
		nullString(event.CreatedBy),
		event.CreatedAt.Unix(),
		event.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	logger.Info("Event created",
		zap.String("event_id", event.ID),
		zap.String("severity", event.Severity),
		zap.String("category", event.Category),
	)
	return nil
}

func (c *Client) GetEvent(id string) (*models.Event, error) {
	query := `
		SELECT id, title, content, type, category, severity, confidence, source_url, metadata,
			status, processed_at, resolved_at, resolved_by, source_id, created_by, created_at, updated_at
		FROM events WHERE id = ?
	`

	row := c.db.QueryRow(query, id)
	event, err := scanEvent(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "event not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return event, nil
}

// UpdateEventStatus writes the lifecycle fields in one statement; the update
// is last-writer-wins across concurrent transitions.
func (c *Client) UpdateEventStatus(event *models.Event) error {
	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		UPDATE events
		SET status = ?, processed_at = ?, resolved_at = ?, resolved_by = ?, metadata = ?, updated_at = ?
		WHERE id = ?
	`

	_, err = c.db.Exec(
		query,
		event.Status,
		nullUnix(event.ProcessedAt),
		nullUnix(event.ResolvedAt),
		nullString(event.ResolvedBy),
		string(metadataJSON),
		time.Now().Unix(),
		event.ID,
	)

	if err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
	}

	logger.Info("Event status updated",
		zap.String("event_id", event.ID),
		zap.String("status", event.Status),
	)
	return nil
}

type EventFilter struct {
	Status    string
	Severity  string
	Category  string
	SourceID  string
	StartDate *time.Time
	EndDate   *time.Time
	Search    string
	Page      int
	Limit     int
}

func (c *Client) ListEvents(filter EventFilter) ([]models.Event, int, error) {
	where, args := buildEventWhere(filter)

	var total int
	countQuery := "SELECT COUNT(*) FROM events" + where
	if err := c.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 20
	}

	query := `
		SELECT id, title, content, type, category, severity, confidence, source_url, metadata,
			status, processed_at, resolved_at, resolved_by, source_id, created_by, created_at, updated_at
		FROM events` + where + `
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`
	args = append(args, limit, (page-1)*limit)

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		event, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan row: %w", err)
		}
		events = append(events, *event)
	}

	return events, total, rows.Err()
}

func (c *Client) EventStats(start, end *time.Time) (*models.EventStats, error) {
	where, args := buildEventWhere(EventFilter{StartDate: start, EndDate: end})

	stats := &models.EventStats{
		ByStatus:   make(map[string]int),
		BySeverity: make(map[string]int),
		ByCategory: make(map[string]int),
	}

	if err := c.db.QueryRow("SELECT COUNT(*) FROM events"+where, args...).Scan(&stats.TotalCount); err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	for column, dest := range map[string]map[string]int{
		"status":   stats.ByStatus,
		"severity": stats.BySeverity,
		"category": stats.ByCategory,
	} {
		query := fmt.Sprintf("SELECT %s, COUNT(*) FROM events%s GROUP BY %s", column, where, column)
		rows, err := c.db.Query(query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to group events by %s: %w", column, err)
		}

		for rows.Next() {
			var key sql.NullString
			var count int
			if err := rows.Scan(&key, &count); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan row: %w", err)
			}
			if key.Valid && key.String != "" {
				dest[key.String] = count
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	return stats, nil
}

func buildEventWhere(filter EventFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, filter.Severity)
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.SourceID != "" {
		conditions = append(conditions, "source_id = ?")
		args = append(args, filter.SourceID)
	}
	if filter.StartDate != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.StartDate.Unix())
	}
	if filter.EndDate != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, filter.EndDate.Unix())
	}
	if filter.Search != "" {
		conditions = append(conditions, "(title LIKE ? OR content LIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanEvent(scan func(...interface{}) error) (*models.Event, error) {
	var event models.Event
	var content, category, sourceURL, metadataJSON, resolvedBy, createdBy sql.NullString
	var processedAt, resolvedAt sql.NullInt64
	var createdAt, updatedAt int64

	err := scan(
		&event.ID,
		&event.Title,
		&content,
		&event.Type,
		&category,
		&event.Severity,
		&event.Confidence,
		&sourceURL,
		&metadataJSON,
		&event.Status,
		&processedAt,
		&resolvedAt,
		&resolvedBy,
		&event.SourceID,
		&createdBy,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	event.Content = content.String
	event.Category = category.String
	event.SourceURL = sourceURL.String
	event.ResolvedBy = resolvedBy.String
	event.CreatedBy = createdBy.String

	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &event.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	if processedAt.Valid {
		t := time.Unix(processedAt.Int64, 0)
		event.ProcessedAt = &t
	}
	if resolvedAt.Valid {
		t := time.Unix(resolvedAt.Int64, 0)
		event.ResolvedAt = &t
	}
	event.CreatedAt = time.Unix(createdAt, 0)
	event.UpdatedAt = time.Unix(updatedAt, 0)

	return &event, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullUnix(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

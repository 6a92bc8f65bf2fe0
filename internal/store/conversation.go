// Package store persists conversation history in SQLite so chat sessions
// survive restarts.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"wisebot/internal/logging"
	"wisebot/internal/wisdom"
)

// ConversationStore implements conversation persistence using SQLite.
// Each conversation keeps an ordered message history plus the pinned
// opening exchange that anchors the bot's persona.
type ConversationStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewConversationStore initializes the SQLite database at the given path.
func NewConversationStore(path string) (*ConversationStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &ConversationStore{db: db, dbPath: path}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("conversation store opened at %s", path)
	return store, nil
}

// initialize creates the required tables.
func (s *ConversationStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		pinned_json TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		turn_number INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		speaker_name TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id)
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, turn_number);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// CreateConversation registers a new conversation with its pinned opening
// messages. Creating an already-existing conversation is an error.
func (s *ConversationStore) CreateConversation(id string, pinned []wisdom.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pinnedJSON, err := json.Marshal(pinned)
	if err != nil {
		return fmt.Errorf("failed to marshal pinned messages: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO conversations (id, pinned_json) VALUES (?, ?)`,
		id, string(pinnedJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	logging.StoreDebug("created conversation %s with %d pinned messages", id, len(pinned))
	return nil
}

// Pinned returns the pinned opening messages of a conversation.
func (s *ConversationStore) Pinned(id string) ([]wisdom.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pinnedJSON string
	err := s.db.QueryRow(`SELECT pinned_json FROM conversations WHERE id = ?`, id).Scan(&pinnedJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("conversation not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	var pinned []wisdom.Message
	if err := json.Unmarshal([]byte(pinnedJSON), &pinned); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pinned messages: %w", err)
	}
	return pinned, nil
}

// SetPinned replaces the pinned opening messages of a conversation.
func (s *ConversationStore) SetPinned(id string, pinned []wisdom.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pinnedJSON, err := json.Marshal(pinned)
	if err != nil {
		return fmt.Errorf("failed to marshal pinned messages: %w", err)
	}

	res, err := s.db.Exec(
		`UPDATE conversations SET pinned_json = ?, updated_at = ? WHERE id = ?`,
		string(pinnedJSON), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set pinned messages: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("conversation not found: %s", id)
	}
	return nil
}

// AppendMessage adds a message to the end of a conversation's history.
func (s *ConversationStore) AppendMessage(id string, msg wisdom.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next int
	err := s.db.QueryRow(
		`SELECT COALESCE(MAX(turn_number), 0) + 1 FROM messages WHERE conversation_id = ?`, id,
	).Scan(&next)
	if err != nil {
		return fmt.Errorf("failed to determine turn number: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO messages (conversation_id, turn_number, role, content, speaker_name) VALUES (?, ?, ?, ?, ?)`,
		id, next, string(msg.Role), msg.Content, msg.SpeakerName,
	)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}

	_, err = s.db.Exec(`UPDATE conversations SET updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}

	return nil
}

// History returns a conversation's messages in chronological order.
func (s *ConversationStore) History(id string) ([]wisdom.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT role, content, COALESCE(speaker_name, '') FROM messages WHERE conversation_id = ? ORDER BY turn_number ASC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	var history []wisdom.Message
	for rows.Next() {
		var msg wisdom.Message
		var role string
		if err := rows.Scan(&role, &msg.Content, &msg.SpeakerName); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = wisdom.Role(role)
		history = append(history, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	return history, nil
}

// Exists reports whether a conversation is known.
func (s *ConversationStore) Exists(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var one int
	err := s.db.QueryRow(`SELECT 1 FROM conversations WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteConversation removes a conversation and its messages.
func (s *ConversationStore) DeleteConversation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	logging.StoreDebug("deleted conversation %s", id)
	return nil
}

// Close closes the underlying database.
func (s *ConversationStore) Close() error {
	return s.db.Close()
}

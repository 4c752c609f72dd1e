package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"kynor-backend/internal/conversation"
	"kynor-backend/pkg/logger"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chats (
	id       TEXT PRIMARY KEY,
	title    TEXT NOT NULL,
	position INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	chat_id    TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, seq);
CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// SQLiteStorage 内存集合 + SQLite 持久化，每次 Update 在一个事务内写入差异
type SQLiteStorage struct {
	path string
	db   *sql.DB
	mu   sync.RWMutex
	set  conversation.Set
}

func NewSQLiteStorage(dataDir string) *SQLiteStorage {
	return &SQLiteStorage{
		path: filepath.Join(dataDir, "chats.db"),
	}
}

func (s *SQLiteStorage) Init() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	// SQLite 只支持单写者
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return fmt.Errorf("%w: %v", ErrStorageInit, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	s.db = db

	set, err := s.load()
	if err != nil {
		db.Close()
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	s.mu.Lock()
	s.set = set
	s.mu.Unlock()

	logger.Infof("SQLite storage initialized at %s: %d sessions loaded", s.path, set.Len())
	return nil
}

func (s *SQLiteStorage) load() (conversation.Set, error) {
	rows, err := s.db.Query(`SELECT id, title FROM chats ORDER BY position`)
	if err != nil {
		return conversation.Set{}, err
	}
	defer rows.Close()

	var chats []conversation.Chat
	byID := make(map[string]int)
	for rows.Next() {
		var chat conversation.Chat
		if err := rows.Scan(&chat.ID, &chat.Title); err != nil {
			return conversation.Set{}, err
		}
		byID[chat.ID] = len(chats)
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return conversation.Set{}, err
	}

	msgRows, err := s.db.Query(`SELECT id, chat_id, role, content, created_at FROM messages ORDER BY chat_id, seq`)
	if err != nil {
		return conversation.Set{}, err
	}
	defer msgRows.Close()

	for msgRows.Next() {
		var (
			msg     conversation.Message
			chatID  string
			role    string
			created int64
		)
		if err := msgRows.Scan(&msg.ID, &chatID, &role, &msg.Content, &created); err != nil {
			return conversation.Set{}, err
		}
		idx, ok := byID[chatID]
		if !ok {
			continue
		}
		msg.Role = conversation.Role(role)
		msg.CreatedAt = time.Unix(0, created)
		chats[idx].Messages = append(chats[idx].Messages, msg)
	}
	if err := msgRows.Err(); err != nil {
		return conversation.Set{}, err
	}

	var active string
	err = s.db.QueryRow(`SELECT value FROM metadata WHERE key = 'active_chat'`).Scan(&active)
	if err != nil && err != sql.ErrNoRows {
		return conversation.Set{}, err
	}

	return conversation.Restore(chats, active), nil
}

func (s *SQLiteStorage) Snapshot() conversation.Set {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.set
}

func (s *SQLiteStorage) Update(fn func(conversation.Set) conversation.Set) (conversation.Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.set
	s.set = fn(prev)

	if err := s.persist(prev, s.set); err != nil {
		return s.set, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return s.set, nil
}

func (s *SQLiteStorage) persist(prev, next conversation.Set) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	kept := make(map[string]struct{}, next.Len())
	for pos, chat := range next.Chats() {
		kept[chat.ID] = struct{}{}

		_, err := tx.Exec(`INSERT INTO chats (id, title, position) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET title = excluded.title, position = excluded.position`,
			chat.ID, chat.Title, pos)
		if err != nil {
			return err
		}

		old, _ := prev.Get(chat.ID)
		for seq := len(old.Messages); seq < len(chat.Messages); seq++ {
			msg := chat.Messages[seq]
			_, err := tx.Exec(`INSERT OR IGNORE INTO messages (id, chat_id, seq, role, content, created_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				msg.ID, chat.ID, seq, string(msg.Role), msg.Content, msg.CreatedAt.UnixNano())
			if err != nil {
				return err
			}
		}
	}

	for _, chat := range prev.Chats() {
		if _, ok := kept[chat.ID]; ok {
			continue
		}
		if _, err := tx.Exec(`DELETE FROM chats WHERE id = ?`, chat.ID); err != nil {
			return err
		}
	}

	_, err = tx.Exec(`INSERT INTO metadata (key, value) VALUES ('active_chat', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, next.ActiveID())
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Backup 使用 VACUUM INTO 生成一致性快照
func (s *SQLiteStorage) Backup() error {
	backupDir := filepath.Join(filepath.Dir(s.path), "backup")
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	target := filepath.Join(backupDir, fmt.Sprintf("chats_%d.db", time.Now().UnixNano()))
	if _, err := s.db.Exec(`VACUUM INTO ?`, target); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	logger.Infof("Backup completed: %s", target)
	return nil
}

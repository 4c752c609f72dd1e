package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"kynor-backend/internal/conversation"
	"kynor-backend/pkg/logger"
)

// DiskStorage 内存集合 + JSON 文件持久化：
// sessions.json 为索引，sessions/<id>.json 为会话元数据，messages/<id>.json 为消息
type DiskStorage struct {
	dataDir string
	mu      sync.RWMutex
	set     conversation.Set
}

type SessionIndex struct {
	Active   string       `json:"active,omitempty"`
	Sessions []*IndexItem `json:"sessions"`
}

type IndexItem struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	MessageCount int    `json:"message_count"`
}

type sessionFile struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func NewDiskStorage(dataDir string) *DiskStorage {
	return &DiskStorage{
		dataDir: dataDir,
	}
}

func (d *DiskStorage) Init() error {
	if err := d.createDirectories(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	set, err := d.loadSessions()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	d.mu.Lock()
	d.set = set
	d.mu.Unlock()

	logger.Infof("Disk storage initialized: %d sessions loaded", set.Len())
	return nil
}

func (d *DiskStorage) createDirectories() error {
	dirs := []string{
		d.dataDir,
		filepath.Join(d.dataDir, "sessions"),
		filepath.Join(d.dataDir, "messages"),
		filepath.Join(d.dataDir, "backup"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

func (d *DiskStorage) indexPath() string {
	return filepath.Join(d.dataDir, "sessions.json")
}

func (d *DiskStorage) loadSessions() (conversation.Set, error) {
	if _, err := os.Stat(d.indexPath()); os.IsNotExist(err) {
		return conversation.Set{}, d.saveSessionIndex(&SessionIndex{Sessions: []*IndexItem{}})
	}

	data, err := os.ReadFile(d.indexPath())
	if err != nil {
		return conversation.Set{}, err
	}

	var index SessionIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return conversation.Set{}, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	chats := make([]conversation.Chat, 0, len(index.Sessions))
	for _, item := range index.Sessions {
		chat, err := d.loadSessionFromFile(item.ID)
		if err != nil {
			logger.Errorf("Failed to load session %s: %v", item.ID, err)
			continue
		}
		chats = append(chats, chat)
	}

	return conversation.Restore(chats, index.Active), nil
}

func safeChatID(chatID string) bool {
	return chatID != "" && chatID != "." && !strings.Contains(chatID, "..") && !strings.ContainsAny(chatID, `/\`)
}

// chatPath 拒绝含路径分隔符或 ".." 的标识，文件只能落在 dir 之下
func (d *DiskStorage) chatPath(dir, chatID string) (string, error) {
	if !safeChatID(chatID) {
		return "", fmt.Errorf("%w: unsafe chat id %q", ErrInvalidData, chatID)
	}
	return filepath.Join(d.dataDir, dir, chatID+".json"), nil
}

func (d *DiskStorage) loadSessionFromFile(sessionID string) (conversation.Chat, error) {
	path, err := d.chatPath("sessions", sessionID)
	if err != nil {
		return conversation.Chat{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return conversation.Chat{}, err
	}

	var meta sessionFile
	if err := json.Unmarshal(data, &meta); err != nil {
		return conversation.Chat{}, err
	}

	messages, err := d.loadMessagesFromFile(sessionID)
	if err != nil {
		logger.Errorf("Failed to load messages for session %s: %v", sessionID, err)
		messages = []conversation.Message{}
	}

	return conversation.Chat{ID: meta.ID, Title: meta.Title, Messages: messages}, nil
}

func (d *DiskStorage) loadMessagesFromFile(sessionID string) ([]conversation.Message, error) {
	messagesPath, err := d.chatPath("messages", sessionID)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(messagesPath); os.IsNotExist(err) {
		return []conversation.Message{}, nil
	}

	data, err := os.ReadFile(messagesPath)
	if err != nil {
		return nil, err
	}

	var messages []conversation.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, err
	}

	return messages, nil
}

func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}

	return os.Rename(tempPath, path)
}

func (d *DiskStorage) saveSessionIndex(index *SessionIndex) error {
	return writeJSONAtomic(d.indexPath(), index)
}

func (d *DiskStorage) saveChat(chat conversation.Chat) error {
	metaPath, err := d.chatPath("sessions", chat.ID)
	if err != nil {
		return err
	}
	messagesPath, err := d.chatPath("messages", chat.ID)
	if err != nil {
		return err
	}

	meta := sessionFile{ID: chat.ID, Title: chat.Title}
	if err := writeJSONAtomic(metaPath, meta); err != nil {
		return err
	}
	return writeJSONAtomic(messagesPath, chat.Messages)
}

func (d *DiskStorage) removeChat(chatID string) error {
	for _, dir := range []string{"sessions", "messages"} {
		path, err := d.chatPath(dir, chatID)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (d *DiskStorage) Snapshot() conversation.Set {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.set
}

// Update 先替换内存集合，再把变化的会话写入磁盘
func (d *DiskStorage) Update(fn func(conversation.Set) conversation.Set) (conversation.Set, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev := d.set
	d.set = fn(prev)

	if err := d.persist(prev, d.set); err != nil {
		return d.set, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return d.set, nil
}

// persist 不安全的标识不写盘也不进索引，其余会话照常保存
func (d *DiskStorage) persist(prev, next conversation.Set) error {
	var result *multierror.Error
	index := &SessionIndex{Active: next.ActiveID(), Sessions: make([]*IndexItem, 0, next.Len())}
	kept := make(map[string]struct{}, next.Len())

	for _, chat := range next.Chats() {
		kept[chat.ID] = struct{}{}

		if !safeChatID(chat.ID) {
			result = multierror.Append(result, fmt.Errorf("%w: unsafe chat id %q", ErrInvalidData, chat.ID))
			continue
		}

		old, existed := prev.Get(chat.ID)
		if !existed || old.Title != chat.Title || len(old.Messages) != len(chat.Messages) {
			if err := d.saveChat(chat); err != nil {
				return err
			}
		}

		index.Sessions = append(index.Sessions, &IndexItem{
			ID:           chat.ID,
			Title:        chat.Title,
			MessageCount: len(chat.Messages),
		})
	}

	if !safeChatID(index.Active) {
		index.Active = ""
	}

	for _, chat := range prev.Chats() {
		if _, ok := kept[chat.ID]; ok || !safeChatID(chat.ID) {
			continue
		}
		if err := d.removeChat(chat.ID); err != nil {
			return err
		}
	}

	if err := d.saveSessionIndex(index); err != nil {
		return err
	}
	return result.ErrorOrNil()
}

func (d *DiskStorage) Close() error {
	return nil
}

func (d *DiskStorage) Backup() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	backupDir := filepath.Join(d.dataDir, "backup", fmt.Sprintf("backup_%d", time.Now().UnixNano()))

	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	sourceDirs := []string{"sessions", "messages"}
	for _, dir := range sourceDirs {
		srcDir := filepath.Join(d.dataDir, dir)
		dstDir := filepath.Join(backupDir, dir)

		if err := os.MkdirAll(dstDir, 0755); err != nil {
			return fmt.Errorf("%w: %v", ErrFileOperation, err)
		}

		if err := copyDir(srcDir, dstDir); err != nil {
			return fmt.Errorf("%w: %v", ErrFileOperation, err)
		}
	}

	if err := copyFile(d.indexPath(), filepath.Join(backupDir, "sessions.json")); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	logger.Infof("Backup completed: %s", backupDir)
	return nil
}

func copyDir(src, dst string) error {
	files, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(src, file.Name()), filepath.Join(dst, file.Name())); err != nil {
			return err
		}
	}

	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	return os.WriteFile(dst, data, 0644)
}

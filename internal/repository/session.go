package repository

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/stopgame-client/internal/repository/storage"
)

var ErrSessionNotFound = errors.New("session not found")

// Session - the authenticated local identity, persisted across process
// restarts so a player lands back in their room after a reload.
type Session struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	IsHost   bool   `json:"isHost"`
	RoomCode string `json:"roomCode,omitempty"`
}

type SessionRepository interface {
	Save(session *Session) error
	Get() (*Session, error)
	Clear() error
}

type recordStorage interface {
	Read() ([]byte, error)
	Write(data []byte) error
	Delete() error
}

type fileSession struct {
	storage recordStorage
}

func NewSessionRepository(store recordStorage) SessionRepository {
	return &fileSession{storage: store}
}

func (that *fileSession) Save(session *Session) error {
	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err = that.storage.Write(sessionJSON); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	return nil
}

func (that *fileSession) Get() (*Session, error) {
	data, err := that.storage.Read()

	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrSessionNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var session Session
	if err = json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

func (that *fileSession) Clear() error {
	if err := that.storage.Delete(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	return nil
}

package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	sessionExpiryDurationMs = 7 * 24 * 60 * 60 * 1000 // 7 days in milliseconds
)

// SessionsService tracks ops UI sessions in memory.
type SessionsService struct {
	activeSessions map[string]int64
	mu             sync.RWMutex
	ticker         *time.Ticker
	done           chan struct{}
}

func NewSessionsService() *SessionsService {
	ticker := time.NewTicker(1 * time.Hour)
	done := make(chan struct{})

	ss := &SessionsService{
		activeSessions: make(map[string]int64),
		mu:             sync.RWMutex{},
		ticker:         ticker,
		done:           done,
	}

	// stopping the ticker alone never closes its channel, so the sweeper
	// selects on done to be able to exit
	go func() {
		for {
			select {
			case now := <-ticker.C:
				ss.mu.Lock()
				for sessionId, expiry := range ss.activeSessions {
					if expiry < now.UnixMilli() {
						delete(ss.activeSessions, sessionId)
					}
				}
				ss.mu.Unlock()
			case <-done:
				return
			}
		}
	}()

	return ss
}

func (ss *SessionsService) CreateSession() (string, int64) {
	sessionId := uuid.New().String()
	expiresAt := time.Now().UnixMilli() + sessionExpiryDurationMs

	ss.mu.Lock()
	ss.activeSessions[sessionId] = expiresAt
	ss.mu.Unlock()

	return sessionId, expiresAt
}

func (ss *SessionsService) IsSessionValid(sessionId string) bool {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	if expiry, exists := ss.activeSessions[sessionId]; exists {
		return time.Now().UnixMilli() < expiry
	}
	return false
}

func (ss *SessionsService) InvalidateSession(sessionId string) {
	ss.mu.Lock()
	delete(ss.activeSessions, sessionId)
	ss.mu.Unlock()
}

func (ss *SessionsService) Close() error {
	ss.ticker.Stop()
	close(ss.done)
	return nil
}

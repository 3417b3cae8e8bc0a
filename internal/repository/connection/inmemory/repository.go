package inmemory

import (
	"sync"

	"golang.org/x/exp/maps"

	"github.com/musictogether/server/internal/repository/connection"
)

type repo struct {
	idList map[string]*connection.Conn
	mu     sync.RWMutex
}

func NewRepo() *repo {
	return &repo{
		idList: make(map[string]*connection.Conn),
	}
}

func (r *repo) Add(conn *connection.Conn, sessionId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.idList[sessionId] != nil {
		return connection.ErrAlreadyExists
	}

	r.idList[sessionId] = conn

	return nil
}

func (r *repo) RemoveBySessionId(sessionId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.idList[sessionId]; !ok {
		return connection.ErrNotFound
	}

	delete(r.idList, sessionId)

	return nil
}

func (r *repo) GetConn(sessionId string) (*connection.Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.idList[sessionId]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return conn, nil
}

// SessionIds returns the ids of every registered connection.
func (r *repo) SessionIds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return maps.Keys(r.idList)
}

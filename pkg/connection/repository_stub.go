package connection

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/oauth2"
)

type RepositoryStub struct {
	mu     sync.RWMutex
	nextId int
	items  map[int]map[int]Connection // userId -> id -> connection
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{items: make(map[int]map[int]Connection)}
}

func (r *RepositoryStub) StoreConnection(ctx context.Context, userId int, c Connection) (Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextId++
	c.Id = r.nextId
	if r.items[userId] == nil {
		r.items[userId] = make(map[int]Connection)
	}
	r.items[userId][c.Id] = c
	return c, nil
}

func (r *RepositoryStub) GetConnection(ctx context.Context, userId int, id int) (Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[userId][id]
	if !ok {
		return Connection{}, ErrConnectionNotFound
	}
	return c, nil
}

func (r *RepositoryStub) GetConnections(ctx context.Context, userId int) ([]Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connections := make([]Connection, 0, len(r.items[userId]))
	for _, c := range r.items[userId] {
		connections = append(connections, c)
	}
	sort.Slice(connections, func(i, j int) bool { return connections[i].Id < connections[j].Id })
	return connections, nil
}

func (r *RepositoryStub) UpdateToken(ctx context.Context, userId int, id int, token *oauth2.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[userId][id]
	if !ok {
		return ErrConnectionNotFound
	}
	updated := *token
	if updated.RefreshToken == "" && c.Token != nil {
		updated.RefreshToken = c.Token.RefreshToken
	}
	c.Token = &updated
	r.items[userId][id] = c
	return nil
}

func (r *RepositoryStub) DeleteConnection(ctx context.Context, userId int, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[userId][id]; !ok {
		return ErrConnectionNotFound
	}
	delete(r.items[userId], id)
	return nil
}

func (r *RepositoryStub) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextId = 0
	r.items = make(map[int]map[int]Connection)
}

package users

import (
	"context"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu    sync.RWMutex
	users map[string]User
	now   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: make(map[string]User), now: time.Now}
}

func (r *MemoryRepo) SetResume(ctx context.Context, userID string, resume PermanentResume) (*PermanentResume, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now().UTC()
	user, ok := r.users[userID]
	if !ok {
		user = User{ID: userID, CreatedAt: now}
	}
	previous := user.Resume
	next := resume
	user.Resume = &next
	user.UpdatedAt = now
	r.users[userID] = user
	return previous, nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, userID string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	if user.Resume != nil {
		copied := *user.Resume
		user.Resume = &copied
	}
	return user, nil
}

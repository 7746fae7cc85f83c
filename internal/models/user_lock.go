package models

import (
	"sync"
)

type userLock struct {
	mu   sync.Mutex
	refs int
}

// UserLocks serializes work per user id, e.g. appeal submissions, so the
// pending-appeal check and the insert cannot interleave for one user.
type UserLocks struct {
	users map[int64]*userLock
	mu    sync.Mutex
}

// NewUserLocks creates an empty lock table
func NewUserLocks() *UserLocks {
	return &UserLocks{
		users: make(map[int64]*userLock),
	}
}

// Lock acquires the lock of userID and returns its release function.
func (l *UserLocks) Lock(userID int64) func() {
	l.mu.Lock()
	entry, exists := l.users[userID]
	if !exists {
		entry = &userLock{}
		l.users[userID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		defer l.mu.Unlock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.users, userID)
		}
	}
}

// Len returns the number of users currently holding or waiting for a lock.
func (l *UserLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.users)
}

package ledger

import (
	"hash/fnv"
	"sync"
)

const numShards = 64

// userLocks serializes work per user id. Users are spread across numShards
// shards by FNV-1a hash; each shard keeps a refcounted mutex per active user
// so idle users hold no memory.
type userLocks struct {
	shards [numShards]lockShard
}

type lockShard struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	l := &userLocks{}
	for i := range l.shards {
		l.shards[i].locks = make(map[string]*userLock)
	}
	return l
}

func (l *userLocks) shardOf(userId string) *lockShard {
	h := fnv.New32a()
	h.Write([]byte(userId))
	return &l.shards[h.Sum32()%numShards]
}

// lock blocks until the caller holds the user's mutex and returns the
// matching unlock function.
func (l *userLocks) lock(userId string) func() {
	sh := l.shardOf(userId)

	sh.mu.Lock()
	ul, ok := sh.locks[userId]
	if !ok {
		ul = &userLock{}
		sh.locks[userId] = ul
	}
	ul.refs++
	sh.mu.Unlock()

	ul.mu.Lock()

	return func() {
		ul.mu.Unlock()

		sh.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(sh.locks, userId)
		}
		sh.mu.Unlock()
	}
}

// active returns the number of users currently holding or waiting on a lock.
func (l *userLocks) active() int {
	n := 0
	for i := range l.shards {
		sh := &l.shards[i]
		sh.mu.Lock()
		n += len(sh.locks)
		sh.mu.Unlock()
	}
	return n
}

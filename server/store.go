package server

import (
	"time"

	"github.com/patrickmn/go-cache"

	"landing_copy_studio/workflow"
)

// sessionStore keeps sessions in memory; idle sessions expire after ttl.
type sessionStore struct {
	cache *cache.Cache
}

func newStore(ttl time.Duration) *sessionStore {
	cleanup := ttl / 2
	if cleanup > 10*time.Minute {
		cleanup = 10 * time.Minute
	}
	return &sessionStore{cache: cache.New(ttl, cleanup)}
}

func (s *sessionStore) set(sess *workflow.Session) {
	s.cache.Set(sess.ID, sess, cache.DefaultExpiration)
}

// get returns the session and extends its lifetime.
func (s *sessionStore) get(id string) (*workflow.Session, bool) {
	x, found := s.cache.Get(id)
	if !found {
		return nil, false
	}
	sess := x.(*workflow.Session)
	s.cache.Set(id, sess, cache.DefaultExpiration)
	return sess, true
}

func (s *sessionStore) delete(id string) {
	s.cache.Delete(id)
}

func (s *sessionStore) len() int {
	return s.cache.ItemCount()
}

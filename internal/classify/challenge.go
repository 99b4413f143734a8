// Package classify routes parsed platform updates to an interaction kind
// and tracks per-chat captcha challenges so free-text answers can be told
// apart from ordinary messages.
package classify

import (
	"sync"
	"time"
)

// Challenge is an outstanding captcha for one chat.
type Challenge struct {
	GiveawayID int64
	Question   string
	Options    []string
	ExpiresAt  time.Time
}

// ChallengeStore holds at most one pending challenge per chat. Entries
// expire after the configured TTL; an expired challenge is treated as absent
// and dropped on the next lookup.
type ChallengeStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	open map[int64]Challenge
	now  func() time.Time
}

// NewChallengeStore builds a store whose challenges live for ttl.
func NewChallengeStore(ttl time.Duration) *ChallengeStore {
	return &ChallengeStore{
		ttl:  ttl,
		open: make(map[int64]Challenge),
		now:  time.Now,
	}
}

// Issue opens (or replaces) the chat's pending challenge.
func (s *ChallengeStore) Issue(chatID, giveawayID int64, question string, options []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open[chatID] = Challenge{
		GiveawayID: giveawayID,
		Question:   question,
		Options:    options,
		ExpiresAt:  s.now().Add(s.ttl),
	}
}

// Pending returns the chat's live challenge, if any. Expired challenges are
// removed and reported as absent.
func (s *ChallengeStore) Pending(chatID int64) (Challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.open[chatID]
	if !ok {
		return Challenge{}, false
	}
	if s.now().After(ch.ExpiresAt) {
		delete(s.open, chatID)
		return Challenge{}, false
	}
	return ch, true
}

// Resolve removes the chat's challenge once answered, regardless of whether
// the answer was right.
func (s *ChallengeStore) Resolve(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.open, chatID)
}

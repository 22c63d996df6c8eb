package accountstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chainsafe/qtx-rewards/pkg/account"
)

type memoryStore struct {
	mu          sync.Mutex
	accounts    map[string]*account.Account
	byReferral  map[string]string
	completions map[string]map[string]time.Time
	submissions map[string]map[string]account.TaskSubmission
}

// NewMemoryStore creates an in-process account store. Updates are serialized
// by a single mutex.
func NewMemoryStore() *memoryStore {
	return &memoryStore{
		accounts:    make(map[string]*account.Account),
		byReferral:  make(map[string]string),
		completions: make(map[string]map[string]time.Time),
		submissions: make(map[string]map[string]account.TaskSubmission),
	}
}

func (s *memoryStore) CreateAccount(_ context.Context, acc *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[acc.UserID]; ok {
		return ErrAccountExists
	}
	if _, ok := s.byReferral[acc.ReferralCode]; ok {
		return ErrReferralCodeTaken
	}

	stored := acc.Clone()
	stored.Version = 1
	s.accounts[acc.UserID] = stored
	s.byReferral[acc.ReferralCode] = acc.UserID
	acc.Version = 1
	return nil
}

func (s *memoryStore) GetAccount(_ context.Context, userID string) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[userID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acc.Clone(), nil
}

func (s *memoryStore) GetAccountByReferralCode(_ context.Context, code string) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.byReferral[code]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return s.accounts[userID].Clone(), nil
}

func (s *memoryStore) ListAccounts(_ context.Context) ([]*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*account.Account, 0, len(s.accounts))
	for _, acc := range s.accounts {
		out = append(out, acc.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *memoryStore) UpdateAccount(_ context.Context, userID string, mutate MutateFunc) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.applyLocked(userID, mutate)
}

func (s *memoryStore) CompleteTask(_ context.Context, userID, taskID string, mutate MutateFunc) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[userID]; !ok {
		return nil, ErrAccountNotFound
	}
	if _, done := s.completions[userID][taskID]; done {
		return nil, ErrTaskCompleted
	}

	updated, err := s.applyLocked(userID, mutate)
	if err != nil {
		return nil, err
	}
	if s.completions[userID] == nil {
		s.completions[userID] = make(map[string]time.Time)
	}
	s.completions[userID][taskID] = time.Now()
	return updated, nil
}

func (s *memoryStore) applyLocked(userID string, mutate MutateFunc) (*account.Account, error) {
	current, ok := s.accounts[userID]
	if !ok {
		return nil, ErrAccountNotFound
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.UserID = current.UserID
	next.ReferralCode = current.ReferralCode
	next.Version = current.Version + 1

	s.accounts[userID] = next
	return next.Clone(), nil
}

func (s *memoryStore) HasCompletedTask(_ context.Context, userID, taskID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, done := s.completions[userID][taskID]
	return done, nil
}

func (s *memoryStore) CompletedTasks(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.completions[userID]))
	for id := range s.completions[userID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *memoryStore) SubmitTask(_ context.Context, sub *account.TaskSubmission) (*account.TaskSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[sub.UserID]; !ok {
		return nil, ErrAccountNotFound
	}
	if existing, ok := s.submissions[sub.UserID][sub.TaskID]; ok {
		if existing.ExternalID != sub.ExternalID {
			return nil, ErrSubmissionExists
		}
		return &existing, nil
	}

	stored := *sub
	if stored.SubmittedAt.IsZero() {
		stored.SubmittedAt = time.Now()
	}
	if s.submissions[sub.UserID] == nil {
		s.submissions[sub.UserID] = make(map[string]account.TaskSubmission)
	}
	s.submissions[sub.UserID][sub.TaskID] = stored
	return &stored, nil
}

func (s *memoryStore) GetTaskSubmission(_ context.Context, userID, taskID string) (*account.TaskSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.submissions[userID][taskID]
	if !ok {
		return nil, ErrSubmissionNotFound
	}
	return &sub, nil
}

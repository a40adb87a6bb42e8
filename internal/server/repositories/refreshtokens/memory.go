package refreshtokens

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmanankin/authvault/internal/common"
	"github.com/dmanankin/authvault/internal/server/models"
)

// MemoryStore is an in-process Store for development and tests. A single
// mutex guards both maps, so the revoked check and flip inside Rotate form
// one critical section.
type MemoryStore struct {
	mu     sync.Mutex
	byHash map[string]*models.RefreshToken
	byID   map[string]string
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byHash: make(map[string]*models.RefreshToken),
		byID:   make(map[string]string),
	}
}

func (s *MemoryStore) Create(ctx context.Context, userID string, validity time.Duration) (*models.RefreshToken, error) {
	value, err := newTokenValue()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	token := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     value,
		IssuedAt:  now,
		ExpiresAt: now.Add(validity),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(token, hashToken(value))
	return token, nil
}

// put stores a copy without the raw value. Callers must hold mu.
func (s *MemoryStore) put(token *models.RefreshToken, hash string) {
	stored := *token
	stored.Token = ""
	s.byHash[hash] = &stored
	s.byID[token.ID] = hash
}

func (s *MemoryStore) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byHash[hashToken(token)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	copied := *stored
	return &copied, nil
}

func (s *MemoryStore) Revoke(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if hash, ok := s.byID[id]; ok {
		if stored, ok := s.byHash[hash]; ok {
			stored.Revoked = true
		}
	}
	return nil
}

func (s *MemoryStore) Rotate(ctx context.Context, token string, userID string, validity time.Duration) (*models.RefreshToken, error) {
	value, err := newTokenValue()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byHash[hashToken(token)]
	if !ok || stored.Revoked {
		return nil, common.ErrTokenReused
	}
	stored.Revoked = true

	now := time.Now()
	created := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     value,
		IssuedAt:  now,
		ExpiresAt: now.Add(validity),
	}
	s.put(created, hashToken(value))
	return created, nil
}

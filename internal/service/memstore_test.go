package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"vidshare/internal/domain"
)

// memStore is an in-memory UsersStore and TokenStore. Account transactions
// run against a copy of the state that replaces the live state only when the
// callback succeeds.
type memStore struct {
	mu     sync.Mutex
	nextID int
	state  memState
}

type memState struct {
	users    map[string]domain.UserWithPassword
	external map[string]string
	tokens   map[string]domain.Token
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		users:    map[string]domain.UserWithPassword{},
		external: map[string]string{},
		tokens:   map[string]domain.Token{},
	}}
}

func (s memState) clone() memState {
	c := memState{
		users:    make(map[string]domain.UserWithPassword, len(s.users)),
		external: make(map[string]string, len(s.external)),
		tokens:   make(map[string]domain.Token, len(s.tokens)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.external {
		c.external[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	return c
}

func tokenKey(kind domain.TokenKind, hash string) string { return string(kind) + ":" + hash }

func (s *memStore) userByEmailLocked(email string) (domain.UserWithPassword, bool) {
	for _, u := range s.state.users {
		if u.Email == email {
			return u, true
		}
	}
	return domain.UserWithPassword{}, false
}

func (s *memStore) createLocked(email, username, passwordHash string, verified bool) (domain.User, error) {
	if _, ok := s.userByEmailLocked(email); ok {
		return domain.User{}, domain.ErrEmailTaken
	}
	s.nextID++
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	u := domain.UserWithPassword{
		User: domain.User{
			ID:            fmt.Sprintf("user-%d", s.nextID),
			Email:         email,
			Username:      username,
			EmailVerified: verified,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		PasswordHash: passwordHash,
	}
	s.state.users[u.ID] = u
	return u.User, nil
}

func (s *memStore) CreateUser(_ context.Context, email, username, passwordHash string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(email, username, passwordHash, false)
}

func (s *memStore) GetUserByID(_ context.Context, id string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.state.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u.User, nil
}

func (s *memStore) GetUserByEmail(_ context.Context, email string) (domain.UserWithPassword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.userByEmailLocked(email)
	if !ok {
		return domain.UserWithPassword{}, domain.ErrNotFound
	}
	return u, nil
}

func (s *memStore) GetUserByExternalAccount(_ context.Context, provider, subject string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.state.external[provider+":"+subject]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return s.state.users[id].User, nil
}

func (s *memStore) CreateUserWithExternalAccount(_ context.Context, provider, subject, email, username, passwordHash string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.createLocked(email, username, passwordHash, true)
	if err != nil {
		return domain.User{}, err
	}
	s.state.external[provider+":"+subject] = u.ID
	return u, nil
}

func (s *memStore) LinkExternalAccount(_ context.Context, userID, provider, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, id := range s.state.external {
		if id == userID && strings.HasPrefix(k, provider+":") {
			return domain.ErrExternalAccountExists
		}
	}
	s.state.external[provider+":"+subject] = userID
	return nil
}

func (s *memStore) SaveToken(_ context.Context, token domain.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token.Kind == domain.TokenPasswordReset {
		for k, t := range s.state.tokens {
			if t.Kind == domain.TokenPasswordReset && t.Subject == token.Subject {
				delete(s.state.tokens, k)
			}
		}
	}
	s.state.tokens[tokenKey(token.Kind, token.TokenHash)] = token
	return nil
}

func (s *memStore) WithAccountTx(ctx context.Context, fn func(tx domain.AccountTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memTx{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (s *memStore) tokenCount(kind domain.TokenKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.state.tokens {
		if t.Kind == kind {
			n++
		}
	}
	return n
}

func (s *memStore) deleteUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.users, id)
}

type memTx struct {
	state memState
}

func (tx *memTx) TakeToken(_ context.Context, kind domain.TokenKind, tokenHash, subject string) (domain.Token, error) {
	t, ok := tx.state.tokens[tokenKey(kind, tokenHash)]
	if !ok || (subject != "" && t.Subject != subject) {
		return domain.Token{}, domain.ErrNotFound
	}
	return t, nil
}

func (tx *memTx) DeleteToken(_ context.Context, kind domain.TokenKind, tokenHash string) error {
	delete(tx.state.tokens, tokenKey(kind, tokenHash))
	return nil
}

func (tx *memTx) MarkEmailVerified(_ context.Context, userID string) error {
	u, ok := tx.state.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.EmailVerified = true
	tx.state.users[userID] = u
	return nil
}

func (tx *memTx) SetPasswordHashByEmail(_ context.Context, email, passwordHash string) error {
	for id, u := range tx.state.users {
		if u.Email == email {
			u.PasswordHash = passwordHash
			tx.state.users[id] = u
			return nil
		}
	}
	return domain.ErrNotFound
}

type captureNotifier struct {
	mu           sync.Mutex
	verification map[string]string
	reset        map[string]string
	err          error
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{verification: map[string]string{}, reset: map[string]string{}}
}

func (n *captureNotifier) SendEmailVerification(_ context.Context, toEmail, rawToken string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verification[toEmail] = rawToken
	return n.err
}

func (n *captureNotifier) SendPasswordReset(_ context.Context, toEmail, rawToken string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reset[toEmail] = rawToken
	return n.err
}

// Package memory holds process-local stores used when no database is
// configured and in tests. Nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vidshare/internal/domain"
)

// Store implements the users, tokens and videos stores. Account
// transactions run against a copy of the state that replaces the live state
// only when the callback succeeds.
type Store struct {
	mu    sync.Mutex
	state state
	Now   func() time.Time
}

type state struct {
	users    map[string]domain.UserWithPassword
	external map[string]string
	tokens   map[string]domain.Token
	videos   map[string]domain.Video
}

func New() *Store {
	return &Store{
		state: state{
			users:    map[string]domain.UserWithPassword{},
			external: map[string]string{},
			tokens:   map[string]domain.Token{},
			videos:   map[string]domain.Video{},
		},
		Now: time.Now,
	}
}

func (s state) clone() state {
	c := state{
		users:    make(map[string]domain.UserWithPassword, len(s.users)),
		external: make(map[string]string, len(s.external)),
		tokens:   make(map[string]domain.Token, len(s.tokens)),
		videos:   s.videos,
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

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func tokenKey(kind domain.TokenKind, hash string) string { return string(kind) + ":" + hash }

func externalKey(provider, subject string) string { return provider + ":" + subject }

func (s *Store) userByEmailLocked(email string) (domain.UserWithPassword, bool) {
	for _, u := range s.state.users {
		if u.Email == email {
			return u, true
		}
	}
	return domain.UserWithPassword{}, false
}

func (s *Store) createUserLocked(email, username, passwordHash string, verified bool) (domain.User, error) {
	if _, ok := s.userByEmailLocked(email); ok {
		return domain.User{}, domain.ErrEmailTaken
	}
	now := s.now()
	u := domain.UserWithPassword{
		User: domain.User{
			ID:            uuid.NewString(),
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

func (s *Store) CreateUser(_ context.Context, email, username, passwordHash string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createUserLocked(email, username, passwordHash, false)
}

func (s *Store) GetUserByID(_ context.Context, id string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.state.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u.User, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (domain.UserWithPassword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.userByEmailLocked(email)
	if !ok {
		return domain.UserWithPassword{}, domain.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByExternalAccount(_ context.Context, provider, subject string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.state.external[externalKey(provider, subject)]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	u, ok := s.state.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u.User, nil
}

func (s *Store) CreateUserWithExternalAccount(_ context.Context, provider, subject, email, username, passwordHash string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.external[externalKey(provider, subject)]; ok {
		return domain.User{}, domain.ErrExternalAccountExists
	}
	u, err := s.createUserLocked(email, username, passwordHash, true)
	if err != nil {
		return domain.User{}, err
	}
	s.state.external[externalKey(provider, subject)] = u.ID
	return u, nil
}

func (s *Store) LinkExternalAccount(_ context.Context, userID, provider, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.users[userID]; !ok {
		return domain.ErrNotFound
	}
	if _, ok := s.state.external[externalKey(provider, subject)]; ok {
		return domain.ErrExternalAccountExists
	}
	for k, id := range s.state.external {
		if id == userID && strings.HasPrefix(k, provider+":") {
			return domain.ErrExternalAccountExists
		}
	}
	s.state.external[externalKey(provider, subject)] = userID
	return nil
}

// DeleteUser removes a user along with the rows that reference it:
// external links, verification tokens and videos. Reset tokens are keyed by
// email and stay behind. No API route deletes users; tests use this to
// model account removal.
func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.users[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.state.users, id)
	for k, uid := range s.state.external {
		if uid == id {
			delete(s.state.external, k)
		}
	}
	for k, t := range s.state.tokens {
		if t.Kind == domain.TokenEmailVerification && t.Subject == id {
			delete(s.state.tokens, k)
		}
	}
	for k, v := range s.state.videos {
		if v.UploadedBy == id {
			delete(s.state.videos, k)
		}
	}
	return nil
}

func (s *Store) SaveToken(_ context.Context, token domain.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch token.Kind {
	case domain.TokenEmailVerification:
		if _, ok := s.state.users[token.Subject]; !ok {
			return domain.ErrNotFound
		}
	case domain.TokenPasswordReset:
		for k, t := range s.state.tokens {
			if t.Kind == domain.TokenPasswordReset && t.Subject == token.Subject {
				delete(s.state.tokens, k)
			}
		}
	}
	s.state.tokens[tokenKey(token.Kind, token.TokenHash)] = token
	return nil
}

// CountTokens reports how many tokens of kind are stored. Test support only.
func (s *Store) CountTokens(kind domain.TokenKind) int {
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

func (s *Store) WithAccountTx(_ context.Context, fn func(tx domain.AccountTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &accountTx{state: s.state.clone(), now: s.now()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

type accountTx struct {
	state state
	now   time.Time
}

func (tx *accountTx) TakeToken(_ context.Context, kind domain.TokenKind, tokenHash, subject string) (domain.Token, error) {
	t, ok := tx.state.tokens[tokenKey(kind, tokenHash)]
	if !ok || (subject != "" && t.Subject != subject) {
		return domain.Token{}, domain.ErrNotFound
	}
	return t, nil
}

func (tx *accountTx) DeleteToken(_ context.Context, kind domain.TokenKind, tokenHash string) error {
	delete(tx.state.tokens, tokenKey(kind, tokenHash))
	return nil
}

func (tx *accountTx) MarkEmailVerified(_ context.Context, userID string) error {
	u, ok := tx.state.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.EmailVerified = true
	u.UpdatedAt = tx.now
	tx.state.users[userID] = u
	return nil
}

func (tx *accountTx) SetPasswordHashByEmail(_ context.Context, email, passwordHash string) error {
	for id, u := range tx.state.users {
		if u.Email == email {
			u.PasswordHash = passwordHash
			u.UpdatedAt = tx.now
			tx.state.users[id] = u
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *Store) CreateVideo(_ context.Context, nv domain.NewVideo) (domain.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.users[nv.UploadedBy]; !ok {
		return domain.Video{}, domain.ErrNotFound
	}
	for _, v := range s.state.videos {
		if v.ShareLink == nv.ShareLink {
			return domain.Video{}, domain.ErrValidation
		}
	}
	now := s.now()
	v := domain.Video{
		ID:          uuid.NewString(),
		Title:       nv.Title,
		Description: nv.Description,
		Locator:     nv.Locator,
		Size:        nv.Size,
		ShareLink:   nv.ShareLink,
		UploadedBy:  nv.UploadedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.state.videos[v.ID] = v
	return v, nil
}

func (s *Store) GetVideo(_ context.Context, id string) (domain.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.state.videos[id]
	if !ok {
		return domain.Video{}, domain.ErrNotFound
	}
	return v, nil
}

func (s *Store) RecordShareView(_ context.Context, shareLink string) (domain.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, v := range s.state.videos {
		if v.ShareLink == shareLink {
			v.Views++
			s.state.videos[id] = v
			return v, nil
		}
	}
	return domain.Video{}, domain.ErrNotFound
}

func (s *Store) ListVideos(_ context.Context, limit, offset int) ([]domain.Video, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageLocked(func(domain.Video) bool { return true }, limit, offset), s.countLocked(func(domain.Video) bool { return true }), nil
}

func (s *Store) ListVideosByUser(_ context.Context, userID string, limit, offset int) ([]domain.Video, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	match := func(v domain.Video) bool { return v.UploadedBy == userID }
	return s.pageLocked(match, limit, offset), s.countLocked(match), nil
}

func (s *Store) countLocked(match func(domain.Video) bool) int {
	n := 0
	for _, v := range s.state.videos {
		if match(v) {
			n++
		}
	}
	return n
}

// pageLocked orders newest first, then by id, like the SQL store.
func (s *Store) pageLocked(match func(domain.Video) bool, limit, offset int) []domain.Video {
	all := make([]domain.Video, 0, len(s.state.videos))
	for _, v := range s.state.videos {
		if match(v) {
			all = append(all, v)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []domain.Video{}
	}
	end := len(all)
	if limit >= 0 && limit < end-offset {
		end = offset + limit
	}
	return all[offset:end]
}

func (s *Store) UpdateVideo(_ context.Context, id string, patch domain.VideoPatch) (domain.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.state.videos[id]
	if !ok {
		return domain.Video{}, domain.ErrNotFound
	}
	if patch.Title != nil {
		v.Title = *patch.Title
	}
	if patch.Description != nil {
		v.Description = *patch.Description
	}
	v.UpdatedAt = s.now()
	s.state.videos[id] = v
	return v, nil
}

func (s *Store) DeleteVideo(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.videos[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.state.videos, id)
	return nil
}

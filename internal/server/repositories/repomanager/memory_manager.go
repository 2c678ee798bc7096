package repomanager

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/google/uuid"
)

// InMemoryRepositoryManager keeps accounts in process memory. It is used
// when no database DSN is configured and in tests. The DBTX handles passed
// to the factories are ignored.
type InMemoryRepositoryManager struct {
	store *memoryStore
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{store: newMemoryStore()}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context) error { return nil }
func (m *InMemoryRepositoryManager) Conn() dbx.DBTX                      { return nil }
func (m *InMemoryRepositoryManager) Close() error                        { return nil }

func (m *InMemoryRepositoryManager) Users(dbx.DBTX) users.Repository {
	return &memoryUsers{s: m.store}
}

func (m *InMemoryRepositoryManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return &memoryRefreshTokens{s: m.store}
}

// WithTx holds the store lock for the whole of fn and restores the previous
// state if fn fails. Repository calls made with the ctx passed to fn run
// inside that lock.
func (m *InMemoryRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) (err error) {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.clone()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
		if err != nil {
			s.restore(snapshot)
		}
	}()

	return fn(context.WithValue(ctx, memoryTxKey{}, s), nil)
}

type memoryTxKey struct{}

// memoryStore is a mutex-guarded set of indexes. Values handed out are
// always copies.
type memoryStore struct {
	mu sync.Mutex

	byID       map[string]*models.User
	byEmail    map[string]string
	byUserName map[string]string
	byToken    map[string]string
	roles      map[string][]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		byID:       make(map[string]*models.User),
		byEmail:    make(map[string]string),
		byUserName: make(map[string]string),
		byToken:    make(map[string]string),
		roles:      make(map[string][]string),
	}
}

// lock takes the store mutex unless ctx already runs inside WithTx.
func (s *memoryStore) lock(ctx context.Context) func() {
	if ctx.Value(memoryTxKey{}) == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *memoryStore) clone() *memoryStore {
	c := &memoryStore{
		byID:       make(map[string]*models.User, len(s.byID)),
		byEmail:    maps.Clone(s.byEmail),
		byUserName: maps.Clone(s.byUserName),
		byToken:    maps.Clone(s.byToken),
		roles:      make(map[string][]string, len(s.roles)),
	}
	for id, u := range s.byID {
		c.byID[id] = copyUser(u)
	}
	for id, r := range s.roles {
		c.roles[id] = slices.Clone(r)
	}
	return c
}

func (s *memoryStore) restore(from *memoryStore) {
	s.byID = from.byID
	s.byEmail = from.byEmail
	s.byUserName = from.byUserName
	s.byToken = from.byToken
	s.roles = from.roles
}

func copyUser(u *models.User) *models.User {
	c := *u
	if u.RefreshToken != nil {
		t := *u.RefreshToken
		c.RefreshToken = &t
	}
	return &c
}

type memoryUsers struct {
	s *memoryStore
}

func (r *memoryUsers) Create(ctx context.Context, user *models.User) (*models.User, error) {
	defer r.s.lock(ctx)()

	if _, ok := r.s.byEmail[user.Email]; ok {
		return nil, common.ErrEmailTaken
	}
	if _, ok := r.s.byUserName[user.UserName]; ok {
		return nil, common.ErrUserNameTaken
	}

	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()
	user.RefreshToken = nil

	r.s.byID[user.ID] = copyUser(user)
	r.s.byEmail[user.Email] = user.ID
	r.s.byUserName[user.UserName] = user.ID
	return user, nil
}

func (r *memoryUsers) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	defer r.s.lock(ctx)()

	id, ok := r.s.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyUser(r.s.byID[id]), nil
}

func (r *memoryUsers) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	defer r.s.lock(ctx)()

	u, ok := r.s.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyUser(u), nil
}

func (r *memoryUsers) UserNameExists(ctx context.Context, userName string) (bool, error) {
	defer r.s.lock(ctx)()

	_, ok := r.s.byUserName[userName]
	return ok, nil
}

func (r *memoryUsers) Update(ctx context.Context, user *models.User) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.byID[user.ID]
	if !ok {
		return common.ErrorNotFound
	}
	if owner, taken := r.s.byEmail[user.Email]; taken && owner != user.ID {
		return common.ErrEmailTaken
	}

	delete(r.s.byEmail, stored.Email)
	stored.Email = user.Email
	stored.FirstName = user.FirstName
	stored.LastName = user.LastName
	stored.Gender = user.Gender
	r.s.byEmail[stored.Email] = stored.ID
	return nil
}

func (r *memoryUsers) Delete(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()

	u, ok := r.s.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	delete(r.s.byID, id)
	delete(r.s.byEmail, u.Email)
	delete(r.s.byUserName, u.UserName)
	if u.RefreshToken != nil {
		delete(r.s.byToken, u.RefreshToken.TokenHash)
	}
	delete(r.s.roles, id)
	return nil
}

func (r *memoryUsers) Roles(ctx context.Context, userID string) ([]string, error) {
	defer r.s.lock(ctx)()

	return slices.Clone(r.s.roles[userID]), nil
}

func (r *memoryUsers) AddRole(ctx context.Context, userID, role string) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.byID[userID]; !ok {
		return common.ErrorNotFound
	}
	current := r.s.roles[userID]
	if i, found := slices.BinarySearch(current, role); !found {
		r.s.roles[userID] = slices.Insert(current, i, role)
	}
	return nil
}

type memoryRefreshTokens struct {
	s *memoryStore
}

func (r *memoryRefreshTokens) Save(ctx context.Context, userID string, tokenHash string, expires time.Time) error {
	defer r.s.lock(ctx)()

	u, ok := r.s.byID[userID]
	if !ok {
		return common.ErrorNotFound
	}
	if owner, taken := r.s.byToken[tokenHash]; taken && owner != userID {
		return errTokenHashTaken
	}

	if u.RefreshToken != nil {
		delete(r.s.byToken, u.RefreshToken.TokenHash)
	}
	u.RefreshToken = &models.RefreshToken{UserID: userID, TokenHash: tokenHash, Expires: expires}
	r.s.byToken[tokenHash] = userID
	return nil
}

func (r *memoryRefreshTokens) Find(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	defer r.s.lock(ctx)()

	id, ok := r.s.byToken[tokenHash]
	if !ok {
		return nil, common.ErrorNotFound
	}
	t := *r.s.byID[id].RefreshToken
	return &t, nil
}

func (r *memoryRefreshTokens) Delete(ctx context.Context, userID string, tokenHash string) error {
	defer r.s.lock(ctx)()

	u, ok := r.s.byID[userID]
	if !ok || u.RefreshToken == nil || u.RefreshToken.TokenHash != tokenHash {
		return common.ErrorNotFound
	}
	delete(r.s.byToken, tokenHash)
	u.RefreshToken = nil
	return nil
}

var errTokenHashTaken = errors.New("refresh token hash already assigned")

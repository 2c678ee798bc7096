package repomanager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createUser(t *testing.T, m *InMemoryRepositoryManager, email, name string) *models.User {
	t.Helper()
	u, err := m.Users(m.Conn()).Create(context.Background(), &models.User{
		UserName: name, Email: email, FirstName: "F", LastName: "L", PasswordHash: "h",
	})
	require.NoError(t, err)
	return u
}

func TestMemoryUsers_CRUD(t *testing.T) {
	ctx := context.Background()
	m := NewInMemoryRepositoryManager()
	repo := m.Users(m.Conn())

	u := createUser(t, m, "a@x.io", "ann lee")
	assert.NotEmpty(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	_, err := repo.Create(ctx, &models.User{UserName: "other", Email: "a@x.io"})
	assert.ErrorIs(t, err, common.ErrEmailTaken)
	_, err = repo.Create(ctx, &models.User{UserName: "ann lee", Email: "b@x.io"})
	assert.ErrorIs(t, err, common.ErrUserNameTaken)

	got, err := repo.GetUserByEmail(ctx, "a@x.io")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	// Returned values are copies.
	got.FirstName = "mutated"
	again, err := repo.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "F", again.FirstName)

	exists, err := repo.UserNameExists(ctx, "ann lee")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, repo.Update(ctx, &models.User{ID: u.ID, Email: "new@x.io", FirstName: "N", LastName: "M", Gender: "F"}))
	_, err = repo.GetUserByEmail(ctx, "a@x.io")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	got, err = repo.GetUserByEmail(ctx, "new@x.io")
	require.NoError(t, err)
	assert.Equal(t, "N", got.FirstName)
	assert.Equal(t, "ann lee", got.UserName, "user name is not a profile field")

	require.NoError(t, repo.Delete(ctx, u.ID))
	assert.ErrorIs(t, repo.Delete(ctx, u.ID), common.ErrorNotFound)
	_, err = repo.GetUserByID(ctx, u.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemoryUsers_UpdateEmailConflict(t *testing.T) {
	ctx := context.Background()
	m := NewInMemoryRepositoryManager()
	a := createUser(t, m, "a@x.io", "a")
	createUser(t, m, "b@x.io", "b")

	err := m.Users(nil).Update(ctx, &models.User{ID: a.ID, Email: "b@x.io"})
	assert.ErrorIs(t, err, common.ErrEmailTaken)

	err = m.Users(nil).Update(ctx, &models.User{ID: "ghost", Email: "c@x.io"})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemoryUsers_Roles(t *testing.T) {
	ctx := context.Background()
	m := NewInMemoryRepositoryManager()
	u := createUser(t, m, "a@x.io", "a")
	repo := m.Users(nil)

	require.NoError(t, repo.AddRole(ctx, u.ID, "user"))
	require.NoError(t, repo.AddRole(ctx, u.ID, "admin"))
	require.NoError(t, repo.AddRole(ctx, u.ID, "user"))

	roles, err := repo.Roles(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "user"}, roles)

	assert.ErrorIs(t, repo.AddRole(ctx, "ghost", "user"), common.ErrorNotFound)

	require.NoError(t, repo.Delete(ctx, u.ID))
	roles, err = repo.Roles(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestMemoryRefreshTokens(t *testing.T) {
	ctx := context.Background()
	m := NewInMemoryRepositoryManager()
	u := createUser(t, m, "a@x.io", "a")
	other := createUser(t, m, "b@x.io", "b")
	repo := m.RefreshTokens(nil)
	exp := time.Now().Add(time.Hour)

	assert.ErrorIs(t, repo.Save(ctx, "ghost", "fp", exp), common.ErrorNotFound)

	require.NoError(t, repo.Save(ctx, u.ID, "fp1", exp))
	tok, err := repo.Find(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, tok.UserID)
	assert.True(t, tok.Expires.Equal(exp))

	stored, err := m.Users(nil).GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, "fp1", stored.RefreshToken.TokenHash)

	// A new login overwrites the previous pair.
	require.NoError(t, repo.Save(ctx, u.ID, "fp2", exp))
	_, err = repo.Find(ctx, "fp1")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	assert.Error(t, repo.Save(ctx, other.ID, "fp2", exp), "fingerprint is unique across accounts")

	assert.ErrorIs(t, repo.Delete(ctx, u.ID, "fp1"), common.ErrorNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, other.ID, "fp2"), common.ErrorNotFound)
	require.NoError(t, repo.Delete(ctx, u.ID, "fp2"))
	assert.ErrorIs(t, repo.Delete(ctx, u.ID, "fp2"), common.ErrorNotFound)

	stored, err = m.Users(nil).GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.RefreshToken)
}

func TestMemoryWithTx_RollbackRestoresState(t *testing.T) {
	ctx := context.Background()
	m := NewInMemoryRepositoryManager()
	boom := errors.New("boom")

	err := m.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		u, err := m.Users(tx).Create(ctx, &models.User{UserName: "a", Email: "a@x.io"})
		if err != nil {
			return err
		}
		if err := m.Users(tx).AddRole(ctx, u.ID, "user"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = m.Users(nil).GetUserByEmail(ctx, "a@x.io")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	exists, _ := m.Users(nil).UserNameExists(ctx, "a")
	assert.False(t, exists)
}

func TestMemoryWithTx_Commit(t *testing.T) {
	ctx := context.Background()
	m := NewInMemoryRepositoryManager()

	var id string
	err := m.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		u, err := m.Users(tx).Create(ctx, &models.User{UserName: "a", Email: "a@x.io"})
		if err != nil {
			return err
		}
		id = u.ID
		return m.Users(tx).AddRole(ctx, u.ID, "user")
	})
	require.NoError(t, err)

	roles, err := m.Users(nil).Roles(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"user"}, roles)
}

func TestMemoryStore_ConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	m := NewInMemoryRepositoryManager()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Users(nil).Create(ctx, &models.User{UserName: "same", Email: "same@x.io"})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
}

func TestInMemoryRepositoryManager_Noops(t *testing.T) {
	var m RepositoryManager = NewInMemoryRepositoryManager()
	assert.NoError(t, m.RunMigrations(context.Background()))
	assert.Nil(t, m.Conn())
	assert.NoError(t, m.Close())
}

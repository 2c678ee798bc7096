// Package services contains server-side business logic. AuthService
// registers accounts, authenticates password logins, issues access tokens
// and manages the single refresh token each account may hold.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

// Revocation outcome messages.
const (
	MsgRevoked       = "Refresh token revoked successfully"
	MsgRevokeInvalid = "invalid refresh token"
	MsgRevokeExpired = "refresh token expired"
	MsgRevokeFailed  = "failed to revoke refresh token"
)

// maxRegisterAttempts bounds retries when a concurrent registration takes
// the derived user name between the existence check and the insert.
const maxRegisterAttempts = 5

// TokenIssuer signs access tokens for a claim set.
type TokenIssuer interface {
	Issue(claims auth.ClaimSet) (*auth.AccessToken, error)
}

type AuthService struct {
	repomanager          repomanager.RepositoryManager
	hasher               cryptox.PasswordHasher
	issuer               TokenIssuer
	logger               logging.Logger
	refreshTokenValidity time.Duration
	defaultRole          string
	dummyHash            string
	now                  func() time.Time
}

// NewAuthService wires the service. It holds only immutable configuration
// and is safe for concurrent use.
func NewAuthService(m repomanager.RepositoryManager, hasher cryptox.PasswordHasher, issuer TokenIssuer,
	logger logging.Logger, cfg *config.Config) *AuthService {

	if logger == nil {
		logger = logging.Nop{}
	}
	// Verified against for unknown emails so both login failure paths cost
	// one hash verification.
	dummy, _ := hasher.Hash("gophauth-dummy-password")

	return &AuthService{
		repomanager:          m,
		hasher:               hasher,
		issuer:               issuer,
		logger:               logger,
		refreshTokenValidity: cfg.RefreshTokenValidityDuration,
		defaultRole:          cfg.DefaultRole,
		dummyHash:            dummy,
		now:                  time.Now,
	}
}

// Register creates an account with a derived, collision-free user name and
// the default role, then issues an access token for it.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	repo := s.repomanager.Users(s.repomanager.Conn())

	if _, err := repo.GetUserByEmail(ctx, req.Email); err == nil {
		return nil, common.ErrDuplicateAccount
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, persistence(err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var user *models.User
	for attempt := 1; ; attempt++ {
		user, err = s.createAccount(ctx, req, hash)
		if err == nil {
			break
		}
		if errors.Is(err, common.ErrUserNameTaken) && attempt < maxRegisterAttempts {
			s.logger.Debug(ctx, "derived user name taken concurrently, retrying", "attempt", attempt)
			continue
		}
		switch {
		case errors.Is(err, common.ErrEmailTaken):
			return nil, common.ErrDuplicateAccount
		case errors.Is(err, common.ErrPersistence):
			return nil, err
		}
		return nil, persistence(err)
	}

	token, view, err := s.issueFor(ctx, repo, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return &RegisterResult{Account: view, AccessToken: token}, nil
}

func (s *AuthService) createAccount(ctx context.Context, req RegisterRequest, hash string) (*models.User, error) {
	var created *models.User

	err := s.repomanager.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		name, err := s.deriveUserName(ctx, repo, req.FirstName, req.LastName)
		if err != nil {
			return err
		}

		created, err = repo.Create(ctx, &models.User{
			UserName:     name,
			Email:        req.Email,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Gender:       req.Gender,
			PasswordHash: hash,
		})
		if err != nil {
			if errors.Is(err, common.ErrEmailTaken) || errors.Is(err, common.ErrUserNameTaken) {
				return err
			}
			return persistence(err)
		}

		if s.defaultRole != "" {
			if err := repo.AddRole(ctx, created.ID, s.defaultRole); err != nil {
				return persistence(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// deriveUserName lower-cases "first last" and appends 1, 2, ... until the
// name is free.
func (s *AuthService) deriveUserName(ctx context.Context, repo users.Repository, first, last string) (string, error) {
	base := strings.ToLower(first + " " + last)
	candidate := base

	for n := 1; ; n++ {
		exists, err := repo.UserNameExists(ctx, candidate)
		if err != nil {
			return "", persistence(err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = base + strconv.Itoa(n)
	}
}

// Login verifies the password and starts a session: a fresh access token and
// a new refresh secret whose fingerprint replaces any previous one.
// Unknown email and wrong password fail identically.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	repo := s.repomanager.Users(s.repomanager.Conn())

	user, err := repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			return nil, common.ErrInvalidCredentials
		}
		return nil, persistence(err)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		s.logger.Info(ctx, "login failed", "user_id", user.ID)
		return nil, common.ErrInvalidCredentials
	}

	token, view, err := s.issueFor(ctx, repo, user)
	if err != nil {
		return nil, err
	}

	secret := auth.GenerateRefreshSecret()
	expires := s.now().Add(s.refreshTokenValidity)
	err = s.repomanager.RefreshTokens(s.repomanager.Conn()).Save(ctx, user.ID, auth.Fingerprint(secret), expires)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, persistence(err)
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return &LoginResult{
		AccessToken:           token,
		RefreshToken:          secret,
		RefreshTokenExpiresAt: expires,
		Account:               view,
	}, nil
}

// RefreshAccessToken issues a new access token for the holder of a valid
// refresh secret. The stored refresh token is left as is.
func (s *AuthService) RefreshAccessToken(ctx context.Context, secret string) (*RefreshResult, error) {
	stored, err := s.lookupRefreshToken(ctx, secret)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.repomanager.Conn())
	user, err := repo.GetUserByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidRefreshToken
		}
		return nil, persistence(err)
	}

	token, view, err := s.issueFor(ctx, repo, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "access token refreshed", "user_id", user.ID)
	return &RefreshResult{AccessToken: token, Account: view}, nil
}

// RevokeRefreshToken clears the account's refresh token if secret matches
// it and has not expired. Failures are reported in the result.
func (s *AuthService) RevokeRefreshToken(ctx context.Context, secret string) RevokeResult {
	stored, err := s.lookupRefreshToken(ctx, secret)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidRefreshToken):
			return RevokeResult{Message: MsgRevokeInvalid}
		case errors.Is(err, common.ErrRefreshTokenExpired):
			return RevokeResult{Message: MsgRevokeExpired}
		}
		s.logger.Error(ctx, "revoke lookup failed", "error", err)
		return RevokeResult{Message: MsgRevokeFailed}
	}

	// Conditional on the fingerprint, so a concurrent login's new token is
	// never cleared by a revoke of the old one.
	if err := s.repomanager.RefreshTokens(s.repomanager.Conn()).Delete(ctx, stored.UserID, stored.TokenHash); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return RevokeResult{Message: MsgRevokeInvalid}
		}
		s.logger.Error(ctx, "revoke failed", "user_id", stored.UserID, "error", err)
		return RevokeResult{Message: MsgRevokeFailed}
	}

	s.logger.Info(ctx, "refresh token revoked", "user_id", stored.UserID)
	return RevokeResult{Success: true, Message: MsgRevoked}
}

func (s *AuthService) lookupRefreshToken(ctx context.Context, secret string) (*models.RefreshToken, error) {
	stored, err := s.repomanager.RefreshTokens(s.repomanager.Conn()).Find(ctx, auth.Fingerprint(secret))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidRefreshToken
		}
		return nil, persistence(err)
	}
	if stored.Expired(s.now()) {
		return nil, common.ErrRefreshTokenExpired
	}
	return stored, nil
}

func (s *AuthService) GetAccountByID(ctx context.Context, id string) (*AccountView, error) {
	repo := s.repomanager.Users(s.repomanager.Conn())

	user, err := repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrAccountNotFound
		}
		return nil, persistence(err)
	}

	roles, err := repo.Roles(ctx, user.ID)
	if err != nil {
		return nil, persistence(err)
	}
	view := newAccountView(user, roles)
	return &view, nil
}

// GetCurrentAccount loads the account of the caller named by resolve.
func (s *AuthService) GetCurrentAccount(ctx context.Context, resolve IdentityResolver) (*AccountView, error) {
	if resolve == nil {
		return nil, common.ErrAccountNotFound
	}
	id, ok := resolve()
	if !ok || id == "" {
		return nil, common.ErrAccountNotFound
	}
	return s.GetAccountByID(ctx, id)
}

// UpdateAccount replaces the profile fields. Password, user name and
// refresh token are not affected.
func (s *AuthService) UpdateAccount(ctx context.Context, id string, req UpdateRequest) (*AccountView, error) {
	repo := s.repomanager.Users(s.repomanager.Conn())

	user, err := repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrAccountNotFound
		}
		return nil, persistence(err)
	}

	user.Email = req.Email
	user.FirstName = req.FirstName
	user.LastName = req.LastName
	user.Gender = req.Gender

	if err := repo.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, common.ErrEmailTaken):
			return nil, common.ErrDuplicateAccount
		case errors.Is(err, common.ErrorNotFound):
			return nil, common.ErrAccountNotFound
		}
		return nil, persistence(err)
	}

	roles, err := repo.Roles(ctx, user.ID)
	if err != nil {
		return nil, persistence(err)
	}

	s.logger.Info(ctx, "user updated", "user_id", user.ID)
	view := newAccountView(user, roles)
	return &view, nil
}

func (s *AuthService) DeleteAccount(ctx context.Context, id string) error {
	if err := s.repomanager.Users(s.repomanager.Conn()).Delete(ctx, id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrAccountNotFound
		}
		return persistence(err)
	}
	s.logger.Info(ctx, "user deleted", "user_id", id)
	return nil
}

// issueFor re-reads the account's roles and signs an access token from the
// resulting claims.
func (s *AuthService) issueFor(ctx context.Context, repo users.Repository, user *models.User) (*auth.AccessToken, AccountView, error) {
	roles, err := repo.Roles(ctx, user.ID)
	if err != nil {
		return nil, AccountView{}, persistence(err)
	}

	token, err := s.issuer.Issue(auth.BuildClaims(user, roles))
	if err != nil {
		return nil, AccountView{}, fmt.Errorf("issue access token: %w", err)
	}
	return token, newAccountView(user, roles), nil
}

func persistence(err error) error {
	return fmt.Errorf("%w: %w", common.ErrPersistence, err)
}

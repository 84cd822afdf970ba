// Package services contains server-side business logic. This file implements
// AuthService: registration, login, refresh-token rotation with reuse
// detection, and logout.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/moviemate/authkeeper/internal/common"
	"github.com/moviemate/authkeeper/internal/dbx"
	"github.com/moviemate/authkeeper/internal/server/auth"
	"github.com/moviemate/authkeeper/internal/server/config"
	"github.com/moviemate/authkeeper/internal/server/models"
	"github.com/moviemate/authkeeper/internal/server/repositories/repomanager"
	"github.com/moviemate/authkeeper/internal/server/secrets"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Meta carries per-request client attributes recorded alongside each issued
// refresh token.
type Meta struct {
	UserAgent string
	IP        string
}

// errLostRace signals inside the rotation transaction that another caller
// rotated the same record first. Never escapes Refresh.
var errLostRace = errors.New("rotation race lost")

// AuthService provides authentication operations:
//   - Register: create users
//   - Login: verify credentials and mint a fresh token family
//   - Refresh: rotate refresh tokens, detecting and punishing reuse
//   - Logout: revoke the token family of the presented refresh token
type AuthService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	accessSecret                 []byte
	refreshSecret                []byte
	pepper                       string
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
}

// NewAuthService constructs an AuthService using repositories and server config.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *AuthService {
	return &AuthService{
		db:                           db,
		repomanager:                  m,
		accessSecret:                 []byte(cfg.AccessTokenSecret),
		refreshSecret:                []byte(cfg.RefreshTokenSecret),
		pepper:                       cfg.TokenHashPepper,
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

// Register creates a new user with an argon2id password hash. A duplicate
// email yields common.ErrorConflict.
func (s *AuthService) Register(ctx context.Context, email, password, displayName, locale string) (*models.User, error) {
	hash, err := secrets.HashPassword(password)
	if err != nil {
		return nil, common.ErrorInternal
	}

	user := &models.User{Email: email, DisplayName: displayName, PreferredLocale: locale, PasswordHash: hash}
	repo := s.repomanager.Users(s.db)
	u, err := repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("error creating user: %v", err)
	}
	return u, nil
}

// Login verifies the credentials and, on success, mints a token pair rooted
// in a brand-new family. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string, meta Meta) (*TokenPair, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, common.ErrorInternal
	}

	ok, err := secrets.VerifyPassword(user.PasswordHash, password)
	if err != nil || !ok {
		return nil, common.ErrInvalidCredentials
	}

	// Sign and hash before opening the transaction; only the insert runs on
	// the store connection.
	familyID := uuid.NewString()
	jti := uuid.NewString()
	pair, rec, err := s.buildTokenPair(user, jti, familyID, meta)
	if err != nil {
		return nil, err
	}

	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.RefreshRecords(tx).Create(ctx, rec)
	}); err != nil {
		return nil, common.ErrorInternal
	}
	return pair, nil
}

// Refresh validates a refresh token, rotates it transactionally, and returns
// a fresh TokenPair. A token whose record is already revoked, expired, or
// whose hash does not match the stored one is treated as stolen: the whole
// family is revoked and the caller gets common.ErrRefreshRevoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta Meta) (*TokenPair, error) {
	claims, err := auth.ParseRefreshToken(refreshToken, s.refreshSecret)
	if err != nil || claims.ID == "" || claims.FamilyID == "" {
		return nil, common.ErrInvalidToken
	}

	repo := s.repomanager.RefreshRecords(s.db)
	rec, err := repo.FindByJTI(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error searching refresh record: %v", err)
	}

	now := time.Now()
	hash := secrets.HashRefreshToken(refreshToken, s.pepper)
	hashMatches := subtle.ConstantTimeCompare([]byte(rec.TokenHash), []byte(hash)) == 1

	// A revoked record means this token was already rotated out: someone is
	// replaying it. A wrong hash means the presented token is not the one the
	// record was written for. Both punish the whole family.
	if !rec.Live(now) || !hashMatches {
		return nil, s.revokeFamilyRevoked(ctx, rec.FamilyID, now)
	}

	repoUsers := s.repomanager.Users(s.db)
	user, err := repoUsers.GetByID(ctx, rec.UserID)
	if err != nil {
		return nil, common.ErrorInternal
	}

	// Sign and hash before opening the transaction, so only the conditional
	// update and the insert run on the store connection.
	jti := uuid.NewString()
	pair, succ, err := s.buildTokenPair(user, jti, rec.FamilyID, meta)
	if err != nil {
		return nil, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := s.repomanager.RefreshRecords(tx)

		affected, updErr := repoTx.MarkReplaced(ctx, rec.JTI, jti, time.Now())
		if updErr != nil {
			return fmt.Errorf("error rotating refresh record: %v", updErr)
		}
		if affected == 0 {
			// Another caller rotated this record between our read and now.
			return errLostRace
		}

		if crtErr := repoTx.Create(ctx, succ); crtErr != nil {
			return fmt.Errorf("error creating refresh record: %v", crtErr)
		}
		return nil
	})
	if errors.Is(err, errLostRace) {
		// Concurrent use of one token is indistinguishable from replay.
		return nil, s.revokeFamilyRevoked(ctx, rec.FamilyID, time.Now())
	}
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout revokes the family of the presented refresh token. Invalid or
// expired tokens are ignored: logout never fails from the caller's view
// unless the store does.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := auth.ParseRefreshToken(refreshToken, s.refreshSecret)
	if err != nil || claims.FamilyID == "" {
		return nil
	}

	repo := s.repomanager.RefreshRecords(s.db)
	if _, err := repo.RevokeFamily(ctx, claims.FamilyID, time.Now()); err != nil {
		return fmt.Errorf("error revoking family: %v", err)
	}
	return nil
}

// GetUser returns the user behind an authenticated request.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}
	return user, nil
}

// --- helpers below ---

// revokeFamilyRevoked revokes every live record of the family and returns
// ErrRefreshRevoked, or the store error if the revocation itself failed.
func (s *AuthService) revokeFamilyRevoked(ctx context.Context, familyID string, now time.Time) error {
	repo := s.repomanager.RefreshRecords(s.db)
	if _, err := repo.RevokeFamily(ctx, familyID, now); err != nil {
		return fmt.Errorf("error revoking family: %v", err)
	}
	return common.ErrRefreshRevoked
}

// buildTokenPair signs both tokens and builds the successor record, without
// touching the store.
func (s *AuthService) buildTokenPair(user *models.User, jti, familyID string, meta Meta) (*TokenPair, *models.RefreshRecord, error) {
	access, err := auth.GenerateAccessToken(user.ID, user.Email, s.accessSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, nil, common.ErrorInternal
	}
	refresh, err := auth.GenerateRefreshToken(user.ID, user.Email, jti, familyID, s.refreshSecret, s.refreshTokenValidityDuration)
	if err != nil {
		return nil, nil, common.ErrorInternal
	}

	now := time.Now()
	rec := &models.RefreshRecord{
		JTI:       jti,
		FamilyID:  familyID,
		UserID:    user.ID,
		TokenHash: secrets.HashRefreshToken(refresh, s.pepper),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.refreshTokenValidityDuration),
		UserAgent: meta.UserAgent,
		IP:        meta.IP,
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, rec, nil
}

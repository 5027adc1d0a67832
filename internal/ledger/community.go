package ledger

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"github.com/hongminglow/points-ledger/internal/models"
	"github.com/hongminglow/points-ledger/internal/storage"
)

// Join codes are JoinCodeLength characters drawn from JoinCodeAlphabet.
const (
	JoinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	JoinCodeLength   = 6
)

const maxCodeAttempts = 10

// GenerateJoinCode returns a uniformly random join code.
func GenerateJoinCode() (string, error) {
	var b strings.Builder
	b.Grow(JoinCodeLength)
	limit := big.NewInt(int64(len(JoinCodeAlphabet)))
	for j := 0; j < JoinCodeLength; j++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate join code: %w", err)
		}
		b.WriteByte(JoinCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// ValidJoinCode reports whether code has the join code shape.
func ValidJoinCode(code string) bool {
	if len(code) != JoinCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(JoinCodeAlphabet, rune(code[i])) {
			return false
		}
	}
	return true
}

// CreateCommunity creates a community owned by ownerID with a fresh join
// code and makes the owner its first member.
func (s *Service) CreateCommunity(ctx context.Context, ownerID, name string) (models.Community, error) {
	name = strings.TrimSpace(name)
	if ownerID == "" {
		return models.Community{}, validationf("owner id is required")
	}
	if name == "" {
		return models.Community{}, validationf("community name is required")
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.codes()
		if err != nil {
			return models.Community{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if _, err := s.store.FindCommunityByCode(ctx, code); err == nil {
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return models.Community{}, storeErr(err, "check join code")
		}

		c, err := s.store.CreateCommunity(ctx, models.Community{
			ID:          uuid.NewString(),
			OwnerUserID: ownerID,
			Name:        name,
			JoinCode:    code,
		})
		if errors.Is(err, storage.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return models.Community{}, storeErr(err, "create community")
		}
		s.log.Info("community created", "community_id", c.ID, "owner_id", ownerID)
		return c, nil
	}
	return models.Community{}, fmt.Errorf("%w: no free join code after %d attempts", ErrUnavailable, maxCodeAttempts)
}

// JoinCommunityByCode adds userID to the community with the given join
// code. Joining a community twice is a no-op.
func (s *Service) JoinCommunityByCode(ctx context.Context, userID, code string) (models.Community, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if userID == "" {
		return models.Community{}, validationf("user id is required")
	}
	if !ValidJoinCode(code) {
		return models.Community{}, validationf("join code must be %d characters of A-Z or 0-9", JoinCodeLength)
	}
	c, err := s.store.FindCommunityByCode(ctx, code)
	if err != nil {
		return models.Community{}, storeErr(err, "community with code "+code)
	}
	if err := s.store.AddMembership(ctx, userID, c.ID); err != nil {
		return models.Community{}, storeErr(err, "join community "+c.ID)
	}
	return c, nil
}

// Communities lists the communities userID belongs to.
func (s *Service) Communities(ctx context.Context, userID string) ([]models.Community, error) {
	u, err := s.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	cs, err := s.store.ListCommunities(ctx, u.Communities)
	if err != nil {
		return nil, storeErr(err, "list communities")
	}
	return cs, nil
}

package ledger

import (
	"context"

	"github.com/hongminglow/points-ledger/internal/models"
)

// Profile is the user's balance record with derived badges.
type Profile struct {
	User   models.User `json:"user"`
	Badges []Badge     `json:"badges"`
}

// Profile loads the user's profile.
func (s *Service) Profile(ctx context.Context, userID string) (Profile, error) {
	u, err := s.User(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{User: u, Badges: Badges(u.LifetimePoints)}, nil
}

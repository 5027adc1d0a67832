package ledger

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/hongminglow/points-ledger/internal/models"
	"github.com/hongminglow/points-ledger/internal/ranking"
)

// CohortRank is a user's rank within one cohort.
type CohortRank struct {
	Cohort models.Cohort `json:"cohort"`
	Name   string        `json:"name"`
	Rank   int           `json:"rank"`
}

// ParseCohort validates a cohort descriptor from user input.
func ParseCohort(kind, value string) (models.Cohort, error) {
	c, err := models.ParseCohort(kind, value)
	if err != nil {
		return models.Cohort{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return c, nil
}

func (s *Service) cohort(ctx context.Context, cohort models.Cohort) ([]models.CohortMember, error) {
	if _, err := models.ParseCohort(string(cohort.Kind), cohort.Value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	members, err := s.store.ListCohort(ctx, cohort)
	if err != nil {
		return nil, fmt.Errorf("%w: list cohort %s: %v", ErrUnavailable, cohort.Kind, err)
	}
	return members, nil
}

// Rank returns the position of userID's monthly points within cohort
// using the first-<= rule.
func (s *Service) Rank(ctx context.Context, userID string, cohort models.Cohort) (int, error) {
	u, err := s.User(ctx, userID)
	if err != nil {
		return 0, err
	}
	return s.rankScore(ctx, u.MonthlyPoints, cohort)
}

func (s *Service) rankScore(ctx context.Context, score int64, cohort models.Cohort) (int, error) {
	members, err := s.cohort(ctx, cohort)
	if err != nil {
		return 0, err
	}
	return ranking.Position(ranking.Scores(members), score), nil
}

// Leaderboard returns the cohort ordered by monthly points with tie-aware ranks.
func (s *Service) Leaderboard(ctx context.Context, cohort models.Cohort) ([]ranking.Entry, error) {
	members, err := s.cohort(ctx, cohort)
	if err != nil {
		return nil, err
	}
	return ranking.Leaderboard(members), nil
}

// RankSummary ranks the user in every cohort they belong to: global, their
// city, neighbourhood and birth year when known, and each community.
// Cohort lookups run concurrently.
func (s *Service) RankSummary(ctx context.Context, userID string) ([]CohortRank, error) {
	u, err := s.User(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := []CohortRank{{Cohort: models.Global, Name: "Global"}}
	if u.City != "" {
		out = append(out, CohortRank{Cohort: models.Cohort{Kind: models.CohortCity, Value: u.City}, Name: u.City})
	}
	if u.Neighbourhood != "" {
		out = append(out, CohortRank{Cohort: models.Cohort{Kind: models.CohortNeighbourhood, Value: u.Neighbourhood}, Name: u.Neighbourhood})
	}
	if year := u.BirthYear(); year > 0 {
		y := strconv.Itoa(year)
		out = append(out, CohortRank{Cohort: models.Cohort{Kind: models.CohortBirthYear, Value: y}, Name: "Born in " + y})
	}
	communities, err := s.store.ListCommunities(ctx, u.Communities)
	if err != nil {
		return nil, storeErr(err, "list communities")
	}
	for _, c := range communities {
		out = append(out, CohortRank{Cohort: models.Cohort{Kind: models.CohortCommunity, Value: c.ID}, Name: c.Name})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range out {
		i := i
		g.Go(func() error {
			rank, err := s.rankScore(gctx, u.MonthlyPoints, out[i].Cohort)
			if err != nil {
				return err
			}
			out[i].Rank = rank
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

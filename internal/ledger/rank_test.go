package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/points-ledger/internal/models"
)

func TestLeaderboardDenseTies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i, pts := range []int64{50, 50, 30, 10} {
		u := f.user(t, string(rune('a'+i)), func(u *models.User) { u.City = "Lisbon" })
		f.credit(t, u.ID, pts)
	}
	other := f.user(t, "porto", func(u *models.User) { u.City = "Porto" })
	f.credit(t, other.ID, 99)

	board, err := f.svc.Leaderboard(ctx, models.Cohort{Kind: models.CohortCity, Value: "Lisbon"})
	require.NoError(t, err)
	require.Len(t, board, 4)

	var ranks []int
	for _, e := range board {
		ranks = append(ranks, e.Rank)
	}
	assert.Equal(t, []int{1, 1, 3, 4}, ranks)
	assert.ElementsMatch(t, []string{"a", "b"}, []string{board[0].Username, board[1].Username})
	assert.Equal(t, "d", board[3].Username)
}

func TestRankFirstAtOrBelow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var me models.User
	for i, pts := range []int64{90, 60, 60, 20} {
		u := f.user(t, string(rune('a'+i)))
		f.credit(t, u.ID, pts)
		if i == 2 {
			me = u
		}
	}

	rank, err := f.svc.Rank(ctx, me.ID, models.Global)
	require.NoError(t, err)
	assert.Equal(t, 2, rank)
}

func TestRankEmptyCohortIsOne(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "ana")
	f.credit(t, u.ID, 5)

	rank, err := f.svc.Rank(context.Background(), u.ID, models.Cohort{Kind: models.CohortCity, Value: "Nowhere"})
	require.NoError(t, err)
	assert.Equal(t, 1, rank)
}

func TestRankUnknownCohortKind(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "ana")

	_, err := f.svc.Rank(context.Background(), u.ID, models.Cohort{Kind: "planet", Value: "earth"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Leaderboard(context.Background(), models.Cohort{Kind: models.CohortCity})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ParseCohort("galaxy", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRankUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Rank(context.Background(), "ghost", models.Global)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRankSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	me := f.user(t, "me", func(u *models.User) {
		u.City = "Lisbon"
		u.Neighbourhood = "Alfama"
	}, birth(1994))
	rival := f.user(t, "rival", func(u *models.User) { u.City = "Lisbon" }, birth(1990))
	f.credit(t, me.ID, 20)
	f.credit(t, rival.ID, 40)

	c, err := f.svc.CreateCommunity(ctx, me.ID, "Block A")
	require.NoError(t, err)

	summary, err := f.svc.RankSummary(ctx, me.ID)
	require.NoError(t, err)

	got := map[models.CohortKind]int{}
	for _, r := range summary {
		got[r.Cohort.Kind] = r.Rank
	}
	assert.Equal(t, map[models.CohortKind]int{
		models.CohortGlobal:        2,
		models.CohortCity:          2,
		models.CohortNeighbourhood: 1,
		models.CohortBirthYear:     1,
		models.CohortCommunity:     1,
	}, got)
	assert.Equal(t, "Block A", summary[len(summary)-1].Name)
	assert.Equal(t, c.ID, summary[len(summary)-1].Cohort.Value)
}

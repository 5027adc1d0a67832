// Package ranking holds the two ranking conventions used by the app.
//
// Leaderboard assigns shared ranks to tied scores and resumes the next
// distinct score at its 1-based position ([50 50 30 10] -> [1 1 3 4]).
// Position answers "where would this score land" for a single user: the
// 1-based index of the first score in descending order that is <= it.
// They agree when the score is present in the cohort and differ when it
// is not; the leaderboard screen and the rank badge use one each.
package ranking

import (
	"sort"

	"github.com/hongminglow/points-ledger/internal/models"
)

// Entry is one leaderboard row.
type Entry struct {
	UserID        string `json:"userId"`
	Username      string `json:"username"`
	MonthlyPoints int64  `json:"monthlyPoints"`
	Rank          int    `json:"rank"`
}

// SortMembers orders members by monthly points descending. Ties keep a
// stable order by user id so repeated reads render identically.
func SortMembers(members []models.CohortMember) {
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].MonthlyPoints != members[j].MonthlyPoints {
			return members[i].MonthlyPoints > members[j].MonthlyPoints
		}
		return members[i].UserID < members[j].UserID
	})
}

// Leaderboard sorts a copy of members and assigns tie-aware ranks.
func Leaderboard(members []models.CohortMember) []Entry {
	sorted := make([]models.CohortMember, len(members))
	copy(sorted, members)
	SortMembers(sorted)

	out := make([]Entry, len(sorted))
	rank := 1
	for i, m := range sorted {
		if i > 0 && m.MonthlyPoints != sorted[i-1].MonthlyPoints {
			rank = i + 1
		}
		out[i] = Entry{UserID: m.UserID, Username: m.Username, MonthlyPoints: m.MonthlyPoints, Rank: rank}
	}
	return out
}

// Position returns the rank of score within scores. An empty cohort
// yields 1. A score below every entry ranks after all of them.
func Position(scores []int64, score int64) int {
	if len(scores) == 0 {
		return 1
	}
	sorted := make([]int64, len(scores))
	copy(sorted, scores)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })
	for i, s := range sorted {
		if s <= score {
			return i + 1
		}
	}
	return len(sorted) + 1
}

// Scores extracts monthly points from members.
func Scores(members []models.CohortMember) []int64 {
	out := make([]int64, len(members))
	for i, m := range members {
		out[i] = m.MonthlyPoints
	}
	return out
}

package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CohortKind names the attribute a cohort filters users by.
type CohortKind string

const (
	CohortGlobal        CohortKind = "global"
	CohortCity          CohortKind = "city"
	CohortNeighbourhood CohortKind = "neighbourhood"
	CohortBirthYear     CohortKind = "birthYear"
	CohortCommunity     CohortKind = "community"
)

// ErrInvalidCohort is returned by ParseCohort for unknown kinds or bad values.
var ErrInvalidCohort = errors.New("invalid cohort")

// Cohort is a transient query descriptor selecting a subset of users.
type Cohort struct {
	Kind  CohortKind `json:"kind"`
	Value string     `json:"value,omitempty"`
}

// Global is the cohort of all users.
var Global = Cohort{Kind: CohortGlobal}

// CohortMember is the projection of a user the ranking rules work on.
type CohortMember struct {
	UserID        string `json:"userId"`
	Username      string `json:"username"`
	MonthlyPoints int64  `json:"monthlyPoints"`
}

// ParseCohort builds a cohort from a kind and value. An empty kind means global.
// "year" is accepted as an alias of birthYear.
func ParseCohort(kind, value string) (Cohort, error) {
	value = strings.TrimSpace(value)
	switch strings.TrimSpace(kind) {
	case "", string(CohortGlobal):
		return Global, nil
	case string(CohortCity):
		return valued(CohortCity, value)
	case string(CohortNeighbourhood):
		return valued(CohortNeighbourhood, value)
	case string(CohortCommunity):
		return valued(CohortCommunity, value)
	case string(CohortBirthYear), "year":
		if len(value) != 4 {
			return Cohort{}, fmt.Errorf("%w: birth year must have four digits", ErrInvalidCohort)
		}
		for i := 0; i < len(value); i++ {
			if value[i] < '0' || value[i] > '9' {
				return Cohort{}, fmt.Errorf("%w: birth year %q is not a number", ErrInvalidCohort, value)
			}
		}
		if year, _ := strconv.Atoi(value); year < 1 {
			return Cohort{}, fmt.Errorf("%w: birth year %q is out of range", ErrInvalidCohort, value)
		}
		return Cohort{Kind: CohortBirthYear, Value: value}, nil
	default:
		return Cohort{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidCohort, kind)
	}
}

func valued(kind CohortKind, value string) (Cohort, error) {
	if value == "" {
		return Cohort{}, fmt.Errorf("%w: %s requires a value", ErrInvalidCohort, kind)
	}
	return Cohort{Kind: kind, Value: value}, nil
}

// Matches reports whether u belongs to the cohort.
func (c Cohort) Matches(u User) bool {
	switch c.Kind {
	case CohortGlobal:
		return true
	case CohortCity:
		return u.City == c.Value
	case CohortNeighbourhood:
		return u.Neighbourhood == c.Value
	case CohortBirthYear:
		return u.BirthDate != nil && strconv.Itoa(u.BirthYear()) == c.Value
	case CohortCommunity:
		return u.InCommunity(c.Value)
	default:
		return false
	}
}

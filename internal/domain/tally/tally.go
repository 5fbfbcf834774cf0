// Package tally computes vote counts and the winning option set of a poll.
package tally

import (
	"sort"

	"polling-engine/internal/domain/poll"
)

type Result struct {
	Counts      map[string]int `json:"counts"`
	MaxCount    int            `json:"max_count"`
	TotalVoters int            `json:"total_voters"`
	Winners     []string       `json:"winners"`
}

// Compute counts the voters of every option and returns all options tied at
// the highest non-zero count. With no options or no votes the winner set is
// empty. Winners are sorted by option id so the result does not depend on the
// order options were read in.
func Compute(options []poll.Option) Result {
	res := Result{
		Counts:  make(map[string]int, len(options)),
		Winners: []string{},
	}

	for _, o := range options {
		c := len(o.Voters)
		res.Counts[o.ID] += c
		res.TotalVoters += c
	}
	for _, c := range res.Counts {
		if c > res.MaxCount {
			res.MaxCount = c
		}
	}
	if res.MaxCount == 0 {
		return res
	}

	for id, c := range res.Counts {
		if c == res.MaxCount {
			res.Winners = append(res.Winners, id)
		}
	}
	sort.Strings(res.Winners)
	return res
}

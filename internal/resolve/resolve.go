// Package resolve turns human-typed team and task names into remote
// entities.
//
// Teams are looked up by exact name first and then by case-insensitive
// prefix; a prefix shared by several teams is reported back as ambiguous
// instead of being guessed. Tasks are only ever matched exactly.
package resolve

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/is57/scorebot/internal/scoring"
)

// MaxCandidates caps the candidate list of an ambiguous result.
const MaxCandidates = 10

// Kind classifies a lookup outcome.
type Kind int

const (
	NotFound Kind = iota
	Unique
	Ambiguous
)

func (k Kind) String() string {
	switch k {
	case Unique:
		return "unique"
	case Ambiguous:
		return "ambiguous"
	default:
		return "not_found"
	}
}

// Result is the outcome of a lookup. Match is set only for Unique;
// Candidates only for Ambiguous, in the order they appeared in the input.
type Result[T any] struct {
	Kind       Kind
	Match      T
	Candidates []T
}

// Found reports whether the lookup produced exactly one entity.
func (r Result[T]) Found() bool {
	return r.Kind == Unique
}

func unique[T any](v T) Result[T] {
	return Result[T]{Kind: Unique, Match: v}
}

// ExactTeam returns the first team whose name equals name exactly.
func ExactTeam(teams []scoring.Team, name string) (scoring.Team, bool) {
	for _, t := range teams {
		if t.Name == name {
			return t, true
		}
	}
	return scoring.Team{}, false
}

// PrefixTeams matches teams whose folded name starts with the folded query.
func PrefixTeams(teams []scoring.Team, query string) Result[scoring.Team] {
	// cases.Caser keeps state and is not safe for concurrent use.
	fold := cases.Fold()
	prefix := fold.String(query)

	var matches []scoring.Team
	for _, t := range teams {
		if strings.HasPrefix(fold.String(t.Name), prefix) {
			matches = append(matches, t)
		}
	}

	switch len(matches) {
	case 0:
		return Result[scoring.Team]{Kind: NotFound}
	case 1:
		return unique(matches[0])
	default:
		if len(matches) > MaxCandidates {
			matches = matches[:MaxCandidates]
		}
		return Result[scoring.Team]{Kind: Ambiguous, Candidates: matches}
	}
}

// FindTeam tries an exact match and falls back to PrefixTeams.
func FindTeam(teams []scoring.Team, query string) Result[scoring.Team] {
	if t, ok := ExactTeam(teams, query); ok {
		return unique(t)
	}
	return PrefixTeams(teams, query)
}

// FindTask returns the first task named name within subject. The name must
// match exactly; the subject is compared case-insensitively since subjects
// are stored lower-cased remotely but typed freely.
func FindTask(tasks []scoring.Task, name, subject string) Result[scoring.Task] {
	fold := cases.Fold()
	want := fold.String(subject)
	for _, t := range tasks {
		if t.Name == name && fold.String(t.Subject) == want {
			return unique(t)
		}
	}
	return Result[scoring.Task]{Kind: NotFound}
}

// CandidateNames returns the names of an ambiguous team result.
func CandidateNames(r Result[scoring.Team]) []string {
	names := make([]string, len(r.Candidates))
	for i, t := range r.Candidates {
		names[i] = t.Name
	}
	return names
}

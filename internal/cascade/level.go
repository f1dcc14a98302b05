// Package cascade runs the planning and execution pipeline one level at a
// time, stopping at approval gates as their policies demand.
package cascade

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/cadence/internal/errors"
	"github.com/felixgeelhaar/cadence/internal/gate"
)

// Level is one stage of the pipeline
type Level string

const (
	Roadmap   Level = "roadmap"
	Stories   Level = "stories"
	Tasks     Level = "tasks"
	Subtasks  Level = "subtasks"
	Build     Level = "build"
	Calibrate Level = "calibrate"
)

// Levels in pipeline order
var Levels = []Level{Roadmap, Stories, Tasks, Subtasks, Build, Calibrate}

// levelGates maps planning levels to the gate in front of them. Build has
// no gate; calibrate gates its own corrections.
var levelGates = map[Level]gate.Name{
	Roadmap:  gate.CreateRoadmap,
	Stories:  gate.CreateStories,
	Tasks:    gate.CreateTasks,
	Subtasks: gate.CreateSubtasks,
}

// ParseLevel converts a level name, case-insensitively
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if l.Index() < 0 {
		return "", errors.NewLevelUnknownError(s)
	}
	return l, nil
}

// Index returns the position in the pipeline, or -1
func (l Level) Index() int {
	for i, candidate := range Levels {
		if candidate == l {
			return i
		}
	}
	return -1
}

// Gate returns the gate evaluated before l runs, or "" for none
func (l Level) Gate() gate.Name {
	return levelGates[l]
}

// Next returns the level after l
func (l Level) Next() (Level, bool) {
	i := l.Index()
	if i < 0 || i+1 >= len(Levels) {
		return "", false
	}
	return Levels[i+1], true
}

func (l Level) String() string {
	return string(l)
}

// Between returns the levels from..to inclusive
func Between(from, to Level) ([]Level, error) {
	fi, ti := from.Index(), to.Index()
	if fi < 0 {
		return nil, errors.NewLevelUnknownError(string(from))
	}
	if ti < 0 {
		return nil, errors.NewLevelUnknownError(string(to))
	}
	if fi > ti {
		return nil, errors.New(errors.ErrCodeCascadeRange,
			fmt.Sprintf("level %s comes after %s", from, to)).
			WithSuggestion("Pass a --from level that precedes or equals --to")
	}
	return append([]Level(nil), Levels[fi:ti+1]...), nil
}

package validation

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/felixgeelhaar/cadence/internal/errors"
	"github.com/felixgeelhaar/cadence/internal/queue"
)

var storyRefPattern = regexp.MustCompile(`(?im)^\s*(?:[-*]\s*)?(?:\*\*story:?\*\*:?|story:)\s*(STORY-\d+)`)

// Parents is the planning context a subtask descends from. Empty fields
// mean the parent could not be found, which is not an error.
type Parents struct {
	TaskPath  string
	Task      string
	StoryRef  string
	StoryPath string
	Story     string
}

// ParentResolver finds a subtask's parent task and story under a milestone
type ParentResolver struct {
	tasksDir   string
	storiesDir string
}

// NewParentResolver resolves against <milestone>/tasks and <milestone>/stories
func NewParentResolver(tasksDir, storiesDir string) *ParentResolver {
	return &ParentResolver{tasksDir: tasksDir, storiesDir: storiesDir}
}

// Resolve reads the parent task and story of s. An explicit StoryRef on the
// subtask wins over a reference embedded in the task file.
func (r *ParentResolver) Resolve(s queue.Subtask) (*Parents, error) {
	parents := &Parents{}

	if s.TaskRef != "" {
		path, err := findByPrefix(r.tasksDir, s.TaskRef)
		if err != nil {
			return nil, err
		}
		if path != "" {
			content, err := readFile(path)
			if err != nil {
				return nil, err
			}
			parents.TaskPath = path
			parents.Task = content
			parents.StoryRef = EmbeddedStoryRef(content)
		}
	}

	if s.StoryRef != "" {
		parents.StoryRef = s.StoryRef
	}

	if parents.StoryRef != "" {
		path, err := findByPrefix(r.storiesDir, parents.StoryRef)
		if err != nil {
			return nil, err
		}
		if path != "" {
			content, err := readFile(path)
			if err != nil {
				return nil, err
			}
			parents.StoryPath = path
			parents.Story = content
		}
	}

	return parents, nil
}

// EmbeddedStoryRef finds a "story: STORY-n" or "**Story:** STORY-n" line
func EmbeddedStoryRef(content string) string {
	m := storyRefPattern.FindStringSubmatch(content)
	if len(m) < 2 {
		return ""
	}
	return strings.ToUpper(m[1])
}

// findByPrefix returns the first markdown file in dir whose name starts with
// ref (case-insensitive) followed by '-', '_' or '.'. A missing dir yields "".
func findByPrefix(dir, ref string) (string, error) {
	if dir == "" {
		return "", nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrap(errors.ErrCodeFileReadFailed, "list "+dir, err)
	}

	prefix := strings.ToLower(ref)
	var matches []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".md") {
			continue
		}
		name := strings.ToLower(e.Name())
		if !strings.HasPrefix(name, prefix) || len(name) == len(prefix) {
			continue
		}
		switch name[len(prefix)] {
		case '-', '_', '.':
			matches = append(matches, filepath.Join(dir, e.Name()))
		}
	}
	if len(matches) == 0 {
		return "", nil
	}
	sort.Strings(matches)
	return matches[0], nil
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeFileReadFailed, "read "+path, err)
	}
	return string(data), nil
}

package config

import "path/filepath"

// Paths is the on-disk layout of one workflow:
//
//	<root>/.cadence/workflows/<workflow>/
//	  queue.json
//	  logs/<YYYY-MM-DD>.jsonl
//	  proposals/
//	  feedback/
//	  checkpoints/pause.json
//	  validation/skipped.json
type Paths struct {
	Root      string
	Workflow  string
	Milestone string
}

func (p Paths) WorkflowDir() string {
	return filepath.Join(p.Root, ".cadence", "workflows", p.Workflow)
}

func (p Paths) QueueFile() string {
	return filepath.Join(p.WorkflowDir(), "queue.json")
}

func (p Paths) LogsDir() string {
	return filepath.Join(p.WorkflowDir(), "logs")
}

func (p Paths) ProposalsDir() string {
	return filepath.Join(p.WorkflowDir(), "proposals")
}

func (p Paths) FeedbackDir() string {
	return filepath.Join(p.WorkflowDir(), "feedback")
}

func (p Paths) CheckpointsDir() string {
	return filepath.Join(p.WorkflowDir(), "checkpoints")
}

func (p Paths) SkipListFile() string {
	return filepath.Join(p.WorkflowDir(), "validation", "skipped.json")
}

// TasksDir and StoriesDir hold the parent documents subtasks point at
func (p Paths) TasksDir() string {
	return filepath.Join(p.Milestone, "tasks")
}

func (p Paths) StoriesDir() string {
	return filepath.Join(p.Milestone, "stories")
}

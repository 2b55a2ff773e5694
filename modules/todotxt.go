package modules

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/nomis52/barline/markup"
	"github.com/nomis52/barline/module"
	"github.com/nomis52/barline/theme"
)

const (
	defaultTodoMaxLen = 40
	todoIcon          = "☰"
)

// TodoTxt shows the next pending task from a todo.txt file, refreshing when
// the file changes.
type TodoTxt struct {
	trigger *module.FileTrigger
	path    string
	maxLen  int

	next    string
	pending int
}

// NewTodoTxt watches path, which uses the todo.txt line format: completed
// tasks start with "x ", pending tasks may carry a "(A) " priority prefix.
func NewTodoTxt(path string, maxLen int) (*TodoTxt, error) {
	if maxLen <= 0 {
		maxLen = defaultTodoMaxLen
	}
	trigger, err := module.NewFileTrigger(path)
	if err != nil {
		return nil, fmt.Errorf("watching %s: %w", path, err)
	}
	return &TodoTxt{trigger: trigger, path: path, maxLen: maxLen}, nil
}

func (t *TodoTxt) WaitTrigger(ctx context.Context) error {
	return t.trigger.Wait(ctx)
}

func (t *TodoTxt) Update(ctx context.Context) error {
	data, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		// A missing file is an empty list, not a failure. Editors replace the
		// file on save so there is a window where it does not exist.
		t.next, t.pending = "", 0
		return nil
	}
	if err != nil {
		return err
	}

	t.next, t.pending = nextTask(string(data))
	return nil
}

func (t *TodoTxt) Render() string {
	icon := markup.Fg(todoIcon, theme.MainIcon)
	if t.pending == 0 {
		return icon + " " + markup.Fg("✓", theme.Good)
	}
	task := theme.Ellipsis(t.next, t.maxLen)
	if t.pending > 1 {
		task = fmt.Sprintf("%s +%d", task, t.pending-1)
	}
	return icon + " " + markup.Fg(task, theme.Foreground)
}

func (t *TodoTxt) Close() error {
	return t.trigger.Close()
}

// nextTask returns the first pending task, stripped of any priority prefix,
// and the total pending count.
func nextTask(contents string) (string, int) {
	var first string
	count := 0
	for _, line := range strings.Split(contents, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "x ") {
			continue
		}
		count++
		if first == "" {
			first = stripPriority(line)
		}
	}
	return first, count
}

func stripPriority(task string) string {
	if len(task) >= 4 && task[0] == '(' && task[2] == ')' && task[3] == ' ' &&
		task[1] >= 'A' && task[1] <= 'Z' {
		return task[4:]
	}
	return task
}

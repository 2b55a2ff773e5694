package progress

import (
	"math"
	"strconv"
	"strings"

	"github.com/nomis52/barline/markup"
	"github.com/nomis52/barline/theme"
)

const progressIcon = "⧗"

// rampIcons render a whole bar in a single cell when space is tight.
var rampIcons = []string{"▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

// renderTasks folds the task snapshot into one segment according to the
// configured policy. Tasks arrive sorted by id, so output is deterministic.
func renderTasks(tasks []Task, policy string, maxLen int) string {
	if len(tasks) == 0 {
		return ""
	}

	parts := []string{
		markup.Fg(progressIcon, theme.MainIcon),
		strconv.Itoa(len(tasks)),
	}

	avail := maxLen - 2
	if avail < 1 {
		avail = 1
	}

	switch policy {
	case PolicySum:
		sum := 0.0
		for _, task := range tasks {
			sum += task.Fraction
		}
		parts = append(parts, renderBar(sum/float64(len(tasks)), avail))
	default: // PolicyList
		width := (maxLen - 2 - (len(tasks) - 1)) / len(tasks)
		if width < 1 {
			width = 1
		}
		for _, task := range tasks {
			parts = append(parts, renderBar(task.Fraction, width))
		}
	}

	return strings.Join(parts, " ")
}

// renderBar renders fraction as a bar of the given width in cells. A one
// cell bar degrades to a single ramp glyph.
func renderBar(fraction float64, width int) string {
	pct := int(math.Round(fraction * 100))
	if width <= 1 {
		idx := pct / (100 / (len(rampIcons) - 1))
		if idx >= len(rampIcons) {
			idx = len(rampIcons) - 1
		}
		return rampIcons[idx]
	}
	filled := width * pct / 100
	return strings.Repeat("■", filled) + strings.Repeat(" ", width-filled)
}

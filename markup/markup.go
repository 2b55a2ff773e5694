// Package markup builds polybar inline formatting tags around segment text.
//
// The bar host interprets %{...} tags for colors and click actions. The
// engine treats the result as opaque text; only modules produce markup.
package markup

import (
	"fmt"
	"strings"

	"github.com/nomis52/barline/theme"
)

// Style holds optional color decorations for a piece of text. Nil fields are
// left unstyled.
type Style struct {
	Foreground *theme.Color
	Underline  *theme.Color
	Overline   *theme.Color
	Background *theme.Color
}

// Styled wraps inner with the markup tags for the given style.
func Styled(inner string, style Style) string {
	out := inner
	if style.Foreground != nil {
		out = colorTag(out, 'F', *style.Foreground)
	}
	if style.Underline != nil {
		out = lineTag(out, 'u', *style.Underline)
	}
	if style.Overline != nil {
		out = lineTag(out, 'o', *style.Overline)
	}
	if style.Background != nil {
		out = colorTag(out, 'B', *style.Background)
	}
	return out
}

// Fg is shorthand for Styled with only a foreground color.
func Fg(inner string, color theme.Color) string {
	return Styled(inner, Style{Foreground: &color})
}

func colorTag(s string, letter byte, color theme.Color) string {
	return fmt.Sprintf("%%{%c#%06x}%s%%{%c-}", letter, uint32(color), s, letter)
}

func lineTag(s string, letter byte, color theme.Color) string {
	return fmt.Sprintf("%%{%c#%06x}%%{+%c}%s%%{-%c}", letter, uint32(color), letter, s, letter)
}

// ActionType selects which pointer event triggers an action.
type ActionType int

const (
	ClickLeft ActionType = iota + 1
	ClickMiddle
	ClickRight
	ScrollUp
	ScrollDown
	DoubleClickLeft
	DoubleClickMiddle
	DoubleClickRight
)

// Action is a command bound to a pointer event on a segment.
type Action struct {
	Type    ActionType
	Command string
}

// Actioned wraps inner so the bar runs the action's command on the matching
// pointer event. Colons in the command are escaped per the markup syntax.
func Actioned(inner string, action Action) string {
	cmd := strings.ReplaceAll(action.Command, ":", "\\:")
	return fmt.Sprintf("%%{A%d:%s:}%s%%{A}", action.Type, cmd, inner)
}

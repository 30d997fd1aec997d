package color

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
)

// ANSI color codes
const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
	Bold   = "\033[1m"
)

// Color represents a colorizer that can be enabled or disabled
type Color struct {
	enabled bool
}

// New creates a colorizer for stdout. Color is only used when requested and
// stdout is a terminal that supports it.
func New(enabled bool) *Color {
	return &Color{enabled: enabled && shouldEnableColor(os.Stdout.Fd())}
}

// shouldEnableColor determines if color should be enabled based on environment
func shouldEnableColor(fd uintptr) bool {
	// https://no-color.org/
	if os.Getenv("NO_COLOR") != "" {
		return false
	}

	term := os.Getenv("TERM")
	if term == "dumb" || term == "" {
		return false
	}

	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (c *Color) wrap(code, text string) string {
	if !c.enabled {
		return text
	}
	return code + text + Reset
}

// Ok colors text green
func (c *Color) Ok(text string) string { return c.wrap(Green, text) }

// Warn colors text yellow
func (c *Color) Warn(text string) string { return c.wrap(Yellow, text) }

// Fail colors text red
func (c *Color) Fail(text string) string { return c.wrap(Red, text) }

// Cyan colors text cyan (for headers and labels)
func (c *Color) Cyan(text string) string { return c.wrap(Cyan, text) }

// Bold makes text bold
func (c *Color) Bold(text string) string { return c.wrap(Bold, text) }

// FormatDatabaseHeader formats the heading printed above a database's views
func (c *Color) FormatDatabaseHeader(database, namespace string, views int) string {
	return c.Bold(fmt.Sprintf("Database %s", database)) + fmt.Sprintf(" (namespace %s, %d views)", namespace, views)
}

// FormatBatchLine formats one resolution batch
func (c *Color) FormatBatchLine(index int, names []string) string {
	line := c.Cyan(fmt.Sprintf("  batch %d:", index+1))
	for _, name := range names {
		line += " " + name
	}
	return line
}

// FormatResultLine formats the outcome of one database sync
func (c *Color) FormatResultLine(database string, created, attempted int, err error) string {
	if err != nil {
		return fmt.Sprintf("  %s %s: %d views attempted: %v", c.Fail("✗"), database, attempted, err)
	}
	return fmt.Sprintf("  %s %s: %d views created", c.Ok("✓"), database, created)
}

// FormatSummary formats the final sync line
func (c *Color) FormatSummary(succeeded, failed int) string {
	if failed > 0 {
		return fmt.Sprintf("Synced %s, %s.", c.Ok(fmt.Sprintf("%d databases", succeeded)), c.Fail(fmt.Sprintf("%d failed", failed)))
	}
	return fmt.Sprintf("Synced %s.", c.Ok(fmt.Sprintf("%d databases", succeeded)))
}

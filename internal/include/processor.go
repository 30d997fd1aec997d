// Package include expands psql \i and \ir directives in view SQL files.
package include

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Matches: \i file, \ir file, with an optional trailing semicolon
var includeRegex = regexp.MustCompile(`^\s*\\ir?\s+([^\s;]+)\s*;?\s*$`)

// Processor expands include directives. Included files must live under the
// base directory.
type Processor struct {
	baseDir string
	stack   []string
}

// NewProcessor creates a processor confined to baseDir
func NewProcessor(baseDir string) *Processor {
	return &Processor{baseDir: baseDir}
}

// ProcessFile reads filename and expands its include directives recursively.
// Relative filenames are resolved against the base directory.
func (p *Processor) ProcessFile(filename string) (string, error) {
	p.stack = nil

	if !filepath.IsAbs(filename) {
		filename = filepath.Join(p.baseDir, filename)
	}
	absPath, err := filepath.Abs(filename)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for %s: %w", filename, err)
	}
	if err := p.checkWithinBase(absPath, filename); err != nil {
		return "", err
	}

	return p.processFile(absPath)
}

func (p *Processor) processFile(path string) (string, error) {
	for _, open := range p.stack {
		if open == path {
			return "", fmt.Errorf("include cycle detected: %s -> %s", strings.Join(p.stack, " -> "), path)
		}
	}
	p.stack = append(p.stack, path)
	defer func() { p.stack = p.stack[:len(p.stack)-1] }()

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", path, err)
	}

	lines := strings.Split(string(content), "\n")
	var result strings.Builder
	for i, line := range lines {
		matches := includeRegex.FindStringSubmatch(line)
		if matches == nil {
			result.WriteString(line)
			if i < len(lines)-1 {
				result.WriteString("\n")
			}
			continue
		}

		resolved, err := p.resolve(matches[1], filepath.Dir(path))
		if err != nil {
			return "", fmt.Errorf("%s:%d: %w", path, i+1, err)
		}
		included, err := p.processFile(resolved)
		if err != nil {
			return "", err
		}
		result.WriteString(included)
		if !strings.HasSuffix(included, "\n") {
			result.WriteString("\n")
		}
	}

	return result.String(), nil
}

// resolve resolves an include path relative to the including file's directory
func (p *Processor) resolve(includePath, currentDir string) (string, error) {
	absPath, err := filepath.Abs(filepath.Join(currentDir, filepath.Clean(includePath)))
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	if err := p.checkWithinBase(absPath, includePath); err != nil {
		return "", err
	}
	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return "", fmt.Errorf("included file does not exist: %s", absPath)
	}
	return absPath, nil
}

func (p *Processor) checkWithinBase(absPath, original string) error {
	baseAbs, err := filepath.Abs(p.baseDir)
	if err != nil {
		return fmt.Errorf("failed to get absolute base path: %w", err)
	}
	rel, err := filepath.Rel(baseAbs, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %s is outside the base directory %s", original, p.baseDir)
	}
	return nil
}

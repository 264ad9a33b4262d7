package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

const DefaultProcRoot = "/proc"

type Collector interface {
	Collect() ([]string, error)
}

// ProcessCollector lists the distinct command names of running processes by
// reading <root>/<pid>/comm. When Watch is set only those names are reported.
type ProcessCollector struct {
	Root  string
	Watch []string
}

func NewProcessCollector(watch []string) *ProcessCollector {
	return &ProcessCollector{Root: DefaultProcRoot, Watch: watch}
}

func (c *ProcessCollector) Collect() ([]string, error) {
	root := c.Root
	if root == "" {
		root = DefaultProcRoot
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", root, err)
	}

	seen := make(map[string]struct{})
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := strconv.Atoi(entry.Name()); err != nil {
			continue
		}
		// processes can exit between ReadDir and ReadFile
		data, err := os.ReadFile(filepath.Join(root, entry.Name(), "comm"))
		if err != nil {
			continue
		}
		name := strings.TrimSpace(string(data))
		if name == "" {
			continue
		}
		seen[name] = struct{}{}
	}

	programs := make([]string, 0, len(seen))
	if len(c.Watch) > 0 {
		for _, name := range c.Watch {
			if _, ok := seen[name]; ok && !slices.Contains(programs, name) {
				programs = append(programs, name)
			}
		}
	} else {
		for name := range seen {
			programs = append(programs, name)
		}
	}
	slices.Sort(programs)
	return programs, nil
}

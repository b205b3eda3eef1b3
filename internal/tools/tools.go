// Package tools checks which external scanning binaries are installed and
// reports what a scan mode needs before any command runs.
package tools

import (
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"sync"
)

// Required lists the binaries the scan phases shell out to.
var Required = []string{
	"host",
	"whois",
	"curl",
	"jq",
	"subfinder",
	"httpx",
	"theHarvester",
	"masscan",
	"nmap",
	"nikto",
	"gobuster",
	"nuclei",
	"dnsx",
}

// Checker caches lookup results for external binaries.
type Checker struct {
	mu    sync.Mutex
	found map[string]bool
}

// NewChecker returns a Checker with an empty cache.
func NewChecker() *Checker {
	return &Checker{found: make(map[string]bool)}
}

// Available reports whether name resolves on PATH. Results are cached; a
// binary installed mid-run is not picked up until a new Checker is built.
func (c *Checker) Available(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ok, seen := c.found[name]; seen {
		return ok
	}
	_, err := exec.LookPath(name)
	c.found[name] = err == nil
	return err == nil
}

// Missing returns the subset of names not found on PATH, sorted.
func (c *Checker) Missing(names []string) []string {
	var missing []string
	for _, name := range names {
		if !c.Available(name) {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// Report describes the install state of every required binary.
type Report struct {
	Present []string `json:"present"`
	Missing []string `json:"missing"`
}

// Check inspects all required binaries.
func (c *Checker) Check() Report {
	var r Report
	for _, name := range Required {
		if c.Available(name) {
			r.Present = append(r.Present, name)
		} else {
			r.Missing = append(r.Missing, name)
		}
	}
	sort.Strings(r.Present)
	sort.Strings(r.Missing)
	return r
}

// InstallHint returns a one-line suggestion for installing the missing
// binaries, or "" when nothing is missing.
func InstallHint(missing []string) string {
	if len(missing) == 0 {
		return ""
	}
	return fmt.Sprintf("missing tools: %s. Hint: sudo apt install %s",
		strings.Join(missing, ", "), strings.Join(missing, " "))
}

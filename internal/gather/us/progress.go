package us

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	triedEmptyFile = ".tried-empty"
	windowFile     = ".window"
)

// progressTracker remembers which symbols came back empty for the current
// fetch window so reruns on the same day skip them. A tracker opened for a
// different window starts from an empty set.
type progressTracker struct {
	mu         sync.Mutex
	window     string
	triedEmpty map[string]struct{}
	writer     *bufio.Writer
	file       *os.File
	dir        string
}

// newProgressTracker opens the tracker in dir for the given window key
// (typically "<start>_<end>").
func newProgressTracker(dir, window string) (*progressTracker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating tracker dir: %w", err)
	}

	pt := &progressTracker{
		window:     window,
		triedEmpty: make(map[string]struct{}),
		dir:        dir,
	}

	path := filepath.Join(dir, triedEmptyFile)
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if pt.storedWindow() == window {
		if data, err := os.ReadFile(path); err == nil {
			for _, line := range strings.Split(string(data), "\n") {
				if sym := strings.TrimSpace(line); sym != "" {
					pt.triedEmpty[sym] = struct{}{}
				}
			}
		}
	} else {
		// New window: stale entries must not suppress fetches.
		flags |= os.O_TRUNC
		if err := os.WriteFile(filepath.Join(dir, windowFile), []byte(window), 0o644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", windowFile, err)
		}
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", triedEmptyFile, err)
	}
	pt.file = f
	pt.writer = bufio.NewWriter(f)
	return pt, nil
}

func (p *progressTracker) storedWindow() string {
	data, err := os.ReadFile(filepath.Join(p.dir, windowFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// IsTriedEmpty returns true if the symbol returned no bars in this window.
func (p *progressTracker) IsTriedEmpty(symbol string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.triedEmpty[symbol]
	return ok
}

// MarkEmpty records a batch of symbols as tried-empty.
func (p *progressTracker) MarkEmpty(symbols []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, sym := range symbols {
		if _, ok := p.triedEmpty[sym]; ok {
			continue
		}
		p.triedEmpty[sym] = struct{}{}
		if _, err := p.writer.WriteString(sym + "\n"); err != nil {
			return fmt.Errorf("writing to %s: %w", triedEmptyFile, err)
		}
	}
	return p.writer.Flush()
}

// Close flushes and closes the tried-empty file.
func (p *progressTracker) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.writer.Flush(); err != nil {
		p.file.Close()
		return err
	}
	return p.file.Close()
}

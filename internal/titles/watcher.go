// Package titles reports application launches to the bridge by watching which
// executable owns the foreground window.
package titles

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"padbridge/internal/gating"
)

// LookupFunc returns the executable name of the foreground application
type LookupFunc func() (string, error)

// Resolver maps executable names to title ids
type Resolver interface {
	TitleFor(executable string) (gating.ApplicationID, bool)
}

// Watcher polls the foreground application and reports every change.
// Executables without a configured title are reported as id 0, which no
// policy matches.
type Watcher struct {
	lookup   LookupFunc
	titles   Resolver
	interval time.Duration
	onStart  func(gating.ApplicationID)

	mu      sync.Mutex
	last    string
	lastErr string

	done chan struct{}
	once sync.Once
}

// NewWatcher creates a watcher; onStart receives each newly focused title
func NewWatcher(lookup LookupFunc, titles Resolver, interval time.Duration, onStart func(gating.ApplicationID)) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Watcher{
		lookup:   lookup,
		titles:   titles,
		interval: interval,
		onStart:  onStart,
		done:     make(chan struct{}),
	}
}

// Start begins polling in the background. It fails without starting when
// the lookup reports errors.ErrUnsupported.
func (w *Watcher) Start() error {
	if _, err := w.lookup(); errors.Is(err, errors.ErrUnsupported) {
		return fmt.Errorf("titles: foreground lookup: %w", err)
	}

	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.Poll()
		for {
			select {
			case <-ticker.C:
				w.Poll()
			case <-w.done:
				return
			}
		}
	}()
	return nil
}

// Stop ends polling
func (w *Watcher) Stop() {
	w.once.Do(func() { close(w.done) })
}

// Poll checks the foreground application once
func (w *Watcher) Poll() {
	exe, err := w.lookup()

	w.mu.Lock()
	if err != nil {
		// Log each distinct failure once
		if msg := err.Error(); msg != w.lastErr {
			log.Printf("Titles: Foreground lookup failed: %v", err)
			w.lastErr = msg
		}
		w.mu.Unlock()
		return
	}
	w.lastErr = ""
	if exe == w.last {
		w.mu.Unlock()
		return
	}
	w.last = exe
	w.mu.Unlock()

	id, ok := w.titles.TitleFor(exe)
	if ok {
		log.Printf("Titles: %s started (title %s)", exe, id)
	} else {
		log.Printf("Titles: %s started (no title configured)", exe)
	}
	w.onStart(id)
}

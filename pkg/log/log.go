// Package log provides the process-wide zap logger. Components take a named
// *zap.SugaredLogger so their lines carry a "logger" field.
package log

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	mu   sync.Mutex
	base *zap.Logger
)

// Init installs a development logger when debug is set and a production
// logger otherwise.
func Init(debug bool) error {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	base = l
	return nil
}

func get() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if base == nil {
		// Fallback logger if not initialized
		base, _ = zap.NewProduction()
	}
	return base
}

// Named returns a sugared logger for one component.
func Named(component string) *zap.SugaredLogger {
	return get().Named(component).Sugar()
}

// Sync flushes any buffered log entries.
func Sync() {
	get().Sync()
}

// Nop discards everything; tests use it when a component requires a logger.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

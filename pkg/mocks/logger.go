package mocks

import (
	"fmt"
	"sync"

	"github.com/user/runcompare/pkg/ports"
)

// Logger is a mock implementation of ports.Logger that records warnings and errors.
type Logger struct {
	mu     sync.Mutex
	Warns  []string
	Errors []string
}

func (m *Logger) Debug(msg string, args ...interface{}) {}
func (m *Logger) Info(msg string, args ...interface{})  {}

func (m *Logger) Warn(msg string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Warns = append(m.Warns, fmt.Sprintf(msg, args...))
}

func (m *Logger) Error(msg string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors = append(m.Errors, fmt.Sprintf(msg, args...))
}

// WithComponent returns the same logger so component messages are recorded too.
func (m *Logger) WithComponent(component string) ports.Logger {
	return m
}

// WarnCount returns the number of recorded warnings.
func (m *Logger) WarnCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Warns)
}

var _ ports.Logger = (*Logger)(nil)

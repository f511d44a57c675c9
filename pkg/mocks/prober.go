package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/user/runcompare/pkg/ports"
)

// Prober is a mock implementation of ports.Prober backed by a path map.
type Prober struct {
	mu    sync.Mutex
	Infos map[string]ports.MediaInfo
	Calls []string

	ProbeFunc func(ctx context.Context, path string) (ports.MediaInfo, error)
}

// NewProber creates a mock prober answering for the given files.
func NewProber(infos map[string]ports.MediaInfo) *Prober {
	if infos == nil {
		infos = make(map[string]ports.MediaInfo)
	}
	return &Prober{Infos: infos}
}

func (m *Prober) Probe(ctx context.Context, path string) (ports.MediaInfo, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, path)
	info, ok := m.Infos[path]
	m.mu.Unlock()

	if m.ProbeFunc != nil {
		return m.ProbeFunc(ctx, path)
	}
	if !ok {
		return ports.MediaInfo{}, fmt.Errorf("no such file: %s", path)
	}
	return info, nil
}

var _ ports.Prober = (*Prober)(nil)

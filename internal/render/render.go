// Package render delivers sub-metric series to their consumers.
package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rpggio/opsdash/internal/domain/dashboard"
)

// ErrUnknownSeries indicates a lookup of a series never rendered.
var ErrUnknownSeries = errors.New("unknown series")

// Message is the envelope delivered for every rendered series.
type Message struct {
	Series     string          `json:"series"`
	RenderedAt time.Time       `json:"renderedAt"`
	Data       json.RawMessage `json:"data"`
}

func encode(name string, data any, at time.Time) (Message, []byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, nil, fmt.Errorf("encoding series %q: %w", name, err)
	}
	msg := Message{Series: name, RenderedAt: at, Data: raw}
	body, err := json.Marshal(msg)
	if err != nil {
		return Message{}, nil, fmt.Errorf("encoding series %q: %w", name, err)
	}
	return msg, body, nil
}

// Snapshot keeps the latest rendering of every series in memory. The
// HTTP and MCP surfaces read from it.
type Snapshot struct {
	mu     sync.RWMutex
	series map[string]Message
	now    func() time.Time
}

func NewSnapshot() *Snapshot {
	return &Snapshot{series: make(map[string]Message), now: time.Now}
}

func (s *Snapshot) Render(_ context.Context, name string, data any) error {
	msg, _, err := encode(name, data, s.now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.series[name] = msg
	s.mu.Unlock()
	return nil
}

// Get returns the latest rendering of name.
func (s *Snapshot) Get(name string) (Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.series[name]
	if !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrUnknownSeries, name)
	}
	return msg, nil
}

// Names lists rendered series, sorted.
func (s *Snapshot) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.series))
	for n := range s.series {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Fanout renders to every target and joins their failures.
type Fanout []dashboard.Renderer

func (f Fanout) Render(ctx context.Context, name string, data any) error {
	var errs []error
	for _, r := range f {
		if r == nil {
			continue
		}
		if err := r.Render(ctx, name, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Package health checks the shared pools and queues a process uses: the
// region still carries the structure's tag and the structure is not
// saturated past a threshold.
package health

import (
	"errors"
	"fmt"
	"sort"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/srediag/shmslab/api"
)

// DefaultThreshold is the saturation above which a target is reported busy.
const DefaultThreshold = 0.9

var (
	// ErrUnknownTarget is returned by Check for names that were never added.
	ErrUnknownTarget = errors.New("health: unknown target")
	// ErrSaturated is returned when a target's saturation exceeds the threshold.
	ErrSaturated = errors.New("health: target saturated")
)

// Target is anything with a validity check and a fill level, such as
// *shm.Pool and *shm.Queue.
type Target interface {
	Valid() error
	Saturation() float64
}

var _ api.Health = (*Monitor)(nil)

// Monitor is a set of named targets.
type Monitor struct {
	threshold float64
	targets   cmap.ConcurrentMap[string, Target]
}

// NewMonitor returns an empty Monitor. threshold outside (0, 1] selects DefaultThreshold.
func NewMonitor(threshold float64) *Monitor {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Monitor{
		threshold: threshold,
		targets:   cmap.New[Target](),
	}
}

// Add registers t under name, replacing a previous target of that name.
func (m *Monitor) Add(name string, t Target) {
	m.targets.Set(name, t)
}

func (m *Monitor) Remove(name string) {
	m.targets.Remove(name)
}

// Names returns the registered names in sorted order.
func (m *Monitor) Names() []string {
	names := m.targets.Keys()
	sort.Strings(names)
	return names
}

// Live reports only whether the target's region is intact.
func (m *Monitor) Live(name string) error {
	_, err := m.live(name)
	return err
}

func (m *Monitor) live(name string) (Target, error) {
	t, ok := m.targets.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, name)
	}
	if err := t.Valid(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

// Check reports a broken region or a saturation above the threshold.
func (m *Monitor) Check(name string) error {
	t, err := m.live(name)
	if err != nil {
		return err
	}
	if s := t.Saturation(); s > m.threshold {
		return fmt.Errorf("%w: %s at %.2f, threshold %.2f", ErrSaturated, name, s, m.threshold)
	}
	return nil
}

// CheckAll runs Check on every target and joins the failures.
func (m *Monitor) CheckAll() error {
	var errs []error
	for _, name := range m.Names() {
		if err := m.Check(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

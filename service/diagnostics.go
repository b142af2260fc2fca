package service

import (
	"sort"
	"strings"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/rs/zerolog"
)

// Probe returns the state to inspect.
type Probe func() any

// Diagnostics defines the requirements for a debug inspection port.
type Diagnostics interface {
	// Attach registers a named probe.
	Attach(name string, probe Probe)
	// Detach removes a named probe.
	Detach(name string)
}

// SpewDiagnostics dumps attached probes with go-spew.
type SpewDiagnostics struct {
	probes map[string]Probe
	config spew.ConfigState
	logger *zerolog.Logger
	mtx    sync.Mutex
}

// Ensure the spew diagnostics implements the Diagnostics interface.
var _ Diagnostics = (*SpewDiagnostics)(nil)

// NewSpewDiagnostics initializes a new spew diagnostics port.
func NewSpewDiagnostics(logger *zerolog.Logger) *SpewDiagnostics {
	return &SpewDiagnostics{
		probes: make(map[string]Probe),
		config: spew.ConfigState{
			Indent:                  "  ",
			DisablePointerAddresses: true,
			DisableCapacities:       true,
			SortKeys:                true,
		},
		logger: logger,
	}
}

// Attach registers a named probe, replacing any probe with the same name.
func (d *SpewDiagnostics) Attach(name string, probe Probe) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	d.probes[name] = probe
	d.logger.Debug().Msgf("attached diagnostics probe %s", name)
}

// Detach removes a named probe.
func (d *SpewDiagnostics) Detach(name string) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	if _, ok := d.probes[name]; !ok {
		return
	}

	delete(d.probes, name)
	d.logger.Debug().Msgf("detached diagnostics probe %s", name)
}

// Probes returns the names of the attached probes in order.
func (d *SpewDiagnostics) Probes() []string {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	names := make([]string, 0, len(d.probes))
	for name := range d.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Dump returns the state of every attached probe.
func (d *SpewDiagnostics) Dump() string {
	names := d.Probes()

	d.mtx.Lock()
	probes := make([]Probe, 0, len(names))
	for _, name := range names {
		probes = append(probes, d.probes[name])
	}
	d.mtx.Unlock()

	var b strings.Builder
	for idx, name := range names {
		if probes[idx] == nil {
			continue
		}

		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(d.config.Sdump(probes[idx]()))
	}

	return b.String()
}

// Log writes the state of every attached probe at debug level.
func (d *SpewDiagnostics) Log() {
	d.logger.Debug().Msgf("diagnostics:\n%s", d.Dump())
}

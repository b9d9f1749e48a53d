package app

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// smoothing is the weight of the newest sample in the per-scope average.
const smoothing = 0.1

// Profiler keeps CPU timings for the named phases of a frame and a few
// counters read back from the device.
type Profiler struct {
	Scopes     map[string]time.Duration
	Averages   map[string]time.Duration
	StartTimes map[string]time.Time
	Counts     map[string]int
	Order      []string
}

func NewProfiler() *Profiler {
	return &Profiler{
		Scopes:     make(map[string]time.Duration),
		Averages:   make(map[string]time.Duration),
		StartTimes: make(map[string]time.Time),
		Counts:     make(map[string]int),
	}
}

func (p *Profiler) BeginScope(name string) {
	p.StartTimes[name] = time.Now()
	if _, seen := p.Averages[name]; !seen {
		p.Order = append(p.Order, name)
		p.Averages[name] = 0
	}
}

func (p *Profiler) EndScope(name string) {
	start, ok := p.StartTimes[name]
	if !ok {
		return
	}
	d := time.Since(start)
	p.Scopes[name] = d
	if avg := p.Averages[name]; avg == 0 {
		p.Averages[name] = d
	} else {
		p.Averages[name] = time.Duration(float64(avg)*(1-smoothing) + float64(d)*smoothing)
	}
	delete(p.StartTimes, name)
}

// Measure times fn under name.
func (p *Profiler) Measure(name string, fn func()) {
	p.BeginScope(name)
	defer p.EndScope(name)
	fn()
}

func (p *Profiler) SetCount(name string, count int) {
	p.Counts[name] = count
}

// Reset clears the last-frame timings; averages and display order survive.
func (p *Profiler) Reset() {
	for k := range p.Scopes {
		p.Scopes[k] = 0
	}
}

func (p *Profiler) GetStatsString() string {
	var sb strings.Builder

	sb.WriteString("Timings (CPU, avg):\n")
	for _, name := range p.Order {
		ms := float64(p.Averages[name].Microseconds()) / 1000.0
		sb.WriteString(fmt.Sprintf("  %-10s: %.2f ms\n", name, ms))
	}

	if len(p.Counts) > 0 {
		sb.WriteString("\nStats:\n")
		keys := make([]string, 0, len(p.Counts))
		for k := range p.Counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %-10s: %d\n", k, p.Counts[k]))
		}
	}

	return sb.String()
}

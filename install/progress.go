package install

import (
	"sync"

	"github.com/n1ntencube/CubicLauncher/events"
)

type Stage string

const (
	StageRuntime      Stage = "runtime"
	StageClient       Stage = "client"
	StageModLoader    Stage = "mod-loader"
	StageMods         Stage = "mods"
	StageLaunchConfig Stage = "launch-config"
	StageDone         Stage = "done"
)

// Progress is one step of a run. Percent covers the whole run, not the
// current stage.
type Progress struct {
	Stage   Stage
	Status  string
	Percent float64
	ModName string
}

// Sink receives progress updates. It is called synchronously from the
// installing goroutine.
type Sink func(Progress)

// EmitterSink publishes every update as an events.InstallProgress.
func EmitterSink(emitter events.Emitter) Sink {
	return func(p Progress) {
		_ = emitter.Emit(events.InstallProgress{
			Base:    events.Now(),
			Stage:   string(p.Stage),
			Status:  p.Status,
			Percent: p.Percent,
			ModName: p.ModName,
		})
	}
}

// band is the slice of the overall bar a stage owns.
type band struct {
	lo, hi float64
}

var bands = map[Stage]band{
	StageRuntime:      {0, 10},
	StageClient:       {10, 50},
	StageModLoader:    {50, 60},
	StageMods:         {60, 95},
	StageLaunchConfig: {95, 100},
}

func (b band) at(fraction float64) float64 {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	return b.lo + (b.hi-b.lo)*fraction
}

// tracker clamps reported percentages so the bar never moves backward.
type tracker struct {
	mu    sync.Mutex
	sinks []Sink
	last  float64
}

func newTracker(sinks ...Sink) *tracker {
	t := &tracker{}
	for _, s := range sinks {
		if s != nil {
			t.sinks = append(t.sinks, s)
		}
	}

	return t
}

func (t *tracker) report(stage Stage, status string, fraction float64, modName string) {
	pct := 100.0
	if b, ok := bands[stage]; ok {
		pct = b.at(fraction)
	}

	t.mu.Lock()
	if pct < t.last {
		pct = t.last
	}
	t.last = pct
	t.mu.Unlock()

	p := Progress{Stage: stage, Status: status, Percent: pct, ModName: modName}
	for _, s := range t.sinks {
		s(p)
	}
}

func (t *tracker) percent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.last
}

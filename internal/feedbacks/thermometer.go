package feedbacks

import (
	"math"
	"sync/atomic"

	"github.com/mattjoyce/feedbackd/internal/plugin"
)

// Thermometer displays a single neurofeedback level. Control events carry
// the level either as cl_output or as the last element of a data series.
type Thermometer struct {
	plugin.Base

	loop  Loop
	level atomic.Uint64 // float64 bits
	ticks atomic.Int64
}

// NewThermometer returns an uninitialised thermometer.
func NewThermometer() *Thermometer {
	t := &Thermometer{}
	t.loop.PlayTick = t.playTick
	return t
}

func (t *Thermometer) OnInit() error {
	t.MergeVariables(map[string]any{
		"caption":    "Neurofeedback Thermometer",
		"color":      []any{0, 0, 0},
		"fontheight": 200,
		"level":      0.0,
		"ticks":      int64(0),
	})
	return nil
}

func (t *Thermometer) ArmPlay()       { t.loop.Arm() }
func (t *Thermometer) OnPlay() error  { return t.loop.Run() }
func (t *Thermometer) OnPause() error { t.loop.Pause(); return nil }
func (t *Thermometer) OnStop() error  { t.loop.Stop(); return nil }
func (t *Thermometer) OnQuit() error  { t.loop.Quit(); return nil }

func (t *Thermometer) OnControlEvent(data map[string]any) error {
	if v, ok := toFloat(data["cl_output"]); ok {
		t.setLevel(v)
		return nil
	}
	if series, ok := data["data"].([]any); ok && len(series) > 0 {
		if v, ok := toFloat(series[len(series)-1]); ok {
			t.setLevel(v)
		}
	}
	return nil
}

// Level returns the most recent level.
func (t *Thermometer) Level() float64 {
	return math.Float64frombits(t.level.Load())
}

func (t *Thermometer) setLevel(v float64) {
	t.level.Store(math.Float64bits(v))
	t.SetVariable("level", v)
}

func (t *Thermometer) playTick() error {
	t.SetVariable("ticks", t.ticks.Add(1))
	return nil
}

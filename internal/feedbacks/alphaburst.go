package feedbacks

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattjoyce/feedbackd/internal/plugin"
)

// TrialKind selects how an AlphaBurst run presents stimuli and reads
// classifier output. The wire value is 1-based.
type TrialKind int

const (
	TrialCount TrialKind = iota + 1
	TrialYesNo
	TrialCalibration
	TrialFreeSpelling
	TrialCopySpelling
)

var trialKindNames = map[TrialKind]string{
	TrialCount:        "Count",
	TrialYesNo:        "YesNo",
	TrialCalibration:  "Calibration",
	TrialFreeSpelling: "FreeSpelling",
	TrialCopySpelling: "CopySpelling",
}

func (k TrialKind) String() string {
	if n, ok := trialKindNames[k]; ok {
		return n
	}
	return "TrialKind(" + strconv.Itoa(int(k)) + ")"
}

// ErrUnknownTrialKind is returned by OnPlay when trial_type is outside 1..5.
var ErrUnknownTrialKind = errors.New("unknown trial type")

var defaultColorGroups = []string{"ABCDE", "FGHIJ", "KLMNO", "PQRST", "UVWXYZ", "_.,!?"}

// burstConfig is the parameter set read from variables at the start of play.
type burstConfig struct {
	kind        TrialKind
	colorGroups []string
	trialCount  int
	copyText    string
	maxLength   int
}

func (c burstConfig) alphabet() []string {
	var out []string
	for _, g := range c.colorGroups {
		for _, r := range g {
			out = append(out, string(r))
		}
	}
	sort.Strings(out)
	return out
}

// trial cycles through a fixed stimulus sequence.
type trial struct {
	stimuli   []string
	pos       int
	presented int
}

func (t *trial) next() string {
	if len(t.stimuli) == 0 {
		return ""
	}
	s := t.stimuli[t.pos]
	t.pos = (t.pos + 1) % len(t.stimuli)
	t.presented++
	return s
}

// inputHandler turns raw classifier classes into tokens for the experiment.
type inputHandler struct {
	mu        sync.Mutex
	interpret func(class int) (string, bool)
	pending   []string
}

func (h *inputHandler) classifier(class int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if tok, ok := h.interpret(class); ok {
		h.pending = append(h.pending, tok)
	}
}

func (h *inputHandler) drain() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.pending
	h.pending = nil
	return out
}

// experiment consumes tokens once per presented stimulus and reports
// whether the run is complete.
type experiment interface {
	step(t *trial, tokens []string) (done bool)
	results() map[string]any
}

// trialSetup is the (trial, input handler, experiment) triple for a kind.
type trialSetup struct {
	newTrial      func(burstConfig) *trial
	newInput      func(burstConfig) *inputHandler
	newExperiment func(burstConfig) experiment
}

var trialSetups = map[TrialKind]trialSetup{
	TrialCount:        {newTrial: alphabetTrial, newInput: countInput, newExperiment: newCountExperiment},
	TrialYesNo:        {newTrial: yesNoTrial, newInput: yesNoInput, newExperiment: newYesNoExperiment},
	TrialCalibration:  {newTrial: alphabetTrial, newInput: calibrationInput, newExperiment: newCalibrationExperiment},
	TrialFreeSpelling: {newTrial: groupTrial, newInput: spellingInput, newExperiment: newFreeSpellingExperiment},
	TrialCopySpelling: {newTrial: groupTrial, newInput: spellingInput, newExperiment: newCopySpellingExperiment},
}

func alphabetTrial(c burstConfig) *trial { return &trial{stimuli: c.alphabet()} }

func groupTrial(c burstConfig) *trial {
	return &trial{stimuli: append([]string(nil), c.colorGroups...)}
}

func yesNoTrial(burstConfig) *trial { return &trial{stimuli: []string{"yes", "no"}} }

func countInput(burstConfig) *inputHandler {
	return &inputHandler{interpret: func(class int) (string, bool) { return "hit", class > 0 }}
}

func yesNoInput(burstConfig) *inputHandler {
	return &inputHandler{interpret: func(class int) (string, bool) {
		switch class {
		case 0:
			return "no", true
		case 1:
			return "yes", true
		}
		return "", false
	}}
}

func calibrationInput(burstConfig) *inputHandler {
	return &inputHandler{interpret: func(class int) (string, bool) { return strconv.Itoa(class), true }}
}

// spellingInput selects a color group with the first class and a symbol
// within that group with the second.
func spellingInput(c burstConfig) *inputHandler {
	groups := c.colorGroups
	group := -1
	return &inputHandler{interpret: func(class int) (string, bool) {
		if group < 0 {
			if class < 0 || class >= len(groups) {
				return "", false
			}
			group = class
			return "", false
		}
		g := []rune(groups[group])
		group = -1
		if class < 0 || class >= len(g) {
			return "", false
		}
		return string(g[class]), true
	}}
}

func newCountExperiment(c burstConfig) experiment { return &countExperiment{limit: c.trialCount} }

func newYesNoExperiment(burstConfig) experiment { return &yesNoExperiment{} }

func newCalibrationExperiment(c burstConfig) experiment {
	return &calibrationExperiment{limit: c.trialCount}
}

func newFreeSpellingExperiment(c burstConfig) experiment {
	return &spellingExperiment{maxLength: c.maxLength}
}

func newCopySpellingExperiment(c burstConfig) experiment {
	return &spellingExperiment{target: strings.ToUpper(c.copyText), maxLength: c.maxLength}
}

type countExperiment struct {
	limit int
	count int
	seen  int
}

func (e *countExperiment) step(_ *trial, tokens []string) bool {
	e.count += len(tokens)
	e.seen++
	return e.seen >= e.limit
}

func (e *countExperiment) results() map[string]any {
	return map[string]any{"count": e.count}
}

type yesNoExperiment struct {
	answer string
}

func (e *yesNoExperiment) step(_ *trial, tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	e.answer = tokens[0]
	return true
}

func (e *yesNoExperiment) results() map[string]any {
	return map[string]any{"answer": e.answer}
}

type calibrationExperiment struct {
	limit   int
	samples []any
	seen    int
}

func (e *calibrationExperiment) step(_ *trial, tokens []string) bool {
	for _, t := range tokens {
		e.samples = append(e.samples, t)
	}
	e.seen++
	return e.seen >= e.limit
}

func (e *calibrationExperiment) results() map[string]any {
	return map[string]any{"calibration": append([]any(nil), e.samples...)}
}

// spellingExperiment appends selected symbols. With a target it only
// accepts the next expected symbol and finishes once the target is spelled.
type spellingExperiment struct {
	target    string
	maxLength int
	spelled   strings.Builder
}

func (e *spellingExperiment) step(_ *trial, tokens []string) bool {
	for _, tok := range tokens {
		if e.target != "" {
			want := []rune(e.target)
			have := len([]rune(e.spelled.String()))
			if have < len(want) && string(want[have]) == tok {
				e.spelled.WriteString(tok)
			}
			continue
		}
		e.spelled.WriteString(tok)
	}
	if e.target != "" {
		return e.spelled.String() == e.target
	}
	return e.maxLength > 0 && len([]rune(e.spelled.String())) >= e.maxLength
}

func (e *spellingExperiment) results() map[string]any {
	return map[string]any{"spelled": e.spelled.String()}
}

// AlphaBurst is a trial-type driven speller. trial_type picks the kind at
// the start of each play; classifier output arrives as cl_output.
type AlphaBurst struct {
	plugin.Base

	loop Loop

	mu    sync.Mutex
	kind  TrialKind
	trial *trial
	input *inputHandler
	exp   experiment
}

// NewAlphaBurst returns an uninitialised speller.
func NewAlphaBurst() *AlphaBurst {
	a := &AlphaBurst{}
	a.loop.Interval = 100 * time.Millisecond
	a.loop.PlayTick = a.playTick
	return a
}

func (a *AlphaBurst) OnInit() error {
	groups := make([]any, len(defaultColorGroups))
	for i, g := range defaultColorGroups {
		groups[i] = g
	}
	a.MergeVariables(map[string]any{
		"trial_type":   int64(TrialCount),
		"color_groups": groups,
		"trial_count":  int64(10),
		"copy_text":    "HELLO",
		"max_length":   int64(20),
	})
	return nil
}

// OnPlay builds the triple for the configured trial kind and runs it.
func (a *AlphaBurst) OnPlay() error {
	cfg, err := a.config()
	if err != nil {
		return err
	}
	setup, ok := trialSetups[cfg.kind]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTrialKind, cfg.kind)
	}

	a.mu.Lock()
	a.kind = cfg.kind
	a.trial = setup.newTrial(cfg)
	a.input = setup.newInput(cfg)
	a.exp = setup.newExperiment(cfg)
	a.mu.Unlock()

	a.MergeVariables(map[string]any{
		"trial_name": cfg.kind.String(),
		"alphabet":   strings.Join(cfg.alphabet(), ""),
		"finished":   false,
	})
	return a.loop.Run()
}

func (a *AlphaBurst) ArmPlay()       { a.loop.Arm() }
func (a *AlphaBurst) OnPause() error { a.loop.Pause(); return nil }
func (a *AlphaBurst) OnStop() error  { a.loop.Stop(); return nil }
func (a *AlphaBurst) OnQuit() error  { a.loop.Quit(); return nil }

func (a *AlphaBurst) OnControlEvent(data map[string]any) error {
	cls, ok := toInt(data["cl_output"])
	if !ok {
		return nil
	}
	a.mu.Lock()
	in := a.input
	a.mu.Unlock()
	if in != nil {
		in.classifier(cls)
	}
	return nil
}

// Kind returns the trial kind of the current or last run.
func (a *AlphaBurst) Kind() TrialKind {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.kind
}

func (a *AlphaBurst) playTick() error {
	a.mu.Lock()
	t, in, exp := a.trial, a.input, a.exp
	a.mu.Unlock()
	if t == nil {
		return nil
	}

	stimulus := t.next()
	done := exp.step(t, in.drain())
	vars := exp.results()
	vars["stimulus"] = stimulus
	vars["presented"] = int64(t.presented)
	vars["finished"] = done
	a.MergeVariables(vars)
	if done {
		a.loop.Stop()
	}
	return nil
}

func (a *AlphaBurst) config() (burstConfig, error) {
	vars := a.Variables()
	cfg := burstConfig{
		colorGroups: defaultColorGroups,
		trialCount:  10,
		copyText:    "HELLO",
		maxLength:   20,
	}

	kind, ok := toInt(vars["trial_type"])
	if !ok {
		return cfg, fmt.Errorf("%w: %v", ErrUnknownTrialKind, vars["trial_type"])
	}
	cfg.kind = TrialKind(kind)

	if raw, ok := vars["color_groups"].([]any); ok && len(raw) > 0 {
		groups := make([]string, 0, len(raw))
		for _, g := range raw {
			if s, ok := g.(string); ok && s != "" {
				groups = append(groups, s)
			}
		}
		if len(groups) > 0 {
			cfg.colorGroups = groups
		}
	}
	if n, ok := toInt(vars["trial_count"]); ok && n > 0 {
		cfg.trialCount = n
	}
	if s, ok := vars["copy_text"].(string); ok {
		cfg.copyText = s
	}
	if n, ok := toInt(vars["max_length"]); ok {
		cfg.maxLength = n
	}
	return cfg, nil
}

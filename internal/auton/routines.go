package auton

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	Nothing         = "nothing"
	ForwardBackward = "forward_backward"
	ScoreMGWithCone = "score_mg_with_cone"
	ScoreStationary = "score_stationary"
)

const liftUp, liftDown = 127.0, 0.0

func builtins() []*Routine {
	return []*Routine{
		{
			Name:  Nothing,
			Title: "Nothing",
		},
		{
			Name:  ForwardBackward,
			Title: "Forward+Backward",
			Steps: []Step{
				{Kind: Straight, Distance: 100, Power: 95},
				{Kind: Straight, Distance: 100, Power: -95},
				{Kind: StopKind},
			},
		},
		{
			Name:        ScoreMGWithCone,
			Title:       "MG+Cone",
			Description: "stack the preload on the mobile goal and score it in the 20pt zone",
			Steps: []Step{
				{Kind: Claw, Direction: "close"},
				{Kind: Lift, Target: liftUp, Ms: 1200},
				{Kind: Straight, Distance: 950, Power: 127},
				{Kind: StopKind},
				{Kind: Lift, Target: liftDown, Ms: 1200},
				{Kind: Claw, Direction: "open"},
				{Kind: Straight, Distance: 32, Power: -64},
				{Kind: TurnCW, Angle: 180, Radius: 0, Power: 127},
				{Kind: Straight, Distance: 35, Power: -64},
				{Kind: StopKind},
				{Kind: MGL, Target: liftUp, Ms: 1300},
				{Kind: Straight, Distance: 950, Power: -127},
				{Kind: TurnCCW, Angle: 45, Radius: 0, Power: 64},
				{Kind: Straight, Distance: 500, Power: 127},
				{Kind: TurnCW, Angle: 90, Radius: 0, Power: 64},
				{Kind: Straight, Distance: 530, Power: -127},
				{Kind: StopKind},
				{Kind: MGL, Target: liftDown, Ms: 1000},
				{Kind: Straight, Distance: 450, Power: 127},
				{Kind: StopKind},
			},
		},
		{
			Name:        ScoreStationary,
			Title:       "Score Stationary",
			Description: "start in the middle and score the preload on the stationary goal",
			Steps: []Step{
				{Kind: Claw, Direction: "close"},
				{Kind: Lift, Target: liftUp, Ms: 4200},
				{Kind: Straight, Distance: 96, Power: 64},
				{Kind: StopKind},
				{Kind: Lift, Target: 90, Ms: 950},
				{Kind: Claw, Direction: "open"},
				{Kind: Straight, Distance: 64, Power: -64},
				{Kind: StopKind},
				{Kind: Lift, Target: liftDown, Ms: 2800},
			},
		},
	}
}

// Library holds the routines that can be selected, in menu order.
type Library struct {
	mu       sync.RWMutex
	order    []string
	routines map[string]*Routine
}

// NewLibrary returns a library of the built-in routines.
func NewLibrary() *Library {
	l := &Library{routines: make(map[string]*Routine)}
	for _, r := range builtins() {
		l.Add(r)
	}
	return l
}

// Add inserts or replaces a routine.
func (l *Library) Add(r *Routine) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.routines[r.Name]; !ok {
		l.order = append(l.order, r.Name)
	}
	l.routines[r.Name] = r
}

func (l *Library) Get(name string) (*Routine, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.routines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRoutine, name)
	}
	return r, nil
}

// Names lists routine names in menu order.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.order...)
}

// Sorted lists routine names alphabetically.
func (l *Library) Sorted() []string {
	names := l.Names()
	sort.Strings(names)
	return names
}

// LoadScript reads a routine from YAML. Unknown fields and invalid steps
// are rejected.
func LoadScript(path string) (*Routine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var r Routine
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &r, nil
}

// LoadScripts adds every script to the library.
func (l *Library) LoadScripts(paths []string) error {
	for _, p := range paths {
		r, err := LoadScript(p)
		if err != nil {
			return err
		}
		l.Add(r)
	}
	return nil
}

// Marshal renders a routine as YAML.
func Marshal(r *Routine) ([]byte, error) {
	return yaml.Marshal(r)
}

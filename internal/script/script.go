// Package script loads and runs looper scenarios described in YAML.
//
// A scenario declares worker threads, then runs steps against them and the
// main looper, recording every message dispatch:
//
//	threads: [worker]
//	steps:
//	  - post: {label: a, delay: 100ms}
//	  - post: {looper: worker, label: b}
//	  - idle_for: 100ms
//	  - idle_for: {looper: worker, duration: 1s}
//	  - advance: 10ms
//	  - idle: main
//	  - reset: true
package script

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// MainLooper names the main looper, which always exists.
const MainLooper = `main`

// Scenario is a parsed scenario file.
type Scenario struct {
	// Threads are the names of worker loopers, each started on its own
	// goroutine.
	Threads []string `yaml:"threads"`
	Steps   []Step   `yaml:"steps"`
}

// Step is a single action. Exactly one field must be set.
type Step struct {
	// Post queues a labeled message.
	Post *Post `yaml:"post"`

	// Advance moves the clock forward, without dispatching anything.
	Advance *time.Duration `yaml:"advance"`

	// IdleFor advances the clock, then idles the looper.
	IdleFor *IdleFor `yaml:"idle_for"`

	// Idle names a looper to idle.
	Idle string `yaml:"idle"`

	// Reset resets the registry, quitting every worker.
	Reset bool `yaml:"reset"`
}

// Post describes a labeled message.
type Post struct {
	// Looper defaults to MainLooper.
	Looper string `yaml:"looper"`
	Label  string `yaml:"label"`

	// Then are posted by the message, when it is dispatched.
	Then []Post `yaml:"then"`

	Delay time.Duration `yaml:"delay"`
}

// IdleFor describes an idle_for step.
type IdleFor struct {
	// Looper defaults to MainLooper.
	Looper   string        `yaml:"looper"`
	Duration time.Duration `yaml:"duration"`
}

// UnmarshalYAML supports both a bare duration, which idles the main looper,
// and the mapping form.
// Simple form:   idle_for: 100ms
// Extended form: idle_for: {looper: worker, duration: 100ms}
func (x *IdleFor) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		d, err := time.ParseDuration(value.Value)
		if err != nil {
			return fmt.Errorf("idle_for: %w", err)
		}
		*x = IdleFor{Duration: d}
		return nil
	}

	type rawIdleFor IdleFor
	var raw rawIdleFor
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*x = IdleFor(raw)
	return nil
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	return &scenario, nil
}

// Validate checks that the scenario is well-formed, and that every looper
// it references is declared.
func (x *Scenario) Validate() error {
	names := []string{MainLooper}
	for _, name := range x.Threads {
		if name == `` {
			return errors.New("thread name is required")
		}
		if slices.Contains(names, name) {
			return fmt.Errorf("thread %q: duplicate name", name)
		}
		names = append(names, name)
	}

	known := func(name string) error {
		if name != `` && !slices.Contains(names, name) {
			return fmt.Errorf("unknown looper %q", name)
		}
		return nil
	}

	var validatePost func(p *Post) error
	validatePost = func(p *Post) error {
		if p.Label == `` {
			return errors.New("post: label is required")
		}
		if p.Delay < 0 {
			return fmt.Errorf("post %q: negative delay", p.Label)
		}
		if err := known(p.Looper); err != nil {
			return fmt.Errorf("post %q: %w", p.Label, err)
		}
		for i := range p.Then {
			if err := validatePost(&p.Then[i]); err != nil {
				return err
			}
		}
		return nil
	}

	for i, step := range x.Steps {
		var err error
		switch step.actions() {
		case 0:
			err = errors.New("no action")
		case 1:
		default:
			err = errors.New("more than one action")
		}
		if err == nil {
			switch {
			case step.Post != nil:
				err = validatePost(step.Post)
			case step.Advance != nil:
				if *step.Advance < 0 {
					err = errors.New("advance: negative duration")
				}
			case step.IdleFor != nil:
				if step.IdleFor.Duration < 0 {
					err = errors.New("idle_for: negative duration")
				} else {
					err = known(step.IdleFor.Looper)
				}
			case step.Idle != ``:
				err = known(step.Idle)
			}
		}
		if err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	return nil
}

func (x *Step) actions() (n int) {
	for _, set := range [...]bool{
		x.Post != nil,
		x.Advance != nil,
		x.IdleFor != nil,
		x.Idle != ``,
		x.Reset,
	} {
		if set {
			n++
		}
	}
	return
}

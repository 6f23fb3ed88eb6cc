// Package flow drives a run through a state machine described by an explicit
// transition table of (state, outcome) -> next state.
package flow

import (
	"context"
	"fmt"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

// State is a named element of a flow definition.
type State interface {
	ID() string
}

// Executable is a state that performs work and records it in a StepRecord.
type Executable interface {
	State
	Execute(ctx context.Context, run *model.PipelineRun, record *model.StepRecord) error
}

// Decider is a state that selects an outcome without doing external work.
type Decider interface {
	State
	Decide(ctx context.Context, run *model.PipelineRun) (model.ExitStatus, error)
}

// Transition is the target of a rule.
type Transition struct {
	// On matches the state's exit status; "*" matches any status.
	On string `yaml:"on,omitempty"`
	// OnError matches a failing state's error by registered name; "States.ALL" catches everything.
	OnError string `yaml:"on_error,omitempty"`
	To      string `yaml:"to,omitempty"`
	End     bool   `yaml:"end,omitempty"`
	Fail    bool   `yaml:"fail,omitempty"`
}

// TransitionRule is one row of the transition table.
type TransitionRule struct {
	From       string
	Transition Transition
}

// Definition is a complete state machine.
type Definition struct {
	Name            string
	StartState      string
	States          map[string]State
	TransitionRules []TransitionRule
}

// NewDefinition creates an empty definition starting at startState.
func NewDefinition(name, startState string) *Definition {
	return &Definition{
		Name:       name,
		StartState: startState,
		States:     make(map[string]State),
	}
}

// AddState registers a state.
func (d *Definition) AddState(s State) error {
	if _, exists := d.States[s.ID()]; exists {
		return fmt.Errorf("flow state ID '%s' already exists", s.ID())
	}
	d.States[s.ID()] = s
	return nil
}

// AddTransitionRule appends a rule. Rules are evaluated in insertion order.
func (d *Definition) AddTransitionRule(from string, t Transition) {
	d.TransitionRules = append(d.TransitionRules, TransitionRule{From: from, Transition: t})
}

// Next adds the nominal success transition from -> to.
func (d *Definition) Next(from, to string) {
	d.AddTransitionRule(from, Transition{On: string(model.ExitStatusCompleted), To: to})
}

// Catch adds an error transition from -> to for errors matching errorName.
func (d *Definition) Catch(from, errorName, to string) {
	d.AddTransitionRule(from, Transition{OnError: errorName, To: to})
}

// GetTransitionRule finds the first rule for from that matches the outcome.
// Error rules only match failed states; status rules only match successful ones
// unless they name the FAILED status explicitly.
func (d *Definition) GetTransitionRule(from string, exitStatus model.ExitStatus, err error) (TransitionRule, bool) {
	for _, rule := range d.TransitionRules {
		if rule.From != from {
			continue
		}
		t := rule.Transition
		if t.OnError != "" {
			if err != nil && exception.IsErrorOfType(err, t.OnError) {
				return rule, true
			}
			continue
		}
		if err != nil && t.On != string(model.ExitStatusFailed) {
			continue
		}
		if t.On == string(exitStatus) || t.On == "*" {
			return rule, true
		}
	}
	return TransitionRule{}, false
}

// HasCatch reports whether from has any error rule.
func (d *Definition) HasCatch(from string) bool {
	for _, rule := range d.TransitionRules {
		if rule.From == from && (rule.Transition.OnError != "" || rule.Transition.On == string(model.ExitStatusFailed)) {
			return true
		}
	}
	return false
}

// Validate checks that the start state and every rule endpoint exist.
func (d *Definition) Validate() error {
	if _, ok := d.States[d.StartState]; !ok {
		return fmt.Errorf("flow '%s': start state '%s' is not defined", d.Name, d.StartState)
	}
	for _, rule := range d.TransitionRules {
		if _, ok := d.States[rule.From]; !ok {
			return fmt.Errorf("flow '%s': transition from unknown state '%s'", d.Name, rule.From)
		}
		if rule.Transition.To == "" {
			if !rule.Transition.End && !rule.Transition.Fail {
				return fmt.Errorf("flow '%s': transition from '%s' has no target", d.Name, rule.From)
			}
			continue
		}
		if _, ok := d.States[rule.Transition.To]; !ok {
			return fmt.Errorf("flow '%s': transition from '%s' targets unknown state '%s'", d.Name, rule.From, rule.Transition.To)
		}
	}
	return nil
}

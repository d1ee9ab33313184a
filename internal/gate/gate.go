// Package gate decides whether content is rendered for the current
// authentication state.
//
// A Gate is stateless: every call reads the supplied State, asks the
// injected Predicate, and either passes the children through or produces
// Empty. Nothing is cached between evaluations.
package gate

import (
	"errors"
	"fmt"
)

// ErrPredicate is matched by every error surfaced from a Predicate.
var ErrPredicate = errors.New("gate: authentication predicate failed")

// State is the authentication state supplied by the host session layer.
type State struct {
	Tokens []string
}

// Clone returns a copy of s that shares no memory with it. A nil token
// list stays nil and an empty one stays empty.
func (s State) Clone() State {
	if s.Tokens == nil {
		return State{}
	}
	tokens := make([]string, len(s.Tokens))
	copy(tokens, s.Tokens)
	return State{Tokens: tokens}
}

// Predicate reports whether tokens belong to an authenticated user.
type Predicate func(tokens []string) (bool, error)

// PredicateError wraps a failure returned by a Predicate.
type PredicateError struct {
	Err error
}

func (e *PredicateError) Error() string {
	if e.Err == nil {
		return ErrPredicate.Error()
	}
	return fmt.Sprintf("%s: %v", ErrPredicate.Error(), e.Err)
}

// Unwrap returns the predicate's own error.
func (e *PredicateError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrPredicate) hold for any PredicateError.
func (e *PredicateError) Is(target error) bool { return target == ErrPredicate }

// Gate gates render output on a Predicate.
type Gate struct {
	predicate Predicate
}

// New returns a Gate backed by p.
func New(p Predicate) *Gate {
	return &Gate{predicate: p}
}

// Evaluate asks the predicate about state.Tokens.
func (g *Gate) Evaluate(state State) (Decision, error) {
	if g == nil || g.predicate == nil {
		return false, &PredicateError{Err: errors.New("no predicate configured")}
	}
	ok, err := g.predicate(state.Tokens)
	if err != nil {
		return false, &PredicateError{Err: err}
	}
	return Decision(ok), nil
}

// Render returns children unchanged when state is authenticated and Empty
// otherwise.
func (g *Gate) Render(state State, children Node) (Node, error) {
	decision, err := g.Evaluate(state)
	if err != nil {
		return nil, err
	}
	if !decision {
		return Empty, nil
	}
	return children, nil
}

// Component produces render output from its input properties.
type Component[P any] func(props P) Node

// Gated is a Component whose output depends on an explicit State.
type Gated[P any] func(state State, props P) (Node, error)

// Wrap makes component conditionally visible. The gate is consulted
// before component runs, so a hidden component is never invoked.
func Wrap[P any](g *Gate, component Component[P]) Gated[P] {
	return func(state State, props P) (Node, error) {
		decision, err := g.Evaluate(state)
		if err != nil {
			return nil, err
		}
		if !decision {
			return Empty, nil
		}
		return component(props), nil
	}
}

package gate

// Visibility is the state of a gate after one evaluation.
type Visibility int

const (
	Hidden Visibility = iota
	Visible
)

func (v Visibility) String() string {
	switch v {
	case Visible:
		return "visible"
	default:
		return "hidden"
	}
}

// Decision is the outcome of evaluating a State.
type Decision bool

// Authenticated reports whether the state was accepted.
func (d Decision) Authenticated() bool { return bool(d) }

// Visibility maps the decision onto Hidden or Visible.
func (d Decision) Visibility() Visibility {
	if d {
		return Visible
	}
	return Hidden
}

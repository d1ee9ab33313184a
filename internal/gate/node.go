package gate

import (
	"context"
	"io"
)

// Node is a unit of render output handed back to the host.
type Node interface {
	Render(ctx context.Context, w io.Writer) error
}

// NodeFunc adapts a function to Node.
type NodeFunc func(ctx context.Context, w io.Writer) error

// Render calls f.
func (f NodeFunc) Render(ctx context.Context, w io.Writer) error {
	return f(ctx, w)
}

type emptyNode struct{}

func (emptyNode) Render(context.Context, io.Writer) error { return nil }

// Empty renders nothing.
var Empty Node = emptyNode{}

// IsEmpty reports whether n produces no output by construction.
func IsEmpty(n Node) bool {
	if n == nil {
		return true
	}
	_, ok := n.(emptyNode)
	return ok
}

// Text returns a Node that writes s verbatim.
func Text(s string) Node {
	return NodeFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	})
}

// Group renders nodes in order, skipping empty ones.
func Group(nodes ...Node) Node {
	return NodeFunc(func(ctx context.Context, w io.Writer) error {
		for _, n := range nodes {
			if IsEmpty(n) {
				continue
			}
			if err := n.Render(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
}

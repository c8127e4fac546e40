package filterengine

import "strings"

// FailurePath is the trail of keys leading to a failure. A node with several
// children comes from an $or whose branches all failed.
type FailurePath struct {
	Key      string         `json:"key"`
	Children []*FailurePath `json:"children,omitempty"`
}

// NewFailurePath builds a single chain, outermost key first.
func NewFailurePath(keys ...string) *FailurePath {
	var p *FailurePath
	for i := len(keys) - 1; i >= 0; i-- {
		p = p.Prepend(keys[i])
	}
	return p
}

// Prepend returns a new root key whose only child is p.
func (p *FailurePath) Prepend(key string) *FailurePath {
	if p == nil {
		return &FailurePath{Key: key}
	}
	return &FailurePath{Key: key, Children: []*FailurePath{p}}
}

// MergeFailurePaths places branches as siblings under key.
func MergeFailurePaths(key string, branches ...*FailurePath) *FailurePath {
	root := &FailurePath{Key: key}
	for _, b := range branches {
		if b != nil {
			root.Children = append(root.Children, b)
		}
	}
	return root
}

// Keys flattens the tree depth first, parents before children.
func (p *FailurePath) Keys() []string {
	if p == nil {
		return nil
	}
	out := []string{p.Key}
	for _, c := range p.Children {
		out = append(out, c.Keys()...)
	}
	return out
}

func (p *FailurePath) String() string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	p.write(&b)
	return b.String()
}

func (p *FailurePath) write(b *strings.Builder) {
	b.WriteString(p.Key)
	switch len(p.Children) {
	case 0:
	case 1:
		b.WriteString(" > ")
		p.Children[0].write(b)
	default:
		b.WriteString(" > [")
		for i, c := range p.Children {
			if i > 0 {
				b.WriteString(" | ")
			}
			c.write(b)
		}
		b.WriteString("]")
	}
}

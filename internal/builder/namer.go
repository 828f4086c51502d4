package builder

import "fmt"

// Namer assigns unique local names within one function body, following
// the naming scheme of the textual format: a name is used bare the
// first time it occurs and only gets a numeric suffix on collision
// ("base.N" for the Nth collision), while an unnamed value gets a purely
// numeric anonymous name.
type Namer struct {
	history   map[string]int
	anonymous int
}

// NewNamer returns a Namer with empty history, scoped to one function.
func NewNamer() *Namer {
	return &Namer{history: make(map[string]int)}
}

// Next returns the unique name to use for base, or an anonymous numeric
// name if base is empty.
func (n *Namer) Next(base string) string {
	if base == "" {
		return n.NextAnonymous()
	}
	if count, seen := n.history[base]; seen {
		count++
		n.history[base] = count
		return fmt.Sprintf("%s.%d", base, count)
	}
	n.history[base] = 0
	return base
}

// NextAnonymous returns a fresh purely-numeric name.
func (n *Namer) NextAnonymous() string {
	n.anonymous++
	return fmt.Sprintf("%d", n.anonymous)
}

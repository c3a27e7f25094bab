package parser

import "strings"

// ScopeSeparator joins scope names into a qualified name.
const ScopeSeparator = "."

// ScopeStack tracks the enclosing class/function names during a traversal.
// The module scope is implicit: an empty stack means module level.
type ScopeStack struct {
	names []string
}

func (s *ScopeStack) Push(name string) {
	s.names = append(s.names, name)
}

// Pop removes the innermost scope. Popping an empty stack means a push/pop
// pair got out of balance, which would silently corrupt every qualified
// name after it, so it panics.
func (s *ScopeStack) Pop() {
	if len(s.names) == 0 {
		panic("parser: scope stack pop without matching push")
	}
	s.names = s.names[:len(s.names)-1]
}

// Enter pushes name and returns the matching release. Use with defer.
func (s *ScopeStack) Enter(name string) func() {
	s.Push(name)
	depth := len(s.names)
	released := false
	return func() {
		if released {
			return
		}
		released = true
		if len(s.names) != depth {
			panic("parser: scope released out of order")
		}
		s.Pop()
	}
}

func (s *ScopeStack) Depth() int {
	return len(s.names)
}

// Current returns the joined scope, or "" at module level.
func (s *ScopeStack) Current() string {
	return strings.Join(s.names, ScopeSeparator)
}

func (s *ScopeStack) Qualify(name string) string {
	if len(s.names) == 0 {
		return name
	}
	return s.Current() + ScopeSeparator + name
}

func containsSeparator(name string) bool {
	return strings.Contains(name, ScopeSeparator)
}

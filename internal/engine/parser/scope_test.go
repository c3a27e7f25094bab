package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeStack_QualifyAndCurrent(t *testing.T) {
	var s ScopeStack
	assert.Equal(t, "", s.Current())
	assert.Equal(t, "f", s.Qualify("f"))

	s.Push("Outer")
	s.Push("method")
	assert.Equal(t, "Outer.method", s.Current())
	assert.Equal(t, "Outer.method.inner", s.Qualify("inner"))

	s.Pop()
	assert.Equal(t, "Outer", s.Current())
	s.Pop()
	assert.Equal(t, 0, s.Depth())
}

func TestScopeStack_QualifySegmentsMatchDepth(t *testing.T) {
	var s ScopeStack
	for depth := 0; depth < 6; depth++ {
		got := s.Qualify("leaf")
		require.Len(t, strings.Split(got, ScopeSeparator), depth+1, "depth %d: %q", depth, got)
		s.Push("level")
	}
}

func TestScopeStack_PopEmptyPanics(t *testing.T) {
	var s ScopeStack
	assert.Panics(t, func() { s.Pop() })
}

func TestScopeStack_EnterReleasesOnEveryPath(t *testing.T) {
	var s ScopeStack

	func() {
		leave := s.Enter("A")
		defer leave()
		assert.Equal(t, "A", s.Current())
	}()
	assert.Equal(t, 0, s.Depth())

	assert.Panics(t, func() {
		leave := s.Enter("B")
		defer leave()
		panic("handler failure")
	})
	assert.Equal(t, 0, s.Depth(), "guard must pop even when the body panics")

	leave := s.Enter("C")
	leave()
	leave()
	assert.Equal(t, 0, s.Depth(), "releasing twice must pop once")
}

package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"localrag/internal/logging"
)

func TestGate_StartsOnIntake(t *testing.T) {
	g := NewGate(nil)
	assert.Equal(t, ScreenIntake, g.Current())
	assert.Equal(t, PathHome, g.Path())
}

func TestGate_Visit(t *testing.T) {
	tests := []struct {
		name  string
		ready bool
		path  string
		want  Screen
	}{
		{name: "root", path: "/", want: ScreenIntake},
		{name: "home", path: "/home", want: ScreenIntake},
		{name: "rag before index", path: "/rag", want: ScreenIntake},
		{name: "rag after index", ready: true, path: "/rag", want: ScreenQuery},
		{name: "unknown", path: "/settings", want: ScreenIntake},
		{name: "unknown after index", ready: true, path: "/nope", want: ScreenIntake},
		{name: "empty", path: "", want: ScreenIntake},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate(logging.NewTestLogger(t))
			if tt.ready {
				g.IndexReady()
			}
			assert.Equal(t, tt.want, g.Visit(tt.path))
			assert.Equal(t, tt.want, g.Current())
		})
	}
}

func TestGate_BackRevokesQueryScreen(t *testing.T) {
	g := NewGate(nil)
	g.IndexReady()
	assert.Equal(t, ScreenQuery, g.Current())
	assert.Equal(t, PathRAG, g.Path())

	g.Back()
	assert.Equal(t, ScreenIntake, g.Current())
	assert.Equal(t, ScreenIntake, g.Visit(PathRAG))
}

func TestGate_OnEnterHooks(t *testing.T) {
	g := NewGate(nil)
	var entered []Screen
	g.OnEnter(ScreenIntake, func() { entered = append(entered, ScreenIntake) })
	g.OnEnter(ScreenQuery, func() { entered = append(entered, ScreenQuery) })

	g.IndexReady()
	g.Back()
	g.Visit("/missing")

	assert.Equal(t, []Screen{ScreenQuery, ScreenIntake, ScreenIntake}, entered)
}

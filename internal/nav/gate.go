// Package nav switches the user between the intake screen and the query
// screen.
package nav

import (
	"log/slog"

	"localrag/internal/logging"
)

// Screen identifies one of the two screens.
type Screen int

const (
	ScreenIntake Screen = iota
	ScreenQuery
)

func (s Screen) String() string {
	if s == ScreenQuery {
		return "query"
	}
	return "intake"
}

// Routes understood by Visit.
const (
	PathRoot = "/"
	PathHome = "/home"
	PathRAG  = "/rag"
)

// Gate owns the current screen. The query screen can only be entered after a
// successful index creation; every unknown location falls back to intake.
type Gate struct {
	screen  Screen
	ready   bool
	onEnter map[Screen][]func()
	log     *slog.Logger
}

// NewGate starts on the intake screen.
func NewGate(logger *slog.Logger) *Gate {
	return &Gate{
		screen:  ScreenIntake,
		onEnter: make(map[Screen][]func()),
		log:     logging.OrDiscard(logger),
	}
}

// Current returns the active screen.
func (g *Gate) Current() Screen { return g.screen }

// Path returns the canonical location of the active screen.
func (g *Gate) Path() string {
	if g.screen == ScreenQuery {
		return PathRAG
	}
	return PathHome
}

// OnEnter registers fn to run every time s becomes the active screen.
func (g *Gate) OnEnter(s Screen, fn func()) {
	g.onEnter[s] = append(g.onEnter[s], fn)
}

// IndexReady is called once index creation succeeded; it opens and enters
// the query screen.
func (g *Gate) IndexReady() {
	g.ready = true
	g.enter(ScreenQuery)
}

// Back returns to intake and closes the query screen until the next index.
func (g *Gate) Back() {
	g.ready = false
	g.enter(ScreenIntake)
}

// Visit resolves a location through the routing table and enters the result.
func (g *Gate) Visit(path string) Screen {
	switch path {
	case PathRoot, PathHome:
		g.enter(ScreenIntake)
	case PathRAG:
		if !g.ready {
			g.log.Info("query screen requires an index, redirecting", "path", path)
			g.enter(ScreenIntake)
			break
		}
		g.enter(ScreenQuery)
	default:
		g.log.Info("page not found, redirecting", "path", path, "to", PathHome)
		g.enter(ScreenIntake)
	}
	return g.screen
}

func (g *Gate) enter(s Screen) {
	prev := g.screen
	g.screen = s
	if prev != s {
		g.log.Debug("navigate", "from", prev, "to", s)
	}
	for _, fn := range g.onEnter[s] {
		fn()
	}
}

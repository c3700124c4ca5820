package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localrag/internal/domain"
	"localrag/internal/intake"
	"localrag/internal/logging"
	"localrag/internal/nav"
	"localrag/internal/query"
	"localrag/internal/workflow"
)

type fakeBackend struct {
	uploadRes domain.UploadResult
	queryErr  error
	answer    string

	uploads    [][]domain.StagedFile
	partitions [][]domain.ColumnPartition
	queries    []string
	indexed    int
}

func (f *fakeBackend) Upload(_ context.Context, files []domain.StagedFile) (domain.UploadResult, error) {
	f.uploads = append(f.uploads, files)
	return f.uploadRes, nil
}

func (f *fakeBackend) SetColumns(_ context.Context, parts []domain.ColumnPartition) error {
	f.partitions = append(f.partitions, parts)
	return nil
}

func (f *fakeBackend) CreateIndex(context.Context) error {
	f.indexed++
	return nil
}

func (f *fakeBackend) Query(_ context.Context, q string) (domain.Answer, error) {
	f.queries = append(f.queries, q)
	if f.queryErr != nil {
		return domain.Answer{}, f.queryErr
	}
	return domain.Answer{Message: f.answer}, nil
}

type harness struct {
	backend *fakeBackend
	store   *workflow.Store
	gate    *nav.Gate
	model   Model
}

func newHarness(t *testing.T, backend *fakeBackend, ready bool) *harness {
	t.Helper()
	log := logging.NewTestLogger(t)
	store := workflow.NewStore(workflow.DiscardLate, log)
	gate := nav.NewGate(log)
	in := intake.New(store, backend, gate, intake.Options{Logger: log})
	q := query.New(store, backend, gate, query.Options{Logger: log})
	gate.OnEnter(nav.ScreenIntake, in.Enter)
	if ready {
		gate.IndexReady()
	}
	h := &harness{backend: backend, store: store, gate: gate}
	h.model = New(Deps{Store: store, Gate: gate, Intake: in, Query: q, Logger: log})
	h.send(t, tea.WindowSizeMsg{Width: 100, Height: 40})
	return h
}

// send delivers msg and returns the resulting command without running it.
func (h *harness) send(t *testing.T, msg tea.Msg) tea.Cmd {
	t.Helper()
	next, cmd := h.model.Update(msg)
	m, ok := next.(Model)
	require.True(t, ok)
	h.model = m
	return cmd
}

// settle runs backend commands and feeds their commits back until the chain
// ends.
func (h *harness) settle(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	for cmd != nil {
		msg := cmd()
		cm, ok := msg.(commitMsg)
		require.Truef(t, ok, "expected a commit, got %T", msg)
		cmd = h.send(t, cm)
	}
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
	space = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
)

func touch(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	return p
}

func (h *harness) choose(t *testing.T, path string) {
	t.Helper()
	h.send(t, enter)
	require.True(t, h.model.editing)
	h.send(t, runes(path))
	h.send(t, enter)
}

func TestIntake_UploadClassifyAndCreate(t *testing.T) {
	pdf := touch(t, "notes.pdf")
	csv := touch(t, "reviews.csv")
	backend := &fakeBackend{uploadRes: domain.UploadResult{Tabular: []domain.TabularFile{
		{Filename: "reviews.csv", Columns: []string{"Title", "Review", "Rating"}},
	}}}
	h := newHarness(t, backend, false)

	h.choose(t, pdf)
	assert.False(t, h.model.editing)
	h.send(t, runes("a"))
	assert.Equal(t, 1, h.model.slotCursor)
	h.choose(t, csv)

	h.settle(t, h.send(t, runes("u")))
	require.Len(t, backend.uploads, 1)
	assert.Len(t, backend.uploads[0], 2)
	assert.Equal(t, intake.PhaseColumnSelection, h.model.intake.Phase())
	assert.Contains(t, h.model.View(), "Rating")

	h.send(t, runes("j"))
	h.send(t, runes("j"))
	h.send(t, space)

	h.settle(t, h.send(t, runes("c")))
	require.Len(t, backend.partitions, 1)
	assert.Equal(t, []domain.ColumnPartition{{
		Filename: "reviews.csv",
		Columns:  []string{"Title", "Review", "Rating"},
		Content:  []string{"Title", "Review"},
		Metadata: []string{"Rating"},
	}}, backend.partitions[0])
	assert.Equal(t, 1, backend.indexed)
	assert.Equal(t, nav.ScreenQuery, h.gate.Current())
	assert.Contains(t, h.model.View(), nav.PathRAG)
}

func TestIntake_NoTabularFilesCreatesIndexDirectly(t *testing.T) {
	backend := &fakeBackend{}
	h := newHarness(t, backend, false)

	h.choose(t, touch(t, "notes.pdf"))
	h.settle(t, h.send(t, runes("u")))

	assert.Equal(t, 1, backend.indexed)
	assert.Equal(t, nav.ScreenQuery, h.gate.Current())
}

func TestIntake_PathValidation(t *testing.T) {
	h := newHarness(t, &fakeBackend{}, false)

	h.choose(t, filepath.Join(t.TempDir(), "missing.pdf"))
	assert.True(t, h.model.editing)
	assert.Contains(t, h.model.notice, "Not a readable file")

	h.send(t, esc)
	h.choose(t, touch(t, "doc.docx"))
	assert.True(t, h.model.editing)
	assert.Equal(t, intake.MsgUnsupported, h.store.Err())
	assert.Contains(t, h.model.View(), intake.MsgUnsupported)
}

func TestIntake_AddSlotNeedsFilledSlots(t *testing.T) {
	h := newHarness(t, &fakeBackend{}, false)

	h.send(t, runes("a"))
	assert.Len(t, h.model.intake.Slots(), 1)
	assert.NotEmpty(t, h.model.notice)

	assert.Nil(t, h.send(t, runes("u")))
	assert.Equal(t, intake.MsgChooseFile, h.store.Err())
}

func TestIntake_BusyIgnoresEdits(t *testing.T) {
	h := newHarness(t, &fakeBackend{}, false)
	h.choose(t, touch(t, "notes.pdf"))

	cmd := h.send(t, runes("u"))
	require.NotNil(t, cmd)
	assert.Contains(t, h.model.View(), "Uploading...")

	h.send(t, runes("a"))
	h.send(t, enter)
	assert.Len(t, h.model.intake.Slots(), 1)
	assert.False(t, h.model.editing)

	h.settle(t, cmd)
	assert.False(t, h.store.Busy())
}

func TestIntake_Quit(t *testing.T) {
	h := newHarness(t, &fakeBackend{}, false)

	cmd := h.send(t, runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestQuery_SubmitShowsAnswer(t *testing.T) {
	backend := &fakeBackend{answer: "Bananas are yellow. Apples are red."}
	h := newHarness(t, backend, true)
	require.Equal(t, nav.ScreenQuery, h.model.screen)

	h.send(t, runes("which fruit is red"))
	assert.Equal(t, "which fruit is red", h.store.Query())

	h.settle(t, h.send(t, enter))
	assert.Equal(t, []string{"which fruit is red"}, backend.queries)
	assert.Equal(t, backend.answer, h.store.Result())
	assert.Empty(t, h.model.queryInput.Value())
	assert.Contains(t, h.model.View(), "Apples are red.")
}

func TestQuery_EmptySubmit(t *testing.T) {
	backend := &fakeBackend{}
	h := newHarness(t, backend, true)

	assert.Nil(t, h.send(t, enter))
	assert.Equal(t, query.MsgEmptyQuery, h.store.Err())
	assert.Empty(t, backend.queries)

	h.send(t, runes("x"))
	assert.Empty(t, h.store.Err())
}

func TestQuery_FailureKeepsText(t *testing.T) {
	h := newHarness(t, &fakeBackend{queryErr: errors.New("boom")}, true)

	h.send(t, runes("anything"))
	h.settle(t, h.send(t, enter))

	assert.Equal(t, query.MsgQueryFailed, h.store.Err())
	assert.Equal(t, "anything", h.model.queryInput.Value())
}

func TestQuery_BackReturnsToIntake(t *testing.T) {
	h := newHarness(t, &fakeBackend{answer: "ok"}, true)
	h.send(t, runes("hello"))

	cmd := h.send(t, enter)
	require.NotNil(t, cmd)
	h.send(t, esc)

	assert.Equal(t, nav.ScreenIntake, h.gate.Current())
	assert.False(t, h.store.Busy())
	assert.Empty(t, h.store.Query())

	// the answer arrives after the user left and is dropped
	h.settle(t, cmd)
	assert.Empty(t, h.store.Result())
	assert.Equal(t, nav.ScreenIntake, h.model.screen)
}

func TestHighlightBestSentence(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		query string
		want  string
	}{
		{
			name:  "picks the best overlap",
			text:  "Cats sleep a lot. Dogs bark at night.",
			query: "why do dogs bark",
			want:  "Cats sleep a lot. " + highlightStyle.Render("Dogs bark at night."),
		},
		{
			name:  "no overlap leaves text alone",
			text:  "Cats sleep a lot. Dogs bark.",
			query: "quantum physics",
			want:  "Cats sleep a lot. Dogs bark.",
		},
		{
			name:  "empty query",
			text:  "One. Two.",
			query: "",
			want:  "One. Two.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, highlightBestSentence(tt.text, tt.query))
		})
	}
}

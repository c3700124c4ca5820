package intake

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localrag/internal/domain"
	"localrag/internal/logging"
	"localrag/internal/nav"
	"localrag/internal/workflow"
)

type fakePort struct {
	uploadRes  domain.UploadResult
	uploadErr  error
	columnsErr error
	indexErr   error

	calls      []string
	uploads    [][]domain.StagedFile
	partitions [][]domain.ColumnPartition
}

func (f *fakePort) Upload(_ context.Context, files []domain.StagedFile) (domain.UploadResult, error) {
	f.calls = append(f.calls, "upload")
	f.uploads = append(f.uploads, files)
	return f.uploadRes, f.uploadErr
}

func (f *fakePort) SetColumns(_ context.Context, parts []domain.ColumnPartition) error {
	f.calls = append(f.calls, "set-columns")
	f.partitions = append(f.partitions, parts)
	return f.columnsErr
}

func (f *fakePort) CreateIndex(context.Context) error {
	f.calls = append(f.calls, "create-index")
	return f.indexErr
}

type fixture struct {
	store *workflow.Store
	port  *fakePort
	gate  *nav.Gate
	ctrl  *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logging.NewTestLogger(t)
	f := &fixture{
		store: workflow.NewStore(workflow.DiscardLate, log),
		port:  &fakePort{},
		gate:  nav.NewGate(log),
	}
	f.ctrl = New(f.store, f.port, f.gate, Options{Logger: log})
	f.gate.OnEnter(nav.ScreenIntake, f.ctrl.Enter)
	return f
}

func (f *fixture) stage(t *testing.T, paths ...string) {
	t.Helper()
	for i, p := range paths {
		if i > 0 {
			require.NoError(t, f.ctrl.AddSlot())
		}
		require.NoError(t, f.ctrl.SelectFile(i, p))
	}
}

func TestUpload_IncompleteBatchIsNoop(t *testing.T) {
	f := newFixture(t)

	assert.Nil(t, f.ctrl.Upload())
	assert.Equal(t, MsgChooseFile, f.store.Err())
	assert.Empty(t, f.port.calls)
	assert.Equal(t, PhaseIdle, f.ctrl.Phase())

	f.stage(t, "a.pdf")
	require.NoError(t, f.ctrl.AddSlot())
	assert.False(t, f.ctrl.CanUpload())
	assert.Nil(t, f.ctrl.Upload())
	assert.Empty(t, f.port.calls)
	assert.False(t, f.store.Busy())
}

func TestUpload_RejectedWhileBusy(t *testing.T) {
	f := newFixture(t)
	f.port.uploadRes = domain.UploadResult{Tabular: []domain.TabularFile{{Filename: "a.csv", Columns: []string{"x"}}}}
	f.stage(t, "a.csv")

	cmd := f.ctrl.Upload()
	require.NotNil(t, cmd)
	assert.True(t, f.store.Busy())
	assert.Equal(t, PhaseAwaitingUpload, f.ctrl.Phase())

	assert.Nil(t, f.ctrl.Upload())
	assert.Nil(t, f.ctrl.CreateIndex())

	workflow.Run(cmd)
	assert.Equal(t, []string{"upload"}, f.port.calls)
	assert.False(t, f.store.Busy())
}

func TestScenario_TabularFile(t *testing.T) {
	f := newFixture(t)
	f.port.uploadRes = domain.UploadResult{Tabular: []domain.TabularFile{
		{Filename: "fileA.csv", Columns: []string{"x", "y", "z"}},
	}}
	f.stage(t, "/data/fileA.csv")

	workflow.Run(f.ctrl.Upload())
	require.Equal(t, PhaseColumnSelection, f.ctrl.Phase())
	specs := f.ctrl.Specs()
	require.Len(t, specs, 1)
	assert.Equal(t, []string{"x", "y", "z"}, specs[0].Content())
	assert.Equal(t, f.port.uploadRes.Tabular, f.store.Columns())

	require.NoError(t, f.ctrl.ToggleColumn("fileA.csv", "y"))
	assert.Equal(t, []string{"x", "z"}, specs[0].Content())
	assert.Equal(t, []string{"y"}, specs[0].Metadata())

	workflow.Run(f.ctrl.CreateIndex())
	assert.Equal(t, []string{"upload", "set-columns", "create-index"}, f.port.calls)
	require.Len(t, f.port.partitions, 1)
	assert.Equal(t, []domain.ColumnPartition{{
		Filename: "fileA.csv",
		Columns:  []string{"x", "y", "z"},
		Content:  []string{"x", "z"},
		Metadata: []string{"y"},
	}}, f.port.partitions[0])

	assert.Equal(t, nav.ScreenQuery, f.gate.Current())
	assert.Equal(t, PhaseDone, f.ctrl.Phase())
	slots := f.ctrl.Slots()
	require.Len(t, slots, 1)
	assert.False(t, slots[0].Filled())
	assert.Empty(t, f.ctrl.Specs())
	assert.Nil(t, f.store.Columns())
	assert.False(t, f.store.Busy())
}

func TestScenario_PDFSkipsPartition(t *testing.T) {
	f := newFixture(t)
	f.stage(t, "report.pdf")

	workflow.Run(f.ctrl.Upload())

	assert.Equal(t, []string{"upload", "create-index"}, f.port.calls)
	assert.Equal(t, nav.ScreenQuery, f.gate.Current())
	assert.Equal(t, PhaseDone, f.ctrl.Phase())
}

func TestUpload_MixedBatch(t *testing.T) {
	f := newFixture(t)
	f.port.uploadRes = domain.UploadResult{Tabular: []domain.TabularFile{
		{Filename: "b.csv", Columns: []string{"Title", "Review", "Rating"}},
	}}
	f.stage(t, "a.pdf", "b.csv", "c.pdf")

	workflow.Run(f.ctrl.Upload())
	require.Len(t, f.port.uploads, 1)
	assert.Len(t, f.port.uploads[0], 3, "every staged file goes in one request")
	assert.Equal(t, PhaseColumnSelection, f.ctrl.Phase())
	require.Len(t, f.ctrl.Specs(), 1)
	assert.Equal(t, "b.csv", f.ctrl.Specs()[0].Filename)
}

func TestUpload_Failure(t *testing.T) {
	f := newFixture(t)
	f.port.uploadErr = errors.New("connection refused")
	f.stage(t, "a.csv")

	workflow.Run(f.ctrl.Upload())
	assert.Equal(t, MsgUploadFailed, f.store.Err())
	assert.Equal(t, PhaseStaged, f.ctrl.Phase())
	assert.False(t, f.store.Busy())
	assert.False(t, f.ctrl.CanCreateIndex())

	require.NoError(t, f.ctrl.SelectFile(0, "b.csv"))
	assert.Empty(t, f.store.Err(), "choosing a file clears a stale upload error")
}

func TestCreateIndex_PartitionCoversEveryFile(t *testing.T) {
	f := newFixture(t)
	f.port.uploadRes = domain.UploadResult{Tabular: []domain.TabularFile{
		{Filename: "a.csv", Columns: []string{"x", "y"}},
		{Filename: "b.csv", Columns: []string{"p", "q"}},
	}}
	f.stage(t, "a.csv", "b.csv")
	workflow.Run(f.ctrl.Upload())

	require.NoError(t, f.ctrl.ToggleColumn("b.csv", "p"))
	require.NoError(t, f.ctrl.ToggleColumn("b.csv", "q"))
	workflow.Run(f.ctrl.CreateIndex())

	require.Len(t, f.port.partitions, 1)
	parts := f.port.partitions[0]
	require.Len(t, parts, 2)
	assert.Equal(t, []string{"x", "y"}, parts[0].Content)
	assert.Empty(t, parts[1].Content, "zero content columns is legal")
	assert.Equal(t, []string{"p", "q"}, parts[1].Metadata)
}

func TestCreateIndex_PartitionFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.port.uploadRes = domain.UploadResult{Tabular: []domain.TabularFile{{Filename: "a.csv", Columns: []string{"x"}}}}
	f.port.columnsErr = errors.New("500")
	f.stage(t, "a.csv")
	workflow.Run(f.ctrl.Upload())

	workflow.Run(f.ctrl.CreateIndex())
	assert.Equal(t, []string{"upload", "set-columns"}, f.port.calls)
	assert.Equal(t, MsgColumnsFailed, f.store.Err())
	assert.Equal(t, PhaseColumnSelection, f.ctrl.Phase())
	assert.Len(t, f.ctrl.Specs(), 1)
	assert.Equal(t, nav.ScreenIntake, f.gate.Current())
	assert.False(t, f.store.Busy())

	f.port.columnsErr = nil
	workflow.Run(f.ctrl.CreateIndex())
	assert.Equal(t, nav.ScreenQuery, f.gate.Current())
}

func TestCreateIndex_TriggerFailure(t *testing.T) {
	f := newFixture(t)
	f.port.indexErr = errors.New("ollama down")
	f.stage(t, "report.pdf")

	workflow.Run(f.ctrl.Upload())
	assert.Equal(t, MsgIndexFailed, f.store.Err())
	assert.Equal(t, PhaseStaged, f.ctrl.Phase())
	assert.Equal(t, nav.ScreenIntake, f.gate.Current())
	assert.Len(t, f.ctrl.Slots(), 1)
	assert.True(t, f.ctrl.Slots()[0].Filled(), "batch is kept for a retry")

	f.port.indexErr = nil
	require.True(t, f.ctrl.CanCreateIndex())
	workflow.Run(f.ctrl.CreateIndex())
	assert.Equal(t, nav.ScreenQuery, f.gate.Current())
}

func TestCreateIndex_RequiresUpload(t *testing.T) {
	f := newFixture(t)
	f.stage(t, "a.pdf")
	assert.Nil(t, f.ctrl.CreateIndex())
	assert.Empty(t, f.port.calls)
}

func TestCreateIndex_ResetsRegardlessOfSize(t *testing.T) {
	f := newFixture(t)
	var tabular []domain.TabularFile
	paths := []string{"a.csv", "b.csv", "c.csv", "d.pdf"}
	for _, p := range paths[:3] {
		tabular = append(tabular, domain.TabularFile{Filename: p, Columns: []string{"c1", "c2", "c3", "c4"}})
	}
	f.port.uploadRes = domain.UploadResult{Tabular: tabular}
	f.store.SetQuery("stale")
	f.store.SetResult("stale answer")
	f.stage(t, paths...)

	workflow.Run(f.ctrl.Upload())
	workflow.Run(f.ctrl.CreateIndex())

	assert.Len(t, f.ctrl.Slots(), 1)
	assert.Empty(t, f.ctrl.Specs())
	assert.Empty(t, f.store.Query())
	assert.Empty(t, f.store.Result())

	f.gate.Back()
	assert.Equal(t, PhaseIdle, f.ctrl.Phase())
}

func TestSlots(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.ctrl.AddSlot(), domain.ErrSlotPending)
	assert.ErrorIs(t, f.ctrl.RemoveSlot(0), domain.ErrLastSlot)

	f.stage(t, "a.pdf", "b.csv")
	assert.Equal(t, PhaseStaged, f.ctrl.Phase())
	require.NoError(t, f.ctrl.RemoveSlot(0))
	assert.Equal(t, "b.csv", f.ctrl.Slots()[0].Name)
	assert.Equal(t, PhaseStaged, f.ctrl.Phase())
}

func TestSelectFile_RejectsUnsupported(t *testing.T) {
	f := newFixture(t)

	err := f.ctrl.SelectFile(0, "notes.docx")
	assert.ErrorIs(t, err, ErrUnsupportedFile)
	assert.Equal(t, MsgUnsupported, f.store.Err())
	assert.False(t, f.ctrl.Slots()[0].Filled())

	require.NoError(t, f.ctrl.SelectFile(0, "REPORT.PDF"))
	assert.Empty(t, f.store.Err())
}

func TestSelectFile_CustomAccept(t *testing.T) {
	store := workflow.NewStore(workflow.DiscardLate, nil)
	ctrl := New(store, &fakePort{}, nav.NewGate(nil), Options{Accept: []string{"txt", " .CSV "}})

	assert.NoError(t, ctrl.SelectFile(0, "notes.txt"))
	assert.NoError(t, ctrl.SelectFile(0, "a.csv"))
	assert.ErrorIs(t, ctrl.SelectFile(0, "a.pdf"), ErrUnsupportedFile)
}

func TestToggleColumn_UnknownFile(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.ctrl.ToggleColumn("nope.csv", "x"), domain.ErrUnknownColumn)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "column-selection", PhaseColumnSelection.String())
	assert.Equal(t, "unknown", Phase(42).String())
}

// Package intake drives file staging, upload, column classification and index
// creation.
package intake

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"localrag/internal/domain"
	"localrag/internal/logging"
	"localrag/internal/workflow"
)

// Messages shown to the user.
const (
	MsgChooseFile    = "Upload a pdf or csv file"
	MsgUnsupported   = "Choose a PDF or CSV file"
	MsgUploadFailed  = "Error: Couldn't upload file"
	MsgColumnsFailed = "Error: Couldn't set columns"
	MsgIndexFailed   = "Error: Couldn't create the vector database"
)

// ErrUnsupportedFile is returned by SelectFile for a file type outside the
// accept list.
var ErrUnsupportedFile = errors.New("unsupported file type")

// DefaultAccept lists the extensions accepted when none are configured.
var DefaultAccept = []string{".pdf", ".csv"}

// Port is the subset of the backend used during intake.
type Port interface {
	Upload(ctx context.Context, files []domain.StagedFile) (domain.UploadResult, error)
	SetColumns(ctx context.Context, parts []domain.ColumnPartition) error
	CreateIndex(ctx context.Context) error
}

// Navigator is told when the index is ready so the query screen can open.
type Navigator interface {
	IndexReady()
}

// Options tune a Controller.
type Options struct {
	Accept []string
	Logger *slog.Logger
}

// Controller owns the staged batch and the column specs of tabular uploads.
type Controller struct {
	store    *workflow.Store
	port     Port
	nav      Navigator
	batch    *domain.Batch
	specs    *domain.ColumnSpecs
	phase    Phase
	uploaded bool
	accept   []string
	log      *slog.Logger
}

// New creates a controller with an empty batch.
func New(store *workflow.Store, port Port, nav Navigator, opts Options) *Controller {
	accept := opts.Accept
	if len(accept) == 0 {
		accept = DefaultAccept
	}
	norm := make([]string, 0, len(accept))
	for _, a := range accept {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" && !strings.HasPrefix(a, ".") {
			a = "." + a
		}
		norm = append(norm, a)
	}
	return &Controller{
		store:  store,
		port:   port,
		nav:    nav,
		batch:  domain.NewBatch(),
		specs:  domain.NewColumnSpecs(),
		phase:  PhaseIdle,
		accept: norm,
		log:    logging.OrDiscard(opts.Logger),
	}
}

// Phase returns the current intake phase.
func (c *Controller) Phase() Phase { return c.phase }

// Slots returns the staged slots in order.
func (c *Controller) Slots() []domain.StagedFile { return c.batch.Slots() }

// Specs returns the column specs of the tabular files, in upload order.
func (c *Controller) Specs() []*domain.ColumnSpec { return c.specs.Specs() }

// CanAddSlot reports whether AddSlot would succeed.
func (c *Controller) CanAddSlot() bool { return c.batch.Complete() }

// CanUpload reports whether Upload would issue a call.
func (c *Controller) CanUpload() bool { return c.batch.Complete() && !c.store.Busy() }

// CanCreateIndex reports whether CreateIndex would issue a call.
func (c *Controller) CanCreateIndex() bool { return c.uploaded && !c.store.Busy() }

// Enter resets a finished round when the intake screen is entered again.
func (c *Controller) Enter() {
	if c.phase == PhaseDone {
		c.phase = PhaseIdle
	}
	c.restage()
}

// AddSlot appends an empty slot once every slot holds a file.
func (c *Controller) AddSlot() error {
	return c.batch.Add()
}

// RemoveSlot deletes slot i, keeping at least one slot.
func (c *Controller) RemoveSlot(i int) error {
	if err := c.batch.Remove(i); err != nil {
		return err
	}
	c.restage()
	return nil
}

// SelectFile places the file at path into slot i.
func (c *Controller) SelectFile(i int, path string) error {
	if !c.accepts(path) {
		c.store.Fail(MsgUnsupported)
		return ErrUnsupportedFile
	}
	if err := c.batch.Select(i, path); err != nil {
		return err
	}
	c.store.ClearError()
	c.restage()
	return nil
}

// ToggleColumn moves column of filename between content and metadata.
func (c *Controller) ToggleColumn(filename, column string) error {
	if err := c.specs.Toggle(filename, column); err != nil {
		return err
	}
	c.store.ClearError()
	return nil
}

// Upload sends every staged file in one request. It returns nil when no call
// was issued: while busy, or when a slot is still empty.
func (c *Controller) Upload() workflow.Cmd {
	if c.store.Busy() {
		return nil
	}
	c.store.ClearError()
	if !c.batch.Complete() {
		c.store.Fail(MsgChooseFile)
		return nil
	}
	task, ok := c.store.Begin("upload")
	if !ok {
		return nil
	}
	files := c.batch.Slots()
	c.phase = PhaseAwaitingUpload
	c.log.Info("uploading", "files", len(files))
	return func() workflow.Commit {
		res, err := c.port.Upload(task.Context(), files)
		return func() workflow.Cmd { return c.finishUpload(task, res, err) }
	}
}

func (c *Controller) finishUpload(task *workflow.Task, res domain.UploadResult, err error) workflow.Cmd {
	if !c.store.Settle(task) {
		return nil
	}
	if err != nil {
		c.log.Warn("upload failed", "error", err)
		c.store.Fail(MsgUploadFailed)
		c.phase = PhaseStaged
		return nil
	}
	c.uploaded = true
	c.specs.Reset()
	c.store.SetColumns(res.Tabular)
	if len(res.Tabular) == 0 {
		c.log.Info("upload done, no tabular files")
		return c.beginIndex(PhaseStaged)
	}
	for _, tf := range res.Tabular {
		c.specs.Put(domain.NewColumnSpec(tf.Filename, tf.Columns))
	}
	c.phase = PhaseColumnSelection
	c.log.Info("upload done, awaiting column selection", "tabular", c.specs.Len())
	return nil
}

// CreateIndex submits the column partition, if any, and then triggers index
// creation. It returns nil while busy or before a successful upload.
func (c *Controller) CreateIndex() workflow.Cmd {
	if !c.CanCreateIndex() {
		return nil
	}
	return c.beginIndex(c.phase)
}

func (c *Controller) beginIndex(prior Phase) workflow.Cmd {
	task, ok := c.store.Begin("index")
	if !ok {
		return nil
	}
	parts := c.specs.Partition()
	c.phase = PhaseAwaitingIndex
	return func() workflow.Commit {
		ctx := task.Context()
		msg := ""
		var err error
		if len(parts) > 0 {
			if err = c.port.SetColumns(ctx, parts); err != nil {
				msg = MsgColumnsFailed
			}
		}
		if err == nil {
			if err = c.port.CreateIndex(ctx); err != nil {
				msg = MsgIndexFailed
			}
		}
		return func() workflow.Cmd { return c.finishIndex(task, prior, msg, err) }
	}
}

func (c *Controller) finishIndex(task *workflow.Task, prior Phase, msg string, err error) workflow.Cmd {
	if !c.store.Settle(task) {
		return nil
	}
	if err != nil {
		c.log.Warn("index creation failed", "error", err, "message", msg)
		c.store.Fail(msg)
		c.phase = prior
		return nil
	}
	c.batch.Reset()
	c.specs.Reset()
	c.uploaded = false
	c.store.SetColumns(nil)
	c.store.ResetQueryState()
	c.phase = PhaseDone
	c.log.Info("vector database created")
	c.nav.IndexReady()
	return nil
}

func (c *Controller) accepts(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, a := range c.accept {
		if a == ext {
			return true
		}
	}
	return false
}

// restage recomputes Idle/Staged from the batch; other phases are left alone.
func (c *Controller) restage() {
	if c.phase != PhaseIdle && c.phase != PhaseStaged {
		return
	}
	if c.batch.Any() {
		c.phase = PhaseStaged
	} else {
		c.phase = PhaseIdle
	}
}

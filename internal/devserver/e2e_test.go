package devserver_test

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localrag/internal/backend"
	"localrag/internal/config"
	"localrag/internal/devserver"
	"localrag/internal/intake"
	"localrag/internal/logging"
	"localrag/internal/nav"
	"localrag/internal/query"
	"localrag/internal/workflow"
)

// TestClientAgainstDevServer drives both screens through the real HTTP client.
func TestClientAgainstDevServer(t *testing.T) {
	log := logging.NewTestLogger(t)
	cfg := config.Default().DevServer
	idx, err := devserver.NewIndex(cfg, log)
	require.NoError(t, err)
	srv := httptest.NewServer(devserver.New(devserver.Options{TopK: cfg.TopK, Index: idx, Logger: log}).Handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "reviews.csv")
	txtPath := filepath.Join(dir, "guide.txt")
	require.NoError(t, os.WriteFile(csvPath, []byte("Title,Review,Rating\nFerry,The ferry to Bergen leaves at noon.,5\nCafe,The coffee was cold.,2\n"), 0o600))
	require.NoError(t, os.WriteFile(txtPath, []byte("Oslo is the capital of Norway."), 0o600))

	client := backend.NewClient(backend.Config{BaseURL: srv.URL, Logger: log})
	store := workflow.NewStore(workflow.DiscardLate, log)
	gate := nav.NewGate(log)
	in := intake.New(store, client, gate, intake.Options{Accept: []string{"pdf", "csv", "txt"}, Logger: log})
	q := query.New(store, client, gate, query.Options{Logger: log})
	gate.OnEnter(nav.ScreenIntake, in.Enter)

	require.Equal(t, nav.ScreenIntake, gate.Visit(nav.PathRAG))

	require.NoError(t, in.SelectFile(0, csvPath))
	require.NoError(t, in.AddSlot())
	require.NoError(t, in.SelectFile(1, txtPath))
	workflow.Run(in.Upload())
	require.Empty(t, store.Err())
	require.Equal(t, intake.PhaseColumnSelection, in.Phase())
	require.Len(t, in.Specs(), 1)
	assert.Equal(t, []string{"Title", "Review", "Rating"}, in.Specs()[0].Columns())

	require.NoError(t, in.ToggleColumn("reviews.csv", "Title"))
	require.NoError(t, in.ToggleColumn("reviews.csv", "Rating"))
	workflow.Run(in.CreateIndex())
	require.Empty(t, store.Err())
	assert.Equal(t, nav.ScreenQuery, gate.Current())
	assert.Equal(t, nav.PathRAG, gate.Path())

	q.SetQuery("When does the ferry to Bergen leave?")
	workflow.Run(q.Submit())
	require.Empty(t, store.Err())
	assert.Contains(t, store.Result(), "The ferry to Bergen leaves at noon.")
	assert.Equal(t, query.PhaseAnswered, q.Phase())

	q.GoBack()
	assert.Equal(t, nav.ScreenIntake, gate.Current())
	assert.Empty(t, store.Result())
	assert.Equal(t, intake.PhaseIdle, in.Phase())
}

func TestQueryFailureSurfacesMessage(t *testing.T) {
	log := logging.NewTestLogger(t)
	idx, err := devserver.NewIndex(config.Default().DevServer, log)
	require.NoError(t, err)
	srv := httptest.NewServer(devserver.New(devserver.Options{Index: idx, Logger: log}).Handler())
	t.Cleanup(srv.Close)

	store := workflow.NewStore(workflow.DiscardLate, log)
	gate := nav.NewGate(log)
	q := query.New(store, backend.NewClient(backend.Config{BaseURL: srv.URL}), gate, query.Options{Logger: log})

	q.SetQuery("anything")
	workflow.Run(q.Submit())
	assert.Equal(t, query.MsgQueryFailed, store.Err())
	assert.Equal(t, "anything", store.Query())
	assert.False(t, store.Busy())
}

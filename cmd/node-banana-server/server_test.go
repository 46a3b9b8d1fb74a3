package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ttmouse/node-banana/internal/app/dto"
	"github.com/ttmouse/node-banana/internal/core/graph"
	"github.com/ttmouse/node-banana/internal/infrastructure/metrics"
	"github.com/ttmouse/node-banana/pkg/nodebanana"
	"github.com/ttmouse/node-banana/pkg/serialization"
)

// gatedImages blocks every call until release is closed or ctx ends.
type gatedImages struct {
	release chan struct{}
}

func (g *gatedImages) GenerateImage(ctx context.Context, _ *dto.ImageRequest) (*dto.ImageResponse, error) {
	select {
	case <-g.release:
		return &dto.ImageResponse{Success: true, Image: "data:image/png;base64,iVBORw0KGgo="}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newTestServer(t *testing.T) (*server, *httptest.Server, *gatedImages) {
	t.Helper()
	images := &gatedImages{release: make(chan struct{})}
	m := metrics.NewCollector("node_banana")
	rt := nodebanana.NewRuntime(nodebanana.Options{Images: images, Metrics: m, Logger: zap.NewNop()})
	srv := newServer(rt, m, zap.NewNop())
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(func() {
		ts.Close()
		rt.Stop()
		srv.runs.stop()
		srv.runs.wait()
		_ = rt.Close(context.Background())
	})
	return srv, ts, images
}

// pipeline returns a prompt -> nanoBanana -> output workflow document.
func pipeline(t *testing.T) (*serialization.WorkflowFile, string) {
	t.Helper()
	rt := nodebanana.NewRuntime(nodebanana.Options{})
	defer rt.Close(context.Background())
	s := rt.Store()
	prompt, err := s.AddNode(graph.NodeTypePrompt, graph.Position{})
	require.NoError(t, err)
	gen, err := s.AddNode(graph.NodeTypeNanoBanana, graph.Position{X: 400})
	require.NoError(t, err)
	require.NoError(t, s.UpdateNodeData(prompt, graph.PromptPatch{Prompt: graph.Ptr("a banana")}))
	out, err := s.AddNode(graph.NodeTypeOutput, graph.Position{X: 800})
	require.NoError(t, err)
	require.True(t, s.OnConnect(graph.Connection{
		Source: prompt, SourceHandle: graph.HandleText, Target: gen, TargetHandle: graph.HandleText,
	}))
	require.True(t, s.OnConnect(graph.Connection{
		Source: gen, SourceHandle: graph.HandleImage, Target: out, TargetHandle: graph.HandleImage,
	}))
	return rt.ExportWorkflow(), gen
}

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthAndMetrics(t *testing.T) {
	_, ts, _ := newTestServer(t)
	assert.Equal(t, http.StatusOK, get(t, ts.URL+"/healthz").StatusCode)
	assert.Equal(t, http.StatusOK, get(t, ts.URL+"/metrics").StatusCode)
}

func TestWorkflowLoadAndExport(t *testing.T) {
	_, ts, _ := newTestServer(t)
	wf, _ := pipeline(t)

	resp := post(t, ts.URL+"/api/workflow", wf)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get(t, ts.URL+"/api/workflow")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got serialization.WorkflowFile
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Len(t, got.Nodes, 3)
	assert.Len(t, got.Edges, 2)

	resp, err := http.Post(ts.URL+"/api/workflow", "application/json", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunLifecycle(t *testing.T) {
	srv, ts, images := newTestServer(t)
	wf, gen := pipeline(t)
	require.Equal(t, http.StatusOK, post(t, ts.URL+"/api/workflow", wf).StatusCode)

	require.Equal(t, http.StatusAccepted, post(t, ts.URL+"/api/workflow/run", nil).StatusCode)
	require.Eventually(t, srv.rt.Store().IsActive, time.Second, 5*time.Millisecond)

	assert.Equal(t, http.StatusConflict, post(t, ts.URL+"/api/workflow/run", nil).StatusCode)
	assert.Equal(t, http.StatusConflict, post(t, ts.URL+"/api/nodes/"+gen+"/regenerate", nil).StatusCode)
	assert.Equal(t, http.StatusConflict, post(t, ts.URL+"/api/workflow", wf).StatusCode)
	assert.Equal(t, http.StatusConflict, post(t, ts.URL+"/api/history/undo", nil).StatusCode)

	close(images.release)
	require.Eventually(t, func() bool { return !srv.runs.running() }, time.Second, 5*time.Millisecond)

	resp := get(t, ts.URL+"/api/workflow/run")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status runStatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.False(t, status.State.IsRunning)
	require.NotNil(t, status.Last)
	assert.Equal(t, dto.RunStatusCompleted, status.Last.Status)
	assert.Len(t, status.Last.Executed, 3)

	require.Equal(t, http.StatusAccepted, post(t, ts.URL+"/api/nodes/"+gen+"/regenerate", nil).StatusCode)
	require.Eventually(t, func() bool { return !srv.runs.running() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{gen}, srv.runs.lastResult().Executed)
}

func TestStopRun_KeepsInFlightResult(t *testing.T) {
	srv, ts, images := newTestServer(t)
	wf, gen := pipeline(t)
	require.Equal(t, http.StatusOK, post(t, ts.URL+"/api/workflow", wf).StatusCode)

	require.Equal(t, http.StatusAccepted, post(t, ts.URL+"/api/workflow/run", nil).StatusCode)
	require.Eventually(t, func() bool {
		return srv.rt.Store().RunState().CurrentNodeID == gen
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, http.StatusOK, post(t, ts.URL+"/api/workflow/stop", nil).StatusCode)
	assert.True(t, srv.runs.running(), "the generation call is still in flight")

	close(images.release)
	require.Eventually(t, func() bool { return !srv.runs.running() }, time.Second, 5*time.Millisecond)
	assert.False(t, srv.rt.Store().IsActive())

	last := srv.runs.lastResult()
	require.NotNil(t, last)
	assert.Equal(t, dto.RunStatusStopped, last.Status)
	assert.Empty(t, last.FailedNodeID)
	assert.Len(t, last.Executed, 2)
	assert.Equal(t, graph.StatusComplete, srv.rt.Store().Node(gen).Data.State().Status)
}

func TestNotFoundAndHistory(t *testing.T) {
	_, ts, _ := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, post(t, ts.URL+"/api/nodes/missing/regenerate", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound,
		post(t, ts.URL+"/api/workflow/run", runRequest{StartNodeID: "missing"}).StatusCode)

	wf, _ := pipeline(t)
	require.Equal(t, http.StatusOK, post(t, ts.URL+"/api/workflow", wf).StatusCode)

	resp := post(t, ts.URL+"/api/history/undo", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body, "applied")

	assert.Equal(t, http.StatusOK, post(t, ts.URL+"/api/history/redo", nil).StatusCode)
	assert.Equal(t, http.StatusOK, get(t, ts.URL+"/api/notifications").StatusCode)
}

package serialization

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttmouse/node-banana/internal/core/graph"
)

func sampleGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	p, err := graph.NewNode("prompt-1", graph.NodeTypePrompt, graph.Position{X: 10, Y: 20})
	require.NoError(t, err)
	p.Data = graph.PromptData{RunState: graph.RunState{Status: graph.StatusIdle}, Prompt: "draw a cat"}
	gen, err := graph.NewNode("nanoBanana-2", graph.NodeTypeNanoBanana, graph.Position{X: 400})
	require.NoError(t, err)
	gen.Data = gen.Data.(graph.GenerateImageData).PushHistory(graph.HistoryImage{ID: "h", Image: "data:image/png;base64,AAA"})
	gen.GroupID = "group-1"
	require.NoError(t, g.AddNode(p))
	require.NoError(t, g.AddNode(gen))
	e, err := graph.NewEdge(graph.Connection{Source: "prompt-1", SourceHandle: graph.HandleText, Target: "nanoBanana-2", TargetHandle: graph.HandleText})
	require.NoError(t, err)
	_, err = g.AddEdge(e)
	require.NoError(t, err)
	g.Groups["group-1"] = &graph.Group{ID: "group-1", Name: "Group 1", Color: graph.GroupColorBlue}
	return g
}

func TestWorkflowRoundTrip(t *testing.T) {
	g := sampleGraph(t)
	w := NewWorkflowFile("wf-1", "cats", g, graph.EdgeStyleAngular)

	b, err := EncodeWorkflow(w)
	require.NoError(t, err)

	back, err := DecodeWorkflow(b)
	require.NoError(t, err)
	assert.Equal(t, WorkflowVersion, back.Version)
	assert.Equal(t, "wf-1", back.ID)
	assert.Equal(t, graph.EdgeStyleAngular, back.EdgeStyle)

	if diff := cmp.Diff(g, back.Graph()); diff != "" {
		t.Errorf("graph mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeWorkflow_Compat(t *testing.T) {
	legacy := []byte(`{"name":"old","nodes":[{"id":"prompt-1","type":"prompt","position":{"x":0,"y":0},"data":{"prompt":"hi"}}],"edges":[]}`)
	w, err := DecodeWorkflow(legacy)
	require.NoError(t, err)
	assert.Equal(t, WorkflowVersion, w.Version)
	assert.Empty(t, w.ID)
	assert.Nil(t, w.Groups)
	assert.Equal(t, graph.EdgeStyleCurved, w.EdgeStyle)
	assert.NotNil(t, w.Graph().Groups)

	_, err = DecodeWorkflow([]byte(`{"version":2,"name":"future"}`))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = DecodeWorkflow([]byte(`{"nodes":[{"id":"x-1","type":"video"}]}`))
	assert.ErrorIs(t, err, graph.ErrInvalidNodeType)
}

func TestLocalStateStripsBinaries(t *testing.T) {
	g := sampleGraph(t)
	st := NewLocalState(g, graph.EdgeStyleCurved)

	gen := st.Graph().Node("nanoBanana-2").Data.(graph.GenerateImageData)
	assert.Empty(t, gen.ImageHistory[0].Image)
	assert.Equal(t, "h", gen.ImageHistory[0].ID)

	// source graph untouched
	live := g.Node("nanoBanana-2").Data.(graph.GenerateImageData)
	assert.NotEmpty(t, live.ImageHistory[0].Image)

	s, err := StateSerializer(CompressionZstd, nil)
	require.NoError(t, err)
	b, err := s.Serialize(st)
	require.NoError(t, err)
	var back LocalState
	require.NoError(t, s.Deserialize(b, &back))
	assert.Equal(t, "draw a cat", back.Graph().Node("prompt-1").Data.(graph.PromptData).Prompt)
}

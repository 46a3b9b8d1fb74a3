package nodebanana

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttmouse/node-banana/internal/app/dto"
	"github.com/ttmouse/node-banana/internal/config"
	coregraph "github.com/ttmouse/node-banana/internal/core/graph"
)

const pngSignature = "data:image/png;base64,iVBORw0KGgo="

type fixedImages struct{ prompts []string }

func (f *fixedImages) GenerateImage(_ context.Context, req *dto.ImageRequest) (*dto.ImageResponse, error) {
	f.prompts = append(f.prompts, req.Prompt)
	return &dto.ImageResponse{Success: true, Image: pngSignature}, nil
}

// buildPipeline adds prompt -> nanoBanana -> output and returns their ids.
func buildPipeline(t *testing.T, rt *Runtime) (string, string, string) {
	t.Helper()
	s := rt.Store()
	prompt, err := s.AddNode(coregraph.NodeTypePrompt, coregraph.Position{})
	require.NoError(t, err)
	gen, err := s.AddNode(coregraph.NodeTypeNanoBanana, coregraph.Position{X: 400})
	require.NoError(t, err)
	out, err := s.AddNode(coregraph.NodeTypeOutput, coregraph.Position{X: 800})
	require.NoError(t, err)
	require.NoError(t, s.UpdateNodeData(prompt, coregraph.PromptPatch{Prompt: coregraph.Ptr("a banana")}))
	require.True(t, s.OnConnect(coregraph.Connection{
		Source: prompt, SourceHandle: coregraph.HandleText, Target: gen, TargetHandle: coregraph.HandleText,
	}))
	require.True(t, s.OnConnect(coregraph.Connection{
		Source: gen, SourceHandle: coregraph.HandleImage, Target: out, TargetHandle: coregraph.HandleImage,
	}))
	return prompt, gen, out
}

func TestRuntime_Run(t *testing.T) {
	ctx := context.Background()
	images := &fixedImages{}
	outDir := t.TempDir()
	rt := NewRuntime(Options{Images: images, OutputDir: outDir})

	_, gen, out := buildPipeline(t, rt)
	res, err := rt.Run(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, dto.RunStatusCompleted, res.Status)
	assert.Len(t, res.Executed, 3)
	assert.Equal(t, []string{"a banana"}, images.prompts)

	outData, ok := rt.Store().Node(out).Data.(coregraph.OutputData)
	require.True(t, ok)
	assert.Equal(t, pngSignature, outData.Image)

	res, err = rt.Regenerate(ctx, gen)
	require.NoError(t, err)
	assert.Equal(t, []string{gen}, res.Executed)

	// Close drains the output queue.
	require.NoError(t, rt.Close(ctx))
	files, err := filepath.Glob(filepath.Join(outDir, gen+"-*.png"))
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestRuntime_NoBackend(t *testing.T) {
	ctx := context.Background()
	rt := NewRuntime(Options{})
	defer rt.Close(ctx)

	_, gen, _ := buildPipeline(t, rt)
	res, err := rt.Run(ctx, "")
	assert.ErrorIs(t, err, dto.ErrBackendUnavailable)
	assert.Equal(t, dto.RunStatusFailed, res.Status)
	assert.Equal(t, gen, res.FailedNodeID)

	notes := rt.Notifications()
	require.NotEmpty(t, notes)
	assert.Equal(t, dto.NotifyError, notes[len(notes)-1].Level)
}

func TestRuntime_FileRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "workflow.json")

	rt := NewRuntime(Options{WorkflowName: "Bananas"})
	buildPipeline(t, rt)
	assert.True(t, rt.Store().HasUnsavedChanges())
	require.NoError(t, rt.SaveFile(path))
	assert.False(t, rt.Store().HasUnsavedChanges())
	require.NoError(t, rt.Close(ctx))

	loaded := NewRuntime(Options{})
	defer loaded.Close(ctx)
	issues, err := loaded.LoadFile(path)
	require.NoError(t, err)
	assert.Empty(t, issues)

	w := loaded.ExportWorkflow()
	assert.Equal(t, "Bananas", w.Name)
	assert.Len(t, w.Nodes, 3)
	assert.Len(t, w.Edges, 2)

	_, err = loaded.LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFromConfig_SQLitePersistsAcrossRuntimes(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.CacheBackend = config.CacheSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "state.db")
	cfg.AutosaveInterval = time.Minute

	rt, err := FromConfig(ctx, cfg, nil, nil)
	require.NoError(t, err)
	s := rt.Store()
	in, err := s.AddNode(coregraph.NodeTypeImageInput, coregraph.Position{})
	require.NoError(t, err)
	require.NoError(t, s.UpdateNodeData(in, coregraph.ImageInputPatch{Image: coregraph.Ptr(pngSignature)}))
	require.NoError(t, rt.Close(ctx))

	again, err := FromConfig(ctx, cfg, nil, nil)
	require.NoError(t, err)
	defer again.Close(ctx)
	require.NoError(t, again.Store().Hydrate(ctx))

	n := again.Store().Node(in)
	require.NotNil(t, n)
	data, ok := n.Data.(coregraph.ImageInputData)
	require.True(t, ok)
	assert.Equal(t, pngSignature, data.Image, "binary field restored from the image cache")
}

func TestFromConfig_Invalid(t *testing.T) {
	cfg := config.Default()
	cfg.CacheBackend = "redis"
	_, err := FromConfig(context.Background(), cfg, nil, nil)
	assert.Error(t, err)
}

func TestBackends(t *testing.T) {
	cfg := config.Default()
	images, texts := Backends(cfg, nil, nil)
	assert.Nil(t, images)
	assert.Nil(t, texts)

	cfg.GeminiAPIKey = "g"
	cfg.OpenAIAPIKey = "o"
	images, texts = Backends(cfg, nil, nil)
	assert.NotNil(t, images)
	assert.NotNil(t, texts)
}

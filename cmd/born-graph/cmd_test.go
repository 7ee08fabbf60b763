package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/imperative/internal/graph"
	"github.com/born-ml/imperative/internal/model"
	"github.com/born-ml/imperative/internal/nn"
)

const modelYAML = `name: tiny
input:
  name: image
  shape: [-1, 1, 8, 8]
layers:
  - type: conv2d
    num_channels: 1
    num_filters: 4
    filter_size: 3
    use_cudnn: false
  - type: pool2d
    pool_size: 2
    pool_stride: 2
  - type: fc
    size_out: 2
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewCLI()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeModel(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tiny.yaml")
	require.NoError(t, os.WriteFile(path, []byte(modelYAML), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "born-graph "+version+"\n", out)
}

func TestOps(t *testing.T) {
	out, err := run(t, "ops")
	require.NoError(t, err)
	assert.Contains(t, out, "depthwise_conv2d")
	assert.Contains(t, out, "Input,Filter")
	assert.Contains(t, out, "fill_constant")
}

func TestEnv(t *testing.T) {
	out, err := run(t, "env")
	require.NoError(t, err)
	assert.Contains(t, out, "BORN_DEBUG")
	assert.Contains(t, out, "BORN_USE_CUDNN")
}

func TestBuildTable(t *testing.T) {
	out, err := run(t, "build", writeModel(t))
	require.NoError(t, err)

	assert.Contains(t, out, "conv2d_0.w_0")
	assert.Contains(t, out, "fc_0.w_0")
	assert.Contains(t, out, "[36, 2]")
	assert.Contains(t, out, "elementwise_add")
	assert.Contains(t, out, "x_num_col_dims=1")
	assert.NotContains(t, out, "kCUDNNFwdAlgoCache")
}

func TestBuildYAML(t *testing.T) {
	out, err := run(t, "build", "--format", "yaml", writeModel(t))
	require.NoError(t, err)

	var desc graph.ProgramDesc
	require.NoError(t, yaml.Unmarshal([]byte(out), &desc))
	var types []string
	for _, op := range desc.Main {
		types = append(types, op.Type)
	}
	assert.Equal(t, []string{"conv2d", "elementwise_add", "pool2d", "mul", "sum"}, types)
	assert.Len(t, desc.Startup, 3)
}

func TestBuildCBOR(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.cbor")
	_, err := run(t, "build", "-f", "cbor", "-o", path, writeModel(t))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	desc, err := graph.DecodeDesc(data)
	require.NoError(t, err)
	assert.Len(t, desc.Main, 5)
}

func TestBuildMany(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.yaml", "b.yaml", "c.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(modelYAML), 0o644))
		paths = append(paths, path)
	}

	out, err := run(t, append([]string{"build", "-f", "yaml"}, paths...)...)
	require.NoError(t, err)

	dec := yaml.NewDecoder(strings.NewReader(out))
	ids := map[string]bool{}
	for range paths {
		var desc graph.ProgramDesc
		require.NoError(t, dec.Decode(&desc))
		assert.Len(t, desc.Main, 5)
		ids[desc.ID] = true
	}
	// each model gets its own program
	assert.Len(t, ids, len(paths))

	out, err = run(t, append([]string{"build"}, paths...)...)
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, paths[0]), strings.Index(out, paths[1]))
	assert.Less(t, strings.Index(out, paths[1]), strings.Index(out, paths[2]))
}

func TestBuildErrors(t *testing.T) {
	_, err := run(t, "build", "--format", "json", writeModel(t))
	assert.ErrorContains(t, err, "unknown format")

	_, err = run(t, "build", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = run(t, "build", writeModel(t), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("layers: [\n"), 0o644))
	_, err = run(t, "build", writeModel(t), bad)
	assert.ErrorContains(t, err, bad)

	_, err = run(t, "build")
	assert.Error(t, err)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestBuildWriteErrors(t *testing.T) {
	f, err := model.Load(writeModel(t))
	require.NoError(t, err)
	m, err := f.Build(nn.DecodeOptions{})
	require.NoError(t, err)

	for _, format := range []string{"yaml", "cbor"} {
		err := writePrograms(failingWriter{}, format, []string{"tiny.yaml"}, []*graph.Program{m.Program})
		assert.Error(t, err, format)
	}

	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("no /dev/full")
	}
	_, err = run(t, "build", "-f", "cbor", "-o", "/dev/full", writeModel(t))
	assert.Error(t, err)
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewCLI()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "trajnet "+version+"\n", out)
}

func TestSummary(t *testing.T) {
	out, err := runCLI(t, "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "st_gcns.0.gcn.conv.weight")
	assert.Contains(t, out, "tpcnns.0.weight")
	assert.Contains(t, out, "trainable parameters: 4106")
}

func TestForward(t *testing.T) {
	out, err := runCLI(t, "forward", "--peds", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "output shape: [1 5 12 3]")
	assert.Contains(t, out, "finite: true")
	assert.Contains(t, out, "SIGMA X")
}

func TestForwardWithConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte("n_stgcnn: 2\nfeat_dim: 16\nobs_len: 6\npred_len: 4\noutput_feat: 3\n"), 0o600))

	out, err := runCLI(t, "forward", "--config", path, "--batch", "2", "--random")
	require.NoError(t, err)
	assert.Contains(t, out, "output shape: [2 3 4 4]")
	assert.Contains(t, out, "no bivariate decoding")
}

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kernel_size: 2\n"), 0o600))

	_, err := runCLI(t, "summary", "-c", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "odd")

	_, err = runCLI(t, "forward", "--peds", "0")
	require.Error(t, err)
}

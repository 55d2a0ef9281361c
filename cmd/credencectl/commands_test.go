package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/credence/internal/credibility"
	"github.com/MikeSquared-Agency/credence/internal/processor"
)

func run(t *testing.T, stateDir string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--backend", "file", "--state-dir", stateDir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_RejectUndoStatus(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "reject", "kid-1", "dishes", "--reviewer", "dad", "--notes", "left in sink")
	require.NoError(t, err)
	var res processor.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 90, res.Status.Score)

	out, err = run(t, dir, "status", "kid-1")
	require.NoError(t, err)
	var status credibility.Status
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, 90, status.Score)
	assert.Equal(t, credibility.TierExcellent, status.Tier.Name)

	_, err = run(t, dir, "undo", "kid-1", "dishes", "-r", "dad")
	require.NoError(t, err)

	_, err = run(t, dir, "undo", "kid-1", "dishes", "-r", "dad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to undo")

	out, err = run(t, dir, "history", "kid-1", "-n", "0")
	require.NoError(t, err)
	var events []credibility.Event
	require.NoError(t, json.Unmarshal([]byte(out), &events))
	require.Len(t, events, 2)
	assert.Equal(t, credibility.EventRejectionUndone, events[0].Kind)
	assert.True(t, events[1].Undone)
}

func TestCLI_ApproveAndConvert(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, dir, "approve", "kid-2", "bed", "--reviewer", "mum")
	require.NoError(t, err)

	out, err := run(t, dir, "convert", "kid-2", "1000")
	require.NoError(t, err)
	var conv processor.Conversion
	require.NoError(t, json.Unmarshal([]byte(out), &conv))
	assert.Equal(t, 1200, conv.Minutes)

	_, err = run(t, dir, "convert", "kid-2", "many")
	assert.Error(t, err)

	_, err = run(t, dir, "convert", "kid-2", "--", "-5")
	assert.ErrorIs(t, err, credibility.ErrInvalidXP)
}

func TestCLI_DecayNewUser(t *testing.T) {
	out, err := run(t, t.TempDir(), "decay", "kid-3")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, `"score": 100`))
}

func TestCLI_ArgumentErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
	}{
		{"approve without reviewer", []string{"approve", "kid-1", "bed"}},
		{"status without user", []string{"status"}},
		{"convert missing xp", []string{"convert", "kid-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, dir, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestCLI_UnknownBackend(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--backend", "etcd", "status", "kid-1"})

	assert.Error(t, cmd.Execute())
}

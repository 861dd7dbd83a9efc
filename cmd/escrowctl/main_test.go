package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devasign/task-escrow/internal/auth"
	"github.com/devasign/task-escrow/internal/escrow"
)

func run(t *testing.T, args ...string) (map[string]string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	var res map[string]string
	if err == nil {
		require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	}
	return res, err
}

func TestKeygenAndSign(t *testing.T) {
	key, err := run(t, "keygen")
	require.NoError(t, err)
	require.Len(t, key["address"], 64)

	task := strings.Repeat("k", escrow.TaskIDLength)
	const issue = "https://github.com/o/r/issues/3"
	args := "issue_url=" + url.QueryEscape(issue) + "&amount=500000&creator=" + key["address"]
	sig, err := run(t, "sign", "--seed", key["seed"], "--op", escrow.OpCreateEscrow, "--task", task, "--args", args)
	require.NoError(t, err)
	assert.Equal(t, key["address"], sig["address"])

	addr := escrow.Address(key["address"])
	ctx := auth.WithSignatures(context.Background(), sig["signature"])
	_, err = auth.NewVerifier(0).RequireAuth(ctx, addr, escrow.CreateEscrowIntent(addr, task, issue, 500_000))
	assert.NoError(t, err)
	_, err = auth.NewVerifier(0).RequireAuth(ctx, addr, escrow.CreateEscrowIntent(addr, task, issue, 600_000))
	assert.ErrorIs(t, err, escrow.ErrUnauthorized)
}

func TestSignRejectsUnknownOp(t *testing.T) {
	key, err := run(t, "keygen")
	require.NoError(t, err)
	_, err = run(t, "sign", "--seed", key["seed"], "--op", "steal", "--task", "")
	assert.ErrorContains(t, err, "unknown operation")
}

func TestSignRejectsRepeatedArgs(t *testing.T) {
	key, err := run(t, "keygen")
	require.NoError(t, err)
	_, err = run(t, "sign", "--seed", key["seed"], "--op", escrow.OpIncreaseBounty, "--args", "amount=1&amount=2")
	assert.ErrorContains(t, err, "repeats")
}

func TestCodehash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifact.wasm")
	require.NoError(t, os.WriteFile(path, []byte("contract v2"), 0o600))

	res, err := run(t, "codehash", path)
	require.NoError(t, err)
	assert.Len(t, res["code_hash"], 64)

	again, err := run(t, "codehash", path)
	require.NoError(t, err)
	assert.Equal(t, res["code_hash"], again["code_hash"])
}

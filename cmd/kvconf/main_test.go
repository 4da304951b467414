package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aalhour/kvconf"
	"github.com/aalhour/kvconf/config"
	"github.com/aalhour/kvconf/internal/logging"
	"github.com/aalhour/kvconf/internal/vfs"
)

func TestMain(m *testing.M) {
	config.SetLogger(logging.Discard)
	os.Exit(m.Run())
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultWithMemory(16 << 30)
	cfg.Storage.DataDir = t.TempDir()
	cfg.PD.Endpoints = []string{"127.0.0.1:2379"}
	return cfg
}

func TestCmdCheck(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer
	require.NoError(t, cmdCheck(&out, cfg))

	assert.Contains(t, out.String(), "kv engine:   "+cfg.KVDBPath())
	assert.Contains(t, out.String(), "raft engine: "+cfg.Raftstore.RaftDBPath)
	assert.Contains(t, out.String(), "store addr:  127.0.0.1:20160")
	assert.Contains(t, out.String(), "election:    10s")
}

func TestCmdCheck_Invalid(t *testing.T) {
	cfg := testConfig(t)
	cfg.PD.Endpoints = nil
	assert.ErrorIs(t, cmdCheck(io.Discard, cfg), config.ErrEmptyEndpoints)
}

func TestCmdRender(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer
	require.NoError(t, cmdRender(&out, cfg, false))

	s := out.String()
	assert.Contains(t, s, "# engine=kv path="+cfg.KVDBPath())
	assert.Contains(t, s, "# engine=raft path="+cfg.Raftstore.RaftDBPath)
	assert.Contains(t, s, `[CFOptions "write"]`)
	assert.Contains(t, s, "prefix_extractor=FixedSuffixSliceTransform")
	assert.Contains(t, s, "memtable_insert_with_hint_prefix_extractor=RaftPrefixSliceTransform")
	assert.NotContains(t, s, "# wrote")
}

func TestCmdRender_Write(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cmdRender(io.Discard, cfg, true))
	require.NoError(t, cmdRender(io.Discard, cfg, true))

	latest, err := kvconf.GetLatestOptionsFile(vfs.Default(), cfg.KVDBPath())
	require.NoError(t, err)
	assert.Equal(t, "OPTIONS-000002", filepath.Base(latest))

	f, err := os.Open(latest)
	require.NoError(t, err)
	defer f.Close()
	parsed, err := kvconf.ParseOptionsFile(f)
	require.NoError(t, err)
	assert.Equal(t, "kPointInTimeRecovery", parsed["DBOptions"]["wal_recovery_mode"])
	assert.Contains(t, parsed, `CFOptions "lock"`)

	latest, err = kvconf.GetLatestOptionsFile(vfs.Default(), cfg.Raftstore.RaftDBPath)
	require.NoError(t, err)
	assert.Equal(t, "OPTIONS-000002", filepath.Base(latest))
}

func TestVerifyOptions(t *testing.T) {
	cfg := testConfig(t)
	engines, err := buildEngines(cfg)
	require.NoError(t, err)
	kv := engines[0]

	var buf bytes.Buffer
	require.NoError(t, kvconf.RenderOptions(&buf, kv.db, kv.cfs))
	full := buf.String()
	require.NoError(t, verifyOptions(strings.NewReader(full), kv.cfs))

	cut := strings.Index(full, `[CFOptions "lock"]`)
	require.Positive(t, cut)
	err = verifyOptions(strings.NewReader(full[:cut]), kv.cfs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `CFOptions "lock"`)

	noDB := strings.Replace(full, "[DBOptions]", "[Other]", 1)
	err = verifyOptions(strings.NewReader(noDB), kv.cfs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DBOptions")
}

func TestCmdDump(t *testing.T) {
	cfg := testConfig(t)

	var out bytes.Buffer
	require.NoError(t, cmdDump(&out, cfg, "tikv.yaml", ""))
	assert.Contains(t, out.String(), "defaultcf:")

	out.Reset()
	require.NoError(t, cmdDump(&out, cfg, "tikv.yaml", "toml"))
	assert.Contains(t, out.String(), "[rocksdb.defaultcf]")

	assert.Error(t, cmdDump(io.Discard, cfg, "", "ini"))
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	path := filepath.Join(t.TempDir(), "tikv.toml")
	require.NoError(t, os.WriteFile(path, []byte("[storage]\ndata-dir = \"/srv\"\n"), 0o644))
	cfg, err = loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv", cfg.Storage.DataDir)
}

func TestRouter(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cfg.Validate())
	srv := httptest.NewServer(newRouter(cfg))
	defer srv.Close()

	get := func(path string) (*http.Response, string) {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, string(body)
	}

	resp, body := get("/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, contentTypeJSON, resp.Header.Get("Content-Type"))
	assert.Contains(t, body, `"status":"ok"`)

	resp, body = get("/config")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "[raftdb.defaultcf]")

	resp, body = get("/config?format=yaml")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(body, "raftdb:"))

	resp, _ = get("/config?format=ini")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = get("/options/kv")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, resp.Header.Get("X-Options-Fingerprint"), 16)
	assert.Contains(t, body, `[CFOptions "raft"]`)

	kvSum := resp.Header.Get("X-Options-Fingerprint")
	resp, body = get("/options/raft")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEqual(t, kvSum, resp.Header.Get("X-Options-Fingerprint"))
	assert.NotContains(t, body, `[CFOptions "write"]`)

	resp, _ = get("/options/blob")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

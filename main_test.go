package main

import (
	"bytes"
	"flag"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/origami-state/osm/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppMain(t *testing.T) {
	resetFlags()
	withArgs(t)
	t.Setenv("OSM_DIAG_PORT", "5083")

	var exitCode int
	closeSignal := make(chan os.Signal, 1)
	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		exitCode = run(closeSignal)
		wg.Done()
	}()
	testutils.WaitUntil(5*time.Second, func() bool {
		resp, err := http.Get("http://localhost:5083/status")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	})
	closeSignal <- syscall.SIGTERM
	wg.Wait()

	assert.Equal(t, 0, exitCode)
}

func TestAppMain_Disabled_Everything(t *testing.T) {
	resetFlags()
	withArgs(t, "serve")
	t.Setenv("OSM_DIAG_ENABLED", "false")

	var exitCode int
	closeSignal := make(chan os.Signal, 1)
	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		exitCode = run(closeSignal)
		wg.Done()
	}()
	time.Sleep(500 * time.Millisecond)
	closeSignal <- syscall.SIGTERM
	wg.Wait()

	assert.Equal(t, 0, exitCode)
}

func TestAppMain_Invalid_Conf(t *testing.T) {
	resetFlags()
	withArgs(t)
	t.Setenv("OSM_STORAGE_REDIS_ENABLED", "true")
	t.Setenv("OSM_STORAGE_FILE_ENABLED", "true")

	assert.Equal(t, 1, run(make(chan os.Signal, 1)))
}

func TestAppMain_Invalid_Config_YAML(t *testing.T) {
	resetFlags()
	withArgs(t, "-c=/tmp/non-existing.yml")

	assert.Equal(t, 1, run(make(chan os.Signal, 1)))
}

func TestAppMain_Invalid_Command(t *testing.T) {
	resetFlags()
	withArgs(t, "get")

	assert.Equal(t, 1, run(make(chan os.Signal, 1)))
}

func TestAppMain_Get_Set_Dump(t *testing.T) {
	dir := t.TempDir()
	initial := filepath.Join(dir, "initial.json")
	require.NoError(t, os.WriteFile(initial, []byte(`{"count":1,"user":{"name":"ann"}}`), 0o644))
	t.Setenv("OSM_STORE_NAME", "app")
	t.Setenv("OSM_STORE_INITIAL_FILE", initial)
	t.Setenv("OSM_STORAGE_FILE_ENABLED", "true")
	t.Setenv("OSM_STORAGE_FILE_DIR", filepath.Join(dir, "data"))

	assert.Equal(t, "1", runCommand(t, "get", "count"))
	assert.Equal(t, `"bob"`, runCommand(t, "set", "user.name", `"bob"`))
	assert.Equal(t, `"bob"`, runCommand(t, "get", "user.name"))
	assert.JSONEq(t, `{"count":1,"user":{"name":"bob"}}`, runCommand(t, "dump"))

	data := testutils.ReadFile(filepath.Join(dir, "data", "app.json"))
	assert.JSONEq(t, `{"count":1,"user":{"name":"bob"}}`, data)
}

func TestAppMain_Set_Invalid_Json(t *testing.T) {
	resetFlags()
	t.Setenv("OSM_STORE_NAME", "app")
	withArgs(t, "set", "count", "{")

	assert.Equal(t, 1, run(make(chan os.Signal, 1)))
}

func TestAppMain_Get_Missing_Key(t *testing.T) {
	resetFlags()
	withArgs(t, "get", "missing")

	assert.Equal(t, 1, run(make(chan os.Signal, 1)))
}

func TestAppMain_Redis(t *testing.T) {
	srv := miniredis.RunT(t)
	dir := t.TempDir()
	initial := filepath.Join(dir, "initial.yml")
	require.NoError(t, os.WriteFile(initial, []byte("cart: []\n"), 0o644))
	t.Setenv("OSM_STORE_NAME", "shop")
	t.Setenv("OSM_STORE_INITIAL_FILE", initial)
	t.Setenv("OSM_STORAGE_REDIS_ENABLED", "true")
	t.Setenv("OSM_STORAGE_REDIS_ADDRESSES", `["`+srv.Addr()+`"]`)

	assert.JSONEq(t, `{"sku":"A1"}`, runCommand(t, "set", "cart.0", `{"sku":"A1"}`))

	raw, err := srv.Get("shop")
	require.NoError(t, err)
	assert.JSONEq(t, `{"cart":[{"sku":"A1"}]}`, raw)
}

func TestAppMain_ErrorChan_Diag_Conflicting_Ports(t *testing.T) {
	resetFlags()
	withArgs(t)
	t.Setenv("OSM_DIAG_PORT", "5084")
	closeSignal := make(chan os.Signal, 1)
	wg := sync.WaitGroup{}
	wg.Add(2)
	var code1, code2 int
	go func() {
		code1 = run(closeSignal)
		wg.Done()
	}()
	time.Sleep(500 * time.Millisecond)
	resetFlags()
	go func() {
		code2 = run(closeSignal)
		wg.Done()
	}()
	time.Sleep(500 * time.Millisecond)
	closeSignal <- syscall.SIGTERM
	wg.Wait()

	assert.Equal(t, 0, code1)
	assert.Equal(t, 1, code2)
}

func runCommand(t *testing.T, args ...string) string {
	resetFlags()
	withArgs(t, args...)
	buf := &bytes.Buffer{}
	out = buf
	defer func() { out = os.Stdout }()

	require.Equal(t, exitOk, run(make(chan os.Signal, 1)))
	return string(bytes.TrimSpace(buf.Bytes()))
}

func withArgs(t *testing.T, args ...string) {
	oldArgs := os.Args
	t.Cleanup(func() { os.Args = oldArgs })
	os.Args = append([]string{"osm"}, args...)
}

func resetFlags() {
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flag.CommandLine.SetOutput(io.Discard)
}

package command

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// harness runs the CLI against private settings and server config files.
type harness struct {
	cliConfig    string
	serverConfig string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		cliConfig:    filepath.Join(dir, "cli.yaml"),
		serverConfig: filepath.Join(dir, "server.yaml"),
	}
	h.writeServerConfig(t, `
auth:
  secret: "`+testSecret+`"
rate_limit:
  limit: 100
  window: 1m
storage:
  backend: memory
`)
	return h
}

func (h *harness) writeServerConfig(t *testing.T, yaml string) {
	t.Helper()
	if err := os.WriteFile(h.serverConfig, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
}

type result struct {
	stdout string
	stderr string
	err    error
}

// run executes the CLI with stdin as input. Global settings flags are
// prepended; args start with any further global flags and then the command.
func (h *harness) run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	app := App()
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut
	app.Reader = strings.NewReader(stdin)
	app.ExitErrHandler = func(*cli.Context, error) {}

	full := append([]string{"stockgate-cli", "--cli-config", h.cliConfig, "--config", h.serverConfig}, args...)
	err := app.Run(full)
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

// mustRun is run that fails the test on error.
func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	r := h.run(t, "", args...)
	if r.err != nil {
		t.Fatalf("%v failed: %v (stderr %q)", args, r.err, r.stderr)
	}
	return r.stdout
}

func decodeJSON[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("decode %q: %v", s, err)
	}
	return v
}

// newMockServer serves the given mux patterns.
func newMockServer(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, fn := range routes {
		mux.HandleFunc(pattern, fn)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResponse(w http.ResponseWriter, status int, code, message string) {
	jsonResponse(w, status, map[string]string{
		"error_code": code,
		"message":    message,
		"request_id": "req-test",
	})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

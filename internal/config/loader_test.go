package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "vigil.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadValidManifest(t *testing.T) {
	dir := t.TempDir()
	workdir := filepath.Join(dir, "app")
	if err := os.Mkdir(workdir, 0o755); err != nil {
		t.Fatalf("mkdir workdir: %v", err)
	}
	envFile := filepath.Join(workdir, "vars.env")
	if err := os.WriteFile(envFile, []byte("TOKEN=${FILE_SECRET}\nPASSWORD=from-file"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("FILE_SECRET", "alpha")
	t.Setenv("API_PASSWORD", "s3cr3t")
	t.Setenv("API_PORT", "8080")

	path := writeManifest(t, dir, `startInterval: 2s
services:
  - name: api
    command: ["./bin/api", "--port", "${API_PORT}"]
    workdir: ./app
    env:
      PASSWORD: ${API_PASSWORD}
    envFile: ./vars.env
    requiredFiles: [vars.env]
    health:
      http:
        url: http://127.0.0.1:8080/healthz
    restart:
      auto: true
      maxRetries: 5
      backoff:
        base: 2s
        factor: 1.5
  - name: worker
    command: ["python3", "worker.py"]
    health:
      timeout: 5s
      port:
        number: 6381
`)

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if got, want := doc.StartInterval.Duration, 2*time.Second; got != want {
		t.Fatalf("startInterval mismatch: got %s want %s", got, want)
	}
	if got, want := len(doc.Services), 2; got != want {
		t.Fatalf("service count mismatch: got %d want %d", got, want)
	}
	if got, want := strings.Join(doc.ServiceNames(), ","), "api,worker"; got != want {
		t.Fatalf("manifest order not preserved: got %q want %q", got, want)
	}

	api := doc.Services[0]
	if got, want := api.ResolvedWorkdir, workdir; got != want {
		t.Fatalf("resolved workdir mismatch: got %q want %q", got, want)
	}
	if got, want := api.Command[2], "8080"; got != want {
		t.Fatalf("command argument not expanded: got %q want %q", got, want)
	}
	if got, want := api.Env["TOKEN"], "alpha"; got != want {
		t.Fatalf("env file value mismatch: got %q want %q", got, want)
	}
	if got, want := api.Env["PASSWORD"], "s3cr3t"; got != want {
		t.Fatalf("inline env should win over env file: got %q want %q", got, want)
	}
	if got, want := api.EnvFile, envFile; got != want {
		t.Fatalf("envFile not resolved: got %q want %q", got, want)
	}
	if api.Health == nil || api.Health.HTTP == nil {
		t.Fatalf("http probe not loaded")
	}
	if got, want := api.Health.Timeout.Duration, DefaultHealthTimeout; got != want {
		t.Fatalf("health timeout default mismatch: got %s want %s", got, want)
	}
	if api.Restart == nil || api.Restart.MaxRetries == nil || *api.Restart.MaxRetries != 5 {
		t.Fatalf("restart policy not loaded: %+v", api.Restart)
	}
	if got, want := api.Restart.Backoff.Factor, 1.5; got != want {
		t.Fatalf("backoff factor mismatch: got %v want %v", got, want)
	}

	worker := doc.Services[1]
	if got, want := worker.ResolvedWorkdir, dir; got != want {
		t.Fatalf("default workdir should be the manifest directory: got %q want %q", got, want)
	}
	if got, want := worker.Health.Timeout.Duration, 5*time.Second; got != want {
		t.Fatalf("explicit timeout overridden: got %s want %s", got, want)
	}
	if worker.Restart != nil {
		t.Fatalf("worker should have no restart policy, got %+v", worker.Restart)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `services:
  - name: api
    command: ["./bin/api"]
    replicas: 3
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected unknown field error")
	} else if !strings.Contains(err.Error(), "replicas") {
		t.Fatalf("error should name the unknown field: %v", err)
	}
}

func TestLoadSchemaValidationFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `services:
  - name: api
    command: "./bin/api"
`)
	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected schema validation error")
	}
	if !strings.Contains(err.Error(), "schema validation failed") {
		t.Fatalf("expected schema validation failure, got: %v", err)
	}
	if !strings.Contains(err.Error(), "services[0].command") {
		t.Fatalf("schema error does not mention command path: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing manifest")
	}
}

func TestLoadInvalidEnvFileLine(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.env"), []byte("not-a-pair\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	path := writeManifest(t, dir, `services:
  - name: api
    command: ["./bin/api"]
    envFile: broken.env
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected env file parse error")
	} else if !strings.Contains(err.Error(), "services[0].envFile") {
		t.Fatalf("error should carry the field path: %v", err)
	}
}

func TestLoadEnvFileQuoting(t *testing.T) {
	dir := t.TempDir()
	body := "export PLAIN=value # trailing comment\nDOUBLE=\"a b\"\nSINGLE='c d'\n\n# comment\n"
	if err := os.WriteFile(filepath.Join(dir, "vars.env"), []byte(body), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	path := writeManifest(t, dir, `services:
  - name: api
    command: ["./bin/api"]
    envFile: vars.env
`)
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	env := doc.Services[0].Env
	for key, want := range map[string]string{"PLAIN": "value", "DOUBLE": "a b", "SINGLE": "c d"} {
		if got := env[key]; got != want {
			t.Fatalf("env %s mismatch: got %q want %q", key, got, want)
		}
	}
}

func TestLoadAbsoluteWorkdir(t *testing.T) {
	dir := t.TempDir()
	other := t.TempDir()
	path := writeManifest(t, dir, `services:
  - name: api
    command: ["./bin/api"]
    workdir: `+other+`
`)
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got, want := doc.Services[0].ResolvedWorkdir, filepath.Clean(other); got != want {
		t.Fatalf("absolute workdir mismatch: got %q want %q", got, want)
	}
}

func TestLoadValidationFailureCarriesPath(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `services:
  - name: api
    command: ["./bin/api"]
    health:
      port:
        number: 99999
`)
	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "services[0].health.port.number") {
		t.Fatalf("error should carry the dotted field path: %v", err)
	}
}

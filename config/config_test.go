package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "research:\n  objectives:\n    - topic: Go scheduling\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Research.Iterations != 3 || cfg.Research.MaxTasks != 5 || cfg.Research.ChunkThreshold != 20000 {
		t.Fatalf("unexpected research defaults: %+v", cfg.Research)
	}
	if cfg.LLM.MaxAttempts != 5 || cfg.LLM.InitialBackoff != 500*time.Millisecond {
		t.Fatalf("unexpected llm retry defaults: %+v", cfg.LLM)
	}
	if cfg.Tools.PageCharLimit != 20000 || cfg.Tools.Fetcher != "http" {
		t.Fatalf("unexpected tools defaults: %+v", cfg.Tools)
	}
	if cfg.Server.Address() != "localhost:8888" {
		t.Fatalf("unexpected address %q", cfg.Server.Address())
	}
	if len(cfg.Research.Objectives) != 1 || cfg.Research.Objectives[0].Topic != "Go scheduling" {
		t.Fatalf("unexpected objectives %+v", cfg.Research.Objectives)
	}
}

func TestLoadConfigPlainEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("WEB_PORT", "9999")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db?sslmode=disable")
	t.Setenv("RESEARCHER_RESEARCH_ITERATIONS", "7")
	path := writeConfig(t, "llm:\n  model: gpt-test\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LLM.APIKey != "sk-test" || cfg.LLM.Model != "gpt-test" {
		t.Fatalf("unexpected llm config %+v", cfg.LLM)
	}
	if cfg.Server.Port != "9999" {
		t.Fatalf("WEB_PORT not applied: %q", cfg.Server.Port)
	}
	if !cfg.Storage.Postgres.Enabled() || cfg.Storage.Postgres.DSN() != "postgres://u:p@localhost/db?sslmode=disable" {
		t.Fatalf("DATABASE_URL not applied: %+v", cfg.Storage.Postgres)
	}
	if cfg.Research.Iterations != 7 {
		t.Fatalf("prefixed variable not applied: %d", cfg.Research.Iterations)
	}
}

func TestLoadConfigRejectsInvalidSections(t *testing.T) {
	cases := map[string]string{
		"fetcher":    "tools:\n  fetcher: curl\n",
		"iterations": "research:\n  iterations: 0\n",
		"cron":       "schedule:\n  cron: not a cron\n",
		"crawl":      "tools:\n  crawl_policy:\n    allow: [a.com]\n    disallow: [www.a.com]\n",
		"port":       "server:\n  port: http\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, body)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestPostgresDSNFromParts(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "research"}
	want := "host=db port=5432 user=u password=p dbname=research sslmode=disable"
	if got := p.DSN(); got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
	if got := p.MigrationURL(); got != "postgres://u:p@db:5432/research?sslmode=disable" {
		t.Fatalf("MigrationURL = %q", got)
	}
	if err := (PostgresConfig{Host: "db", Port: "5432"}).Validate(); err == nil {
		t.Fatalf("expected missing dbname error")
	}
}

func TestParseObjectives(t *testing.T) {
	data := []byte(`
- Go memory model
- topic: Go generics
  expertise: 0.4
`)
	got, err := ParseObjectives(data)
	if err != nil {
		t.Fatalf("ParseObjectives: %v", err)
	}
	if len(got) != 2 || got[0].Topic != "Go memory model" || got[1].Expertise != 0.4 {
		t.Fatalf("unexpected objectives %+v", got)
	}

	wrapped, err := ParseObjectives([]byte("objectives:\n  - topic: channels\n"))
	if err != nil || len(wrapped) != 1 || wrapped[0].Topic != "channels" {
		t.Fatalf("wrapped form: %+v, %v", wrapped, err)
	}

	if _, err := ParseObjectives([]byte("- topic: x\n  expertise: 3\n")); err == nil {
		t.Fatalf("expected out-of-range expertise error")
	}
	if _, err := ParseObjectives([]byte("just a string")); err == nil {
		t.Fatalf("expected shape error")
	}
}

package notify

import (
	"os"
	"path/filepath"
	"testing"
)

func writeNotifiersFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write notifiers file: %v", err)
	}
	return path
}

func TestLoadRegistryFromYAML(t *testing.T) {
	path := writeNotifiersFile(t, "notifiers.yaml", `
notifiers:
  - id: hook
    type: http
    http:
      url: https://example.com/hook
  - id: queue
    type: sqs
    enabled: false
    sqs:
      uri: https://sqs.example/queue
      region: ap-south-1
`)

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if got := len(reg.All()); got != 2 {
		t.Fatalf("expected 2 notifiers, got %d", got)
	}

	enabled := reg.Enabled()
	if len(enabled) != 1 || enabled[0].ID != "hook" {
		t.Fatalf("expected only hook enabled, got %+v", enabled)
	}

	cfg, ok := reg.ByID("queue")
	if !ok || cfg.SQS == nil || cfg.SQS.QueueURL != "https://sqs.example/queue" {
		t.Fatalf("queue config mismatch: %+v", cfg)
	}
}

func TestLoadRegistryRejectsDuplicateIDs(t *testing.T) {
	path := writeNotifiersFile(t, "notifiers.yaml", `
notifiers:
  - id: hook
    type: http
    http:
      url: https://example.com/a
  - id: hook
    type: http
    http:
      url: https://example.com/b
`)

	if _, err := LoadRegistry(path); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestLoadRegistryRejectsMissingTypeConfig(t *testing.T) {
	path := writeNotifiersFile(t, "notifiers.yaml", `
notifiers:
  - id: topic
    type: sns
`)

	if _, err := LoadRegistry(path); err == nil {
		t.Fatalf("expected validation error for sns without settings")
	}
}

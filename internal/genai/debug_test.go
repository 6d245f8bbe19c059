package genai

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestDebugLogWritesRequestAndResponse(t *testing.T) {
	dir := t.TempDir()
	client := &Client{
		chat:      &mockChatService{resp: reply("Test response")},
		model:     "test-model",
		maxTokens: 100,
		debugMode: true,
		stateDir:  dir,
	}
	if _, err := client.GeneratePromptWithContext(context.Background(), "System prompt", "User prompt"); err != nil {
		t.Fatalf("GeneratePromptWithContext failed: %v", err)
	}

	files, err := os.ReadDir(filepath.Join(dir, "debug"))
	if err != nil {
		t.Fatalf("debug directory missing: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected one debug file, got %d", len(files))
	}
	content, err := os.ReadFile(filepath.Join(dir, "debug", files[0].Name()))
	if err != nil {
		t.Fatalf("failed to read debug file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(content, &entry); err != nil {
		t.Fatalf("debug file is not JSON: %v", err)
	}
	for _, field := range []string{"timestamp", "method", "model", "params", "response"} {
		if _, ok := entry[field]; !ok {
			t.Errorf("debug entry missing %q", field)
		}
	}
	if entry["method"] != "GeneratePromptWithContext" || entry["model"] != "test-model" {
		t.Errorf("unexpected method/model: %v %v", entry["method"], entry["model"])
	}
}

func TestDebugLogDisabled(t *testing.T) {
	dir := t.TempDir()
	client := &Client{chat: &mockChatService{resp: reply("ok")}, model: "test-model", stateDir: dir}
	if _, err := client.GeneratePromptWithContext(context.Background(), "s", "u"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "debug")); !os.IsNotExist(err) {
		t.Error("debug directory should not exist when debug mode is off")
	}
}

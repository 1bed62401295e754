package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pet-persona/internal/config"
)

func TestRunChatSession(t *testing.T) {
	cfg := &config.Config{EmbeddingDimensions: 64, RetrievalTopK: 3, MemoryMaxTurns: 20, MemorySummarizeAfter: 10}
	persona, err := newPersona(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("new persona: %v", err)
	}
	chatName, chatKind, chatBreed = "Miso", "cat", ""
	chatStories = []string{"Miso is curious and explores every box."}

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	in := strings.NewReader("hello\n/story Miso is very calm and relaxed.\n/traits\n/quit\nnever read\n")
	var out bytes.Buffer
	if err := runChat(cmd, persona, in, &out); err != nil {
		t.Fatalf("run chat: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Miso is ready (personality v1") {
		t.Fatalf("expected ready banner, got %q", got)
	}
	if !strings.Contains(got, "[greeting]") {
		t.Fatalf("expected greeting reply, got %q", got)
	}
	if !strings.Contains(got, "personality v2") || !strings.Contains(got, "calm") {
		t.Fatalf("expected story update and calm trait, got %q", got)
	}
	if strings.Contains(got, "never read") {
		t.Fatalf("expected /quit to stop the loop")
	}
}

package config

import (
	"strings"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.RetrievalBackend != RetrievalMemory || cfg.RetrievalTopK != 3 {
		t.Fatalf("unexpected retrieval defaults %+v", cfg)
	}
	if cfg.MemoryMaxTurns != 20 || cfg.MemorySummarizeAfter != 10 {
		t.Fatalf("unexpected memory defaults %+v", cfg)
	}
	if cfg.AccessTTL().Minutes() != 15 {
		t.Fatalf("expected 15m access ttl, got %v", cfg.AccessTTL())
	}
}

func TestLoadConfigValidates(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"negative weight", map[string]string{"USER_WEIGHT": "-0.1"}, "non-negative"},
		{"half-life", map[string]string{"DECAY_HALF_LIFE_DAYS": "0"}, "DECAY_HALF_LIFE_DAYS"},
		{"floor", map[string]string{"DECAY_FLOOR": "1.5"}, "DECAY_FLOOR"},
		{"memory caps", map[string]string{"MEMORY_MAX_TURNS": "5", "MEMORY_SUMMARIZE_AFTER": "6"}, "MEMORY_SUMMARIZE_AFTER"},
		{"pool size", map[string]string{"DB_MAX_CONNS": "0"}, "DB_MAX_CONNS"},
		{"backend", map[string]string{"RETRIEVAL_BACKEND": "faiss"}, "RETRIEVAL_BACKEND"},
		{"pgvector without db", map[string]string{"RETRIEVAL_BACKEND": "pgvector", "DATABASE_URL": ""}, "DATABASE_URL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

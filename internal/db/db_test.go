package db

import (
	"testing"
	"time"

	"pet-persona/internal/config"
)

func TestPoolConfigFollowsServiceConfig(t *testing.T) {
	cases := []struct {
		name     string
		url      string
		maxConns int
		workers  int
		wantMin  int32
		wantApp  string
	}{
		{"workers below max", "postgres://pets:pw@localhost:5432/pets", 10, 4, 4, applicationName},
		{"workers above max", "postgres://pets:pw@localhost:5432/pets", 2, 8, 2, applicationName},
		{"explicit application name", "postgres://pets:pw@localhost:5432/pets?application_name=worker", 10, 4, 4, "worker"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &config.Config{
				DatabaseURL:             tc.url,
				DBMaxConns:              tc.maxConns,
				DBConnectTimeoutSeconds: 3,
				RefreshWorkers:          tc.workers,
			}
			poolCfg, err := PoolConfig(cfg)
			if err != nil {
				t.Fatalf("pool config: %v", err)
			}
			if poolCfg.MaxConns != int32(tc.maxConns) {
				t.Fatalf("expected max conns %d, got %d", tc.maxConns, poolCfg.MaxConns)
			}
			if poolCfg.MinConns != tc.wantMin {
				t.Fatalf("expected min conns %d, got %d", tc.wantMin, poolCfg.MinConns)
			}
			if poolCfg.ConnConfig.ConnectTimeout != 3*time.Second {
				t.Fatalf("expected 3s connect timeout, got %v", poolCfg.ConnConfig.ConnectTimeout)
			}
			if got := poolCfg.ConnConfig.RuntimeParams["application_name"]; got != tc.wantApp {
				t.Fatalf("expected application_name %q, got %q", tc.wantApp, got)
			}
		})
	}
}

func TestPoolConfigRejectsBadURL(t *testing.T) {
	if _, err := PoolConfig(&config.Config{DatabaseURL: "postgres://bad url", DBMaxConns: 1}); err == nil {
		t.Fatalf("expected error for malformed url")
	}
}

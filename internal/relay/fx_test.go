package relay

import (
	"testing"
	"time"

	"github.com/smallbiznis/payrelay/internal/config"
)

func TestNexusConfigCarriesAttemptTimeout(t *testing.T) {
	cfg := config.Config{
		NexusBaseURL:        "http://nexus.local",
		NexusUsername:       "relay",
		NexusPassword:       "secret",
		RelayAttemptTimeout: 45 * time.Second,
	}

	nc := nexusConfig(cfg)

	if nc.BaseURL != "http://nexus.local" || nc.Username != "relay" || nc.Password != "secret" {
		t.Fatalf("unexpected client settings: %+v", nc)
	}
	if nc.Timeout != 45*time.Second {
		t.Fatalf("expected client timeout to follow the attempt deadline, got %v", nc.Timeout)
	}
}

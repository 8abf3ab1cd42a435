package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestAcceptanceCriteria verifies the configuration layering and secret handling.
func TestAcceptanceCriteria(t *testing.T) {
	t.Run("AC1: COND_HMAC_SECRET accessible via HMACSecrets", func(t *testing.T) {
		t.Setenv("COND_HMAC_SECRET", testSecretID+":"+testSecretB64)

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("AC1 FAIL: HMACSecrets error: %v", err)
		}
		if _, ok := secrets[testSecretID]; !ok {
			t.Fatal("AC1 FAIL: Secret not accessible")
		}
	})

	t.Run("AC2: Config file with hmac_secret rejected with clear error", func(t *testing.T) {
		path := writeConfig(t, `condition_api:
  host: "localhost"
  port: 8080
  hmac_secret: "should_be_rejected"
`)
		_, err := LoadConfig(path, nil)
		if err == nil {
			t.Fatal("AC2 FAIL: Expected error for secret in config file")
		}
		if err.Error() != "HMAC secrets not allowed in config files (use COND_HMAC_SECRET environment variable)" {
			t.Fatalf("AC2 FAIL: Wrong error message: %v", err)
		}
	})

	t.Run("AC3: Environment overrides config file", func(t *testing.T) {
		t.Setenv("COND_CONDITION_API_PORT", "8080")
		path := writeConfig(t, `condition_api:
  port: 9090
  metrics_port: 9100
`)
		cfg, err := LoadConfig(path, nil)
		if err != nil {
			t.Fatalf("AC3 FAIL: LoadConfig error: %v", err)
		}
		if cfg.Port != 8080 {
			t.Fatalf("AC3 FAIL: Environment should override config file. Expected 8080, got %d", cfg.Port)
		}
		if cfg.MetricsPort != 9100 {
			t.Fatalf("AC3 FAIL: Config file value lost. Expected metrics port 9100, got %d", cfg.MetricsPort)
		}
	})

	t.Run("AC4: Definitions file path flows from config", func(t *testing.T) {
		defsPath := filepath.Join(t.TempDir(), "defs.yaml")
		if err := os.WriteFile(defsPath, []byte("numbers:\n  gt:\n    kind: number\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		path := writeConfig(t, "condition_api:\n  definitions_file: "+defsPath+"\n")

		cfg, err := LoadConfig(path, nil)
		if err != nil {
			t.Fatalf("AC4 FAIL: LoadConfig error: %v", err)
		}
		defs, err := LoadDefinitions(cfg.DefinitionsFile)
		if err != nil {
			t.Fatalf("AC4 FAIL: LoadDefinitions error: %v", err)
		}
		if _, err := defs.Lookup("numbers", "gt"); err != nil {
			t.Fatalf("AC4 FAIL: numbers/gt missing: %v", err)
		}
	})
}

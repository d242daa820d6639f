package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func requiredEnv() map[string]string {
	return map[string]string{
		"STRIPE_SECRET_KEY":     "sk_test_env",
		"STRIPE_WEBHOOK_SECRET": "whsec_env",
		"JWT_SECRET":            "jwt-env",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil, envMap(requiredEnv()))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Store.Driver != DriverSQLite {
		t.Errorf("Driver = %q, want sqlite", cfg.Store.Driver)
	}
	if cfg.Stripe.Timeout != 10*time.Second {
		t.Errorf("Stripe.Timeout = %v, want 10s", cfg.Stripe.Timeout)
	}
	if cfg.Stripe.SecretKey != "sk_test_env" {
		t.Errorf("SecretKey = %q", cfg.Stripe.SecretKey)
	}
}

func TestLoadLayering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.yaml")
	yaml := `
server:
  addr: ":9000"
store:
  driver: postgres
  postgres_dsn: postgres://file/vault
stripe:
  secret_key: sk_test_file
  webhook_secret: whsec_file
  timeout: 3s
auth:
  jwt_secret: jwt-file
reconcile:
  sweep_interval: 1m
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	env := map[string]string{
		"VAULT_CONFIG":      path,
		"STRIPE_SECRET_KEY": "sk_test_env",
		"SWEEP_INTERVAL":    "2m",
	}
	args := []string{"--addr", ":7000", "--sweep-interval", "30s"}

	cfg, err := Load(args, envMap(env))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"flag over file", cfg.Server.Addr, ":7000"},
		{"file over default", cfg.Store.Driver, DriverPostgres},
		{"file dsn", cfg.Store.PostgresDSN, "postgres://file/vault"},
		{"env over file", cfg.Stripe.SecretKey, "sk_test_env"},
		{"file only", cfg.Stripe.WebhookSecret, "whsec_file"},
		{"file duration", cfg.Stripe.Timeout, 3 * time.Second},
		{"flag over env", cfg.Reconcile.SweepInterval, 30 * time.Second},
		{"default kept", cfg.Reconcile.StaleAfter, 30 * time.Minute},
		{"file level", cfg.Log.Level, "debug"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoadConfigFlagOverridesEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "env.yaml")
	flagPath := filepath.Join(dir, "flag.yaml")
	if err := os.WriteFile(envPath, []byte("server:\n  addr: \":1111\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(flagPath, []byte("server:\n  addr: \":2222\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	env := requiredEnv()
	env["VAULT_CONFIG"] = envPath
	cfg, err := Load([]string{"--config", flagPath}, envMap(env))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":2222" {
		t.Errorf("Addr = %q, want :2222", cfg.Server.Addr)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing config file",
			args:    []string{"--config", "/nonexistent/vault.yaml"},
			env:     requiredEnv(),
			wantErr: "failed to read config file",
		},
		{
			name:    "bad duration env",
			env:     merge(requiredEnv(), map[string]string{"STRIPE_TIMEOUT": "soon"}),
			wantErr: "invalid STRIPE_TIMEOUT",
		},
		{
			name:    "unknown flag",
			args:    []string{"--bogus"},
			env:     requiredEnv(),
			wantErr: "unknown flag",
		},
		{
			name:    "missing stripe key",
			env:     map[string]string{"STRIPE_WEBHOOK_SECRET": "whsec", "JWT_SECRET": "jwt"},
			wantErr: "stripe.secret_key is required",
		},
		{
			name:    "postgres without dsn",
			args:    []string{"--store", "postgres"},
			env:     requiredEnv(),
			wantErr: "store.postgres_dsn is required",
		},
		{
			name:    "unknown driver",
			args:    []string{"--store", "mysql"},
			env:     requiredEnv(),
			wantErr: `unknown store.driver "mysql"`,
		},
		{
			name:    "unknown log level",
			args:    []string{"--log-level", "loud"},
			env:     requiredEnv(),
			wantErr: `unknown log.level "loud"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.args, envMap(tt.env))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Server.Addr = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"server.addr", "stripe.secret_key", "stripe.webhook_secret", "auth.jwt_secret"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestSweepDisabled(t *testing.T) {
	cfg, err := Load([]string{"--sweep-interval", "0"}, envMap(merge(requiredEnv(), map[string]string{"STALE_AFTER": "0s"})))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Reconcile.SweepInterval != 0 {
		t.Errorf("SweepInterval = %v, want 0", cfg.Reconcile.SweepInterval)
	}
}

func merge(a, b map[string]string) map[string]string {
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func lookupFrom(env map[string]string) envLookup {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(nil, lookupFrom(map[string]string{
		"DATABASE_URI": "postgres://localhost/memberpay",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.RunAddress != defaultRunAddress {
		t.Fatalf("unexpected run address %s", cfg.RunAddress)
	}
	if cfg.OrderReuseWindow != time.Hour {
		t.Fatalf("unexpected reuse window %s", cfg.OrderReuseWindow)
	}
	if cfg.WorkerPoolSize != defaultWorkerPoolSize {
		t.Fatalf("unexpected worker pool size %d", cfg.WorkerPoolSize)
	}
	if cfg.Wechat.Configured() {
		t.Fatal("payment must not be configured by default")
	}
	if cfg.Wechat.APIBase != defaultAPIBase {
		t.Fatalf("unexpected api base %s", cfg.Wechat.APIBase)
	}
}

func TestLoadRequiresDatabase(t *testing.T) {
	if _, err := load(nil, lookupFrom(nil)); err == nil {
		t.Fatal("expected error when database URI missing")
	}
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	cfg, err := load(
		[]string{"-a", ":9090", "-reuse-window", "30m", "-poll-batch", "8"},
		lookupFrom(map[string]string{
			"DATABASE_URI": "postgres://localhost/memberpay",
			"RUN_ADDRESS":  ":8081",
		}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.RunAddress != ":9090" {
		t.Fatalf("expected flag to win, got %s", cfg.RunAddress)
	}
	if cfg.OrderReuseWindow != 30*time.Minute {
		t.Fatalf("unexpected reuse window %s", cfg.OrderReuseWindow)
	}
	if cfg.PollBatchSize != 8 {
		t.Fatalf("unexpected batch size %d", cfg.PollBatchSize)
	}
}

func TestLoadWechatBlock(t *testing.T) {
	env := map[string]string{
		"DATABASE_URI":                "postgres://localhost/memberpay",
		"WECHAT_APP_ID":               "wx123",
		"WECHAT_MCH_ID":               "190000",
		"WECHAT_MCH_CERT_SERIAL":      "AABBCC",
		"WECHAT_MCH_PRIVATE_KEY_FILE": "/etc/pay/key.pem",
		"WECHAT_PLATFORM_CERT_FILE":   "/etc/pay/platform.pem",
		"WECHAT_API_V3_KEY":           "0123456789abcdef0123456789abcdef",
		"WECHAT_NOTIFY_URL":           "https://example.com/api/member/notification",
	}

	cfg, err := load(nil, lookupFrom(env))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Wechat.Configured() {
		t.Fatal("expected payment block to be configured")
	}

	delete(env, "WECHAT_NOTIFY_URL")
	cfg, err = load(nil, lookupFrom(env))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Wechat.Configured() {
		t.Fatal("missing notify URL must leave payment unconfigured")
	}
}

func TestLoadSecretFiles(t *testing.T) {
	dir := t.TempDir()

	secretPath := filepath.Join(dir, "token")
	if err := os.WriteFile(secretPath, []byte("filesecret\n"), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}

	apiKey := "0123456789abcdef0123456789abcdef"
	keyPath := filepath.Join(dir, "apikey")
	if err := os.WriteFile(keyPath, []byte(apiKey+"\n"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	cfg, err := load(nil, lookupFrom(map[string]string{
		"DATABASE_URI":           "postgres://localhost/memberpay",
		"TOKEN_SECRET_FILE":      secretPath,
		"WECHAT_API_V3_KEY_FILE": keyPath,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TokenSecret != "filesecret" {
		t.Fatalf("unexpected token secret %q", cfg.TokenSecret)
	}
	if cfg.Wechat.APIv3Key != apiKey {
		t.Fatalf("unexpected api key %q", cfg.Wechat.APIv3Key)
	}
	if len(cfg.Wechat.APIv3Key) != 32 {
		t.Fatalf("trailing newline must not change key length, got %d", len(cfg.Wechat.APIv3Key))
	}
}

func TestLoadSanitizesInvalidValues(t *testing.T) {
	cfg, err := load([]string{"-worker-pool", "-1", "-poll-batch", "0"}, lookupFrom(map[string]string{
		"DATABASE_URI": "postgres://localhost/memberpay",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.WorkerPoolSize != defaultWorkerPoolSize {
		t.Fatalf("expected default worker pool, got %d", cfg.WorkerPoolSize)
	}
	if cfg.PollBatchSize != defaultPollBatchSize {
		t.Fatalf("expected default batch size, got %d", cfg.PollBatchSize)
	}
}

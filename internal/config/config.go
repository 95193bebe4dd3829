package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// WechatPay holds merchant credentials for the WeChat Pay v3 API. The block is
// optional: when incomplete, payment endpoints report a typed "payment is not
// configured" error instead of failing at startup.
type WechatPay struct {
	AppID            string
	MchID            string
	MchCertSerial    string
	PrivateKeyPath   string
	PlatformCertPath string
	APIv3Key         string
	NotifyURL        string
	APIBase          string
}

// Configured reports whether every field required for live payments is set.
func (w WechatPay) Configured() bool {
	return w.AppID != "" && w.MchID != "" && w.MchCertSerial != "" &&
		w.PrivateKeyPath != "" && w.PlatformCertPath != "" &&
		w.APIv3Key != "" && w.NotifyURL != ""
}

// Config holds application level configuration loaded from environment and flags.
type Config struct {
	RunAddress        string
	DatabaseURI       string
	TokenSecret       string
	OrderReuseWindow  time.Duration
	OrderPollInterval time.Duration
	PollBatchSize     int
	WorkerPoolSize    int
	ShutdownTimeout   time.Duration
	Wechat            WechatPay
}

const (
	defaultRunAddress        = ":8080"
	defaultTokenSecret       = "change-me-in-production"
	defaultOrderReuseWindow  = time.Hour
	defaultOrderPollInterval = time.Minute
	defaultPollBatchSize     = 32
	defaultWorkerPoolSize    = 4
	defaultShutdownTimeout   = 10 * time.Second
	defaultAPIBase           = "https://api.mch.weixin.qq.com"
)

// Load parses configuration from flags and environment variables.
func Load() (*Config, error) {
	return load(os.Args[1:], os.LookupEnv)
}

type envLookup func(string) (string, bool)

func load(args []string, lookup envLookup) (*Config, error) {
	cfg := &Config{
		RunAddress:        getString(lookup, "RUN_ADDRESS", defaultRunAddress),
		DatabaseURI:       getString(lookup, "DATABASE_URI", ""),
		TokenSecret:       getString(lookup, "TOKEN_SECRET", defaultTokenSecret),
		OrderReuseWindow:  getDuration(lookup, "ORDER_REUSE_WINDOW", defaultOrderReuseWindow),
		OrderPollInterval: getDuration(lookup, "ORDER_POLL_INTERVAL", defaultOrderPollInterval),
		PollBatchSize:     getInt(lookup, "POLL_BATCH_SIZE", defaultPollBatchSize),
		WorkerPoolSize:    getInt(lookup, "WORKER_POOL_SIZE", defaultWorkerPoolSize),
		ShutdownTimeout:   getDuration(lookup, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		Wechat: WechatPay{
			AppID:            getString(lookup, "WECHAT_APP_ID", ""),
			MchID:            getString(lookup, "WECHAT_MCH_ID", ""),
			MchCertSerial:    getString(lookup, "WECHAT_MCH_CERT_SERIAL", ""),
			PrivateKeyPath:   getString(lookup, "WECHAT_MCH_PRIVATE_KEY_FILE", ""),
			PlatformCertPath: getString(lookup, "WECHAT_PLATFORM_CERT_FILE", ""),
			APIv3Key:         getString(lookup, "WECHAT_API_V3_KEY", ""),
			NotifyURL:        getString(lookup, "WECHAT_NOTIFY_URL", ""),
			APIBase:          getString(lookup, "WECHAT_API_BASE", defaultAPIBase),
		},
	}

	fs := flag.NewFlagSet("memberpay", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		reuseWindowStr     = cfg.OrderReuseWindow.String()
		pollIntervalStr    = cfg.OrderPollInterval.String()
		shutdownTimeoutStr = cfg.ShutdownTimeout.String()
	)

	fs.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "HTTP server listen address")
	fs.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "PostgreSQL DSN")
	fs.StringVar(&cfg.TokenSecret, "token-secret", cfg.TokenSecret, "Secret for signing session tokens")
	fs.StringVar(&reuseWindowStr, "reuse-window", reuseWindowStr, "TTL during which a pending order is reused")
	fs.StringVar(&pollIntervalStr, "poll-interval", pollIntervalStr, "Interval between stale order polls")
	fs.StringVar(&shutdownTimeoutStr, "shutdown-timeout", shutdownTimeoutStr, "Graceful shutdown timeout")
	fs.IntVar(&cfg.PollBatchSize, "poll-batch", cfg.PollBatchSize, "Maximum orders per polling batch")
	fs.IntVar(&cfg.WorkerPoolSize, "worker-pool", cfg.WorkerPoolSize, "Number of concurrent poll workers")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	var err error

	if cfg.OrderReuseWindow, err = time.ParseDuration(reuseWindowStr); err != nil {
		return nil, fmt.Errorf("invalid reuse window: %w", err)
	}

	if cfg.OrderPollInterval, err = time.ParseDuration(pollIntervalStr); err != nil {
		return nil, fmt.Errorf("invalid poll interval: %w", err)
	}

	if cfg.ShutdownTimeout, err = time.ParseDuration(shutdownTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	// Secret files commonly end with a newline; a 32-byte API v3 key must not
	// grow to 33 bytes because of it.
	if secretFile, ok := lookup("TOKEN_SECRET_FILE"); ok && secretFile != "" {
		content, err := os.ReadFile(secretFile)
		if err != nil {
			return nil, fmt.Errorf("read token secret file: %w", err)
		}
		cfg.TokenSecret = strings.TrimSpace(string(content))
	}

	if keyFile, ok := lookup("WECHAT_API_V3_KEY_FILE"); ok && keyFile != "" {
		content, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("read api v3 key file: %w", err)
		}
		cfg.Wechat.APIv3Key = strings.TrimSpace(string(content))
	}

	if cfg.OrderReuseWindow <= 0 {
		cfg.OrderReuseWindow = defaultOrderReuseWindow
	}

	if cfg.OrderPollInterval <= 0 {
		cfg.OrderPollInterval = defaultOrderPollInterval
	}

	if cfg.PollBatchSize <= 0 {
		cfg.PollBatchSize = defaultPollBatchSize
	}

	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = defaultWorkerPoolSize
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("database URI must be provided")
	}

	return cfg, nil
}

func getString(lookup envLookup, key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(lookup envLookup, key string, def int) int {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(lookup envLookup, key string, def time.Duration) time.Duration {
	if v, ok := lookup(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

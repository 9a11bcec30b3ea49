package infra

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testConfigYAML = `
app:
  name: jup-limit-order
  version: 0.1.0
engine:
  poll_interval_ms: 800
  staleness_ms: 5000
  quote_timeout_ms: 5000
  submit_timeout_ms: 60000
  fee_bps: 0
api:
  jupiter:
    price_url: https://api.jup.ag
    swap_url: https://quote-api.jup.ag/v6
  jito:
    url: https://mainnet.block-engine.jito.wtf/api/v1/bundles
  solana:
    rpc_url: https://api.mainnet-beta.solana.com
  feed:
    mode: poll
logging:
  level: info
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testAESKey() string {
	return base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x42}, 32))
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("SWAP_AES_KEY", testAESKey())

	cfg, err := LoadConfig(writeConfig(t, testConfigYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine.PollIntervalMS != 800 {
		t.Errorf("unexpected poll interval %d", cfg.Engine.PollIntervalMS)
	}
	if cfg.API.Jupiter.SwapURL != "https://quote-api.jup.ag/v6" {
		t.Errorf("unexpected swap URL %q", cfg.API.Jupiter.SwapURL)
	}
	if len(cfg.AESKey) != 32 {
		t.Errorf("AES key not loaded from env: %d bytes", len(cfg.AESKey))
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("SWAP_AES_KEY", testAESKey())
	t.Setenv("SWAP_RPC_URL", "http://localhost:8899")
	t.Setenv("SWAP_JUP_PRICE_URL", "http://localhost:9000")

	cfg, err := LoadConfig(writeConfig(t, testConfigYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.Solana.RPCURL != "http://localhost:8899" {
		t.Errorf("env override lost: %q", cfg.API.Solana.RPCURL)
	}
	if cfg.API.Jupiter.PriceURL != "http://localhost:9000" {
		t.Errorf("env override lost: %q", cfg.API.Jupiter.PriceURL)
	}
}

func TestLoadConfigMissingAESKey(t *testing.T) {
	t.Setenv("SWAP_AES_KEY", "")

	_, err := LoadConfig(writeConfig(t, testConfigYAML))
	if err == nil || !strings.Contains(err.Error(), "SWAP_AES_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestLoadConfigBadAESKey(t *testing.T) {
	cases := map[string]string{
		"not base64":   "!!!not-base64!!!",
		"wrong length": base64.StdEncoding.EncodeToString([]byte("short")),
	}
	for name, key := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("SWAP_AES_KEY", key)
			if _, err := LoadConfig(writeConfig(t, testConfigYAML)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Setenv("SWAP_AES_KEY", testAESKey())

	cases := []struct {
		name    string
		rewrite func(string) string
	}{
		{"zero poll interval", func(s string) string { return strings.Replace(s, "poll_interval_ms: 800", "poll_interval_ms: 0", 1) }},
		{"bad rpc url", func(s string) string { return strings.Replace(s, "https://api.mainnet-beta.solana.com", "ftp://nope", 1) }},
		{"fee without account", func(s string) string { return strings.Replace(s, "fee_bps: 0", "fee_bps: 25", 1) }},
		{"unknown feed mode", func(s string) string { return strings.Replace(s, "mode: poll", "mode: carrier-pigeon", 1) }},
		{"ws mode without url", func(s string) string { return strings.Replace(s, "mode: poll", "mode: ws", 1) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tc.rewrite(testConfigYAML))); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestKebabToSnakeCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"debug", "debug"},
		{"ethereum.rpc-url", "ethereum_rpc_url"},
		{"distributor.fan-out-width", "distributor_fan_out_width"},
		{"database.db_name", "database_db_name"},
	}

	for _, test := range tests {
		if got := KebabToSnakeCase(test.input); got != test.expected {
			t.Errorf("KebabToSnakeCase(%s) = %s, want %s", test.input, got, test.expected)
		}
	}
}

func TestNewConfigReadsViper(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("debug", true)
	viper.Set("chain_id", 8453)
	viper.Set("ethereum_rpc_url", "http://localhost:8545")
	viper.Set("distributor_interval", "1m")
	viper.Set("distributor_fan_out_width", 16)

	cfg := NewConfig()
	if !cfg.Debug {
		t.Error("expected Debug to be true")
	}
	if cfg.ChainId != 8453 {
		t.Errorf("ChainId = %d, want 8453", cfg.ChainId)
	}
	if cfg.EthereumRpcConfig.BaseUrl != "http://localhost:8545" {
		t.Errorf("unexpected rpc url %s", cfg.EthereumRpcConfig.BaseUrl)
	}
	if cfg.DistributorConfig.Interval != time.Minute {
		t.Errorf("Interval = %s, want 1m", cfg.DistributorConfig.Interval)
	}
	if cfg.DistributorConfig.FanOutWidth != 16 {
		t.Errorf("FanOutWidth = %d, want 16", cfg.DistributorConfig.FanOutWidth)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestValidateRequiresRpcUrl(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("chain_id", 8453)
	cfg := NewConfig()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing rpc url")
	}
}

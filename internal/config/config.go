package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const ENV_PREFIX = "DISTRIBUTOR"

// Flag names, also used as viper keys after kebab->snake normalization.
const (
	Debug = "debug"

	EthereumRpcUrl = "ethereum.rpc-url"

	ChainId = "chain-id"

	DatabaseHost       = "database.host"
	DatabasePort       = "database.port"
	DatabaseUser       = "database.user"
	DatabasePassword   = "database.password"
	DatabaseDbName     = "database.db_name"
	DatabaseSchemaName = "database.schema_name"
	DatabaseSSLMode    = "database.ssl_mode"

	DistributorInterval    = "distributor.interval"
	DistributorFanOutWidth = "distributor.fan-out-width"
	DistributorPageSize    = "distributor.page-size"
	DistributorMaxRetries  = "distributor.max-retries"

	RpcHttpPort = "rpc.http-port"

	DatadogStatsdEnabled = "datadog.statsd.enabled"
	DatadogStatsdUrl     = "datadog.statsd.url"

	PrometheusEnabled = "prometheus.enabled"
	PrometheusPort    = "prometheus.port"
)

type DatabaseConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	DbName     string
	SchemaName string
	SSLMode    string
}

type EthereumRpcConfig struct {
	BaseUrl string
}

// DistributorConfig controls the share computation worker.
type DistributorConfig struct {
	// Interval between runAll sweeps of open distributions
	Interval time.Duration
	// FanOutWidth bounds concurrent in-flight balance reads
	FanOutWidth int
	// PageSize for paginated verification/hodler reads
	PageSize int
	// MaxRetries for transient failures before escalating as fatal
	MaxRetries int
}

type RpcConfig struct {
	HttpPort int
}

type DataDogConfig struct {
	StatsdEnabled bool
	StatsdUrl     string
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

type Config struct {
	Debug             bool
	ChainId           uint64
	EthereumRpcConfig EthereumRpcConfig
	DatabaseConfig    DatabaseConfig
	DistributorConfig DistributorConfig
	RpcConfig         RpcConfig
	DataDogConfig     DataDogConfig
	PrometheusConfig  PrometheusConfig
}

// KebabToSnakeCase normalizes flag names into viper keys.
func KebabToSnakeCase(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "-", "_"), ".", "_")
}

// NewConfig assembles a Config from viper, which has been populated from
// flags and DISTRIBUTOR_-prefixed environment variables. The result is
// passed explicitly into each component; nothing reads viper after startup.
func NewConfig() *Config {
	return &Config{
		Debug:   viper.GetBool(KebabToSnakeCase(Debug)),
		ChainId: viper.GetUint64(KebabToSnakeCase(ChainId)),

		EthereumRpcConfig: EthereumRpcConfig{
			BaseUrl: viper.GetString(KebabToSnakeCase(EthereumRpcUrl)),
		},

		DatabaseConfig: DatabaseConfig{
			Host:       viper.GetString(KebabToSnakeCase(DatabaseHost)),
			Port:       viper.GetInt(KebabToSnakeCase(DatabasePort)),
			User:       viper.GetString(KebabToSnakeCase(DatabaseUser)),
			Password:   viper.GetString(KebabToSnakeCase(DatabasePassword)),
			DbName:     viper.GetString(KebabToSnakeCase(DatabaseDbName)),
			SchemaName: viper.GetString(KebabToSnakeCase(DatabaseSchemaName)),
			SSLMode:    viper.GetString(KebabToSnakeCase(DatabaseSSLMode)),
		},

		DistributorConfig: DistributorConfig{
			Interval:    viper.GetDuration(KebabToSnakeCase(DistributorInterval)),
			FanOutWidth: viper.GetInt(KebabToSnakeCase(DistributorFanOutWidth)),
			PageSize:    viper.GetInt(KebabToSnakeCase(DistributorPageSize)),
			MaxRetries:  viper.GetInt(KebabToSnakeCase(DistributorMaxRetries)),
		},

		RpcConfig: RpcConfig{
			HttpPort: viper.GetInt(KebabToSnakeCase(RpcHttpPort)),
		},

		DataDogConfig: DataDogConfig{
			StatsdEnabled: viper.GetBool(KebabToSnakeCase(DatadogStatsdEnabled)),
			StatsdUrl:     viper.GetString(KebabToSnakeCase(DatadogStatsdUrl)),
		},

		PrometheusConfig: PrometheusConfig{
			Enabled: viper.GetBool(KebabToSnakeCase(PrometheusEnabled)),
			Port:    viper.GetInt(KebabToSnakeCase(PrometheusPort)),
		},
	}
}

func (c *Config) Validate() error {
	if c.EthereumRpcConfig.BaseUrl == "" {
		return fmt.Errorf("%s is required", EthereumRpcUrl)
	}
	if c.ChainId == 0 {
		return fmt.Errorf("%s is required", ChainId)
	}
	return nil
}

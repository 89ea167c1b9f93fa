package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the replay settings loaded from flags, env, or config file.
type Config struct {
	In               []string
	Out              string
	Report           string
	PGDSN            string
	BatchSize        int
	Token0           common.Address
	Token1           common.Address
	Fee              uint32
	TickSpacing      int
	SqrtPriceX96     *ui.Int
	Owner            common.Address
	Cardinality      uint16
	SnapshotInterval uint32
	LogLevel         string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POOLSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("out", "./data/events.jsonl")
	v.SetDefault("report", "./data/report.jsonl")
	v.SetDefault("batch-size", 500)
	v.SetDefault("token0", "0x0000000000000000000000000000000000000001")
	v.SetDefault("token1", "0x0000000000000000000000000000000000000002")
	v.SetDefault("fee", 3000)
	v.SetDefault("cardinality", 1)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("poolsim")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		In:               getStringSlice(v, "in"),
		Out:              v.GetString("out"),
		Report:           v.GetString("report"),
		PGDSN:            v.GetString("pg-dsn"),
		BatchSize:        v.GetInt("batch-size"),
		Fee:              v.GetUint32("fee"),
		TickSpacing:      v.GetInt("tick-spacing"),
		Cardinality:      v.GetUint16("cardinality"),
		SnapshotInterval: v.GetUint32("snapshot-interval"),
		LogLevel:         v.GetString("log-level"),
	}

	var err error
	if cfg.Token0, err = getAddress(v, "token0"); err != nil {
		return Config{}, err
	}
	if cfg.Token1, err = getAddress(v, "token1"); err != nil {
		return Config{}, err
	}
	if cfg.Owner, err = getAddress(v, "owner"); err != nil {
		return Config{}, err
	}
	if raw := strings.TrimSpace(v.GetString("sqrt-price-x96")); raw != "" {
		if cfg.SqrtPriceX96, err = ui.FromDecimal(raw); err != nil {
			return Config{}, fmt.Errorf("sqrt-price-x96 %q: %w", raw, err)
		}
	}

	if cfg.Token0 == cfg.Token1 {
		return Config{}, fmt.Errorf("token0 and token1 must differ")
	}
	if cfg.BatchSize <= 0 {
		return Config{}, fmt.Errorf("batch-size must be positive, got %d", cfg.BatchSize)
	}
	return cfg, nil
}

func getAddress(v *viper.Viper, key string) (common.Address, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", key, raw)
	}
	return common.HexToAddress(raw), nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	return cleanStrings(strings.Split(input, ","))
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

package conf

import (
	"os"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	defaultDataDirname = ".bitprim"

	// DefaultUtxoBuckets matches the deployment sizing of the production
	// database (~228M buckets). Tests and development use far fewer.
	DefaultUtxoBuckets uint64 = 228110589

	// DefaultLoadFactorWarn is the rows/buckets ratio above which the utxo
	// index logs a warning.
	DefaultLoadFactorWarn = 4.0
)

var Cfg *Configuration

type Configuration struct {
	DataDir     string `short:"b" long:"datadir" description:"Directory to store data"`
	TestNet3    bool   `long:"testnet" description:"Use the test network"`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	LogLevel    string `short:"d" long:"loglevel" description:"Logging level {emergency, alert, critical, error, warning, notice, info, debug}"`
	UtxoBuckets uint64 `long:"utxobuckets" description:"Bucket count for the utxo hash table, fixed at creation time"`

	LoadFactorWarn float64 `long:"loadfactorwarn" description:"Warn when utxo rows per bucket exceeds this ratio"`
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDataDirname
	}
	return filepath.Join(home, defaultDataDirname)
}

// InitConfig parses command line flags, merges an optional viper config file
// and fills unset options with defaults.
func InitConfig(args []string) (*Configuration, error) {
	config := &Configuration{}

	_, err := flags.NewParser(config, flags.IgnoreUnknown).ParseArgs(args)
	if err != nil {
		return nil, err
	}

	if config.ConfigFile != "" {
		viper.SetConfigFile(config.ConfigFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "read config file")
		}
		if config.DataDir == "" {
			config.DataDir = viper.GetString("datadir")
		}
		if config.LogLevel == "" {
			config.LogLevel = viper.GetString("loglevel")
		}
		if config.UtxoBuckets == 0 {
			config.UtxoBuckets = viper.GetUint64("utxobuckets")
		}
		if config.LoadFactorWarn == 0 {
			config.LoadFactorWarn = viper.GetFloat64("loadfactorwarn")
		}
		if !config.TestNet3 {
			config.TestNet3 = viper.GetBool("testnet")
		}
	}

	if config.DataDir == "" {
		config.DataDir = defaultDataDir()
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.UtxoBuckets == 0 {
		config.UtxoBuckets = DefaultUtxoBuckets
	}
	if config.LoadFactorWarn == 0 {
		config.LoadFactorWarn = DefaultLoadFactorWarn
	}

	Cfg = config
	return config, nil
}

func (c *Configuration) UtxoFilePath() string {
	return filepath.Join(c.DataDir, "utxo.db")
}

func (c *Configuration) LockFilePath() string {
	return filepath.Join(c.DataDir, ".lock")
}

func (c *Configuration) ChainDbPath() string {
	return filepath.Join(c.DataDir, "chain")
}

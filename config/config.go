package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/subtensor-tools/subreg/logging"
	"github.com/subtensor-tools/subreg/pow"
	"github.com/subtensor-tools/subreg/registration"
	"github.com/subtensor-tools/subreg/signing"
	"github.com/subtensor-tools/subreg/subtensor"
	"github.com/subtensor-tools/subreg/transport"
)

const (
	defaultJournalDirName = "journal"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "subreg.log"
	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10
	defaultEndpoint       = "ws://127.0.0.1:9944"
	defaultTimeout        = time.Minute
	defaultWalletName     = "default"
	defaultHotkeyName     = "default"
)

var ErrMissingEndpoint = errors.New("chain endpoint is not set")

// Config defines the configuration options for subreg.
//
//nolint:lll
type Config struct {
	Dir            string  `long:"dir"            description:"The base directory that contains subreg's journal, logs and configuration file"`
	ConfigFile     string  `long:"configfile"     description:"Path to configuration file"                                        short:"c"`
	LogDir         string  `long:"logdir"         description:"Directory to log output"`
	DebugLog       bool    `long:"debuglog"       description:"Enable debug logs"`
	JSONLog        bool    `long:"jsonlog"        description:"Whether to log in JSON format"`
	MaxLogFiles    int     `long:"maxlogfiles"    description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int     `long:"maxlogfilesize" description:"Maximum logfile size in MB"`
	MetricsPort    *uint16 `long:"metrics-port"   description:"The port to expose metrics"`

	Chain        ChainConfig         `group:"Chain"        namespace:"chain"`
	Wallet       WalletConfig        `group:"Wallet"       namespace:"wallet"`
	Registration registration.Config `group:"Registration" namespace:"registration"`
	Solver       SolverConfig        `group:"Solver"       namespace:"solver"`
	Journal      JournalConfig       `group:"Journal"      namespace:"journal"`
	Dev          DevConfig           `group:"Dev"          namespace:"dev"`
}

//nolint:lll
type ChainConfig struct {
	Endpoint     string        `long:"endpoint"      description:"Websocket endpoint of a subtensor node"`
	Timeout      time.Duration `long:"timeout"       description:"Timeout of a single RPC request"`
	SS58Prefix   uint16        `long:"ss58-prefix"   description:"SS58 address prefix of the network"`
	MetadataHash bool          `long:"metadata-hash" description:"Include the CheckMetadataHash signed extension"`
	Tip          uint64        `long:"tip"           description:"Tip added to every extrinsic"`
	CacheSize    int           `long:"cache-size"    description:"Number of storage entries cached per connection"`
	CallIndices  []string      `long:"call-index"    description:"Override a call index as Module.function=pallet:call (repeatable)"`
}

// Subtensor returns the configuration of the node-backed chain client.
func (c ChainConfig) Subtensor() (subtensor.Config, error) {
	cfg := subtensor.DefaultConfig()
	cfg.SS58Prefix = c.SS58Prefix
	cfg.MetadataHash = c.MetadataHash
	cfg.Tip = c.Tip
	cfg.CacheSize = c.CacheSize
	for _, override := range c.CallIndices {
		if err := cfg.CallIndices.Set(override); err != nil {
			return subtensor.Config{}, err
		}
	}
	return cfg, nil
}

// implement zap.ObjectMarshaler interface.
func (c ChainConfig) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("endpoint", c.Endpoint)
	enc.AddDuration("timeout", c.Timeout)
	enc.AddUint16("ss58_prefix", c.SS58Prefix)
	enc.AddBool("metadata_hash", c.MetadataHash)
	return nil
}

//nolint:lll
type WalletConfig struct {
	Path   string         `long:"path"   description:"Directory holding the wallets"`
	Name   string         `long:"name"   description:"Name of the wallet (its coldkey)"`
	Hotkey string         `long:"hotkey" description:"Name of the hotkey within the wallet"`
	Scheme signing.Scheme `long:"scheme" description:"Signature scheme of the keys (sr25519 or ed25519)"`
}

// Load reads the configured wallet from disk.
func (c WalletConfig) Load() (*signing.Wallet, error) {
	return signing.LoadWallet(cleanAndExpandPath(c.Path), c.Name, c.Hotkey, c.Scheme)
}

//nolint:lll
type SolverConfig struct {
	pow.Config

	CUDA   bool  `long:"cuda"   description:"Solve the registration puzzle on CUDA devices"`
	DevIDs []int `long:"dev-id" description:"CUDA device to use (repeatable, defaults to 0)"`
}

// Device returns the device selected by the solver options.
func (c SolverConfig) Device() pow.Device {
	if c.CUDA {
		return pow.GPU(c.DevIDs...)
	}
	return pow.CPU()
}

//nolint:lll
type JournalConfig struct {
	Dir     string `long:"dir"     description:"The directory to store the submission journal within"`
	Disable bool   `long:"disable" description:"Do not journal submissions"`
}

//nolint:lll
type DevConfig struct {
	Enabled    bool          `long:"enabled"    description:"Run against an in-memory chain instead of a node"`
	BlockTime  time.Duration `long:"block-time" description:"Interval between blocks of the in-memory chain"`
	Difficulty uint64        `long:"difficulty" description:"Registration difficulty of the in-memory chain"`
	Subnets    []uint16      `long:"subnet"     description:"Subnet created at startup of the in-memory chain (repeatable)"`
}

// Transport returns the configuration of the in-memory chain.
func (c DevConfig) Transport() transport.Config {
	cfg := transport.DefaultConfig()
	if c.BlockTime > 0 {
		cfg.BlockTime = c.BlockTime
	}
	if c.Difficulty > 0 {
		cfg.Difficulty = c.Difficulty
	}
	return cfg
}

func defaultWalletPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".bittensor", "wallets")
	}
	return filepath.Join(home, ".bittensor", "wallets")
}

// DefaultConfig returns a config with default hardcoded values.
func DefaultConfig() *Config {
	dir := "./subreg"
	cacheDir, err := os.UserCacheDir()
	if err == nil {
		dir = filepath.Join(cacheDir, "subreg")
	}

	return &Config{
		Dir:            dir,
		LogDir:         filepath.Join(dir, defaultLogDirname),
		MaxLogFiles:    defaultMaxLogFiles,
		MaxLogFileSize: defaultMaxLogFileSize,
		Chain: ChainConfig{
			Endpoint:   defaultEndpoint,
			Timeout:    defaultTimeout,
			SS58Prefix: subtensor.DefaultConfig().SS58Prefix,
			CacheSize:  subtensor.DefaultConfig().CacheSize,
		},
		Wallet: WalletConfig{
			Path:   defaultWalletPath(),
			Name:   defaultWalletName,
			Hotkey: defaultHotkeyName,
			Scheme: signing.Sr25519,
		},
		Registration: registration.DefaultConfig(),
		Solver:       SolverConfig{Config: pow.DefaultConfig()},
		Journal: JournalConfig{
			Dir: filepath.Join(dir, defaultJournalDirName),
		},
		Dev: DevConfig{
			BlockTime:  transport.DefaultConfig().BlockTime,
			Difficulty: transport.DefaultConfig().Difficulty,
			Subnets:    []uint16{1},
		},
	}
}

// ParseFlags reads the global options from command line arguments.
// Command names and their options are left for the command parser.
func ParseFlags(preCfg *Config) (*Config, error) {
	parser := flags.NewParser(preCfg, flags.IgnoreUnknown)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}
	return preCfg, nil
}

// ReadConfigFile reads config from an ini file.
// It uses the provided `cfg` as a base config and overrides it with the values
// from the config file.
func ReadConfigFile(cfg *Config) (*Config, error) {
	if cfg.ConfigFile == "" {
		return cfg, nil
	}
	logging.FromContext(context.Background()).Debug("reading config", zap.String("file", cfg.ConfigFile))
	if err := flags.IniParse(cfg.ConfigFile, cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from %v: %w", cfg.ConfigFile, err)
	}
	return cfg, nil
}

// SetupConfig expands paths and initializes filesystem.
func SetupConfig(cfg *Config) (*Config, error) {
	// Paths left at their defaults follow a custom base directory.
	defaultCfg := DefaultConfig()
	if cfg.Dir != defaultCfg.Dir {
		if cfg.LogDir == defaultCfg.LogDir {
			cfg.LogDir = filepath.Join(cfg.Dir, defaultLogDirname)
		}
		if cfg.Journal.Dir == defaultCfg.Journal.Dir {
			cfg.Journal.Dir = filepath.Join(cfg.Dir, defaultJournalDirName)
		}
	}
	if cfg.Chain.Endpoint == "" && !cfg.Dev.Enabled {
		return nil, ErrMissingEndpoint
	}

	cfg.Dir = cleanAndExpandPath(cfg.Dir)
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create %v: %w", cfg.Dir, err)
	}

	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.Journal.Dir = cleanAndExpandPath(cfg.Journal.Dir)
	cfg.Wallet.Path = cleanAndExpandPath(cfg.Wallet.Path)
	return cfg, nil
}

// LoggingOptions returns the logger options selected by cfg.
func (cfg *Config) LoggingOptions() logging.Options {
	level := zap.InfoLevel
	if cfg.DebugLog {
		level = zap.DebugLevel
	}
	opts := logging.Options{
		Level:       level,
		JSON:        cfg.JSONLog,
		MaxFiles:    cfg.MaxLogFiles,
		MaxFileSize: cfg.MaxLogFileSize,
	}
	if cfg.LogDir != "" {
		opts.File = filepath.Join(cfg.LogDir, defaultLogFilename)
	}
	return opts
}

// cleanAndExpandPath expands environment variables and a leading ~ in path and cleans the result.
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		var homeDir string
		user, err := user.Current()
		if err == nil {
			homeDir = user.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

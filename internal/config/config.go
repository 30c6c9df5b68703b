// Package config defines the indexer's TOML configuration file shape,
// loaded via naoina/toml with field names normalized to match the Go
// struct exactly, so an unrecognized TOML key fails loudly.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"
	"unicode"

	"github.com/naoina/toml"
)

// StreamConfig configures one of the five projection streams.
type StreamConfig struct {
	FromHeight uint32 `toml:",omitempty"`
	BatchSize  uint32 `toml:",omitempty"`
}

// WalletRule is one wallet's address-matching predicate, in bexpr syntax.
type WalletRule struct {
	ID         string
	Expression string
}

// TableStorageConfig configures the Azure Table Storage connection. Either
// AccountKey is set (live account, aztables.NewSharedKeyCredential) or
// UseEmulator is true (aztables.NewServiceClientWithNoCredential).
type TableStorageConfig struct {
	ServiceURL  string
	AccountName string
	AccountKey  string `toml:"-"` // never persisted to disk; supplied via env/flag
	UseEmulator bool
}

// SchedulerConfig configures the bounded-parallelism write scheduler.
type SchedulerConfig struct {
	ReadyWorkers int `toml:",omitempty"`
	QueueCap     int `toml:",omitempty"`
}

// Config is the indexer's full configuration.
type Config struct {
	NodeRPCURL    string
	GenesisHeight uint32

	FetchWorkers int `toml:",omitempty"`

	TableStorage TableStorageConfig
	Scheduler    SchedulerConfig

	Blocks         StreamConfig
	Transactions   StreamConfig
	Balances       StreamConfig
	WalletBalances StreamConfig
	SmartContracts StreamConfig

	WalletRules []WalletRule

	// IgnoreCheckpoints, when true, resets every stream's checkpoint on
	// startup and re-derives from each stream's configured FromHeight.
	IgnoreCheckpoints bool

	PollInterval time.Duration `toml:",omitempty"`

	// LockFile, if set, is flock'd for the process lifetime so a second
	// instance pointed at the same checkpoint state refuses to start
	// instead of racing the first on checkpoint advance.
	LockFile string `toml:",omitempty"`

	// StorageNamespace prefixes every table name ({ns}blocks, {ns}chain,
	// and so on), so one storage account can host multiple independent
	// deployments.
	StorageNamespace string `toml:",omitempty"`

	// CheckpointSetName subgroups checkpoint rows within the checkpoints
	// table, so more than one indexing run can share a storage namespace
	// without clobbering each other's progress.
	CheckpointSetName string `toml:",omitempty"`

	// ToHeight bounds every stream's indexing range from above (the
	// range is [FromHeight, ToHeight], both ends inclusive). Nil means unbounded:
	// streams follow the live chain head. A present-but-zero value is the
	// degenerate range that exits immediately without processing anything.
	ToHeight *uint32 `toml:",omitempty"`

	// CheckpointInterval caps how many blocks a stream processes before
	// checkpointing, independent of BatchSize; a value smaller than a
	// stream's BatchSize shortens its effective batch so checkpoints land
	// more often. Zero means checkpoint at BatchSize cadence only.
	CheckpointInterval uint32 `toml:",omitempty"`
}

// Default returns a Config with the same conservative defaults the
// indexing loop falls back to when a TOML file leaves a field unset.
func Default() Config {
	return Config{
		FetchWorkers: 16,
		Scheduler:    SchedulerConfig{ReadyWorkers: 30, QueueCap: 100},
		Blocks:       StreamConfig{BatchSize: 2000},
		Transactions: StreamConfig{BatchSize: 2000},
		Balances:     StreamConfig{BatchSize: 2000},
		WalletBalances: StreamConfig{
			BatchSize: 2000,
		},
		SmartContracts:    StreamConfig{BatchSize: 2000},
		PollInterval:      5 * time.Second,
		CheckpointSetName: "default",
	}
}

// tomlSettings ensures TOML keys use the same names as the Go struct
// fields, so an unrecognized key in the TOML file surfaces as an error
// instead of silently being ignored.
var tomlSettings = toml.Config{
	NormFieldName: func(_ reflect.Type, key string) string { return key },
	FieldToKey:    func(_ reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://pkg.go.dev/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// Load reads and decodes a TOML config file on top of Default().
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&cfg)
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(path + ", " + err.Error())
	}
	return cfg, err
}

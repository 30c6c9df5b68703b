// Command blockexplorer-indexer runs the checkpointed projection streams
// (blocks, transactions, balances, wallet-balances, smartcontracts)
// against an upstream node, writing their output into a partitioned
// Azure Table Storage account.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/ethereum/go-ethereum/log"
	"github.com/gofrs/flock"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/MithrilMan/BlockExplorer/internal/checkpoint"
	"github.com/MithrilMan/BlockExplorer/internal/config"
	"github.com/MithrilMan/BlockExplorer/internal/flags"
	"github.com/MithrilMan/BlockExplorer/internal/indexer"
	"github.com/MithrilMan/BlockExplorer/internal/store"
)

const clientIdentifier = "blockexplorer-indexer"

var (
	configFileFlag = &cli.StringFlag{
		Name:     "config",
		Usage:    "TOML configuration file",
		Required: true,
		Category: flags.NodeCategory,
	}
	logFileFlag = &cli.StringFlag{
		Name:     "log.file",
		Usage:    "Write logs to this file with rotation, instead of stderr",
		Category: flags.LoggingCategory,
	}
	ignoreCheckpointsFlag = &cli.BoolFlag{
		Name:     "ignore-checkpoints",
		Usage:    "Reset every stream's checkpoint and re-derive from its configured from_height",
		Category: flags.StreamCategory,
	}
)

func main() {
	app := flags.NewApp("the BlockExplorer indexing service")
	app.Name = clientIdentifier
	app.Flags = []cli.Flag{configFileFlag, logFileFlag, ignoreCheckpointsFlag}
	app.Action = run
	app.Commands = []*cli.Command{
		{
			Name:   "checkpoint",
			Usage:  "Print every stream's checkpoint height",
			Flags:  []cli.Flag{configFileFlag},
			Action: checkpointCommand,
		},
		{
			Name:  "version",
			Usage: "Print version information",
			Action: func(ctx *cli.Context) error {
				fmt.Println(clientIdentifier)
				return nil
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(ctx *cli.Context) {
	if path := ctx.String(logFileFlag.Name); path != "" {
		writer := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}
		log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(writer, log.LevelInfo, false)))
	}
}

func loadConfig(ctx *cli.Context) (config.Config, error) {
	cfg, err := config.Load(ctx.String(configFileFlag.Name))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if ctx.Bool(ignoreCheckpointsFlag.Name) {
		cfg.IgnoreCheckpoints = true
	}
	return cfg, nil
}

func buildTableStore(cfg config.Config) (store.TableStore, error) {
	if cfg.TableStorage.UseEmulator {
		client, err := aztables.NewServiceClientWithNoCredential(cfg.TableStorage.ServiceURL, nil)
		if err != nil {
			return nil, fmt.Errorf("table store: emulator client: %w", err)
		}
		return store.NewAzureTableStore(client), nil
	}
	cred, err := aztables.NewSharedKeyCredential(cfg.TableStorage.AccountName, cfg.TableStorage.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("table store: shared key credential: %w", err)
	}
	client, err := aztables.NewServiceClientWithSharedKey(cfg.TableStorage.ServiceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("table store: client: %w", err)
	}
	return store.NewAzureTableStore(client), nil
}

func run(ctx *cli.Context) error {
	setupLogging(ctx)

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	if cfg.LockFile != "" {
		lock := flock.New(cfg.LockFile)
		locked, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire lock file %s: %w", cfg.LockFile, err)
		}
		if !locked {
			return fmt.Errorf("lock file %s is held by another instance", cfg.LockFile)
		}
		defer lock.Unlock()
	}

	tableStore, err := buildTableStore(cfg)
	if err != nil {
		return err
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	idx, err := indexer.New(bgCtx, cfg, tableStore)
	if err != nil {
		return fmt.Errorf("build indexer: %w", err)
	}
	if err := idx.Start(); err != nil {
		return fmt.Errorf("start indexer: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down")
	return idx.Stop()
}

func checkpointCommand(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	tableStore, err := buildTableStore(cfg)
	if err != nil {
		return err
	}

	bgCtx := context.Background()
	cp, err := checkpoint.New(bgCtx, tableStore, store.TableName(cfg.StorageNamespace, "checkpoints"), cfg.CheckpointSetName)
	if err != nil {
		return err
	}

	for _, s := range []checkpoint.Stream{
		checkpoint.StreamBlocks,
		checkpoint.StreamTransactions,
		checkpoint.StreamBalances,
		checkpoint.StreamWalletBalances,
		checkpoint.StreamSmartContracts,
	} {
		loc, ok, err := cp.Load(bgCtx, s)
		if err != nil {
			return fmt.Errorf("load checkpoint %s: %w", s, err)
		}
		if !ok {
			fmt.Printf("%-20s not checkpointed\n", s)
			continue
		}
		fmt.Printf("%-20s height=%d\n", s, loc.TipHeight)
	}
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/eosforge/txcore-go/pkg/chainClient"
	"github.com/eosforge/txcore-go/pkg/logger"
	"github.com/eosforge/txcore-go/pkg/signatureProvider"
	"github.com/eosforge/txcore-go/pkg/txOrchestrator"
)

func main() {
	app := &cli.App{
		Name:  "pusher",
		Usage: "Sign and push transactions to an Antelope chain",
		Description: `The pusher CLI assembles, signs and broadcasts transactions against a chain
node's HTTP API. TAPoS reference fields are generated automatically, action
payloads are serialized against each contract's on-chain ABI, and signing uses
either in-memory private keys or an AWS KMS key.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
				EnvVars: []string{"DEBUG"},
			},
			&cli.StringFlag{
				Name:     "rpc-url",
				Aliases:  []string{"u"},
				Usage:    "Chain node HTTP endpoint (e.g., 'https://eos.greymass.com')",
				Required: true,
				EnvVars:  []string{"RPC_URL"},
			},
			&cli.StringFlag{
				Name:    "chain-id",
				Usage:   "Target chain id (defaults to the node's reported chain id)",
				EnvVars: []string{"CHAIN_ID"},
			},
			// Signing options
			&cli.StringSliceFlag{
				Name:    "private-key",
				Aliases: []string{"k"},
				Usage:   "Private key for signing (PVT_K1_/PVT_R1_ or legacy WIF format, repeatable)",
				EnvVars: []string{"PRIVATE_KEYS"},
			},
			&cli.StringFlag{
				Name:    "aws-kms-key-id",
				Usage:   "AWS KMS key ID for signing",
				EnvVars: []string{"AWS_KMS_KEY_ID"},
			},
			&cli.StringFlag{
				Name:    "aws-region",
				Usage:   "AWS region for the signing KMS key",
				Value:   "us-east-1",
				EnvVars: []string{"AWS_REGION"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:    "info",
				Aliases: []string{"i"},
				Usage:   "Print the node's chain info",
				Action:  infoAction,
			},
			{
				Name:    "push",
				Aliases: []string{"p"},
				Usage:   "Sign and broadcast a transaction",
				Description: `Read a transaction from a JSON file, fill in its TAPoS reference fields,
serialize its actions against each contract's ABI, sign it and push it to the
node. With --no-broadcast the signed transaction is printed instead of sent.`,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "tx-file",
						Aliases:  []string{"f"},
						Usage:    "Path to the transaction JSON file",
						Required: true,
						EnvVars:  []string{"TX_FILE"},
					},
					&cli.UintFlag{
						Name:    "blocks-behind",
						Aliases: []string{"b"},
						Usage:   "Reference block distance behind head for TAPoS",
						Value:   3,
						EnvVars: []string{"BLOCKS_BEHIND"},
					},
					&cli.BoolFlag{
						Name:    "use-last-irreversible",
						Usage:   "Use the last irreversible block as the TAPoS reference",
						EnvVars: []string{"USE_LAST_IRREVERSIBLE"},
					},
					&cli.UintFlag{
						Name:    "expire-seconds",
						Aliases: []string{"e"},
						Usage:   "Transaction validity window in seconds",
						Value:   30,
						EnvVars: []string{"EXPIRE_SECONDS"},
					},
					&cli.BoolFlag{
						Name:    "compress",
						Usage:   "Deflate the packed transaction before broadcast",
						EnvVars: []string{"COMPRESS"},
					},
					&cli.BoolFlag{
						Name:    "no-broadcast",
						Usage:   "Sign only; print the signed transaction without sending it",
						EnvVars: []string{"NO_BROADCAST"},
					},
				},
				Action: pushAction,
			},
		},
		Before: validateFlags,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func validateFlags(c *cli.Context) error {
	privateKeys := c.StringSlice("private-key")
	kmsKeyID := c.String("aws-kms-key-id")

	if len(privateKeys) > 0 && kmsKeyID != "" {
		return fmt.Errorf("cannot specify both --private-key and --aws-kms-key-id")
	}
	return nil
}

func setupLogger(c *cli.Context) (*zap.Logger, error) {
	return logger.NewLogger(&logger.LoggerConfig{
		Debug: c.Bool("debug"),
	})
}

func setupChainClient(c *cli.Context, l *zap.Logger) *chainClient.ChainClient {
	return chainClient.NewChainClient(&chainClient.ChainClientConfig{
		BaseURL: c.String("rpc-url"),
	}, l)
}

func setupSignatureProvider(c *cli.Context, l *zap.Logger) (signatureProvider.ISignatureProvider, error) {
	if privateKeys := c.StringSlice("private-key"); len(privateKeys) > 0 {
		return signatureProvider.NewInMemorySigner(privateKeys, l)
	}

	if kmsKeyID := c.String("aws-kms-key-id"); kmsKeyID != "" {
		region := c.String("aws-region")
		return signatureProvider.NewAWSKMSSigner(context.Background(), kmsKeyID, region, l)
	}

	return nil, fmt.Errorf("no signing method configured; specify --private-key or --aws-kms-key-id")
}

func setupOrchestrator(c *cli.Context, l *zap.Logger) (*txOrchestrator.Orchestrator, error) {
	client := setupChainClient(c, l)
	sigProvider, err := setupSignatureProvider(c, l)
	if err != nil {
		return nil, err
	}
	return txOrchestrator.NewOrchestrator(&txOrchestrator.OrchestratorConfig{
		ChainID: c.String("chain-id"),
	}, client, sigProvider, l)
}

func infoAction(c *cli.Context) error {
	l, err := setupLogger(c)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}

	client := setupChainClient(c, l)
	info, err := client.GetInfo(context.Background())
	if err != nil {
		return fmt.Errorf("failed to fetch chain info: %w", err)
	}

	out, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func pushAction(c *cli.Context) error {
	l, err := setupLogger(c)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}

	orchestrator, err := setupOrchestrator(c, l)
	if err != nil {
		return fmt.Errorf("failed to setup orchestrator: %w", err)
	}

	raw, err := os.ReadFile(c.String("tx-file"))
	if err != nil {
		return fmt.Errorf("failed to read transaction file: %w", err)
	}
	var tx chainClient.Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return fmt.Errorf("failed to parse transaction file: %w", err)
	}

	cfg := txOrchestrator.DefaultTransactConfig()
	cfg.Broadcast = !c.Bool("no-broadcast")
	cfg.Compress = c.Bool("compress")
	cfg.UseLastIrreversible = c.Bool("use-last-irreversible")
	cfg.ExpireSeconds = uint32(c.Uint("expire-seconds"))
	if !cfg.UseLastIrreversible {
		blocksBehind := uint32(c.Uint("blocks-behind"))
		cfg.BlocksBehind = &blocksBehind
	}

	result, err := orchestrator.Transact(context.Background(), &tx, cfg)
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	if result.Processed != nil {
		l.Info("transaction accepted",
			zap.String("transactionId", result.Processed.TransactionID),
		)
		return nil
	}

	out, err := json.MarshalIndent(map[string]any{
		"signatures":             result.Signatures,
		"serialized_transaction": fmt.Sprintf("%x", result.SerializedTransaction),
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/eosforge/txcore-go/pkg/abiCache"
	"github.com/eosforge/txcore-go/pkg/chainClient"
	"github.com/eosforge/txcore-go/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "abigrab",
		Usage: "Fetch and decode a contract's on-chain ABI",
		Description: `abigrab pulls a contract account's raw ABI from a chain node, decodes the
binary abi_def schema and prints it as JSON. Useful for inspecting what the
serializer will see for a given contract.`,
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
				Usage:    "Chain node HTTP endpoint",
				Required: true,
				EnvVars:  []string{"RPC_URL"},
			},
			&cli.BoolFlag{
				Name:    "actions",
				Aliases: []string{"a"},
				Usage:   "List action names and their argument types instead of the full ABI",
			},
		},
		ArgsUsage: "<account>",
		Action:    grabAction,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func grabAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one account argument")
	}
	account := c.Args().Get(0)

	l, err := logger.NewLogger(&logger.LoggerConfig{
		Debug: c.Bool("debug"),
	})
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}

	client := chainClient.NewChainClient(&chainClient.ChainClientConfig{
		BaseURL: c.String("rpc-url"),
	}, l)
	cache := abiCache.NewCache(client, l)

	ctx := context.Background()
	cached, err := cache.GetCachedAbi(ctx, account, false)
	if err != nil {
		return err
	}
	l.Debug("fetched abi",
		zap.String("account", account),
		zap.Int("rawSize", len(cached.RawAbi)),
	)

	if c.Bool("actions") {
		contract, err := cache.GetContract(ctx, account, false)
		if err != nil {
			return err
		}
		for name, actionType := range contract.Actions {
			fmt.Printf("%s\t%s\n", name, actionType.Name)
		}
		return nil
	}

	out, err := json.MarshalIndent(cached.Abi, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	return &cli.App{
		Name:    "corevo",
		Usage:   "commit-reveal voting over on-chain remarks",
		Version: fmt.Sprintf("%s commit=%s build_date=%s", version, commit, buildDate),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to config.yaml",
				EnvVars: []string{"COREVO_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "suri",
				Usage:   "secret URI of the acting account",
				EnvVars: []string{"COREVO_SECRET_URI"},
			},
			&cli.StringFlag{
				Name:  "account",
				Usage: "keystore label of the acting account",
			},
			&cli.StringFlag{
				Name:    "passphrase",
				Usage:   "keystore passphrase",
				EnvVars: []string{"COREVO_KEYSTORE_PASSPHRASE"},
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "remark store backend override: bolt | mongo | memory",
			},
			&cli.StringFlag{
				Name:  "ledger",
				Usage: "bolt ledger path override",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "history",
				Usage: "rebuild voting history",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "context", Usage: "only this voting context"},
					&cli.StringFlag{Name: "sender", Usage: "only remarks from this account"},
					&cli.BoolFlag{Name: "json", Usage: "print JSON"},
				},
				Action: withRuntime(runHistory),
			},
			{
				Name:   "announce",
				Usage:  "publish the account's encryption key",
				Action: withRuntime(runAnnounce),
			},
			{
				Name:      "propose",
				Usage:     "open a voting context and invite voters",
				ArgsUsage: "<context> <voter>...",
				Action:    withRuntime(runPropose),
			},
			{
				Name:      "commit",
				Usage:     "commit a vote",
				ArgsUsage: "<context> <aye|nay|abstain>",
				Action:    withRuntime(runCommit),
			},
			{
				Name:      "reveal",
				Usage:     "reveal the committed vote's salt",
				ArgsUsage: "<context>",
				Action:    withRuntime(runReveal),
			},
			{
				Name:   "pending",
				Usage:  "list contexts awaiting the account's reveal",
				Action: withRuntime(runPending),
			},
			{
				Name:   "voters",
				Usage:  "list accounts with an announced encryption key",
				Action: withRuntime(runVoters),
			},
			{
				Name:  "watch",
				Usage: "follow new protocol remarks",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "from", Usage: "first block to report"},
				},
				Action: withRuntime(runWatch),
			},
			{
				Name:   "keygen",
				Usage:  "generate a new mnemonic",
				Action: keygenAction,
			},
			{
				Name:  "keystore",
				Usage: "manage the local keystore",
				Subcommands: []*cli.Command{
					{
						Name:      "add",
						Usage:     "store a secret URI under a label",
						ArgsUsage: "<label> [secret-uri]",
						Action:    keystoreAddAction,
					},
					{
						Name:   "list",
						Usage:  "list stored accounts",
						Action: keystoreListAction,
					},
					{
						Name:      "remove",
						Usage:     "remove a stored account",
						ArgsUsage: "<label>",
						Action:    keystoreRemoveAction,
					},
				},
			},
		},
	}
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"settlement-ledger-go/internal/api"
	"settlement-ledger-go/internal/common"
	"settlement-ledger-go/internal/config"
	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type command struct {
	usage string
	run   func(ctx context.Context, svc *api.LedgerService, args []string) (any, error)
}

var commands = map[string]command{
	"adjust": {
		usage: "adjust --user ID --coin COIN --delta AMOUNT [--reason TEXT] [--key KEY]",
		run: func(ctx context.Context, svc *api.LedgerService, args []string) (any, error) {
			fs := flag.NewFlagSet("adjust", flag.ExitOnError)
			user := fs.String("user", "", "User id")
			coin := fs.String("coin", "", "Coin symbol")
			delta := fs.String("delta", "", "Signed amount")
			reason := fs.String("reason", "admin adjustment", "Audit reason")
			key := fs.String("key", "", "Idempotency key (optional)")
			_ = fs.Parse(args)

			amount, err := parseDecimal("delta", *delta)
			if err != nil {
				return nil, err
			}
			return svc.AdjustBalance(ctx, *user, *coin, amount, *reason, *key)
		},
	},
	"set": {
		usage: "set --user ID --coin COIN --value AMOUNT [--reason TEXT]",
		run: func(ctx context.Context, svc *api.LedgerService, args []string) (any, error) {
			fs := flag.NewFlagSet("set", flag.ExitOnError)
			user := fs.String("user", "", "User id")
			coin := fs.String("coin", "", "Coin symbol")
			value := fs.String("value", "", "New balance")
			reason := fs.String("reason", "admin overwrite", "Audit reason")
			_ = fs.Parse(args)

			amount, err := parseDecimal("value", *value)
			if err != nil {
				return nil, err
			}
			return svc.SetBalance(ctx, *user, *coin, amount, *reason)
		},
	},
	"force": {
		usage: "force --trade ID --outcome win|loss",
		run: func(ctx context.Context, svc *api.LedgerService, args []string) (any, error) {
			trade, outcome, err := tradeOutcomeFlags("force", args)
			if err != nil {
				return nil, err
			}
			return svc.SetForcedOutcome(ctx, trade, outcome)
		},
	},
	"correct": {
		usage: "correct --trade ID --outcome win|loss",
		run: func(ctx context.Context, svc *api.LedgerService, args []string) (any, error) {
			trade, outcome, err := tradeOutcomeFlags("correct", args)
			if err != nil {
				return nil, err
			}
			return svc.CorrectTradeOutcome(ctx, trade, outcome)
		},
	},
	"ban": {
		usage: "ban --user ID [--lift]",
		run: func(ctx context.Context, svc *api.LedgerService, args []string) (any, error) {
			fs := flag.NewFlagSet("ban", flag.ExitOnError)
			user := fs.String("user", "", "User id")
			lift := fs.Bool("lift", false, "Remove the ban instead")
			_ = fs.Parse(args)

			if err := svc.SetUserBanned(ctx, *user, !*lift); err != nil {
				return nil, err
			}
			return svc.GetUser(ctx, *user)
		},
	},
	"flag": {
		usage: "flag --user ID --key KEY [--value VALUE]  (empty value clears)",
		run: func(ctx context.Context, svc *api.LedgerService, args []string) (any, error) {
			fs := flag.NewFlagSet("flag", flag.ExitOnError)
			user := fs.String("user", "", "User id")
			key := fs.String("key", store.FlagForceOutcome, "Flag name")
			value := fs.String("value", "", "Flag value")
			_ = fs.Parse(args)

			if err := svc.SetUserFlag(ctx, *user, *key, *value); err != nil {
				return nil, err
			}
			return map[string]string{"user_id": *user, "key": *key, "value": *value}, nil
		},
	},
	"approve-topup": {
		usage: "approve-topup --id ID",
		run: func(ctx context.Context, svc *api.LedgerService, args []string) (any, error) {
			return svc.ApproveTopup(ctx, idFlag("approve-topup", args))
		},
	},
	"reject-topup": {
		usage: "reject-topup --id ID",
		run: func(ctx context.Context, svc *api.LedgerService, args []string) (any, error) {
			return svc.RejectTopup(ctx, idFlag("reject-topup", args))
		},
	},
	"complete-redeem": {
		usage: "complete-redeem --id SUBSCRIPTION_ID",
		run: func(ctx context.Context, svc *api.LedgerService, args []string) (any, error) {
			return svc.CompleteRedeem(ctx, idFlag("complete-redeem", args))
		},
	},
	"reconcile": {
		usage: "reconcile --user ID",
		run: func(ctx context.Context, svc *api.LedgerService, args []string) (any, error) {
			fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
			user := fs.String("user", "", "User id")
			_ = fs.Parse(args)

			if err := svc.ReconcileUser(ctx, *user); err != nil {
				return nil, err
			}
			return svc.GetBalances(ctx, *user)
		},
	},
	"sweep": {
		usage: "sweep",
		run: func(ctx context.Context, svc *api.LedgerService, args []string) (any, error) {
			return svc.SweepDueSettlements(ctx)
		},
	},
}

func parseDecimal(name, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, fmt.Errorf("--%s is required", name)
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return amount, nil
}

func tradeOutcomeFlags(name string, args []string) (string, models.TradeStatus, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	trade := fs.String("trade", "", "Trade id")
	outcome := fs.String("outcome", "", "win or loss")
	_ = fs.Parse(args)

	if *trade == "" {
		return "", "", fmt.Errorf("--trade is required")
	}
	status, err := models.ParseOutcome(*outcome)
	if err != nil {
		return "", "", err
	}
	return *trade, status, nil
}

func idFlag(name string, args []string) string {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	id := fs.String("id", "", "Record id")
	_ = fs.Parse(args)
	return *id
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin <command> [flags]")
	fmt.Fprintln(os.Stderr)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg, prometheus.NewRegistry())
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	actor := os.Getenv("USER")
	if actor == "" {
		actor = "cli"
	}
	ctx = models.WithRequestContext(ctx, &models.RequestContext{Actor: actor, Source: "cli"})

	result, err := cmd.run(ctx, services.API, os.Args[2:])
	if err != nil {
		common.PrintHeader("COMMAND FAILED", common.DefaultWidth)
		fmt.Printf("Error: %v\n", err)
		common.PrintSeparator("=", common.DefaultWidth)
		zap.L().Error("Admin command failed", zap.String("command", os.Args[1]), zap.Error(err))
		services.Close()
		os.Exit(1)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		zap.L().Fatal("Error marshaling result", zap.Error(err))
	}
	fmt.Println(string(out))
	zap.L().Info("Admin command completed", zap.String("command", os.Args[1]))
}

package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"starpets/internal/config"
	"starpets/internal/db"
	"starpets/internal/game"
	"starpets/internal/logger"
	"starpets/internal/store"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// adminService opens the configured store directly, bypassing the API.
func adminService(ctx context.Context, cfg config.CLIConfig) (*game.Service, func(), error) {
	storeCfg, err := config.LoadStoreFromEnv()
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.JSON)
	s, closeStore, err := store.Open(ctx, storeCfg, log)
	if err != nil {
		return nil, nil, err
	}
	return game.NewService(s, log), closeStore, nil
}

func newAdminCmd(cfg config.CLIConfig) *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Operator commands that talk to the database directly",
	}

	admin.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			storeCfg, err := config.LoadStoreFromEnv()
			if err != nil {
				return err
			}
			if storeCfg.Driver != config.StoreDriverPostgres {
				return fmt.Errorf("migrate needs STARPETS_STORE=%s", config.StoreDriverPostgres)
			}
			pool, err := db.Connect(cmd.Context(), storeCfg.DatabaseURL, db.PoolOptions{MaxConns: 2, MinConns: 1})
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := db.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			printSuccess("Schema is up to date.")
			return nil
		},
	})

	admin.AddCommand(&cobra.Command{
		Use:   "regen",
		Short: "Run one energy regeneration tick now",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := adminService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()
			n, err := svc.RegenerateTick(cmd.Context())
			printInfo(fmt.Sprintf("Regenerated %d wallets.", n))
			return err
		},
	})

	admin.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Settle expired mine challenges now",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := adminService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()
			res, err := svc.SettleExpiredSweep(cmd.Context())
			printInfo(fmt.Sprintf("Settled %d, skipped %d, failed %d.", res.Settled, res.Skipped, res.Failed))
			return err
		},
	})

	admin.AddCommand(&cobra.Command{
		Use:   "grant <user-id> <GEM|SHELL|TICKET> <amount>",
		Short: "Credit (or with a negative amount, debit) a balance",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			currency, err := game.ParseCurrency(args[1])
			if err != nil {
				return err
			}
			delta, err := decimal.NewFromString(strings.TrimSpace(args[2]))
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[2])
			}
			txType := game.TxEarn
			if delta.IsNegative() {
				txType = game.TxSpend
			}
			svc, closeStore, err := adminService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()
			balance, err := svc.MutateBalance(cmd.Context(), args[0], currency, delta, txType, game.SourceAdmin)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("%s %s balance is now %s.", args[0], currency, amount(balance)))
			return nil
		},
	})

	admin.AddCommand(&cobra.Command{
		Use:   "energy <user-id> <delta>",
		Short: "Adjust a user's energy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := strconv.Atoi(strings.TrimSpace(args[1]))
			if err != nil {
				return fmt.Errorf("invalid delta %q", args[1])
			}
			svc, closeStore, err := adminService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()
			energy, err := svc.MutateEnergy(cmd.Context(), args[0], delta, game.EnergyAdmin)
			if err != nil {
				return err
			}
			fmt.Printf("%s energy: %s\n", args[0], energyBar(energy))
			return nil
		},
	})

	admin.AddCommand(&cobra.Command{
		Use:   "exp <creature-id> <gain>",
		Short: "Grant experience to a creature",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gain, err := strconv.ParseInt(strings.TrimSpace(args[1]), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid exp %q", args[1])
			}
			svc, closeStore, err := adminService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()
			res, err := svc.AddExp(cmd.Context(), strings.TrimSpace(args[0]), gain)
			if err != nil {
				return err
			}
			if res.LeveledUp {
				printSuccess(fmt.Sprintf("%s reached level %d (+%d).", res.Creature.Name, res.Creature.Level, res.LevelsGained))
				return nil
			}
			printInfo(fmt.Sprintf("%s is level %d with %d exp.", res.Creature.Name, res.Creature.Level, res.Creature.Exp))
			return nil
		},
	})

	return admin
}

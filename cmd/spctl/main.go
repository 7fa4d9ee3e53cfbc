package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	cl "starpets/internal/cli"
	"starpets/internal/config"
	"starpets/internal/game"
	"starpets/internal/syncq"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "spctl",
		Short:        "Star Pets game client and operator tool",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "game API base URL")

	root.AddCommand(
		newLoginCmd(&apiBase),
		newLogoutCmd(),
		newWalletCmd(&apiBase),
		newPetsCmd(&apiBase),
		newStarterCmd(&apiBase),
		newProduceCmd(&apiBase),
		newEnergyCmd(&apiBase),
		newFuseCmd(&apiBase),
		newMineCmd(&apiBase),
		newAchievementsCmd(&apiBase),
		newSyncCmd(&apiBase),
		newRulesCmd(),
		newAdminCmd(cfg),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// playerClient builds a client for the saved profile. A profile API URL wins unless
// --api was given explicitly.
func playerClient(cmd *cobra.Command, apiBase *string) (*cl.Client, error) {
	p, err := cl.LoadProfile()
	if err != nil {
		return nil, fmt.Errorf("login required (spctl login <user-id>): %w", err)
	}
	base := *apiBase
	if p.APIURL != "" && !cmd.Flags().Changed("api") {
		base = p.APIURL
	}
	return cl.NewClient(strings.TrimSpace(base), p.UserID), nil
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func newLoginCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login <user-id>",
		Short: "Save the player id sent with every request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := strings.TrimSpace(args[0])
			if userID == "" {
				return fmt.Errorf("user id is required")
			}
			if err := cl.SaveProfile(cl.Profile{UserID: userID, APIURL: *apiBase}); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Playing as %s against %s.", userID, *apiBase))
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved player id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearProfile(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newWalletCmd(apiBase *string) *cobra.Command {
	var txLimit int
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Show balances and energy",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := playerClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			w, err := client.Wallet(ctx)
			if err != nil {
				return err
			}
			renderWallet(w)
			if txLimit > 0 {
				rows, err := client.Transactions(ctx, txLimit)
				if err != nil {
					return err
				}
				printTitle("Recent transactions")
				renderTransactions(rows)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&txLimit, "tx", 0, "also show the latest N transactions")
	return cmd
}

func newPetsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:     "pets",
		Aliases: []string{"creatures"},
		Short:   "List your creatures",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := playerClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			creatures, err := client.Creatures(ctx)
			if err != nil {
				return err
			}
			renderCreatures(creatures)
			return nil
		},
	}
}

func newStarterCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "starter",
		Short: "Adopt your free starter creature",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := playerClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			c, err := client.ClaimNewbie(ctx)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Welcome %s (%s)! %d shells added.", c.Name, c.Rarity, game.NewbieShellGrant))
			return nil
		},
	}
}

func newProduceCmd(apiBase *string) *cobra.Command {
	produce := &cobra.Command{
		Use:   "produce",
		Short: "Run production with your creatures",
	}
	produce.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Start (or resume) a production session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := playerClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			view, err := client.StartProduction(ctx)
			if err != nil {
				return err
			}
			if view.Resumed {
				printInfo(fmt.Sprintf("Production already running since %s.", view.StartTime.Local().Format(time.Kitchen)))
				return nil
			}
			printSuccess(fmt.Sprintf("Production started; costs %d energy per hour.", view.EnergyCostPerHour))
			return nil
		},
	})
	produce.AddCommand(&cobra.Command{
		Use:   "claim",
		Short: "Collect production and stop the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := playerClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			r, err := client.ClaimProduction(ctx)
			if err != nil {
				return err
			}
			renderRewards("Production claimed", r)
			return nil
		},
	})
	produce.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the running session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := playerClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			st, err := client.ProductionStatus(ctx)
			if err != nil {
				return err
			}
			renderProductionStatus(st)
			return nil
		},
	})
	var since time.Duration
	preview := &cobra.Command{
		Use:   "preview",
		Short: "Estimate offline earnings",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := playerClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			r, err := client.OfflinePreview(ctx, time.Now().Add(-since))
			if err != nil {
				return err
			}
			renderRewards(fmt.Sprintf("Offline estimate for %s", since), r)
			return nil
		},
	}
	preview.Flags().DurationVar(&since, "since", 8*time.Hour, "how long you were away")
	produce.AddCommand(preview)
	return produce
}

func newEnergyCmd(apiBase *string) *cobra.Command {
	energy := &cobra.Command{
		Use:   "energy",
		Short: "Energy purchases",
	}
	energy.AddCommand(&cobra.Command{
		Use:   "buy <quantity>",
		Short: fmt.Sprintf("Buy energy in units of %d for %d shells each", game.EnergyPurchaseUnit, game.EnergyPurchaseUnitPrice),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil || qty <= 0 {
				return fmt.Errorf("invalid quantity %q", args[0])
			}
			client, err := playerClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			idem := uuid.NewString()
			res, err := client.BuyEnergy(ctx, qty, idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Method:         http.MethodPost,
					Path:           "/v1/energy/purchase",
					Body:           cl.EnergyPurchaseBody(qty),
					IdempotencyKey: idem,
				})
			}
			printSuccess(fmt.Sprintf("+%d energy for %s shells (now %d, %d left today).",
				res.EnergyGained, amount(res.ShellCost), res.Energy, res.Remaining))
			return nil
		},
	})
	return energy
}

func newFuseCmd(apiBase *string) *cobra.Command {
	var protect bool
	cmd := &cobra.Command{
		Use:   "fuse <target-rarity> <creature-id>...",
		Short: "Fuse creatures into a higher rarity",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := game.ParseRarity(args[0])
			if err != nil {
				return err
			}
			client, err := playerClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			ids := args[1:]
			idem := uuid.NewString()
			res, err := client.Fuse(ctx, target, ids, protect, idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Method:         http.MethodPost,
					Path:           "/v1/fusion",
					Body:           cl.FusionBody(target, ids, protect),
					IdempotencyKey: idem,
				})
			}
			if res.Success && res.NewCreature != nil {
				printSuccess(fmt.Sprintf("Fusion succeeded: %s (%s) joined you.", res.NewCreature.Name, rarityLabel(res.NewCreature.Rarity)))
			} else {
				printWarn("Fusion failed. The materials were consumed.")
			}
			printInfo(fmt.Sprintf("Spent %s shells on %d creatures.", amount(res.ShellCost), len(res.Consumed)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&protect, "protect", false, "guarantee success")
	return cmd
}

func newMineCmd(apiBase *string) *cobra.Command {
	mine := &cobra.Command{
		Use:   "mine",
		Short: "Mine challenges",
	}
	mine.AddCommand(&cobra.Command{
		Use:   "spots",
		Short: "List mine spots",
		RunE: func(cmd *cobra.Command, args []string) error {
			renderMineSpots()
			return nil
		},
	})
	mine.AddCommand(&cobra.Command{
		Use:   "enter <spot-level>",
		Short: "Start a mine challenge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("invalid spot level %q", args[0])
			}
			client, err := playerClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			view, err := client.EnterMine(ctx, level)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Entered %s. Come back at %s and run `spctl mine claim %s`.",
				view.SpotName, view.EndTime.Local().Format(time.Kitchen), view.ChallengeID))
			return nil
		},
	})
	mine.AddCommand(&cobra.Command{
		Use:   "claim [challenge-id]",
		Short: "Collect a finished challenge",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := playerClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			var id string
			if len(args) == 1 {
				id = strings.TrimSpace(args[0])
			} else {
				st, err := client.MineStatus(ctx)
				if err != nil {
					return err
				}
				if st.Challenge == nil {
					printInfo("No challenge to claim.")
					return nil
				}
				id = st.Challenge.ChallengeID
			}
			r, err := client.ClaimMine(ctx, id)
			if err != nil {
				return err
			}
			renderRewards("Mine rewards", r)
			return nil
		},
	})
	mine.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current challenge",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := playerClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			st, err := client.MineStatus(ctx)
			if err != nil {
				return err
			}
			switch {
			case !st.InProgress || st.Challenge == nil:
				printInfo("No challenge in progress.")
			case st.Completed:
				printSuccess(fmt.Sprintf("%s is done. Claim it with `spctl mine claim`.", st.Challenge.SpotName))
			default:
				printInfo(fmt.Sprintf("%s: %s remaining.", st.Challenge.SpotName, time.Duration(st.RemainingSeconds)*time.Second))
			}
			return nil
		},
	})
	return mine
}

func newAchievementsCmd(apiBase *string) *cobra.Command {
	achievements := &cobra.Command{
		Use:   "achievements",
		Short: "List achievements",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := playerClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			views, err := client.Achievements(ctx)
			if err != nil {
				return err
			}
			renderAchievements(views)
			return nil
		},
	}
	achievements.AddCommand(&cobra.Command{
		Use:   "claim <achievement-id>",
		Short: "Claim an unlocked achievement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := playerClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			a, err := client.ClaimAchievement(ctx, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("%s claimed: +%s gems, +%s shells.", a.Name, a.RewardGem.String(), a.RewardShell.String()))
			return nil
		},
	})
	return achievements
}

func newSyncCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay writes queued while the API was unreachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := playerClient(cmd, apiBase)
			if err != nil {
				return err
			}
			queue, err := syncq.Load()
			if err != nil {
				return err
			}
			if len(queue) == 0 {
				printInfo("Sync queue is empty.")
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			delivered, remaining, rejected := syncq.Replay(queue, func(q syncq.Command) error {
				return client.Do(ctx, q.Method, q.Path, q.Body, q.IdempotencyKey)
			})
			for _, err := range rejected {
				printError(fmt.Sprintf("Dropped: %v", err))
			}
			if err := syncq.Save(remaining); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Sync complete: replayed=%d rejected=%d remaining=%d", delivered, len(rejected), len(remaining)))
			return nil
		},
	}
}

func newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Show fusion, mine and level tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			renderFusionRules()
			renderMineSpots()
			renderExpTable()
			return nil
		},
	}
}

// queueOnNetworkError parks a write that never reached the server. Server rejections
// are returned unchanged.
func queueOnNetworkError(err error, q syncq.Command) error {
	if err == nil || cl.IsAPIError(err) {
		return err
	}
	if qerr := syncq.Push(q); qerr != nil {
		return fmt.Errorf("request failed and could not be queued: %w", err)
	}
	printWarn("API unreachable; queued for `spctl sync`.")
	return nil
}

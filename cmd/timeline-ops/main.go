package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/cashflow_backend/config"
	"github.com/mmdatafocus/cashflow_backend/models"
	"github.com/mmdatafocus/cashflow_backend/timeline"
	"github.com/mmdatafocus/cashflow_backend/utils"
	"github.com/spf13/cobra"
)

var (
	businessId     string
	subscriptionId int
	fromMonth      string
	toMonth        string
)

var rootCmd = &cobra.Command{
	Use:   "timeline-ops",
	Short: "Operate on subscription payment timelines",
	Long: `Maintenance commands for subscription timelines: materialize projection
rows ahead of time, inspect a reconciled timeline, and rewrite paid state from
the payment ledger after manual data fixes.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(businessId) == "" {
			return errors.New("--business-id is required")
		}
		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Store projection rows and ledger entries for a month range",
	Long: `Store projection rows and ledger entries for every projected occurrence in
the range. Without --subscription-id every active subscription of the business
is generated. Existing rows are kept.`,
	RunE: runGenerate,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the reconciled timeline of one subscription as JSON",
	RunE:  runShow,
}

var resyncCmd = &cobra.Command{
	Use:   "resync",
	Short: "Rewrite paid state from the payment ledger for each stored row in the range",
	Long: `Rewrite paid state from the payment ledger for each stored row in the range.
Without --from/--to the range is the subscription's start month through its end
month, or through the current month when it is open-ended.`,
	RunE: runResync,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&businessId, "business-id", "", "Business id (required)")
	rootCmd.PersistentFlags().IntVar(&subscriptionId, "subscription-id", 0, "Subscription id")
	rootCmd.PersistentFlags().StringVar(&fromMonth, "from", "", "First month, YYYY-MM")
	rootCmd.PersistentFlags().StringVar(&toMonth, "to", "", "Last month, YYYY-MM")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(resyncCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup() (context.Context, *timeline.Engine) {
	config.ConnectDatabaseWithRetry()
	ctx := utils.SetBusinessIdInContext(context.Background(), strings.TrimSpace(businessId))
	ctx = utils.SetUserNameInContext(ctx, "TimelineOps")
	engine := timeline.NewEngine(models.NewTimelineRepository(), timeline.SystemClock, config.GetLogger())
	return ctx, engine
}

func requireSubscription() error {
	if subscriptionId <= 0 {
		return errors.New("--subscription-id is required")
	}
	return nil
}

// monthRange defaults to the current month through the configured horizon.
func monthRange(engine *timeline.Engine) (timeline.Month, timeline.Month, error) {
	current := timeline.MonthOf(engine.Clock.Now())
	return timeline.MonthRange(fromMonth, toMonth, current, current.AddMonths(config.TimelineHorizonMonths()))
}

// subscriptionRange defaults to the subscription's lifetime up to now, where
// drift from manual fixes lives.
func subscriptionRange(engine *timeline.Engine, sub *models.Subscription) (timeline.Month, timeline.Month, error) {
	defFrom, defTo := timeline.DefaultRange(sub, engine.Clock.Now())
	return timeline.MonthRange(fromMonth, toMonth, defFrom, defTo)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, engine := setup()
	from, to, err := monthRange(engine)
	if err != nil {
		return err
	}

	ids := []int{subscriptionId}
	if subscriptionId <= 0 {
		subs, err := engine.Store.ListActiveSubscriptions(ctx)
		if err != nil {
			return err
		}
		ids = ids[:0]
		for _, s := range subs {
			ids = append(ids, s.ID)
		}
	}

	var results []*timeline.GenerateResult
	var failed int
	for _, id := range ids {
		res, err := engine.GenerateProjections(ctx, id, from, to)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "subscription %d: %v\n", id, err)
			continue
		}
		results = append(results, res)
	}
	if err := printJSON(results); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d subscriptions failed", failed, len(ids))
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	if err := requireSubscription(); err != nil {
		return err
	}
	ctx, engine := setup()
	sub, err := engine.Store.GetSubscription(ctx, subscriptionId)
	if err != nil {
		return err
	}
	from, to, err := subscriptionRange(engine, sub)
	if err != nil {
		return err
	}
	tl, err := engine.Timeline(ctx, subscriptionId, from, to)
	if err != nil {
		return err
	}
	return printJSON(tl)
}

func runResync(cmd *cobra.Command, args []string) error {
	if err := requireSubscription(); err != nil {
		return err
	}
	ctx, engine := setup()
	sub, err := engine.Store.GetSubscription(ctx, subscriptionId)
	if err != nil {
		return err
	}
	from, to, err := subscriptionRange(engine, sub)
	if err != nil {
		return err
	}
	rows, err := engine.Store.ListProjectionEntries(ctx, subscriptionId, from.String(), to.String())
	if err != nil {
		return err
	}
	var views []*timeline.OccurrenceView
	for _, row := range rows {
		month, err := timeline.ParseMonth(row.Month)
		if err != nil {
			return err
		}
		view, err := engine.Resync(ctx, subscriptionId, month)
		if err != nil {
			return fmt.Errorf("resync %s: %w", row.Month, err)
		}
		views = append(views, view)
	}
	return printJSON(views)
}

package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/frahmantamala/expense-approval/internal/approval"
	"github.com/frahmantamala/expense-approval/internal/core/events"
	"github.com/frahmantamala/expense-approval/pkg/logger"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Inspect the expense workflow events and publish test events through the dispatcher`,
}

var listEventsCmd = &cobra.Command{
	Use:   "list",
	Short: "List workflow event types",
	Run: func(cmd *cobra.Command, args []string) {
		for _, t := range events.AllExpenseEventTypes {
			fmt.Println(t)
		}
	},
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a test workflow event",
	Long:  `Publish a test expense event to the bus and wait for the registered handlers to drain`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishTestEvent(cmd.Context(), args[0])
	},
}

var (
	eventExpenseID int64
	eventCompanyID int64
	eventStep      int
	eventActorID   int64
)

func publishTestEvent(ctx context.Context, eventType string) error {
	if !slices.Contains(events.AllExpenseEventTypes, eventType) {
		return fmt.Errorf("unknown event type %q, expected one of: %s",
			eventType, strings.Join(events.AllExpenseEventTypes, ", "))
	}
	if ctx == nil {
		ctx = context.Background()
	}

	lg := logger.LoggerWrapper()
	dispatcher := events.NewDispatcher(1, 1, lg)
	eventBus := events.NewEventBus(lg, dispatcher)
	approval.NewEventHandler(lg).RegisterEventHandlers(eventBus)

	event := events.NewExpenseEvent(eventType, eventExpenseID, eventCompanyID, eventStep, eventActorID)
	lg.Info("publishing test event", "event_type", eventType, "event_id", event.EventID())

	if err := eventBus.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("drain dispatcher: %w", err)
	}

	lg.Info("test event published successfully")
	return nil
}

func init() {
	publishEventCmd.Flags().Int64Var(&eventExpenseID, "expense-id", 1, "expense id carried by the event")
	publishEventCmd.Flags().Int64Var(&eventCompanyID, "company-id", 1, "company id carried by the event")
	publishEventCmd.Flags().IntVar(&eventStep, "step", 1, "approval step carried by the event")
	publishEventCmd.Flags().Int64Var(&eventActorID, "actor-id", 0, "acting user, zero for system transitions")

	eventCmd.AddCommand(listEventsCmd)
	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}

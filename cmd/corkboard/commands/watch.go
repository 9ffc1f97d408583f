package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/corkboard/internal/config"
	"github.com/dyluth/corkboard/internal/feed"
	"github.com/dyluth/corkboard/internal/printer"
	"github.com/spf13/cobra"
)

var (
	watchRedisURL     string
	watchInstanceName string
	watchOutputFormat string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream board activity from the Redis event feed",
	Long: `Stream every note posted, pinned, unpinned, shaken off or cleared
as it happens, across all clients of a board server.

The server must run with --redis-url (or feed.redis_url) set.

Output Formats:
  default - Human-readable output with timestamps and emojis
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Watch the default instance on a local Redis
  corkboard watch --redis-url redis://localhost:6379

  # Export events as JSON
  corkboard watch --instance office --output=json > events.jsonl`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchRedisURL, "redis-url", "", "Redis URL (defaults to $REDIS_URL)")
	watchCmd.Flags().StringVarP(&watchInstanceName, "instance", "n", "", "Instance name (defaults to $CORKBOARD_INSTANCE_NAME or 'default')")
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(watchCmd)
}

// resolveWatchTarget applies environment fallbacks to the watch flags.
func resolveWatchTarget(redisURL, instance string) (string, string, error) {
	if redisURL == "" {
		redisURL = os.Getenv(config.EnvRedisURL)
	}
	if redisURL == "" {
		return "", "", fmt.Errorf("no Redis URL given")
	}

	if instance == "" {
		instance = os.Getenv(config.EnvInstanceName)
	}
	if instance == "" {
		instance = config.DefaultInstance
	}
	if err := config.ValidateInstanceName(instance); err != nil {
		return "", "", err
	}

	return redisURL, instance, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	var outputFormat feed.OutputFormat
	switch watchOutputFormat {
	case "default":
		outputFormat = feed.OutputFormatDefault
	case "json":
		outputFormat = feed.OutputFormatJSON
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	redisURL, instance, err := resolveWatchTarget(watchRedisURL, watchInstanceName)
	if err != nil {
		return printer.Error(
			"cannot watch board feed",
			err.Error(),
			[]string{
				"Pass the Redis URL:\n  corkboard watch --redis-url redis://localhost:6379",
				"Or export it:\n  export REDIS_URL=redis://localhost:6379",
			},
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	feedClient, err := feed.Dial(redisURL, instance)
	if err != nil {
		return fmt.Errorf("failed to create feed client: %w", err)
	}
	defer feedClient.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := feedClient.Ping(pingCtx); err != nil {
		return printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", redisURL),
			[][2]string{{"Instance", instance}, {"Error", err.Error()}},
			[]string{"Check that Redis is running and that the board server uses the same URL"},
		)
	}

	sub, err := feedClient.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", feed.EventsChannel(instance), err)
	}
	defer sub.Close()

	if outputFormat == feed.OutputFormatDefault {
		printer.Step("Watching %s (Ctrl+C to stop)\n", feed.EventsChannel(instance))
	}

	return feed.StreamEvents(ctx, sub, outputFormat, os.Stdout)
}

package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dyluth/corkboard/internal/config"
	"github.com/dyluth/corkboard/internal/feed"
	"github.com/dyluth/corkboard/internal/logging"
	"github.com/dyluth/corkboard/internal/metrics"
	"github.com/dyluth/corkboard/internal/printer"
	"github.com/dyluth/corkboard/internal/server"
	"github.com/dyluth/corkboard/pkg/board"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// publisherBuffer is the number of feed events queued before new ones are dropped
const publisherBuffer = 256

// serveOptions holds the serve command's flag values
type serveOptions struct {
	configPath string
	listen     string
	width      int
	height     int
	noteWidth  int
	noteHeight int
	colours    []string
	healthAddr string
	redisURL   string
	instance   string
	logLevel   string
	logFormat  string
}

var serveOpts = &serveOptions{}

var serveCmd = &cobra.Command{
	Use:   "serve [PORT BOARD_WIDTH BOARD_HEIGHT NOTE_WIDTH NOTE_HEIGHT COLOUR...]",
	Short: "Run the bulletin board server",
	Long: `Run the bulletin board server.

The board can be described by positional arguments, by a YAML config file,
or by flags. Later sources win: config file, then REDIS_URL and
CORKBOARD_INSTANCE_NAME, then positional arguments, then explicit flags.

Examples:
  # Positional form
  corkboard serve 4554 200 100 20 10 red white green yellow

  # From a config file with the Redis event feed enabled
  corkboard serve --config corkboard.yml --redis-url redis://localhost:6379

  # Flags only, with health and metrics on :8080
  corkboard serve --listen :7000 --board-width 50 --board-height 50 \
    --note-width 5 --note-height 5 --colours red,blue --health-addr :8080`,
	RunE: runServe,
}

func init() {
	serveOpts.bind(serveCmd.Flags())
	rootCmd.AddCommand(serveCmd)
}

func (o *serveOptions) bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.configPath, "config", "c", "", "Path to corkboard.yml")
	fs.StringVar(&o.listen, "listen", config.DefaultListen, "TCP address for board clients")
	fs.IntVar(&o.width, "board-width", 0, "Board width")
	fs.IntVar(&o.height, "board-height", 0, "Board height")
	fs.IntVar(&o.noteWidth, "note-width", 0, "Note width")
	fs.IntVar(&o.noteHeight, "note-height", 0, "Note height")
	fs.StringSliceVar(&o.colours, "colours", nil, "Accepted note colours (comma separated)")
	fs.StringVar(&o.healthAddr, "health-addr", "", "HTTP address for /healthz and /metrics (empty disables)")
	fs.StringVar(&o.redisURL, "redis-url", "", "Redis URL for the event feed (empty disables)")
	fs.StringVar(&o.instance, "instance", "", "Instance name used in the feed channel")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&o.logFormat, "log-format", "", "Log format (text or json)")
}

// buildConfig resolves the server configuration from the config file,
// environment, positional arguments and changed flags, in that order.
func (o *serveOptions) buildConfig(fs *pflag.FlagSet, args []string) (*config.ServerConfig, error) {
	var cfg *config.ServerConfig
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
		cfg.ApplyEnv()
	}

	if len(args) > 0 {
		if err := applyPositional(cfg, args); err != nil {
			return nil, err
		}
	}

	if fs.Changed("listen") {
		cfg.Listen = o.listen
	}
	if fs.Changed("board-width") {
		cfg.Board.Width = o.width
	}
	if fs.Changed("board-height") {
		cfg.Board.Height = o.height
	}
	if fs.Changed("note-width") {
		cfg.Board.NoteWidth = o.noteWidth
	}
	if fs.Changed("note-height") {
		cfg.Board.NoteHeight = o.noteHeight
	}
	if fs.Changed("colours") {
		cfg.Board.Colours = o.colours
	}
	if fs.Changed("health-addr") {
		cfg.Health.Addr = o.healthAddr
	}
	if fs.Changed("redis-url") {
		cfg.Feed.RedisURL = o.redisURL
	}
	if fs.Changed("instance") {
		cfg.Feed.Instance = o.instance
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if fs.Changed("log-format") {
		cfg.Log.Format = o.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyPositional reads "PORT BOARD_WIDTH BOARD_HEIGHT NOTE_WIDTH NOTE_HEIGHT COLOUR..."
func applyPositional(cfg *config.ServerConfig, args []string) error {
	if len(args) < 6 {
		return fmt.Errorf("expected PORT BOARD_WIDTH BOARD_HEIGHT NOTE_WIDTH NOTE_HEIGHT and at least one COLOUR, got %d arguments", len(args))
	}

	port, err := strconv.Atoi(args[0])
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port: %s", args[0])
	}

	names := []string{"board width", "board height", "note width", "note height"}
	dims := make([]int, len(names))
	for i, name := range names {
		v, err := strconv.Atoi(args[i+1])
		if err != nil {
			return fmt.Errorf("invalid %s: %s", name, args[i+1])
		}
		dims[i] = v
	}

	cfg.Listen = ":" + strconv.Itoa(port)
	cfg.Board.Width, cfg.Board.Height = dims[0], dims[1]
	cfg.Board.NoteWidth, cfg.Board.NoteHeight = dims[2], dims[3]
	cfg.Board.Colours = append([]string(nil), args[5:]...)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := serveOpts.buildConfig(cmd.Flags(), args)
	if err != nil {
		return printer.Error(
			"invalid server configuration",
			err.Error(),
			[]string{
				"Describe the board positionally:\n  corkboard serve 7000 100 100 10 10 red blue",
				"Or point at a config file:\n  corkboard serve --config corkboard.yml",
			},
		)
	}

	if err := logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	log := logging.Component("serve")

	b, err := board.New(cfg.Board.ToBoard())
	if err != nil {
		return printer.Error("invalid board", err.Error(), nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(b)
	opts := []server.Option{server.WithMetrics(m)}

	var pinger server.Pinger
	if cfg.Feed.RedisURL != "" {
		feedClient, err := feed.Dial(cfg.Feed.RedisURL, cfg.Feed.Instance)
		if err != nil {
			return printer.ErrorWithContext(
				"invalid Redis URL",
				err.Error(),
				[][2]string{{"Redis URL", cfg.Feed.RedisURL}},
				[]string{"Use the form redis://host:port/db"},
			)
		}
		defer feedClient.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := feedClient.Ping(pingCtx); err != nil {
			log.WithError(err).Warn("Redis not reachable at startup, events will be dropped until it recovers")
		}
		cancel()

		publisher := feed.NewPublisher(feedClient, publisherBuffer)
		defer publisher.Close()

		opts = append(opts, server.WithEvents(publisher))
		pinger = feedClient
	}

	srv := server.New(b, opts...)

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return printer.ErrorWithContext(
			"failed to start server",
			err.Error(),
			[][2]string{{"Listen address", cfg.Listen}},
			[]string{"Choose a free port:\n  corkboard serve --listen :7001 ..."},
		)
	}

	if cfg.Health.Addr != "" {
		health := server.NewHealthServer(b, srv, pinger, m)
		addr, err := health.Start(cfg.Health.Addr)
		if err != nil {
			ln.Close()
			return printer.Error("failed to start health server", err.Error(), nil)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			health.Shutdown(shutdownCtx)
		}()
		log.WithField("addr", addr.String()).Info("Health server listening")
	}

	log.WithFields(logrus.Fields{
		"listen":   ln.Addr().String(),
		"board":    fmt.Sprintf("%dx%d", b.Width(), b.Height()),
		"note":     fmt.Sprintf("%dx%d", b.NoteWidth(), b.NoteHeight()),
		"colours":  strings.Join(b.Colours(), ","),
		"feed":     feedState(cfg),
		"instance": cfg.Feed.Instance,
	}).Info("Corkboard server started")

	if err := srv.Serve(ctx, ln); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info("Shutdown complete")
	return nil
}

func feedState(cfg *config.ServerConfig) string {
	if cfg.Feed.RedisURL == "" {
		return server.FeedDisabled
	}
	return "enabled"
}

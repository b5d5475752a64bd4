// Command amqp-probe drives a broker into a write or read timeout and reports
// whether the client surfaced it.
//
// The broker has to be throttled first, for example with
//
//	rabbitmqctl set_vm_memory_high_watermark 0
//
// and restored afterwards. Exit status is 0 when the timeout was observed.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/israelio/rabbit-wire/rabbitmq"
)

const (
	exitObserved = 0
	exitMissed   = 1
	exitUsage    = 2
)

type options struct {
	configPath  string
	mode        string
	queue       string
	count       int
	metricsAddr string
	log         logConfig
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("amqp-probe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "TOML client config (uri, timeouts, ...)")
	fs.StringVar(&o.mode, "mode", "write", "probe to run: write or read")
	fs.StringVar(&o.queue, "queue", "", "queue to publish to (default: generated)")
	fs.IntVar(&o.count, "count", 100000, "publishes attempted before giving up in write mode")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while probing")
	fs.StringVar(&o.log.Level, "log-level", "info", "debug, info, warn or error")
	fs.StringVar(&o.log.Format, "log-format", "console", "console or json")
	fs.StringVar(&o.log.File, "log-file", "", "also log to this file, rotated")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	if o.mode != "write" && o.mode != "read" {
		return o, fmt.Errorf("unknown mode %q", o.mode)
	}
	if o.count <= 0 {
		return o, fmt.Errorf("count must be positive, got %d", o.count)
	}
	if o.queue == "" {
		o.queue = "amqp-probe-" + uuid.NewString()
	}
	return o, nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	o, err := parseFlags(args, os.Stderr)
	if err != nil {
		if err != flag.ErrHelp {
			fmt.Fprintln(os.Stderr, "amqp-probe:", err)
		}
		return exitUsage
	}

	logger, err := newLogger(o.log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "amqp-probe: logger:", err)
		return exitUsage
	}
	defer logger.Sync()

	metrics, err := newProbeMetrics(o.metricsAddr, logger)
	if err == nil {
		err = metrics.serve()
	}
	if err != nil {
		logger.Error("metrics", zap.Error(err))
		return exitUsage
	}
	defer metrics.shutdown()

	factoryOpts := []rabbitmq.FactoryOption{
		rabbitmq.WithLogger(logger),
		rabbitmq.WithMetrics(metrics.collector),
		rabbitmq.WithBlockedHandler(blockedLogger{logger}),
	}

	var factory *rabbitmq.ConnectionFactory
	if o.configPath != "" {
		factory, err = rabbitmq.LoadConfig(o.configPath, factoryOpts...)
	} else {
		factory = rabbitmq.NewConnectionFactory(factoryOpts...)
		err = factory.Validate()
	}
	if err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := &probe{factory: factory, queue: o.queue, logger: logger}
	observed, err := p.run(ctx, o.mode, o.count)

	logger.Info("probe finished",
		zap.String("mode", o.mode),
		zap.Bool("timeout_observed", observed),
		zap.Int64("published", metrics.stats.GetMessagesPublished()),
		zap.Int64("timeouts", metrics.stats.GetTotalTimeouts()),
		zap.Int64("frames_sent", metrics.stats.GetFramesSent()),
		zap.Error(err))

	if observed {
		return exitObserved
	}
	return exitMissed
}

type blockedLogger struct {
	logger *zap.Logger
}

func (b blockedLogger) OnBlocked(_ *rabbitmq.Connection, reason string) {
	b.logger.Warn("broker blocked publishers", zap.String("reason", reason))
}

func (b blockedLogger) OnUnblocked(*rabbitmq.Connection) {
	b.logger.Info("broker unblocked publishers")
}

package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/rdmalab/pingpong/internal/buffer"
	"github.com/rdmalab/pingpong/internal/config"
	"github.com/rdmalab/pingpong/internal/rdma"
	"github.com/rdmalab/pingpong/internal/report"
	"github.com/rdmalab/pingpong/internal/transfer"
)

// Exit codes, one per failure class.
const (
	exitOK            = 0
	exitBadArguments  = 1
	exitBufferAlloc   = 2
	exitDeviceMapping = 3
	exitSetupFailure  = 4
	exitTransfer      = 5
)

func main() {
	os.Exit(run())
}

// run is split from main so deferred resource releases execute before
// the process exits, on every path.
func run() int {
	flagSet := pflag.NewFlagSet("pingpong", pflag.ExitOnError)
	config.SetupFlags(flagSet)

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return exitBadArguments
	}

	version, _ := flagSet.GetBool("version")
	if version {
		fmt.Println("pingpong v0.1.0")
		return exitOK
	}

	createConfig, _ := flagSet.GetBool("create-config")
	if createConfig {
		configOutput, _ := flagSet.GetString("config-output")
		if err := config.WriteDefaultConfig(configOutput); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating default config: %v\n", err)
			return exitBadArguments
		}
		fmt.Printf("Created default configuration at %s\n", configOutput)
		return exitOK
	}

	cfg, err := config.Load(flagSet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return exitBadArguments
	}

	setupLogging(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return exitBadArguments
	}

	// Transfer buffer: an anonymous mapping we own, or a borrowed
	// device mapping in direct-buffer mode.
	var buf *buffer.Buffer
	if cfg.DirectBuffer {
		buf, err = buffer.MapDevice(cfg.DevicePath, cfg.BufferSize)
		if err != nil {
			log.Error().Err(err).Str("path", cfg.DevicePath).Msg("Failed to map device buffer")
			return exitDeviceMapping
		}
	} else {
		buf, err = buffer.Alloc(cfg.BufferSize)
		if err != nil {
			log.Error().Err(err).Int("size", cfg.BufferSize).Msg("Failed to allocate transfer buffer")
			return exitBufferAlloc
		}
	}
	defer buf.Release()

	var mirror *buffer.Buffer
	if cfg.MirrorCopy {
		mirror, err = buffer.MapDevice(cfg.DevicePath, cfg.BufferSize)
		if err != nil {
			log.Error().Err(err).Str("path", cfg.DevicePath).Msg("Failed to map mirror region")
			return exitDeviceMapping
		}
		defer mirror.Release()
	}

	var conn *rdma.Conn
	var role transfer.Role
	if cfg.Initiator() {
		role = transfer.Initiator
		conn, err = rdma.Dial(cfg.PeerAddr, cfg.Port, buf)
	} else {
		role = transfer.Responder
		conn, err = rdma.Listen(cfg.Port, buf)
	}
	if err != nil {
		log.Error().Err(err).Msg("Connection setup failed")
		return exitSetupFailure
	}
	defer conn.Close()

	opts := transfer.Options{
		PatternFill: cfg.PatternFill,
		BusyPoll:    cfg.BusyPoll,
	}
	if mirror != nil {
		opts.Mirror = mirror.Bytes()
	}

	loop := transfer.NewLoop(conn, role, cfg.Rounds, opts)
	if err := loop.Run(); err != nil {
		log.Error().Err(err).Msg("Transfer loop failed")
		return exitTransfer
	}

	sum, err := loop.Summary()
	if err != nil {
		log.Error().Err(err).Msg("No results to report")
		return exitTransfer
	}
	report.TransferRate(os.Stdout, sum.Elapsed, sum.Bytes)
	report.Latency(os.Stdout, sum.MeanOneWay)
	return exitOK
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// boxd - behavior box device controller
//
// boxd runs on the box's Raspberry Pi and drives the hardware (levers,
// nose port, water valve, displays) through experiment timelines
// uploaded from a control panel over WebSocket.
//
// Components:
//   - pkg/hw, pkg/display: GPIO and SSD1306 access with simulated fallbacks
//   - pkg/trial, pkg/runner: trial variants and the 60Hz session loop
//   - pkg/api: the control panel WebSocket protocol
//   - pkg/store: persisted run documents
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nyxlab/boxd/pkg/api"
	"github.com/nyxlab/boxd/pkg/config"
	"github.com/nyxlab/boxd/pkg/console"
	"github.com/nyxlab/boxd/pkg/display"
	"github.com/nyxlab/boxd/pkg/errors"
	"github.com/nyxlab/boxd/pkg/hw"
	"github.com/nyxlab/boxd/pkg/logging"
	"github.com/nyxlab/boxd/pkg/random"
	"github.com/nyxlab/boxd/pkg/runner"
	"github.com/nyxlab/boxd/pkg/store"
)

const version = "1.1.1"

var (
	flagConfig   string
	flagListen   string
	flagDataDir  string
	flagLogLevel string
	flagSeed     int64
)

func main() {
	root := &cobra.Command{
		Use:   "boxd",
		Short: "Behavior box device controller",
		Long: "boxd drives a behavior box: levers, nose port, water valve, and\n" +
			"cue displays. Control panels connect over WebSocket to upload and\n" +
			"run experiment timelines.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file path (default: boxd.yaml)")
	root.PersistentFlags().StringVar(&flagListen, "listen", "", "listen address override")
	root.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory override")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level override (debug, info, warn, error)")
	root.PersistentFlags().Int64Var(&flagSeed, "seed", 0, "random seed override (0 = time-seeded)")

	root.AddCommand(runCmd(), simulateCmd(), exportCmd(), configCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		errors.Display(err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the device daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevice(cmd, false)
		},
	}
}

func simulateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simulate",
		Short: "Start the daemon with simulated hardware and the input console",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevice(cmd, true)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the device version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("boxd %s\n", version)
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := flagConfig
			if path == "" {
				path = config.DefaultConfigPath()
			}
			if err := config.InitConfig(path); err != nil {
				return err
			}
			fmt.Printf("Config initialized at: %s\n", path)
			fmt.Println("Edit this file to configure the device.")
			return nil
		},
	})
	return cmd
}

func exportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <run.json>",
		Short: "Render a saved run document as a CSV event table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := store.Load(args[0])
			if err != nil {
				return err
			}

			w := os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			if err := store.ExportCSV(w, doc, store.DefaultCSVConfig()); err != nil {
				return err
			}
			if output != "" {
				fmt.Printf("Exported %s to %s\n", args[0], output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

// runDevice wires the device together and blocks until shutdown.
// simulate forces simulated hardware and enables the input console.
func runDevice(cmd *cobra.Command, simulate bool) error {
	cfgPath := flagConfig
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath()
	}

	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return err
	}
	applyOverrides(cmd, cfg)

	if simulate {
		cfg.Hardware.Enabled = false
		cfg.Console.Enabled = true
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log := logging.Component("main")

	fmt.Printf("boxd %s - behavior box device controller\n", version)
	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Config: %s\n", cfgPath)
	} else {
		fmt.Println("Config: (using defaults, run 'boxd config init' to create)")
	}
	fmt.Println()

	log.Info().Str("config", cfg.String()).Msg("starting device")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
	}()

	// Hardware, with simulated fallbacks. The concrete sim handles stay
	// around for the console.
	var (
		box        hw.IO
		simBox     *hw.Sim
		screens    display.Displays
		simScreens *display.Sim
	)

	if cfg.Hardware.Enabled {
		gpio, err := hw.NewGPIO()
		if err != nil {
			log.Warn().Err(err).Msg("GPIO unavailable, falling back to simulated inputs")
			simBox = hw.NewSim()
			box = simBox
		} else {
			box = gpio
		}

		oled, err := display.Open(cfg.Hardware.I2CBus)
		if err != nil {
			log.Warn().Err(err).Msg("displays unavailable, falling back to simulated screens")
			simScreens = display.NewSim()
			screens = simScreens
		} else {
			screens = oled
		}
	} else {
		simBox = hw.NewSim()
		box = simBox
		simScreens = display.NewSim()
		screens = simScreens
	}
	defer box.Close()
	defer screens.Close()

	rng := random.New(cfg.Random.Seed)
	log.Debug().Int64("seed", rng.Seed()).Msg("randomness seeded")

	hub := api.NewHub()
	dev := runner.New(runner.Options{
		IO:        box,
		Displays:  screens,
		Random:    rng,
		Publisher: hub,
		DataDir:   cfg.Data.Dir,
		Version:   version,
	})

	srv := api.NewServer(cfg.Server.Listen, cfg.Data.Dir, dev, hub)
	if err := srv.Start(); err != nil {
		return err
	}

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := dev.Run(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("session loop exited")
		}
	}()

	fmt.Printf("Listening on %s, data in %s\n", cfg.Server.Listen, cfg.Data.Dir)
	if box.Simulating() {
		fmt.Println("Hardware: simulated")
	}
	fmt.Println()

	// The console owns the foreground when enabled; quitting it shuts
	// the device down.
	if cfg.Console.Enabled && simBox != nil && errors.IsTTY(os.Stdin) {
		historyFile := cfg.Console.HistoryFile
		if historyFile == "" {
			historyFile = filepath.Join(os.TempDir(), ".boxd_history")
		}

		con, err := console.New(simBox, simScreens, console.Config{HistoryFile: historyFile})
		if err != nil {
			log.Error().Err(err).Msg("console unavailable")
			<-ctx.Done()
		} else if err := con.Run(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("console exited")
		}
		cancel()
	} else {
		if cfg.Console.Enabled && simBox == nil {
			log.Warn().Msg("console requires simulated hardware, skipping")
		}
		<-ctx.Done()
	}

	// Let the loop run its emergency save before the server goes away.
	<-loopDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}

	fmt.Println("Goodbye!")
	return nil
}

// applyOverrides copies set flags over the loaded config.
func applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("listen") {
		cfg.Server.Listen = flagListen
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.Data.Dir = flagDataDir
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = flagLogLevel
	}
	if cmd.Flags().Changed("seed") {
		cfg.Random.Seed = flagSeed
	}
}

// Command jimakun captures live audio and publishes stabilized captions.
//
// Usage:
//
//	jimakun [run]      capture until SIGINT/SIGTERM or the max session duration
//	jimakun devices    list local input devices
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	audioimpl "github.com/foxseedlab/jimakun/external/audio"
	configloader "github.com/foxseedlab/jimakun/external/config"
	"github.com/foxseedlab/jimakun/external/device"
	"github.com/foxseedlab/jimakun/external/discord"
	transcriberimpl "github.com/foxseedlab/jimakun/external/transcriber"
	webhookimpl "github.com/foxseedlab/jimakun/external/webhook"
	"github.com/foxseedlab/jimakun/external/websocket"
	"github.com/foxseedlab/jimakun/internal/caption"
	"github.com/foxseedlab/jimakun/internal/capture"
	"github.com/foxseedlab/jimakun/internal/config"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
)

var (
	envFile     string
	interactive bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Capture audio and publish live captions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
	runCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "read pause/resume/stop commands from stdin")

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "List local audio input devices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listDevices()
		},
	}

	root := &cobra.Command{
		Use:           "jimakun",
		Short:         "Live captioning from a microphone or a Discord voice channel",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCmd.RunE,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	root.Flags().AddFlagSet(runCmd.Flags())
	root.AddCommand(runCmd, devicesCmd)
	return root
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load(envFile)
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	audioimpl.RegisterDI(injector)
	discord.RegisterDI(injector)
	device.RegisterDI(injector)
	transcriberimpl.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	websocket.RegisterDI(injector)
	do.Provide(injector, func(i do.Injector) (caption.Sinks, error) {
		return buildSinks(cfg, i), nil
	})
	caption.RegisterDI(injector)

	return injector
}

func buildSinks(cfg *config.Config, i do.Injector) caption.Sinks {
	sinks := caption.Sinks{do.MustInvoke[*webhookimpl.HTTPSender](i)}
	if cfg.CaptionListenAddr != "" {
		sinks = append(sinks, do.MustInvoke[*websocket.Hub](i))
	}
	if cfg.DiscordCaptionChannelID != "" {
		sinks = append(sinks, do.MustInvoke[*discord.CaptionSink](i))
	}
	return sinks
}

func run(ctx context.Context) error {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "driver", cfg.CaptureDriver)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)
	manager, err := do.Invoke[*caption.Manager](injector)
	if err != nil {
		return fmt.Errorf("resolve caption manager: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.CaptionListenAddr != "" {
		hub := do.MustInvoke[*websocket.Hub](injector)
		go func() {
			if err := hub.ListenAndServe(ctx, cfg.CaptionListenAddr); err != nil {
				slog.Error("caption websocket server failed", "error", err)
			}
		}()
	}

	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("start caption session: %w", err)
	}
	done := manager.Done()
	if interactive {
		go readCommands(ctx, manager)
	}

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		if err := manager.Stop(caption.StopReasonServerClosed); err != nil {
			slog.Error("caption session stopped with errors", "error", err)
		}
	case <-done:
		slog.Info("caption session ended")
	}
	return nil
}

func readCommands(ctx context.Context, manager *caption.Manager) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		switch strings.TrimSpace(strings.ToLower(scanner.Text())) {
		case "p", "pause":
			manager.Pause()
		case "r", "resume":
			manager.Resume()
		case "s", "stop":
			if err := manager.Stop(caption.StopReasonManual); err != nil {
				slog.Error("caption session stopped with errors", "error", err)
			}
			return
		case "":
		default:
			fmt.Fprintln(os.Stderr, "commands: pause, resume, stop")
		}
	}
}

// listDevices needs no configuration; only the device package is wired.
func listDevices() error {
	injector := do.New()
	device.RegisterDI(injector)
	lister := do.MustInvoke[capture.DeviceLister](injector)
	if d, ok := lister.(capture.Driver); ok {
		defer func() {
			_ = d.Terminate()
		}()
	}
	devices, err := lister.Devices()
	if err != nil {
		return fmt.Errorf("list input devices: %w", err)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCHANNELS\tRATE\tDEFAULT")
	for _, d := range devices {
		def := ""
		if d.IsDefault {
			def = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.0f\t%s\n", d.ID, d.Name, d.MaxInputChannels, d.DefaultSampleRate, def)
	}
	return w.Flush()
}

// Command syncplayer is a standalone harness for the time-synchronized
// playback core: it enumerates audio devices and can play a raw PCM file
// through the real Callback-driven Player, without a network transport.
// A real deployment wires Player.Submit from a transport layer that also
// supplies the TimeSync implementation; this harness stands in a trivial
// one where source time and host-monotonic time coincide, to exercise the
// playback core, backend, and calibrator end to end.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/syncplayer/internal/audiobackend/malgobackend"
	"github.com/tphakala/syncplayer/internal/audioformat"
	"github.com/tphakala/syncplayer/internal/calibrator"
	"github.com/tphakala/syncplayer/internal/conf"
	"github.com/tphakala/syncplayer/internal/logging"
	"github.com/tphakala/syncplayer/internal/playback"
)

// identityTimeSync stands in for the real transport-supplied time-sync
// collaborator (spec §3): source time and host-monotonic time coincide.
// This is only valid because this harness both produces the source
// timeline (starting its clock at zero, see feedPCM) and consumes it in
// the same process, with no network peer to skew against; a real
// deployment's transport layer supplies a TimeSync whose two functions
// account for the actual client/server clock offset.
type identityTimeSync struct{}

func (identityTimeSync) ComputeClientTime(sourceUS int64) int64   { return sourceUS }
func (identityTimeSync) ComputeServerTime(monotonicUS int64) int64 { return monotonicUS }

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}
	logging.Init(logging.Config{
		FilePath:   settings.Log.Path,
		MaxSizeMB:  settings.Log.MaxSizeMB,
		MaxBackups: settings.Log.MaxBackups,
		MaxAgeDays: settings.Log.MaxAgeDays,
		Level:      level,
	})

	runID := uuid.New()
	logger := logging.ForComponent("cmd").With("run_id", runID.String())

	root := &cobra.Command{
		Use:   "syncplayer",
		Short: "Time-synchronized audio playback engine",
	}
	root.AddCommand(devicesCommand(logger))
	root.AddCommand(playCommand(logger, settings))
	root.AddCommand(configCommand(settings))

	if err := root.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func devicesCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List playback and capture devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			enum, err := malgobackend.NewEnumerator()
			if err != nil {
				return err
			}
			defer enum.Close()

			playbackDevices, err := enum.EnumeratePlaybackDevices()
			if err != nil {
				return err
			}
			fmt.Println("Playback devices:")
			for _, d := range playbackDevices {
				marker := ""
				if d.IsDefault {
					marker = " (default)"
				}
				fmt.Printf("  %s%s\n", d.Name, marker)
			}

			captureDevices, err := enum.EnumerateCaptureDevices()
			if err != nil {
				return err
			}
			fmt.Println("Capture devices:")
			for _, d := range captureDevices {
				marker := ""
				if d.IsDefault {
					marker = " (default)"
				}
				fmt.Printf("  %s%s\n", d.Name, marker)
			}
			return nil
		},
	}
}

// configCommand prints the fully-resolved configuration (defaults, config
// file, and environment overrides merged by viper) as YAML, so an operator
// can see exactly what syncplayer will run with.
func configCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(settings)
			if err != nil {
				return fmt.Errorf("marshaling effective configuration: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func playCommand(logger *slog.Logger, settings *conf.Settings) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "play [pcm-file]",
		Short: "Play a raw interleaved PCM file (or stdin) through the sync playback core",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format := audioformat.Format{
				SampleRate: settings.Audio.SampleRate,
				Channels:   settings.Audio.Channels,
				BitDepth:   settings.Audio.BitDepth,
			}

			registry := prometheus.NewRegistry()
			metrics, err := playback.NewMetrics(registry)
			if err != nil {
				return fmt.Errorf("registering metrics: %w", err)
			}
			if settings.Metrics.Enabled {
				addr := settings.Metrics.Listen
				if metricsAddr != "" {
					addr = metricsAddr
				}
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
				go func() {
					logger.Info("serving metrics", "addr", addr)
					if err := http.ListenAndServe(addr, mux); err != nil {
						logger.Error("metrics server stopped", "error", err)
					}
				}()
			}

			sync := identityTimeSync{}
			p := playback.New(logger, sync)
			p.SetMetrics(metrics)
			if err := p.SetFormat(format); err != nil {
				return err
			}
			p.SetVolume(settings.Audio.Volume, false)

			backend, err := malgobackend.NewPlaybackBackend(settings.Device.Name, format, 20, p)
			if err != nil {
				return fmt.Errorf("opening playback device: %w", err)
			}
			defer backend.Close()
			p.SetBackend(backend)

			var calib *calibrator.Calibrator
			var captureBackend *malgobackend.CaptureBackend
			if settings.Calibrator.Enabled {
				calib = calibrator.New(logger, sync, format.SampleRate, format.SampleRate)
				captureBackend, err = malgobackend.NewCaptureBackend(settings.Calibrator.CaptureDevice, format.SampleRate, calib)
				if err != nil {
					return fmt.Errorf("opening capture device: %w", err)
				}
				defer captureBackend.Close()
				if err := captureBackend.Start(); err != nil {
					return err
				}
				ctx, cancel := context.WithCancel(cmd.Context())
				defer cancel()
				go calib.Run(ctx)
			}

			src := os.Stdin
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				src = f
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			done := make(chan struct{})

			go feedPCM(logger, p, src, format, done)

			select {
			case <-sigCh:
				logger.Info("interrupted")
			case <-done:
				logger.Info("input exhausted")
			}
			return p.Stop()
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "override the configured metrics listen address")
	return cmd
}

// feedPCM reads chunkDurationMS worth of frames at a time and submits them
// at a steady, real-time pace, assigning each chunk a monotonically
// increasing source timestamp starting at zero.
func feedPCM(logger *slog.Logger, p *playback.Player, src io.Reader, format audioformat.Format, done chan<- struct{}) {
	defer close(done)

	const chunkDurationMS = 20
	frameSize := format.FrameSize()
	chunkFrames := format.SampleRate * chunkDurationMS / 1000
	chunkBytes := chunkFrames * frameSize

	buf := make([]byte, chunkBytes)
	var sourceTS int64
	ticker := time.NewTicker(chunkDurationMS * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		n, err := io.ReadFull(src, buf)
		if n > 0 {
			if submitErr := p.Submit(sourceTS, buf[:n]); submitErr != nil {
				logger.Error("submit failed", "error", submitErr)
			}
			sourceTS += format.BytesToDuration(n)
		}
		if err != nil {
			return
		}
	}
}

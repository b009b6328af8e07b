package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	emotionanalyzer "github.com/menta2k/emotion-analyzer"
	"github.com/menta2k/emotion-analyzer/internal/config"
	"github.com/menta2k/emotion-analyzer/internal/logging"
	"github.com/menta2k/emotion-analyzer/internal/utils"
	"github.com/menta2k/emotion-analyzer/pkg/app"
	"github.com/menta2k/emotion-analyzer/pkg/capture"
	"github.com/menta2k/emotion-analyzer/pkg/emotion"
	"github.com/menta2k/emotion-analyzer/pkg/inference"
	"github.com/menta2k/emotion-analyzer/pkg/vision"
)

var (
	// cfg and logger are set up before any command runs
	cfg    *config.Config
	logger *logrus.Logger

	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:          "emotion-analyzer",
	Short:        "Real-time facial emotion recognition from a webcam",
	Version:      emotionanalyzer.Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
	RunE: runLive,
}

func setup(cmd *cobra.Command) error {
	path := configPath
	if path == "" {
		if def := config.GetConfigPath(); utils.FileExists(def) {
			path = def
		}
	}

	cfg = config.Default()
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	l, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	logger = l

	if path != "" {
		logger.WithField("path", path).Debug("Configuration loaded")
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	logger.WithFields(logrus.Fields{
		"cascade":  cfg.Models.FaceCascade,
		"model":    cfg.Models.EmotionModel,
		"labels":   cfg.Emotion.Labels,
		"webcam":   cfg.Display.WebcamIndex,
		"min_size": fmt.Sprintf("%dx%d", cfg.Detection.MinWidth, cfg.Detection.MinHeight),
	}).Info("Starting emotion analyzer")

	loop, err := app.Initialize(app.Components{
		Detector: func() (app.Detector, error) {
			locator, err := vision.NewFaceLocator(cfg.Models.FaceCascade, cfg.LocatorParams())
			if err != nil {
				return nil, err
			}
			return locator, nil
		},
		Classifier: func() emotion.LoadResult {
			return emotion.Load(cfg.ClassifierConfig(), inference.Open, logger)
		},
		Source: func() (app.FrameSource, error) {
			webcam, err := capture.OpenWebcam(cfg.Display.WebcamIndex)
			if err != nil {
				return nil, err
			}
			return webcam, nil
		},
		Display: func() app.Display {
			return capture.NewWindow(cfg.Display.WindowName)
		},
	}, cfg.LoopOptions(), logger)
	if err != nil {
		return err
	}

	logger.Infof("Press '%s' in the video window to quit", cfg.Display.QuitKey)
	return loop.Run(cmd.Context())
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (yaml, json or toml; default: ~/.config/emotion-analyzer/config.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug|info|warn|error")
}

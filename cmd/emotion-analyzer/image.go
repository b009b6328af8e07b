package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	emotionanalyzer "github.com/menta2k/emotion-analyzer"
	"github.com/menta2k/emotion-analyzer/internal/utils"
)

type imageOptions struct {
	input    string
	outDir   string
	ext      string
	quality  int
	lossless bool
}

var imageOpts imageOptions

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Annotate faces and emotions in still images",
	Long:  "Detects faces in an image, or every image under a directory, and writes annotated copies to the output directory.",
	RunE:  runImage,
}

func runImage(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if flags.Changed("out") {
		cfg.Output.Dir = imageOpts.outDir
	}
	if flags.Changed("ext") {
		cfg.Output.Format = imageOpts.ext
	}
	if flags.Changed("quality") {
		cfg.Output.Quality = imageOpts.quality
	}
	if flags.Changed("lossless") {
		cfg.Output.Lossless = imageOpts.lossless
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid output options")
	}

	files, err := utils.ResolveInputs(imageOpts.input)
	if err != nil {
		return err
	}

	if err := utils.EnsureDir(cfg.Output.Dir); err != nil {
		return err
	}

	ea, err := emotionanalyzer.Load(cfg.Models.FaceCascade, cfg.LocatorParams(), cfg.ClassifierConfig(), logger,
		emotionanalyzer.WithStyle(cfg.RenderStyle()))
	if err != nil {
		return errors.Wrap(err, "failed to initialize analyzer")
	}
	defer ea.Close()

	out := emotionanalyzer.OutputOptions{
		Format:   cfg.Output.Format,
		Quality:  cfg.Output.Quality,
		Lossless: cfg.Output.Lossless,
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Analyzing images"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	failed := 0
	for _, path := range files {
		if cmd.Context().Err() != nil {
			logger.Info("Interrupted, stopping")
			break
		}

		outPath := utils.GenerateOutputFilename(path, cfg.Output.Dir, cfg.Output.Prefix, cfg.Output.Suffix, cfg.Output.Format)
		result, err := ea.ProcessImageFile(path, outPath, out)
		if err != nil {
			logger.WithError(err).WithField("path", path).Error("Failed to process image")
			failed++
		} else {
			logResult(path, outPath, result)
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	if failed > 0 {
		return errors.Errorf("%d of %d images failed", failed, len(files))
	}
	return nil
}

func logResult(path, outPath string, result emotionanalyzer.AnalysisResult) {
	entry := logger.WithFields(logrus.Fields{"path": path, "output": outPath})
	if info, err := os.Stat(outPath); err == nil {
		entry = entry.WithField("size", utils.FormatFileSize(info.Size()))
	}
	entry.WithField("faces", len(result.Faces)).Info("Image annotated")

	for _, face := range result.Faces {
		entry.WithFields(logrus.Fields{
			"box":        face.Box,
			"label":      face.Prediction.Label,
			"confidence": face.Prediction.Confidence,
			"status":     face.Prediction.Status.String(),
		}).Debug("Face")
	}
}

func init() {
	imageCmd.Flags().StringVarP(&imageOpts.input, "input", "i", "", "input image or directory (jpg/png/webp)")
	imageCmd.Flags().StringVarP(&imageOpts.outDir, "out", "o", "./output", "output directory")
	imageCmd.Flags().StringVar(&imageOpts.ext, "ext", "jpg", "output format: jpg|png|webp")
	imageCmd.Flags().IntVar(&imageOpts.quality, "quality", 85, "JPEG/WebP output quality (1-100)")
	imageCmd.Flags().BoolVar(&imageOpts.lossless, "lossless", false, "WebP lossless mode")
	_ = imageCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(imageCmd)
}

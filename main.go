// Command go-detect runs sliced object detection over images and writes the
// merged annotations in COCO, YOLO or CSV form, optionally alongside
// annotated preview images.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"github.com/modelship/go-detect/export"
	"github.com/modelship/go-detect/images"
	"github.com/modelship/go-detect/onnx"
	"github.com/modelship/go-detect/pipeline"
	"github.com/modelship/go-detect/preview"
)

const (
	// DefaultOutputDir receives exports and previews when -out is not set.
	DefaultOutputDir = "detections"
	// DefaultFormat is the export format when -format is not set.
	DefaultFormat = "coco"
)

type cliOptions struct {
	imagePath   string
	dirPath     string
	configPath  string
	modelPath   string
	libraryPath string
	outputDir   string
	format      string
	preview     bool
	verbose     bool
}

func parseFlags() cliOptions {
	var opts cliOptions
	flag.StringVar(&opts.imagePath, "image", "", "single image file to process")
	flag.StringVar(&opts.dirPath, "dir", "", "directory of images to process")
	flag.StringVar(&opts.configPath, "config", "", "pipeline config YAML (defaults apply when empty)")
	flag.StringVar(&opts.modelPath, "model", "", "ONNX model file (required)")
	flag.StringVar(&opts.libraryPath, "lib", "", "onnxruntime shared library override")
	flag.StringVar(&opts.outputDir, "out", DefaultOutputDir, "output directory")
	flag.StringVar(&opts.format, "format", DefaultFormat, "export format: coco, yolo or csv")
	flag.BoolVar(&opts.preview, "preview", false, "write annotated preview images")
	flag.BoolVar(&opts.verbose, "verbose", false, "enable debug logging")
	flag.Parse()
	return opts
}

func main() {
	opts := parseFlags()

	level := zerolog.InfoLevel
	if opts.verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	if err := run(log, opts); err != nil {
		log.Fatal().Err(err).Msg("run failed")
	}
}

func run(log zerolog.Logger, opts cliOptions) error {
	if opts.modelPath == "" {
		return fmt.Errorf("-model is required")
	}
	if (opts.imagePath == "") == (opts.dirPath == "") {
		return fmt.Errorf("exactly one of -image or -dir is required")
	}
	switch opts.format {
	case "coco", "yolo", "csv":
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}

	cfg := pipeline.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = pipeline.LoadConfig(opts.configPath); err != nil {
			return err
		}
	}

	detector, err := onnx.NewDetector(onnx.Config{
		ModelPath:    opts.modelPath,
		LibraryPath:  opts.libraryPath,
		NMSThreshold: cfg.NMSThreshold,
	})
	if err != nil {
		return err
	}
	defer detector.Close()

	pipe, err := pipeline.New(detector, cfg, pipeline.WithLogger(log))
	if err != nil {
		return err
	}

	files, err := collectInputs(opts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(opts.outputDir, 0o755); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var results []export.ImageAnnotations
	for _, file := range files {
		result, err := pipe.Run(ctx, file.Image)
		if err != nil {
			return err
		}
		log.Info().
			Str("image", file.Path).
			Int("annotations", len(result.Annotations)).
			Int("failed_tiles", len(result.Failures)).
			Msg("image processed")

		results = append(results, export.ImageAnnotations{
			FileName:    filepath.Base(file.Path),
			Width:       file.Image.Width,
			Height:      file.Image.Height,
			Annotations: result.Annotations,
		})

		if opts.preview {
			if err := writePreview(opts.outputDir, file, result); err != nil {
				return err
			}
		}
	}

	return writeExports(opts, results)
}

func collectInputs(opts cliOptions) ([]images.ImageFile, error) {
	if opts.dirPath != "" {
		files, err := images.LoadDirectory(opts.dirPath)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no images found in %s", opts.dirPath)
		}
		return files, nil
	}

	img, err := images.LoadImage(opts.imagePath)
	if err != nil {
		return nil, err
	}
	return []images.ImageFile{{Path: opts.imagePath, Image: img}}, nil
}

func writePreview(outputDir string, file images.ImageFile, result *pipeline.Result) error {
	annotated, err := preview.Render(file.Image.Pixels, result.Annotations, preview.DefaultOptions())
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(file.Path), filepath.Ext(file.Path))
	return imaging.Save(annotated, filepath.Join(outputDir, name+"_preview.png"))
}

// writeExports emits one document per format. COCO produces a single dataset
// file, YOLO one label file per image and CSV one combined table.
func writeExports(opts cliOptions, results []export.ImageAnnotations) error {
	switch opts.format {
	case "coco":
		f, err := os.Create(filepath.Join(opts.outputDir, "annotations.json"))
		if err != nil {
			return err
		}
		defer f.Close()
		return export.WriteCOCO(f, export.NewCOCODataset(results))

	case "yolo":
		for _, res := range results {
			name := strings.TrimSuffix(res.FileName, filepath.Ext(res.FileName))
			f, err := os.Create(filepath.Join(opts.outputDir, name+".txt"))
			if err != nil {
				return err
			}
			if err := export.WriteYOLO(f, res.Annotations, res.Width, res.Height); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		}
		return nil

	default: // csv
		f, err := os.Create(filepath.Join(opts.outputDir, "annotations.csv"))
		if err != nil {
			return err
		}
		defer f.Close()
		return export.WriteCSVDataset(f, results)
	}
}

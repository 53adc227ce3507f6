// Command seatplan runs the seating allocation for one input workbook and
// writes the export archive to disk, without the database or HTTP layer.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-seating-api/internal/models"
	"github.com/noah-isme/exam-seating-api/internal/service"
	"github.com/noah-isme/exam-seating-api/pkg/config"
	"github.com/noah-isme/exam-seating-api/pkg/logger"
	"github.com/noah-isme/exam-seating-api/pkg/workbook"
)

type options struct {
	input        string
	out          string
	buffer       int
	density      string
	blocks       []string
	numericBlock string
	format       string
	summary      bool
	logLevel     string
}

func parseOptions(args []string, defaults config.SeatingConfig) (options, error) {
	opts := options{}
	fs := pflag.NewFlagSet("seatplan", pflag.ContinueOnError)
	fs.StringVarP(&opts.input, "input", "i", "ip.xlsx", "input workbook with the four in_* sheets")
	fs.StringVarP(&opts.out, "out", "o", "exam_seating.zip", "archive to write")
	fs.IntVarP(&opts.buffer, "buffer", "b", defaults.DefaultBufferSeats, "seats held back in every room")
	fs.StringVarP(&opts.density, "density", "d", defaults.DefaultDensity, "sparse or dense")
	fs.StringSliceVar(&opts.blocks, "blocks", defaults.PreferredBlocks, "block preference order")
	fs.StringVar(&opts.numericBlock, "numeric-block", defaults.NumericBlock, "block whose rooms are plain numbers")
	fs.StringVar(&opts.format, "format", string(models.ExportFormatXLSX), "extra archive format: xlsx, csv or pdf")
	fs.BoolVar(&opts.summary, "summary", true, "include overall_seating and seats_left workbooks")
	fs.StringVar(&opts.logLevel, "log-level", "info", "log level")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.buffer < 0 {
		return opts, fmt.Errorf("--buffer must not be negative")
	}
	opts.format = strings.ToLower(strings.TrimSpace(opts.format))
	switch models.ExportFormat(opts.format) {
	case models.ExportFormatXLSX, models.ExportFormatCSV, models.ExportFormatPDF:
	default:
		return opts, fmt.Errorf("unknown --format %q", opts.format)
	}
	return opts, nil
}

func main() {
	os.Exit(realMain(os.Args[1:]))
}

// realMain returns the process exit code so deferred calls run before exit.
func realMain(args []string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 2
	}
	opts, err := parseOptions(args, cfg.Seating)
	if err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logr, err := logger.NewCLI(opts.logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		return 2
	}
	defer logr.Sync() //nolint:errcheck

	stats, err := run(opts, logr)
	if err != nil {
		logr.Error("seating run failed", zap.Error(err))
		return 1
	}
	logr.Info("archive written",
		zap.String("out", opts.out),
		zap.Int("students_seated", stats.StudentsSeated),
		zap.Int("students_unseated", stats.StudentsUnseated),
	)
	if stats.StudentsUnseated > 0 {
		return 3
	}
	return 0
}

func run(opts options, logr *zap.Logger) (models.SeatingStats, error) {
	density, err := models.ParseDensityMode(opts.density)
	if err != nil {
		return models.SeatingStats{}, err
	}

	f, err := os.Open(opts.input)
	if err != nil {
		return models.SeatingStats{}, err
	}
	defer f.Close()
	tables, err := workbook.ReadWorkbook(f)
	if err != nil {
		return models.SeatingStats{}, fmt.Errorf("read %s: %w", opts.input, err)
	}

	loaded, err := service.NewSeatingLoader(opts.numericBlock).Load(tables, models.CapacityPolicy{
		BufferSeats: opts.buffer,
		Density:     density,
	})
	if err != nil {
		return models.SeatingStats{}, err
	}
	for _, w := range loaded.Warnings {
		logr.Warn("input", zap.String("warning", w))
	}

	scheduler := service.NewSessionScheduler(service.NewSeatAllocator(opts.blocks), logr)
	result := scheduler.Run(loaded.Input)
	for _, o := range result.Overflow {
		logr.Warn("course not fully seated",
			zap.String("date", o.Date),
			zap.String("course", o.CourseCode),
			zap.Int("unseated", o.UnseatedCount),
		)
	}

	archive, files, err := service.NewSeatingArchiver().Build(service.SeatingBundle{
		Assignments: result.Assignments,
		Overflow:    result.Overflow,
		RollNames:   loaded.RollNames,
	}, models.ExportJobParams{
		Format:  models.ExportFormat(opts.format),
		Summary: opts.summary,
	})
	if err != nil {
		return result.Stats, err
	}
	if err := os.WriteFile(opts.out, archive, 0o644); err != nil {
		return result.Stats, err
	}
	logr.Debug("archive contents", zap.Int("files", files), zap.Int("bytes", len(archive)))
	return result.Stats, nil
}

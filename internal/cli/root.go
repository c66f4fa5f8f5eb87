package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/maauso/media-chunker/internal/bootstrap"
	"github.com/maauso/media-chunker/internal/config"
	"github.com/maauso/media-chunker/internal/storage"
)

// ErrInvalidFormat is returned for an unknown --format value.
var ErrInvalidFormat = errors.New("format must be json or table")

// processorFactory builds the Processor for a run.
type processorFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger, upload bool) (*Processor, error)

// NewRootCommand returns the chunkaudio command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(defaultProcessor)
}

func newRootCommand(newProcessor processorFactory) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "chunkaudio",
		Short:         "Split audio into silence-aligned chunks",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.AddCommand(newProcessCommand(newProcessor))
	return rootCmd
}

func newProcessCommand(newProcessor processorFactory) *cobra.Command {
	var (
		sourceID     string
		wavPath      string
		chunkSeconds int
		noUpload     bool
		outputDir    string
		format       string
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Normalize, chunk, and optionally upload a local audio file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "table" {
				return fmt.Errorf("%w: %q", ErrInvalidFormat, format)
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cmd.Flags().Changed("chunk-seconds") {
				chunkSeconds = cfg.ChunkSeconds
			}
			if chunkSeconds < config.MinChunkSeconds || chunkSeconds > config.MaxChunkSeconds {
				return fmt.Errorf("%w: got %d", config.ErrInvalidChunkSeconds, chunkSeconds)
			}
			if _, err := os.Stat(wavPath); err != nil {
				return fmt.Errorf("%w: %s", ErrInputNotFound, wavPath)
			}

			logger := cfg.NewLoggerTo(os.Stderr)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			proc, err := newProcessor(ctx, cfg, logger, !noUpload)
			if err != nil {
				return err
			}

			manifest, _, err := proc.Process(ctx, ProcessOptions{
				SourceID:     sourceID,
				InputPath:    wavPath,
				ChunkSeconds: chunkSeconds,
				Upload:       !noUpload,
				WorkDir:      bootstrap.ManualWorkDir(cfg, sourceID),
				OutputDir:    outputDir,
			})
			if err != nil {
				return err
			}

			if format == "table" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), renderManifestTable(manifest))
				return err
			}
			return writeJSON(cmd.OutOrStdout(), manifest)
		},
	}

	cmd.Flags().StringVar(&sourceID, "source-id", "", "Source ID used for storage keys and the manifest name")
	cmd.Flags().StringVar(&wavPath, "wav", "", "Path to the local audio file")
	cmd.Flags().IntVar(&chunkSeconds, "chunk-seconds", 0, "Target chunk length in seconds (default CHUNK_SECONDS)")
	cmd.Flags().BoolVar(&noUpload, "no-upload", false, "Keep chunks on disk instead of uploading them")
	cmd.Flags().StringVar(&outputDir, "output-dir", "./data/output", "Directory for <source_id>_chunks.json")
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or table")
	_ = cmd.MarkFlagRequired("source-id")
	_ = cmd.MarkFlagRequired("wav")

	return cmd
}

// defaultProcessor wires the real ffmpeg toolchain and, when uploading, S3.
func defaultProcessor(ctx context.Context, cfg *config.Config, logger *slog.Logger, upload bool) (*Processor, error) {
	tools := bootstrap.NewToolchain(cfg, logger)

	var store storage.Storage
	if upload {
		s3Store, err := bootstrap.NewS3Storage(ctx, cfg, logger)
		if errors.Is(err, storage.ErrS3NotConfigured) {
			return nil, ErrUploadNotConfigured
		}
		if err != nil {
			return nil, err
		}
		store = s3Store
	}

	return NewProcessor(tools.Prober, tools.Segmenter, store, cfg.S3KeyPrefix, logger), nil
}

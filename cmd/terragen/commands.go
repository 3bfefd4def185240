package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"gopkg.in/src-d/go-billy.v4/osfs"

	"github.com/siohaza/terragen/internal/export"
	"github.com/siohaza/terragen/internal/mapmeta"
	"github.com/siohaza/terragen/internal/render"
	"github.com/siohaza/terragen/internal/server"
	"github.com/siohaza/terragen/pkg/config"
	"github.com/siohaza/terragen/pkg/lua"
	"github.com/siohaza/terragen/pkg/terrain"

	"github.com/spf13/cobra"
)

var (
	generateFlags overrides
	outputName    string

	previewFlags overrides
	previewCols  int
	previewCP437 bool

	regenOutput string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate terrain and write it to the output directory",
	RunE:  runGenerate,
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Print a shaded text preview of the terrain",
	RunE:  runPreview,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ENet preview server",
	RunE:  runServe,
}

var presetCmd = &cobra.Command{
	Use:   "preset <script.lua>",
	Short: "Evaluate a Lua preset and print the resulting configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreset,
}

var regenCmd = &cobra.Command{
	Use:   "regen [sidecars...]",
	Short: "Regenerate terrain from TOML sidecar files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRegen,
}

func init() {
	generateFlags.register(generateCmd)
	generateCmd.Flags().StringVarP(&outputName, "name", "n", "", "base name of the written files")

	previewFlags.register(previewCmd)
	previewCmd.Flags().IntVar(&previewCols, "cols", 80, "preview width in characters")
	previewCmd.Flags().BoolVar(&previewCP437, "cp437", false, "emit code page 437 bytes instead of UTF-8")

	regenCmd.Flags().StringVarP(&regenOutput, "output", "o", "", "output directory (defaults to the configured one)")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func progressLogger(logger *slog.Logger) terrain.ProgressFunc {
	return func(p terrain.Params, stage terrain.Stage, done, total int) {
		if done == total {
			logger.Debug("stage complete", "stage", stage, "rows", total, "seed", p.Seed)
		}
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	p, width, height := generateFlags.apply(cmd, cfg)
	name := cfg.Output.Name
	if outputName != "" {
		name = outputName
	}

	ctx, stop := signalContext()
	defer stop()

	pipeline := terrain.NewPipeline(logger)
	pipeline.SetProgress(progressLogger(logger))

	logger.Info("generating terrain", "seed", p.Seed, "basis", p.Basis, "width", width, "height", height)
	model, err := pipeline.Run(ctx, p, width, height)
	if err != nil {
		return fmt.Errorf("failed to generate terrain: %w", err)
	}

	return writeModel(cfg.Output.Dir, name, model, cfg, logger)
}

func writeModel(dir, name string, model *terrain.Model, cfg *config.Config, logger *slog.Logger) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	w := export.NewWriter(osfs.New(dir), cfg.Output.VXLDepth, logger)
	paths, err := w.Write(name, model, cfg.Output.Formats)
	if err != nil {
		return fmt.Errorf("failed to export terrain: %w", err)
	}

	for _, path := range paths {
		fmt.Println(filepath.Join(dir, path))
	}
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	p, width, height := previewFlags.apply(cmd, cfg)

	ctx, stop := signalContext()
	defer stop()

	model, err := terrain.NewPipeline(logger).Run(ctx, p, width, height)
	if err != nil {
		return fmt.Errorf("failed to generate terrain: %w", err)
	}

	if previewCP437 {
		out, err := render.TextCP437(model, previewCols)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	}

	fmt.Print(render.Text(model, previewCols))
	fmt.Printf("min %.2f  max %.2f  sea %.2f  water %d/%d\n",
		model.Min(), model.Max(), model.SeaLevel(), model.WaterCells(), width*height)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	logger.Info("starting terragen preview server", "version", version)
	server.Version = version

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signalContext()
	defer stop()

	logger.Info("server running",
		"address", fmt.Sprintf("0.0.0.0:%d", cfg.Server.Port),
		"max_peers", cfg.Server.MaxPeers,
		"chunk_size", cfg.Server.ChunkSize,
	)

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("failed to run server: %w", err)
	}

	logger.Info("server stopped successfully")
	return nil
}

func runPreset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p, err := lua.LoadPreset(args[0], cfg.Params())
	if err != nil {
		return err
	}

	cfg.SetParams(p)
	cfg.Script.Preset = ""
	return cfg.Encode(os.Stdout)
}

func runRegen(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	dir := cfg.Output.Dir
	if regenOutput != "" {
		dir = regenOutput
	}

	ctx, stop := signalContext()
	defer stop()

	pipeline := terrain.NewPipeline(logger)
	regenerated, skipped := 0, 0

	for _, file := range args {
		name := strings.TrimSuffix(filepath.Base(file), ".toml")
		if err := regenerate(ctx, pipeline, file, dir, cfg, logger); err != nil {
			fmt.Printf("SKIP %s: %v\n", name, err)
			skipped++
			continue
		}
		fmt.Printf("OK   %s\n", name)
		regenerated++
	}

	fmt.Printf("\nregenerated %d, skipped %d\n", regenerated, skipped)
	if skipped > 0 {
		return fmt.Errorf("%d sidecars could not be regenerated", skipped)
	}
	return nil
}

func regenerate(ctx context.Context, pipeline *terrain.Pipeline, file, dir string, cfg *config.Config, logger *slog.Logger) error {
	content, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	meta, err := mapmeta.Parse(content)
	if err != nil {
		return err
	}

	p, err := meta.Params()
	if err != nil {
		return err
	}
	width, height, err := meta.Grid()
	if err != nil {
		return err
	}

	model, err := pipeline.Run(ctx, p, width, height)
	if err != nil {
		return err
	}
	return writeModel(dir, meta.Metadata.Name, model, cfg, logger)
}

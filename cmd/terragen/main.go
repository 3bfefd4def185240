package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/siohaza/terragen/pkg/config"
	"github.com/siohaza/terragen/pkg/lua"
	"github.com/siohaza/terragen/pkg/noise"
	"github.com/siohaza/terragen/pkg/terrain"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/terragen.toml"

var (
	configPath string
	logLevel   string
	version    = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "terragen",
	Short: "Terragen - procedural terrain generator",
	Long: `Terragen builds deterministic fractal-noise terrain, shapes it with
smoothing, flattening and a water level, colours it through elevation bands,
and exports it as PNG, VXL and TOML or streams it to preview clients.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Terragen v%s\n", version)
		fmt.Println("Procedural terrain generator")
		fmt.Println("Built with Go")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(presetCmd)
	rootCmd.AddCommand(regenCmd)
	rootCmd.AddCommand(versionCmd)
}

func parseLevel(s string) slog.Level {
	level := slog.LevelInfo
	switch s {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return level
}

// setupLogger installs the default logger. The returned closer releases the
// log file, if any.
func setupLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	var logWriter io.Writer = os.Stdout
	closer := func() {}

	if cfg.Server.LogToFile {
		logDir := "logs"
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		timestamp := time.Now().Unix()
		logPath := filepath.Join(logDir, fmt.Sprintf("terragen_%d.log", timestamp))

		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		closer = func() { logFile.Close() }

		logWriter = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLevel(logLevel),
	}))
	slog.SetDefault(logger)
	return logger, closer, nil
}

// loadConfig reads the configuration file. A missing file at the default
// path falls back to built-in defaults.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if errors.Is(err, fs.ErrNotExist) && configPath == defaultConfigPath {
		cfg = config.Default()
		err = nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Script.Preset != "" {
		p, err := lua.LoadPreset(cfg.Script.Preset, cfg.Params())
		if err != nil {
			return nil, fmt.Errorf("failed to load preset: %w", err)
		}
		cfg.SetParams(p)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// overrides are generator flags shared by generate and preview.
type overrides struct {
	seed   int64
	basis  string
	width  int
	height int
}

func (o *overrides) register(cmd *cobra.Command) {
	cmd.Flags().Int64VarP(&o.seed, "seed", "s", 0, "noise seed")
	cmd.Flags().StringVarP(&o.basis, "basis", "b", "", "noise basis (simplex, perlin, classic)")
	cmd.Flags().IntVarP(&o.width, "width", "W", 0, "grid width in cells")
	cmd.Flags().IntVarP(&o.height, "height", "H", 0, "grid height in cells")
}

func (o *overrides) apply(cmd *cobra.Command, cfg *config.Config) (terrain.Params, int, int) {
	p := cfg.Params()
	width, height := cfg.Generator.Width, cfg.Generator.HeightCells

	if cmd.Flags().Changed("seed") {
		p.Seed = o.seed
	}
	if cmd.Flags().Changed("basis") {
		p.Basis = noise.Basis(o.basis)
	}
	if cmd.Flags().Changed("width") {
		width = o.width
	}
	if cmd.Flags().Changed("height") {
		height = o.height
	}
	return p, width, height
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	augmentor "github.com/gwlsn/augmentor"
	"github.com/gwlsn/augmentor/internal/api"
	"github.com/gwlsn/augmentor/internal/backend"
	"github.com/gwlsn/augmentor/internal/browse"
	"github.com/gwlsn/augmentor/internal/config"
	"github.com/gwlsn/augmentor/internal/ffmpeg"
	"github.com/gwlsn/augmentor/internal/logger"
	"github.com/gwlsn/augmentor/internal/media"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: augmentor <command> [flags]

Commands:
  serve        Run the web console (default)
  image        Augment one image from the command line
  video        Extract frames from one video from the command line
  init-config  Write a config file with the default settings

Run "augmentor <command> -h" for the flags of a command.
`)
}

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var code int
	switch cmd {
	case "serve":
		code = serve(args)
	case "image":
		code = runCLI(media.KindImage, args)
	case "video":
		code = runCLI(media.KindVideo, args)
	case "init-config":
		code = initConfig(args)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		code = 2
	}
	os.Exit(code)
}

// configPath picks the -config flag, then CONFIG_PATH, then the default.
func configPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return envPath
	}
	return config.DefaultPath
}

// loadDotEnv loads each file that exists. Variables already set in the
// environment win, and earlier files win over later ones.
func loadDotEnv(files ...string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// loadConfig reads .env files, the config file and the environment, then
// sets up logging.
func loadConfig(path string) (*config.Config, error) {
	if err := loadDotEnv(".env", ".env.local"); err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	logger.Setup(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	return cfg, nil
}

func newClient(cfg *config.Config) (*backend.Client, error) {
	return backend.NewClient(backend.Options{BaseURL: cfg.ResolvedBackendURL()})
}

func serve(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgFlag := fs.String("config", "", "Path to config file (default: ./"+config.DefaultPath+")")
	port := fs.Int("port", 0, "Port to listen on (overrides config)")
	mediaPath := fs.String("media", "", "Override media path from config")
	fs.Parse(args)

	cfgPath := configPath(*cfgFlag)
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Init("info")
		logger.Error("Could not load config", "path", cfgPath, "error", err)
		return 1
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *mediaPath != "" {
		cfg.MediaPath = *mediaPath
	}

	// Validate media path exists
	if info, err := os.Stat(cfg.MediaPath); err != nil || !info.IsDir() {
		logger.Error("Media path does not exist", "path", cfg.MediaPath)
		return 1
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                         AUGMENTOR                         ║")
	fmt.Println("║       Image augmentation and video frame extraction       ║")
	versionLine := fmt.Sprintf("v%s", augmentor.Version)
	padding := 59 - len(versionLine)
	fmt.Printf("║%*s%s%*s║\n", padding/2, "", versionLine, (padding+1)/2, "")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Backend:      %s (%s)\n", cfg.ResolvedBackendURL(), cfg.Environment)
	fmt.Printf("  Media path:   %s\n", cfg.MediaPath)
	fmt.Printf("  Config:       %s\n", cfgPath)
	fmt.Printf("  Locale:       %s\n", cfg.Locale)
	fmt.Printf("  FFprobe:      %s\n", cfg.FFprobePath)
	if cfg.RequestTimeout > 0 {
		fmt.Printf("  Timeout:      %s\n", cfg.RequestTimeout)
	} else {
		fmt.Printf("  Timeout:      (none)\n")
	}
	fmt.Println()

	// Initialize components
	prober := ffmpeg.NewProber(cfg.FFprobePath)
	var durations browse.DurationProber
	if prober.Available() {
		durations = prober
	}
	browser := browse.NewBrowser(durations, cfg.MediaPath)

	client, err := newClient(cfg)
	if err != nil {
		logger.Error("Failed to create backend client", "error", err)
		return 1
	}

	handler, err := api.NewHandler(cfg, client, browser, durations)
	if err != nil {
		logger.Error("Failed to initialize API handler", "error", err)
		return 1
	}
	defer handler.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	handler.LoadDefaults(ctx)
	cancel()

	router := api.NewRouter(handler, augmentor.WebFS)

	fmt.Printf("  Starting server on port %d\n", cfg.Port)
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// Print logging separator and consolidated startup log
	fmt.Println("─────────────────────────────────────────────────────────────")
	fmt.Printf("  Logging started (level: %s)\n", cfg.LogLevel)
	fmt.Println("─────────────────────────────────────────────────────────────")
	logger.Info("Augmentor started", "version", augmentor.Version, "backend", cfg.ResolvedBackendURL(), "port", cfg.Port)
	if durations == nil {
		logger.Info("ffprobe not available - video durations must be entered by hand", "path", cfg.FFprobePath)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\n  Shutting down...")
		logger.Info("Shutdown signal received")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			server.Close()
		}
	}()

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err)
		return 1
	}

	logger.Info("Server stopped")
	fmt.Println("  Goodbye!")
	return 0
}

func initConfig(args []string) int {
	fs := flag.NewFlagSet("init-config", flag.ExitOnError)
	cfgFlag := fs.String("config", "", "Where to write the config file (default: ./"+config.DefaultPath+")")
	force := fs.Bool("force", false, "Overwrite an existing file")
	fs.Parse(args)

	path := configPath(*cfgFlag)
	if _, err := os.Stat(path); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "%s already exists (use -force to overwrite)\n", path)
		return 1
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", path, err)
		return 1
	}
	fmt.Printf("Wrote %s\n", path)
	return 0
}

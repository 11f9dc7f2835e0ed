// Package main implements the blog server: the event sink over HTTP and gRPC,
// the content API, health checks and metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/EHam1/very-professional-blog/internal/app"
	"github.com/EHam1/very-professional-blog/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		envDir      string
		dataDir     string
		httpAddr    string
		grpcAddr    string
		enableGRPC  bool
		storageURL  string
		contentDir  string
		logLevel    string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&envDir, "env-dir", ".", "Directory holding .env and .env.local")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for local data files")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP listen address")
	flag.StringVar(&grpcAddr, "grpc-addr", "", "gRPC server address")
	flag.BoolVar(&enableGRPC, "grpc", false, "Enable the gRPC event sink")
	flag.StringVar(&storageURL, "storage-url", "", "Event store URL (sqlite://, https://, s3://, local://)")
	flag.StringVar(&contentDir, "content-dir", "", "Directory of *.md and *.mdx posts")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "blog - blog server with A/B testing event sink\n\n")
		fmt.Fprintf(os.Stderr, "Usage: blog [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  blog --content-dir ./posts\n")
		fmt.Fprintf(os.Stderr, "  blog --storage-url sqlite://./data/events.db --grpc\n")
		fmt.Fprintf(os.Stderr, "  blog --config /etc/blog/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  BLOG_ENV            Run mode (development, production)\n")
		fmt.Fprintf(os.Stderr, "  BLOG_STORAGE_URL    Event store URL; unset runs the sink degraded\n")
		fmt.Fprintf(os.Stderr, "  BLOG_STORAGE_KEY    API key for REST event stores\n")
		fmt.Fprintf(os.Stderr, "  BLOG_HTTP_ADDR      HTTP listen address\n")
		fmt.Fprintf(os.Stderr, "  BLOG_CONTENT_DIR    Directory of posts\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("blog version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(configFile, envDir)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Command line flags have the highest priority.
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}
	if grpcAddr != "" {
		cfg.GRPC.Addr = grpcAddr
	}
	if enableGRPC {
		cfg.GRPC.Enabled = true
	}
	if storageURL != "" {
		cfg.Storage.URL = storageURL
	}
	if contentDir != "" {
		cfg.Content.Dir = contentDir
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	if err := application.WaitForShutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
		os.Exit(1)
	}
}

// loadConfig layers defaults, the config file, dotenv files and the
// environment, in increasing priority.
func loadConfig(configFile, envDir string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	if err := config.LoadEnvFile(envDir); err != nil {
		return nil, err
	}
	config.LoadFromEnv(cfg)

	return cfg, nil
}

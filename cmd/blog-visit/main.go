// Package main implements blog-visit, which plays one page visit the way a
// browser would: it keeps the visitor's storage in a profile file, resolves
// the post's experiments, fires the tracking events and prints the page.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/EHam1/very-professional-blog/internal/clientstore"
	"github.com/EHam1/very-professional-blog/internal/config"
	"github.com/EHam1/very-professional-blog/internal/content"
	"github.com/EHam1/very-professional-blog/internal/experiment"
	"github.com/EHam1/very-professional-blog/internal/identity"
	"github.com/EHam1/very-professional-blog/internal/observability"
	"github.com/EHam1/very-professional-blog/internal/tracking"
)

func main() {
	var (
		profile    string
		contentDir string
		slug       string
		endpoint   string
		dev        bool
		wait       time.Duration
	)

	flag.StringVar(&profile, "profile", filepath.Join(os.TempDir(), "blog-visit-profile.json"), "Browser profile file holding visitor storage")
	flag.StringVar(&contentDir, "content", "", "Directory of *.md and *.mdx posts")
	flag.StringVar(&slug, "slug", "", "Post to visit")
	flag.StringVar(&endpoint, "endpoint", "", "Event sink URL")
	flag.BoolVar(&dev, "dev", false, "Log every event record locally")
	flag.DurationVar(&wait, "wait", 10*time.Second, "How long to wait for pending events before exiting")
	flag.Parse()

	if slug == "" {
		fmt.Fprintf(os.Stderr, "Usage: blog-visit --slug SLUG [--content DIR] [--profile FILE] [--endpoint URL] [--dev]\n")
		os.Exit(2)
	}

	cfg := config.DefaultConfig()
	if err := config.LoadEnvFile("."); err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}
	config.LoadFromEnv(cfg)
	cfg.Resolve()
	if contentDir == "" {
		contentDir = cfg.Content.Dir
	}
	if endpoint == "" {
		endpoint = cfg.Tracking.Endpoint
	}
	if dev {
		cfg.Env = config.EnvDevelopment
		cfg.Log.Level = "debug"
	}
	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)

	item, err := content.NewProvider(contentDir, content.WithLogger(logger)).Get(slug)
	if err != nil {
		log.Fatalf("Failed to load post %q: %v", slug, err)
	}

	kv, err := clientstore.OpenFileStore(profile)
	if err != nil {
		log.Fatalf("Failed to open profile: %v", err)
	}
	defer kv.Close()

	visitors := identity.New(kv, identity.WithLogger(logger))
	page := "/posts/" + slug
	emitter := tracking.NewEmitter(
		tracking.NewHTTPTransport(endpoint, cfg.Tracking.Timeout),
		visitors,
		tracking.WithPage(func() string { return page }),
		tracking.WithDebug(dev || cfg.IsDevelopment()),
		tracking.WithTimeout(cfg.Tracking.Timeout),
		tracking.WithLogger(logger),
	)

	allocator := experiment.NewAllocator(
		experiment.NewAssignmentStore(kv),
		emitter,
		experiment.WithAllocatorLogger(logger),
	)

	doc := experiment.ParseMarkup(item.Body)
	doc.Mount(allocator)
	tracking.TrackPageView(emitter)

	fmt.Printf("# %s\n\n", item.Title)
	fmt.Println(doc.Render())

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	if err := emitter.Wait(ctx); err != nil {
		log.Printf("Pending events not delivered: %v", err)
	}
}

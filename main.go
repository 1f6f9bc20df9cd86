package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"dolly_image_generator/generator"
	"dolly_image_generator/publisher"
	"dolly_image_generator/server"
)

var verbose bool

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	configPath := flag.String("config", "", "path to config.json (optional)")
	envPath := flag.String("env", ".env", "path to .env file")
	addr := flag.String("addr", "", "http listen address (overrides config.server_addr)")
	flag.BoolVar(&verbose, "v", false, "enable info logs")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := publisher.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := publisher.EnsureDir(cfg.ExampleDir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := context.Background()
	llm, err := buildModel(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	assets, err := buildAssets(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	policy := generator.PromptPolicy{
		RequirePrompt:  cfg.RequirePrompt,
		MaxPromptRunes: cfg.MaxPromptRunes,
	}
	agent, err := generator.NewAgent(llm, assets, policy)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	pub, err := publisher.New(cfg.PublicDir, verbose, log.Default())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	srv, err := server.New(agent, pub, server.Options{
		Timeout: cfg.GenerateTimeout(),
		Verbose: verbose,
		Logger:  log.Default(),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	listen := cfg.ServerAddr
	if *addr != "" {
		listen = *addr
	}
	log.Printf("Server listening on %s (provider=%s)", listen, cfg.LLM.Provider)
	if err := http.ListenAndServe(listen, srv.Routes()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildModel(ctx context.Context, cfg publisher.Config) (generator.ImageModel, error) {
	settings := &generator.LLMSettings{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
	}
	switch cfg.LLM.Provider {
	case "gemini":
		return generator.NewGeminiModelFromConfig(ctx, settings)
	case "openai":
		return generator.NewOpenAIImageModelFromConfig(settings)
	case "mock":
		return generator.MockModel{}, nil
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.LLM.Provider)
	}
}

// buildAssets reads the examples from disk per request, or once here when caching is on.
func buildAssets(ctx context.Context, cfg publisher.Config) (generator.AssetSource, error) {
	disk := generator.DiskAssets{Dir: cfg.ExampleDir}
	if !cfg.CacheExamples {
		return disk, nil
	}
	cached, err := generator.NewCachedAssets(ctx, disk)
	if err != nil {
		return nil, fmt.Errorf("load example images: %w", err)
	}
	log.Printf("Cached %d example images from %s", generator.ExampleCount, cfg.ExampleDir)
	return cached, nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"omg/internal/config"
	"omg/internal/oracle"
	"omg/internal/store"
)

func loadConfig(ws string) (*config.Config, error) {
	path := cfgPath
	if path == "" {
		path = filepath.Join(ws, ".omg-config.yaml")
	}
	return config.Load(path)
}

func openStore(ws string) (*store.GraphStore, error) {
	root, err := store.ScaffoldIfNeeded(ws)
	if err != nil {
		return nil, fmt.Errorf("scaffold graph store: %w", err)
	}
	return store.NewGraphStore(root)
}

func resolveAPIKey() string {
	if apiKey != "" {
		return apiKey
	}
	return os.Getenv("OMG_API_KEY")
}

func buildGateway() (*oracle.Gateway, error) {
	key := resolveAPIKey()
	if key == "" {
		return nil, fmt.Errorf("no oracle API key: pass --api-key or set OMG_API_KEY")
	}
	client := oracle.NewHTTPFallbackClient(oracle.HTTPFallbackConfig{
		APIKey:  key,
		BaseURL: baseURL,
		Model:   model,
		Timeout: timeout,
	})
	return oracle.NewGateway(model, func(ctx context.Context, p oracle.Params) (oracle.Response, error) {
		return client.Generate(ctx, p)
	}), nil
}

const defaultSystemPrompt = `You are the curation oracle for a personal knowledge graph. Follow the
requested response format exactly; never include commentary outside it.`

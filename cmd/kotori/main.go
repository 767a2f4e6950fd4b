// Command kotori manages a character's long-term memory and runs the
// conversation server.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kotori-ai/kotori-go-sdk/memory"
	"github.com/kotori-ai/kotori-go-sdk/memory/embedder/cached"
	"github.com/kotori-ai/kotori-go-sdk/memory/embedder/mock"
	"github.com/kotori-ai/kotori-go-sdk/memory/embedder/ollama"
	"github.com/kotori-ai/kotori-go-sdk/memory/store/sqlite"
)

var (
	cacheDir   string
	embedModel string
)

var rootCmd = &cobra.Command{
	Use:   "kotori",
	Short: "Long-term conversational memory for character agents",
	Long:  "Manage a character's dialogue memory and knowledge base, and run the conversation server.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "./cache", "Directory for the memory database and knowledge collection")
	rootCmd.PersistentFlags().StringVar(&embedModel, "embed-model", "nomic-embed-text", "Ollama embedding model, or \"mock\" for the deterministic test embedder")
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newEmbedder builds the configured embedder wrapped in a ristretto cache.
func newEmbedder() (memory.Embedder, error) {
	var inner memory.Embedder
	if embedModel == "mock" {
		inner = mock.New()
	} else {
		inner = ollama.New(embedModel)
	}
	return cached.New(inner, 4096)
}

// openMemoryStore opens the persistent dialogue-memory store.
func openMemoryStore() (*sqlite.Store, *memory.Store, error) {
	embedder, err := newEmbedder()
	if err != nil {
		return nil, nil, err
	}
	vs, err := sqlite.New(filepath.Join(cacheDir, "memory.db"), embedder)
	if err != nil {
		return nil, nil, err
	}
	return vs, memory.NewStore(vs), nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

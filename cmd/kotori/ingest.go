package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kotori-ai/kotori-go-sdk/knowledge"
	chromemstore "github.com/kotori-ai/kotori-go-sdk/memory/store/chromem"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest documents into the knowledge collection",
		Run:   runIngest,
	}

	cmd.Flags().String("dir", "", "Directory containing .txt and .md files to ingest (required)")
	cmd.Flags().Int("chunk-size", 512, "Characters per chunk")
	cmd.Flags().Int("chunk-overlap", 64, "Overlap between chunks")
	cmd.MarkFlagRequired("dir")

	rootCmd.AddCommand(cmd)
}

func runIngest(cmd *cobra.Command, args []string) {
	dir, _ := cmd.Flags().GetString("dir")
	chunkSize, _ := cmd.Flags().GetInt("chunk-size")
	overlap, _ := cmd.Flags().GetInt("chunk-overlap")

	embedder, err := newEmbedder()
	if err != nil {
		exitErr("embedder", err)
	}
	vs, err := chromemstore.NewPersistent(filepath.Join(cacheDir, "knowledge"), "knowledge", embedder)
	if err != nil {
		exitErr("open knowledge collection", err)
	}

	base := knowledge.NewBase(vs)
	added, err := base.IngestDirectory(cmd.Context(), dir, knowledge.IngestOptions{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	})
	if err != nil {
		exitErr("ingest", err)
	}
	fmt.Printf("Ingested %d chunks from %s\n", added, dir)
}

package main

import (
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kotori-ai/kotori-go-sdk/engine"
	"github.com/kotori-ai/kotori-go-sdk/knowledge"
	"github.com/kotori-ai/kotori-go-sdk/memory"
	chromemstore "github.com/kotori-ai/kotori-go-sdk/memory/store/chromem"
	"github.com/kotori-ai/kotori-go-sdk/server"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the WebSocket conversation server",
		Run:   runServe,
	}

	cmd.Flags().String("addr", ":8080", "Listen address")
	cmd.Flags().String("conf", "default", "Character config UID")
	cmd.Flags().String("model", "claude-3-5-sonnet-latest", "Claude model for replies and consolidation")
	cmd.Flags().String("system-prompt", "", "Base character instruction")
	cmd.Flags().Int("retention-days", 30, "Age after which non-persistent memory is swept")
	cmd.Flags().Bool("knowledge", false, "Enable the ingested knowledge collection")

	rootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	addr, _ := cmd.Flags().GetString("addr")
	confUID, _ := cmd.Flags().GetString("conf")
	model, _ := cmd.Flags().GetString("model")
	systemPrompt, _ := cmd.Flags().GetString("system-prompt")
	retentionDays, _ := cmd.Flags().GetInt("retention-days")
	useKnowledge, _ := cmd.Flags().GetBool("knowledge")

	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		log.Fatal("ANTHROPIC_API_KEY environment variable is required")
	}

	vs, store, err := openMemoryStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer vs.Close()

	llm := engine.NewAnthropicLLM(model, 1024)
	consolidator := memory.NewConsolidator(store, llm)

	opts := []engine.Option{engine.WithMemory(store, consolidator)}
	if useKnowledge {
		embedder, err := newEmbedder()
		if err != nil {
			exitErr("embedder", err)
		}
		kvs, err := chromemstore.NewPersistent(filepath.Join(cacheDir, "knowledge"), "knowledge", embedder)
		if err != nil {
			exitErr("open knowledge collection", err)
		}
		opts = append(opts, engine.WithKnowledge(knowledge.NewBase(kvs)))
	}

	eng := engine.New(llm, &engine.Config{
		SystemPrompt:  systemPrompt,
		RetentionDays: retentionDays,
	}, opts...)

	srv := server.New(eng, confUID)
	http.Handle("/ws", srv.Handler())
	log.Printf("[SERVER] Listening on %s", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal(err)
	}
}

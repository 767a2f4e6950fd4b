package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kotori-ai/kotori-go-sdk/memory"
)

func init() {
	memCmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and manage dialogue memory",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List memory items for a character, newest first",
		Run:   runMemoryList,
	}
	listCmd.Flags().String("conf", "", "Character config UID (required)")
	listCmd.Flags().String("history", "", "Filter by conversation thread")
	listCmd.Flags().String("role", "", "Filter by role: fact, summary, user_profile")
	listCmd.Flags().Int("limit", 200, "Max items")
	listCmd.MarkFlagRequired("conf")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all memory items for a character",
		Run:   runMemoryClear,
	}
	clearCmd.Flags().String("conf", "", "Character config UID (required)")
	clearCmd.Flags().String("history", "", "Limit deletion to one conversation thread")
	clearCmd.MarkFlagRequired("conf")

	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete non-persistent items older than the retention horizon",
		Run:   runMemoryCleanup,
	}
	cleanupCmd.Flags().Int("days", 30, "Retention horizon in days")

	memCmd.AddCommand(listCmd, clearCmd, cleanupCmd)
	rootCmd.AddCommand(memCmd)
}

func runMemoryList(cmd *cobra.Command, args []string) {
	confUID, _ := cmd.Flags().GetString("conf")
	historyUID, _ := cmd.Flags().GetString("history")
	roleStr, _ := cmd.Flags().GetString("role")
	limit, _ := cmd.Flags().GetInt("limit")

	var role memory.Role
	if roleStr != "" {
		parsed, err := memory.ParseRole(roleStr)
		if err != nil {
			exitErr("role", err)
		}
		role = parsed
	}

	vs, store, err := openMemoryStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer vs.Close()

	items, err := store.ListItems(cmd.Context(), confUID, historyUID, role, limit)
	if err != nil {
		exitErr("list", err)
	}

	type row struct {
		ID        string `json:"id"`
		Role      string `json:"role"`
		Content   string `json:"content"`
		History   string `json:"history_uid"`
		Timestamp int64  `json:"timestamp"`
	}
	rows := make([]row, len(items))
	for i, it := range items {
		rows[i] = row{
			ID:        it.ID,
			Role:      string(it.Role),
			Content:   it.Content,
			History:   it.HistoryUID,
			Timestamp: it.Timestamp,
		}
	}
	b, _ := json.MarshalIndent(rows, "", "  ")
	fmt.Println(string(b))
}

func runMemoryClear(cmd *cobra.Command, args []string) {
	confUID, _ := cmd.Flags().GetString("conf")
	historyUID, _ := cmd.Flags().GetString("history")

	vs, store, err := openMemoryStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer vs.Close()

	n, err := store.DeleteAll(cmd.Context(), confUID, historyUID)
	if err != nil {
		exitErr("clear", err)
	}
	fmt.Printf("Deleted %d items\n", n)
}

func runMemoryCleanup(cmd *cobra.Command, args []string) {
	days, _ := cmd.Flags().GetInt("days")

	vs, store, err := openMemoryStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer vs.Close()

	n, err := store.DeleteOlderThanDays(cmd.Context(), days, "", nil)
	if err != nil {
		exitErr("cleanup", err)
	}
	fmt.Printf("Deleted %d items older than %d days\n", n, days)
}

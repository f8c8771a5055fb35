package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/study-coach/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "generate [material-id]",
		Short: "Generate study items from a material",
		Args:  cobra.ExactArgs(1),
		Run:   runGenerate,
	}

	cmd.Flags().IntP("count", "n", 5, "Number of items to generate")
	cmd.Flags().String("kinds", "question", "Comma-separated kinds: question, flashcard, summary")
	cmd.Flags().String("difficulty", "medium", "Difficulty: easy, medium, hard")
	cmd.Flags().String("topics", "", "Comma-separated topics to focus on")

	RootCmd.AddCommand(cmd)
}

func runGenerate(cmd *cobra.Command, args []string) {
	count, _ := cmd.Flags().GetInt("count")
	kindsStr, _ := cmd.Flags().GetString("kinds")
	difficulty, _ := cmd.Flags().GetString("difficulty")
	topicsStr, _ := cmd.Flags().GetString("topics")

	var kinds []model.ItemKind
	for _, k := range strings.Split(kindsStr, ",") {
		if k = strings.TrimSpace(k); k != "" {
			kinds = append(kinds, model.ItemKind(k))
		}
	}
	var topics []string
	for _, t := range strings.Split(topicsStr, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}

	svc, s := newDataset()
	defer s.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
	defer cancel()

	items, err := svc.GenerateItems(ctx, args[0], count, kinds, difficulty, topics)
	if err != nil {
		exitErr("generate", err)
	}

	for _, item := range items {
		b, _ := json.Marshal(item)
		fmt.Println(string(b))
	}
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/study-coach/internal/coach"
	"github.com/rcliao/study-coach/internal/rules"
)

func init() {
	cmd := &cobra.Command{
		Use:   "dispatch [utterance]",
		Short: "Dispatch one utterance: rule reply or model escalation",
		Args:  cobra.MinimumNArgs(1),
		Run:   runDispatch,
	}

	cmd.Flags().StringP("conversation", "c", "default", "Conversation id")

	RootCmd.AddCommand(cmd)
}

func runDispatch(cmd *cobra.Command, args []string) {
	conversationID, _ := cmd.Flags().GetString("conversation")
	utterance := strings.Join(args, " ")

	base, err := loadRules()
	if err != nil {
		exitErr("load rules", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	orch, err := newOrchestrator()
	if err != nil {
		exitErr("model client", err)
	}

	c := coach.New(rules.NewHolder(base), s, orch, cfg.ContextWindow, logger)

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
	defer cancel()

	resp, err := c.Dispatch(ctx, conversationID, utterance)
	if err != nil {
		exitErr("dispatch", err)
	}

	b, _ := json.Marshal(resp)
	fmt.Println(string(b))
}

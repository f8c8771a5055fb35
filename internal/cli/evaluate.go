package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "evaluate [material-id]",
		Short: "Run the quality-control pass over a material's items",
		Args:  cobra.ExactArgs(1),
		Run:   runEvaluate,
	}

	cmd.Flags().Float64P("threshold", "t", 0.5, "Revision threshold in (0,1]")

	RootCmd.AddCommand(cmd)
}

func runEvaluate(cmd *cobra.Command, args []string) {
	threshold, _ := cmd.Flags().GetFloat64("threshold")

	svc, s := newDataset()
	defer s.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
	defer cancel()

	report, err := svc.EvaluateQuality(ctx, args[0], threshold)
	if err != nil {
		exitErr("evaluate", err)
	}

	b, _ := json.Marshal(report)
	fmt.Println(string(b))
}

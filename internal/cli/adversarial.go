package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "adversarial [material-id]",
		Short: "Generate adversarial study items targeting misconceptions",
		Args:  cobra.ExactArgs(1),
		Run:   runAdversarial,
	}

	cmd.Flags().IntP("count", "n", 3, "Number of adversarial items")
	cmd.Flags().Bool("base-on-existing", true, "Base adversaries on existing questions")

	RootCmd.AddCommand(cmd)
}

func runAdversarial(cmd *cobra.Command, args []string) {
	count, _ := cmd.Flags().GetInt("count")
	baseOnExisting, _ := cmd.Flags().GetBool("base-on-existing")

	svc, s := newDataset()
	defer s.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
	defer cancel()

	items, err := svc.GenerateAdversarial(ctx, args[0], count, baseOnExisting)
	if err != nil {
		exitErr("adversarial", err)
	}

	for _, item := range items {
		b, _ := json.Marshal(item)
		fmt.Println(string(b))
	}
}

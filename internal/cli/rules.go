package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/study-coach/internal/rules"
)

func init() {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Rule base utilities",
	}

	checkCmd := &cobra.Command{
		Use:   "check [file]",
		Short: "Validate a rules CSV file",
		Long:  "Validate a rules CSV (id,pattern,priority,action). Any malformed row fails the whole file.",
		Args:  cobra.ExactArgs(1),
		Run:   runRulesCheck,
	}

	rulesCmd.AddCommand(checkCmd)
	RootCmd.AddCommand(rulesCmd)
}

func runRulesCheck(cmd *cobra.Command, args []string) {
	f, err := os.Open(args[0])
	if err != nil {
		exitErr("open rules", err)
	}
	defer f.Close()

	base, err := rules.Load(f)
	if err != nil {
		exitErr("invalid rules", err)
	}

	b, _ := json.Marshal(map[string]interface{}{"ok": true, "rules": base.Len()})
	fmt.Println(string(b))
}

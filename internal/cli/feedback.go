package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "feedback [item-id]",
		Short: "Record feedback on a generated item",
		Args:  cobra.ExactArgs(1),
		Run:   runFeedback,
	}

	cmd.Flags().StringP("user", "u", "", "User id (required)")
	cmd.Flags().Bool("correct", false, "Answered correctly")
	cmd.Flags().Bool("helpful", false, "Found the item helpful")
	cmd.Flags().Int("rating", 0, "Difficulty rating 1-5 (0 = unrated)")
	cmd.Flags().String("comment", "", "Free-text comment")

	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

func runFeedback(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	correct, _ := cmd.Flags().GetBool("correct")
	helpful, _ := cmd.Flags().GetBool("helpful")
	rating, _ := cmd.Flags().GetInt("rating")
	comment, _ := cmd.Flags().GetString("comment")

	svc, s := newDataset()
	defer s.Close()

	id, err := svc.RecordFeedback(cmd.Context(), args[0], user, correct, helpful, rating, comment)
	if err != nil {
		exitErr("feedback", err)
	}

	b, _ := json.Marshal(map[string]string{"feedback_id": id})
	fmt.Println(string(b))
}

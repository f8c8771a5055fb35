package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/study-coach/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "upload [file]",
		Short: "Upload study material",
		Long:  "Upload study material as extracted text. Content comes from a file argument or stdin.",
		Run:   runUpload,
	}

	cmd.Flags().StringP("title", "t", "", "Material title (required)")
	cmd.Flags().String("topics", "", "Comma-separated topics")

	cmd.MarkFlagRequired("title")

	RootCmd.AddCommand(cmd)
}

func runUpload(cmd *cobra.Command, args []string) {
	title, _ := cmd.Flags().GetString("title")
	topicsStr, _ := cmd.Flags().GetString("topics")

	var content string
	if len(args) > 0 {
		b, err := os.ReadFile(args[0])
		if err != nil {
			exitErr("read file", err)
		}
		content = string(b)
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}

	if strings.TrimSpace(content) == "" {
		exitErr("upload", fmt.Errorf("content is required (file arg or stdin)"))
	}

	var topics []string
	if topicsStr != "" {
		for _, t := range strings.Split(topicsStr, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				topics = append(topics, t)
			}
		}
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	m := model.StudyMaterial{
		Title:   title,
		Content: strings.TrimSpace(content),
		Topics:  topics,
	}
	if err := s.PutMaterial(cmd.Context(), &m); err != nil {
		exitErr("upload", err)
	}

	b, _ := json.Marshal(m)
	fmt.Println(string(b))
}

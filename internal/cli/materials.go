package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "materials",
		Short: "List uploaded study materials",
		Run:   runMaterials,
	}

	RootCmd.AddCommand(cmd)
}

func runMaterials(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	materials, err := s.ListMaterials(cmd.Context())
	if err != nil {
		exitErr("list materials", err)
	}

	for _, m := range materials {
		m.Content = "" // keep listings small
		b, _ := json.Marshal(m)
		fmt.Println(string(b))
	}
}

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "status <deck>",
		Short: "Show the locally stored setup and completion of a deck",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatus,
	}

	RootCmd.AddCommand(cmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	rec, err := s.Load(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("load deck: %w", err)
	}

	b, _ := json.MarshalIndent(rec, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}

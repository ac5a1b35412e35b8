package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:     "cancel <ID>...",
	Aliases: []string{"kill"},
	Short:   "Cancel running downloads",
	Long:    `Cancel downloads by ID. Finished and unknown jobs are left untouched.`,
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		portFlag, _ := cmd.Flags().GetInt("port")

		port, err := resolvePort(portFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		var failed int
		for _, arg := range args {
			id, err := parseIDArg(arg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				failed++
				continue
			}
			if err := postJSON(port, fmt.Sprintf("/cancel?id=%d", id), nil, nil); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				failed++
				continue
			}
			fmt.Printf("Cancel requested for %d\n", id)
		}
		if failed > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)
	cancelCmd.Flags().IntP("port", "p", 0, "port of the running SaverX server")
}

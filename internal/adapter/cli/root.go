package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "Detect encrypted containers and recover their passwords",
	Long: `Forge analyzes disk images and loose files for encrypted containers
(ZIP, PDF, Office, BitLocker, LUKS), extracts the cryptographic metadata
needed for password verification, and runs parallel dictionary and
exhaustive search against the file-level formats.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

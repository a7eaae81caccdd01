package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lost-found",
	Short: "Lost & found service that pairs missing and found persons by face",
	Long: `Lost & Found collects reports about missing and found persons together
with a photo, lets an administrator review them, and pairs lost and found
reports whose face descriptors are similar enough.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

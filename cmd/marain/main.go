package main

import (
	"fmt"
	"os"

	"github.com/aeolun/marain/pkg/client"
	"github.com/spf13/cobra"
)

var (
	configPath string
	username   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "marain [host] [port]",
	Short: "Terminal chat client",
	Long: `marain connects to a chat server, logs in with an ephemeral key pair and
opens a full-screen chat window.

Host and port default to the [server] section of the config file. Press i to
start typing, Enter to send, Esc to go back and q to quit.`,
	Args:          cobra.MaximumNArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", client.ConfigPath(), "config file")
	rootCmd.Flags().StringVarP(&username, "username", "u", "", "name to log in with (overrides the config file)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "marain: %v\n", err)
		os.Exit(1)
	}
}

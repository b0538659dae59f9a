/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chatcart",
	Short: "Conversational commerce gateway",
	Long:  "ChatCart turns a chat channel into a storefront: catalog browsing, carts, and a guided order checkout, driven by a message-processing engine with dedup, rate limiting, and per-conversation ordering.",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// Package main 是应用程序的入口点。
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var cfgPath string
	root := &cobra.Command{
		Use:           "docqa",
		Short:         "PDF question answering service",
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./configs/config.yaml", "config file (optional)")

	root.AddCommand(serveCMD(&cfgPath), ingestCMD(&cfgPath))
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

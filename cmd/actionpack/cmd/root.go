package cmd

import (
	"os"

	"github.com/dennishilgert/actionpack/cmd/actionpack/cmd/build"
	"github.com/dennishilgert/actionpack/cmd/actionpack/cmd/serve"
	"github.com/dennishilgert/actionpack/pkg/logger"
	"github.com/spf13/cobra"
)

var log = logger.NewLogger("actionpack.cli")

var rootCommand = &cobra.Command{
	Use:   "actionpack",
	Short: "Package python actions with their dependencies",
	Long:  "Command Line Interface for building python actions with their pip dependencies and publishing them to the platform",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(0)
	},
}

var logFlags = logger.ParseFlags()

func initFlags() {
	rootCommand.PersistentFlags().AddFlagSet(logFlags.FlagSet())
}

func init() {
	initFlags()

	rootCommand.AddCommand(build.Command)
	rootCommand.AddCommand(serve.Command)
}

func Run() {
	if err := rootCommand.Execute(); err != nil {
		log.Fatal(err)
	}
}

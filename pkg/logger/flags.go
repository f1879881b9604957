package logger

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type loggingFlags struct {
	Config Config
}

type parsedFlags struct {
	logFlags *loggingFlags
	flagSet  *pflag.FlagSet
}

func ParseFlags() *parsedFlags {
	var f loggingFlags

	fs := pflag.NewFlagSet("logging", pflag.ExitOnError)
	fs.SortFlags = true

	fs.StringVar(&f.Config.AppId, "log-app-id", config.AppId, "App id that should be displayed in the logs")
	fs.StringVar(&f.Config.LogLevel, "log-level", config.LogLevel, "Log level for which the logs should be displayed")
	fs.BoolVar(&f.Config.LogJsonOutput, "log-json-out", config.LogJsonOutput, "Wether the log output should be printed in json format or not")

	return &parsedFlags{
		logFlags: &f,
		flagSet:  fs,
	}
}

// ReadAndApply reads the logging flags of the command and applies them to all registered loggers.
func ReadAndApply(command *cobra.Command, logger Logger) {
	var cfg Config
	var err error
	if cfg.AppId, err = command.Flags().GetString("log-app-id"); err != nil {
		logger.Fatalf("failed to apply logger configuration: %v", err)
	}
	if cfg.LogLevel, err = command.Flags().GetString("log-level"); err != nil {
		logger.Fatalf("failed to apply logger configuration: %v", err)
	}
	if cfg.LogJsonOutput, err = command.Flags().GetBool("log-json-out"); err != nil {
		logger.Fatalf("failed to apply logger configuration: %v", err)
	}
	if err := ApplyConfigToLoggers(&cfg); err != nil {
		logger.Fatalf("failed to apply logger configuration: %v", err)
	}
}

func (p *parsedFlags) FlagSet() *pflag.FlagSet {
	return p.flagSet
}

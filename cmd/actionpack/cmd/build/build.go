package build

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dennishilgert/actionpack/cmd/actionpack/app"
	"github.com/dennishilgert/actionpack/cmd/actionpack/config"
	"github.com/dennishilgert/actionpack/internal/app/actionpack"
	"github.com/dennishilgert/actionpack/internal/app/actionpack/publisher"
	"github.com/dennishilgert/actionpack/internal/app/actionpack/request"
	"github.com/dennishilgert/actionpack/pkg/logger"
	"github.com/dennishilgert/actionpack/pkg/signals"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var log = logger.NewLogger("actionpack.cli.build")

var Command = &cobra.Command{
	Use:   "build",
	Short: "Build and publish a python action",
	Long:  "Install the requirements of a python action into a virtualenv, bundle it and publish it to the platform",
	Run:   run,
}

var cmdFlags = ParseFlags()

func initFlags() {
	Command.Flags().AddFlagSet(cmdFlags.FlagSet())
}

func init() {
	initFlags()
}

func run(cobraCommand *cobra.Command, args []string) {
	logger.ReadAndApply(cobraCommand, log)
	os.Exit(processCommand(cobraCommand, os.Stdin, os.Stdout))
}

func processCommand(cobraCommand *cobra.Command, stdin io.Reader, stdout io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		log.Errorf("failed to load configuration: %v", err)
		return 1
	}
	f := cmdFlags.CommandFlags()
	if cobraCommand.Flags().Changed("keep-workspace") {
		cfg.KeepWorkspace = f.KeepWorkspace
	}

	req, err := loadRequest(f, stdin)
	if err != nil {
		log.Errorf("failed to read build request: %v", err)
		return 1
	}

	service, err := app.NewService(cfg, nil)
	if err != nil {
		log.Errorf("failed to create build service: %v", err)
		return 1
	}
	credentials := app.Credentials(cfg).Override(publisher.Credentials{
		ApiKey:  f.ApiKey,
		ApiHost: f.ApiHost,
	})

	result := service.Build(signals.Context(), req, credentials)
	return writeResult(stdout, result)
}

// loadRequest reads the request file if one is given and applies the flags on top of it.
func loadRequest(f *commandFlags, stdin io.Reader) (request.Request, error) {
	var req request.Request
	if f.RequestFile != "" {
		var raw []byte
		var err error
		if f.RequestFile == "-" {
			raw, err = io.ReadAll(stdin)
		} else {
			raw, err = os.ReadFile(f.RequestFile)
		}
		if err != nil {
			return req, fmt.Errorf("failed to read %s: %w", f.RequestFile, err)
		}
		// yaml is a superset of json, both request formats decode here
		if err := yaml.Unmarshal(raw, &req); err != nil {
			return req, fmt.Errorf("failed to decode %s: %w", f.RequestFile, err)
		}
	}

	if f.ActionDataFile != "" {
		archive, err := os.ReadFile(f.ActionDataFile)
		if err != nil {
			return req, fmt.Errorf("failed to read --action-data-file: %w", err)
		}
		req.ActionData = base64.StdEncoding.EncodeToString(archive)
	}
	override(&req.ActionName, f.ActionName)
	override(&req.ActionData, f.ActionData)
	override(&req.ActionNamespace, f.ActionNamespace)
	override(&req.ActionMain, f.ActionMain)
	override(&req.ActionKind, f.ActionKind)
	return req, nil
}

func override(target *string, value string) {
	if value != "" {
		*target = value
	}
}

// writeResult prints the result as json and returns the exit code.
func writeResult(w io.Writer, result actionpack.Result) int {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		log.Errorf("failed to write result: %v", err)
		return 1
	}
	if result.Failed() {
		return 1
	}
	return 0
}

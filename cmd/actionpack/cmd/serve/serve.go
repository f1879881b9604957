package serve

import (
	"os"

	"github.com/dennishilgert/actionpack/cmd/actionpack/app"
	"github.com/dennishilgert/actionpack/cmd/actionpack/config"
	"github.com/dennishilgert/actionpack/internal/app/actionpack/proxy"
	"github.com/dennishilgert/actionpack/internal/pkg/concurrency/runner"
	"github.com/dennishilgert/actionpack/pkg/concurrency/worker"
	"github.com/dennishilgert/actionpack/pkg/health"
	"github.com/dennishilgert/actionpack/pkg/logger"
	"github.com/dennishilgert/actionpack/pkg/metrics"
	"github.com/dennishilgert/actionpack/pkg/signals"
	"github.com/spf13/cobra"
)

var log = logger.NewLogger("actionpack.cli.serve")

var Command = &cobra.Command{
	Use:   "serve",
	Short: "Serve the build pipeline as an action proxy",
	Long:  "Run the action proxy protocol (/init, /run) so the build pipeline can be deployed as an action itself",
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
	os.Exit(processCommand())
}

func processCommand() int {
	cfg, err := config.Load()
	if err != nil {
		log.Errorf("failed to load configuration: %v", err)
		return 1
	}
	f := cmdFlags.CommandFlags()
	if f.Port > 0 {
		cfg.ProxyPort = f.Port
	}
	if f.WorkerCount > 0 {
		cfg.ProxyWorkerCount = f.WorkerCount
	}

	log.Infof("starting actionpack proxy -- version %s", logger.Version)
	log.Infof("log level set to: %s", log.LogLevel())

	buildMetrics := metrics.NewProm("actionpack", cfg.WorkspaceRoot)
	service, err := app.NewService(cfg, buildMetrics)
	if err != nil {
		log.Errorf("failed to create build service: %v", err)
		return 1
	}

	workerManager := worker.NewWorkerManager(cfg.ProxyWorkerCount)
	proxyServer := proxy.NewServer(service, workerManager, proxy.Options{
		Port:           cfg.ProxyPort,
		Credentials:    app.Credentials(cfg),
		BuildTimeout:   cfg.ProxyBuildTimeout,
		HealthProvider: health.NewHealthStatusProvider(health.ProviderOptions{Targets: 1}),
		MetricsHandler: buildMetrics.Handler(),
	})

	ctx := signals.Context()
	err = runner.NewRunnerManager(
		workerManager.Run,
		proxyServer.Run,
	).Run(ctx)
	if err != nil {
		log.Errorf("error while running action proxy: %v", err)
		return 1
	}

	log.Info("action proxy shut down gracefully")
	return 0
}

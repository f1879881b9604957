package serve

import "github.com/spf13/pflag"

type commandFlags struct {
	Port        int
	WorkerCount int
}

type parsedFlags struct {
	cmdFlags *commandFlags
	flagSet  *pflag.FlagSet
}

func ParseFlags() *parsedFlags {
	var f commandFlags

	fs := pflag.NewFlagSet("serve", pflag.ExitOnError)
	fs.SortFlags = true

	fs.IntVar(&f.Port, "port", 0, "Port of the action proxy - optional with ACTIONPACK_PROXY_PORT set")
	fs.IntVar(&f.WorkerCount, "worker-count", 0, "Number of builds running in parallel - optional with ACTIONPACK_PROXY_WORKER_COUNT set")

	return &parsedFlags{
		cmdFlags: &f,
		flagSet:  fs,
	}
}

func (p *parsedFlags) CommandFlags() *commandFlags {
	return p.cmdFlags
}

func (p *parsedFlags) FlagSet() *pflag.FlagSet {
	return p.flagSet
}

package build

import "github.com/spf13/pflag"

type commandFlags struct {
	RequestFile     string
	ActionName      string
	ActionData      string
	ActionDataFile  string
	ActionNamespace string
	ActionMain      string
	ActionKind      string
	ApiHost         string
	ApiKey          string
	KeepWorkspace   bool
}

type parsedFlags struct {
	cmdFlags *commandFlags
	flagSet  *pflag.FlagSet
}

func ParseFlags() *parsedFlags {
	var f commandFlags

	fs := pflag.NewFlagSet("build", pflag.ExitOnError)
	fs.SortFlags = true

	fs.StringVar(&f.RequestFile, "request", "", "Path to a JSON or YAML build request, - reads from stdin")
	fs.StringVar(&f.ActionName, "action-name", "", "Name of the action to create")
	fs.StringVar(&f.ActionData, "action-data", "", "Base64 encoded zip archive holding the python sources and requirements.txt")
	fs.StringVar(&f.ActionDataFile, "action-data-file", "", "Path to a zip archive holding the python sources and requirements.txt")
	fs.StringVar(&f.ActionNamespace, "action-namespace", "", "Namespace of the action, defaults to _")
	fs.StringVar(&f.ActionMain, "action-main", "", "Name of the entry function of the action")
	fs.StringVar(&f.ActionKind, "action-kind", "", "Runtime kind of the action, defaults to python:2")
	fs.StringVar(&f.ApiHost, "api-host", "", "Platform api host - optional with __OW_API_HOST set")
	fs.StringVar(&f.ApiKey, "api-key", "", "Platform api key in the form <user>:<password> - optional with __OW_API_KEY set")
	fs.BoolVar(&f.KeepWorkspace, "keep-workspace", false, "Keep the workspace directory after the build - optional with ACTIONPACK_KEEP_WORKSPACE set")

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

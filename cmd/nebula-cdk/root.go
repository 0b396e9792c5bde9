package main

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/nebula-cdk/pkg/connector/registry"

	// Import all available connectors to register them
	_ "github.com/ajitpratap0/nebula-cdk/pkg/connector/sources/jsonl"
)

// Version is filled in by ldflags
var Version = "0.1.0"

const envPrefix = "NEBULA_CDK"

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "nebula-cdk",
		Short: "nebula-cdk - concurrent source runner",
		Long: `nebula-cdk reads the streams of a source connector concurrently and
writes records, checkpoints and stream status as JSON lines on stdout.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setAllConfig(viper.New(), cmd.Flags(), envPrefix)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "nebula-cdk v%s\n", Version)
			fmt.Fprintf(stdout, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(stdout, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available source connectors",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(stdout, "Available Source Connectors:")
			for _, info := range registry.ListSources() {
				fmt.Fprintf(stdout, "  - %s (%s): %s\n", info.Name, info.Version, info.Description)
			}
		},
	})

	root.AddCommand(newReadCommand(stdout))
	return root
}

// setAllConfig fills every flag that was not given on the command line from
// an environment variable named after it: upper case, dashes replaced by
// underscores and prefixed with envPrefix plus an underscore.
func setAllConfig(v *viper.Viper, flags *pflag.FlagSet, envPrefix string) error {
	if err := v.BindPFlags(flags); err != nil {
		return err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil || f.Changed {
			return
		}
		flagErr = f.Value.Set(v.GetString(f.Name))
	})
	return flagErr
}

// Command mqttsn runs an MQTT-SN gateway or a fixture-driven client.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootFlags struct {
	configPath string
	logLevel   string
	listen     string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "mqttsn",
		Short:         "MQTT-SN gateway and client",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to a .yaml or .toml config file")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override the configured log level")
	cmd.PersistentFlags().StringVarP(&flags.listen, "listen", "l", "", "override the UDP listen address")

	cmd.AddCommand(
		newGatewayCmd(flags),
		newClientCmd(flags),
	)

	return cmd
}

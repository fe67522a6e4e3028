package cli

import (
	"github.com/spf13/cobra"

	"github.com/mathquest/mathquest/internal/daemon"
)

func newServeCmd() *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MathQuest API server",
		Long: `Start the HTTP API, the Redis attempt consumer (when enabled) and the
scheduled sweep. Configuration is read from $MATHQUEST_HOME/config.toml.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := daemon.New(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()

			// Override config from flags
			if host != "" {
				d.Config.API.Host = host
			}
			if port > 0 {
				d.Config.API.Port = port
			}

			return d.Serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Host to listen on (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (overrides config)")
	return cmd
}

package cli

import (
	"github.com/spf13/cobra"

	"github.com/spetersoncode/codison/internal/server"
)

func (r *runtime) newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent over HTTP",
		Long: `Start an HTTP server that accepts prompts and streams the agent's events
as AG-UI server-sent events.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, release, err := r.session(cmd)
			if err != nil {
				return err
			}
			defer release()

			if addr == "" {
				addr = s.Config().Addr
			}
			srv := server.New(s.Channel(), s.History(), s.Logger())
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from CODISON_ADDR or :8080)")
	return cmd
}

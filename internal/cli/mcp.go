package cli

import (
	"github.com/spf13/cobra"

	"github.com/spetersoncode/codison/mcp"
	"github.com/spetersoncode/codison/tool"
)

func (r *runtime) newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the builtin tools over MCP stdio",
		Long: `Expose codison's builtin tools to Model Context Protocol clients over
stdin and stdout. No model provider is needed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := r.config()
			if err != nil {
				return err
			}
			log, closer, err := r.logger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closer.Close()

			toolCfg := tool.Config{
				WorkingDir:   cfg.WorkingDir,
				ShellTimeout: cfg.ToolTimeout,
				Logger:       log,
			}
			reg := tool.NewRegistry().Add(tool.Defaults(toolCfg)...)
			if cfg.EnableProjectTools {
				reg.Add(tool.ProjectTools(toolCfg)...)
			}

			log.Info().Int("tools", reg.Len()).Msg("serving mcp over stdio")
			return mcp.ServeStdio(reg, mcp.WithName("codison"), mcp.WithVersion(version), mcp.WithLogger(log))
		},
	}
}

// Package cli implements the codison command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/spetersoncode/codison/internal/app"
	"github.com/spetersoncode/codison/internal/config"
	"github.com/spetersoncode/codison/internal/logger"
)

const version = "0.1.0"

// SessionFactory builds the session a command runs against.
type SessionFactory func(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app.Session, error)

// Option configures the command tree.
type Option func(*runtime)

// WithSessionFactory replaces how sessions are built.
func WithSessionFactory(f SessionFactory) Option {
	return func(r *runtime) {
		r.newSession = f
	}
}

// WithConfigLoader replaces config.Load.
func WithConfigLoader(load func() (*config.Config, error)) Option {
	return func(r *runtime) {
		r.loadConfig = load
	}
}

// runtime holds the flag values and seams shared by every command.
type runtime struct {
	newSession SessionFactory
	loadConfig func() (*config.Config, error)

	instruction string
	workingDir  string
	provider    string
	model       string
	logLevel    string
}

func defaultSession(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app.Session, error) {
	return app.New(ctx, cfg, app.WithLogger(log))
}

// NewRootCmd builds the codison command tree.
func NewRootCmd(opts ...Option) *cobra.Command {
	r := &runtime{
		newSession: defaultSession,
		loadConfig: config.Load,
	}
	for _, opt := range opts {
		opt(r)
	}

	root := &cobra.Command{
		Use:   "codison [prompt]",
		Short: "Codison - a coding agent for your terminal",
		Long: `Codison drives a language model that works on the project in the working
directory with shell, file and search tools.

With a prompt it runs once and prints the answer. Without one it starts an
interactive session.`,
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.runRoot(cmd, args)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&r.workingDir, "workingDir", "w", "", "working directory (default is the current directory)")
	flags.StringVar(&r.provider, "provider", "", "model provider (openai, anthropic, google)")
	flags.StringVar(&r.model, "model", "", "model name")
	flags.StringVar(&r.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	root.Flags().StringVarP(&r.instruction, "instruction", "i", "", "instruction file from .codison/instructions")

	root.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)

	root.AddCommand(r.newServeCmd(), r.newMCPCmd())
	return root
}

// Execute runs the command line with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// config loads the configuration and applies flag overrides.
func (r *runtime) config() (*config.Config, error) {
	cfg, err := r.loadConfig()
	if err != nil {
		return nil, err
	}
	if r.workingDir != "" {
		cfg.WorkingDir = r.workingDir
	}
	if r.provider != "" {
		cfg.Provider = strings.ToLower(r.provider)
	}
	if r.model != "" {
		cfg.Model = r.model
	}
	if r.logLevel != "" {
		cfg.LogLevel = r.logLevel
	}
	return cfg, nil
}

// logger builds the process logger. Logs never go to stdout, which carries
// answers and MCP traffic.
func (r *runtime) logger(cfg *config.Config, stderr io.Writer) (zerolog.Logger, io.Closer, error) {
	return logger.New(logger.Config{
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
		Pretty: true,
		Writer: writerUnlessFile(cfg.LogFile, stderr),
	})
}

func writerUnlessFile(file string, w io.Writer) io.Writer {
	if file != "" {
		return nil
	}
	return w
}

func (r *runtime) session(cmd *cobra.Command) (*app.Session, func(), error) {
	cfg, err := r.config()
	if err != nil {
		return nil, nil, err
	}
	log, closer, err := r.logger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}

	s, err := r.newSession(cmd.Context(), cfg, log)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	release := func() {
		if err := s.Close(); err != nil {
			log.Warn().Err(err).Msg("session close failed")
		}
		closer.Close()
	}
	return s, release, nil
}

func (r *runtime) runRoot(cmd *cobra.Command, args []string) error {
	s, release, err := r.session(cmd)
	if err != nil {
		return err
	}
	defer release()

	ctx := cmd.Context()
	if len(args) > 0 {
		answer, err := s.Ask(ctx, strings.Join(args, " "), r.instruction)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), answer)
		return nil
	}

	if r.instruction != "" {
		if err := s.Instruct(ctx, r.instruction); err != nil {
			return err
		}
	}
	return runREPL(ctx, s, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// Package app wires a codison session together from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/spetersoncode/codison"
	"github.com/spetersoncode/codison/agent"
	"github.com/spetersoncode/codison/channel"
	"github.com/spetersoncode/codison/history"
	"github.com/spetersoncode/codison/internal/config"
	"github.com/spetersoncode/codison/internal/prompt"
	"github.com/spetersoncode/codison/mcp"
	"github.com/spetersoncode/codison/output"
	"github.com/spetersoncode/codison/store"
	"github.com/spetersoncode/codison/tool"
)

// Option configures a Session.
type Option func(*options)

type options struct {
	provider codison.Provider
	logger   zerolog.Logger
	fs       afero.Fs
	now      func() time.Time
}

// WithProvider uses p instead of building one from the configuration.
func WithProvider(p codison.Provider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithLogger sets the logger passed to every component.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithFs sets the filesystem used by the file tools and prompt detection.
func WithFs(fs afero.Fs) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// Session is one agent with its provider, history, tools and output channel.
type Session struct {
	cfg    *config.Config
	logger zerolog.Logger
	fs     afero.Fs

	provider codison.Provider
	history  *history.History
	registry *tool.Registry
	agent    *agent.Agent
	channel  *channel.Channel

	closers []io.Closer
}

// New builds a session from cfg. Close releases it.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Session, error) {
	o := &options{
		logger: zerolog.Nop(),
		fs:     afero.NewOsFs(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	policy, err := channel.ParsePolicy(cfg.ChannelPolicy)
	if err != nil {
		return nil, err
	}

	s := &Session{cfg: cfg, logger: o.logger, fs: o.fs, provider: o.provider}
	if err := s.init(ctx, policy, o); err != nil {
		_ = s.closeResources()
		return nil, err
	}
	return s, nil
}

func (s *Session) init(ctx context.Context, policy channel.Policy, o *options) error {
	if s.provider == nil {
		system := prompt.System(s.cfg.WorkingDir, prompt.Detect(s.fs, s.cfg.WorkingDir, o.now()))
		p, err := NewProvider(ctx, s.cfg, system, s.logger)
		if err != nil {
			return err
		}
		s.provider = p
	}

	hist, err := s.openHistory(ctx)
	if err != nil {
		return err
	}
	s.history = hist

	reg, err := s.buildRegistry(ctx)
	if err != nil {
		return err
	}
	s.registry = reg

	s.agent = agent.New(s.provider, s.history, s.registry,
		agent.WithLogger(s.logger),
		agent.WithMaxSteps(s.cfg.MaxSteps),
		agent.WithHandlerTimeout(s.cfg.ToolTimeout),
		agent.WithToolFailureIsolation(s.cfg.ToolIsolation),
	)
	s.channel = channel.New(s.agent,
		channel.WithPolicy(policy),
		channel.WithLogger(s.logger),
	)

	s.logger.Debug().
		Str("provider", s.provider.Name()).
		Str("model", s.provider.Model()).
		Int("tools", s.registry.Len()).
		Int("history", s.history.Len()).
		Msg("session ready")
	return nil
}

func (s *Session) openHistory(ctx context.Context) (*history.History, error) {
	opts := []history.Option{
		history.WithKey(s.cfg.Session),
		history.WithLogger(s.logger),
	}
	if s.cfg.HistoryDB != "" {
		db, err := store.OpenSQLite(s.cfg.HistoryDB)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db)
		opts = append(opts, history.WithAdapter(db))
	}

	hist := history.New(opts...)
	if err := hist.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return hist, nil
}

func (s *Session) buildRegistry(ctx context.Context) (*tool.Registry, error) {
	toolCfg := tool.Config{
		WorkingDir:   s.cfg.WorkingDir,
		Fs:           s.fs,
		ShellTimeout: s.cfg.ToolTimeout,
		Logger:       s.logger,
	}

	reg := tool.NewRegistry().Add(tool.Defaults(toolCfg)...)
	if s.cfg.EnableProjectTools {
		reg.Add(tool.ProjectTools(toolCfg)...)
	}

	for _, srv := range s.cfg.MCPServers {
		remote, err := mcp.NewRemoteRegistry(ctx, srv.Command, nil, srv.Args...)
		if err != nil {
			return nil, fmt.Errorf("mcp server %s: %w", srv.Name, err)
		}
		s.closers = append(s.closers, remote)
		if err := remote.Attach(reg); err != nil {
			return nil, fmt.Errorf("mcp server %s: %w", srv.Name, err)
		}
		s.logger.Info().Str("server", srv.Name).Int("tools", remote.Len()).Msg("mcp tools attached")
	}
	return reg, nil
}

// Agent returns the session's agent.
func (s *Session) Agent() *agent.Agent { return s.agent }

// Channel returns the session's output channel.
func (s *Session) Channel() *channel.Channel { return s.channel }

// History returns the conversation ledger.
func (s *Session) History() *history.History { return s.history }

// Registry returns the session's tools.
func (s *Session) Registry() *tool.Registry { return s.registry }

// Provider returns the model provider.
func (s *Session) Provider() codison.Provider { return s.provider }

// Logger returns the session's logger.
func (s *Session) Logger() zerolog.Logger { return s.logger }

// Config returns the configuration the session was built from.
func (s *Session) Config() *config.Config { return s.cfg }

// Instruction loads a named instruction file from the working directory.
func (s *Session) Instruction(name string) (string, error) {
	return prompt.LoadInstruction(s.fs, s.cfg.WorkingDir, name)
}

// Instruct adds the named instruction file to the history as a user turn.
func (s *Session) Instruct(ctx context.Context, name string) error {
	content, err := s.Instruction(name)
	if err != nil {
		return err
	}
	return s.history.Add(ctx, codison.UserTurn{Content: content})
}

// Ask runs text to completion and returns the final answer. A non-empty
// instruction is applied with Instruct first.
func (s *Session) Ask(ctx context.Context, text, instruction string) (string, error) {
	if instruction != "" {
		if err := s.Instruct(ctx, instruction); err != nil {
			return "", err
		}
	}

	events, err := s.channel.Stream(ctx, text)
	if err != nil {
		return "", err
	}
	answer, err := output.Collect(events)
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, output.ErrNoResponse) {
		return "", ctxErr
	}
	return answer, err
}

// Close stops the channel and releases the history store and MCP servers.
func (s *Session) Close() error {
	if s.channel != nil {
		s.channel.Stop()
	}
	return s.closeResources()
}

func (s *Session) closeResources() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spetersoncode/codison"
	"github.com/spetersoncode/codison/internal/app"
	"github.com/spetersoncode/codison/internal/config"
	"github.com/spetersoncode/codison/provider/providertest"
)

type harness struct {
	provider *providertest.Scripted
	fs       afero.Fs
	cfg      *config.Config
	out      bytes.Buffer
	errOut   bytes.Buffer
}

func newHarness(turns ...providertest.Turn) *harness {
	return &harness{
		provider: providertest.New(turns...),
		fs:       afero.NewMemMapFs(),
		cfg: &config.Config{
			WorkingDir:    "/work",
			Session:       "default",
			ChannelPolicy: "serialize",
			LogLevel:      "disabled",
			ToolTimeout:   time.Minute,
		},
	}
}

func (h *harness) run(t *testing.T, stdin string, args ...string) error {
	t.Helper()
	cmd := NewRootCmd(
		WithConfigLoader(func() (*config.Config, error) { return h.cfg, nil }),
		WithSessionFactory(func(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app.Session, error) {
			return app.New(ctx, cfg, app.WithProvider(h.provider), app.WithFs(h.fs), app.WithLogger(log))
		}),
	)
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&h.out)
	cmd.SetErr(&h.errOut)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return cmd.ExecuteContext(ctx)
}

func TestRootCommand_OneShot(t *testing.T) {
	t.Run("prints the answer", func(t *testing.T) {
		h := newHarness(providertest.Text("Hel", "lo"))
		require.NoError(t, h.run(t, "", "say", "hi"))

		assert.Equal(t, "Hello\n", h.out.String())
		req := h.provider.Calls()[0].Request
		assert.Equal(t, []codison.Message{codison.UserTurn{Content: "say hi"}}, req.Messages)
	})

	t.Run("instruction file", func(t *testing.T) {
		h := newHarness(providertest.Text("done"))
		require.NoError(t, afero.WriteFile(h.fs, "/work/.codison/instructions/tidy.md", []byte("Keep it tidy."), 0o644))

		require.NoError(t, h.run(t, "", "-i", "tidy", "go"))
		msgs := h.provider.Calls()[0].Request.Messages
		assert.Equal(t, codison.UserTurn{Content: "Keep it tidy."}, msgs[0])
	})

	t.Run("empty answer", func(t *testing.T) {
		h := newHarness(providertest.Turn{})
		err := h.run(t, "", "hi")
		assert.EqualError(t, err, "failed to generate model response")
	})

	t.Run("flag overrides", func(t *testing.T) {
		h := newHarness(providertest.Text("ok"))
		require.NoError(t, h.run(t, "", "-w", "/elsewhere", "--model", "m1", "--provider", "OpenAI", "hi"))

		assert.Equal(t, "/elsewhere", h.cfg.WorkingDir)
		assert.Equal(t, "m1", h.cfg.Model)
		assert.Equal(t, "openai", h.cfg.Provider)
	})
}

func TestRootCommand_REPL(t *testing.T) {
	t.Run("runs prompts until exit", func(t *testing.T) {
		h := newHarness(providertest.Text("first answer"), providertest.Text("second answer"))
		require.NoError(t, h.run(t, "\none\n  \ntwo\nexit\nthree\n"))

		out := h.out.String()
		assert.Contains(t, out, "You: first answer\n")
		assert.Contains(t, out, "second answer")
		assert.Equal(t, 2, h.provider.CallCount())
	})

	t.Run("history and clear", func(t *testing.T) {
		h := newHarness(providertest.Text("hello back"))
		require.NoError(t, h.run(t, "hello\nhistory\nclear\nhistory\nquit\n"))

		out := h.out.String()
		assert.Contains(t, out, "user: hello\nassistant: hello back\n")
		assert.Contains(t, out, "History cleared.")
		assert.Contains(t, out, "History is empty.")
	})

	t.Run("errors go to stderr", func(t *testing.T) {
		h := newHarness()
		require.NoError(t, h.run(t, "hi\n"))

		assert.Contains(t, h.errOut.String(), "[ERROR]: ")
	})

	t.Run("tool requests are shown", func(t *testing.T) {
		h := newHarness(
			providertest.Tools(providertest.ToolCall("c1", "memory", map[string]any{"action": "read"})),
			providertest.Text("remembered"),
		)
		require.NoError(t, h.run(t, "recall\nexit\n"))

		assert.Contains(t, h.out.String(), "[Tool Requested: memory]")
		assert.Contains(t, h.out.String(), "remembered")
	})
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCmd()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "mcp")
}

func TestRootCommand_Version(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "codison version "+version+"\n", out.String())
}

func TestPrintHistory(t *testing.T) {
	var out bytes.Buffer
	printHistory(&out, []codison.Message{
		codison.ToolCallRequest{CallID: "c1", Name: "ls", Args: map[string]any{"path": "."}},
		codison.ToolCallResult{CallID: "c1", Name: "ls", Output: "a\nb"},
	})
	assert.Equal(t, "tool call ls [c1]: {\"path\":\".\"}\ntool result ls [c1]: a b\n", out.String())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
}

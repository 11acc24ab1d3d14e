package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/apresai/newsroom/internal/app"
	"github.com/apresai/newsroom/internal/config"
	"github.com/apresai/newsroom/internal/observability"
	"github.com/apresai/newsroom/internal/tts"
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "newsroom",
	Short: "Produce an outline, narrated audio, cover images, titles and a caption from a theme",
	Long: `newsroom walks a theme and an analytical line through five gated stages:
outline, script and audio, cover images, titles and caption. Every stage
waits for approval or revision notes before the next one runs.`,
	SilenceUsage: true,
	RunE:         runWizard,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("newsroom %s\n", Version)
	},
}

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Run the interactive production wizard (default)",
	RunE:  runWizard,
}

var listVoicesCmd = &cobra.Command{
	Use:   "list-voices",
	Short: "List available voices for all TTS providers",
	RunE:  runListVoices,
}

var (
	flagConfig          string
	flagChat            string
	flagChatModel       string
	flagTTS             string
	flagTTSModel        string
	flagImages          string
	flagLogFile         string
	flagLogLevel        string
	flagVerbose         bool
	flagGeminiAPIKey    string
	flagAnthropicAPIKey string
	flagOpenAIAPIKey    string
)

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(wizardCmd)
	rootCmd.AddCommand(autopilotCmd)
	rootCmd.AddCommand(listVoicesCmd)
	rootCmd.AddCommand(mcpCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Config file (default newsroom.yaml when present)")
	pf.StringVarP(&flagChat, "chat", "m", "", "Chat backend: gemini, claude, openai, nova")
	pf.StringVar(&flagChatModel, "chat-model", "", "Chat model alias or ID (e.g. gemini-pro, sonnet, gpt-4o)")
	pf.StringVarP(&flagTTS, "tts", "T", "", "TTS provider: gemini, gemini-vertex, google")
	pf.StringVar(&flagTTSModel, "tts-model", "", "TTS model ID (e.g. gemini-2.5-flash-preview-tts)")
	pf.StringVar(&flagImages, "images", "", "Image provider: imagen, pollinations")
	pf.StringVar(&flagLogFile, "log-file", "", "Write JSON logs to this file")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Log to stderr instead of drawing progress")
	pf.StringVar(&flagGeminiAPIKey, "gemini-api-key", "", "Gemini API key (overrides GEMINI_API_KEY env var)")
	pf.StringVar(&flagAnthropicAPIKey, "anthropic-api-key", "", "Anthropic API key (overrides ANTHROPIC_API_KEY env var)")
	pf.StringVar(&flagOpenAIAPIKey, "openai-api-key", "", "OpenAI API key (overrides OPENAI_API_KEY env var)")
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig layers command-line flags over the file and environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	override := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	override(&cfg.Chat.Provider, flagChat)
	override(&cfg.Chat.Model, flagChatModel)
	override(&cfg.TTS.Provider, flagTTS)
	override(&cfg.TTS.Model, flagTTSModel)
	override(&cfg.Images.Provider, flagImages)
	override(&cfg.LogLevel, flagLogLevel)
	override(&cfg.Keys.Gemini, flagGeminiAPIKey)
	override(&cfg.Keys.Anthropic, flagAnthropicAPIKey)
	override(&cfg.Keys.OpenAI, flagOpenAIAPIKey)
	return cfg, nil
}

// session is everything a command needs to run productions.
type session struct {
	cfg     *config.Config
	logger  *slog.Logger
	app     *app.App
	closers []func()
}

// openSession loads configuration, sets up logging and tracing and builds
// the app. Logs go to --log-file when set, otherwise to fallback.
func openSession(ctx context.Context, fallback io.Writer) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg}
	logOut := fallback
	if flagLogFile != "" {
		f, err := os.OpenFile(flagLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		s.closers = append(s.closers, func() { f.Close() })
		logOut = f
	}
	s.logger = observability.InitLogger(logOut, observability.ParseLevel(cfg.LogLevel))
	slog.SetDefault(s.logger)

	if observability.TracingEnabled() {
		tp, err := observability.InitTracer(ctx, "newsroom", Version)
		if err != nil {
			s.logger.Warn("Failed to init tracer, continuing without tracing", "error", err)
		} else {
			s.closers = append(s.closers, func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					s.logger.Error("Tracer shutdown error", "error", err)
				}
			})
		}
	}

	if err := config.LoadSecrets(ctx, cfg, s.logger); err != nil {
		s.logger.Warn("Failed to load secrets from Secrets Manager, falling back to env vars", "error", err)
	}

	a, err := app.New(ctx, cfg, s.logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.app = a
	return s, nil
}

func (s *session) Close() {
	if s.app != nil {
		s.app.Close()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func runListVoices(cmd *cobra.Command, args []string) error {
	providers := []struct {
		name  string
		label string
	}{
		{"gemini", "GEMINI (AI Studio and Vertex AI)"},
		{"google", "GOOGLE CLOUD TTS"},
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nAvailable voices:")

	for _, p := range providers {
		voices, err := tts.AvailableVoices(p.name)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "\n  %s\n", p.label)
		fmt.Fprintf(out, "  %s\n", strings.Repeat("─", 50))
		fmt.Fprintf(out, "  %-28s %-12s %-8s %s\n", "ID", "NAME", "GENDER", "DESCRIPTION")
		for _, v := range voices {
			def := ""
			if v.DefaultFor != "" {
				def = fmt.Sprintf(" (default %s)", v.DefaultFor)
			}
			fmt.Fprintf(out, "  %-28s %-12s %-8s %s%s\n", v.ID, v.Name, v.Gender, v.Description, def)
		}
	}
	fmt.Fprintln(out)
	return nil
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/falanarh/lms-sub001/internal/handler"
	appI18n "github.com/falanarh/lms-sub001/internal/i18n"
	"github.com/falanarh/lms-sub001/internal/lms"
	"github.com/falanarh/lms-sub001/internal/model"
	"github.com/falanarh/lms-sub001/internal/session"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "quizagent",
		Short: "Local quiz attempt session agent for the learning platform",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `quizagent --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local HTTP facade for the learner UI",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", "127.0.0.1:7420", "HTTP listen address")
	f.String("db", "quizagent.db", "SQLite session database path")
	f.String("platform-url", "", "Learning platform API base URL (required)")
	f.String("platform-token", "", "Learner's bearer token for the platform API")
	f.StringP("user", "u", "", "Learner user id on the platform (required)")
	f.StringP("lang", "l", "en", "UI language (en, id)")
	f.String("access-password-hash", "", "bcrypt hash guarding the facade (empty disables)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("platform-url")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export locally persisted attempt sessions as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "quizagent.db", "SQLite session database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("QUIZAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("quizagent")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/quizagent")
	v.AddConfigPath("/etc/quizagent")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	platformURL := strings.TrimRight(v.GetString("platform-url"), "/")
	if platformURL == "" {
		return fmt.Errorf("platform-url is required: set --platform-url or QUIZAGENT_PLATFORM_URL")
	}
	userID := v.GetString("user")
	if userID == "" {
		return fmt.Errorf("user is required: set --user or QUIZAGENT_USER")
	}

	store, err := session.NewSQLite(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open session database: %w", err)
	}
	defer store.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	client := lms.New(platformURL, v.GetString("platform-token"), userID)

	h := handler.New(client, store, handler.Config{
		Lang:               lang,
		AccessPasswordHash: v.GetString("access-password-hash"),
	}, nil)
	defer h.Shutdown()

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting quiz session agent",
		"addr", addr,
		"platform_url", platformURL,
		"user", userID,
		"lang", lang,
		"db", v.GetString("db"),
	)
	return http.ListenAndServe(addr, r)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	store, err := session.NewSQLite(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open session database: %w", err)
	}
	defer store.Close()

	sessions, err := store.List()
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	export := model.SessionExport{ExportedAt: time.Now()}
	for _, s := range sessions {
		export.Sessions = append(export.Sessions, model.SessionSnapshot{
			ContentID:      s.ContentID,
			AttemptID:      s.AttemptID,
			StartedAt:      s.StartedAt,
			CapturedAt:     s.CapturedAt,
			TotalQuestions: len(s.QuestionOrder),
			AnsweredCount:  s.AnsweredCount(),
			CurrentIndex:   s.CurrentIndex,
			Session:        *s,
		})
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}

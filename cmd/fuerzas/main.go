package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/fuerzas/internal/codec"
	"github.com/pavelanni/fuerzas/internal/handler"
	appI18n "github.com/pavelanni/fuerzas/internal/i18n"
	"github.com/pavelanni/fuerzas/internal/llm"
	"github.com/pavelanni/fuerzas/internal/llm/prompts"
	"github.com/pavelanni/fuerzas/internal/model"
	"github.com/pavelanni/fuerzas/internal/physics"
	"github.com/pavelanni/fuerzas/internal/quiz"
	"github.com/pavelanni/fuerzas/internal/store"
	"github.com/pavelanni/fuerzas/internal/telemetry"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "fuerzas",
		Short:   "Free-body diagram and forces quiz server",
		Version: version,
	}

	serve := serveCmd()
	root.AddCommand(serve, answersCmd(), verifyCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `fuerzas --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP quiz server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "fuerzas.db", "SQLite database path")
	f.StringP("lang", "l", "es", "Default UI language (es, en)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /fisica)")
	f.Bool("secure-cookies", true, "Set Secure flag on cookies")
	f.String("images-dir", "", "Directory holding the question images, served under /assets/")
	f.String("image-base-url", "", "Public URL prefix for question images (overrides --images-dir)")
	f.String("course", "", "Course name recorded in result exports")
	f.Duration("session-ttl", 7*24*time.Hour, "Discard quiz sessions idle for longer than this at startup")
	f.String("llm-url", "", "OpenAI-compatible API base URL; empty disables review feedback")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("feedback-tone", string(prompts.Standard), "Feedback prompt variant (brief, standard, detailed)")
	f.String("admin-password", "", "Initial admin password (or set FUERZAS_ADMIN_PASSWORD)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func answersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "answers",
		Short: "Print the questions and expected answers for a key",
		Args:  cobra.NoArgs,
		RunE:  runAnswers,
	}
	f := cmd.Flags()
	f.StringP("key", "k", "", "Quiz key (required)")
	f.Bool("questions", false, "Also print the question texts")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify FILE...",
		Short: "Check the integrity of grading files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runVerify,
	}
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export issued results as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "fuerzas.db", "SQLite database path")
	f.Bool("with-payload", false, "Include the base64 grading files")
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

	v.SetEnvPrefix("FUERZAS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("fuerzas")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/fuerzas")
	v.AddConfigPath("/etc/fuerzas")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "fuerzas", version)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}()

	// Open database.
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Seed default admin user if no users exist.
	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if course := v.GetString("course"); course != "" {
		if err := db.SetMetadata(store.MetaCourse, course); err != nil {
			return fmt.Errorf("set course: %w", err)
		}
	}
	cleanup(db, v.GetDuration("session-ttl"))

	// Initialize i18n.
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	tone := strings.ToLower(strings.TrimSpace(v.GetString("feedback-tone")))
	if !prompts.IsValidVariant(tone) {
		slog.Warn("invalid feedback-tone, using standard", "tone", tone)
		tone = string(prompts.Standard)
	}
	llmClient, err := newLLMClient(ctx, v, tone)
	if err != nil {
		return err
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	quizCfg := model.QuizConfig{
		BasePath:      basePath,
		SecureCookies: v.GetBool("secure-cookies"),
		ImagesDir:     v.GetString("images-dir"),
		ImageBaseURL:  v.GetString("image-base-url"),
		FeedbackTone:  tone,
	}

	h := handler.New(db, quiz.New(), llmClient, quizCfg)
	for _, img := range h.UnresolvedImages() {
		slog.Warn("question image cannot be served; set --images-dir or --image-base-url", "image", img)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware)

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	srv := &http.Server{
		Addr:              v.GetString("addr"),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("starting server",
		"addr", srv.Addr,
		"lang", lang,
		"base_path", basePath,
		"images_dir", quizCfg.ImagesDir,
		"image_base_url", quizCfg.ImageBaseURL,
		"feedback", llmClient != nil,
		"version", version,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

// newLLMClient returns nil when no endpoint is configured. A failed health
// check is logged and the client is kept; each feedback request reports its
// own errors.
func newLLMClient(ctx context.Context, v *viper.Viper, tone string) (*llm.Client, error) {
	url := v.GetString("llm-url")
	if url == "" {
		slog.Info("LLM feedback disabled")
		return nil, nil
	}
	c, err := llm.New(url, v.GetString("llm-key"), v.GetString("llm-model"), tone)
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := c.Ping(pctx); err != nil {
		slog.Warn("LLM health check failed", "url", url, "model", v.GetString("llm-model"), "error", err)
	} else {
		slog.Info("LLM endpoint OK", "url", url, "model", v.GetString("llm-model"))
	}
	return c, nil
}

func cleanup(db *store.Store, ttl time.Duration) {
	if ttl > 0 {
		n, err := db.CleanupStaleSessions(time.Now().Add(-ttl))
		if err != nil {
			slog.Warn("failed to clean up quiz sessions", "error", err)
		} else if n > 0 {
			slog.Info("removed stale quiz sessions", "count", n)
		}
	}
	if err := db.CleanupExpiredAuthSessions(); err != nil {
		slog.Warn("failed to clean up auth sessions", "error", err)
	}
	if counts, err := db.CountSessionsByState(); err == nil {
		slog.Info("stored quiz sessions",
			"registration", counts[model.StateRegistration],
			"in_progress", counts[model.StateInProgress],
			"complete", counts[model.StateComplete],
		)
	}
}

func runAnswers(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)

	key, err := quiz.ParseKey(v.GetString("key"))
	if err != nil {
		return err
	}
	expected := physics.ComputeExpectedAnswers(key)
	questions := physics.Questions(key)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Clave: %s\n\n", physics.FormatKey(key))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for n := 1; n <= physics.NumQuestions; n++ {
		value := "-"
		if e := expected[n]; e != nil {
			value = fmt.Sprintf("%.2f", *e)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", n, value, questions[n-1].Image)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if v.GetBool("questions") {
		for _, q := range questions {
			fmt.Fprintf(out, "\n%s\n", q.Text)
		}
	}
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)

	out := cmd.OutOrStdout()
	failed := 0
	for _, path := range args {
		if err := verifyFile(out, path); err != nil {
			fmt.Fprintf(out, "%s: %v\n", path, err)
			failed++
		}
	}
	if failed > 0 {
		cmd.SilenceUsage = true
		return fmt.Errorf("%d of %d files failed verification", failed, len(args))
	}
	return nil
}

func verifyFile(w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	ver, err := codec.Decode(string(data))
	if err != nil {
		return err
	}
	r := ver.Report
	status := "OK"
	if !ver.Valid {
		status = "MODIFIED"
	}
	fmt.Fprintf(w, "%s: %s %q clave=%s %d/%d (%d calificables) %s\n",
		path, status, r.StudentName, physics.FormatKey(r.Key), r.Score, r.Total, r.Gradable, r.Timestamp)
	if !ver.Valid {
		return fmt.Errorf("digest mismatch: stored %s, computed %s", ver.StoredDigest, ver.ComputedDigest)
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportResults(v.GetBool("with-payload"))
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
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
	_, _ = fmt.Fprintln(w)

	slog.Info("exported results", "count", export.NumResults, "output", outPath)
	return nil
}

func seedAdmin(db *store.Store, password string) error {
	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or FUERZAS_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}

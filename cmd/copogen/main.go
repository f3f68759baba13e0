package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/joedanields/Automated-CO-PO/internal/handler"
	appI18n "github.com/joedanields/Automated-CO-PO/internal/i18n"
	"github.com/joedanields/Automated-CO-PO/internal/model"
	"github.com/joedanields/Automated-CO-PO/internal/pipeline"
	"github.com/joedanields/Automated-CO-PO/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "copogen",
		Short: "CO-PO attainment sheet generator",
	}

	serve := serveCmd()
	root.AddCommand(serve, generateCmd(), historyCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `copogen --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP generation server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "copogen.db", "SQLite generation-history database path")
	f.String("templates", "templates", "Directory holding attainment template workbooks")
	f.String("output-dir", "outputs", "Directory for generated attainment sheets")
	f.StringP("lang", "l", "en", "Message language (en, ta)")
	f.Int("max-upload-mb", 16, "Maximum upload size per request in MiB")
	f.String("api-password", "", "API password (or set COPOGEN_API_PASSWORD; empty disables the guard)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one attainment sheet from local evaluation files",
		RunE:  runGenerate,
	}
	f := cmd.Flags()
	f.StringP("regulation", "r", "", "Regulation (R17, R21, R24)")
	f.StringP("category", "c", "", "Course category (theory, analytical, integrated, lab, project)")
	f.StringP("dept-type", "d", "default", "Department type (dept, s&h, default)")
	f.StringToStringP("input", "i", nil, "Input files as kind=path (e.g. IA1=ia1.xlsx, repeatable)")
	f.String("templates", "templates", "Directory holding attainment template workbooks")
	f.String("output-dir", "outputs", "Directory for generated attainment sheets")
	f.String("db", "", "Optional SQLite history database to log the run")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("regulation")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Export the generation history as JSON",
		RunE:  runHistory,
	}
	f := cmd.Flags()
	f.String("db", "copogen.db", "SQLite generation-history database path")
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

	v.SetEnvPrefix("COPOGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("copogen")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/copogen")
	v.AddConfigPath("/etc/copogen")
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

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	outputDir := v.GetString("output-dir")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var passwordHash string
	if pw := v.GetString("api-password"); pw != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash API password: %w", err)
		}
		passwordHash = string(hash)
	}

	gen := &pipeline.Generator{
		TemplateDir: v.GetString("templates"),
		OutputDir:   outputDir,
		History:     db,
	}
	h := handler.New(gen, db, handler.Config{
		OutputDir:       outputDir,
		MaxUploadBytes:  int64(v.GetInt("max-upload-mb")) << 20,
		APIPasswordHash: passwordHash,
	})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"templates", v.GetString("templates"),
		"output_dir", outputDir,
		"lang", lang,
		"password_guard", passwordHash != "",
	)
	return http.ListenAndServe(addr, r)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	gen := &pipeline.Generator{
		TemplateDir: v.GetString("templates"),
		OutputDir:   v.GetString("output-dir"),
	}

	if dbPath := v.GetString("db"); dbPath != "" {
		db, err := store.New(dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		gen.History = db
	}

	files := make(map[model.InputKind]io.Reader)
	for kind, path := range v.GetStringMapString("input") {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s input: %w", kind, err)
		}
		defer f.Close()
		files[canonicalKind(kind)] = f
	}

	res, err := gen.Generate(cmd.Context(), pipeline.Request{
		Regulation: model.Regulation(v.GetString("regulation")),
		Category:   model.Category(v.GetString("category")),
		DeptType:   model.DeptType(v.GetString("dept-type")),
		Files:      files,
	})
	if err != nil {
		return err
	}

	for _, w := range res.Warnings {
		slog.Warn(w)
	}
	fmt.Printf("%s (%d students)\n", res.OutputPath, res.StudentCount)
	return nil
}

// canonicalKind maps the case-insensitive CLI spelling of an input kind to
// its canonical form.
func canonicalKind(s string) model.InputKind {
	kinds := []model.InputKind{
		model.KindIA1, model.KindIA2, model.KindModel, model.KindIntegrated,
		model.KindLab, model.KindReview1, model.KindReview2, model.KindReview3,
	}
	for _, k := range kinds {
		if strings.EqualFold(s, string(k)) {
			return k
		}
	}
	return model.InputKind(s)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportHistory()
	if err != nil {
		return fmt.Errorf("export history: %w", err)
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
	_, _ = fmt.Fprintln(w)

	return nil
}

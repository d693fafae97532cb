package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

var (
	verbose    bool
	configPath string
	listenAddr string
	dbPath     string
	logPath    string

	cfg    Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "unswash",
	Short:         "Discover breathtaking images from Unsplash",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(configPath)
		if err != nil {
			return err
		}
		if listenAddr != "" {
			cfg.Listen = listenAddr
		}
		if dbPath != "" {
			cfg.Database = dbPath
		}
		logger, err = newLogger(cmd.Name() == "browse")
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the gallery API with a sqlite response cache",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var browseCmd = &cobra.Command{
	Use:   "browse [keyword]",
	Short: "Browse photos in the terminal with infinite scroll",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBrowse,
}

var photoCmd = &cobra.Command{
	Use:   "photo [id]",
	Short: "Show the details of one photo",
	Args:  cobra.ExactArgs(1),
	RunE:  runPhoto,
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage gallery server users",
}

var userAddCmd = &cobra.Command{
	Use:   "add [name] [password]",
	Short: "Create or replace a user allowed to query the server",
	Args:  cobra.ExactArgs(2),
	RunE:  runUserAdd,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigFile, "Configuration file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "sqlite database file (default from config)")
	rootCmd.PersistentFlags().StringVar(&logPath, "log-file", "unswash.log", "Log file used while browsing")
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "Listen address (default from config)")

	userCmd.AddCommand(userAddCmd)
	rootCmd.AddCommand(serveCmd, browseCmd, photoCmd, userCmd)
}

func newLogger(toFile bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if toFile {
		config = zap.NewDevelopmentConfig()
		config.OutputPaths = []string{logPath}
		config.ErrorOutputPaths = []string{logPath}
		config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}

func openStore() (*Store, error) {
	if dir := filepath.Dir(cfg.Database); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return NewStore(cfg.Database, logger)
}

func newApi(store *Store) (*UnsplashApi, error) {
	if cfg.Unsplash.AccessKey == "" {
		return nil, errors.New("no Unsplash access key: set unsplash.com.access in the config or UNSPLASH_ACCESS_KEY")
	}
	var reqCache *ReqCache
	if store != nil {
		reqCache = NewReqCache(store, logger)
	}
	return NewUnsplashApi(&cfg, reqCache, logger), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	api, err := newApi(store)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           NewServer(&cfg, api, store, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return api.cache.Run(ctx, time.Hour)
	})
	group.Go(func() error {
		logger.Info("starting server", zap.String("addr", cfg.Listen))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func runBrowse(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	api, err := newApi(store)
	if err != nil {
		return err
	}

	keyword := ""
	if len(args) == 1 {
		keyword = args[0]
	}
	gallery := NewGallery(api, logger)
	defer gallery.Close()
	tracker := NewViewportTracker(ViewportMetrics{})

	model := newBrowseModel(gallery, tracker, keyword)
	unsubscribeViewport := tracker.Subscribe(model.relayout)
	defer unsubscribeViewport()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	unsubscribeGallery := gallery.Subscribe(func(Snapshot) {
		program.Send(snapshotMsg{})
	})
	defer unsubscribeGallery()
	gallery.OnScrollTop(func() {
		program.Send(scrollTopMsg{})
	})

	_, err = program.Run()
	return err
}

func runPhoto(cmd *cobra.Command, args []string) error {
	api, err := newApi(nil)
	if err != nil {
		return err
	}
	raw, err := api.Photo(cmd.Context(), args[0])
	if err != nil {
		logger.Debug("photo lookup failed", zap.Error(err))
		return errors.New(MissingImageMessage)
	}
	res := Normalize(raw)
	if !res.Valid || res.Image.ExternalLink == "" {
		return errors.New(MissingImageMessage)
	}
	printPhoto(cmd.OutOrStdout(), res.Image)
	return nil
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.AddUser(args[0], args[1], 1); err != nil {
		return fmt.Errorf("add user %s: %w", args[0], err)
	}
	logger.Info("user added", zap.String("user", args[0]))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

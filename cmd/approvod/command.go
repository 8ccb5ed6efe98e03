package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"path"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/viant/afs"
	"github.com/viant/approvo"
	"github.com/viant/approvo/errs"
	"github.com/viant/approvo/logger"
	"github.com/viant/approvo/service/definition"
	"github.com/viant/approvo/service/rollback"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type cli struct {
	viper  *viper.Viper
	config *approvo.Config
}

func newRootCommand() *cobra.Command {
	c := &cli{viper: viper.New()}
	root := &cobra.Command{
		Use:           "approvod",
		Short:         "Approval and review workflow engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config-file", "", "Path to config file.")
	root.AddCommand(c.serveCommand(), c.validateCommand())
	return root
}

func (c *cli) serveCommand() *cobra.Command {
	defaults := approvo.DefaultConfig()
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Serve the REST API",
		PreRunE: c.setupConfig,
		RunE:    c.serve,
	}
	flags := cmd.Flags()
	flags.String("addr", defaults.HTTP.Addr, "http listen address")
	flags.String("store-backend", defaults.Store.Backend, "storage backend: memory, fs or redis")
	flags.String("store-path", defaults.Store.BasePath, "base path of the fs backend")
	flags.String("redis-addr", strings.Join(defaults.Store.Redis.Addrs, ","), "comma separated list of redis host:port")
	flags.String("namespace", defaults.Store.Redis.Namespace, "namespace used in redis storage")
	flags.String("queue", string(defaults.Events.Queue), "notification queue: memory or fs")
	flags.String("directory-url", defaults.Directory.URL, "organizational directory document")
	flags.String("log-level", defaults.Log.Level, "log level")
	flags.Bool("tracing", defaults.Tracing.Enabled, "export spans to stdout")
	bindings := map[string]string{
		"http.addr":             "addr",
		"store.backend":         "store-backend",
		"store.basePath":        "store-path",
		"store.redis.namespace": "namespace",
		"events.queue":          "queue",
		"directory.url":         "directory-url",
		"log.level":             "log-level",
		"tracing.enabled":       "tracing",
	}
	for key, name := range bindings {
		_ = c.viper.BindPFlag(key, flags.Lookup(name))
	}
	return cmd
}

// setupConfig merges defaults, the optional config file, APPROVO_ environment
// variables and flags, in increasing precedence.
func (c *cli) setupConfig(cmd *cobra.Command, _ []string) error {
	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	c.viper.SetEnvPrefix("approvo")
	c.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	c.viper.AutomaticEnv()
	if configFile != "" {
		c.viper.SetConfigFile(configFile)
		if err = c.viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("failed to read config %s: %w", configFile, err)
			}
		}
	}
	config := approvo.DefaultConfig()
	if err = c.viper.Unmarshal(config); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	if cmd.Flags().Changed("redis-addr") {
		addrs, _ := cmd.Flags().GetString("redis-addr")
		config.Store.Redis.Addrs = strings.Split(addrs, ",")
	}
	if err = config.Validate(); err != nil {
		return err
	}
	c.config = config
	return nil
}

func (c *cli) serve(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	srv, err := approvo.New(approvo.WithConfig(c.config))
	if err != nil {
		return err
	}
	if err = srv.Bootstrap(ctx); err != nil {
		return err
	}
	if err = srv.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case err = <-srv.Done():
		if err != nil {
			logger.Error("http server failed", zap.Error(err))
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if stopErr := srv.Stop(shutdownCtx); stopErr != nil && err == nil {
		err = stopErr
	}
	return err
}

func (c *cli) validateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate definition or pipeline template documents",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "definition FILE...",
		Short: "Validate approval definitions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateAll(cmd.Context(), cmd.OutOrStdout(), args, validateDefinition)
		},
	}, &cobra.Command{
		Use:   "template FILE...",
		Short: "Validate pipeline templates",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateAll(cmd.Context(), cmd.OutOrStdout(), args, validateTemplate)
		},
	})
	return cmd
}

type validator func(ctx context.Context, fs afs.Service, URL string) error

func validateAll(ctx context.Context, w io.Writer, URLs []string, fn validator) error {
	if ctx == nil {
		ctx = context.Background()
	}
	fs := afs.New()
	failed := 0
	for _, URL := range URLs {
		err := fn(ctx, fs, URL)
		if err == nil {
			fmt.Fprintf(w, "ok\t%s\n", URL)
			continue
		}
		failed++
		fmt.Fprintf(w, "invalid\t%s\n", URL)
		var issues *errs.ValidationError
		if !errors.As(err, &issues) {
			fmt.Fprintf(w, "\t%v\n", err)
			continue
		}
		keys := make([]string, 0, len(issues.Fields))
		for key := range issues.Fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(w, "\t%s: %s\n", key, issues.Fields[key])
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents are invalid", failed, len(URLs))
	}
	return nil
}

func validateDefinition(ctx context.Context, fs afs.Service, URL string) error {
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return err
	}
	def, err := definition.DecodeYAML(data)
	if err != nil {
		return err
	}
	if def.ID == "" {
		name := path.Base(URL)
		def.ID = name[:len(name)-len(path.Ext(name))]
	}
	def.ApplyDefaults()
	return def.Validate()
}

func validateTemplate(ctx context.Context, fs afs.Service, URL string) error {
	_, err := rollback.LoadTemplate(ctx, fs, URL)
	return err
}

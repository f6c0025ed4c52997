package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rajasatyajit/CommentIntel/internal/logger"
	"github.com/rajasatyajit/CommentIntel/internal/taxonomy"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:   "commentctl",
		Short: "Offline customer comment analysis",
		Long: `commentctl classifies marketplace customer comments into business categories,
scores the negative ones and prints prioritised action plans, without a server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(cmd, v, cfgFile)
		},
	}

	// Global flags
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./commentctl.yaml)")
	root.PersistentFlags().String("taxonomy", "", "taxonomy YAML file (default: embedded taxonomy)")
	root.PersistentFlags().Int("workers", 0, "classification workers (default: GOMAXPROCS)")
	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "text", "log format (text, json)")

	// Bind flags to viper
	_ = v.BindPFlag("taxonomy", root.PersistentFlags().Lookup("taxonomy"))
	_ = v.BindPFlag("workers", root.PersistentFlags().Lookup("workers"))
	_ = v.BindPFlag("logging.level", root.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("logging.format", root.PersistentFlags().Lookup("log-format"))

	// Add commands
	root.AddCommand(analyzeCmd(v))
	root.AddCommand(classifyCmd(v))
	root.AddCommand(categoriesCmd(v))
	root.AddCommand(validateCmd(v))
	root.AddCommand(versionCmd())

	return root
}

func main() {
	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("commentctl")
		v.SetConfigType("yaml")
	}

	// Environment variables
	v.SetEnvPrefix("COMMENTCTL")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger.InitWriter(cmd.ErrOrStderr(), v.GetString("logging.level"), v.GetString("logging.format"))
	return nil
}

// loadTaxonomy reads the configured taxonomy or the embedded default
func loadTaxonomy(v *viper.Viper) (*taxonomy.Taxonomy, error) {
	if path := v.GetString("taxonomy"); path != "" {
		return taxonomy.Load(path)
	}
	return taxonomy.Default()
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "commentctl %s\n", version)
		},
	}
}

package cmd

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configcmd "github.com/tphakala/navpreview/cmd/config"
	"github.com/tphakala/navpreview/cmd/devices"
	"github.com/tphakala/navpreview/cmd/serve"
	"github.com/tphakala/navpreview/cmd/simulate"
	"github.com/tphakala/navpreview/internal/conf"
	"github.com/tphakala/navpreview/internal/logger"
)

var (
	centralLogger *logger.CentralLogger
	loggerMu      sync.Mutex
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "navpreview",
		Short:         "Navigation preview playback coordinator",
		Long:          "Coordinates the paired navigation preview players, switching between pre-recorded clips and the live camera.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		rootCmd.PrintErrf("error setting up flags: %v\n", err)
	}

	rootCmd.AddCommand(
		serve.Command(settings),
		simulate.Command(settings),
		devices.Command(),
		configcmd.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Flags were parsed into settings directly; re-check what they may have changed
		if err := conf.ValidateSettings(settings); err != nil {
			return err
		}
		return initLogger(settings)
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Main.Debug, "debug", "d", viper.GetBool("main.debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Main.Locale, "locale", viper.GetString("main.locale"), "Display language for titles (en, zh)")

	if err := viper.BindPFlag("main.debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	if err := viper.BindPFlag("main.locale", rootCmd.PersistentFlags().Lookup("locale")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

// initLogger builds the process logger once flags are applied, so --debug
// takes effect.
func initLogger(settings *conf.Settings) error {
	if settings.Main.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	cl, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}
	logger.SetGlobal(cl)

	loggerMu.Lock()
	centralLogger = cl
	loggerMu.Unlock()
	return nil
}

// CloseLogger flushes and closes the process logger, if one was built.
func CloseLogger() {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if centralLogger != nil {
		_ = centralLogger.Close()
		centralLogger = nil
	}
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	jsonitor "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/tansive/httprpc/internal/common/logtrace"
)

var (
	// Global flags
	jsonOutput bool
	configFile string
	envFiles   []string
	logLevel   string
	traceCalls bool
)

var ErrAlreadyHandled = errors.New("already handled")

var okLabel = color.New(color.FgGreen)
var errorLabel = color.New(color.FgRed)

var json = jsonitor.ConfigCompatibleWithStandardLibrary

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "httprpc [command] [flags]",
	Short: "httprpc - call remote HTTP endpoints described by method descriptors",
	Long: `httprpc calls remote HTTP endpoints the way a generated client would.
Methods are either declared in YAML method files or described ad hoc with flags.
Endpoint urls are resolved from the configuration file, .env files and the environment.

Examples:
  # Call a method declared in a method file
  httprpc call -f payments.yaml pay --arg amount=100 --sign-key-file key.pem

  # Ad hoc GET with a path placeholder
  httprpc call --url 'https://api.example.com/users/{id}' --path id=42

  # List configured endpoints
  httprpc endpoints`,
	PersistentPreRun: preRunHandlePersistents,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "", "", "Path to configuration file to override default")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files consulted for endpoint urls and method file templates")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to the config file or info")
	rootCmd.PersistentFlags().BoolVar(&traceCalls, "trace", false, "Print an OpenTelemetry span for every call to stderr")

	rootCmd.AddCommand(newVersionCmd())
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) {
	rootCmd.SilenceErrors = true // Prevent Cobra from printing the error
	rootCmd.SilenceUsage = true  // Prevent Cobra from printing usage on error

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		if errors.Is(err, ErrAlreadyHandled) {
			os.Exit(1)
		}
		if jsonOutput {
			kv := map[string]string{
				"error": err.Error(),
			}
			printJSON(os.Stdout, kv)
		} else {
			errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// preRunHandlePersistents loads the configuration file and initializes logging before
// command execution
func preRunHandlePersistents(cmd *cobra.Command, args []string) {
	if err := loadSettings(); err != nil {
		errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	level := resolveLogLevel()
	if jsonOutput {
		logtrace.InitLogger(level)
		return
	}
	logtrace.InitLoggerWithWriter(newLogPrinter(os.Stderr), level)
}

// resolveLogLevel picks the --log-level flag, then the config file, then info. Successful
// executions are logged at info.
func resolveLogLevel() string {
	if logLevel != "" {
		return logLevel
	}
	if settings != nil && settings.Client.LogLevel != "" {
		return settings.Client.LogLevel
	}
	return "info"
}

// newVersionCmd creates and returns a new version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of httprpc",
		Run: func(cmd *cobra.Command, args []string) {
			configPath := configFile
			if configPath == "" {
				var err error
				if configPath, err = GetDefaultConfigPath(); err != nil {
					configPath = "unknown"
				}
			}

			if jsonOutput {
				kv := map[string]string{
					"version":     getCLIVersion(),
					"config_file": configPath,
				}
				printJSON(cmd.OutOrStdout(), kv)
			} else {
				cmd.Printf("httprpc %s\n", getCLIVersion())
				cmd.Printf("Config file: %s\n", configPath)
			}
		},
	}
}

// printJSON prints the given value as indented JSON
func printJSON(w io.Writer, data any) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintln(w, string(jsonData))
}

// getCLIVersion returns the current CLI version
func getCLIVersion() string {
	return "v0.1.0"
}

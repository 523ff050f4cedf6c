package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tansive/httprpc/pkg/httprpc"
	"github.com/tansive/httprpc/pkg/httprpc/config"
)

// DefaultConfigFile is the default name of the config file
const DefaultConfigFile = "config.toml"

// settings is the loaded configuration file, nil when none exists
var settings *config.File

// GetDefaultConfigPath returns the default path for the config file
// It uses the OS-specific config directory (e.g., ~/.config/httprpc on Linux)
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "httprpc", DefaultConfigFile), nil
}

// loadSettings loads the configuration file. A missing default file is not an error, a
// missing explicit one is.
func loadSettings() error {
	file := configFile
	explicit := file != ""
	if !explicit {
		var err error
		if file, err = GetDefaultConfigPath(); err != nil {
			return nil
		}
	}

	if _, err := os.Stat(file); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			settings = nil
			return nil
		}
		return fmt.Errorf("unable to read config file: %w", err)
	}

	f, err := config.Load(file)
	if err != nil {
		return fmt.Errorf("unable to load config file %s: %w", file, err)
	}
	settings = f
	return nil
}

// endpointSource resolves url keys from the configuration file first, then from the
// dotenv files and the process environment.
func endpointSource() (httprpc.ConfigSource, error) {
	env, err := config.NewEnvSource(envFiles...)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return env, nil
	}
	return config.Chain{settings, env}, nil
}

// clientOptions builds the client options shared by every command.
func clientOptions() ([]httprpc.ClientOption, error) {
	src, err := endpointSource()
	if err != nil {
		return nil, err
	}
	opts := []httprpc.ClientOption{httprpc.WithConfigSource(src)}
	if settings != nil {
		opts = append(opts, httprpc.WithSettings(settings.Client))
	}
	return opts, nil
}

// endpointsCmd lists the url keys of the configuration file
var endpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "List the endpoints of the configuration file",
	Long: `List the endpoint url keys and urls of the configuration file.

Examples:
  # List endpoints of the default configuration file
  httprpc endpoints

  # List endpoints of a specific file in JSON format
  httprpc endpoints --config ./httprpc.toml -j`,
	Args: cobra.NoArgs,
	RunE: listEndpoints,
}

func init() {
	rootCmd.AddCommand(endpointsCmd)
}

func listEndpoints(cmd *cobra.Command, args []string) error {
	if settings == nil {
		return errors.New("no configuration file found; pass one with --config")
	}

	keys := settings.Endpoints()
	if jsonOutput {
		kv := make(map[string]string, len(keys))
		for _, k := range keys {
			kv[k], _ = settings.Lookup(k)
		}
		printJSON(cmd.OutOrStdout(), kv)
		return nil
	}

	width := 0
	for _, k := range keys {
		width = max(width, len(k))
	}
	for _, k := range keys {
		u, _ := settings.Lookup(k)
		fmt.Fprintf(cmd.OutOrStdout(), "%s%s  %s\n", k, strings.Repeat(" ", width-len(k)), u)
	}
	return nil
}

// Package config resolves CLI flags, environment variables, and an
// optional .env file into the bridge's startup Config.
package config

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/csc-dev/commonsensecoder/errors"
)

const envPrefix = "common_sense_coder"

// Config is the resolved startup configuration.
type Config struct {
	Workspace           string
	InterceptDir        string
	ProgrammingLanguage string
	Verbosity           int
	JSONLogs            bool
}

// BindFlags registers the bridge's CLI flags on cmd and binds them to viper
// under envPrefix so COMMON_SENSE_CODER_* environment variables override
// defaults and are in turn overridden by explicit flags.
func BindFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.Flags()
	flags.String("workspace", "", "workspace root path (required)")
	flags.String("intercept-io", "", "directory to tee LSP/MCP stdio traffic into")
	flags.String("programming-language", "rust", "language quirks to use")
	flags.CountP("verbose", "v", "increase log verbosity (repeatable)")
	flags.Bool("json-logs", false, "emit structured JSON logs instead of the console format")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	_ = v.BindPFlags(flags)
}

// Load reads .env (if present) then resolves Config from viper, which has
// already had flags bound via BindFlags. dotenvPath may be empty, in which
// case no file is loaded.
func Load(v *viper.Viper, dotenvPath string) (*Config, error) {
	if dotenvPath != "" {
		if err := loadDotenv(v, dotenvPath); err != nil {
			return nil, errors.Wrap(err, "load .env file")
		}
	}

	workspace := v.GetString("workspace")
	if workspace == "" {
		return nil, errors.New("--workspace is required")
	}
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve workspace path %q", workspace)
	}

	return &Config{
		Workspace:           abs,
		InterceptDir:        v.GetString("intercept-io"),
		ProgrammingLanguage: v.GetString("programming-language"),
		Verbosity:           v.GetInt("verbose"),
		JSONLogs:            v.GetBool("json-logs"),
	}, nil
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/ahrav/go-dossier/internal/application"
	"github.com/ahrav/go-dossier/internal/ports"
)

// EnvPrefix scopes the environment variables read by the loader.
const EnvPrefix = "DOSSIER"

// compatEnv maps config keys to the environment variables earlier
// deployments used. The DOSSIER_ variable wins when both are set.
var compatEnv = map[string]string{
	"embedding.model":                  "OPENAI_EMBEDDING_MODEL",
	"synthesis.model":                  "OPENAI_CHAT_MODEL",
	"vector_index.pinecone.index_name": "PINECONE_INDEX_NAME",
	"vector_index.pinecone.host":       "PINECONE_HOST",
	"retrieval.namespace":              "PINECONE_NAMESPACE",
	"retrieval.top_k":                  "PINECONE_TOP_K",
}

// ViperLoader implements ports.ConfigLoader. Precedence is flags, then
// environment, then the config file, then application.DefaultConfig.
type ViperLoader struct {
	v *viper.Viper
}

var _ ports.ConfigLoader = (*ViperLoader)(nil)

// NewViperLoader prepares a viper instance with defaults and environment
// bindings. configFile may be empty, in which case
// $HOME/.dossier/config.yaml is used when it exists.
func NewViperLoader(configFile string) (*ViperLoader, error) {
	v := viper.New()

	defaults := flattenSettings(settingsMap(application.DefaultConfig()))
	for _, key := range sortedKeys(defaults) {
		v.SetDefault(key, defaults[key])
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range compatEnv {
		envKey := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".dossier"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, ports.NewConfigError("config", fmt.Errorf("read config: %w", err))
		}
	}

	return &ViperLoader{v: v}, nil
}

// Viper exposes the underlying instance for flag binding.
func (l *ViperLoader) Viper() *viper.Viper { return l.v }

// ConfigFileUsed reports the file that was read, if any.
func (l *ViperLoader) ConfigFileUsed() string { return l.v.ConfigFileUsed() }

// Load decodes the merged settings into config.
func (l *ViperLoader) Load(_ context.Context, config any) error {
	if err := l.v.Unmarshal(config); err != nil {
		return ports.NewConfigError("config", fmt.Errorf("decode config: %w", err))
	}
	return nil
}

// LoadConfig decodes and validates an application.Config.
func (l *ViperLoader) LoadConfig(ctx context.Context) (application.Config, error) {
	var cfg application.Config
	if err := l.Load(ctx, &cfg); err != nil {
		return application.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return application.Config{}, err
	}
	return cfg, nil
}

// Package cli contains the embedctl commands for acquiring and checking the
// embedding model.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	noColor bool
	logger  *slog.Logger
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "embedctl",
	Short: "Embedding model management CLI",
	Long: `embedctl prepares and checks the model used by the embedding service.

Example usage:
  embedctl download            # Fetch the ONNX export into MODEL_DIR
  embedctl verify              # Load the model and encode sample sentences
  embedctl verify --backend hash`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .embedctl.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().String("model-name", "", "model name reported by the service")
	rootCmd.PersistentFlags().String("model-repo", "", "Hugging Face repository of the ONNX export")
	rootCmd.PersistentFlags().String("model-dir", "", "directory holding downloaded models")
	rootCmd.PersistentFlags().Int("dimension", 0, "expected embedding dimension")

	_ = viper.BindPFlag("model.name", rootCmd.PersistentFlags().Lookup("model-name"))
	_ = viper.BindPFlag("model.repo", rootCmd.PersistentFlags().Lookup("model-repo"))
	_ = viper.BindPFlag("model.dir", rootCmd.PersistentFlags().Lookup("model-dir"))
	_ = viper.BindPFlag("model.dimension", rootCmd.PersistentFlags().Lookup("dimension"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model.name", "paraphrase-multilingual-MiniLM-L12-v2")
	v.SetDefault("model.repo", "sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2")
	v.SetDefault("model.dir", modelDirDefault())
	v.SetDefault("model.onnx_file", "onnx/model.onnx")
	v.SetDefault("model.dimension", 384)
	v.SetDefault("model.backend", "hugot")
	v.SetDefault("model.normalize", false)
	v.SetDefault("ollama.url", "http://localhost:11434")
	v.SetDefault("ollama.model", "paraphrase-multilingual")
	v.SetDefault("ollama.timeout", 30)
}

// modelDirDefault honors the same variables as the server.
func modelDirDefault() string {
	for _, key := range []string{"MODEL_DIR", "TRANSFORMERS_CACHE"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return "/app/models"
}

func initConfig() error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	setDefaults(viper.GetViper())
	viper.SetEnvPrefix("EMBEDCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".embedctl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return fmt.Errorf("reading config: %w", err)
		}
	} else {
		logger.Debug("config file loaded", "path", viper.ConfigFileUsed())
	}

	return nil
}

package cli

import (
	"fmt"
	"os"

	"github.com/knights-analytics/hugot"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"kosera-ai-service/internal/adapter/encoder"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the ONNX model into the model directory",
	Long: `Download the configured Hugging Face repository into model.dir so the
server can load it without network access. Existing downloads are kept
unless --force is given.`,
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().String("onnx-file", "", "ONNX file inside the repository")
	downloadCmd.Flags().Bool("force", false, "download even if the model is already present")
	_ = viper.BindPFlag("model.onnx_file", downloadCmd.Flags().Lookup("onnx-file"))
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd.OutOrStdout())
	repo := viper.GetString("model.repo")
	dir := viper.GetString("model.dir")
	force, _ := cmd.Flags().GetBool("force")

	p.Info("Downloading model: %s", repo)
	p.Info("Cache directory: %s", dir)

	if path, err := encoder.ResolveModelPath(dir, repo); err == nil {
		if !force {
			p.Success("Model already present at %s", path)
			return nil
		}
		p.Warning("Overwriting existing model at %s", path)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating model dir: %w", err)
	}

	opts := hugot.NewDownloadOptions()
	opts.OnnxFilePath = viper.GetString("model.onnx_file")

	path, err := hugot.DownloadModel(repo, dir, opts)
	if err != nil {
		p.Error("Download failed")
		return fmt.Errorf("downloading %s: %w", repo, err)
	}

	logger.Debug("model downloaded", "repo", repo, "path", path)
	p.Success("Model downloaded to %s", path)
	p.Info("Run 'embedctl verify' to check the embedding dimension.")
	return nil
}

package cli

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"kosera-ai-service/internal/adapter/encoder"
	"kosera-ai-service/internal/domain"
	"kosera-ai-service/internal/worker"
)

var sampleTexts = []string{
	"Test sentence for model verification",
	"Kos nyaman dekat kampus dengan WiFi dan AC",
	"Rumah kost murah di Jakarta Selatan",
}

var verifyCmd = &cobra.Command{
	Use:   "verify [text...]",
	Short: "Load the model and encode sample sentences",
	Long: `Load the configured encoder the same way the server does, including the
dimension probe, then encode sample sentences and print each vector's
dimension. Extra arguments replace the built-in samples.`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().String("backend", "", "encoder backend (hugot, ollama, hash)")
	verifyCmd.Flags().Duration("timeout", 5*time.Minute, "load timeout")
	_ = viper.BindPFlag("model.backend", verifyCmd.Flags().Lookup("backend"))
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd.OutOrStdout())
	timeout, _ := cmd.Flags().GetDuration("timeout")

	texts := sampleTexts
	if len(args) > 0 {
		texts = args
	}

	info := domain.ModelInfo{
		Name:      viper.GetString("model.name"),
		Dimension: viper.GetInt("model.dimension"),
	}
	loader, err := encoder.NewLoader(encoder.Options{
		Backend:       viper.GetString("model.backend"),
		Name:          info.Name,
		Repo:          viper.GetString("model.repo"),
		Dir:           viper.GetString("model.dir"),
		OnnxFile:      viper.GetString("model.onnx_file"),
		Dimension:     info.Dimension,
		Normalize:     viper.GetBool("model.normalize"),
		OllamaURL:     viper.GetString("ollama.url"),
		OllamaModel:   viper.GetString("ollama.model"),
		OllamaTimeout: time.Duration(viper.GetInt("ollama.timeout")) * time.Second,
	}, logger)
	if err != nil {
		return err
	}

	readiness := domain.NewReadiness(info)
	handle := worker.NewEncoderHandle(readiness, 1, len(texts), logger)
	defer func() { _ = handle.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	backend := viper.GetString("model.backend")
	if backend == encoder.BackendHash {
		p.Warning("The hash backend produces vectors without semantic meaning")
	}
	p.Info("Loading model: %s (%s backend)", info.Name, backend)
	start := time.Now()
	if err := handle.Load(ctx, loader); err != nil {
		p.Error("Model failed to load")
		return err
	}
	p.Success("Model loaded in %s", time.Since(start).Round(time.Millisecond))

	vectors, err := handle.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("encoding samples: %w", err)
	}

	rows := make([][]string, len(texts))
	for i, text := range texts {
		rows[i] = []string{
			truncate(text, 40) + "...",
			strconv.Itoa(len(vectors[i])),
			strconv.FormatFloat(l2Norm(vectors[i]), 'f', 4, 64),
		}
	}
	if err := renderTable(cmd.OutOrStdout(), []string{"text", "dimension", "norm"}, rows); err != nil {
		return err
	}
	p.Success("Embedding dimension: %d", info.Dimension)
	return nil
}

func l2Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package encoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"

	"kosera-ai-service/internal/domain"
)

// HugotEncoder runs a sentence-transformers ONNX export in-process through
// the hugot feature-extraction pipeline, which mean-pools token embeddings.
// L2 normalization is optional.
type HugotEncoder struct {
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
	name     string
}

// HugotOptions locates the model folder. OnnxFile picks one export when the
// folder holds several (model.onnx next to quantized variants); only its base
// name is used.
type HugotOptions struct {
	Name      string
	Repo      string
	Dir       string
	OnnxFile  string
	Normalize bool
}

func NewHugotEncoder(ctx context.Context, opts HugotOptions) (*HugotEncoder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	modelPath, err := ResolveModelPath(opts.Dir, opts.Repo)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath:    modelPath,
		Name:         opts.Name,
		OnnxFilename: onnxFilename(opts.OnnxFile),
	}
	if opts.Normalize {
		config.Options = []hugot.FeatureExtractionOption{pipelines.WithNormalization()}
	}

	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		destroyErr := session.Destroy()
		return nil, errors.Join(fmt.Errorf("failed to create feature extraction pipeline: %w", err), destroyErr)
	}

	return &HugotEncoder{
		session:  session,
		pipeline: pipeline,
		name:     opts.Name,
	}, nil
}

func (e *HugotEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := e.pipeline.RunPipeline(texts)
	if err != nil {
		return nil, fmt.Errorf("hugot pipeline: %w", err)
	}
	return out.Embeddings, nil
}

func (e *HugotEncoder) Version() string {
	return e.name
}

func (e *HugotEncoder) Close() error {
	return e.session.Destroy()
}

// ResolveModelPath finds the model folder under dir. It accepts dir itself
// when it already holds a tokenizer, otherwise the folder name used by
// hugot.DownloadModel for repo.
func ResolveModelPath(dir, repo string) (string, error) {
	candidates := []string{dir}
	if repo != "" {
		candidates = append(candidates, filepath.Join(dir, DownloadFolderName(repo)))
	}
	for _, c := range candidates {
		if _, err := os.Stat(filepath.Join(c, "tokenizer.json")); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("model artifacts not found under %s (repo %s)", dir, repo)
}

// onnxFilename reduces a repository path such as onnx/model.onnx to the base
// name hugot matches against the files it finds under the model folder.
func onnxFilename(path string) string {
	if strings.TrimSpace(path) == "" {
		return ""
	}
	return filepath.Base(path)
}

// DownloadFolderName mirrors the directory name hugot gives a downloaded repo.
func DownloadFolderName(repo string) string {
	return strings.ReplaceAll(repo, "/", "_")
}

var _ domain.VectorEncoder = (*HugotEncoder)(nil)

//go:build llamacpp

package embedding

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/hybridgroup/yzma/pkg/llama"
	"github.com/nvandessel/polaris/internal/vecmath"
)

// llama.Load and llama.Init are process-global and must only happen once.
var (
	libOnce    sync.Once
	libLoadErr error
)

func loadLib(libPath string) error {
	libOnce.Do(func() {
		if err := llama.Load(libPath); err != nil {
			libLoadErr = fmt.Errorf("loading yzma shared library from %q: %w", libPath, err)
			return
		}
		llama.LogSet(llama.LogSilent())
		llama.Init()
	})
	return libLoadErr
}

// LocalEngine embeds text with a local GGUF model via hybridgroup/yzma.
// All model access is serialized; a llama context is created per text and
// freed immediately.
type LocalEngine struct {
	libPath   string
	modelPath string
	gpuLayers int

	mu      sync.Mutex
	model   llama.Model
	vocab   llama.Vocab
	nEmbd   int32
	loadErr error
	once    sync.Once
}

// NewLocalEngine creates a LocalEngine. The model is loaded on first use.
// The shared library directory is cfg.LocalLibPath, or YZMA_LIB when unset.
func NewLocalEngine(cfg Config) (*LocalEngine, error) {
	if cfg.LocalModelPath == "" {
		return nil, fmt.Errorf("local embedding engine needs a model path")
	}
	libPath := cfg.LocalLibPath
	if libPath == "" {
		libPath = os.Getenv("YZMA_LIB")
	}
	return &LocalEngine{
		libPath:   libPath,
		modelPath: cfg.LocalModelPath,
		gpuLayers: cfg.LocalGPULayers,
	}, nil
}

func (e *LocalEngine) loadModel() error {
	e.once.Do(func() {
		if e.libPath == "" {
			e.loadErr = fmt.Errorf("no library path configured (set embedding.local_lib_path or YZMA_LIB)")
			return
		}
		if err := loadLib(e.libPath); err != nil {
			e.loadErr = err
			return
		}

		params := llama.ModelDefaultParams()
		gpuLayers := e.gpuLayers
		if gpuLayers > math.MaxInt32 {
			gpuLayers = math.MaxInt32
		}
		params.NGpuLayers = int32(gpuLayers)

		model, err := llama.ModelLoadFromFile(e.modelPath, params)
		if err != nil {
			e.loadErr = fmt.Errorf("loading model %s: %w", e.modelPath, err)
			return
		}
		if model == 0 {
			e.loadErr = fmt.Errorf("loading model %s: returned null handle", e.modelPath)
			return
		}

		e.model = model
		e.vocab = llama.ModelGetVocab(model)
		e.nEmbd = int32(llama.ModelNEmbd(model))
	})
	return e.loadErr
}

// Embed returns the L2-normalized embedding of text.
func (e *LocalEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.loadModel(); err != nil {
		return nil, fmt.Errorf("local embed: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := llama.Tokenize(e.vocab, text, true, true)

	ctxParams := llama.ContextDefaultParams()
	nTokens := len(tokens) + 64
	if nTokens > math.MaxUint32 {
		nTokens = math.MaxUint32
	}
	ctxParams.NCtx = uint32(nTokens)

	lctx, err := llama.InitFromModel(e.model, ctxParams)
	if err != nil {
		return nil, fmt.Errorf("creating embedding context: %w", err)
	}
	defer func() { _ = llama.Free(lctx) }()

	llama.SetEmbeddings(lctx, true)

	batch := llama.BatchGetOne(tokens)
	if _, err := llama.Decode(lctx, batch); err != nil {
		return nil, fmt.Errorf("decoding tokens: %w", err)
	}

	rawVec, err := llama.GetEmbeddingsSeq(lctx, 0, e.nEmbd)
	if err != nil {
		return nil, fmt.Errorf("getting embeddings: %w", err)
	}

	// rawVec points into memory owned by lctx.
	vec := make([]float32, len(rawVec))
	copy(vec, rawVec)
	vecmath.Normalize(vec)

	return vec, nil
}

// EmbedBatch embeds each text in turn.
func (e *LocalEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// Dimensions loads the model if needed and returns its embedding width.
// Returns 0 when the model cannot be loaded.
func (e *LocalEngine) Dimensions() int {
	if err := e.loadModel(); err != nil {
		return 0
	}
	return int(e.nEmbd)
}

// Name returns the engine name.
func (e *LocalEngine) Name() string { return "local:" + e.modelPath }

// Close releases the model. Does NOT call llama.Close(), which is process-global.
func (e *LocalEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.model != 0 {
		_ = llama.ModelFree(e.model)
		e.model = 0
		e.vocab = 0
		e.nEmbd = 0
		e.once = sync.Once{}
	}
	return nil
}

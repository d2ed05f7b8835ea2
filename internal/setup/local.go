// Package setup installs and detects the dependencies of the local embedding
// provider: the llama.cpp shared libraries and a GGUF embedding model, both
// kept under the polaris home directory.
package setup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hybridgroup/yzma/pkg/download"
)

const (
	// DefaultModelURL is the GGUF embedding model fetched by Install.
	DefaultModelURL = "https://huggingface.co/nomic-ai/nomic-embed-text-v1.5-GGUF/resolve/main/nomic-embed-text-v1.5.Q4_K_M.gguf"

	// DefaultModelDimensions is the vector size DefaultModelURL produces.
	DefaultModelDimensions = 768
)

// Installation describes what Detect found under a base directory.
type Installation struct {
	LibDir    string `json:"lib_dir"`    // empty if the llama.cpp library is missing
	ModelPath string `json:"model_path"` // empty if no .gguf model is present
	Available bool   `json:"available"`
}

// InstallOptions tunes Install.
type InstallOptions struct {
	// Processor selects the llama.cpp build: "cpu" (default), "cuda", "metal" or "vulkan".
	Processor string

	// ModelURL overrides DefaultModelURL.
	ModelURL string
}

// Detect checks baseDir/lib for the llama.cpp library and baseDir/models for
// a GGUF model. The first model in directory order is chosen.
func Detect(baseDir string) Installation {
	var inst Installation

	libDir := filepath.Join(baseDir, "lib")
	if _, err := os.Stat(filepath.Join(libDir, libraryFileName())); err == nil {
		inst.LibDir = libDir
	}

	modelsDir := filepath.Join(baseDir, "models")
	if entries, err := os.ReadDir(modelsDir); err == nil {
		for _, entry := range entries {
			if !entry.IsDir() && filepath.Ext(entry.Name()) == ".gguf" {
				inst.ModelPath = filepath.Join(modelsDir, entry.Name())
				break
			}
		}
	}

	inst.Available = inst.LibDir != "" && inst.ModelPath != ""
	return inst
}

// Install downloads whatever Detect reports missing and returns the
// resulting installation.
func Install(ctx context.Context, baseDir string, opts InstallOptions) (Installation, error) {
	inst := Detect(baseDir)

	if inst.LibDir == "" {
		if err := downloadLibraries(ctx, filepath.Join(baseDir, "lib"), opts.Processor); err != nil {
			return inst, err
		}
	}
	if inst.ModelPath == "" {
		url := opts.ModelURL
		if url == "" {
			url = DefaultModelURL
		}
		if err := downloadModel(ctx, filepath.Join(baseDir, "models"), url); err != nil {
			return inst, err
		}
	}

	inst = Detect(baseDir)
	if !inst.Available {
		return inst, fmt.Errorf("local embedding setup incomplete under %s", baseDir)
	}
	return inst, nil
}

// libraryFileName returns the platform-specific library filename.
func libraryFileName() string {
	switch runtime.GOOS {
	case "darwin":
		return "libllama.dylib"
	case "windows":
		return "llama.dll"
	default:
		return "libllama.so"
	}
}

func downloadLibraries(ctx context.Context, destDir, processor string) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("creating lib directory: %w", err)
	}
	if processor == "" {
		processor = "cpu"
	}

	version, err := download.LlamaLatestVersion()
	if err != nil {
		return fmt.Errorf("getting latest llama.cpp version: %w", err)
	}
	if err := download.GetWithContext(ctx, runtime.GOARCH, runtime.GOOS, processor, version, destDir, download.ProgressTracker); err != nil {
		return fmt.Errorf("downloading llama.cpp %s: %w", version, err)
	}
	return nil
}

func downloadModel(ctx context.Context, destDir, url string) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("creating models directory: %w", err)
	}
	if err := download.GetModelWithContext(ctx, url, destDir, download.ProgressTracker); err != nil {
		return fmt.Errorf("downloading embedding model: %w", err)
	}
	return nil
}

package model

import (
	"fmt"

	"github.com/Brownie44l1/freshness-api/internal/preprocess"
	ort "github.com/yalue/onnxruntime_go"
)

type onnxRunner struct {
	session *ort.DynamicAdvancedSession
}

func newONNXRunner(opts Options) (*onnxRunner, error) {
	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(opts.ModelPath,
		[]string{opts.InputName}, []string{opts.OutputName}, nil)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session from %s: %w", opts.ModelPath, err)
	}

	return &onnxRunner{session: session}, nil
}

func (r *onnxRunner) run(input preprocess.Tensor, outputShape []int64) ([]float32, error) {
	inputTensor, err := ort.NewTensor(ort.NewShape(input.Shape...), input.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(outputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := r.session.Run([]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor}); err != nil {
		return nil, err
	}

	// GetData aliases tensor memory that is freed on return.
	return append([]float32(nil), outputTensor.GetData()...), nil
}

func (r *onnxRunner) close() {
	if r.session != nil {
		r.session.Destroy()
	}
	ort.DestroyEnvironment()
}

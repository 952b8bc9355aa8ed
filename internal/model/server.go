package model

import (
	"errors"
	"fmt"

	"github.com/Brownie44l1/freshness-api/internal/preprocess"
	"gonum.org/v1/gonum/floats"
)

var (
	ErrOutputSize = errors.New("model output does not match label count")
	ErrNoLabels   = errors.New("no class labels")
)

// runner executes one forward pass and returns the raw output scores.
type runner interface {
	run(input preprocess.Tensor, outputShape []int64) ([]float32, error)
	close()
}

// Server holds a loaded model. It is safe for concurrent use: nothing is
// mutated after construction and each call binds its own tensors.
type Server struct {
	runner runner
	labels []string
}

// NewServer loads the ONNX model once; callers share the returned Server.
func NewServer(opts Options) (*Server, error) {
	if len(opts.Labels) == 0 {
		return nil, ErrNoLabels
	}

	r, err := newONNXRunner(opts)
	if err != nil {
		return nil, err
	}
	return newServer(r, opts.Labels), nil
}

func newServer(r runner, labels []string) *Server {
	return &Server{
		runner: r,
		labels: append([]string(nil), labels...),
	}
}

func (s *Server) Labels() []string {
	return append([]string(nil), s.labels...)
}

func (s *Server) Predict(input preprocess.Tensor) (*Prediction, error) {
	output, err := s.runner.run(input, []int64{1, int64(len(s.labels))})
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	return Select(output, s.labels)
}

// Select picks the label at the arg-max of scores. Ties go to the lowest index.
func Select(scores []float32, labels []string) (*Prediction, error) {
	if len(labels) == 0 {
		return nil, ErrNoLabels
	}
	if len(scores) != len(labels) {
		return nil, fmt.Errorf("%w: got %d values for %d labels", ErrOutputSize, len(scores), len(labels))
	}

	values := make([]float64, len(scores))
	byClass := make(map[string]float32, len(scores))
	for i, v := range scores {
		values[i] = float64(v)
		byClass[labels[i]] = v
	}

	maxIdx := floats.MaxIdx(values)

	return &Prediction{
		Class:      labels[maxIdx],
		Index:      maxIdx,
		Confidence: scores[maxIdx],
		Scores:     byClass,
	}, nil
}

func (s *Server) Close() {
	if s.runner != nil {
		s.runner.close()
	}
}

package model

// Prediction is the outcome of one forward pass.
type Prediction struct {
	Class      string             `json:"class"`
	Index      int                `json:"index"`
	Confidence float32            `json:"confidence"`
	Scores     map[string]float32 `json:"scores"`
}

// Options describes how to open the model artifact.
type Options struct {
	ModelPath   string
	LibraryPath string
	InputName   string
	OutputName  string
	Labels      []string
}

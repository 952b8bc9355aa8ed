package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Brownie44l1/freshness-api/internal/config"
	"github.com/Brownie44l1/freshness-api/internal/logger"
	"github.com/Brownie44l1/freshness-api/internal/model"
	"github.com/Brownie44l1/freshness-api/internal/preprocess"
	"github.com/nfnt/resize"
)

const (
	errNoImage  = "No image uploaded"
	errTooLarge = "Image too large"
)

// Classifier is the part of model.Server the handlers need.
type Classifier interface {
	Predict(input preprocess.Tensor) (*model.Prediction, error)
}

type Handler struct {
	classifier     Classifier
	log            *logger.Logger
	imageSize      int
	interp         resize.InterpolationFunction
	maxUploadBytes int64
}

func NewHandler(classifier Classifier, cfg *config.Config, log *logger.Logger) *Handler {
	return &Handler{
		classifier:     classifier,
		log:            log,
		imageSize:      cfg.ImageSize,
		interp:         preprocess.Interpolation(cfg.Interpolation),
		maxUploadBytes: cfg.MaxUploadBytes,
	}
}

type ClassifyResponse struct {
	ClassLabel string `json:"class_label"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Routes registers every endpoint on a new mux, wrapped in CORS.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/classify-freshness", h.ClassifyFreshness)
	return CORS{}.Wrap(mux)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) ClassifyFreshness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "Method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	// Oversized bodies get 413; any other non-multipart body counts as missing.
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.log.Warning("Rejected upload: %v", err)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: errTooLarge})
			return
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: errNoImage})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: errNoImage})
		return
	}
	defer file.Close()

	h.log.Info("Received file: %s, size: %d bytes", header.Filename, header.Size)

	input, format, err := preprocess.FromReader(file, h.imageSize, h.interp)
	if err != nil {
		h.log.Error("Preprocessing error: %v", err)
		if errors.Is(err, preprocess.ErrImageTooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: errTooLarge})
			return
		}
		msg := "Failed to process image"
		if errors.Is(err, preprocess.ErrDecode) {
			msg = "Invalid image data"
		}
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: msg})
		return
	}

	prediction, err := h.classifier.Predict(input)
	if err != nil {
		h.log.Error("Prediction error: %v", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Prediction failed"})
		return
	}

	h.log.Info("Classified %s image as %s (%.3f)", format, prediction.Class, prediction.Confidence)

	writeJSON(w, http.StatusOK, ClassifyResponse{ClassLabel: prediction.Class})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

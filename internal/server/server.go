package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/kiesman99/gridsheet/internal/api"
	"github.com/kiesman99/gridsheet/internal/compose"
	"github.com/kiesman99/gridsheet/internal/sink"
	"github.com/kiesman99/gridsheet/internal/source"
	"github.com/kiesman99/gridsheet/pkg/grid"
)

// DefaultMaxUpload caps the multipart body of a sheet request
const DefaultMaxUpload = 64 << 20

// formField is the multipart field carrying the images, repeated in order
const formField = "images"

// Server implements api.ServerInterface
type Server struct {
	startTime time.Time
	version   string
	maxUpload int64
	maxPixels int
	logger    *log.Logger
}

// NewServer creates a new server instance
func NewServer(version string, maxUpload int64, logger *log.Logger) *Server {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		startTime: time.Now(),
		version:   version,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// SetMaxPixels caps the sheet area a request may ask for; zero keeps the
// grid default.
func (s *Server) SetMaxPixels(n int) {
	s.maxPixels = n
}

// NewRouter mounts the API under /api/v1 with the standard middleware stack.
func NewRouter(s *Server, timeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(timeout))

	// CORS middleware for API access
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		api.HandlerWithOptions(s, api.ChiServerOptions{
			BaseRouter:       r,
			ErrorHandlerFunc: s.paramError,
		})
	})

	// Legacy health endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/v1/health", http.StatusMovedPermanently)
	})

	return r
}

// GetHealth implements the health check endpoint
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	uptime := int(time.Since(s.startTime).Seconds())

	response := api.HealthResponse{
		Status:    api.Healthy,
		Timestamp: time.Now(),
		Uptime:    &uptime,
		Version:   &s.version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("encoding health response", "err", err)
	}
}

// CreateSheet composes the uploaded images and returns the encoded sheet
func (s *Server) CreateSheet(w http.ResponseWriter, r *http.Request, params api.CreateSheetParams) {
	requestID := requestID(r)

	p, format, quality, err := s.sheetOptions(params)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, api.VALIDATIONERROR, err.Error(), &requestID, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, api.INVALIDREQUEST,
			"Expected a multipart/form-data body with image files", &requestID,
			map[string]interface{}{"reason": err.Error()})
		return
	}
	defer r.MultipartForm.RemoveAll()

	images, err := s.decodeUploads(r)
	if err != nil {
		var decodeErr *source.DecodeError
		if errors.As(err, &decodeErr) {
			s.writeErrorResponse(w, http.StatusUnprocessableEntity, api.IMAGEDECODEERROR,
				decodeErr.Error(), &requestID, map[string]interface{}{"file": decodeErr.Path})
			return
		}
		s.handleComposeError(w, err, &requestID)
		return
	}

	canvas, layout, err := compose.New(compose.Options{}).Compose(images, p)
	if err != nil {
		s.handleComposeError(w, err, &requestID)
		return
	}

	var buf bytes.Buffer
	if err := sink.Encode(&buf, canvas, format, quality); err != nil {
		s.handleComposeError(w, err, &requestID)
		return
	}

	s.logger.Info("Composed sheet", "request_id", requestID, "images", len(images),
		"size", layout.Bounds().Size())

	w.Header().Set("Content-Type", sink.ContentType(format))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Request-ID", requestID)
	w.Header().Set("X-Sheet-Rows", strconv.Itoa(layout.Rows))
	w.Header().Set("X-Sheet-Scale", strconv.FormatFloat(layout.ScaleFactor, 'g', -1, 64))

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Error("writing response", "request_id", requestID, "err", err)
	}
}

// sheetOptions merges query parameters over the default layout
func (s *Server) sheetOptions(params api.CreateSheetParams) (grid.Params, imaging.Format, int, error) {
	p := grid.DefaultParams()
	p.MaxPixels = s.maxPixels
	if params.FrameWidth != nil {
		p.FrameWidth = *params.FrameWidth
	}
	if params.PerRow != nil {
		p.PerRow = *params.PerRow
	}
	if params.Padding != nil {
		p.Padding = *params.Padding
	}
	if params.Strict != nil {
		p.RequireUniform = *params.Strict
	}

	format := imaging.PNG
	if params.Format != nil {
		switch *params.Format {
		case api.Png:
		case api.Jpeg:
			format = imaging.JPEG
		default:
			return p, format, 0, fmt.Errorf("format must be one of png, jpeg")
		}
	}

	quality := sink.DefaultQuality
	if params.Quality != nil {
		if *params.Quality < 1 || *params.Quality > 100 {
			return p, format, 0, fmt.Errorf("quality must be between 1 and 100")
		}
		quality = *params.Quality
	}

	return p, format, quality, nil
}

// decodeUploads decodes the image parts in the order they were sent
func (s *Server) decodeUploads(r *http.Request) ([]image.Image, error) {
	files := r.MultipartForm.File[formField]
	if len(files) == 0 {
		return nil, compose.ErrEmptyInput
	}

	images := make([]image.Image, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		img, err := source.Decode(f, fh.Filename)
		f.Close()
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

// handleComposeError maps composition failures onto error responses
func (s *Server) handleComposeError(w http.ResponseWriter, err error, requestID *string) {
	if errors.Is(err, compose.ErrEmptyInput) {
		s.writeErrorResponse(w, http.StatusBadRequest, api.EMPTYINPUT,
			fmt.Sprintf("No images found in form field %q", formField), requestID, nil)
		return
	}

	var layoutErr *grid.LayoutError
	if errors.As(err, &layoutErr) {
		s.writeErrorResponse(w, http.StatusBadRequest, api.INVALIDLAYOUT, layoutErr.Error(), requestID,
			map[string]interface{}{"field": layoutErr.Field, "reason": layoutErr.Reason})
		return
	}

	s.logger.Error("composing sheet", "request_id", *requestID, "err", err)
	s.writeErrorResponse(w, http.StatusInternalServerError, api.INTERNALERROR,
		"Internal server error", requestID, nil)
}

// paramError reports query parameters that could not be bound
func (s *Server) paramError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := requestID(r)
	details := map[string]interface{}{}

	var paramErr *api.InvalidParamFormatError
	if errors.As(err, &paramErr) {
		details["field"] = paramErr.ParamName
	}

	s.writeErrorResponse(w, http.StatusBadRequest, api.VALIDATIONERROR, err.Error(), &requestID, details)
}

// writeErrorResponse writes a standard error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode api.ErrorCode, message string, requestID *string, details map[string]interface{}) {
	response := api.ErrorResponse{
		Error:     errorCode,
		Message:   message,
		RequestId: requestID,
	}

	if details != nil {
		response.Details = &details
	}

	w.Header().Set("Content-Type", "application/json")
	if requestID != nil {
		w.Header().Set("X-Request-ID", *requestID)
	}
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

// requestID reuses the id set by middleware.RequestID or generates one
func requestID(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return uuid.NewString()
}

package http

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"mime"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"callqa-server/pkg/analyzer"
	"callqa-server/pkg/audio"
	"callqa-server/pkg/errors"
	"callqa-server/pkg/latency"
	"callqa-server/pkg/media"
	"callqa-server/pkg/metrics"
	"callqa-server/pkg/realtime/analytics"
	"callqa-server/pkg/repetition"
	"callqa-server/pkg/transcript"
)

// isoTimestamp matches the millisecond UTC timestamps browsers produce
const isoTimestamp = "2006-01-02T15:04:05.000Z"

// dispatchTimeout bounds the asynchronous fan-out of one result
const dispatchTimeout = 10 * time.Second

// analysisResponse is the success body: the result fields inlined between
// the success flag and the response timestamp
type analysisResponse struct {
	Success bool `json:"success"`
	analyzer.Result
	Timestamp string `json:"timestamp"`
}

// analyzeRequest is the JSON form of an analysis request
type analyzeRequest struct {
	Transcript *string         `json:"transcript"`
	Config     json.RawMessage `json:"config"`
}

func timestamp() string {
	return time.Now().UTC().Format(isoTimestamp)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) apiHealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": timestamp(),
		"message":   "Voice Bot QA Analysis API is running",
	})
}

func (s *Server) testConnectionHandler(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("Test connection request received")

	var received interface{} = map[string]interface{}{}
	if body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)); err == nil && len(body) > 0 {
		var decoded interface{}
		if json.Unmarshal(body, &decoded) == nil {
			received = decoded
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"message":      "Connection successful!",
		"timestamp":    timestamp(),
		"receivedData": received,
	})
}

func (s *Server) testSampleHandler(w http.ResponseWriter, r *http.Request) {
	result := s.analyzer.Analyze(transcript.Sample, nil, s.analysis)
	writeJSON(w, http.StatusOK, analysisResponse{
		Success:   true,
		Result:    result,
		Timestamp: timestamp(),
	})
}

// analyzeHandler accepts either a multipart form (transcript, config,
// audioFile) or a JSON body (transcript, config). Audio that cannot be probed
// is dropped and the call is analysed from the transcript alone.
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	limit := s.processor.Config().MaxBytes + s.config.MaxFormMemory
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	var (
		raw       *string
		rawConfig []byte
		data      *audio.Data
		filename  string
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.ErrorResponse(w, s.requestError(err))
			return
		}
		raw = req.Transcript
		rawConfig = configBytes(req.Config)

	default:
		if err := r.ParseMultipartForm(s.config.MaxFormMemory); err != nil && !stderrors.Is(err, http.ErrNotMultipart) {
			s.ErrorResponse(w, s.requestError(err))
			return
		}
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll()
		}
		if values, ok := r.Form["transcript"]; ok && len(values) > 0 {
			raw = &values[0]
		}
		rawConfig = []byte(r.FormValue("config"))
	}

	if raw == nil || *raw == "" {
		s.logger.Warn("Analysis request without a transcript")
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "Valid transcript string is required",
		})
		return
	}

	if r.MultipartForm != nil {
		file, header, err := r.FormFile("audioFile")
		switch {
		case err == nil:
			defer file.Close()
			filename = header.Filename
			var audioErr error
			data, audioErr = s.processUpload(r.Context(), file, filename)
			if audioErr != nil {
				if errors.IsErrorType(audioErr, errors.ErrUnsupportedAudio) || errors.IsErrorType(audioErr, errors.ErrAudioTooLarge) {
					s.ErrorResponse(w, audioErr)
					return
				}
				s.logger.WithError(audioErr).WithField("filename", filename).Warn("Audio processing failed, continuing with transcript-only analysis")
			}
		case stderrors.Is(err, http.ErrMissingFile):
		default:
			s.ErrorResponse(w, s.requestError(err))
			return
		}
	}

	cfg := s.requestConfig(rawConfig)
	s.logger.WithFields(logrus.Fields{
		"transcript_length": len(*raw),
		"has_audio":         data != nil,
	}).Debug("Starting analysis")

	result := s.analyzer.Analyze(*raw, data, cfg)
	s.dispatch("api", filename, &result)

	writeJSON(w, http.StatusOK, analysisResponse{
		Success:   true,
		Result:    result,
		Timestamp: timestamp(),
	})
}

// processUpload stages and probes an uploaded recording, removing the staged
// copy before returning
func (s *Server) processUpload(ctx context.Context, file io.Reader, filename string) (*audio.Data, error) {
	format := media.Extension(filename)

	path, n, err := s.processor.Stage(file, filename)
	if err != nil {
		metrics.RecordUpload(format, "rejected", n)
		return nil, err
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.WithError(err).WithField("path", path).Warn("Failed to remove staged upload")
		}
	}()

	data, err := s.processor.Process(ctx, path, filename)
	if err != nil {
		metrics.RecordUpload(format, "probe_failed", n)
		return nil, err
	}
	metrics.RecordUpload(format, "success", n)
	return data, nil
}

// requestError classifies a failure to read the request body
func (s *Server) requestError(err error) error {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return errors.NewAudioTooLarge(tooLarge.Limit+1, s.processor.Config().MaxBytes)
	}
	return errors.NewInvalidInput("malformed analysis request", map[string]interface{}{
		"cause": err.Error(),
	})
}

// dispatch hands a finished analysis to the analytics dispatcher without
// holding up the response
func (s *Server) dispatch(source, filename string, result *analyzer.Result) {
	if s.dispatcher == nil {
		return
	}

	event := &analytics.AnalysisEvent{
		Source:     source,
		Filename:   filename,
		Result:     result,
		ReceivedAt: time.Now(),
	}

	s.inflight.Add(1)
	s.panics.SafeGo("analytics_dispatch", func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		s.dispatcher.HandleAnalysis(ctx, event)
	})
}

func configBytes(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	// the config may itself arrive as a JSON-encoded string
	var nested string
	if json.Unmarshal(raw, &nested) == nil {
		return []byte(nested)
	}
	return raw
}

// requestConfig overlays the request's config object on the server defaults.
// Numbers may be sent as JSON numbers or numeric strings; anything that does
// not parse keeps the default.
func (s *Server) requestConfig(raw []byte) analyzer.Config {
	cfg := s.analysis
	if len(strings.TrimSpace(string(raw))) == 0 {
		return cfg
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		s.logger.WithError(err).Warn("Ignoring malformed analysis config")
		return cfg
	}

	setFloat := func(key string, dst *float64) {
		if v, ok := numberField(fields[key]); ok && v > 0 {
			*dst = v
		}
	}
	setFloat("silenceThreshold", &cfg.SilenceThreshold)
	setFloat("idealCallDurationMin", &cfg.IdealCallDurationMin)
	setFloat("idealCallDurationMax", &cfg.IdealCallDurationMax)
	setFloat("repetitionSimilarityThreshold", &cfg.RepetitionSimilarityThreshold)
	setFloat("responseTimeThreshold", &cfg.ResponseTimeThreshold)

	if mode, ok := fields["repetitionMode"].(string); ok && mode != "" {
		cfg.RepetitionMode = repetition.Mode(mode)
	}
	if mode, ok := fields["latencyMode"].(string); ok && mode != "" {
		cfg.LatencyMode = latency.Mode(mode)
	}
	return cfg
}

func numberField(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Package api provides the nexotax run API and its HTTP handler.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sboehler/nexotax/lib/config"
	"github.com/sboehler/nexotax/lib/model/transaction"
	"github.com/sboehler/nexotax/lib/nexo"
	"github.com/sboehler/nexotax/lib/report"
	"github.com/sboehler/nexotax/lib/tax"
)

// maxBody limits the size of a request body.
const maxBody = 64 << 20

// Request is a run request. CSV holds the contents of one or more exports.
type Request struct {
	CSV   []string `json:"csv"`
	Years []int    `json:"years"`
	Audit bool     `json:"audit"`
}

// Response is the result of a run.
type Response struct {
	Console    string            `json:"console"`
	Log        string            `json:"log,omitempty"`
	AuditFiles map[string]string `json:"audit_files,omitempty"`
	// Error holds a fatal processing error. The console output then holds
	// the years completed before it.
	Error string `json:"error,omitempty"`
}

// Validate checks the request before any processing.
func (req *Request) Validate() error {
	if len(req.CSV) == 0 {
		return errors.New("no CSV content")
	}
	if len(req.Years) == 0 {
		return errors.New("no years requested")
	}
	for _, y := range req.Years {
		if y < 1970 || y > 9999 {
			return fmt.Errorf("invalid year %d", y)
		}
	}
	return nil
}

// Runner runs requests. The zero value uses the default configuration.
type Runner struct {
	Config *config.Config
}

// Run validates and processes the request. Errors in the input are
// returned as errors, fatal processing errors are reported in the response.
func (r *Runner) Run(req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	rows, err := readAll(req.CSV)
	if err != nil {
		return nil, err
	}
	cfg := r.Config
	if cfg == nil {
		cfg = config.Default()
	}
	var logs bytes.Buffer
	engine, err := tax.New(cfg, newLogger(&logs))
	if err != nil {
		return nil, err
	}
	rep, runErr := engine.Run(rows, tax.Options{Years: req.Years, Audit: req.Audit})
	res := new(Response)
	if runErr != nil {
		res.Error = runErr.Error()
	}
	var console bytes.Buffer
	if err := (&report.Console{}).Render(rep, &console); err != nil {
		return nil, err
	}
	if req.Audit {
		res.AuditFiles = make(map[string]string)
		for _, y := range rep.Years {
			files, err := report.AuditFiles(y)
			if err != nil {
				return nil, err
			}
			for name, content := range files {
				res.AuditFiles[name] = string(content)
			}
		}
	}
	res.Console = console.String()
	res.Log = logs.String()
	return res, nil
}

func readAll(contents []string) ([]*transaction.Raw, error) {
	var (
		rows []*transaction.Raw
		errs error
	)
	for i, content := range contents {
		rs, err := nexo.Read(strings.NewReader(content), fmt.Sprintf("file %d", i+1))
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		rows = append(rows, rs...)
	}
	return rows, errs
}

// newLogger creates a logger writing plain messages to buf.
func newLogger(buf *bytes.Buffer) *zap.Logger {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	enc.CallerKey = ""
	return zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(buf), zap.InfoLevel))
}

// Handler serves the run API.
type Handler struct {
	Runner *Runner
	Logger *zap.Logger
}

// New creates a handler.
func New(cfg *config.Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Runner: &Runner{Config: cfg}, Logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/run" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}
	res, err := h.Runner.Run(&req)
	if err != nil {
		h.Logger.Info("rejected request", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if res.Error != "" {
		h.Logger.Warn("run failed", zap.String("error", res.Error))
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		h.Logger.Error("writing response", zap.Error(err))
	}
}

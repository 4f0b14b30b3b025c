/*
 * Copyright 2020 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 *     Unless required by applicable law or agreed to in writing, software
 *     distributed under the License is distributed on an "AS IS" BASIS,
 *     WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *     See the License for the specific language governing permissions and
 *     limitations under the License.
 */
package main

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"regexp"
	"time"

	"github.com/google-research/spektri/tools/report"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	signalRequestReg = regexp.MustCompile(`^/signal/([^/]+)/(clean|noisy)\.wav$`)

	indexTemplate = template.Must(template.New("index").Parse(`
<html>
<head>
<title>spektri</title>
</head>
<body>
<p>
<a href="/report.json">report.json</a> <a href="/report.txt">report.txt</a>
</p>
{{range .Entries}}
<div>
<h3>{{.Name}}</h3>
<p>{{.Frequencies}}Hz @ {{.Amplitudes}}</p>
<div>
<label>clean</label>
<audio controls src="/signal/{{.Name}}/clean.wav"></audio>
<a href="/signal/{{.Name}}/clean.wav">Download clean</a>
</div>
<div>
<label>noisy</label>
<audio controls src="/signal/{{.Name}}/noisy.wav"></audio>
<a href="/signal/{{.Name}}/noisy.wav">Download noisy</a>
</div>
</div>
{{end}}
</body>
</html>
`))
)

// server serves a precomputed report and its signals.
type server struct {
	report *report.Report
	width  int
	logger *zap.Logger
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.logger.Warn("request failed", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	http.Error(w, err.Error(), status)
}

func (s *server) renderIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.fail(w, r, http.StatusNotFound, errors.Errorf("no page %q", r.URL.Path))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, s.report); err != nil {
		s.logger.Warn("unable to render index", zap.Error(err))
	}
}

func (s *server) renderJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.report.WriteJSON(w); err != nil {
		s.logger.Warn("unable to render JSON", zap.Error(err))
	}
}

func (s *server) renderText(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.report.WriteText(w, s.width); err != nil {
		s.logger.Warn("unable to render text", zap.Error(err))
	}
}

func (s *server) renderSignal(w http.ResponseWriter, r *http.Request) {
	match := signalRequestReg.FindStringSubmatch(r.URL.Path)
	if match == nil {
		s.fail(w, r, http.StatusBadRequest, errors.Errorf("invalid signal path %q", r.URL.Path))
		return
	}
	if _, found := s.report.Result(match[1]); !found {
		s.fail(w, r, http.StatusNotFound, errors.Errorf("no signal named %q", match[1]))
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	if err := s.report.WriteWAV(w, match[1], match[2]); err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
	}
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/report.json", s.renderJSON)
	mux.HandleFunc("/report.txt", s.renderText)
	mux.HandleFunc("/signal/", s.renderSignal)
	mux.HandleFunc("/", s.renderIndex)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		mux.ServeHTTP(w, r)
		s.logger.Debug("served", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Duration("duration", time.Since(start)))
	})
}

func serve(ctx context.Context, logger *zap.Logger, cfg Config) error {
	rep, err := analyze(ctx, logger, cfg)
	if err != nil {
		return err
	}
	s := &server{
		report: rep,
		width:  cfg.Width,
		logger: logger,
	}
	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: s.handler(),
	}
	errs := make(chan error, 1)
	go func() {
		errs <- httpServer.ListenAndServe()
	}()
	logger.Info(fmt.Sprintf("Starting server. Browse to http://localhost%v", cfg.Listen), zap.String("listen", cfg.Listen))
	select {
	case err := <-errs:
		return errors.Wrap(err, "unable to serve")
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Wrap(httpServer.Shutdown(shutdownCtx), "unable to shut down")
}

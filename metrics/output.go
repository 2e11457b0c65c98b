//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package metrics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/daos-stack/dharness/logging"
)

// WriteText writes all metric families in the text exposition format.
func (h *Harness) WriteText(w io.Writer) error {
	mfs, err := h.Gather()
	if err != nil {
		return errors.Wrap(err, "gathering metrics")
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return errors.Wrapf(err, "writing %s", mf.GetName())
		}
	}
	return nil
}

// WriteTextFile atomically replaces path with the current metrics, in the
// format read by the node exporter textfile collector.
func (h *Harness) WriteTextFile(path string) error {
	var buf bytes.Buffer
	if err := h.WriteText(&buf); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".dharness-metrics-")
	if err != nil {
		return errors.Wrap(err, "creating metrics file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing metrics file")
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ParseText parses text exposition format into metric families.
func ParseText(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return nil, errors.Wrap(err, "parsing metrics")
	}
	return mfs, nil
}

// StartExporter serves the harness metrics on listen until the returned
// function is called. The bound address is returned.
func (h *Harness) StartExporter(log logging.Logger, listen string) (string, func(), error) {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return "", nil, errors.Wrapf(err, "listening on %s", listen)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(h.reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if _, err := fmt.Fprint(w, `<html><head><title>dharness</title></head>`+
			`<body><h1>dharness</h1><p><a href="/metrics">Metrics</a></p></body></html>`); err != nil {
			log.Errorf("metrics index: %s", err)
		}
	})

	srv := &http.Server{Handler: mux}
	go func() {
		log.Infof("metrics exporter listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics exporter stopped: %s", err)
		}
	}()

	return ln.Addr().String(), func() {
		log.Debug("shutting down metrics exporter")
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Noticef("metrics exporter didn't shut down within timeout: %s", err)
		}
	}, nil
}

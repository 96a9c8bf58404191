package main

import (
	"net/http"
	"runtime/coverage"

	"github.com/sirupsen/logrus"
)

// startCoverageServer exposes the binary's coverage counters on a private
// admin port, so integration runs built with -cover can download them without
// stopping the process.
func startCoverageServer() {
	adminMux := http.NewServeMux()

	adminMux.HandleFunc("/_debug/coverage/download", func(w http.ResponseWriter, r *http.Request) {
		logrus.Info("received request to download coverage counter data")

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", `attachment; filename="coverage.out"`)

		if err := coverage.WriteCounters(w); err != nil {
			logrus.WithError(err).Error("error writing coverage counters to response")
		}
	})

	adminMux.HandleFunc("/_debug/coverage/meta/download", func(w http.ResponseWriter, r *http.Request) {
		logrus.Info("received request to download coverage metadata")

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", `attachment; filename="coverage.meta"`)

		if err := coverage.WriteMeta(w); err != nil {
			logrus.WithError(err).Error("error writing coverage metadata to response")
		}
	})

	go func() {
		logrus.WithField("address", "localhost:8089").Info("starting private admin server")
		if err := http.ListenAndServe("localhost:8089", adminMux); err != nil {
			logrus.WithError(err).Error("admin server failed")
		}
	}()
}

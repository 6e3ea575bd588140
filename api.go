/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/julienschmidt/httprouter"
	"github.com/lmittmann/tint"

	"github.com/Seednode/ratebox/ranking"
)

const maxSubmissionBytes = 64 << 10

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type entriesResponse struct {
	Board   string           `json:"board"`
	Entries []ranking.Ranked `json:"entries"`
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(cfg *Config, w http.ResponseWriter, statusCode int, data any, errs chan<- error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	securityHeaders(cfg, w)
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		reportError(errs, err)
	}
}

func serveEntries(cfg *Config, bm *BoardManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		boardID, ok := boardIDFrom(w, r, ps)
		if !ok {
			return
		}

		ranked, err := bm.getHub(boardID).Ranking(r.Context())
		if err != nil {
			cfg.log.Warn("SERVE: Ranking unavailable", "board", boardID, tint.Err(err))
			writeJSON(cfg, w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()}, errs)

			return
		}

		writeJSON(cfg, w, http.StatusOK, entriesResponse{Board: boardID, Entries: ranked}, errs)
	}
}

func submitEntry(cfg *Config, bm *BoardManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		boardID, ok := boardIDFrom(w, r, ps)
		if !ok {
			return
		}

		var sub ranking.Submission

		r.Body = http.MaxBytesReader(w, r.Body, maxSubmissionBytes)
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			writeJSON(cfg, w, http.StatusBadRequest, errorResponse{Error: "invalid JSON"}, errs)

			return
		}

		entry, err := bm.getHub(boardID).Submit(r.Context(), sub)
		switch {
		case err == nil:
			writeJSON(cfg, w, http.StatusCreated, entry, errs)
		case errors.Is(err, ranking.ErrInvalidSubmission):
			writeJSON(cfg, w, http.StatusUnprocessableEntity, errorResponse{
				Error:  ranking.Notice,
				Fields: ranking.FieldErrors(err),
			}, errs)
		default:
			cfg.log.Warn("SERVE: Submission failed", "board", boardID, tint.Err(err))
			writeJSON(cfg, w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()}, errs)
		}
	}
}

// Package api is the HTTP boundary over the day-ledger core. It validates
// request shape, translates core error kinds into HTTP statuses, and exposes
// read-only views. Authentication belongs to the deployment's front proxy,
// not to this layer.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kaizencycle/hive-ledger/pkg/archive"
	"github.com/kaizencycle/hive-ledger/pkg/canonical"
	"github.com/kaizencycle/hive-ledger/pkg/daystore"
	"github.com/kaizencycle/hive-ledger/pkg/ledger"
	"github.com/kaizencycle/hive-ledger/pkg/reward"
	"github.com/kaizencycle/hive-ledger/pkg/signing"
)

// ProblemDetail implements RFC 7807 (Problem Details for HTTP APIs).
// All API error responses use this format.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// Error implements the error interface.
func (p *ProblemDetail) Error() string {
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

// WriteError writes an RFC 7807 Problem Detail JSON response.
func WriteError(w http.ResponseWriter, r *http.Request, status int, title, detail string) {
	problem := &ProblemDetail{
		Type:   fmt.Sprintf("https://hive-ledger.kaizencycle.dev/errors/%d", status),
		Title:  title,
		Status: status,
		Detail: detail,
	}
	if r != nil {
		problem.Instance = r.URL.Path
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

// writeCoreError maps core error kinds onto HTTP statuses.
func writeCoreError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		encErr     *canonical.EncodingError
		storageErr *daystore.StorageError
		incomplete *ledger.IncompleteDayError
		precond    *archive.PreconditionError
		rewardErr  *reward.WriteError
		signErr    *signing.Error
	)
	switch {
	case errors.As(err, &encErr):
		WriteError(w, r, http.StatusBadRequest, "Encoding Error", err.Error())
	case errors.As(err, &incomplete):
		WriteError(w, r, http.StatusConflict, "Incomplete Day", err.Error())
	case errors.As(err, &precond):
		WriteError(w, r, http.StatusConflict, "Archive Precondition Failed", err.Error())
	case errors.As(err, &storageErr):
		WriteError(w, r, http.StatusInternalServerError, "Storage Error", err.Error())
	case errors.As(err, &rewardErr):
		WriteError(w, r, http.StatusInternalServerError, "Reward Write Error", err.Error())
	case errors.As(err, &signErr):
		WriteError(w, r, http.StatusInternalServerError, "Signing Error", err.Error())
	default:
		WriteError(w, r, http.StatusInternalServerError, "Internal Error", err.Error())
	}
}

package handler

import (
	"net/http"
	"time"

	"bank-ledger/internal/accrual"
	"bank-ledger/internal/apperrors"
)

type AccrualHandler struct {
	job *accrual.Job
}

func NewAccrualHandler(job *accrual.Job) *AccrualHandler {
	return &AccrualHandler{job: job}
}

type RunAccrualRequest struct {
	// Date in YYYY-MM-DD; defaults to the current UTC date.
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type RunAccrualResponse struct {
	Date              string                   `json:"calculation_date"`
	AlreadyRun        bool                     `json:"already_run"`
	AccountsProcessed int                      `json:"accounts_processed"`
	TotalInterestPaid string                   `json:"total_interest_paid"`
	Failures          []accrual.AccountFailure `json:"failures,omitempty"`
}

// RunAccrual is the scheduler-facing trigger. It tolerates duplicate and
// late invocations: a date that has already been processed reports
// already_run instead of paying interest twice.
func (h *AccrualHandler) RunAccrual(w http.ResponseWriter, r *http.Request) {
	var req RunAccrualRequest
	if r.ContentLength > 0 {
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}

	forDate := time.Now().UTC()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, apperrors.New(apperrors.InvalidInput, "invalid date format, want YYYY-MM-DD"))
			return
		}
		forDate = parsed
	}

	result, err := h.job.Run(r.Context(), forDate)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RunAccrualResponse{
		Date:              result.Date.Format("2006-01-02"),
		AlreadyRun:        result.AlreadyRun,
		AccountsProcessed: result.AccountsProcessed,
		TotalInterestPaid: result.TotalInterestPaid.StringFixed(2),
		Failures:          result.Failures,
	})
}

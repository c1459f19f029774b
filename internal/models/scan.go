package models

import (
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/entities"
)

// ScanResponse is the scan state as returned by the gateway.
type ScanResponse struct {
	entities.ScanState
	Report *entities.Report `json:"report,omitempty"` // Structured view of Result, when the job is done.
}

// NewScanResponse builds the response for state. A result that cannot be
// parsed is still returned raw, without the report view.
func NewScanResponse(state entities.ScanState) ScanResponse {
	resp := ScanResponse{ScanState: state}
	if state.Status == entities.JobStatusDone && len(state.Result) > 0 {
		if report, err := entities.ParseReport(state.Result); err == nil {
			resp.Report = report
		}
	}
	return resp
}

// SubmitRequest is the body of POST /api/scan.
type SubmitRequest struct {
	Chain        entities.Chain `json:"chain"`         // Target chain.
	TokenAddress string         `json:"token_address"` // Token contract address.
}

// AISummaryRequest is the body of POST /api/scan/ai.
type AISummaryRequest struct {
	Lang entities.Language `json:"lang"` // Summary language, zh or en.
}

// ErrorResponse is the body of every failed gateway call.
type ErrorResponse struct {
	Kind   string `json:"kind"`   // Machine readable error kind.
	Detail string `json:"detail"` // Human readable message.
}

// ScanEvent is pushed over the websocket on every state change.
type ScanEvent struct {
	Type  string       `json:"type"` // Always "scan_state".
	State ScanResponse `json:"state"`
}

package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/exp/slices"
)

// Chain is a network the detection engine can scan.
type Chain string

const (
	ChainEthereum Chain = "ethereum"
	ChainBSC      Chain = "bsc"
	ChainArbitrum Chain = "arbitrum"
	ChainBase     Chain = "base"
)

// SupportedChains lists chains in the order they are offered to users.
var SupportedChains = []Chain{ChainEthereum, ChainBSC, ChainArbitrum, ChainBase}

var chainLabels = map[Chain]string{
	ChainEthereum: "Ethereum",
	ChainBSC:      "BSC",
	ChainArbitrum: "Arbitrum",
	ChainBase:     "Base",
}

// IsSupported reports whether the engine accepts the chain.
func (c Chain) IsSupported() bool {
	return slices.Contains(SupportedChains, c)
}

// IsEVM reports whether addresses on the chain follow the 20-byte hex format.
func (c Chain) IsEVM() bool {
	switch c {
	case ChainEthereum, ChainBSC, ChainArbitrum, ChainBase:
		return true
	}
	return false
}

// Label returns the display name of the chain.
func (c Chain) Label() string {
	if label, ok := chainLabels[c]; ok {
		return label
	}
	return string(c)
}

// JobStatus is the server-reported state of a detection job.
type JobStatus string

const (
	// JobStatusIdle is client-only: no job is tracked.
	JobStatusIdle    JobStatus = "idle"
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

// IsTerminal reports whether no further transitions can happen.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// JobID is the opaque identifier the backend assigns to a detection job.
// The backend may encode it as a JSON string or number.
type JobID string

// UnmarshalJSON accepts both string and numeric identifiers.
func (id *JobID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("job id: %w", err)
		}
		*id = JobID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("job id: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("job id: %w", err)
	}
	*id = JobID(n.String())
	return nil
}

func (id JobID) String() string {
	return string(id)
}

// DetectionTicket is returned by the backend when a job is created.
type DetectionTicket struct {
	JobID  JobID     `json:"job_id"`
	Status JobStatus `json:"status"`
}

// DetectionStatus is one poll response for a job.
type DetectionStatus struct {
	Status JobStatus       `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *string         `json:"error,omitempty"`
}

// ErrorMessage returns the reported error or an empty string.
func (d *DetectionStatus) ErrorMessage() string {
	if d == nil || d.Error == nil {
		return ""
	}
	return *d.Error
}

// Language selects the language of an AI summary.
type Language string

const (
	LanguageChinese Language = "zh"
	LanguageEnglish Language = "en"
)

// IsSupported reports whether the backend can summarize in the language.
func (l Language) IsSupported() bool {
	return l == LanguageChinese || l == LanguageEnglish
}

// ScanState is everything a session knows about its current job.
type ScanState struct {
	JobID            JobID           `json:"job_id,omitempty"`
	Status           JobStatus       `json:"status"`
	Result           json.RawMessage `json:"result,omitempty"`
	Error            string          `json:"error,omitempty"`
	SubmittedAddress string          `json:"submitted_address,omitempty"`
	SubmittedChain   Chain           `json:"submitted_chain,omitempty"`
	AIUsed           bool            `json:"ai_used"`
	AISummary        string          `json:"ai_summary,omitempty"`
	AILang           Language        `json:"ai_lang,omitempty"`
	UpdatedAt        time.Time       `json:"updated_at,omitzero"`
	ExpiresAt        time.Time       `json:"expires_at,omitzero"`
	Stages           []Stage         `json:"stages,omitempty"`
}

// IdleState returns the state of a session without a job.
func IdleState() ScanState {
	return ScanState{Status: JobStatusIdle}
}

// HasJob reports whether the state tracks a job.
func (s ScanState) HasJob() bool {
	return s.JobID != ""
}

// StageState describes one step of the status indicator.
type StageState string

const (
	StagePending  StageState = "pending"
	StageActive   StageState = "active"
	StageComplete StageState = "complete"
	StageFailed   StageState = "failed"
)

// Stage is one step of the queued/running/done indicator.
type Stage struct {
	Key   JobStatus  `json:"key"`
	State StageState `json:"state"`
}

var stageOrder = []JobStatus{JobStatusQueued, JobStatusRunning, JobStatusDone}

// Stages derives the three-step indicator for a status. A failed job marks
// every step as failed; an idle session has no stages.
func Stages(status JobStatus) []Stage {
	if status == JobStatusIdle || status == "" {
		return nil
	}

	current := slices.Index(stageOrder, status)
	stages := make([]Stage, 0, len(stageOrder))
	for idx, key := range stageOrder {
		state := StagePending
		switch {
		case status == JobStatusFailed:
			state = StageFailed
		case status == JobStatusDone:
			state = StageComplete
		case idx < current:
			state = StageComplete
		case idx == current:
			state = StageActive
		}
		stages = append(stages, Stage{Key: key, State: state})
	}
	return stages
}

package api

import (
	"fmt"
	"io"
	"time"
)

// GenerateRequest describes a request sent by [Client.Generate].
type GenerateRequest struct {
	// Model is the model name; it should be a name familiar to Ollama from
	// the library at https://ollama.com/library
	Model string `json:"model"`

	// Prompt is the textual prompt to send to the model.
	Prompt string `json:"prompt"`

	// Stream is always false on the wire. The server answers with a
	// single JSON object instead of newline delimited chunks.
	Stream bool `json:"stream"`
}

// GenerateResponse is the response returned by [Client.Generate].
type GenerateResponse struct {
	// Model is the model name that generated the response.
	Model string `json:"model,omitempty"`

	// CreatedAt is the timestamp of the response.
	CreatedAt time.Time `json:"created_at,omitempty"`

	// Response is the textual response itself.
	Response string `json:"response"`

	// Done specifies if the response is complete.
	Done bool `json:"done,omitempty"`

	// DoneReason is the reason the model stopped generating text.
	DoneReason string `json:"done_reason,omitempty"`

	Metrics
}

// Metrics are the timings the server reports alongside a finished response.
type Metrics struct {
	TotalDuration      time.Duration `json:"total_duration,omitempty"`
	LoadDuration       time.Duration `json:"load_duration,omitempty"`
	PromptEvalCount    int           `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration time.Duration `json:"prompt_eval_duration,omitempty"`
	EvalCount          int           `json:"eval_count,omitempty"`
	EvalDuration       time.Duration `json:"eval_duration,omitempty"`
}

// Summary writes the metrics in the same layout as `ollama run --verbose`.
func (m *Metrics) Summary(w io.Writer) {
	if m.TotalDuration > 0 {
		fmt.Fprintf(w, "total duration:       %v\n", m.TotalDuration)
	}

	if m.LoadDuration > 0 {
		fmt.Fprintf(w, "load duration:        %v\n", m.LoadDuration)
	}

	if m.PromptEvalCount > 0 {
		fmt.Fprintf(w, "prompt eval count:    %d token(s)\n", m.PromptEvalCount)
	}

	if m.PromptEvalDuration > 0 {
		fmt.Fprintf(w, "prompt eval duration: %s\n", m.PromptEvalDuration)
		fmt.Fprintf(w, "prompt eval rate:     %.2f tokens/s\n", float64(m.PromptEvalCount)/m.PromptEvalDuration.Seconds())
	}

	if m.EvalCount > 0 {
		fmt.Fprintf(w, "eval count:           %d token(s)\n", m.EvalCount)
	}

	if m.EvalDuration > 0 {
		fmt.Fprintf(w, "eval duration:        %s\n", m.EvalDuration)
		fmt.Fprintf(w, "eval rate:            %.2f tokens/s\n", float64(m.EvalCount)/m.EvalDuration.Seconds())
	}
}

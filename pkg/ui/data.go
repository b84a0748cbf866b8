package ui

import (
	"encoding/json"
	"io"
	"maps"

	"github.com/arthur-debert/rollout/pkg/errors"
	"gopkg.in/yaml.v3"
)

type errorPayload struct {
	Error   string                 `json:"error" yaml:"error"`
	Code    errors.ErrorCode       `json:"code" yaml:"code"`
	Details map[string]interface{} `json:"details,omitempty" yaml:"details,omitempty"`
}

type messagePayload struct {
	Message string `json:"message" yaml:"message"`
}

// dataRenderer writes results as machine-readable documents.
type dataRenderer struct {
	encode func(v interface{}) error
}

func newJSONRenderer(w io.Writer) *dataRenderer {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return &dataRenderer{encode: encoder.Encode}
}

// newYAMLRenderer separates consecutive documents with "---".
func newYAMLRenderer(w io.Writer) *dataRenderer {
	written := false
	return &dataRenderer{encode: func(v interface{}) error {
		if written {
			if _, err := io.WriteString(w, "---\n"); err != nil {
				return err
			}
		}
		written = true

		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return err
		}
		return encoder.Close()
	}}
}

func (r *dataRenderer) RenderResult(result interface{}) error {
	return r.encode(result)
}

func (r *dataRenderer) RenderError(err error) error {
	payload := errorPayload{
		Error: err.Error(),
		Code:  errors.GetErrorCode(err),
	}

	details := map[string]interface{}{}
	maps.Copy(details, errors.GetErrorDetails(err))
	if cmdErr := errors.Find(err, errors.ErrCommand); cmdErr != nil {
		maps.Copy(details, cmdErr.Details)
	}
	if len(details) > 0 {
		payload.Details = details
	}
	return r.encode(payload)
}

func (r *dataRenderer) RenderMessage(msg string) error {
	return r.encode(messagePayload{Message: msg})
}

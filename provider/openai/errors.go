package openai

import (
	"errors"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/spetersoncode/codison/internal/provider"
)

// wrapError categorizes an OpenAI SDK error by status code. Other errors,
// typically network failures, are returned as-is.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	var header http.Header
	if apiErr.Response != nil {
		header = apiErr.Response.Header
	}
	return provider.Categorize(err, apiErr.StatusCode, header)
}

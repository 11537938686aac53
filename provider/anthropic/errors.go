package anthropic

import (
	"errors"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/spetersoncode/codison/internal/provider"
)

// wrapError categorizes an Anthropic SDK error by status code.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	var header http.Header
	if apiErr.Response != nil {
		header = apiErr.Response.Header
	}
	return provider.Categorize(err, apiErr.StatusCode, header)
}

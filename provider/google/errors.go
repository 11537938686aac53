package google

import (
	"errors"
	"fmt"

	"github.com/spetersoncode/codison/internal/provider"
	"google.golang.org/genai"
)

// BlockedError indicates the request was blocked by content filtering.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("request blocked: %s", e.Reason)
}

func blocked(resp *genai.GenerateContentResponse) error {
	if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return &BlockedError{Reason: string(resp.PromptFeedback.BlockReason)}
	}
	return nil
}

// wrapError categorizes a GenAI error by status code. The SDK does not
// expose response headers, so Retry-After is not available.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	return provider.Categorize(err, apiErr.Code, nil)
}

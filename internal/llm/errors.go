package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Veraticus/invoice-chaser/internal/common"
)

// classifyStatus maps a failed model call onto retry semantics. A zero status
// means the request never got an HTTP response.
func classifyStatus(provider string, status int, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w: %w", provider, common.ErrRateLimit, err)
	case status == 0 || status >= 500:
		return fmt.Errorf("%s: %w: %w", provider, common.ErrTransport, err)
	default:
		return common.Permanent(fmt.Errorf("%s: %w", provider, err))
	}
}

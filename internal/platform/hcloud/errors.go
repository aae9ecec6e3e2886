package hcloud

import (
	"errors"
	"slices"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// hasCode reports whether err is an hcloud API error carrying one of codes.
func hasCode(err error, codes ...hcloud.ErrorCode) bool {
	var apiErr hcloud.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return slices.Contains(codes, apiErr.Code)
}

// isResourceLocked matches errors returned while another action holds the
// resource, e.g. a volume attach still running after server creation.
func isResourceLocked(err error) bool {
	return hasCode(err,
		hcloud.ErrorCodeLocked,
		hcloud.ErrorCodeConflict,
		hcloud.ErrorCodeResourceLocked,
		hcloud.ErrorCodeResourceUnavailable,
	)
}

// isInvalidParameter matches create errors that no retry can fix.
func isInvalidParameter(err error) bool {
	return hasCode(err,
		hcloud.ErrorCodeNotFound,
		hcloud.ErrorCodeInvalidInput,
		hcloud.ErrorCodeInvalidServerType,
	)
}

// isRetryable is true for locks and rate limiting.
func isRetryable(err error) bool {
	return isResourceLocked(err) || IsRateLimited(err)
}

// IsNotFound reports a missing resource.
func IsNotFound(err error) bool { return hasCode(err, hcloud.ErrorCodeNotFound) }

// IsUniquenessError reports a name collision on create, which happens when
// two runs race for the same logical name.
func IsUniquenessError(err error) bool { return hasCode(err, hcloud.ErrorCodeUniquenessError) }

// IsRateLimited reports an exhausted API rate limit.
func IsRateLimited(err error) bool { return hasCode(err, hcloud.ErrorCodeRateLimitExceeded) }

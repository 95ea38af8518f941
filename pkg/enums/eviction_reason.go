package enums

type EvictionReason string

const (
	EvictionReasonMaxAttempts  EvictionReason = "max_attempts"
	EvictionReasonNonRetryable EvictionReason = "non_retryable"
)

var validEvictionReasons = []EvictionReason{
	EvictionReasonMaxAttempts,
	EvictionReasonNonRetryable,
}

func (r EvictionReason) IsValid() bool {
	for _, candidate := range validEvictionReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package workflow

import (
	"math"
	"strings"
	"time"
)

// shouldRetry reports whether policy permits another attempt for a failure
// whose message is errMsg, having already made attempt attempts (0-based).
// cancellation errors are never retried; the caller filters those before
// calling shouldRetry.
func shouldRetry(policy *RetryPolicy, attempt int, errMsg string) bool {
	if policy == nil {
		return false
	}
	if attempt+1 >= policy.MaxAttempts {
		return false
	}
	if len(policy.RetryOn) == 0 {
		return true
	}
	lower := strings.ToLower(errMsg)
	for _, pattern := range policy.RetryOn {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// backoffDelay computes the delay before the next attempt per policy.Backoff.
func backoffDelay(policy *RetryPolicy, attempt int) time.Duration {
	base := time.Duration(policy.BaseDelayMs) * time.Millisecond
	switch policy.Backoff {
	case BackoffLinear:
		return base * time.Duration(attempt+1)
	case BackoffExponential:
		return time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	default: // BackoffFixed and unset
		return base
	}
}

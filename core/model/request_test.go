package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeadlineAcceptsBothWaitFields(t *testing.T) {
	tests := []struct {
		name string
		body string
		want time.Duration
	}{
		{"tier budget", `{"sessionId":"s1","urgency":"NORMAL","severity":3}`, 10 * time.Second},
		{"maxWaitSeconds", `{"sessionId":"s1","urgency":"NORMAL","severity":3,"maxWaitSeconds":2}`, 2 * time.Second},
		{"maxWaitTime", `{"sessionId":"s1","urgency":"NORMAL","severity":3,"maxWaitTime":3}`, 3 * time.Second},
		{"maxWaitSeconds wins", `{"sessionId":"s1","urgency":"NORMAL","severity":3,"maxWaitSeconds":2,"maxWaitTime":3}`, 2 * time.Second},
		{"never above tier", `{"sessionId":"s1","urgency":"HIGH","severity":3,"maxWaitTime":60}`, 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req MatchRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			require.NoError(t, req.Validate())
			if got := req.Deadline(); got != tt.want {
				t.Fatalf("deadline: got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestValidateRejectsNegativeWait(t *testing.T) {
	base := MatchRequest{SessionID: "s1", Urgency: UrgencyNormal, Severity: 3}

	r := base
	r.MaxWaitSeconds = -1
	assert.True(t, errors.Is(r.Validate(), ErrInvalidCriteria))

	r = base
	r.MaxWaitTime = -1
	assert.True(t, errors.Is(r.Validate(), ErrInvalidCriteria))
}

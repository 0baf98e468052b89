package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seed = `responders:
  - id: r1
    name: Sam
    role: RESPONDER
    specialties: [GRIEF]
    languages:
      - code: en
        proficiency: NATIVE
        primary: true
    years_experience: 5
    total_sessions: 200
    average_rating: 4.5
    max_concurrent_sessions: 2
    location:
      country: US
`

func writeFixtures(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "roster.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(seed), 0o644))
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf("profiles:\n  seed: %q\ndecision_log:\n  backend: none\n", seedPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	reqPath := filepath.Join(dir, "request.json")
	req := `{"sessionId":"cli-1","urgency":"NORMAL","severity":4,"requiredSpecialties":["GRIEF"],"location":{"country":"US"}}`
	require.NoError(t, os.WriteFile(reqPath, []byte(req), 0o644))
	return cfgPath, reqPath
}

func TestMatchCommand(t *testing.T) {
	cfg, req := writeFixtures(t)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"match", "--config", cfg, "--env-file", filepath.Join(t.TempDir(), "none.env"), "--request", req})
	require.NoError(t, rootCmd.Execute())

	var res struct {
		Result struct {
			ResponderID string `json:"responderId"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, "r1", res.Result.ResponderID)
}

func TestPlanCommand(t *testing.T) {
	cfg, _ := writeFixtures(t)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"plan", "--config", cfg, "--env-file", filepath.Join(t.TempDir(), "none.env"),
		"--start", "2024-03-06T00:00:00Z", "--hours", "4", "--granularity", "60"})
	require.NoError(t, rootCmd.Execute())

	var plan struct {
		Slots []json.RawMessage `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &plan))
	assert.Len(t, plan.Slots, 4)
}

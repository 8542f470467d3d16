package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/orchestrator/internal/config"
)

func TestLLMConfigValidate(t *testing.T) {
	valid := config.LLMConfig{
		Provider:       "anthropic",
		Model:          "claude-3-opus",
		Timeout:        10 * time.Second,
		MaxContextSize: 200000,
	}
	require.NoError(t, valid.Validate())

	invalid := valid
	invalid.Provider = "openai"
	assert.Error(t, invalid.Validate())
}

func TestDefaultPolicyConfig(t *testing.T) {
	p := config.DefaultPolicyConfig()
	assert.Equal(t, 50, p.ApprovalScoreThreshold)
	assert.True(t, p.AutoMask)
	assert.Equal(t, 5, p.TopKWorkgroups)
	assert.Contains(t, p.BlockedFileTypes, "exe")
}

func TestDefaultTimeoutConfig(t *testing.T) {
	tc := config.DefaultTimeoutConfig()
	assert.Equal(t, 10*time.Second, tc.SensitivityScan)
	assert.Equal(t, 180*time.Second, tc.AnalysisPipeline)
	assert.Equal(t, 3, tc.BackendRetries)
	assert.Equal(t, 20, tc.SummaryThreshold)
}

func TestStoreConfigValidate(t *testing.T) {
	valid := config.StoreConfig{DSN: "postgres://localhost/taskforge", MaxOpenConns: 10}
	require.NoError(t, valid.Validate())

	invalid := config.StoreConfig{MaxOpenConns: 10}
	assert.Error(t, invalid.Validate())
}

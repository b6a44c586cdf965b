package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	var cfg struct {
		TTL      Duration `json:"ttl"`
		Cooldown Duration `json:"cooldown"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"ttl":"5m","cooldown":3000000000}`), &cfg))
	assert.Equal(t, 5*time.Minute, cfg.TTL.Duration)
	assert.Equal(t, 3*time.Second, cfg.Cooldown.Duration)
}

func TestDuration_UnmarshalJSON_Invalid(t *testing.T) {
	var d Duration
	assert.Error(t, json.Unmarshal([]byte(`"five minutes"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`true`), &d))
}

func TestDuration_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(Duration{Duration: 90 * time.Second})
	require.NoError(t, err)
	assert.JSONEq(t, `"1m30s"`, string(b))
}

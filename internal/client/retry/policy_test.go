package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/fieldsync/internal/syncerr"
)

var errNetwork = &syncerr.NetworkError{Op: "save", Err: errors.New("connection reset")}

func newTestPolicy(t *testing.T, cfg Config) *Policy {
	t.Helper()
	p, err := NewPolicy(cfg)
	require.NoError(t, err)
	return p
}

func TestPolicy_ExponentialBackoff(t *testing.T) {
	p := newTestPolicy(t, Config{
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
		MaxAttempts: 5,
	})

	tests := []struct {
		name      string
		attempt   int
		wantAfter time.Duration
		wantRetry bool
	}{
		{name: "first failure", attempt: 1, wantRetry: true, wantAfter: 100 * time.Millisecond},
		{name: "second failure", attempt: 2, wantRetry: true, wantAfter: 200 * time.Millisecond},
		{name: "third failure", attempt: 3, wantRetry: true, wantAfter: 400 * time.Millisecond},
		{name: "fourth failure", attempt: 4, wantRetry: true, wantAfter: 800 * time.Millisecond},
		{name: "ceiling reached", attempt: 5, wantRetry: false},
		{name: "past ceiling", attempt: 9, wantRetry: false},
		{name: "invalid attempt", attempt: 0, wantRetry: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Decide(tt.attempt, errNetwork)
			assert.Equal(t, tt.wantRetry, d.Retry)
			if tt.wantRetry {
				assert.Equal(t, tt.wantAfter, d.After)
			} else {
				assert.Equal(t, GiveUp, d)
			}
		})
	}
}

func TestPolicy_DelayIsCapped(t *testing.T) {
	p := newTestPolicy(t, Config{
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    250 * time.Millisecond,
		MaxAttempts: 10,
	})

	assert.Equal(t, 200*time.Millisecond, p.Decide(2, errNetwork).After)
	assert.Equal(t, 250*time.Millisecond, p.Decide(3, errNetwork).After)
	assert.Equal(t, 250*time.Millisecond, p.Decide(9, errNetwork).After)
}

func TestPolicy_JitterStaysWithinCap(t *testing.T) {
	p := newTestPolicy(t, Config{
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      150 * time.Millisecond,
		MaxAttempts:   10,
		JitterPercent: 50,
	})

	for i := 0; i < 50; i++ {
		d := p.Decide(4, errNetwork)
		require.True(t, d.Retry)
		assert.LessOrEqual(t, d.After, 150*time.Millisecond)
	}
}

func TestPolicy_OnlyNetworkErrorsRetry(t *testing.T) {
	p := newTestPolicy(t, DefaultConfig())

	tests := []struct {
		err  error
		name string
	}{
		{name: "validation", err: &syncerr.ValidationError{Field: "title"}},
		{name: "permission", err: &syncerr.PermissionError{Message: "read-only"}},
		{name: "conflict", err: &syncerr.ConflictError{}},
		{name: "nil", err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, GiveUp, p.Decide(1, tt.err))
		})
	}

	assert.True(t, p.Decide(1, errNetwork).Retry)
}

func TestPolicy_SingleAttemptNeverRetries(t *testing.T) {
	p := newTestPolicy(t, Config{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, MaxAttempts: 1})
	assert.Equal(t, GiveUp, p.Decide(1, errNetwork))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		errMsg  string
		cfg     Config
		wantErr bool
	}{
		{name: "default", cfg: DefaultConfig()},
		{
			name:    "zero base",
			cfg:     Config{MaxDelay: time.Second, MaxAttempts: 3},
			wantErr: true,
			errMsg:  "base delay must be positive",
		},
		{
			name:    "max below base",
			cfg:     Config{BaseDelay: time.Second, MaxDelay: time.Millisecond, MaxAttempts: 3},
			wantErr: true,
			errMsg:  "less than base delay",
		},
		{
			name:    "no attempts",
			cfg:     Config{BaseDelay: time.Millisecond, MaxDelay: time.Second},
			wantErr: true,
			errMsg:  "max attempts must be at least 1",
		},
		{
			name:    "jitter too large",
			cfg:     Config{BaseDelay: time.Millisecond, MaxDelay: time.Second, MaxAttempts: 3, JitterPercent: 101},
			wantErr: true,
			errMsg:  "jitter percent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)

			_, err = NewPolicy(tt.cfg)
			require.NoError(t, err)
		})
	}
}

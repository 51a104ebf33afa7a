package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldCount(t *testing.T) {
	const w = CooldownWindow

	tests := []struct {
		name string
		now  int64
		last int64
		want bool
	}{
		{"never played", 100000, 0, true},
		{"inside window", 250000, 100000, false},
		{"past window", 500000, 100000, true},
		{"exactly at window", 400000, 100000, false},
		{"one ms past window", 400001, 100000, true},
		{"same instant", 100000, 100000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldCount(tt.now, tt.last, w))
		})
	}
}

func TestCooldownWindow(t *testing.T) {
	assert.Equal(t, int64(300000), CooldownWindow.Milliseconds())
	assert.Equal(t, 5*time.Minute, CooldownWindow)
}

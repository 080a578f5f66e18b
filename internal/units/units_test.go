package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKiB_MiB(t *testing.T) {
	tests := []struct {
		name string
		in   KiB
		want float64
	}{
		{"zero", KiB(0), 0},
		{"exactly_one_mib", KiB(1024), 1.0},
		{"half_mib", KiB(512), 0.5},
		{"sub_kib_fraction", KiB(1), 1.0 / 1024},
		{"several_mib", KiB(1024 * 5), 5.0},
		{"non_round", KiB(1536), 1.5},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.in.MiB(), 1e-9)
		})
	}
}

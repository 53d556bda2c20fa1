package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvePrice(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		want    float64
	}{
		{
			name:    "no variations uses payload price",
			payload: Payload{Price: 49.90},
			want:    49.90,
		},
		{
			name:    "no variations and zero price falls back to floor",
			payload: Payload{Price: 0},
			want:    FallbackFloorPrice,
		},
		{
			name:    "no variations and negative price falls back to floor",
			payload: Payload{Price: -5},
			want:    FallbackFloorPrice,
		},
		{
			name: "minimum active variation price wins",
			payload: Payload{
				Price: 10.00,
				Variations: []Variation{
					{Name: "Size", Values: []string{"8x10"}, Price: 35.00, IsActive: true},
					{Name: "Size", Values: []string{"16x20"}, Price: 55.00, IsActive: true},
					{Name: "Size", Values: []string{"24x36"}, Price: 89.00, IsActive: true},
				},
			},
			want: 35.00,
		},
		{
			name: "inactive variations are ignored",
			payload: Payload{
				Variations: []Variation{
					{Name: "Size", Values: []string{"8x10"}, Price: 15.00, IsActive: false},
					{Name: "Size", Values: []string{"16x20"}, Price: 55.00, IsActive: true},
				},
			},
			want: 55.00,
		},
		{
			name: "zero priced variations are ignored",
			payload: Payload{
				Variations: []Variation{
					{Name: "Size", Values: []string{"8x10"}, Price: 0, IsActive: true},
					{Name: "Size", Values: []string{"16x20"}, Price: 42.00, IsActive: true},
				},
			},
			want: 42.00,
		},
		{
			name: "variations present but none usable falls back to floor",
			payload: Payload{
				Price: 99.00,
				Variations: []Variation{
					{Name: "Size", Values: []string{"8x10"}, Price: 0, IsActive: true},
					{Name: "Size", Values: []string{"16x20"}, Price: 55.00, IsActive: false},
				},
			},
			want: FallbackFloorPrice,
		},
		{
			name: "variations take precedence over payload price",
			payload: Payload{
				Price: 5.00,
				Variations: []Variation{
					{Name: "Size", Values: []string{"8x10"}, Price: 35.00, IsActive: true},
				},
			},
			want: 35.00,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolvePrice(&tt.payload))
		})
	}
}

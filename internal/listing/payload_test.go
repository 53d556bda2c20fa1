package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPayload() Payload {
	return Payload{
		Title:          "Abstract Canvas Print",
		Description:    "Large abstract wall art on stretched canvas.",
		Price:          49.90,
		Quantity:       4,
		RequestedState: StateActive,
	}
}

func TestPayload_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Payload)
		wantField string
	}{
		{
			name:   "valid payload",
			mutate: func(*Payload) {},
		},
		{
			name:      "missing title",
			mutate:    func(p *Payload) { p.Title = "" },
			wantField: "title",
		},
		{
			name:      "missing description",
			mutate:    func(p *Payload) { p.Description = "" },
			wantField: "description",
		},
		{
			name:      "zero quantity",
			mutate:    func(p *Payload) { p.Quantity = 0 },
			wantField: "quantity",
		},
		{
			name:      "missing requested state",
			mutate:    func(p *Payload) { p.RequestedState = "" },
			wantField: "requested_state",
		},
		{
			name:      "unknown requested state",
			mutate:    func(p *Payload) { p.RequestedState = "published" },
			wantField: "requested_state",
		},
		{
			name: "variation without name",
			mutate: func(p *Payload) {
				p.Variations = []Variation{{Values: []string{"8x10"}, Price: 35, IsActive: true}}
			},
			wantField: "variations",
		},
		{
			name: "variation without values",
			mutate: func(p *Payload) {
				p.Variations = []Variation{{Name: "Size", Price: 35, IsActive: true}}
			},
			wantField: "variations",
		},
		{
			name:   "draft state accepted",
			mutate: func(p *Payload) { p.RequestedState = StateDraft },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPayload()
			tt.mutate(&p)

			err := p.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
		})
	}
}

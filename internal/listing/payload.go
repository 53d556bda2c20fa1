package listing

// State is the marketplace-side listing state requested by the seller.
type State string

const (
	StateDraft  State = "draft"
	StateActive State = "active"
)

// Payload is a single product listing ready for publication.
type Payload struct {
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	Price             float64         `json:"price"`
	Quantity          int             `json:"quantity"`
	Tags              []string        `json:"tags"`
	Materials         []string        `json:"materials"`
	TaxonomyID        int64           `json:"taxonomy_id"`
	ShippingProfileID int64           `json:"shipping_profile_id"`
	WhoMade           string          `json:"who_made"`
	WhenMade          string          `json:"when_made"`
	ProcessingMin     int             `json:"processing_min"`
	ProcessingMax     int             `json:"processing_max"`
	Personalization   Personalization `json:"personalization"`
	Variations        []Variation     `json:"variations,omitempty"`
	Images            []ImageAsset    `json:"images"`
	Video             *VideoAsset     `json:"video,omitempty"`
	RequestedState    State           `json:"requested_state"`
}

// Variation is one purchasable option row (e.g. a size). The marketplace
// expands rows into the full combinatorial inventory on its side.
type Variation struct {
	Name     string   `json:"name"`
	Values   []string `json:"values"`
	Price    float64  `json:"price"`
	IsActive bool     `json:"is_active"`
}

// Personalization holds buyer-personalization settings for the listing.
type Personalization struct {
	Enabled      bool   `json:"enabled"`
	Required     bool   `json:"required"`
	Instructions string `json:"instructions,omitempty"`
	CharCountMax int    `json:"char_count_max,omitempty"`
}

// ImageAsset is one listing image. Upload order follows slice order.
type ImageAsset struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// VideoAsset is the optional listing video.
type VideoAsset struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// ValidationError reports a payload field that fails shape validation.
// Jobs carrying an invalid payload fail immediately and are never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid listing payload: " + e.Field + ": " + e.Reason
}

// Validate checks the payload for required fields before a job is accepted.
func (p *Payload) Validate() error {
	if p.Title == "" {
		return &ValidationError{Field: "title", Reason: "required"}
	}
	if p.Description == "" {
		return &ValidationError{Field: "description", Reason: "required"}
	}
	if p.Quantity < 1 {
		return &ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	switch p.RequestedState {
	case StateDraft, StateActive:
	case "":
		return &ValidationError{Field: "requested_state", Reason: "required"}
	default:
		return &ValidationError{Field: "requested_state", Reason: "must be draft or active"}
	}
	for _, v := range p.Variations {
		if v.Name == "" {
			return &ValidationError{Field: "variations", Reason: "variation name is required"}
		}
		if len(v.Values) == 0 {
			return &ValidationError{Field: "variations", Reason: "variation " + v.Name + " has no values"}
		}
	}
	return nil
}

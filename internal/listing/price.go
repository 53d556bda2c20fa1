package listing

// FallbackFloorPrice is used when neither the payload price nor any active
// variation yields a usable price.
const FallbackFloorPrice = 29.00

// ResolvePrice determines the listing price deterministically.
//
// With variations present, the price is the minimum price among active
// variations priced above zero; if no active variation qualifies, the
// fallback floor applies. Without variations the payload price is used
// when positive, otherwise the fallback floor. Variation precedence over
// the payload price is deliberate and must not be swapped.
func ResolvePrice(p *Payload) float64 {
	if len(p.Variations) > 0 {
		min := 0.0
		for _, v := range p.Variations {
			if !v.IsActive || v.Price <= 0 {
				continue
			}
			if min == 0 || v.Price < min {
				min = v.Price
			}
		}
		if min > 0 {
			return min
		}
		return FallbackFloorPrice
	}
	if p.Price > 0 {
		return p.Price
	}
	return FallbackFloorPrice
}

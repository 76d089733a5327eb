package domain

import "math"

const (
	scoreDistanceWeight = 0.6
	scoreDiscountWeight = 0.4
	scoreDistanceCapKm  = 10.0
)

// DiscountRate returns the discount percentage, rounded to the nearest
// whole percent. A non-positive original price yields zero.
func DiscountRate(originalPrice, discountedPrice float64) int {
	if originalPrice <= 0 || discountedPrice >= originalPrice {
		return 0
	}
	return int(math.Round((originalPrice - discountedPrice) / originalPrice * 100))
}

// DistanceDiscountScore combines proximity and discount depth into one
// ranking score. Distance contribution is capped at 10 km; the factors
// are weighted 60/40. Closer and more-discounted products score higher.
func DistanceDiscountScore(distanceKm float64, discountRate int) float64 {
	if distanceKm < 0 {
		distanceKm = 0
	}
	proximity := 1 - math.Min(distanceKm/scoreDistanceCapKm, 1)
	return scoreDistanceWeight*proximity + scoreDiscountWeight*float64(discountRate)/100
}

package cache

import "we_listings/models"

// Aggregate computes summary statistics over a set of listings. A listing
// missing a numeric field simply doesn't contribute to that average.
func Aggregate(listings []models.Listing) models.Stats {
	stats := models.Stats{
		Count:  len(listings),
		ByCity: map[string]int{},
		ByType: map[string]int{},
	}

	var priceSum, bedSum, bathSum, sqftSum float64
	var priceN, bedN, bathN, sqftN int
	var minPrice, maxPrice float64

	for _, l := range listings {
		if l.City != "" {
			stats.ByCity[l.City]++
		}
		if l.PropertyType != "" {
			stats.ByType[l.PropertyType]++
		}
		if l.Price != nil {
			p := *l.Price
			priceSum += p
			priceN++
			if priceN == 1 || p < minPrice {
				minPrice = p
			}
			if priceN == 1 || p > maxPrice {
				maxPrice = p
			}
		}
		if l.Bedrooms != nil {
			bedSum += *l.Bedrooms
			bedN++
		}
		if l.Bathrooms != nil {
			bathSum += *l.Bathrooms
			bathN++
		}
		if l.SquareFeet != nil {
			sqftSum += *l.SquareFeet
			sqftN++
		}
	}

	if priceN > 0 {
		avg := priceSum / float64(priceN)
		stats.AveragePrice = &avg
		stats.MinPrice = &minPrice
		stats.MaxPrice = &maxPrice
	}
	if bedN > 0 {
		avg := bedSum / float64(bedN)
		stats.AvgBedrooms = &avg
	}
	if bathN > 0 {
		avg := bathSum / float64(bathN)
		stats.AvgBathrooms = &avg
	}
	if sqftN > 0 {
		avg := sqftSum / float64(sqftN)
		stats.AvgSquareFeet = &avg
	}

	return stats
}

package normalize

import (
	"strings"

	"we_listings/models"
)

// Candidate paths per field. Actor output shifts shape between runs and the
// browser path builds flatter records, so every field carries the spellings
// seen in real payloads plus its own canonical name, which keeps a second
// pass over already-normalized data a no-op.
var (
	locationPaths = []string{"location", "address", "property.address", "property.location", "propertyLocation"}

	identityPaths = []string{"id", "mlsNumber", "listingId", "mlsId", "propertyId", "property.mlsNumber", "property.id"}
	mlsPaths      = []string{"mlsNumber", "mlsId", "property.mlsNumber", "property.mlsId", "listingId"}
	pricePaths    = []string{"price", "priceValue", "property.price", "property.priceValue"}
	typePaths     = []string{"propertyType", "type", "property.type", "category", "building.type"}
	descPaths     = []string{"description", "publicRemarks", "remarks", "property.description", "property.remarks"}
	urlPaths      = []string{"url", "detailUrl", "detailPageUrl", "permalink", "property.url", "listingUrl"}
	officePaths   = []string{"brokerage", "officeName", "office", "broker"}
	updatedPaths  = []string{"lastUpdated", "updated", "lastUpdatedAt"}

	bedroomPaths = []string{
		"bedrooms", "bedroomsTotal", "bedroomsAboveGround",
		"property.bedrooms", "property.building.bedrooms",
		"building.bedrooms", "building.bedroomsTotal", "summary.bedrooms",
	}
	bedroomKeywords = []string{"bedroom", "bed"}

	bathroomPaths = []string{
		"bathrooms", "bathroomsTotal",
		"property.bathrooms", "property.building.bathrooms",
		"building.bathrooms", "summary.bathrooms",
	}
	bathroomKeywords = []string{"bathroom", "bath"}

	sqftPaths = []string{
		"sizeInterior", "building.sizeInterior", "building.totalFinishedArea",
		"property.building.sizeInterior", "property.squareFeet",
		"squareFeet", "squareFootage", "area",
	}
	sqftKeywords = []string{"square feet", "sqft", "interior"}

	lotPaths = []string{
		"land.sizeTotal", "land.sizeTotalText", "land.sizeFrontage",
		"property.land.sizeTotal", "lotSize", "lotSizeArea", "property.landSize",
	}
	lotKeywords = []string{"lot size", "size total", "land size"}

	yearPaths = []string{
		"yearBuilt", "building.builtYear", "building.constructedDate",
		"property.building.builtYear", "property.building.constructedDate",
	}
	yearKeywords = []string{"built", "constructed", "year"}

	detailPaths = []string{"details", "property.details", "propertyDetails", "building.details"}
)

// Record normalizes one raw payload into the canonical listing shape. A
// payload that carries neither an identity candidate nor an address comes
// back nil: nothing downstream could key it.
func Record(raw models.RawRecord) *models.Listing {
	if raw == nil {
		return nil
	}

	location := firstMap(raw, locationPaths...)
	details := normalizeDetails(raw)

	address := composeAddress(raw, location)
	listingURL := AbsoluteURL(firstTruthy(raw, urlPaths...))

	id := CleanString(firstTruthy(raw, identityPaths...))
	if id == "" {
		id = listingURL
	}
	if id == "" {
		id = address
	}
	if id == "" {
		return nil
	}

	city := CleanString(firstTruthy(location, "city", "municipality"))
	if city == "" {
		city = CleanString(firstTruthy(raw, "city", "municipality"))
	}
	province := CleanString(firstTruthy(location, "province", "state"))
	if province == "" {
		province = CleanString(firstTruthy(raw, "province", "state"))
	}
	if province == "" {
		province = "ON"
	}
	postal := CleanString(firstTruthy(location, "postalCode", "postal_code"))
	if postal == "" {
		postal = CleanString(firstTruthy(raw, "postalCode"))
	}
	country := CleanString(pathValue(location, "country"))
	if country == "" {
		country = CleanString(pathValue(raw, "country"))
	}
	if country == "" {
		country = "Canada"
	}

	price := Number(firstTruthy(raw, pricePaths...))
	priceFormatted := ""
	if price != nil {
		priceFormatted = FormatPrice(*price)
	} else {
		priceFormatted = CleanString(firstTruthy(raw, "displayPrice", "priceFormatted", "priceLabel"))
	}

	lotRaw := firstValue(raw, lotPaths...)
	if lotRaw == nil {
		lotRaw = keywordValue(details, lotKeywords...)
	}
	lotText := CleanString(pathValue(raw, "lotSizeText"))
	if lotText == "" {
		lotText = CleanString(lotRaw)
	}

	return &models.Listing{
		ID:             id,
		MLSNumber:      CleanString(firstTruthy(raw, mlsPaths...)),
		Address:        address,
		City:           city,
		Province:       province,
		Country:        country,
		PostalCode:     postal,
		Price:          price,
		PriceFormatted: priceFormatted,
		PriceText:      CleanString(firstTruthy(raw, "priceText", "price", "priceLabel", "displayPrice")),
		PropertyType:   CleanString(firstTruthy(raw, typePaths...)),
		Description:    CleanString(firstTruthy(raw, descPaths...)),
		Bedrooms:       feature(raw, details, bedroomPaths, bedroomKeywords),
		Bathrooms:      feature(raw, details, bathroomPaths, bathroomKeywords),
		SquareFeet:     feature(raw, details, sqftPaths, sqftKeywords),
		LotSize:        Number(lotRaw),
		LotSizeText:    lotText,
		YearBuilt:      feature(raw, details, yearPaths, yearKeywords),
		ListingURL:     listingURL,
		Brokerage:      CleanString(firstTruthy(raw, officePaths...)),
		LastUpdated:    CleanString(firstTruthy(raw, updatedPaths...)),
		Images:         collectImages(raw),
		Agents:         collectAgents(raw),
		Details:        details,
		Coordinates:    collectCoordinates(raw),
	}
}

// composeAddress prefers a fully formed address string, then assembles one
// from the location block.
func composeAddress(raw, location map[string]interface{}) string {
	if s, ok := pathValue(raw, "addressText").(string); ok {
		if cleaned := CleanString(s); cleaned != "" {
			return cleaned
		}
	}
	if s, ok := pathValue(raw, "address").(string); ok {
		if cleaned := CleanString(s); cleaned != "" {
			return cleaned
		}
	}

	candidates := []interface{}{
		firstTruthy(location, "addressLine1", "address1", "streetAddress", "line1"),
		firstTruthy(location, "addressLine2", "address2", "streetAddress2", "line2"),
		firstTruthy(location, "city", "municipality"),
		firstTruthy(location, "province", "state"),
		firstTruthy(location, "postalCode", "postal_code"),
	}

	parts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if cleaned := CleanString(c); cleaned != "" {
			parts = append(parts, cleaned)
		}
	}
	return strings.Join(parts, ", ")
}

// normalizeDetails flattens every detail collection the payload carries into
// label/value rows. Items arrive as strings, maps, or two-element arrays.
func normalizeDetails(raw map[string]interface{}) []models.Detail {
	var out []models.Detail
	for _, path := range detailPaths {
		items, ok := pathValue(raw, path).([]interface{})
		if !ok {
			continue
		}
		for _, item := range items {
			switch t := item.(type) {
			case nil:
				continue
			case string:
				if s := CleanString(t); s != "" {
					out = append(out, models.Detail{Label: s, Value: s})
				}
			case map[string]interface{}:
				label := CleanString(firstTruthy(t, "label", "name"))
				value := CleanString(firstValue(t, "value", "text", "display"))
				out = append(out, models.Detail{Label: label, Value: value})
			case []interface{}:
				if len(t) >= 2 {
					out = append(out, models.Detail{Label: CleanString(t[0]), Value: CleanString(t[1])})
				}
			}
		}
	}
	return out
}

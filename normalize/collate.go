package normalize

import (
	"sort"
	"strings"

	"we_listings/models"
)

var imagePaths = []string{
	"images", "photos", "media", "gallery",
	"property.photos", "property.images", "property.media",
	"property.photo.highResPaths", "property.photo.lowResPaths", "property.photo.url",
}

var agentCollectionPaths = []string{
	"agents", "agent", "property.agents", "property.agent",
	"property.representatives", "contact", "representatives",
	"brokerage.agents", "office.agents",
}

var (
	latPaths = []string{
		"coordinates.lat", "coordinates.latitude",
		"location.lat", "location.latitude",
		"property.location.lat", "property.location.latitude",
		"geo.lat", "geo.latitude",
	}
	lngPaths = []string{
		"coordinates.lng", "coordinates.lon", "coordinates.longitude",
		"location.lng", "location.lon", "location.longitude",
		"property.location.lng", "property.location.lon", "property.location.longitude",
		"geo.lng", "geo.lon", "geo.longitude",
	}
)

// collectImages gathers every image URL the payload carries, absolutized and
// deduplicated, first seen first.
func collectImages(raw map[string]interface{}) []string {
	urls := []string{}
	seen := map[string]bool{}
	add := func(v interface{}) {
		u := AbsoluteURL(v)
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		urls = append(urls, u)
	}

	for _, path := range imagePaths {
		switch t := pathValue(raw, path).(type) {
		case string:
			add(t)
		case []interface{}:
			for _, item := range t {
				add(item)
			}
		case map[string]interface{}:
			// map order is random; sort keys so output is stable
			keys := make([]string, 0, len(t))
			for k := range t {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				add(t[k])
			}
		}
	}
	return urls
}

// collectAgents gathers representative entries from every collection the
// payload carries, keeps entries with at least one contact field, dedupes on
// the identity fields, and falls back to a brokerage-only entry so a listing
// with office data but no named agent still surfaces it.
func collectAgents(raw map[string]interface{}) []models.Agent {
	agents := []models.Agent{}
	push := func(v interface{}) {
		entry, ok := v.(map[string]interface{})
		if !ok {
			return
		}
		agent := models.Agent{
			Name:      CleanString(firstTruthy(entry, "name", "fullName", "agentName", "agent", "contactName")),
			Phone:     CleanString(firstTruthy(entry, "phone", "telephone", "phoneNumber", "contactPhone")),
			Email:     CleanString(firstTruthy(entry, "email", "contactEmail")),
			Brokerage: CleanString(firstTruthy(entry, "brokerage", "office", "officeName", "company", "broker")),
			Title:     CleanString(firstTruthy(entry, "title", "position", "role")),
		}
		if agent.Name != "" || agent.Phone != "" || agent.Email != "" || agent.Brokerage != "" {
			agents = append(agents, agent)
		}
	}

	for _, path := range agentCollectionPaths {
		switch t := pathValue(raw, path).(type) {
		case []interface{}:
			for _, item := range t {
				push(item)
			}
		case map[string]interface{}:
			push(t)
		}
	}

	if len(agents) == 0 {
		if brokerage := CleanString(firstTruthy(raw, "brokerage", "office", "officeName", "company")); brokerage != "" {
			agents = append(agents, models.Agent{Brokerage: brokerage})
		}
	}
	return dedupeAgents(agents)
}

func dedupeAgents(agents []models.Agent) []models.Agent {
	unique := []models.Agent{}
	seen := map[string]bool{}
	for _, a := range agents {
		var parts []string
		for _, p := range []string{a.Name, a.Email, a.Phone, a.Brokerage} {
			if p != "" {
				parts = append(parts, strings.ToLower(p))
			}
		}
		key := strings.Join(parts, "|")
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, a)
	}
	return unique
}

// collectCoordinates returns a coordinate pair only when both halves parse.
func collectCoordinates(raw map[string]interface{}) *models.Coordinates {
	lat := Number(firstValue(raw, latPaths...))
	lng := Number(firstValue(raw, lngPaths...))
	if lat == nil || lng == nil {
		return nil
	}
	return &models.Coordinates{Lat: *lat, Lng: *lng}
}

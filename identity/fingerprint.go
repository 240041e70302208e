// Package identity derives a stable fingerprint for a listing from the fields
// that survive a relist: address, beds, baths, square footage, and property
// type. The same house coming back under a fresh MLS number keeps the same
// fingerprint, which is what the archive store keys on.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"we_listings/models"
)

var (
	streetAbbreviations = map[string]string{
		"street":    "st",
		"avenue":    "ave",
		"drive":     "dr",
		"road":      "rd",
		"boulevard": "blvd",
		"lane":      "ln",
		"court":     "ct",
		"place":     "pl",
		"circle":    "cir",
		"crescent":  "cres",
		"terrace":   "ter",
		"highway":   "hwy",
		"parkway":   "pkwy",
		"square":    "sq",
		"north":     "n",
		"south":     "s",
		"east":      "e",
		"west":      "w",
		"northeast": "ne",
		"northwest": "nw",
		"southeast": "se",
		"southwest": "sw",
		"apartment": "apt",
		"suite":     "ste",
		"floor":     "fl",
		"building":  "bldg",
	}
	nonAlnumRegex = regexp.MustCompile(`[^a-z0-9\s]`)
)

// Fingerprint hashes the listing's identity fields into a 32-char hex key.
// Nil numeric fields count as zero so a sparse record still fingerprints
// deterministically.
func Fingerprint(l *models.Listing) string {
	input := fmt.Sprintf("%s|%s|%s|%s|%s",
		NormalizeAddress(l.Address),
		num(l.Bedrooms),
		num(l.Bathrooms),
		num(l.SquareFeet),
		strings.ToLower(strings.TrimSpace(l.PropertyType)),
	)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

// NormalizeAddress lowercases, strips punctuation, and abbreviates street
// words token by token, so "939 Chateau Avenue" and "939 CHATEAU AVE."
// normalize to the same string. Whole tokens only; "Eastlawn" is left alone.
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	addr = nonAlnumRegex.ReplaceAllString(addr, " ")

	tokens := strings.Fields(addr)
	for i, tok := range tokens {
		if abbrev, ok := streetAbbreviations[tok]; ok {
			tokens[i] = abbrev
		}
	}
	return strings.Join(tokens, " ")
}

func num(p *float64) string {
	if p == nil {
		return "0"
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

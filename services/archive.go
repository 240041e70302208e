package services

import (
	"context"
	"log"
	"time"

	"we_listings/identity"
	"we_listings/models"
	"we_listings/storage"
)

// ArchiveService fans a scraped listing set out into the long-term archive:
// fingerprint upserts, duplicate matching for brand-new rows, and media
// queueing. Each listing is processed independently; one bad row never sinks
// the batch.
type ArchiveService struct {
	store *storage.PostgresStore
	match *MatchService
}

func NewArchiveService(store *storage.PostgresStore, match *MatchService) *ArchiveService {
	return &ArchiveService{store: store, match: match}
}

// ArchiveStats summarizes one Record pass.
type ArchiveStats struct {
	Archived    int
	New         int
	MediaQueued int
	Matches     int
	Errors      int
}

// Record upserts every listing into the archive. Safe to call repeatedly with
// the same set; re-sightings fold into their existing rows.
func (s *ArchiveService) Record(ctx context.Context, listings []models.Listing) *ArchiveStats {
	stats := &ArchiveStats{}
	now := time.Now().UTC()

	for i := range listings {
		l := &listings[i]
		if l.Address == "" && l.MLSNumber == "" {
			continue
		}

		row := &models.ArchivedListing{
			Fingerprint:  identity.Fingerprint(l),
			MLSNumber:    l.MLSNumber,
			Address:      l.Address,
			City:         l.City,
			Province:     l.Province,
			PostalCode:   l.PostalCode,
			PropertyType: l.PropertyType,
			Price:        l.Price,
			Bedrooms:     l.Bedrooms,
			Bathrooms:    l.Bathrooms,
			SquareFeet:   l.SquareFeet,
			ListingURL:   l.ListingURL,
			Description:  l.Description,
			FirstSeenAt:  now,
			LastSeenAt:   now,
		}

		if err := s.store.UpsertArchivedListing(ctx, row); err != nil {
			log.Printf("[archive] upsert %s: %v", l.Address, err)
			stats.Errors++
			continue
		}
		stats.Archived++

		// times_seen comes back 1 only on a fresh insert
		if row.TimesSeen == 1 {
			stats.New++
			if s.match != nil {
				n, err := s.match.RecordPotentialMatches(ctx, row)
				if err != nil {
					log.Printf("[archive] match %s: %v", row.Fingerprint, err)
				}
				stats.Matches += n
			}
		}

		if len(l.Images) > 0 {
			if err := s.store.EnqueueMedia(ctx, row.ID, l.Images); err != nil {
				log.Printf("[archive] queue media %s: %v", row.ID, err)
			} else {
				stats.MediaQueued += len(l.Images)
			}
		}
	}

	return stats
}

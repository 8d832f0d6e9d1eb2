package adlibrary

import (
	"time"

	"github.com/rs/zerolog"

	"adscope/internal/domain/ads"
)

type searchResponse struct {
	SearchResults []struct {
		Name   string `json:"name"`
		PageID string `json:"page_id"`
	} `json:"searchResults"`
}

type adsResponse struct {
	Results []rawAd `json:"results"`
	Cursor  string  `json:"cursor"`
}

type rawAd struct {
	AdArchiveID        string      `json:"ad_archive_id"`
	StartDate          *int64      `json:"start_date"`
	EndDate            *int64      `json:"end_date"`
	PageID             string      `json:"page_id"`
	PageName           string      `json:"page_name"`
	Currency           string      `json:"currency"`
	FundingEntity      string      `json:"funding_entity"`
	Languages          []string    `json:"languages"`
	PublisherPlatforms []string    `json:"publisher_platforms"`
	EffectiveStatus    string      `json:"effective_status"`
	Snapshot           rawSnapshot `json:"snapshot"`
}

type rawSnapshot struct {
	DisplayFormat string `json:"display_format"`
	Body          *struct {
		Text string `json:"text"`
	} `json:"body"`
	Images []struct {
		ResizedImageURL string `json:"resized_image_url"`
	} `json:"images"`
	Videos []struct {
		VideoSDURL string `json:"video_sd_url"`
	} `json:"videos"`
	Cards []struct {
		ResizedImageURL string `json:"resized_image_url"`
		Body            string `json:"body"`
	} `json:"cards"`
}

// normalizeAds flattens provider ad records into canonical ads. IMAGE and
// VIDEO ads yield one record; DCO carousels fan out one record per card.
// Records without media or body text are dropped.
func normalizeAds(results []rawAd, trim bool, log zerolog.Logger) []ads.Ad {
	normalized := make([]ads.Ad, 0, len(results))

	for _, raw := range results {
		if raw.AdArchiveID == "" {
			continue
		}

		var mediaURLs []string
		var bodies []string
		var mediaType ads.MediaType

		switch raw.Snapshot.DisplayFormat {
		case "IMAGE":
			mediaType = ads.MediaTypeImage
			if len(raw.Snapshot.Images) > 0 {
				mediaURLs = []string{raw.Snapshot.Images[0].ResizedImageURL}
			}
			bodies = []string{snapshotBody(raw.Snapshot)}
		case "VIDEO":
			mediaType = ads.MediaTypeVideo
			if len(raw.Snapshot.Videos) > 0 {
				mediaURLs = []string{raw.Snapshot.Videos[0].VideoSDURL}
			}
			bodies = []string{snapshotBody(raw.Snapshot)}
		case "DCO":
			mediaType = ads.MediaTypeImage
			for _, card := range raw.Snapshot.Cards {
				mediaURLs = append(mediaURLs, card.ResizedImageURL)
				bodies = append(bodies, card.Body)
			}
		default:
			log.Debug().
				Str("ad_id", raw.AdArchiveID).
				Str("display_format", raw.Snapshot.DisplayFormat).
				Msg("skipping unsupported ad format")
			continue
		}

		for i, mediaURL := range mediaURLs {
			if mediaURL == "" || i >= len(bodies) || bodies[i] == "" {
				continue
			}

			ad := ads.Ad{
				AdID:      raw.AdArchiveID,
				StartDate: epochToRFC3339(raw.StartDate),
				EndDate:   epochToRFC3339(raw.EndDate),
				MediaURL:  mediaURL,
				Body:      bodies[i],
				MediaType: mediaType,
			}
			if !trim {
				ad.PageID = raw.PageID
				ad.PageName = raw.PageName
				ad.Currency = raw.Currency
				ad.FundingEntity = raw.FundingEntity
				ad.Languages = raw.Languages
				ad.PublisherPlatforms = raw.PublisherPlatforms
				ad.EffectiveStatus = raw.EffectiveStatus
			}
			normalized = append(normalized, ad)
		}
	}

	return normalized
}

func snapshotBody(snapshot rawSnapshot) string {
	if snapshot.Body == nil {
		return ""
	}
	return snapshot.Body.Text
}

func epochToRFC3339(epoch *int64) string {
	if epoch == nil {
		return ""
	}
	return time.Unix(*epoch, 0).UTC().Format(time.RFC3339)
}

package jobs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/souqly/marketd/internal/models"
	"github.com/souqly/marketd/internal/notifications"
	apperrors "github.com/souqly/marketd/pkg/errors"
)

const (
	subcategoryWeight = 3
	brandWeight       = 5
	governorateWeight = 2
	keywordWeight     = 2
	minKeywordRunes   = 2
)

var signalWeights = map[string]int{
	models.SignalView:          1,
	models.SignalSearch:        2,
	models.SignalFavorite:      3,
	models.SignalChatInitiated: 4,
	models.SignalSavedSearch:   5,
}

// brand-like attributes compared between listing and signal; a signal earns the bonus once.
var brandKeys = []string{"brand", "model"}

// Matching scores recent buyer signals against freshly posted listings and notifies the
// best-matching buyers once per listing.
type Matching struct {
	base
}

// NewMatching constructs the new-listing matching job.
func NewMatching(deps Deps) *Matching {
	return &Matching{base: newBase(NameMatching, deps)}
}

type match struct {
	UserID string
	Score  int
}

// Run matches every listing created inside the match window. A listing that already produced
// any new_match notification is skipped whole.
func (m *Matching) Run(ctx context.Context) (Result, error) {
	var result Result
	if err := m.ready(); err != nil {
		return result, err
	}

	now := m.now()
	var fresh []models.Listing
	if err := m.db.WithContext(ctx).
		Where("status = ? AND created_at >= ?", models.ListingStatusActive, now.Add(-m.cfg.MatchWindow)).
		Order("created_at ASC").
		Find(&fresh).Error; err != nil {
		return result, apperrors.Transient("matching: load listings", err)
	}
	result.Candidates = len(fresh)

	var (
		errs     error
		listings int
	)
	for i := range fresh {
		matched, err := m.matchListing(ctx, &fresh[i], &result)
		if err != nil {
			result.Failed++
			errs = multierr.Append(errs, err)
		}
		if matched {
			listings++
		}
	}

	m.completed(result, errs, zap.Int("listings_matched", listings))
	return result, errs
}

func (m *Matching) matchListing(ctx context.Context, listing *models.Listing, result *Result) (bool, error) {
	if listing.CategoryID == "" {
		return false, nil
	}

	var existing int64
	if err := m.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("type = ? AND listing_id = ?", models.NotificationNewMatch, listing.ID).
		Count(&existing).Error; err != nil {
		return false, apperrors.Row("matching: dedup "+listing.ID, err)
	}
	if existing > 0 {
		result.Skipped++
		return false, nil
	}

	var signals []models.Signal
	if err := m.db.WithContext(ctx).
		Where("category_id = ? AND created_at >= ? AND user_id <> ?",
			listing.CategoryID, m.now().Add(-m.cfg.MatchSignalWindow), listing.OwnerID).
		Find(&signals).Error; err != nil {
		return false, apperrors.Row("matching: load signals for "+listing.ID, err)
	}

	recipients := rankMatches(listing, signals, m.cfg.MatchMinScore, m.cfg.MatchMaxRecipients)
	if len(recipients) == 0 {
		return false, nil
	}

	var errs error
	for _, rcpt := range recipients {
		errs = multierr.Append(errs, m.notify(ctx, notifications.Message{
			RecipientID: rcpt.UserID,
			Type:        models.NotificationNewMatch,
			Title:       "New listing matches your interests",
			Body:        fmt.Sprintf("%q was just posted.", listing.Title),
			ListingID:   listingRef(listing.ID),
			Payload:     map[string]any{"score": rcpt.Score},
		}, result))
	}
	return true, errs
}

// rankMatches sums signal scores per user, drops users under minScore and returns at most
// limit users ordered by score descending, then user id.
func rankMatches(listing *models.Listing, signals []models.Signal, minScore, limit int) []match {
	title := strings.ToLower(listing.Title)
	totals := make(map[string]int)
	for i := range signals {
		totals[signals[i].UserID] += scoreSignal(listing, title, &signals[i])
	}

	matches := make([]match, 0, len(totals))
	for user, score := range totals {
		if score >= minScore {
			matches = append(matches, match{UserID: user, Score: score})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].UserID < matches[j].UserID
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// scoreSignal returns one signal's contribution. lowerTitle is the listing title in lower case.
func scoreSignal(listing *models.Listing, lowerTitle string, signal *models.Signal) int {
	score, ok := signalWeights[signal.Kind]
	if !ok {
		score = 1
	}

	if listing.SubcategoryID != "" && signal.DataString("subcategory_id") == listing.SubcategoryID {
		score += subcategoryWeight
	}

	for _, key := range brandKeys {
		want := listing.Attribute(key)
		got := signal.DataString(key)
		if want != "" && got != "" && strings.EqualFold(want, got) {
			score += brandWeight
			break
		}
	}

	if listing.Governorate != "" && strings.EqualFold(listing.Governorate, signal.Governorate) {
		score += governorateWeight
	}

	for _, token := range strings.Fields(strings.ToLower(signal.DataString("query"))) {
		if utf8.RuneCountInString(token) < minKeywordRunes {
			continue
		}
		if strings.Contains(lowerTitle, token) {
			score += keywordWeight
			break
		}
	}

	return score
}

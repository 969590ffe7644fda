package domain

// Record mappers translate raw stored rows into the normalized entities
// used throughout the core. Absent optional fields get defaults here;
// missing required fields are a contract violation of the store and are
// not handled defensively.

// MapBehaviorEntry normalizes a raw behavior_entries row.
func MapBehaviorEntry(row BehaviorRow) BehaviorEntry {
	notes := ""
	if row.Notes != nil {
		notes = *row.Notes
	}
	return BehaviorEntry{
		ID:           row.ID,
		UserID:       row.UserID,
		Timestamp:    row.Timestamp,
		Activity:     row.Activity,
		BiasDetected: row.BiasesDetected,
		Confidence:   row.Confidence,
		Notes:        notes,
	}
}

// MapShoppingPattern normalizes a raw shopping_patterns row.
func MapShoppingPattern(row ShoppingRow) ShoppingPattern {
	return ShoppingPattern{
		ID:       row.ID,
		UserID:   row.UserID,
		Category: row.Category,
		Amount:   row.Amount,
		Date:     row.PurchaseDate,
		BiasType: row.BiasType,
		Impulse:  row.Impulse,
	}
}

// MapNewsSource normalizes a raw news_sources row.
func MapNewsSource(row NewsSourceRow) NewsSource {
	return NewsSource{
		ID:           row.ID,
		UserID:       row.UserID,
		Name:         row.Name,
		BiasScore:    row.BiasScore,
		ArticlesRead: row.ArticlesRead,
		Category:     NewsCategory(row.Category),
		Reliability:  row.Reliability,
		CreatedAt:    row.CreatedAt,
	}
}

// MapChallenge normalizes a raw challenges row.
func MapChallenge(row ChallengeRow) Challenge {
	description := ""
	if row.Description != nil {
		description = *row.Description
	}
	reward := "0 XP"
	if row.Reward != nil {
		reward = *row.Reward
	}
	return Challenge{
		ID:          row.ID,
		UserID:      row.UserID,
		Title:       row.Title,
		Description: description,
		Type:        ChallengeType(row.Type),
		Progress:    row.Progress,
		Target:      row.Target,
		Completed:   row.Completed,
		Reward:      reward,
	}
}

// MapBiasMetric normalizes a raw bias_metrics row. LastUpdated is the row
// creation time.
func MapBiasMetric(row BiasMetricRow) BiasMetric {
	return BiasMetric{
		ID:          row.ID,
		UserID:      row.UserID,
		Type:        row.Type,
		Value:       row.Value,
		Trend:       row.Trend,
		LastUpdated: row.CreatedAt,
	}
}

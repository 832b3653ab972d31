package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"game-achievement-system/models"
	"game-achievement-system/utils"

	"github.com/google/uuid"
)

// ChunkOverlap is how far adjacent backfill chunks overlap so a streak
// straddling a chunk boundary is never split. Candidates from the overlap
// region are kept only when their timestamp falls inside the chunk's true
// range, which prevents double-counting.
const ChunkOverlap = 24 * time.Hour

// HistoricalBackfillProcessor restates the incremental rules as bulk
// set-oriented queries so months of history can be processed without
// per-round round-trips. Chunked by month to bound memory and lock time.
type HistoricalBackfillProcessor struct {
	source BackfillSource
	store  AchievementStore
	gate   *DedupGate

	// When true, the per-run audit report is uploaded to R2.
	ExportReports bool
}

func NewHistoricalBackfillProcessor(source BackfillSource, store AchievementStore) *HistoricalBackfillProcessor {
	return &HistoricalBackfillProcessor{
		source: source,
		store:  store,
		gate:   NewDedupGate(store),
	}
}

// BackfillChunkStats records one month chunk's outcome for the audit report.
type BackfillChunkStats struct {
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Milestones int       `json:"milestones"`
	Streaks    int       `json:"streaks"`
}

// BackfillReport is the per-run audit artifact.
type BackfillReport struct {
	RunID      string               `json:"run_id"`
	From       time.Time            `json:"from"`
	To         time.Time            `json:"to"`
	StartedAt  time.Time            `json:"started_at"`
	Duration   string               `json:"duration"`
	Chunks     []BackfillChunkStats `json:"chunks"`
	Candidates int                  `json:"candidates"`
	Inserted   int64                `json:"inserted"`
	ReportURL  string               `json:"report_url,omitempty"`
}

// RunBackfill processes [from, to) month by month. Existing achievement keys
// are loaded once up front for O(1) duplicate filtering across the whole run.
func (p *HistoricalBackfillProcessor) RunBackfill(ctx context.Context, from, to time.Time) (*BackfillReport, error) {
	if !from.Before(to) {
		return nil, fmt.Errorf("invalid backfill window: %s is not before %s", from, to)
	}

	report := &BackfillReport{
		RunID:     uuid.NewString(),
		From:      from.UTC(),
		To:        to.UTC(),
		StartedAt: time.Now().UTC(),
	}
	log.Printf("🔁 [Backfill] Run %s starting for %s → %s", report.RunID, report.From.Format(time.RFC3339), report.To.Format(time.RFC3339))

	existing, err := p.loadExistingKeys(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []models.PlayerAchievement
	for _, chunk := range MonthChunks(from, to) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backfill cancelled: %w", err)
		}

		stats := BackfillChunkStats{From: chunk.From, To: chunk.To}

		milestones, err := p.milestoneChunk(ctx, chunk, existing)
		if err != nil {
			return nil, err
		}
		stats.Milestones = len(milestones)
		candidates = append(candidates, milestones...)

		streaks, err := p.streakChunk(ctx, chunk, existing)
		if err != nil {
			return nil, err
		}
		stats.Streaks = len(streaks)
		candidates = append(candidates, streaks...)

		report.Chunks = append(report.Chunks, stats)
		log.Printf("[Backfill] Chunk %s → %s: %d milestone(s), %d streak(s)",
			chunk.From.Format("2006-01-02"), chunk.To.Format("2006-01-02"), stats.Milestones, stats.Streaks)
	}

	report.Candidates = len(candidates)
	if len(candidates) > 0 {
		inserted, err := p.gate.PersistBatch(ctx, candidates)
		if err != nil {
			return nil, err
		}
		report.Inserted = inserted
	}

	report.Duration = time.Since(report.StartedAt).Round(time.Millisecond).String()
	log.Printf("✅ [Backfill] Run %s done: %d candidate(s), %d inserted in %s", report.RunID, report.Candidates, report.Inserted, report.Duration)

	if p.ExportReports {
		key := fmt.Sprintf("backfill-reports/%s/%s.json", report.StartedAt.Format("2006-01"), report.RunID)
		url, err := utils.UploadReportJSON(ctx, key, report)
		if err != nil {
			// The run itself succeeded; a missing audit artifact is not
			// worth failing it over.
			log.Printf("⚠️ [Backfill] Failed to upload run report: %v", err)
		} else {
			report.ReportURL = url
		}
	}
	return report, nil
}

func (p *HistoricalBackfillProcessor) loadExistingKeys(ctx context.Context) (map[string]struct{}, error) {
	keys, err := p.store.ExistingKeys(ctx, []models.AchievementType{models.TypeMilestone, models.TypeKillStreak})
	if err != nil {
		return nil, fmt.Errorf("failed to load existing achievement keys: %w", err)
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k.AchievementType.Repeatable() {
			set[fmt.Sprintf("%s|%s|%d", k.PlayerName, k.AchievementID, k.Version)] = struct{}{}
		} else {
			set[k.PlayerName+"|"+k.AchievementID] = struct{}{}
		}
	}
	return set, nil
}

func (p *HistoricalBackfillProcessor) milestoneChunk(ctx context.Context, chunk Chunk, existing map[string]struct{}) ([]models.PlayerAchievement, error) {
	crossings, err := p.source.MilestoneCrossings(ctx, chunk.From, chunk.To)
	if err != nil {
		return nil, fmt.Errorf("milestone query failed for chunk %s: %w", chunk.From.Format("2006-01-02"), err)
	}

	var out []models.PlayerAchievement
	for _, c := range crossings {
		id, ok := milestoneIDForFamily(c.Family, c.Threshold)
		if !ok {
			log.Printf("⚠️ [Backfill] Unknown milestone family %q, skipping", c.Family)
			continue
		}
		if _, dup := existing[c.PlayerName+"|"+id]; dup {
			continue
		}

		badge, ok := models.LookupBadge(id)
		if !ok {
			badge = models.BadgeDefinition{ID: id, Name: id, Tier: models.TierBronze}
		}
		a := models.NewAchievement(c.PlayerName, models.TypeMilestone, id, badge.Name, badge.Tier, c.Threshold, c.CrossedAt)
		a.ServerID = c.ServerID
		a.MapName = c.MapName
		a.RoundID = c.RoundID
		a.GameID = c.GameID
		a.Metadata = marshalMetadata(models.MilestoneMetadata{
			Family:        c.Family,
			Threshold:     c.Threshold,
			PreviousTotal: c.PreviousTotal,
			NewTotal:      c.NewTotal,
			RoundDelta:    c.NewTotal - c.PreviousTotal,
		})

		existing[c.PlayerName+"|"+id] = struct{}{}
		out = append(out, a)
	}
	return out, nil
}

// streakChunk queries spans over the chunk plus its one-day lead so streaks
// straddling the boundary stay whole, then trims candidates back to the true
// range.
func (p *HistoricalBackfillProcessor) streakChunk(ctx context.Context, chunk Chunk, existing map[string]struct{}) ([]models.PlayerAchievement, error) {
	spans, err := p.source.StreakSpans(ctx, chunk.From.Add(-ChunkOverlap), chunk.To)
	if err != nil {
		return nil, fmt.Errorf("streak query failed for chunk %s: %w", chunk.From.Format("2006-01-02"), err)
	}

	var out []models.PlayerAchievement
	for _, span := range spans {
		for _, a := range StreakSpanAchievements(span) {
			if a.AchievedAt.Before(chunk.From) || !a.AchievedAt.Before(chunk.To) {
				continue // overlap region, owned by the neighboring chunk
			}
			key := fmt.Sprintf("%s|%s|%d", a.PlayerName, a.AchievementID, a.Version)
			if _, dup := existing[key]; dup {
				continue
			}
			existing[key] = struct{}{}
			out = append(out, a)
		}
	}
	return out, nil
}

// StreakSpanAchievements maps one uninterrupted kill span to its threshold
// awards. Aggregate data has no per-kill timestamps, so the in-streak
// crossing times are linearly interpolated across the span's wall-clock
// duration — an intentional approximation, marked as estimated in metadata.
func StreakSpanAchievements(span StreakSpan) []models.PlayerAchievement {
	if span.Kills < models.KillStreakThresholds[0] {
		return nil
	}

	duration := span.EndTime.Sub(span.StartTime)
	var out []models.PlayerAchievement
	for _, threshold := range models.KillStreakThresholds {
		if threshold > span.Kills {
			break
		}

		crossedAt := span.EndTime
		if span.Kills > 0 && duration > 0 {
			fraction := float64(threshold) / float64(span.Kills)
			crossedAt = span.StartTime.Add(time.Duration(fraction * float64(duration)))
		}

		id := models.KillStreakID(threshold)
		badge, ok := models.LookupBadge(id)
		if !ok {
			badge = models.BadgeDefinition{ID: id, Name: id, Tier: models.TierBronze}
		}
		a := models.NewAchievement(span.PlayerName, models.TypeKillStreak, id, badge.Name, badge.Tier, int64(threshold), crossedAt)
		a.ServerID = span.ServerID
		a.MapName = span.MapName
		a.GameID = span.GameID
		a.Metadata = marshalMetadata(models.KillStreakMetadata{
			StreakLength: span.Kills,
			Threshold:    threshold,
			Estimated:    true,
		})
		out = append(out, a)
	}
	return out
}

func milestoneIDForFamily(family string, threshold int64) (string, bool) {
	switch family {
	case "kills":
		return models.TotalKillsID(threshold), true
	case "score":
		return models.TotalScoreID(threshold), true
	case "playtime":
		// Playtime crossings report the threshold in minutes.
		return models.TotalPlaytimeID(threshold / 60), true
	}
	return "", false
}

// Chunk is one month-sized backfill window. From is inclusive, To exclusive.
type Chunk struct {
	From time.Time
	To   time.Time
}

// MonthChunks splits [from, to) on calendar month boundaries.
func MonthChunks(from, to time.Time) []Chunk {
	var chunks []Chunk
	cur := from.UTC()
	end := to.UTC()
	for cur.Before(end) {
		next := time.Date(cur.Year(), cur.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
		if next.After(end) {
			next = end
		}
		chunks = append(chunks, Chunk{From: cur, To: next})
		cur = next
	}
	return chunks
}

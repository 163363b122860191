package app

import (
	"sort"

	"saa-quiz-service/internal/domain"
)

// MinRanks assigns "min" ranks to values already sorted in descending order: equal
// values share the lowest ordinal, so [30 30 10] ranks as [1 1 3].
func MinRanks[T int | float64](sorted []T) []int {
	ranks := make([]int, len(sorted))
	for i := range sorted {
		if i > 0 && sorted[i] == sorted[i-1] {
			ranks[i] = ranks[i-1]
			continue
		}
		ranks[i] = i + 1
	}
	return ranks
}

// RankEntries orders entries by points descending, keeping input order for ties,
// and assigns min ranks.
func RankEntries(entries []domain.LeaderboardEntry) []domain.LeaderboardEntry {
	out := append([]domain.LeaderboardEntry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Points > out[j].Points })
	points := make([]int, len(out))
	for i, e := range out {
		points[i] = e.Points
	}
	for i, r := range MinRanks(points) {
		out[i].Rank = r
	}
	return out
}

// RankGroups sums ranked entries per group key and ranks the groups twice,
// by total points and by points per member. Entries with an empty key are skipped.
func RankGroups(entries []domain.LeaderboardEntry, key func(domain.LeaderboardEntry) string) []domain.GroupEntry {
	index := map[string]int{}
	var groups []domain.GroupEntry
	for _, e := range entries {
		name := key(e)
		if name == "" {
			continue
		}
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, domain.GroupEntry{Name: name})
		}
		groups[i].TotalPoints += e.Points
		groups[i].Members++
	}
	for i := range groups {
		groups[i].AveragePoints = float64(groups[i].TotalPoints) / float64(groups[i].Members)
	}

	byAverage := append([]domain.GroupEntry(nil), groups...)
	sort.SliceStable(byAverage, func(i, j int) bool { return byAverage[i].AveragePoints > byAverage[j].AveragePoints })
	averages := make([]float64, len(byAverage))
	for i, g := range byAverage {
		averages[i] = g.AveragePoints
	}
	averageRank := make(map[string]int, len(groups))
	for i, r := range MinRanks(averages) {
		averageRank[byAverage[i].Name] = r
	}

	sort.SliceStable(groups, func(i, j int) bool { return groups[i].TotalPoints > groups[j].TotalPoints })
	totals := make([]int, len(groups))
	for i, g := range groups {
		totals[i] = g.TotalPoints
	}
	for i, r := range MinRanks(totals) {
		groups[i].Rank = r
		groups[i].AverageRank = averageRank[groups[i].Name]
	}
	return groups
}

// DayStats derives one day's participation summary. users fixes the tie order for the
// top performer; only a user with at least threshold successes can be named.
func DayStats(day string, users []domain.UserRecord, daily []domain.DailyResult, threshold int) domain.DailyStats {
	stats := domain.DailyStats{Day: day}
	rows := make(map[string]domain.DailyResult, len(daily))
	for _, d := range daily {
		if d.Day != day {
			continue
		}
		rows[d.UserID] = d
		if d.Attempts > 0 {
			stats.Participants++
		}
		stats.TotalAttempts += d.Attempts
	}
	for _, u := range users {
		d, ok := rows[u.ID]
		if !ok || d.Success < threshold {
			continue
		}
		if stats.TopSuccess == nil || d.Success > stats.TopSuccess.Successes {
			stats.TopSuccess = &domain.TopPerformer{UserID: u.ID, Name: u.Name, Successes: d.Success}
		}
	}
	return stats
}

func entryFor(u domain.UserRecord, c domain.Counters) domain.LeaderboardEntry {
	return domain.LeaderboardEntry{
		UserID:   u.ID,
		Name:     u.Name,
		School:   u.School,
		Team:     u.Team,
		Points:   c.Points,
		Correct:  c.Correct,
		Wrong:    c.Wrong,
		Success:  c.Success,
		Failure:  c.Failure,
		Attempts: c.Attempts,
		Accuracy: c.Accuracy(),
	}
}

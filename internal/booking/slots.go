package booking

import (
	"sort"
	"time"
)

// GenerateSlots expands one availability rule into candidate slot start
// times. Generation steps from start to end in slot-size increments and a
// slot exists iff its start is strictly before the window end; the nominal
// slot end is never checked, so a 09:00-09:50 window with 30 minute slots
// yields 09:00 and 09:30.
func GenerateSlots(rule AvailabilityRule) []TimeOfDay {
	if !rule.IsActive || rule.SlotMinutes <= 0 {
		return nil
	}

	var slots []TimeOfDay
	for cur := rule.StartTime; cur < rule.EndTime; cur += TimeOfDay(rule.SlotMinutes) {
		slots = append(slots, cur)
	}
	return slots
}

// ResolveDay turns a day's rules plus its taken times into the free slot
// list: candidates from every rule, ascending and de-duplicated, minus taken
// slots, minus slots starting within the lead-time buffer when date is the
// current UTC civil date. date must be a UTC midnight as returned by ParseDate.
func ResolveDay(rules []AvailabilityRule, taken []TimeOfDay, date time.Time, now time.Time, lead time.Duration) []TimeOfDay {
	seen := make(map[TimeOfDay]bool)
	var candidates []TimeOfDay
	for _, rule := range rules {
		for _, s := range GenerateSlots(rule) {
			if !seen[s] {
				seen[s] = true
				candidates = append(candidates, s)
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })

	takenSet := make(map[TimeOfDay]bool, len(taken))
	for _, t := range taken {
		takenSet[t] = true
	}

	sameDay := DateString(now) == DateString(date)
	cutoff := now.Add(lead)

	free := make([]TimeOfDay, 0, len(candidates))
	for _, s := range candidates {
		if takenSet[s] {
			continue
		}
		if sameDay {
			start := date.Add(time.Duration(s) * time.Minute)
			if start.Before(cutoff) {
				continue
			}
		}
		free = append(free, s)
	}
	return free
}

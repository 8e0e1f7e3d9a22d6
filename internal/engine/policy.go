package engine

import (
	"fmt"
	"slices"
	"time"

	"github.com/genricoloni/wallcycle/internal/domain"
	"github.com/robfig/cron/v3"
)

// midnight fires at 00:00 in the location of the time passed to Next
var midnight = mustSchedule("0 0 * * *")

func mustSchedule(spec string) cron.Schedule {
	s, err := cron.ParseStandard(spec)
	if err != nil {
		panic(err)
	}
	return s
}

// closestIndex returns the greatest index whose time is <= minute, or -1 when
// every entry is later in the day. times must be sorted ascending.
func closestIndex(times []int, minute int) int {
	low, high := 0, len(times)-1
	closest := -1

	for low <= high {
		mid := low + (high-low)/2
		if times[mid] <= minute {
			// Keep looking right: later duplicates of the same minute win
			closest = mid
			low = mid + 1
		} else {
			high = mid - 1
		}
	}
	return closest
}

// untilNextImage returns how long to wait from nowMinute:second until the
// start of nextMinute. A next image at the current minute means tomorrow.
func untilNextImage(nowMinute, nextMinute, second int) time.Duration {
	minutes := (nextMinute - nowMinute + domain.MinutesPerDay) % domain.MinutesPerDay
	if minutes == 0 {
		minutes = domain.MinutesPerDay
	}
	return time.Duration(minutes*60-second) * time.Second
}

// dayOfWeekIndex maps a weekday (Sunday = 0) onto a playlist of n images.
// Days past the end of a short playlist show its last image.
func dayOfWeekIndex(day time.Weekday, n int) int {
	idx := int(day)
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// nextMidnight returns the first local midnight strictly after now
func nextMidnight(now time.Time) time.Time {
	return midnight.Next(now)
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// imageTimes extracts the minute-of-day of every image
func imageTimes(images []domain.Image) ([]int, error) {
	times := make([]int, len(images))
	for i, img := range images {
		if img.Time == nil {
			return nil, fmt.Errorf("%w: image %s has no time of day", domain.ErrConfiguration, img.Name)
		}
		if *img.Time < 0 || *img.Time >= domain.MinutesPerDay {
			return nil, fmt.Errorf("%w: image %s has invalid time %d", domain.ErrConfiguration, img.Name, *img.Time)
		}
		times[i] = *img.Time
	}
	return times, nil
}

// sortByTime orders time-of-day images ascending, keeping insertion order for
// equal times. Images without a time sort last.
func sortByTime(images []domain.Image) {
	slices.SortStableFunc(images, func(a, b domain.Image) int {
		switch {
		case a.Time == nil && b.Time == nil:
			return 0
		case a.Time == nil:
			return 1
		case b.Time == nil:
			return -1
		}
		return *a.Time - *b.Time
	})
}

package usecase

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/semmidev/dbkeeper/internal/domain"
)

const day = 24 * time.Hour

// AgeDays is the number of whole days between modifiedAt and now.
func AgeDays(modifiedAt, now time.Time) int {
	return int(math.Floor(now.Sub(modifiedAt).Hours() / day.Hours()))
}

// SelectForDeletion returns the objects whose age in whole days is at least
// thresholdDays. The input slice is not modified.
func SelectForDeletion(objects []domain.RemoteObject, thresholdDays int, now time.Time) []domain.RemoteObject {
	selected := make([]domain.RemoteObject, 0)
	for _, obj := range objects {
		if AgeDays(obj.ModifiedAt, now) >= thresholdDays {
			selected = append(selected, obj)
		}
	}
	return selected
}

// Latest picks the object with the greatest ModifiedAt. On an exact tie the
// one later in listing order wins.
func Latest(objects []domain.RemoteObject) (domain.RemoteObject, bool) {
	if len(objects) == 0 {
		return domain.RemoteObject{}, false
	}

	latest := objects[0]
	for _, obj := range objects[1:] {
		if !obj.ModifiedAt.Before(latest.ModifiedAt) {
			latest = obj
		}
	}
	return latest, true
}

// WithPrefix keeps the objects whose name starts with prefix.
func WithPrefix(objects []domain.RemoteObject, prefix string) []domain.RemoteObject {
	matched := make([]domain.RemoteObject, 0, len(objects))
	for _, obj := range objects {
		if strings.HasPrefix(obj.Name, prefix) {
			matched = append(matched, obj)
		}
	}
	return matched
}

func sortNewestFirst(objects []domain.RemoteObject) {
	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].ModifiedAt.After(objects[j].ModifiedAt)
	})
}

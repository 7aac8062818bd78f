package progress

import (
	"github.com/pkg/errors"
)

// completion returns the share of completed submodules as a percentage.
// A completed module counts as 100 even without submodules.
func completion(m ModuleProgress, subModules []SubModuleProgress) int {
	if m.Status == StatusCompleted {
		return 100
	}
	if len(subModules) == 0 {
		return 0
	}
	var done int
	for _, sm := range subModules {
		if sm.Status == StatusCompleted {
			done++
		}
	}
	return done * 100 / len(subModules)
}

// evaluateBadges unlocks every locked badge whose threshold is met. Badges are never relocked.
func (c *cascade) evaluateBadges(m ModuleProgress) error {
	subModules, err := c.repo.QuerySubModules(c.ctx, m.ID)
	if err != nil {
		return errors.Wrap(err, "querying submodules")
	}
	pct := completion(m, subModules)

	badges, err := c.repo.QueryBadges(c.ctx, m.ID)
	if err != nil {
		return errors.Wrap(err, "querying badges")
	}
	for _, b := range badges {
		if b.Status != BadgeLocked || pct < b.Level.Threshold() {
			continue
		}
		if err = b.moveTo(BadgeUnlocked); err != nil {
			return err
		}
		b.UnlockedAt = c.now
		if err = c.repo.UpdateBadge(c.ctx, b); err != nil {
			return errors.Wrap(err, "updating badge")
		}
		c.events = append(c.events, event{
			kind:     eventBadgeUnlocked,
			userID:   m.UserID,
			targetID: m.ID,
			title:    m.Title,
			level:    b.Level,
		})
	}
	return nil
}

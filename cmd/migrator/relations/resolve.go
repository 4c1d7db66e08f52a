package relations

import (
	"github.com/lyzr/pubmigrate/common/models"
)

// Update is the resolved relation set of one owner, keyed by slug.
// Slugs and ids keep first-seen order.
type Update struct {
	OwnerSourceID string
	OwnerTargetID string
	Table         string
	Slugs         []string
	Targets       map[string][]string
}

// Dropped is an edge that could not be translated
type Dropped struct {
	OwnerSourceID   string
	Table           string
	Slug            string
	RelatedSourceID string
	Reason          string
}

// Resolution is the outcome of translating pending relations
type Resolution struct {
	Updates []Update
	Dropped []Dropped
}

// Resolve translates owners through remap[ownerKind] and related ids through
// remap[relatedKind]. Intents of the same owner are merged per slug and
// duplicate targets collapse. An owner without a binding drops all of its
// edges; an unbound related id drops only that edge.
func Resolve(pending []models.PendingRelation, remap *models.IDRemap, ownerKind, relatedKind models.RemapKind) Resolution {
	var res Resolution
	index := make(map[string]int)
	seen := make(map[string]map[string]map[string]bool)

	for _, rel := range pending {
		ownerTarget, ok := remap.Get(ownerKind, rel.OwnerID)
		if !ok {
			for _, id := range rel.RelatedIDs {
				res.Dropped = append(res.Dropped, Dropped{
					OwnerSourceID:   rel.OwnerID,
					Table:           rel.Table,
					Slug:            rel.Slug,
					RelatedSourceID: id,
					Reason:          "owner was not created",
				})
			}
			continue
		}

		i, exists := index[rel.OwnerID]
		if !exists {
			i = len(res.Updates)
			index[rel.OwnerID] = i
			res.Updates = append(res.Updates, Update{
				OwnerSourceID: rel.OwnerID,
				OwnerTargetID: ownerTarget,
				Table:         rel.Table,
				Targets:       make(map[string][]string),
			})
			seen[rel.OwnerID] = make(map[string]map[string]bool)
		}
		u := &res.Updates[i]

		if _, known := seen[rel.OwnerID][rel.Slug]; !known {
			seen[rel.OwnerID][rel.Slug] = make(map[string]bool)
			u.Slugs = append(u.Slugs, rel.Slug)
		}
		slugSeen := seen[rel.OwnerID][rel.Slug]

		for _, id := range rel.RelatedIDs {
			target, ok := remap.Get(relatedKind, id)
			if !ok {
				res.Dropped = append(res.Dropped, Dropped{
					OwnerSourceID:   rel.OwnerID,
					Table:           rel.Table,
					Slug:            rel.Slug,
					RelatedSourceID: id,
					Reason:          "related record has no target id",
				})
				continue
			}
			if slugSeen[target] {
				continue
			}
			slugSeen[target] = true
			u.Targets[rel.Slug] = append(u.Targets[rel.Slug], target)
		}
	}

	// An owner whose every edge dropped has nothing to write
	kept := res.Updates[:0]
	for _, u := range res.Updates {
		if len(u.Targets) > 0 {
			kept = append(kept, u)
		}
	}
	res.Updates = kept

	return res
}

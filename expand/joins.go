package expand

import (
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/semview/model"
)

// ResolveJoins returns the declared joins required by the given source
// tables, in declaration order.
//
// A join is needed when its table matches a source table. Needed joins pull
// in further declared joins whose lowercased table name occurs as a substring
// of their lowercased ON text, repeatedly, until nothing changes.
func ResolveJoins(joins []model.Join, sources []string) []model.Join {
	needed := make(map[string]struct{})
	for _, s := range sources {
		if s != "" {
			needed[lowerASCII(s)] = struct{}{}
		}
	}
	if len(needed) == 0 {
		return nil
	}

	tables := make([]string, len(joins))
	ons := make([]string, len(joins))
	for i, j := range joins {
		tables[i] = lowerASCII(j.Table)
		ons[i] = lowerASCII(j.On)
	}

	for changed := true; changed; {
		changed = false
		for i := range joins {
			if _, ok := needed[tables[i]]; !ok {
				continue
			}
			for k := range joins {
				other := tables[k]
				if other == tables[i] {
					continue
				}
				if _, ok := needed[other]; ok {
					continue
				}
				if strings.Contains(ons[i], other) {
					needed[other] = struct{}{}
					changed = true
				}
			}
		}
	}

	// Declaration indexes of needed joins; ascending iteration keeps order.
	selected := roaring.New()
	for i := range joins {
		if _, ok := needed[tables[i]]; ok {
			selected.Add(uint32(i))
		}
	}

	out := make([]model.Join, 0, selected.GetCardinality())
	it := selected.Iterator()
	for it.HasNext() {
		out = append(out, joins[it.Next()])
	}
	return out
}

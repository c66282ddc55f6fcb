package resource

import (
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// Variables groups per-instance values into the variable structure used by
// expression evaluation: resource type → object of resource name →
// instance value, where count-expanded resources map to a tuple ordered by
// instance index.
//
// The caller must provide an entry for every instance it wants addressable,
// using an unknown value for instances that have not been resolved yet.
func Variables(vals map[Addr]cty.Value) map[string]cty.Value {
	type instance struct {
		index int
		val   cty.Value
	}
	byType := make(map[string]map[string][]instance)
	for addr, val := range vals {
		names, ok := byType[addr.Type]
		if !ok {
			names = make(map[string][]instance)
			byType[addr.Type] = names
		}
		names[addr.Name] = append(names[addr.Name], instance{index: addr.Index, val: val})
	}

	out := make(map[string]cty.Value, len(byType))
	for typ, names := range byType {
		nameVals := make(map[string]cty.Value, len(names))
		for name, instances := range names {
			if len(instances) == 1 && instances[0].index == NoIndex {
				nameVals[name] = instances[0].val
				continue
			}
			sort.Slice(instances, func(i, j int) bool {
				return instances[i].index < instances[j].index
			})
			elems := make([]cty.Value, len(instances))
			for i, inst := range instances {
				elems[i] = inst.val
			}
			nameVals[name] = cty.TupleVal(elems)
		}
		out[typ] = cty.ObjectVal(nameVals)
	}
	return out
}

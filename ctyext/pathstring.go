// Package ctyext contains small helpers on top of go-cty.
package ctyext

import (
	"bytes"
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// PathString renders a cty path in the attribute syntax used in
// configuration, for example vpc_config.subnet_ids[1].
func PathString(path cty.Path) string {
	var buf bytes.Buffer
	for i, step := range path {
		switch s := step.(type) {
		case cty.GetAttrStep:
			if i > 0 {
				buf.WriteByte('.')
			}
			buf.WriteString(s.Name)
		case cty.IndexStep:
			if s.Key.Type() == cty.Number {
				n, _ := s.Key.AsBigFloat().Int64()
				fmt.Fprintf(&buf, "[%d]", n)
				continue
			}
			fmt.Fprintf(&buf, "[%q]", s.Key.AsString())
		default:
			panic(fmt.Sprintf("Unknown path step %T", s))
		}
	}
	return buf.String()
}

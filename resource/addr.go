package resource

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

// NoIndex is the index of a resource instance that was not count expanded.
const NoIndex = -1

// An Addr uniquely identifies a resource instance within a project.
//
// Index is NoIndex for resources declared without count.
type Addr struct {
	Type  string
	Name  string
	Index int
}

// String returns the canonical address string, for example
// aws_subnet.private[1].
func (a Addr) String() string {
	if a.Index == NoIndex {
		return a.Type + "." + a.Name
	}
	return fmt.Sprintf("%s.%s[%d]", a.Type, a.Name, a.Index)
}

var addrRe = regexp.MustCompile(`^([a-zA-Z_][a-zA-Z0-9_]*)\.([a-zA-Z_][a-zA-Z0-9_-]*)(?:\[(\d+)\])?$`)

// ParseAddr parses the canonical string form of an address.
func ParseAddr(str string) (Addr, error) {
	m := addrRe.FindStringSubmatch(str)
	if m == nil {
		return Addr{}, errors.Errorf("invalid resource address %q", str)
	}
	addr := Addr{Type: m[1], Name: m[2], Index: NoIndex}
	if m[3] != "" {
		n, err := strconv.Atoi(m[3])
		if err != nil {
			return Addr{}, errors.Wrapf(err, "invalid index in %q", str)
		}
		addr.Index = n
	}
	return addr, nil
}

package resource

import (
	"fmt"
	"strings"
	"sync"

	"github.com/zclconf/go-cty/cty"
	validator "gopkg.in/go-playground/validator.v9"
)

var check = validator.New()

// Check validates a statically known value against the attribute's
// validation rule. Values that are null, unknown, or not a primitive are
// not checked; rules apply to user-written literals only.
func (a Attribute) Check(val cty.Value) error {
	if a.Validate == "" || val.IsNull() || !val.IsKnown() {
		return nil
	}
	var goval interface{}
	switch val.Type() {
	case cty.String:
		goval = val.AsString()
	case cty.Number:
		bf := val.AsBigFloat()
		if bf.IsInt() {
			i, _ := bf.Int64()
			goval = i
		} else {
			f, _ := bf.Float64()
			goval = f
		}
	case cty.Bool:
		goval = val.True()
	default:
		return nil
	}
	return validate(goval, a.Validate)
}

var once sync.Once
var formats map[string]string

func validate(v interface{}, rule string) error {
	err := check.Var(v, rule)
	if err == nil {
		return nil
	}
	once.Do(initFormats)
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return err
	}
	fe := errs[0]
	format, ok := formats[fe.Tag()]
	if !ok {
		return fmt.Errorf("must satisfy %q", fe.Tag())
	}
	if !strings.Contains(format, "%") {
		return fmt.Errorf(format)
	}
	return fmt.Errorf(format, fe.Param())
}

func initFormats() {
	formats = map[string]string{
		"min":      "must be %v or more",
		"max":      "must be %v or less",
		"gte":      "must be %v or more",
		"gt":       "must be more than %v",
		"lte":      "must be %v or less",
		"lt":       "must be less than %v",
		"oneof":    "must be one of: [%v]",
		"cidrv4":   "must be a valid IPv4 CIDR block",
		"hostname": "must be a valid hostname",
	}
}

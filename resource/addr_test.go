package resource_test

import (
	"testing"

	"github.com/converge/converge/resource"
)

func TestParseAddr(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    resource.Addr
		wantErr bool
	}{
		{
			"Simple",
			"aws_vpc.main",
			resource.Addr{Type: "aws_vpc", Name: "main", Index: resource.NoIndex},
			false,
		},
		{
			"Indexed",
			"aws_subnet.private[2]",
			resource.Addr{Type: "aws_subnet", Name: "private", Index: 2},
			false,
		},
		{
			"MissingName",
			"aws_vpc",
			resource.Addr{},
			true,
		},
		{
			"NegativeIndex",
			"aws_subnet.private[-1]",
			resource.Addr{},
			true,
		},
		{
			"TrailingAttr",
			"aws_vpc.main.id",
			resource.Addr{},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resource.ParseAddr(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAddr(%q) err = %v, wantErr = %t", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseAddr(%q) got = %v, want = %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestAddr_String(t *testing.T) {
	tests := []struct {
		name string
		addr resource.Addr
		want string
	}{
		{"NoIndex", resource.Addr{Type: "aws_vpc", Name: "main", Index: resource.NoIndex}, "aws_vpc.main"},
		{"Indexed", resource.Addr{Type: "aws_subnet", Name: "private", Index: 0}, "aws_subnet.private[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.addr.String()
			if got != tt.want {
				t.Errorf("String() got = %q, want = %q", got, tt.want)
			}
		})
	}
}

func TestParseAddr_roundtrip(t *testing.T) {
	for _, str := range []string{"aws_vpc.main", "aws_subnet.private[3]"} {
		addr, err := resource.ParseAddr(str)
		if err != nil {
			t.Fatalf("ParseAddr(%q) err = %v", str, err)
		}
		if got := addr.String(); got != str {
			t.Errorf("String() got = %q, want = %q", got, str)
		}
	}
}

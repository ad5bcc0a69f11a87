package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	tests := map[string]string{
		"203.0.113.77":        "203.0.113.0/24",
		"::ffff:198.51.100.9": "198.51.100.0/24",
		"2001:db8:abcd:12::1": "2001:db8:abcd::/48",
		"unknown":             "invalid",
		"":                    "invalid",
	}
	for in, want := range tests {
		assert.Equal(t, want, AnonymizeIP(in), in)
	}
}

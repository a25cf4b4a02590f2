package identifier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/datacite/lupo-sub003/internal/identifier"
)

func TestDOIFromURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"10.5438/4K3M-NYVG", "10.5438/4k3m-nyvg"},
		{"https://doi.org/10.5438/4K3M-NYVG", "10.5438/4k3m-nyvg"},
		{"http://dx.doi.org/10.5438/4k3m-nyvg", "10.5438/4k3m-nyvg"},
		{"https://handle.test.datacite.org/10.14454/ABC", "10.14454/abc"},
		{"doi:10.5061/DRYAD.8515", "10.5061/dryad.8515"},
		{"10.5438/\u200bxyz", "10.5438/xyz"},
		{"https://example.org/10.5438/xyz", ""},
		{"11.5438/xyz", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, identifier.DOIFromURL(tt.in), tt.in)
	}

	assert.Equal(t, "https://doi.org/10.5438/xyz", identifier.NormalizeDOI("10.5438/XYZ"))
	assert.Equal(t, "10.5438/XYZ", identifier.UpperDOI("https://doi.org/10.5438/xyz"))
	assert.Empty(t, identifier.NormalizeDOI("not a doi"))
}

func TestPrefix(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "10.5438", identifier.Prefix("https://doi.org/10.5438/xyz"))
	assert.Equal(t, "10.13039", identifier.Prefix("10.13039/501100000780"))
	assert.Empty(t, identifier.Prefix("nope"))
}

func TestORCIDAndROR(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0000-0003-1419-2405", identifier.ORCIDFromURL("https://orcid.org/0000-0003-1419-2405"))
	assert.Equal(t, "https://orcid.org/0000-0003-1419-2405", identifier.ORCIDURL("0000-0003-1419-2405"))
	assert.Empty(t, identifier.ORCIDURL(""))

	assert.Equal(t, "ror.org/04wxnsj81", identifier.RORFromURL("https://ror.org/04wxnsj81"))
	assert.Equal(t, "ror.org/04wxnsj81", identifier.RORFromURL("04wxnsj81"))
	assert.Equal(t, "https://ror.org/04wxnsj81", identifier.RORURL("ror.org/04wxnsj81"))
}

func TestSplitList(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b"}, identifier.SplitList(" a, ,b "))
	assert.Nil(t, identifier.SplitList("  "))
}

package routers

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyIsCaseInsensitive(t *testing.T) {
	r := NewDefaultRegistry()

	for addr, want := range defaultRouters {
		lower, okLower := r.Classify(strings.ToLower(addr))
		upper, okUpper := r.Classify("0x" + strings.ToUpper(addr[2:]))
		require.True(t, okLower, addr)
		require.True(t, okUpper, addr)
		assert.Equal(t, want, lower)
		assert.Equal(t, lower, upper)
	}
}

func TestClassifyUnknownAddress(t *testing.T) {
	r := NewDefaultRegistry()

	_, ok := r.Classify("0x000000000000000000000000000000000000dead")
	assert.False(t, ok)

	_, ok = r.ClassifyAddress(common.HexToAddress("0x1111111111111111111111111111111111111111"))
	assert.False(t, ok)
}

func TestClassifyAddressUsesChecksumForm(t *testing.T) {
	r := NewDefaultRegistry()

	info, ok := r.ClassifyAddress(common.HexToAddress("0xaBD915749969aE370CFD5421457F41F9dEA8b882"))
	require.True(t, ok)
	assert.Equal(t, VenueAMMV3, info.VenueType)
}

func TestWrappedNative(t *testing.T) {
	r := NewDefaultRegistry()

	addr, ok := r.WrappedNative(10143)
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress("0x760AfE86e5de5fa0Ee542fc7B7B713e1c5425701"), addr)

	_, ok = r.WrappedNative(1)
	assert.False(t, ok)
}

func TestParseVenueType(t *testing.T) {
	for _, v := range AllVenueTypes() {
		parsed, err := ParseVenueType(strings.ToUpper(v.String()))
		require.NoError(t, err)
		assert.Equal(t, v, parsed)
	}

	_, err := ParseVenueType("v9")
	assert.ErrorAs(t, err, &ErrUnknownVenueType{})
}

func TestManifestApply(t *testing.T) {
	loader := NewManifestLoader(zerolog.Nop())

	m, err := loader.ParseManifest([]byte(`
name: routers
version: 0.1.0
routers:
  - address: "0xC0FFEE0000000000000000000000000000000001"
    type: crystal
    name: Crystal
  - address: "0xfb8e1c3b833f9e67a71c859a132cf783b645e436"
    type: v2
    name: Uniswap V2 (renamed)
wrappedNative:
  1: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
`))
	require.NoError(t, err)
	require.Len(t, m.Routers, 2)

	r := NewDefaultRegistry()
	before := r.Len()
	m.Apply(r)
	assert.Equal(t, before+1, r.Len())

	info, ok := r.Classify("0xc0ffee0000000000000000000000000000000001")
	require.True(t, ok)
	assert.Equal(t, RouterInfo{VenueType: VenueReferralAMM, Name: "Crystal"}, info)

	info, ok = r.Classify("0xFB8E1C3B833F9E67A71C859A132CF783B645E436")
	require.True(t, ok)
	assert.Equal(t, "Uniswap V2 (renamed)", info.Name)

	weth, ok := r.WrappedNative(1)
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), weth)
}

func TestManifestRejectsBadEntries(t *testing.T) {
	loader := NewManifestLoader(zerolog.Nop())

	_, err := loader.ParseManifest([]byte(`
routers:
  - address: "0x1234"
    type: v2
    name: short
`))
	require.Error(t, err)
	assert.ErrorAs(t, err, &ErrInvalidManifest{})

	_, err = loader.ParseManifest([]byte(`
routers:
  - address: "0xfb8e1c3b833f9e67a71c859a132cf783b645e436"
    type: balancer
    name: nope
`))
	require.Error(t, err)
}

package domain

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type LookuperTestSuite struct {
	suite.Suite

	initial  map[string][]netip.Addr
	lookuper Lookuper
}

func (s *LookuperTestSuite) SetupTest() {
	s.initial = map[string][]netip.Addr{
		"localhost":   {netip.MustParseAddr("127.0.0.1")},
		"example.com": {netip.MustParseAddr("1.1.1.1")}, // It's actually cloudflare. But who cares?
	}
}

func (s *LookuperTestSuite) TestLookup() {
	addrs, err := s.lookuper.LookupIP(context.Background(), "localhost")
	s.NoError(err)
	s.Equal([]netip.Addr{netip.MustParseAddr("127.0.0.1")}, addrs)

	addrs, err = s.lookuper.LookupIP(context.Background(), "example.com")
	s.NoError(err)
	s.Equal([]netip.Addr{netip.MustParseAddr("1.1.1.1")}, addrs)

	// Non-existent.
	addrs, err = s.lookuper.LookupIP(context.Background(), "non-existent.com")
	s.ErrorIs(err, ErrDomainNotFound)
	s.Empty(addrs)
}

func (s *LookuperTestSuite) TestLookupLiteral() {
	addrs, err := s.lookuper.LookupIP(context.Background(), "10.0.0.1")
	s.NoError(err)
	s.Equal([]netip.Addr{netip.MustParseAddr("10.0.0.1")}, addrs)
}

func (s *LookuperTestSuite) TestLookupInitCopied() {
	s.initial["localhost"] = []netip.Addr{netip.MustParseAddr("8.8.8.8")}

	addrs, err := s.lookuper.LookupIP(context.Background(), "localhost")
	s.NoError(err)
	s.Equal([]netip.Addr{netip.MustParseAddr("127.0.0.1")}, addrs)
}

type mapLookuperTestSuite struct{ LookuperTestSuite }

func TestMapLookuperTestSuite(t *testing.T) {
	suite.Run(t, new(mapLookuperTestSuite))
}

func (s *mapLookuperTestSuite) SetupTest() {
	s.LookuperTestSuite.SetupTest()
	s.lookuper = NewMapLookuper(s.initial)
}

func TestMapLookuperSetDel(t *testing.T) {
	l := NewMapLookuper(nil)

	l.Set("empty.com", nil)
	_, err := l.LookupIP(context.Background(), "empty.com")
	assert.ErrorIs(t, err, ErrDomainNotFound)

	l.Set("a.com", []netip.Addr{netip.MustParseAddr("2.2.2.2")})
	addrs, err := l.LookupIP(context.Background(), "a.com")
	assert.NoError(t, err)
	assert.Len(t, addrs, 1)

	l.Del("a.com")
	_, err = l.LookupIP(context.Background(), "a.com")
	assert.ErrorIs(t, err, ErrDomainNotFound)
}

func TestResolverLookuperLocalhost(t *testing.T) {
	addrs, err := NewResolverLookuper(nil).LookupIP(context.Background(), "localhost")
	assert.NoError(t, err)
	assert.NotEmpty(t, addrs)
}

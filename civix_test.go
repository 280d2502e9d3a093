package civix

import (
	"context"
	"testing"

	. "gopkg.in/check.v1"
)

// Hook up gocheck into the "go test" runner.
func Test(t *testing.T) { TestingT(t) }

type ResolverSuite struct {
	r             *Resolver
	testLocations []map[string]string
}

var _ = Suite(&ResolverSuite{})

func (s *ResolverSuite) SetUpSuite(c *C) {
	var err error
	s.r, err = NewResolver(WithDataDir(""), WithCacheDir(""))
	c.Assert(err, IsNil)

	s.testLocations = append(s.testLocations, map[string]string{"zip": "94102", "city": "San Francisco", "county": "San Francisco", "kind": "incorporated"})
	s.testLocations = append(s.testLocations, map[string]string{"zip": "95814", "city": "Sacramento", "county": "Sacramento", "kind": "incorporated"})
	s.testLocations = append(s.testLocations, map[string]string{"zip": "91001", "city": "Altadena", "county": "Los Angeles", "kind": "unincorporated"})
	s.testLocations = append(s.testLocations, map[string]string{"zip": "94305", "city": "Stanford", "county": "Santa Clara", "kind": "unincorporated"})
}

func (s *ResolverSuite) TestNewResolver(c *C) {
	c.Assert(s.r, Not(IsNil))
	c.Assert(s.r.Table().Len() >= minZIPCount, Equals, true)
	c.Assert(s.r.Classifier().Counties(), Equals, caCountyCount)
	c.Assert(s.r.geocoder, IsNil)
	c.Assert(s.r.cache, Not(IsNil))
}

func (s *ResolverSuite) TestResolve(c *C) {
	for _, v := range s.testLocations {
		res, err := s.r.Resolve(context.Background(), v["zip"])
		c.Assert(err, IsNil)
		c.Assert(res.City, Equals, v["city"])
		c.Assert(res.County, Equals, v["county"])
		c.Assert(string(res.Jurisdiction.Kind), Equals, v["kind"])
		c.Assert(res.Districts.Complete(), Equals, true)
	}

	_, err := s.r.Resolve(context.Background(), "")
	c.Assert(err, ErrorMatches, ".*invalid ZIP.*")
}

func (s *ResolverSuite) TestResolveUncovered(c *C) {
	// Not in the table; the range heuristic still places it.
	res, err := s.r.Resolve(context.Background(), "95018")
	c.Assert(err, IsNil)
	c.Assert(res.County, Equals, "Santa Cruz")
	c.Assert(res.Confidence, Equals, ConfidenceLow)
	c.Assert(res.Source, Equals, SourceHeuristic)

	_, err = s.r.Resolve(context.Background(), "10001")
	c.Assert(err, ErrorMatches, ".*no coverage.*")
}

func (s *ResolverSuite) TestSearchCity(c *C) {
	m := s.r.SearchCity("San Diego", false)
	c.Assert(m, HasLen, 1)
	c.Assert(m[0].County, Equals, "San Diego")

	m = s.r.SearchCity("Sna Diego", true)
	c.Assert(len(m) > 0, Equals, true)
	c.Assert(m[0].Name, Equals, "San Diego")
}

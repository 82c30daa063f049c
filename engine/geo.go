package engine

import "github.com/IzzySoft/StoneStepsWebalizer/node"

// SetHostGeo records a geolocation lookup's result against host. The
// lookup itself (IP to country/city) is an external collaborator's job,
// matching node.LogRecord's existing boundary around upstream
// classification; the engine only aggregates what it is told. Calling this
// more than once for the same host simply overwrites the prior resolution.
func (s *State) SetHostGeo(host *node.Host, countryCode string, city node.City) {
	host.CountryCode = node.PackCountryCode(countryCode)
	host.City = city
	host.Dirty = true
}

// foldGeo folds one hit into the country/city aggregates for host's
// resolved location, if any. Called after a host's CountryCode/City have
// been set, directly or by a prior SetHostGeo call this run.
func (s *State) foldGeo(host *node.Host, isFile, isPage, newVisit bool, bytes uint64) {
	if host.CountryCode != 0 {
		if c, ok := s.Countries[host.CountryCode]; ok {
			c.Hits++
			if isFile {
				c.Files++
			}
			if isPage {
				c.Pages++
			}
			if newVisit {
				c.Visits++
			}
			c.Xfer += bytes
			c.Dirty = true
		}
	}
	if !host.City.IsEmpty() {
		id := host.City.ID()
		c, ok := s.Cities[id]
		if !ok {
			c = &node.City{GeonameID: host.City.GeonameID, CountryCode: host.City.CountryCode, Name: host.City.Name}
			s.Cities[id] = c
		}
		c.Hits++
		if isFile {
			c.Files++
		}
		if isPage {
			c.Pages++
		}
		c.Xfer += bytes
		c.Dirty = true
	}
}

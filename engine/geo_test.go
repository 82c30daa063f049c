package engine

import (
	"testing"

	"go.uber.org/zap"

	"github.com/IzzySoft/StoneStepsWebalizer/node"
)

func newTestStateNoStore(t *testing.T) *State {
	t.Helper()
	return New(zap.NewNop(), nil, Options{})
}

func TestSetHostGeoRecordsResolution(t *testing.T) {
	s := newTestStateNoStore(t)
	host := &node.Host{ID: 1, Value: "1.2.3.4"}
	city := node.City{GeonameID: 42, Name: "Springfield"}

	s.SetHostGeo(host, "us", city)

	if host.CountryCode != node.PackCountryCode("us") {
		t.Fatalf("CountryCode = %d, want %d", host.CountryCode, node.PackCountryCode("us"))
	}
	if host.City.GeonameID != 42 {
		t.Fatalf("City.GeonameID = %d, want 42", host.City.GeonameID)
	}
	if !host.Dirty {
		t.Fatal("expected host to be marked dirty")
	}
}

func TestFoldGeoAggregatesCountryAndCity(t *testing.T) {
	s := newTestStateNoStore(t)
	s.InstallCountries(map[string]string{"us": "United States"})

	host := &node.Host{ID: 1, Value: "1.2.3.4"}
	city := node.City{GeonameID: 42, CountryCode: node.PackCountryCode("us"), Name: "Springfield"}
	s.SetHostGeo(host, "us", city)

	s.foldGeo(host, true, false, true, 1024)
	s.foldGeo(host, false, true, false, 512)

	country := s.Countries[node.PackCountryCode("us")]
	if country.Hits != 2 {
		t.Fatalf("country.Hits = %d, want 2", country.Hits)
	}
	if country.Files != 1 || country.Pages != 1 {
		t.Fatalf("country.Files=%d Pages=%d, want 1,1", country.Files, country.Pages)
	}
	if country.Visits != 1 {
		t.Fatalf("country.Visits = %d, want 1", country.Visits)
	}
	if country.Xfer != 1536 {
		t.Fatalf("country.Xfer = %d, want 1536", country.Xfer)
	}

	cityAgg, ok := s.Cities[city.ID()]
	if !ok {
		t.Fatal("expected a city aggregate to have been created")
	}
	if cityAgg.Hits != 2 || cityAgg.Xfer != 1536 {
		t.Fatalf("city aggregate = %+v, want Hits=2 Xfer=1536", cityAgg)
	}
}

func TestFoldGeoSkipsUnresolvedHost(t *testing.T) {
	s := newTestStateNoStore(t)
	s.InstallCountries(map[string]string{"us": "United States"})

	host := &node.Host{ID: 1, Value: "1.2.3.4"}
	s.foldGeo(host, true, false, true, 1024)

	if len(s.Cities) != 0 {
		t.Fatalf("expected no city aggregate for an unresolved host, got %d", len(s.Cities))
	}
	for _, c := range s.Countries {
		if c.Hits != 0 {
			t.Fatalf("expected no country hits for an unresolved host, got %+v", c)
		}
	}
}

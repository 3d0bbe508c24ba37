package core

import "testing"

func TestResourcePoolAddDeduplicates(t *testing.T) {
	pool := NewResourcePool()
	if !pool.Add("https://Example.com/a/?b=2&a=1", "first", "") {
		t.Fatalf("first add should insert")
	}
	if pool.Add("https://example.com:443/a?a=1&b=2#frag", "second", "") {
		t.Fatalf("equivalent url should not insert")
	}
	if pool.Len() != 1 {
		t.Fatalf("pool len = %d, want 1", pool.Len())
	}
	r, ok := pool.Find("example.com/a?a=1&b=2")
	if !ok {
		t.Fatalf("Find did not match normalised url")
	}
	if r.Description != "first" || r.Visited {
		t.Fatalf("unexpected resource %+v", r)
	}
}

func TestResourcePoolVisitIsMonotonic(t *testing.T) {
	pool := NewResourcePool()
	pool.Add("https://example.com/page", "page", "")

	if pool.Visit("https://example.com/unknown", "x") {
		t.Fatalf("visit on unknown url should be a no-op")
	}
	if pool.Len() != 1 {
		t.Fatalf("visit must not insert")
	}
	if !pool.Visit("HTTPS://EXAMPLE.COM/page/", "body") {
		t.Fatalf("visit should match normalised url")
	}
	r, _ := pool.Find("https://example.com/page")
	if !r.Visited || r.Content != "body" {
		t.Fatalf("resource after visit = %+v", r)
	}

	// adding again never resets the visited flag
	pool.Add("https://example.com/page", "again", "")
	r, _ = pool.Find("https://example.com/page")
	if !r.Visited {
		t.Fatalf("visited flipped back to false")
	}
}

func TestResourcePoolUnvisitedKeepsInsertionOrder(t *testing.T) {
	pool := NewResourcePool()
	pool.Add("https://a.example.com/", "a", "")
	pool.Add("https://b.example.com/", "b", "")
	pool.Add("https://c.example.com/", "c", "")
	pool.Visit("https://b.example.com/", "seen")

	all := pool.All()
	if len(all) != 3 || all[0].Description != "a" || all[2].Description != "c" {
		t.Fatalf("All order wrong: %+v", all)
	}
	un := pool.Unvisited()
	if len(un) != 2 || un[0].Description != "a" || un[1].Description != "c" {
		t.Fatalf("Unvisited = %+v", un)
	}

	// returned slices are copies
	un[0].Visited = true
	if len(pool.Unvisited()) != 2 {
		t.Fatalf("mutating a returned resource leaked into the pool")
	}
}

func TestResourcePoolFindUnknown(t *testing.T) {
	pool := NewResourcePool()
	if _, ok := pool.Find("https://nowhere.example.com"); ok {
		t.Fatalf("expected not found")
	}
	if pool.Add("   ", "blank", "") {
		t.Fatalf("blank url should be rejected")
	}
}

func TestResourcePoolKeepsDistinctPathsAndIPv6Hosts(t *testing.T) {
	pool := NewResourcePool()
	if !pool.Add("https://example.com/a%2Fb", "encoded", "") {
		t.Fatalf("first add should insert")
	}
	if !pool.Add("https://example.com/a/b", "plain", "") {
		t.Fatalf("a/b must not collide with a%%2Fb")
	}
	if !pool.Add("http://[::1]:8080/a", "loopback", "") {
		t.Fatalf("ipv6 add should insert")
	}
	r, ok := pool.Find("http://[::1]:8080/a")
	if !ok || r.URL != "http://[::1]:8080/a" {
		t.Fatalf("ipv6 resource = %+v, %v", r, ok)
	}
}

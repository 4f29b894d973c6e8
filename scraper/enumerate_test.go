package scraper

import "testing"

const baseURL = "https://fr.renew.auto"

func TestEnumerate_Candidates(t *testing.T) {
	doc := docFromString(t, `<html><body>
		<a href="/vehicle/detail/abc123.html">Mégane Iconic Optimum Charge</a>
		<a href="/vehicle/detail/def456.html">Mégane Iconic Super Charge</a>
		<a href="https://fr.renew.auto/product/ghi789.html">Mégane Iconic</a>
		<a href="/vehicle/detail/abc123.html">Mégane Iconic Optimum Charge (dupe)</a>
		<a href="/mentions-legales.html">Mentions légales</a>
	</body></html>`)

	result := Enumerate(doc, baseURL)
	if result.EndOfResults || result.Anomaly {
		t.Fatalf("unexpected end/anomaly flags: %+v", result)
	}
	if len(result.URLs) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %v", len(result.URLs), result.URLs)
	}
	if result.URLs[0] != "https://fr.renew.auto/vehicle/detail/abc123.html" {
		t.Fatalf("unexpected first candidate %s", result.URLs[0])
	}
	if result.URLs[1] != "https://fr.renew.auto/product/ghi789.html" {
		t.Fatalf("unexpected second candidate %s", result.URLs[1])
	}
}

func TestEnumerate_SkipsUnwantedTrims(t *testing.T) {
	doc := docFromString(t, `<html><body>
		<a href="/vehicle/detail/1.html">Mégane Standard Charge</a>
		<a href="/vehicle/detail/2.html">Mégane Super Charge</a>
	</body></html>`)

	result := Enumerate(doc, baseURL)
	if len(result.URLs) != 0 {
		t.Fatalf("expected all candidates filtered, got %v", result.URLs)
	}
	if result.EndOfResults || result.Anomaly {
		t.Fatalf("filtered page must not flag end or anomaly: %+v", result)
	}
}

func TestEnumerate_EndOfResults(t *testing.T) {
	doc := docFromString(t, `<html><body>
		<p>Aucun résultat ne correspond à votre recherche.</p>
	</body></html>`)

	result := Enumerate(doc, baseURL)
	if !result.EndOfResults {
		t.Fatalf("expected end-of-results, got %+v", result)
	}
	if result.Anomaly {
		t.Fatalf("end-of-results must not be an anomaly")
	}
}

func TestEnumerate_Anomaly(t *testing.T) {
	doc := docFromString(t, `<html><body>
		<p>Please verify you are human.</p>
	</body></html>`)

	result := Enumerate(doc, baseURL)
	if !result.Anomaly {
		t.Fatalf("expected anomaly, got %+v", result)
	}
	if result.EndOfResults {
		t.Fatalf("anomaly must not claim end-of-results")
	}
}

package rdfio

import "testing"

func TestNegotiateFormatContentTypeTakesPriority(t *testing.T) {
	got := NegotiateFormat("application/n-quads", "text/turtle")
	if got != FormatNQuads {
		t.Fatalf("want FormatNQuads, got %v", got)
	}
}

func TestNegotiateFormatFallsBackToAcceptWhenContentTypeUnrecognized(t *testing.T) {
	got := NegotiateFormat("application/octet-stream", "application/trig")
	if got != FormatTriG {
		t.Fatalf("want FormatTriG, got %v", got)
	}
}

func TestNegotiateFormatRanksByQValue(t *testing.T) {
	got := NegotiateFormat("", "application/n-triples;q=0.3, text/turtle;q=0.9, application/rdf+xml;q=0.5")
	if got != FormatTurtle {
		t.Fatalf("want FormatTurtle (highest q), got %v", got)
	}
}

func TestNegotiateFormatTieKeepsHeaderOrder(t *testing.T) {
	got := NegotiateFormat("", "application/n-quads, text/turtle")
	if got != FormatNQuads {
		t.Fatalf("want first listed entry FormatNQuads, got %v", got)
	}
}

func TestNegotiateFormatWildcardDefaultsToTurtle(t *testing.T) {
	got := NegotiateFormat("", "*/*")
	if got != FormatTurtle {
		t.Fatalf("want FormatTurtle, got %v", got)
	}
}

func TestNegotiateFormatUnrecognizedHeadersDefaultToTurtle(t *testing.T) {
	got := NegotiateFormat("application/octet-stream", "application/xhtml+xml")
	if got != FormatTurtle {
		t.Fatalf("want FormatTurtle default, got %v", got)
	}
}

func TestNegotiateFormatNoHeadersDefaultsToTurtle(t *testing.T) {
	got := NegotiateFormat("", "")
	if got != FormatTurtle {
		t.Fatalf("want FormatTurtle default, got %v", got)
	}
}

func TestFormatFromExtensionRoundTripsWithMediaType(t *testing.T) {
	cases := map[string]Format{
		"nt":     FormatNTriples,
		".ttl":   FormatTurtle,
		"NQ":     FormatNQuads,
		"trig":   FormatTriG,
		"rdf":    FormatRDFXML,
		"xml":    FormatRDFXML,
		"jsonld": FormatJSONLD,
	}
	for ext, want := range cases {
		if got := FormatFromExtension(ext); got != want {
			t.Fatalf("FormatFromExtension(%q) = %v, want %v", ext, got, want)
		}
	}
}

func TestFormatFromExtensionUnknown(t *testing.T) {
	if got := FormatFromExtension("csv"); got != FormatUnknown {
		t.Fatalf("want FormatUnknown, got %v", got)
	}
}

func TestMediaTypeForEachFormat(t *testing.T) {
	cases := map[Format]string{
		FormatNTriples: "application/n-triples",
		FormatTurtle:   "text/turtle",
		FormatNQuads:   "application/n-quads",
		FormatTriG:     "application/trig",
		FormatRDFXML:   "application/rdf+xml",
		FormatJSONLD:   "application/ld+json",
	}
	for f, want := range cases {
		if got := MediaType(f); got != want {
			t.Fatalf("MediaType(%v) = %q, want %q", f, got, want)
		}
	}
}

func TestMediaTypeUnknownIsEmpty(t *testing.T) {
	if got := MediaType(FormatUnknown); got != "" {
		t.Fatalf("want empty string, got %q", got)
	}
}

func TestFormatStringNames(t *testing.T) {
	if FormatTurtle.String() != "Turtle" {
		t.Fatalf("want Turtle, got %q", FormatTurtle.String())
	}
	if FormatUnknown.String() != "unknown" {
		t.Fatalf("want unknown, got %q", FormatUnknown.String())
	}
}

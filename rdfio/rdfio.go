// Package rdfio defines the parser/writer callback contract and content
// negotiation surface spec.md §6 names but leaves as an external
// collaborator: actual Turtle/N-Quads/RDF-XML/JSON-LD codec bodies are a
// Non-goal (spec.md §6), but the shape callers write against — the
// borrowed-span callback and the format/negotiation types — belongs in
// this module so a concrete codec can be dropped in later without
// touching the store or query engine.
package rdfio

import (
	"mime"
	"sort"
	"strconv"
	"strings"
)

// TripleHandler receives one parsed triple or quad. subject, predicate,
// object and graph (graph is nil for a triple, or a default-graph quad)
// are borrowed byte windows valid only for the duration of the call, per
// spec.md's "callback with borrowed spans" redesign note: a handler that
// needs to retain a span must copy it.
type TripleHandler func(subject, predicate, object, graph []byte) error

// Format is one of the six RDF serializations spec.md §6 names.
type Format int

const (
	FormatUnknown Format = iota
	FormatNTriples
	FormatTurtle
	FormatNQuads
	FormatTriG
	FormatRDFXML
	FormatJSONLD
)

// String names the format the way its registered media type does.
func (f Format) String() string {
	switch f {
	case FormatNTriples:
		return "N-Triples"
	case FormatTurtle:
		return "Turtle"
	case FormatNQuads:
		return "N-Quads"
	case FormatTriG:
		return "TriG"
	case FormatRDFXML:
		return "RDF/XML"
	case FormatJSONLD:
		return "JSON-LD"
	default:
		return "unknown"
	}
}

// mediaTypes lists every format's canonical Content-Type, in the same
// order Format's constants are declared.
var mediaTypes = map[Format]string{
	FormatNTriples: "application/n-triples",
	FormatTurtle:   "text/turtle",
	FormatNQuads:   "application/n-quads",
	FormatTriG:     "application/trig",
	FormatRDFXML:   "application/rdf+xml",
	FormatJSONLD:   "application/ld+json",
}

// extensions maps a lowercase file extension (without the dot) to its
// format, the symmetric counterpart of mediaTypes per spec.md §6
// "File-extension mapping is symmetric".
var extensions = map[string]Format{
	"nt":     FormatNTriples,
	"ttl":    FormatTurtle,
	"nq":     FormatNQuads,
	"trig":   FormatTriG,
	"rdf":    FormatRDFXML,
	"rdfxml": FormatRDFXML,
	"xml":    FormatRDFXML,
	"jsonld": FormatJSONLD,
}

// MediaType returns f's canonical Content-Type, or "" for FormatUnknown.
func MediaType(f Format) string { return mediaTypes[f] }

// FormatFromExtension maps a file extension (with or without a leading
// dot) to its format, or FormatUnknown if unrecognized.
func FormatFromExtension(ext string) Format {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	return extensions[ext]
}

// formatFromMediaType reverse-looks-up a bare media type (no parameters,
// already lowercased) against mediaTypes.
func formatFromMediaType(mt string) Format {
	for f, registered := range mediaTypes {
		if registered == mt {
			return f
		}
	}
	return FormatUnknown
}

// NegotiateFormat picks the serialization for a request per spec.md §6:
// a Content-Type header (request bodies — no preference list, just one
// value) takes priority when set and recognized; otherwise an Accept
// header is parsed for q-values and the highest-preference supported
// format wins; Turtle is the default when neither header names a
// supported format.
func NegotiateFormat(contentType, accept string) Format {
	if contentType != "" {
		if f := formatFromContentType(contentType); f != FormatUnknown {
			return f
		}
	}
	if accept != "" {
		if f := formatFromAccept(accept); f != FormatUnknown {
			return f
		}
	}
	return FormatTurtle
}

func formatFromContentType(contentType string) Format {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	return formatFromMediaType(strings.ToLower(mt))
}

// acceptEntry is one comma-separated Accept header member with its
// parsed q-value (default 1.0 when absent).
type acceptEntry struct {
	mediaType string
	q         float64
}

// formatFromAccept parses an Accept header's q-values (RFC 7231 §5.3.2)
// and returns the highest-preference entry whose media type is one of
// our six supported formats; ties keep the header's original order.
func formatFromAccept(accept string) Format {
	var entries []acceptEntry
	for _, part := range strings.Split(accept, ",") {
		mt, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		q := 1.0
		if raw, ok := params["q"]; ok {
			if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
				q = parsed
			}
		}
		entries = append(entries, acceptEntry{mediaType: strings.ToLower(mt), q: q})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].q > entries[j].q })
	for _, e := range entries {
		if e.mediaType == "*/*" {
			return FormatTurtle
		}
		if f := formatFromMediaType(e.mediaType); f != FormatUnknown {
			return f
		}
	}
	return FormatUnknown
}

package sparql

// Span is a (start, length) window into a source byte slice. The AST
// never copies term text; callers resolve it on demand via Text, which
// lets the parser run without allocating a string per term.
type Span struct {
	Start uint32
	Len   uint32
}

// Text resolves the span against src. src must be the same slice (or an
// identical copy) passed to Parse.
func (s Span) Text(src []byte) string {
	if s.Len == 0 {
		return ""
	}
	return string(src[s.Start : s.Start+s.Len])
}

func (s Span) empty() bool { return s.Len == 0 }

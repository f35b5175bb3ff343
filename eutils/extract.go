// ===========================================================================
//
//                            PUBLIC DOMAIN NOTICE
//            National Center for Biotechnology Information (NCBI)
//
//  This software/database is a "United States Government Work" under the
//  terms of the United States Copyright Act. It was written as part of
//  the author's official duties as a United States Government employee and
//  thus cannot be copyrighted. This software/database is freely available
//  to the public for use. The National Library of Medicine and the U.S.
//  Government do not place any restriction on its use or reproduction.
//  We would, however, appreciate having the NCBI and the author cited in
//  any work or product based on this material.
//
//  Although all reasonable efforts have been taken to ensure the accuracy
//  and reliability of the software and data, the NLM and the U.S.
//  Government do not and cannot warrant the performance or results that
//  may be obtained by using this software or data. The NLM and the U.S.
//  Government disclaim all warranties, express or implied, including
//  warranties of performance, merchantability or fitness for any particular
//  purpose.
//
// ===========================================================================
//
// File Name:  extract.go
//
// ==========================================================================

package eutils

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SequenceRecord describes the record whose sequence was extracted. The
// sequence itself is never stored here, it flows out as SequenceFragments.
type SequenceRecord struct {
	Identifier string
	Declared   int
	Length     int
}

// SequenceFragment is the next run of sequence characters. Offset is the
// 0-based position of Text[0] within the whole sequence.
type SequenceFragment struct {
	Offset int
	Text   string
}

// ExtractFields names the elements of interest. Several names are allowed
// for each field so that TSeq and INSDSeq documents are both recognized.
type ExtractFields struct {
	Sequence   []string
	Length     []string
	Identifier []string
	Fold       string
}

// DefaultExtractFields covers efetch FASTA XML (TSeq) and GenBank XML (INSDSeq)
func DefaultExtractFields() ExtractFields {

	return ExtractFields{
		Sequence:   []string{"TSeq_sequence", "INSDSeq_sequence"},
		Length:     []string{"TSeq_length", "INSDSeq_length"},
		Identifier: []string{"TSeq_accver", "INSDSeq_accession-version"},
	}
}

// tokenizer states
type xmlState int

const (
	inText xmlState = iota
	inEntity
	inMarkup
	inStartTag
	inEndTag
	inComment
	inCData
	inProcInst
	inDeclaration
)

// capture roles for the innermost open element
type captureRole int

const (
	noCapture captureRole = iota
	seqCapture
	lengthCapture
	identCapture
	errorCapture
)

const (
	// longest start or end tag, including attributes
	maxTagLength = 65536
	// longest entity reference between '&' and ';'
	maxEntityLength = 12
	// longest metadata value retained
	maxCaptureLength = 4096
)

// SequenceExtractor is an incremental XML reader that pulls the nucleotide text
// out of an efetch record while it streams past. Only the stack of open element
// names, one partial tag, and short metadata values are retained; sequence text
// is handed on as it is parsed.
type SequenceExtractor struct {
	fields ExtractFields
	caser  *cases.Caser

	state xmlState
	stack []string
	role  captureRole

	tag     []byte
	entity  []byte
	capture strings.Builder
	quote   byte
	prev    [2]byte
	bracket int

	rootSeen   bool
	rootClosed bool
	seqOpen    bool
	seqFound   bool
	seqDone    bool

	pending strings.Builder
	offset  int
	errText string

	record SequenceRecord
	pos    int64
	err    error
}

// NewSequenceExtractor prepares an extractor. Fold may be "upper" or "lower" to
// normalize sequence case.
func NewSequenceExtractor(fields ExtractFields) *SequenceExtractor {

	if len(fields.Sequence) == 0 {
		fields = DefaultExtractFields()
	}

	x := &SequenceExtractor{fields: fields}
	x.record.Declared = -1

	switch fields.Fold {
	case "upper":
		cs := cases.Upper(language.Und)
		x.caser = &cs
	case "lower":
		cs := cases.Lower(language.Und)
		x.caser = &cs
	}

	return x
}

// Record returns what is known about the record so far. Declared is -1 until the
// length element has been parsed.
func (x *SequenceExtractor) Record() SequenceRecord {

	return x.record
}

func (x *SequenceExtractor) malformed(format string, args ...interface{}) error {

	if x.err == nil {
		args = append(args, x.pos)
		x.err = kindError(MALFORMEDSOURCE, format+" at byte %d", args...)
	}
	return x.err
}

func localName(name string) string {

	if idx := strings.LastIndexByte(name, ':'); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

func nameIn(name string, list []string) bool {

	for _, str := range list {
		if name == str {
			return true
		}
	}
	return false
}

func isXMLSpace(ch byte) bool {

	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isNameStart(ch byte) bool {

	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_' || ch == ':' || ch >= 0x80
}

// Feed parses the next block of raw bytes. Sequence text found in the block is
// passed to emit only after the whole block has parsed cleanly, so no fragment
// ever precedes a syntax error in the same block.
func (x *SequenceExtractor) Feed(data []byte, emit func(SequenceFragment) error) error {

	if x.err != nil {
		return x.err
	}

	for _, ch := range data {
		if err := x.step(ch); err != nil {
			x.pending.Reset()
			return err
		}
		x.pos++
	}

	return x.flush(emit)
}

// Close reports the record after the last block. It fails if the document was
// truncated or never contained a sequence element.
func (x *SequenceExtractor) Close() (SequenceRecord, error) {

	if x.err != nil {
		return x.record, x.err
	}

	if x.state != inText {
		return x.record, x.malformed("unexpected end of input inside markup")
	}
	if len(x.stack) > 0 {
		return x.record, x.malformed("unexpected end of input, <%s> is not closed", x.stack[len(x.stack)-1])
	}
	if !x.rootSeen {
		return x.record, x.malformed("no XML element found")
	}
	if !x.seqFound {
		if x.errText != "" {
			x.err = kindError(SOURCEUNAVAILABLE, "server returned error '%s'", x.errText)
			return x.record, x.err
		}
		return x.record, x.malformed("no <%s> element found", strings.Join(x.fields.Sequence, "> or <"))
	}

	return x.record, nil
}

// flush sends accumulated sequence text downstream
func (x *SequenceExtractor) flush(emit func(SequenceFragment) error) error {

	if x.pending.Len() == 0 {
		return nil
	}

	txt := x.pending.String()
	x.pending.Reset()

	if x.caser != nil {
		txt = x.caser.String(txt)
	}

	// length and offsets both count bytes after case folding
	frag := SequenceFragment{Offset: x.offset, Text: txt}
	x.offset += len(txt)
	x.record.Length = x.offset

	if emit == nil {
		return nil
	}
	return emit(frag)
}

// step advances the tokenizer by one byte
func (x *SequenceExtractor) step(ch byte) error {

	switch x.state {

	case inText:
		switch ch {
		case '<':
			x.state = inMarkup
			x.tag = x.tag[:0]
		case '&':
			x.state = inEntity
			x.entity = x.entity[:0]
		default:
			return x.charData(ch)
		}

	case inEntity:
		if ch == ';' {
			x.state = inText
			return x.resolveEntity()
		}
		if len(x.entity) >= maxEntityLength {
			return x.malformed("unterminated entity reference '&%s'", string(x.entity))
		}
		x.entity = append(x.entity, ch)

	case inMarkup:
		// classify the markup from its first bytes
		x.tag = append(x.tag, ch)
		mrk := string(x.tag)
		switch {
		case mrk == "/":
			x.state = inEndTag
			x.tag = x.tag[:0]
		case mrk == "?":
			x.state = inProcInst
			x.prev = [2]byte{}
		case mrk == "!--":
			x.state = inComment
			x.prev = [2]byte{}
		case mrk == "![CDATA[":
			if !x.seqOpen && len(x.stack) == 0 {
				return x.malformed("CDATA section outside of root element")
			}
			x.state = inCData
			x.bracket = 0
		case strings.HasPrefix("!--", mrk), strings.HasPrefix("![CDATA[", mrk):
			// keep reading
		case mrk[0] == '!':
			x.state = inDeclaration
			x.quote = 0
			x.bracket = 0
			return x.declaration(ch)
		case isNameStart(mrk[0]):
			x.state = inStartTag
			x.quote = 0
		default:
			return x.malformed("invalid character '%c' after '<'", ch)
		}

	case inStartTag:
		if x.quote != 0 {
			if ch == x.quote {
				x.quote = 0
			}
		} else if ch == '"' || ch == '\'' {
			x.quote = ch
		} else if ch == '>' {
			x.state = inText
			return x.startElement()
		} else if ch == '<' {
			return x.malformed("unexpected '<' inside tag")
		}
		if len(x.tag) >= maxTagLength {
			return x.malformed("tag exceeds %d bytes", maxTagLength)
		}
		x.tag = append(x.tag, ch)

	case inEndTag:
		if ch == '>' {
			x.state = inText
			return x.endElement()
		}
		if ch == '<' {
			return x.malformed("unexpected '<' inside end tag")
		}
		if len(x.tag) >= maxTagLength {
			return x.malformed("end tag exceeds %d bytes", maxTagLength)
		}
		x.tag = append(x.tag, ch)

	case inComment:
		if ch == '>' && x.prev[0] == '-' && x.prev[1] == '-' {
			x.state = inText
			return nil
		}
		x.prev[0], x.prev[1] = x.prev[1], ch

	case inProcInst:
		if ch == '>' && x.prev[1] == '?' {
			x.state = inText
			return nil
		}
		x.prev[0], x.prev[1] = x.prev[1], ch

	case inCData:
		// CDATA content is character data without entity decoding, ended by "]]>"
		switch {
		case ch == ']':
			x.bracket++
			if x.bracket > 2 {
				x.bracket = 2
				return x.charData(']')
			}
		case ch == '>' && x.bracket == 2:
			x.state = inText
			x.bracket = 0
		default:
			for ; x.bracket > 0; x.bracket-- {
				if err := x.charData(']'); err != nil {
					return err
				}
			}
			return x.charData(ch)
		}

	case inDeclaration:
		return x.declaration(ch)
	}

	return nil
}

// declaration skips a DOCTYPE (including an internal subset) or similar "<!" markup
func (x *SequenceExtractor) declaration(ch byte) error {

	if x.rootSeen {
		return x.malformed("declaration after root element")
	}

	switch {
	case x.quote != 0:
		if ch == x.quote {
			x.quote = 0
		}
	case ch == '"' || ch == '\'':
		x.quote = ch
	case ch == '[':
		x.bracket++
	case ch == ']':
		x.bracket--
	case ch == '>' && x.bracket <= 0:
		x.state = inText
		x.bracket = 0
	}

	return nil
}

// charData routes one byte of character content
func (x *SequenceExtractor) charData(ch byte) error {

	switch x.role {
	case seqCapture:
		if !isXMLSpace(ch) {
			x.pending.WriteByte(ch)
		}
		return nil
	case lengthCapture, identCapture, errorCapture:
		if x.capture.Len() < maxCaptureLength {
			x.capture.WriteByte(ch)
		}
		return nil
	}

	if len(x.stack) == 0 && !isXMLSpace(ch) {
		if x.rootClosed {
			return x.malformed("text after root element")
		}
		return x.malformed("text before root element")
	}

	return nil
}

var xmlEntities = map[string]string{
	"amp":  "&",
	"lt":   "<",
	"gt":   ">",
	"quot": "\"",
	"apos": "'",
}

func (x *SequenceExtractor) resolveEntity() error {

	ent := string(x.entity)
	str, ok := xmlEntities[ent]

	if !ok && strings.HasPrefix(ent, "#") {
		num := ent[1:]
		base := 10
		if strings.HasPrefix(num, "x") || strings.HasPrefix(num, "X") {
			num = num[1:]
			base = 16
		}
		val, err := strconv.ParseInt(num, base, 32)
		if err == nil && utf8.ValidRune(rune(val)) {
			str = string(rune(val))
			ok = true
		}
	}

	if !ok {
		return x.malformed("unknown entity '&%s;'", ent)
	}

	for i := 0; i < len(str); i++ {
		if err := x.charData(str[i]); err != nil {
			return err
		}
	}

	return nil
}

func (x *SequenceExtractor) startElement() error {

	str := strings.TrimSpace(string(x.tag))
	selfClosing := strings.HasSuffix(str, "/")
	if selfClosing {
		str = strings.TrimSpace(str[:len(str)-1])
	}

	name := str
	if idx := strings.IndexAny(str, " \t\r\n"); idx >= 0 {
		name = str[:idx]
	}
	if name == "" {
		return x.malformed("empty element name")
	}

	if len(x.stack) == 0 {
		if x.rootClosed {
			return x.malformed("second root element <%s>", name)
		}
		x.rootSeen = true
	}

	if x.role == seqCapture {
		return x.malformed("unexpected element <%s> inside sequence", name)
	}

	lcl := localName(name)

	if selfClosing {
		if len(x.stack) == 0 {
			x.rootClosed = true
		}
		// an empty sequence element is present, not missing
		if nameIn(lcl, x.fields.Sequence) && !x.seqDone {
			x.seqFound = true
			x.seqDone = true
		}
		return nil
	}

	x.stack = append(x.stack, name)

	switch {
	case nameIn(lcl, x.fields.Sequence) && !x.seqDone:
		x.role = seqCapture
		x.seqOpen = true
		x.seqFound = true
	case nameIn(lcl, x.fields.Length) && x.record.Declared < 0:
		x.role = lengthCapture
		x.capture.Reset()
	case nameIn(lcl, x.fields.Identifier) && x.record.Identifier == "":
		x.role = identCapture
		x.capture.Reset()
	case lcl == "ERROR" && x.errText == "":
		x.role = errorCapture
		x.capture.Reset()
	default:
		x.role = noCapture
	}

	return nil
}

func (x *SequenceExtractor) endElement() error {

	name := strings.TrimSpace(string(x.tag))

	if len(x.stack) == 0 {
		return x.malformed("unexpected end tag </%s>", name)
	}

	top := x.stack[len(x.stack)-1]
	if name != top {
		return x.malformed("end tag </%s> does not match <%s>", name, top)
	}

	x.stack = x.stack[:len(x.stack)-1]

	switch x.role {
	case seqCapture:
		// only the first sequence element is searched
		x.seqOpen = false
		x.seqDone = true
	case lengthCapture:
		val, err := strconv.Atoi(strings.TrimSpace(x.capture.String()))
		if err != nil {
			DisplayWarning("Declared sequence length '%s' is not an integer", x.capture.String())
		} else {
			x.record.Declared = val
		}
	case identCapture:
		x.record.Identifier = strings.TrimSpace(x.capture.String())
	case errorCapture:
		x.errText = strings.TrimSpace(x.capture.String())
	}

	x.role = noCapture
	x.capture.Reset()

	if len(x.stack) == 0 {
		x.rootClosed = true
	}

	return nil
}

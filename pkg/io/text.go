package io

import (
	"bytes"
	"strings"

	"github.com/matzehuels/catbits/pkg/errors"
)

// Format names an artifact encoding.
type Format string

const (
	// FormatBinary stores packed bytes.
	FormatBinary Format = "bin"
	// FormatText stores one ASCII '0' or '1' per bit, MSB first.
	FormatText Format = "text"
)

// ValidFormats is the set of supported artifact encodings.
var ValidFormats = map[Format]bool{
	FormatBinary: true,
	FormatText:   true,
}

// Text wraps a sink so that every appended byte is written as eight ASCII
// digits. The conversion happens before the inner Append, so the one write
// per image guarantee still holds.
type Text struct {
	Sink
}

// NewText returns a text-encoding wrapper around s.
func NewText(s Sink) *Text { return &Text{Sink: s} }

// Append writes p as '0'/'1' characters.
func (t *Text) Append(p []byte) error {
	return t.Sink.Append(EncodeText(p))
}

// EncodeText renders bytes as ASCII bits, MSB first.
func EncodeText(p []byte) []byte {
	out := make([]byte, 0, len(p)*8)
	for _, b := range p {
		for i := 7; i >= 0; i-- {
			out = append(out, '0'+(b>>uint(i))&1)
		}
	}
	return out
}

// DecodeText packs the '0' and '1' characters of data into bytes, ignoring
// every other character. A trailing partial byte is zero-padded.
func DecodeText(data []byte) ([]byte, error) {
	var (
		out  bytes.Buffer
		cur  byte
		nbit int
	)
	for _, c := range data {
		switch c {
		case '0', '1':
			cur = cur<<1 | (c - '0')
			nbit++
			if nbit == 8 {
				out.WriteByte(cur)
				cur, nbit = 0, 0
			}
		}
	}
	if nbit > 0 {
		out.WriteByte(cur << uint(8-nbit))
	}
	if out.Len() == 0 && len(data) > 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no bit characters found")
	}
	return out.Bytes(), nil
}

// DetectFormat guesses the encoding of an artifact from its contents: text
// when every byte is '0', '1' or whitespace.
func DetectFormat(data []byte) Format {
	if len(data) == 0 {
		return FormatBinary
	}
	if strings.Trim(string(data), "01 \t\r\n") == "" {
		return FormatText
	}
	return FormatBinary
}

var _ Sink = (*Text)(nil)

package csvenc

import (
	"bytes"
	"testing"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

func TestWriterUTF8(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write([]string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	w.Flush()
	if got := buf.String(); got != "a,b\n" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestWriterCP932EncodesJapanese(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, EncodingCP932)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write([]string{"資産", "貸出"}); err != nil {
		t.Fatal(err)
	}
	w.Flush()

	decoded, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if string(decoded) != "資産,貸出\n" {
		t.Fatalf("round trip mismatch: %q", decoded)
	}
	// UTF-8のままではないこと
	if bytes.Contains(buf.Bytes(), []byte("資産")) {
		t.Fatal("output is not Shift_JIS encoded")
	}
}

func TestWriterUnknownEncoding(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewWriter(&buf, "ebcdic"); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}

func TestContentType(t *testing.T) {
	if got := ContentType(EncodingCP932); got != "text/csv; charset=Shift_JIS" {
		t.Fatalf("unexpected content type: %q", got)
	}
	if got := ContentType(""); got != "text/csv; charset=utf-8" {
		t.Fatalf("unexpected content type: %q", got)
	}
}

package serial

import (
	"testing"
	"time"
)

func TestPrimitivesRoundTrip(t *testing.T) {
	w := NewWriter(nil)
	w.PutUint8(42)
	w.PutBool(true)
	w.PutUint16(1234)
	w.PutUint32(123456789)
	w.PutUint64(123456789012345)
	w.PutFloat64(3.14159)
	w.PutString("hello webalizer")

	r := NewReader(w.Bytes())
	if v, err := r.Uint8(); err != nil || v != 42 {
		t.Fatalf("Uint8 = %v, %v", v, err)
	}
	if v, err := r.Bool(); err != nil || v != true {
		t.Fatalf("Bool = %v, %v", v, err)
	}
	if v, err := r.Uint16(); err != nil || v != 1234 {
		t.Fatalf("Uint16 = %v, %v", v, err)
	}
	if v, err := r.Uint32(); err != nil || v != 123456789 {
		t.Fatalf("Uint32 = %v, %v", v, err)
	}
	if v, err := r.Uint64(); err != nil || v != 123456789012345 {
		t.Fatalf("Uint64 = %v, %v", v, err)
	}
	if v, err := r.Float64(); err != nil || v != 3.14159 {
		t.Fatalf("Float64 = %v, %v", v, err)
	}
	if v, err := r.String(); err != nil || v != "hello webalizer" {
		t.Fatalf("String = %q, %v", v, err)
	}
}

func TestShortBuffer(t *testing.T) {
	r := NewReader([]byte{1, 2})
	if _, err := r.Uint64(); err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
}

func TestPackRecordHeaderAndSize(t *testing.T) {
	buf := PackRecord(7, func(w *Writer) {
		w.PutUint64(100)
		w.PutString("abc")
	})
	version, size, err := Header(buf)
	if err != nil {
		t.Fatal(err)
	}
	if version != 7 {
		t.Fatalf("version = %d, want 7", version)
	}
	wantSize := 8 + 4 + 3
	if int(size) != wantSize {
		t.Fatalf("payload size = %d, want %d", size, wantSize)
	}
	total, err := SizeOfEncoded(buf)
	if err != nil {
		t.Fatal(err)
	}
	if total != len(buf) {
		t.Fatalf("SizeOfEncoded = %d, want %d", total, len(buf))
	}

	payload, v, err := Payload(buf)
	if err != nil || v != 7 {
		t.Fatalf("Payload() version = %d, err = %v", v, err)
	}
	n, err := payload.Uint64()
	if err != nil || n != 100 {
		t.Fatalf("n = %d, err = %v", n, err)
	}
	s, err := payload.String()
	if err != nil || s != "abc" {
		t.Fatalf("s = %q, err = %v", s, err)
	}
}

func TestSizeOfEncodedShortBuffer(t *testing.T) {
	buf := PackRecord(1, func(w *Writer) { w.PutUint64(1) })
	if _, err := SizeOfEncoded(buf[:HeaderSize+2]); err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
}

func TestCompareUint64Field(t *testing.T) {
	a := PackRecord(1, func(w *Writer) { w.PutUint64(5) })
	b := PackRecord(1, func(w *Writer) { w.PutUint64(9) })
	cmp, err := CompareUint64Field(a, b, 0)
	if err != nil {
		t.Fatal(err)
	}
	if cmp >= 0 {
		t.Fatalf("cmp = %d, want negative", cmp)
	}
}

func TestCompareStringField(t *testing.T) {
	a := PackRecord(1, func(w *Writer) { w.PutString("alpha") })
	b := PackRecord(1, func(w *Writer) { w.PutString("beta") })
	cmp, err := CompareStringField(a, b, 0)
	if err != nil {
		t.Fatal(err)
	}
	if cmp >= 0 {
		t.Fatalf("cmp = %d, want negative", cmp)
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	want := FromTime(time.Date(2020, 6, 15, 10, 30, 0, 0, time.UTC))
	w := NewWriter(nil)
	w.PutTimestamp(want)
	got, err := NewReader(w.Bytes()).Timestamp()
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestTimestampNull(t *testing.T) {
	w := NewWriter(nil)
	w.PutTimestamp(Timestamp{Null: true})
	got, err := NewReader(w.Bytes()).Timestamp()
	if err != nil {
		t.Fatal(err)
	}
	if !got.Null {
		t.Fatalf("expected Null timestamp, got %+v", got)
	}
}

func TestForwardCompatibleAppendedFields(t *testing.T) {
	// An old reader only consumes the fields it knows about from the
	// payload reader; it must not error when the payload carries more
	// bytes after those fields (a newer writer's appended fields).
	buf := PackRecord(2, func(w *Writer) {
		w.PutUint64(1)
		w.PutUint64(2) // field unknown to an old reader
	})
	payload, _, err := Payload(buf)
	if err != nil {
		t.Fatal(err)
	}
	v, err := payload.Uint64()
	if err != nil || v != 1 {
		t.Fatalf("v = %d, err = %v", v, err)
	}
	if payload.Remaining() != 8 {
		t.Fatalf("remaining = %d, want 8", payload.Remaining())
	}
}

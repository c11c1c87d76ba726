package tlv

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeFieldsRoundTripPreservesUnknown(t *testing.T) {
	in := []Field{
		{ID: 1, Type: TypeString, Value: []byte("intent-1")},
		{ID: 9999, Type: TypeBytes, Value: []byte{0xAA, 0xBB}}, // unknown field id
	}
	b := EncodeFields(in)
	out, err := DecodeFields(b)
	if err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(out))
	}
	if out[1].ID != 9999 || out[1].Type != TypeBytes || !bytes.Equal(out[1].Value, []byte{0xAA, 0xBB}) {
		t.Fatalf("unknown field not preserved: %+v", out[1])
	}
}

func TestDecodeFieldsMalformedHeaderIsDeterministic(t *testing.T) {
	_, err := DecodeFields([]byte{1, 2, 3})
	if !errors.Is(err, ErrShortFieldHeader) {
		t.Fatalf("expected ErrShortFieldHeader, got %v", err)
	}
}

func TestDecodeFieldsMalformedLengthIsDeterministic(t *testing.T) {
	// id=1, type=string, len=5, value only 2 bytes
	payload := []byte{0, 1, TypeString, 0, 0, 0, 5, 'a', 'b'}
	_, err := DecodeFields(payload)
	if !errors.Is(err, ErrShortFieldValue) {
		t.Fatalf("expected ErrShortFieldValue, got %v", err)
	}
}

func TestTypedAccessors(t *testing.T) {
	fields, err := DecodeFields(EncodeFields([]Field{
		NewUint32(1, 7),
		NewUint64(2, 1<<40),
		NewBool(3, true),
		NewString(4, "stream"),
		NewBytes(5, []byte{9}),
	}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v, err := fields[0].Uint32(); err != nil || v != 7 {
		t.Fatalf("u32=%d err=%v", v, err)
	}
	if v, err := fields[1].Uint64(); err != nil || v != 1<<40 {
		t.Fatalf("u64=%d err=%v", v, err)
	}
	if v, err := fields[2].Bool(); err != nil || !v {
		t.Fatalf("bool=%v err=%v", v, err)
	}
	if v, err := fields[3].Text(); err != nil || v != "stream" {
		t.Fatalf("text=%q err=%v", v, err)
	}
	if v, err := fields[4].Blob(); err != nil || !bytes.Equal(v, []byte{9}) {
		t.Fatalf("blob=%v err=%v", v, err)
	}
	if _, err := fields[3].Uint64(); !errors.Is(err, ErrFieldTypeMismatch) {
		t.Fatalf("expected ErrFieldTypeMismatch, got %v", err)
	}
	bad := Field{ID: 6, Type: TypeBool, Value: []byte{2}}
	if _, err := bad.Bool(); !errors.Is(err, ErrInvalidBool) {
		t.Fatalf("expected ErrInvalidBool, got %v", err)
	}
}

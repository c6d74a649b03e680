package message

import "testing"

func TestKind(t *testing.T) {
	cases := []struct {
		kind  Kind
		name  string
		valid bool
	}{
		{Call, "CALL", true},
		{Reply, "REPLY", true},
		{Exception, "EXCEPTION", true},
		{Oneway, "ONEWAY", true},
		{0, "Kind(0)", false},
		{5, "Kind(5)", false},
	}
	for _, c := range cases {
		if c.kind.String() != c.name || c.kind.Valid() != c.valid {
			t.Errorf("kind %d: got %s/%v, want %s/%v", c.kind, c.kind, c.kind.Valid(), c.name, c.valid)
		}
	}
}

func TestApplicationExceptionError(t *testing.T) {
	e := &ApplicationException{Type: ExceptionBadSequenceID, Message: "seq 3, want 2"}
	if got := e.Error(); got != "application exception (bad sequence id): seq 3, want 2" {
		t.Fatalf("unexpected message %q", got)
	}
	e = &ApplicationException{Type: ExceptionType(42)}
	if got := e.Error(); got != "application exception: exception type 42" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestApplicationExceptionDesc(t *testing.T) {
	msg, ok := ApplicationExceptionDesc.FieldByID(1)
	if !ok || msg.Name != "message" {
		t.Fatalf("field 1 = %+v", msg)
	}
	typ, ok := ApplicationExceptionDesc.FieldByID(2)
	if !ok || typ.Name != "type" {
		t.Fatalf("field 2 = %+v", typ)
	}
}

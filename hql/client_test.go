package hql

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"hqlrpc/client"
	"hqlrpc/codec"
	"hqlrpc/message"
	"hqlrpc/protocol"
	"hqlrpc/schema"
	"hqlrpc/transport"
)

func cannedReply(t *testing.T, m *schema.Method, seq int32, result *codec.Struct) []byte {
	t.Helper()
	w := protocol.NewBufferWriter(nil, protocol.DefaultOptions())
	if err := w.WriteMessageBegin(message.Envelope{Name: m.Name, Kind: message.Reply, SeqID: seq}); err != nil {
		t.Fatal(err)
	}
	if err := codec.Encode(w, result); err != nil {
		t.Fatal(err)
	}
	return w.Bytes()
}

func sampleResult() *HqlResult {
	return &HqlResult{
		Results: codec.Some([]string{"1"}),
		Cells: codec.Some([]*Cell{{
			Key: codec.Some(&Key{
				Row:          codec.Some("r1"),
				ColumnFamily: codec.Some("cf"),
				Timestamp:    codec.Some(int64(1700000000)),
				Flag:         codec.Some(KeyFlagInsert),
			}),
			Value: codec.Some("v1"),
		}}),
		Scanner: codec.Some(int64(0)),
	}
}

func TestHqlQueryEndToEnd(t *testing.T) {
	want := sampleResult()
	mem := transport.NewMemory()
	mem.Feed(cannedReply(t, HqlQuery, 1, codec.New(HqlQueryResult).Set("success", want.ToStruct())))

	got, err := NewClient(mem).HqlQuery(context.Background(), 42, "SELECT 1")
	if err != nil {
		t.Fatalf("HqlQuery failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("result mismatch:\ngot  %+v\nwant %+v", got, want)
	}
	if _, ok := got.Mutator.Get(); ok {
		t.Fatal("absent mutator decoded as present")
	}

	r := protocol.NewSliceReader(mem.Written(), protocol.DefaultOptions())
	env, err := r.ReadMessageBegin()
	if err != nil {
		t.Fatal(err)
	}
	if env != (message.Envelope{Name: "hql_query", Kind: message.Call, SeqID: 1}) {
		t.Fatalf("unexpected call header %v", env)
	}
	args, err := codec.Decode(r, HqlQueryArgs)
	if err != nil {
		t.Fatal(err)
	}
	if args.Len() != 2 {
		t.Fatalf("expect 2 argument fields, got %d", args.Len())
	}
	if ns, _ := args.Get("ns"); ns != int64(42) {
		t.Errorf("ns = %v", ns)
	}
	if cmd, _ := args.Get("command"); cmd != "SELECT 1" {
		t.Errorf("command = %v", cmd)
	}
	if r.Remaining() != 0 {
		t.Errorf("%d trailing bytes after the call", r.Remaining())
	}
}

func TestClientExceptionPropagates(t *testing.T) {
	mem := transport.NewMemory()
	exc := &ClientException{Code: 0x10004, Message: "Namespace 'nope' does not exist"}
	mem.Feed(cannedReply(t, NamespaceOpen, 1, codec.New(NamespaceOpenResult).Set("e", exc.ToStruct())))

	_, err := NewClient(mem).NamespaceOpen(context.Background(), "nope")
	if client.KindOf(err) != client.KindDeclared {
		t.Fatalf("expect declared exception, got %v", err)
	}
	var ce *ClientException
	if !errors.As(err, &ce) {
		t.Fatalf("expect *ClientException in chain, got %v", err)
	}
	if *ce != *exc {
		t.Fatalf("exception changed in transit: %+v", ce)
	}
}

func TestSuccessWinsOverException(t *testing.T) {
	mem := transport.NewMemory()
	result := codec.New(NamespaceOpenResult).
		Set("success", int64(7)).
		Set("e", (&ClientException{Code: 1, Message: "ignored"}).ToStruct())
	mem.Feed(cannedReply(t, NamespaceOpen, 1, result))

	ns, err := NewClient(mem).NamespaceOpen(context.Background(), "sys")
	if err != nil || ns != 7 {
		t.Fatalf("NamespaceOpen = %d, %v", ns, err)
	}
}

func TestUnknownResult(t *testing.T) {
	mem := transport.NewMemory()
	mem.Feed(cannedReply(t, HqlExec, 1, codec.New(HqlExecResult)))

	_, err := NewClient(mem).HqlExec(context.Background(), 1, "INSERT INTO t VALUES ('r','cf','v')", false, false)
	if client.KindOf(err) != client.KindUnknownResult {
		t.Fatalf("expect unknown result, got %v", err)
	}
	if err.Error() != "hql_exec failed: unknown result" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestSendRecvPairs(t *testing.T) {
	mem := transport.NewMemory()
	c := NewClient(mem)
	ctx := context.Background()

	if err := c.SendNamespaceExists(ctx, "sys"); err != nil {
		t.Fatal(err)
	}
	mem.Feed(cannedReply(t, NamespaceExists, 1, codec.New(NamespaceExistsResult).Set("success", true)))
	ok, err := c.RecvNamespaceExists(ctx)
	if err != nil || !ok {
		t.Fatalf("RecvNamespaceExists = %v, %v", ok, err)
	}

	if err := c.SendHqlQuery2(ctx, 3, "SELECT * FROM t"); err != nil {
		t.Fatal(err)
	}
	want := &HqlResult2{
		Cells:   codec.Some([][]string{{"r1", "cf", "", "v1"}, {}}),
		Scanner: codec.Some(int64(9)),
	}
	mem.Feed(cannedReply(t, HqlQuery2, 2, codec.New(HqlQuery2Result).Set("success", want.ToStruct())))
	got, err := c.RecvHqlQuery2(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestNamespaceCalls(t *testing.T) {
	mem := transport.NewMemory()
	c := NewClient(mem)
	ctx := context.Background()

	mem.Feed(cannedReply(t, NamespaceClose, 1, codec.New(NamespaceCloseResult)))
	if err := c.NamespaceClose(ctx, 5); err != nil {
		t.Fatalf("NamespaceClose: %v", err)
	}

	listing := codec.List{
		(&NamespaceListing{Name: codec.Some("sys"), IsNamespace: codec.Some(true)}).ToStruct(),
		(&NamespaceListing{Name: codec.Some("METADATA"), IsNamespace: codec.Some(false)}).ToStruct(),
	}
	mem.Feed(cannedReply(t, NamespaceGetListing, 2, codec.New(NamespaceGetListingResult).Set("success", listing)))
	got, err := c.NamespaceGetListing(ctx, 5)
	if err != nil {
		t.Fatalf("NamespaceGetListing: %v", err)
	}
	if len(got) != 2 || got[0].Name.OrElse("") != "sys" || !got[0].IsNamespace.OrElse(false) || got[1].IsNamespace.OrElse(true) {
		t.Fatalf("unexpected listing %+v", got)
	}
}

func TestExecArgumentsOnTheWire(t *testing.T) {
	mem := transport.NewMemory()
	mem.Feed(cannedReply(t, HqlExec2, 1, codec.New(HqlExec2Result).Set("success", (&HqlResult2{Mutator: codec.Some(int64(11))}).ToStruct())))

	res, err := NewClient(mem).HqlExec2(context.Background(), 2, "INSERT", true, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Mutator.OrElse(0) != 11 {
		t.Fatalf("mutator = %v", res.Mutator)
	}

	r := protocol.NewSliceReader(mem.Written(), protocol.DefaultOptions())
	if _, err := r.ReadMessageBegin(); err != nil {
		t.Fatal(err)
	}
	args, err := codec.Decode(r, HqlExec2Args)
	if err != nil {
		t.Fatal(err)
	}
	want := codec.New(HqlExec2Args).Set("ns", int64(2)).Set("command", "INSERT").Set("noflush", true).Set("unbuffered", true)
	if !codec.Equal(args, want) {
		t.Fatalf("args %v, want %v", args, want)
	}
}

func TestServiceTable(t *testing.T) {
	names := []string{
		"hql_query", "hql_exec", "hql_query2", "hql_exec2",
		"namespace_exists", "namespace_open", "namespace_close", "namespace_get_listing",
	}
	for _, name := range names {
		m, ok := Service.Method(name)
		if !ok {
			t.Fatalf("method %s missing", name)
		}
		exc := m.Exceptions()
		if len(exc) != 1 || exc[0].Type.StructDesc() != ClientExceptionDesc {
			t.Errorf("%s must declare exactly ClientException, got %v", name, exc)
		}
	}
	if !NamespaceClose.Void || HqlQuery.Void {
		t.Fatal("void flags wrong")
	}
}

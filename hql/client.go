package hql

import (
	"context"

	"hqlrpc/client"
	"hqlrpc/codec"
	"hqlrpc/transport"
)

// Client calls the HQL service over one transport. Like client.Client it is
// not safe for concurrent use; see Pool.
//
// Every method comes in three forms: X sends and waits for the reply, SendX
// only sends, and RecvX reads the reply to the most recent SendX.
type Client struct {
	core *client.Client
}

// NewClient binds a client to t. Declared ClientExceptions surface as
// *ClientException inside a client.Error of kind client.KindDeclared.
func NewClient(t transport.Transport, opts ...client.Option) *Client {
	all := make([]client.Option, 0, len(opts)+1)
	all = append(all, opts...)
	all = append(all, client.WithException(ClientExceptionDesc, ClientExceptionFromStruct))
	return &Client{core: client.New(t, all...)}
}

// Core exposes the generic client underneath.
func (c *Client) Core() *client.Client {
	return c.core
}

func (c *Client) Close() error {
	return c.core.Close()
}

func queryArgs(ns int64, command string) *codec.Struct {
	return codec.New(HqlQueryArgs).Set("ns", ns).Set("command", command)
}

func execArgs(ns int64, command string, noflush, unbuffered bool) *codec.Struct {
	return codec.New(HqlExecArgs).
		Set("ns", ns).
		Set("command", command).
		Set("noflush", noflush).
		Set("unbuffered", unbuffered)
}

func query2Args(ns int64, command string) *codec.Struct {
	return codec.New(HqlQuery2Args).Set("ns", ns).Set("command", command)
}

func exec2Args(ns int64, command string, noflush, unbuffered bool) *codec.Struct {
	return codec.New(HqlExec2Args).
		Set("ns", ns).
		Set("command", command).
		Set("noflush", noflush).
		Set("unbuffered", unbuffered)
}

func hqlResult(v codec.Value, err error) (*HqlResult, error) {
	if err != nil {
		return nil, err
	}
	return HqlResultFromStruct(v.(*codec.Struct)), nil
}

func hqlResult2(v codec.Value, err error) (*HqlResult2, error) {
	if err != nil {
		return nil, err
	}
	return HqlResult2FromStruct(v.(*codec.Struct)), nil
}

// HqlQuery runs a statement in namespace ns and returns its full result.
func (c *Client) HqlQuery(ctx context.Context, ns int64, command string) (*HqlResult, error) {
	return hqlResult(c.core.Call(ctx, HqlQuery, queryArgs(ns, command)))
}

func (c *Client) SendHqlQuery(ctx context.Context, ns int64, command string) error {
	_, err := c.core.Send(ctx, HqlQuery, queryArgs(ns, command))
	return err
}

func (c *Client) RecvHqlQuery(ctx context.Context) (*HqlResult, error) {
	return hqlResult(c.core.Recv(ctx, HqlQuery, c.core.LastSeqID()))
}

// HqlExec runs a statement. With unbuffered set, SELECTs return a scanner
// handle instead of cells, and INSERTs return a mutator handle; noflush leaves
// the mutator unflushed.
func (c *Client) HqlExec(ctx context.Context, ns int64, command string, noflush, unbuffered bool) (*HqlResult, error) {
	return hqlResult(c.core.Call(ctx, HqlExec, execArgs(ns, command, noflush, unbuffered)))
}

func (c *Client) SendHqlExec(ctx context.Context, ns int64, command string, noflush, unbuffered bool) error {
	_, err := c.core.Send(ctx, HqlExec, execArgs(ns, command, noflush, unbuffered))
	return err
}

func (c *Client) RecvHqlExec(ctx context.Context) (*HqlResult, error) {
	return hqlResult(c.core.Recv(ctx, HqlExec, c.core.LastSeqID()))
}

// HqlQuery2 is HqlQuery returning cells as string arrays.
func (c *Client) HqlQuery2(ctx context.Context, ns int64, command string) (*HqlResult2, error) {
	return hqlResult2(c.core.Call(ctx, HqlQuery2, query2Args(ns, command)))
}

func (c *Client) SendHqlQuery2(ctx context.Context, ns int64, command string) error {
	_, err := c.core.Send(ctx, HqlQuery2, query2Args(ns, command))
	return err
}

func (c *Client) RecvHqlQuery2(ctx context.Context) (*HqlResult2, error) {
	return hqlResult2(c.core.Recv(ctx, HqlQuery2, c.core.LastSeqID()))
}

// HqlExec2 is HqlExec returning cells as string arrays.
func (c *Client) HqlExec2(ctx context.Context, ns int64, command string, noflush, unbuffered bool) (*HqlResult2, error) {
	return hqlResult2(c.core.Call(ctx, HqlExec2, exec2Args(ns, command, noflush, unbuffered)))
}

func (c *Client) SendHqlExec2(ctx context.Context, ns int64, command string, noflush, unbuffered bool) error {
	_, err := c.core.Send(ctx, HqlExec2, exec2Args(ns, command, noflush, unbuffered))
	return err
}

func (c *Client) RecvHqlExec2(ctx context.Context) (*HqlResult2, error) {
	return hqlResult2(c.core.Recv(ctx, HqlExec2, c.core.LastSeqID()))
}

func (c *Client) NamespaceExists(ctx context.Context, ns string) (bool, error) {
	v, err := c.core.Call(ctx, NamespaceExists, codec.New(NamespaceExistsArgs).Set("ns", ns))
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (c *Client) SendNamespaceExists(ctx context.Context, ns string) error {
	_, err := c.core.Send(ctx, NamespaceExists, codec.New(NamespaceExistsArgs).Set("ns", ns))
	return err
}

func (c *Client) RecvNamespaceExists(ctx context.Context) (bool, error) {
	v, err := c.core.Recv(ctx, NamespaceExists, c.core.LastSeqID())
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// NamespaceOpen returns a handle used as ns by the other calls.
func (c *Client) NamespaceOpen(ctx context.Context, ns string) (int64, error) {
	v, err := c.core.Call(ctx, NamespaceOpen, codec.New(NamespaceOpenArgs).Set("ns", ns))
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (c *Client) SendNamespaceOpen(ctx context.Context, ns string) error {
	_, err := c.core.Send(ctx, NamespaceOpen, codec.New(NamespaceOpenArgs).Set("ns", ns))
	return err
}

func (c *Client) RecvNamespaceOpen(ctx context.Context) (int64, error) {
	v, err := c.core.Recv(ctx, NamespaceOpen, c.core.LastSeqID())
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (c *Client) NamespaceClose(ctx context.Context, ns int64) error {
	_, err := c.core.Call(ctx, NamespaceClose, codec.New(NamespaceCloseArgs).Set("ns", ns))
	return err
}

func (c *Client) SendNamespaceClose(ctx context.Context, ns int64) error {
	_, err := c.core.Send(ctx, NamespaceClose, codec.New(NamespaceCloseArgs).Set("ns", ns))
	return err
}

func (c *Client) RecvNamespaceClose(ctx context.Context) error {
	_, err := c.core.Recv(ctx, NamespaceClose, c.core.LastSeqID())
	return err
}

func (c *Client) NamespaceGetListing(ctx context.Context, ns int64) ([]*NamespaceListing, error) {
	return listing(c.core.Call(ctx, NamespaceGetListing, codec.New(NamespaceGetListingArgs).Set("ns", ns)))
}

func (c *Client) SendNamespaceGetListing(ctx context.Context, ns int64) error {
	_, err := c.core.Send(ctx, NamespaceGetListing, codec.New(NamespaceGetListingArgs).Set("ns", ns))
	return err
}

func (c *Client) RecvNamespaceGetListing(ctx context.Context) ([]*NamespaceListing, error) {
	return listing(c.core.Recv(ctx, NamespaceGetListing, c.core.LastSeqID()))
}

func listing(v codec.Value, err error) ([]*NamespaceListing, error) {
	if err != nil {
		return nil, err
	}
	l := v.(codec.List)
	out := make([]*NamespaceListing, 0, len(l))
	for _, item := range l {
		out = append(out, NamespaceListingFromStruct(item.(*codec.Struct)))
	}
	return out, nil
}

package hql

import "hqlrpc/schema"

func exceptionField() schema.Field {
	return schema.Field{ID: 1, Name: "e", Type: schema.StructOf(ClientExceptionDesc)}
}

func success(t schema.TypeSpec) schema.Field {
	return schema.Field{ID: schema.SuccessFieldID, Name: "success", Type: t}
}

var (
	nsField      = schema.Field{ID: 1, Name: "ns", Type: schema.Scalar(schema.I64)}
	commandField = schema.Field{ID: 2, Name: "command", Type: schema.Scalar(schema.String)}
	noflushField = schema.Field{ID: 3, Name: "noflush", Type: schema.Scalar(schema.Bool)}
	unbufField   = schema.Field{ID: 4, Name: "unbuffered", Type: schema.Scalar(schema.Bool)}
	nsNameField  = schema.Field{ID: 1, Name: "ns", Type: schema.Scalar(schema.String)}
)

var (
	HqlQueryArgs   = schema.NewStruct("hql_query_args", nsField, commandField)
	HqlQueryResult = schema.NewStruct("hql_query_result", success(schema.StructOf(HqlResultDesc)), exceptionField())

	HqlExecArgs   = schema.NewStruct("hql_exec_args", nsField, commandField, noflushField, unbufField)
	HqlExecResult = schema.NewStruct("hql_exec_result", success(schema.StructOf(HqlResultDesc)), exceptionField())

	HqlQuery2Args   = schema.NewStruct("hql_query2_args", nsField, commandField)
	HqlQuery2Result = schema.NewStruct("hql_query2_result", success(schema.StructOf(HqlResult2Desc)), exceptionField())

	HqlExec2Args   = schema.NewStruct("hql_exec2_args", nsField, commandField, noflushField, unbufField)
	HqlExec2Result = schema.NewStruct("hql_exec2_result", success(schema.StructOf(HqlResult2Desc)), exceptionField())

	NamespaceExistsArgs   = schema.NewStruct("namespace_exists_args", nsNameField)
	NamespaceExistsResult = schema.NewStruct("namespace_exists_result", success(schema.Scalar(schema.Bool)), exceptionField())

	NamespaceOpenArgs   = schema.NewStruct("namespace_open_args", nsNameField)
	NamespaceOpenResult = schema.NewStruct("namespace_open_result", success(schema.Scalar(schema.I64)), exceptionField())

	NamespaceCloseArgs   = schema.NewStruct("namespace_close_args", nsField)
	NamespaceCloseResult = schema.NewStruct("namespace_close_result", exceptionField())

	NamespaceGetListingArgs   = schema.NewStruct("namespace_get_listing_args", nsField)
	NamespaceGetListingResult = schema.NewStruct("namespace_get_listing_result",
		success(schema.ListOf(schema.StructOf(NamespaceListingDesc))), exceptionField())
)

var (
	HqlQuery            = schema.NewMethod("hql_query", HqlQueryArgs, HqlQueryResult)
	HqlExec             = schema.NewMethod("hql_exec", HqlExecArgs, HqlExecResult)
	HqlQuery2           = schema.NewMethod("hql_query2", HqlQuery2Args, HqlQuery2Result)
	HqlExec2            = schema.NewMethod("hql_exec2", HqlExec2Args, HqlExec2Result)
	NamespaceExists     = schema.NewMethod("namespace_exists", NamespaceExistsArgs, NamespaceExistsResult)
	NamespaceOpen       = schema.NewMethod("namespace_open", NamespaceOpenArgs, NamespaceOpenResult)
	NamespaceClose      = schema.NewMethod("namespace_close", NamespaceCloseArgs, NamespaceCloseResult)
	NamespaceGetListing = schema.NewMethod("namespace_get_listing", NamespaceGetListingArgs, NamespaceGetListingResult)
)

// Service lists every method the client can call, HqlService together with
// the namespace calls it inherits.
var Service = schema.NewService("HqlService",
	HqlQuery, HqlExec, HqlQuery2, HqlExec2,
	NamespaceExists, NamespaceOpen, NamespaceClose, NamespaceGetListing,
)

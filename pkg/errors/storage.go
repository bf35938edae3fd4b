package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Repository connection errors. They are fatal to the call: callers get them
// immediately and nothing retries or substitutes a default.
var (
	// ErrInvalidConnectionConfiguration indicates the connection configuration
	// itself is absent or malformed.
	ErrInvalidConnectionConfiguration = Register(&Errno{
		Code:      MakeCode(ServiceStorage, CategoryConfig, 0),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.FailedPrecondition,
		MessageEN: "Invalid connection configuration",
		MessageZH: "连接配置无效",
	})

	// ErrInvalidClientConfiguration indicates no client is configured for the key.
	ErrInvalidClientConfiguration = Register(&Errno{
		Code:      MakeCode(ServiceStorage, CategoryConfig, 1),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.NotFound,
		MessageEN: "Invalid client configuration",
		MessageZH: "客户端配置不存在",
	})

	// ErrInvalidConnectionString indicates the matched client has no connection string.
	ErrInvalidConnectionString = Register(&Errno{
		Code:      MakeCode(ServiceStorage, CategoryConfig, 2),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.FailedPrecondition,
		MessageEN: "Invalid connection string",
		MessageZH: "连接字符串无效",
	})

	// ErrInvalidDatabase indicates the matched client has no database name.
	ErrInvalidDatabase = Register(&Errno{
		Code:      MakeCode(ServiceStorage, CategoryConfig, 3),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.FailedPrecondition,
		MessageEN: "Invalid database",
		MessageZH: "数据库名称无效",
	})
)

// Document mapping errors.
var (
	// ErrTypeAlreadyMapped indicates an explicit mapping was registered for a
	// type whose class map already exists.
	ErrTypeAlreadyMapped = Register(&Errno{
		Code:      MakeCode(ServiceStorage, CategoryConfig, 4),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.FailedPrecondition,
		MessageEN: "Type already mapped",
		MessageZH: "类型映射已存在",
	})

	// ErrUnknownElement indicates a stored document has a field the target
	// type does not map and the type does not ignore extra elements.
	ErrUnknownElement = Register(&Errno{
		Code:      MakeCode(ServiceStorage, CategoryDatabase, 1),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.DataLoss,
		MessageEN: "Unknown document element",
		MessageZH: "文档包含未映射的字段",
	})
)

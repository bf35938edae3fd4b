package errors

// Service codes (AA).
const (
	ServiceCommon  = 0
	ServiceStorage = 10
)

// Category codes (BB).
const (
	CategoryRequest  = 1
	CategoryInternal = 7
	CategoryDatabase = 8
	CategoryConfig   = 12
)

// MakeCode builds an AABBCCC error code.
func MakeCode(service, category, sequence int) int {
	return service*100000 + category*1000 + sequence
}

// ParseCode splits an error code into service, category and sequence.
func ParseCode(code int) (service, category, sequence int) {
	return code / 100000, (code / 1000) % 100, code % 1000
}

// GetService returns the service part of an error code.
func GetService(code int) int {
	return code / 100000
}

// GetCategory returns the category part of an error code.
func GetCategory(code int) int {
	return (code / 1000) % 100
}

// IsConfigError reports whether the code belongs to the configuration category.
func IsConfigError(code int) bool {
	return GetCategory(code) == CategoryConfig
}

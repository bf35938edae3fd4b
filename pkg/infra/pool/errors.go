package pool

import "errors"

var (
	// ErrPoolClosed is returned when submitting to a released pool.
	ErrPoolClosed = errors.New("pool is closed")

	// ErrPoolOverload is returned by a nonblocking pool that is full.
	ErrPoolOverload = errors.New("pool is overloaded")

	// ErrInvalidPoolConfig is returned by NewPool for an unusable config.
	ErrInvalidPoolConfig = errors.New("invalid pool config")
)

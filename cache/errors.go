package cache

import "errors"

var (
	ErrKeyNotFound   = errors.New("cache: key not found")
	ErrJsonMarshal   = errors.New("cache: failed to marshal value to json")
	ErrJsonUnmarshal = errors.New("cache: failed to unmarshal value from json")
)

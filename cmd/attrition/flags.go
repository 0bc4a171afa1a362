package main

import (
	"fmt"

	"github.com/spf13/cast"
)

func setValue(target any, raw string) error {
	switch p := target.(type) {
	case *string:
		*p = raw
	case *int:
		v, err := cast.ToIntE(raw)
		if err != nil {
			return err
		}
		*p = v
	case *uint64:
		v, err := cast.ToUint64E(raw)
		if err != nil {
			return err
		}
		*p = v
	case *float64:
		v, err := cast.ToFloat64E(raw)
		if err != nil {
			return err
		}
		*p = v
	default:
		return fmt.Errorf("unsupported flag target %T", target)
	}
	return nil
}

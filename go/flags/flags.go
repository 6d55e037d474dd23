package flags

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/jessevdk/go-flags"
)

// ErrHelp is returned when the user asked for the help message, which has already been printed.
var ErrHelp = errors.New("help requested")

// ParseArgs parses the given args (without the program name) into opts.
// Environment variables declared with the `env` tag are honored.
// It returns the positional arguments that were not consumed.
func ParseArgs(opts any, args []string) ([]string, error) {
	allocateGroups(opts)
	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash|flags.PrintErrors)
	remaining, err := parser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, ErrHelp
		}
		return nil, fmt.Errorf("parsing flags: %w", err)
	}
	return remaining, nil
}

// Allocates nil pointer-to-struct fields so that go-flags can scan them as option groups.
func allocateGroups(obj any) {
	v := reflect.Indirect(reflect.ValueOf(obj))
	if v.Kind() != reflect.Struct {
		return
	}
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		value := v.Field(i)
		if !field.IsExported() || value.Kind() != reflect.Ptr || field.Type.Elem().Kind() != reflect.Struct {
			continue
		}
		if value.IsNil() {
			value.Set(reflect.New(field.Type.Elem()))
		}
		allocateGroups(value.Interface())
	}
}

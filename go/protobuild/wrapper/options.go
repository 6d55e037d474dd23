package wrapper

import (
	"fmt"
	"strings"
)

// Options selects the accessors generated for messages.
type Options uint

const (
	// OptNew generates `new_()`.
	OptNew Options = 1 << iota
	// OptMessage generates the `::protobuf::Message` and `::protobuf::Clear` bridges.
	OptMessage
	OptHas
	OptClear
	// OptTrivialGet generates getters returning the field itself.
	OptTrivialGet
	// OptTrivialSet generates setters storing their argument as is.
	OptTrivialSet
	OptMut
	OptTake

	OptNone Options = 0
	OptAll          = OptNew | OptMessage | OptHas | OptClear | OptTrivialGet | OptTrivialSet | OptMut | OptTake
)

var nameToOption = map[string]Options{
	"new":         OptNew,
	"message":     OptMessage,
	"has":         OptHas,
	"clear":       OptClear,
	"trivial_get": OptTrivialGet,
	"trivial_set": OptTrivialSet,
	"mut":         OptMut,
	"take":        OptTake,
	"all":         OptAll,
	"none":        OptNone,
}

// ParseOptions combines named options. No names means all options.
func ParseOptions(names []string) (Options, error) {
	if len(names) == 0 {
		return OptAll, nil
	}
	var options Options
	for _, name := range names {
		option, ok := nameToOption[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return 0, fmt.Errorf("unknown wrapper option %q", name)
		}
		options |= option
	}
	return options, nil
}

// Has returns true if every option of flags is set.
func (o Options) Has(flags Options) bool {
	return o&flags == flags
}

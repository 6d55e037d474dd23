package template

import (
	"strconv"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/malonaz/protobuild/go/protobuild/rustname"
)

func getFuncMap() template.FuncMap {
	funcMap := sprig.TxtFuncMap()
	for functionName, function := range functionNameToFunction {
		funcMap[functionName] = function
	}
	return funcMap
}

var functionNameToFunction = map[string]any{
	"rustModule": rustname.Module,
	"rustString": strconv.Quote,
}

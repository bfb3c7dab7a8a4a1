package engine

import (
	_ "embed"
	"strings"
	"text/template"

	"github.com/SarthakJariwala/sqlsaber-web/errors"
)

var (
	//go:embed data/instructions/query.md.tmpl
	queryInst     string
	queryInstTmpl *template.Template = template.Must(template.New("").Parse(queryInst))
)

type instructionValues struct {
	Memory string
}

func buildInstructions(memory string) (string, error) {
	var buf strings.Builder
	if err := queryInstTmpl.Execute(&buf, instructionValues{Memory: memory}); err != nil {
		return "", errors.Wrapf(err, "failed to render instructions")
	}

	return strings.TrimSpace(buf.String()), nil
}

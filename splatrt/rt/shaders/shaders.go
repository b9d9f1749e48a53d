package shaders

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"
)

//go:embed preprocess.wgsl
var preprocessSource string

//go:embed radix_sort.wgsl
var RadixSortWGSL string

//go:embed gaussian.wgsl
var GaussianWGSL string

//go:embed text.wgsl
var TextWGSL string

var preprocessTemplate *template.Template

func init() {
	preprocessTemplate = template.Must(template.New("preprocess.wgsl").Option("missingkey=error").Parse(preprocessSource))
}

// PreprocessParams are the compile-time constants of the preprocess kernel.
// KeysPerDispatch is the number of keys one sorter workgroup consumes; the
// kernel bumps the sort dispatch size once per that many appended keys.
type PreprocessParams struct {
	WorkgroupSize   uint32
	KeysPerDispatch uint32
}

// Preprocess instantiates the preprocess compute shader.
func Preprocess(p PreprocessParams) (string, error) {
	if p.WorkgroupSize == 0 || p.KeysPerDispatch == 0 {
		return "", fmt.Errorf("invalid preprocess params %+v", p)
	}
	var buf bytes.Buffer
	if err := preprocessTemplate.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("failed to instantiate preprocess shader: %w", err)
	}
	return buf.String(), nil
}

package solver

import (
	"bufio"
	"os"
	"strings"
)

// Variant identifies which solver a case parameter file belongs to,
// resolved once from the fixed-format marker on the file's first line.
type Variant int

const (
	VariantUnknown Variant = iota
	VariantSaturne
	VariantNeptune
)

func (v Variant) String() string {
	switch v {
	case VariantSaturne:
		return "code_saturne"
	case VariantNeptune:
		return "neptune_cfd"
	default:
		return "unknown"
	}
}

const (
	saturnePrologue = `<?xml version="1.0" encoding="utf-8"?><Code_Saturne_GUI`
	neptunePrologue = `<?xml version="1.0" encoding="utf-8"?><NEPTUNE_CFD_GUI`
)

// DetectVariant reads the first line of a parameter file and classifies it.
// Files that are not solver parameter files come back as VariantUnknown
// with a nil error; only I/O failures are errors.
func DetectVariant(path string) (Variant, error) {
	f, err := os.Open(path)
	if err != nil {
		return VariantUnknown, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !scanner.Scan() {
		return VariantUnknown, scanner.Err()
	}
	line := scanner.Text()

	switch {
	case strings.HasPrefix(line, saturnePrologue):
		return VariantSaturne, nil
	case strings.HasPrefix(line, neptunePrologue):
		return VariantNeptune, nil
	default:
		return VariantUnknown, nil
	}
}
